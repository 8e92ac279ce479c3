package database

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"ninja-decision-engine/internal/engine"
)

const (
	// positionKeyPrefix is the prefix for live position snapshot keys.
	// Format: ninja:position:{machineID}:{symbol}
	positionKeyPrefix = "ninja:position"

	// positionTTL keeps stale snapshots readable for a day after the
	// last update before Redis drops them.
	positionTTL = 24 * time.Hour
)

// RedisPositionMirror pushes live position snapshots to Redis so an
// operator (or a restarted engine) can inspect state without touching
// Postgres. When Redis is unavailable it falls back to an in-memory
// cache so decision-making never blocks on the mirror.
type RedisPositionMirror struct {
	client    *redis.Client
	log       zerolog.Logger
	cache     map[string]engine.PositionSnapshot
	cacheMu   sync.RWMutex
	available atomic.Bool
}

// NewRedisPositionMirror creates a mirror over the given client. A nil
// client yields a memory-only mirror, which is valid for single-node
// deployments without Redis.
func NewRedisPositionMirror(client *redis.Client, log zerolog.Logger) *RedisPositionMirror {
	m := &RedisPositionMirror{
		client: client,
		log:    log.With().Str("component", "position_mirror").Logger(),
		cache:  make(map[string]engine.PositionSnapshot),
	}
	if client != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			m.log.Warn().Err(err).Msg("Redis unavailable at startup, mirroring to memory only")
			m.available.Store(false)
		} else {
			m.log.Info().Msg("Redis position mirror connected")
			m.available.Store(true)
		}
	} else {
		m.log.Info().Msg("No Redis client, mirroring positions to memory only")
		m.available.Store(false)
	}
	return m
}

func (m *RedisPositionMirror) key(machineID, symbol string) string {
	return fmt.Sprintf("%s:%s:%s", positionKeyPrefix, machineID, symbol)
}

// SavePosition stores the latest snapshot. Redis write failures mark the
// client unavailable and fall back to the cache without returning an
// error; the snapshot is never lost while the process lives.
func (m *RedisPositionMirror) SavePosition(ctx context.Context, machineID, symbol string, snap engine.PositionSnapshot) error {
	key := m.key(machineID, symbol)

	m.cacheMu.Lock()
	m.cache[key] = snap
	m.cacheMu.Unlock()

	if m.client == nil || !m.available.Load() {
		return nil
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal position snapshot: %w", err)
	}
	if err := m.client.Set(ctx, key, data, positionTTL).Err(); err != nil {
		m.log.Warn().Err(err).Str("key", key).Msg("Redis write failed, falling back to memory")
		m.available.Store(false)
		return nil
	}
	return nil
}

// LoadPosition returns the last mirrored snapshot, preferring Redis and
// falling back to the cache. A missing snapshot returns (zero, false, nil).
func (m *RedisPositionMirror) LoadPosition(ctx context.Context, machineID, symbol string) (engine.PositionSnapshot, bool, error) {
	key := m.key(machineID, symbol)

	if m.client != nil && m.available.Load() {
		data, err := m.client.Get(ctx, key).Result()
		switch {
		case err == redis.Nil:
			// fall through to cache
		case err != nil:
			m.log.Warn().Err(err).Str("key", key).Msg("Redis read failed, falling back to memory")
			m.available.Store(false)
		default:
			var snap engine.PositionSnapshot
			if uerr := json.Unmarshal([]byte(data), &snap); uerr != nil {
				return engine.PositionSnapshot{}, false, fmt.Errorf("failed to unmarshal position snapshot: %w", uerr)
			}
			return snap, true, nil
		}
	}

	m.cacheMu.RLock()
	snap, ok := m.cache[key]
	m.cacheMu.RUnlock()
	return snap, ok, nil
}

// ReconnectCheck pings Redis and restores availability after an outage.
// Intended to be called periodically by the owner.
func (m *RedisPositionMirror) ReconnectCheck(ctx context.Context) {
	if m.client == nil || m.available.Load() {
		return
	}
	if err := m.client.Ping(ctx).Err(); err == nil {
		m.log.Info().Msg("Redis position mirror reconnected")
		m.available.Store(true)
	}
}
