package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultsWithoutFile(t *testing.T) {
	cfg := defaults()

	if !cfg.StrategyConfig.UseVWAP || !cfg.RuntimeConfig.EnableAutoKillSwitch {
		t.Error("toggles should default on")
	}
	if cfg.StrategyConfig.MinBars != 50 {
		t.Errorf("min_bars = %d, want 50", cfg.StrategyConfig.MinBars)
	}
	if cfg.Mode != "PAPER" || cfg.ServerConfig.Port != 8080 {
		t.Errorf("mode/port = %q/%d", cfg.Mode, cfg.ServerConfig.Port)
	}
}

func TestFileFalseDisablesToggle(t *testing.T) {
	path := writeConfig(t, `{
		"strategy": {"use_vwap": false, "use_multi_tf_macd": false},
		"runtime": {"enable_auto_kill_switch": false}
	}`)

	cfg := defaults()
	if err := mergeFile(cfg, path); err != nil {
		t.Fatal(err)
	}
	applyEnvOverrides(cfg)

	if cfg.StrategyConfig.UseVWAP {
		t.Error("use_vwap=false in file was overridden")
	}
	if cfg.StrategyConfig.UseMultiTFMACD {
		t.Error("use_multi_tf_macd=false in file was overridden")
	}
	if cfg.RuntimeConfig.EnableAutoKillSwitch {
		t.Error("enable_auto_kill_switch=false in file was overridden")
	}
	// Keys absent from the file keep their defaults.
	if !cfg.StrategyConfig.UseRegimeFilter || !cfg.StrategyConfig.UseCandlePatterns {
		t.Error("absent toggles lost their defaults")
	}
	if cfg.StrategyConfig.PammMin != 60 {
		t.Errorf("pamm_min = %.1f, want default 60", cfg.StrategyConfig.PammMin)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `{"strategy": {"use_vwap": false, "pamm_min": 55}}`)
	t.Setenv("USE_VWAP", "true")
	t.Setenv("PAMM_MIN", "70")

	cfg := defaults()
	if err := mergeFile(cfg, path); err != nil {
		t.Fatal(err)
	}
	applyEnvOverrides(cfg)

	if !cfg.StrategyConfig.UseVWAP {
		t.Error("env true should win over file false")
	}
	if cfg.StrategyConfig.PammMin != 70 {
		t.Errorf("pamm_min = %.1f, want env 70", cfg.StrategyConfig.PammMin)
	}
}

func TestMergeFileBadJSON(t *testing.T) {
	path := writeConfig(t, `{not json`)
	if err := mergeFile(defaults(), path); err == nil {
		t.Error("want parse error")
	}
}
