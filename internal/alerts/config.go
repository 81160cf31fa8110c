package alerts

import (
	"errors"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the alert thresholds and the cooldown window.
type Config struct {
	DustThreshold     float64
	LowPowerThreshold float64
	DaylightThreshold float64
	OverheatThreshold float64

	EfficiencyDropAbs float64
	EfficiencyDropPct float64

	CooldownWindow time.Duration
}

// yamlConfig mirrors the config file; absent keys keep defaults and
// durations are written in time.ParseDuration form ("90s", "5m").
type yamlConfig struct {
	DustThreshold     *float64 `yaml:"dust_threshold"`
	LowPowerThreshold *float64 `yaml:"low_power_threshold"`
	DaylightThreshold *float64 `yaml:"daylight_threshold"`
	OverheatThreshold *float64 `yaml:"overheat_threshold"`
	EfficiencyDropAbs *float64 `yaml:"efficiency_drop_abs"`
	EfficiencyDropPct *float64 `yaml:"efficiency_drop_pct"`
	CooldownWindow    string   `yaml:"cooldown_window"`
}

// LoadConfig resolves thresholds from defaults, then an optional YAML file
// (ALERTS_CONFIG), then env var overrides. Invalid values fail startup.
func LoadConfig() (Config, error) {
	cfg := Config{
		DustThreshold:     100,
		LowPowerThreshold: 5,
		DaylightThreshold: 60,
		OverheatThreshold: 50,
		EfficiencyDropAbs: 5,
		EfficiencyDropPct: 0.25,
		CooldownWindow:    5 * time.Minute,
	}

	if path := os.Getenv("ALERTS_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		var file yamlConfig
		if err := yaml.Unmarshal(data, &file); err != nil {
			return cfg, err
		}
		applyYAML(&cfg, file)
		if file.CooldownWindow != "" {
			window, err := time.ParseDuration(file.CooldownWindow)
			if err != nil {
				return cfg, errors.New("alerts config: invalid cooldown_window in " + path)
			}
			cfg.CooldownWindow = window
		}
	}

	var err error
	if cfg.DustThreshold, err = envFloat("DUST_THRESHOLD", cfg.DustThreshold); err != nil {
		return cfg, err
	}
	if cfg.LowPowerThreshold, err = envFloat("LOW_POWER_THRESHOLD", cfg.LowPowerThreshold); err != nil {
		return cfg, err
	}
	if cfg.DaylightThreshold, err = envFloat("DAYLIGHT_THRESHOLD", cfg.DaylightThreshold); err != nil {
		return cfg, err
	}
	if cfg.OverheatThreshold, err = envFloat("OVERHEAT_THRESHOLD", cfg.OverheatThreshold); err != nil {
		return cfg, err
	}
	if cfg.EfficiencyDropAbs, err = envFloat("EFFICIENCY_DROP_ABS_THRESHOLD", cfg.EfficiencyDropAbs); err != nil {
		return cfg, err
	}
	if cfg.EfficiencyDropPct, err = envFloat("EFFICIENCY_DROP_PCT_THRESHOLD", cfg.EfficiencyDropPct); err != nil {
		return cfg, err
	}
	if value := os.Getenv("COOLDOWN_WINDOW"); value != "" {
		window, err := time.ParseDuration(value)
		if err != nil {
			return cfg, errors.New("alerts config: invalid COOLDOWN_WINDOW")
		}
		cfg.CooldownWindow = window
	}

	return cfg, cfg.Validate()
}

// Validate checks threshold invariants.
func (c Config) Validate() error {
	if c.DustThreshold <= 0 {
		return errors.New("alerts config: dust threshold must be positive")
	}
	if c.OverheatThreshold <= 0 {
		return errors.New("alerts config: overheat threshold must be positive")
	}
	if c.DaylightThreshold < 0 || c.DaylightThreshold > 100 {
		return errors.New("alerts config: daylight threshold must be within [0,100]")
	}
	if c.EfficiencyDropPct < 0 || c.EfficiencyDropPct >= 1 {
		return errors.New("alerts config: efficiency drop fraction must be within [0,1)")
	}
	if c.CooldownWindow < 0 {
		return errors.New("alerts config: cooldown window must not be negative")
	}
	return nil
}

func applyYAML(cfg *Config, file yamlConfig) {
	if file.DustThreshold != nil {
		cfg.DustThreshold = *file.DustThreshold
	}
	if file.LowPowerThreshold != nil {
		cfg.LowPowerThreshold = *file.LowPowerThreshold
	}
	if file.DaylightThreshold != nil {
		cfg.DaylightThreshold = *file.DaylightThreshold
	}
	if file.OverheatThreshold != nil {
		cfg.OverheatThreshold = *file.OverheatThreshold
	}
	if file.EfficiencyDropAbs != nil {
		cfg.EfficiencyDropAbs = *file.EfficiencyDropAbs
	}
	if file.EfficiencyDropPct != nil {
		cfg.EfficiencyDropPct = *file.EfficiencyDropPct
	}
}

func envFloat(key string, fallback float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback, errors.New("alerts config: invalid " + key)
	}
	return parsed, nil
}
