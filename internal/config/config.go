// Package config loads the analysis options: freefall-window guard bands
// and the altitude calibration table.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"tempolog/internal/jump"
)

type Config struct {
	Window      WindowConfig `yaml:"window"`
	Calibration []CalRow     `yaml:"calibration"`
}

type WindowConfig struct {
	ExitGuardSec   float64 `yaml:"exit_guard_sec"`
	DeployGuardSec float64 `yaml:"deploy_guard_sec"`
}

type CalRow struct {
	AltitudeFt float64 `yaml:"altitude_ft"`
	Factor     float64 `yaml:"factor"`
}

// Default returns the built-in guard bands and calibration table.
func Default() Config {
	cfg := Config{
		Window: WindowConfig{
			ExitGuardSec:   jump.DefaultExitGuardSec,
			DeployGuardSec: jump.DefaultDeployGuardSec,
		},
	}
	for _, r := range jump.DefaultCalibration() {
		cfg.Calibration = append(cfg.Calibration, CalRow{AltitudeFt: r.AltitudeFt, Factor: r.Factor})
	}
	return cfg
}

// Load reads a YAML config, fills defaults, and validates.
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}

	if cfg.Window.ExitGuardSec == 0 {
		cfg.Window.ExitGuardSec = jump.DefaultExitGuardSec
	}
	if cfg.Window.DeployGuardSec == 0 {
		cfg.Window.DeployGuardSec = jump.DefaultDeployGuardSec
	}
	if cfg.Window.ExitGuardSec < 0 || cfg.Window.DeployGuardSec < 0 {
		return Config{}, fmt.Errorf("window guard bands must be >= 0")
	}

	if len(cfg.Calibration) == 0 {
		cfg.Calibration = Default().Calibration
		return cfg, nil
	}

	if cfg.Calibration[0].AltitudeFt < 20000 {
		return Config{}, fmt.Errorf("calibration must start with a row at or above 20000 ft")
	}
	if cfg.Calibration[len(cfg.Calibration)-1].AltitudeFt != 0 {
		return Config{}, fmt.Errorf("calibration must end with a row at 0 ft")
	}
	for i, r := range cfg.Calibration {
		if r.Factor <= 0 {
			return Config{}, fmt.Errorf("calibration row %d: factor must be > 0", i)
		}
		if i > 0 && r.AltitudeFt >= cfg.Calibration[i-1].AltitudeFt {
			return Config{}, fmt.Errorf("calibration row %d: altitudes must be strictly decreasing", i)
		}
	}
	return cfg, nil
}

// Table converts the configured rows into the analysis table.
func (c Config) Table() jump.CalibrationTable {
	t := make(jump.CalibrationTable, 0, len(c.Calibration))
	for _, r := range c.Calibration {
		t = append(t, jump.CalRow{AltitudeFt: r.AltitudeFt, Factor: r.Factor})
	}
	return t
}

// ProfileOptions builds the binner options from the config.
func (c Config) ProfileOptions() jump.ProfileOptions {
	return jump.ProfileOptions{
		Table:          c.Table(),
		ExitGuardSec:   c.Window.ExitGuardSec,
		DeployGuardSec: c.Window.DeployGuardSec,
	}
}
