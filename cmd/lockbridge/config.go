package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/shimmeringbee/lockbridge"
	"github.com/shimmeringbee/lockbridge/rules"
)

type Config struct {
	Capacity     int      `yaml:"capacity"`
	InitialLocks []string `yaml:"initial_locks"`

	ReportIntervalMs int `yaml:"report_interval_ms"`

	Rules string `yaml:"rules"`
	Seed  int64  `yaml:"seed"`

	MQTT MQTTConfig `yaml:"mqtt"`
}

type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Prefix   string `yaml:"prefix"`
	ClientID string `yaml:"client_id"`
}

func defaultConfig() Config {
	return Config{
		Capacity:         lockbridge.DefaultCapacity,
		InitialLocks:     []string{"Front Door", "Back Door", "Garage Door", "Side Gate"},
		ReportIntervalMs: int(lockbridge.DefaultReportInterval / time.Millisecond),
		MQTT: MQTTConfig{
			Prefix:   "lockbridge",
			ClientID: "lockbridge",
		},
	}
}

// loadConfig reads the YAML config at path, falling back to defaults when the
// file is absent.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config open: %w", err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("config decode: %w", err)
	}

	return cfg, nil
}

// loadRules compiles the tuning ruleset at path, or returns nil when no path
// is configured.
func loadRules(path string) (*rules.Engine, error) {
	if path == "" {
		return nil, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("rules open: %w", err)
	}
	defer f.Close()

	e := rules.New()

	if err := e.LoadReader(f); err != nil {
		return nil, err
	}

	if err := e.CompileRules(); err != nil {
		return nil, err
	}

	return e, nil
}
