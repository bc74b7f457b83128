package config_test

import (
	"errors"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/shubham-shewale/market-beat/pkg/config"
)

func newViper(overrides map[string]interface{}) *viper.Viper {
	v := viper.New()
	config.SetDefaults(v)
	for k, val := range overrides {
		v.Set(k, val)
	}
	return v
}

func TestDecode_Defaults(t *testing.T) {
	cfg, err := config.Decode(newViper(nil))
	if err != nil {
		t.Fatalf("defaults should be valid: %v", err)
	}

	if cfg.Simulator.TickInterval != 2*time.Second {
		t.Errorf("Expected 2s tick interval, got %v", cfg.Simulator.TickInterval)
	}
	if cfg.Simulator.PriceVolatility != 0.5 || cfg.Simulator.VolumeVolatility != 1 {
		t.Errorf("Unexpected volatility defaults: %+v", cfg.Simulator)
	}
	if cfg.Simulator.Cooldown != 3*time.Second {
		t.Errorf("Expected 3s cooldown, got %v", cfg.Simulator.Cooldown)
	}
	if cfg.Highlight.MatchWindow != 100*time.Millisecond || cfg.Highlight.Hold != time.Second {
		t.Errorf("Unexpected highlight defaults: %+v", cfg.Highlight)
	}
	if len(cfg.Gateway.ValidAssets) != 5 {
		t.Errorf("Expected 5 valid assets, got %v", cfg.Gateway.ValidAssets)
	}
}

func TestDecode_DurationStrings(t *testing.T) {
	cfg, err := config.Decode(newViper(map[string]interface{}{
		"simulator.tick_interval": "500ms",
		"highlight.hold":          "2s",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Simulator.TickInterval != 500*time.Millisecond {
		t.Errorf("Expected 500ms, got %v", cfg.Simulator.TickInterval)
	}
	if cfg.Highlight.Hold != 2*time.Second {
		t.Errorf("Expected 2s, got %v", cfg.Highlight.Hold)
	}
}

func TestDecode_RejectsInvalid(t *testing.T) {
	cases := map[string]map[string]interface{}{
		"negative price volatility":  {"simulator.price_volatility": -0.1},
		"price volatility above 100": {"simulator.price_volatility": 150.0},
		"negative volume volatility": {"simulator.volume_volatility": -1.0},
		"zero tick interval":         {"simulator.tick_interval": 0},
		"negative cooldown":          {"simulator.cooldown": "-1s"},
		"zero cooldown":              {"simulator.cooldown": 0},
		"zero hold":                  {"highlight.hold": 0},
		"no workers":                 {"processor.num_workers": 0},
		"no brokers":                 {"kafka.brokers": []string{}},
	}

	for name, overrides := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := config.Decode(newViper(overrides))
			if !errors.Is(err, config.ErrInvalidConfig) {
				t.Errorf("Expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestDecode_KafkaDisabledAllowsNoBrokers(t *testing.T) {
	_, err := config.Decode(newViper(map[string]interface{}{
		"kafka.enabled": false,
		"kafka.brokers": []string{},
	}))
	if err != nil {
		t.Errorf("Kafka disabled should not require brokers: %v", err)
	}
}

func TestNewLogger(t *testing.T) {
	if _, err := config.NewLogger(config.LoggerConfig{Level: "debug", Env: "prod"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if _, err := config.NewLogger(config.LoggerConfig{Level: "loud"}); err == nil {
		t.Error("Expected error for unknown level")
	}
}
