package config

import (
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrInvalidConfig is returned when a loaded value cannot drive the system.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds all configuration for the application
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Simulator SimulatorConfig `mapstructure:"simulator"`
	Highlight HighlightConfig `mapstructure:"highlight"`
	Processor ProcessorConfig `mapstructure:"processor"`
	Gateway   GatewayConfig   `mapstructure:"gateway"`
}

type AppConfig struct {
	Port string `mapstructure:"port"`
	Env  string `mapstructure:"env"` // e.g., "local", "prod"
}

type LoggerConfig struct {
	Level string `mapstructure:"level"`
	Env   string `mapstructure:"env"` // "prod" => JSON, anything else => console
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Enabled    bool     `mapstructure:"enabled"`
	Brokers    []string `mapstructure:"brokers"`
	Topic      string   `mapstructure:"topic"`
	GroupID    string   `mapstructure:"group_id"`
	Partitions int      `mapstructure:"partitions"`
}

// SimulatorConfig drives the tick scheduler and the update generator.
type SimulatorConfig struct {
	TickInterval     time.Duration `mapstructure:"tick_interval"`
	PriceVolatility  float64       `mapstructure:"price_volatility"`  // max % swing per tick
	VolumeVolatility float64       `mapstructure:"volume_volatility"` // max % swing per tick
	Cooldown         time.Duration `mapstructure:"cooldown"`
	AutoStart        bool          `mapstructure:"auto_start"`
}

type HighlightConfig struct {
	MatchWindow time.Duration `mapstructure:"match_window"`
	Hold        time.Duration `mapstructure:"hold"`
}

type ProcessorConfig struct {
	NumWorkers  int           `mapstructure:"num_workers"`
	SnapshotTTL time.Duration `mapstructure:"snapshot_ttl"`
}

type GatewayConfig struct {
	ValidAssets []string `mapstructure:"valid_assets"`
}

// LoadConfig reads configuration from .env file, an optional config.yaml,
// environment variables, and defaults.
func LoadConfig() (*Config, error) {
	v := viper.New()

	if err := godotenv.Load(); err != nil {
		log.Println("Note: No .env file found, relying on System Env Vars")
	}

	SetDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	// Maps dot-notation to underscores (e.g., "app.port" -> "APP_PORT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnv(v, "app.port", "app.env")
	bindEnv(v, "logger.level", "logger.env")
	bindEnv(v, "redis.addr", "redis.password", "redis.db")
	bindEnv(v, "kafka.enabled", "kafka.brokers", "kafka.topic", "kafka.group_id", "kafka.partitions")
	bindEnv(v, "simulator.tick_interval", "simulator.price_volatility", "simulator.volume_volatility",
		"simulator.cooldown", "simulator.auto_start")
	bindEnv(v, "highlight.match_window", "highlight.hold")
	bindEnv(v, "processor.num_workers", "processor.snapshot_ttl")
	bindEnv(v, "gateway.valid_assets")

	return Decode(v)
}

// SetDefaults registers the built-in values. Exported so tests can build a viper instance without touching the environment.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("app.port", ":8080")
	v.SetDefault("app.env", "local")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.env", "local")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("kafka.enabled", true)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "asset_ticks")
	v.SetDefault("kafka.group_id", "market-processor-group")
	v.SetDefault("kafka.partitions", 4)

	v.SetDefault("simulator.tick_interval", 2*time.Second)
	v.SetDefault("simulator.price_volatility", 0.5)
	v.SetDefault("simulator.volume_volatility", 1.0)
	v.SetDefault("simulator.cooldown", 3*time.Second)
	v.SetDefault("simulator.auto_start", true)

	v.SetDefault("highlight.match_window", 100*time.Millisecond)
	v.SetDefault("highlight.hold", 1*time.Second)

	v.SetDefault("processor.num_workers", 4)
	v.SetDefault("processor.snapshot_ttl", 1*time.Hour)

	v.SetDefault("gateway.valid_assets", []string{"bitcoin", "ethereum", "tether", "bnb", "solana"})
}

// Decode unmarshals v into a Config and validates it.
func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values that would produce undefined random ranges or a stuck loop.
func (c *Config) Validate() error {
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("%w: kafka brokers cannot be empty", ErrInvalidConfig)
	}

	s := c.Simulator
	if s.TickInterval <= 0 {
		return fmt.Errorf("%w: simulator.tick_interval must be positive, got %v", ErrInvalidConfig, s.TickInterval)
	}
	if s.Cooldown <= 0 {
		return fmt.Errorf("%w: simulator.cooldown must be positive, got %v", ErrInvalidConfig, s.Cooldown)
	}
	if math.IsNaN(s.PriceVolatility) || s.PriceVolatility < 0 || s.PriceVolatility > 100 {
		return fmt.Errorf("%w: simulator.price_volatility must be within [0, 100], got %v", ErrInvalidConfig, s.PriceVolatility)
	}
	if math.IsNaN(s.VolumeVolatility) || s.VolumeVolatility < 0 {
		return fmt.Errorf("%w: simulator.volume_volatility cannot be negative, got %v", ErrInvalidConfig, s.VolumeVolatility)
	}

	if c.Highlight.MatchWindow < 0 || c.Highlight.Hold <= 0 {
		return fmt.Errorf("%w: highlight windows must be positive (match=%v hold=%v)",
			ErrInvalidConfig, c.Highlight.MatchWindow, c.Highlight.Hold)
	}

	if c.Processor.NumWorkers <= 0 {
		return fmt.Errorf("%w: processor.num_workers must be positive, got %d", ErrInvalidConfig, c.Processor.NumWorkers)
	}
	return nil
}

// bindEnv is a helper to bind multiple keys at once
func bindEnv(v *viper.Viper, keys ...string) {
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			log.Printf("Could not bind env var for key %s: %v", key, err)
		}
	}
}
