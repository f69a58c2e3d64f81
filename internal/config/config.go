package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Env       string          `mapstructure:"env"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Directory DirectoryConfig `mapstructure:"directory"`
	Photos    PhotosConfig    `mapstructure:"photos"`
	Confirm   ConfirmConfig   `mapstructure:"confirm"`
	Events    EventsConfig    `mapstructure:"events"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

type ServerConfig struct {
	Port         string   `mapstructure:"port"`
	ReadTimeout  int      `mapstructure:"read_timeout_seconds"`
	WriteTimeout int      `mapstructure:"write_timeout_seconds"`
	IdleTimeout  int      `mapstructure:"idle_timeout_seconds"`
	CORSOrigins  []string `mapstructure:"cors_origins"`
}

type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            string `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"name"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime_seconds"`
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time_seconds"`
}

// AuthConfig holds the shared secret of the hosted auth backend. Tokens it
// issues are verified, never minted, by this service.
type AuthConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

type DirectoryConfig struct {
	DebounceMillis    int `mapstructure:"debounce_ms"`
	SessionTTLMinutes int `mapstructure:"session_ttl_minutes"`
}

type PhotosConfig struct {
	Dir          string `mapstructure:"dir"`
	MaxBytes     int64  `mapstructure:"max_bytes"`
	MaxDimension int    `mapstructure:"max_dimension"`
}

type ConfirmConfig struct {
	DeletePassword string `mapstructure:"delete_password"`
}

type EventsConfig struct {
	Driver       string   `mapstructure:"driver"`
	NATSURL      string   `mapstructure:"nats_url"`
	NATSSubject  string   `mapstructure:"nats_subject"`
	KafkaBrokers []string `mapstructure:"kafka_brokers"`
	KafkaTopic   string   `mapstructure:"kafka_topic"`
}

type TelemetryConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

func (c DirectoryConfig) Debounce() time.Duration {
	if c.DebounceMillis <= 0 {
		return 300 * time.Millisecond
	}
	return time.Duration(c.DebounceMillis) * time.Millisecond
}

func (c DirectoryConfig) SessionTTL() time.Duration {
	if c.SessionTTLMinutes <= 0 {
		return 2 * time.Hour
	}
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}

func Load() (*Config, error) {
	// Get environment from ENV, default to "local"
	env := os.Getenv("ENV")
	if env == "" {
		env = "local"
	}

	v := viper.New()
	v.SetConfigName(fmt.Sprintf("config.%s", env))
	v.SetConfigType("yaml")
	v.AddConfigPath("/configs")  // Kubernetes mount
	v.AddConfigPath("./configs") // repo root
	v.AddConfigPath("../configs")
	v.AddConfigPath("../../configs") // IDE from cmd/server

	setDefaults(v)

	// Config file is optional - continue with ENV variables
	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("No config file found (will use ENV variables): %v\n", err)
	}

	v.AutomaticEnv()

	v.BindEnv("env", "ENV")
	v.BindEnv("server.port", "PORT")
	v.BindEnv("database.host", "DB_HOST")
	v.BindEnv("database.user", "DB_USER")
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("auth.jwt_secret", "JWT_SECRET")
	v.BindEnv("confirm.delete_password", "DELETE_PASSWORD")
	v.BindEnv("events.nats_url", "NATS_URL")
	v.BindEnv("telemetry.otlp_endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "local")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout_seconds", 15)
	v.SetDefault("server.write_timeout_seconds", 30)
	v.SetDefault("server.idle_timeout_seconds", 60)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "mmps")
	v.SetDefault("auth.enabled", true)
	v.SetDefault("directory.debounce_ms", 300)
	v.SetDefault("directory.session_ttl_minutes", 120)
	v.SetDefault("photos.dir", "./data/student-photos")
	v.SetDefault("photos.max_bytes", 5*1024*1024)
	v.SetDefault("photos.max_dimension", 1024)
	v.SetDefault("confirm.delete_password", "9999")
	v.SetDefault("events.driver", "none")
	v.SetDefault("events.nats_subject", "mmps.students")
	v.SetDefault("events.kafka_topic", "mmps.students")
}
