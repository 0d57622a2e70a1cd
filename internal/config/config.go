// Package config loads the settings of the chatlog binaries.
//
// Precedence, highest first: CHATLOG_* environment variables (a .env file is
// loaded into the environment first), the config file, defaults.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const EnvPrefix = "CHATLOG"

const (
	BackendMemory   = "memory"
	BackendBolt     = "bolt"
	BackendNats     = "nats"
	BackendPostgres = "postgres"
	BackendSqlite   = "sqlite"
)

type Config struct {
	Backend string `mapstructure:"backend" json:"backend" validate:"required,oneof=memory bolt nats postgres sqlite" jsonschema:"enum=memory,enum=bolt,enum=nats,enum=postgres,enum=sqlite,default=memory,description=List store backend"`

	Bolt struct {
		Path string `mapstructure:"path" json:"path" jsonschema:"description=bbolt database file"`
	} `mapstructure:"bolt" json:"bolt"`

	Nats struct {
		URL    string `mapstructure:"url" json:"url" jsonschema:"description=NATS server URL (falls back to NATS_URL)"`
		Stream string `mapstructure:"stream" json:"stream" jsonschema:"description=JetStream stream holding the lists"`
	} `mapstructure:"nats" json:"nats"`

	Postgres struct {
		DSN   string `mapstructure:"dsn" json:"dsn" jsonschema:"description=PostgreSQL connection string"`
		Table string `mapstructure:"table" json:"table"`
	} `mapstructure:"postgres" json:"postgres"`

	Sqlite struct {
		Path string `mapstructure:"path" json:"path" jsonschema:"description=SQLite database file or :memory:"`
	} `mapstructure:"sqlite" json:"sqlite"`

	RequestTimeout time.Duration `mapstructure:"request_timeout" json:"request_timeout" validate:"gt=0" jsonschema:"type=string,description=How long a read waits for its reply (e.g. 5s)"`
	MailboxSize    int           `mapstructure:"mailbox_size" json:"mailbox_size" validate:"gte=1" jsonschema:"minimum=1"`
	LogLevel       string        `mapstructure:"log_level" json:"log_level" validate:"oneof=debug info warn error" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
	MetricsAddr    string        `mapstructure:"metrics_addr" json:"metrics_addr" jsonschema:"description=Listen address of the Prometheus endpoint (loadtest only)"`
}

type LoadOptions struct {
	// ConfigFile is a YAML, JSON or TOML file. Optional.
	ConfigFile string
	// EnvFile is loaded into the environment when it exists (default ".env").
	EnvFile string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend", BackendMemory)
	v.SetDefault("bolt.path", "chatlog.db")
	v.SetDefault("nats.url", "nats://127.0.0.1:4222")
	v.SetDefault("nats.stream", "CHATLOG")
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.table", "chatlog_entries")
	v.SetDefault("sqlite.path", "chatlog.sqlite")
	v.SetDefault("request_timeout", 5*time.Second)
	v.SetDefault("mailbox_size", 1024)
	v.SetDefault("log_level", "info")
	v.SetDefault("metrics_addr", "")
}

func Load(opts LoadOptions) (*Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	// variables already set win over the file
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("nats.url", EnvPrefix+"_NATS_URL", "NATS_URL")

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", opts.ConfigFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	var missing string
	switch c.Backend {
	case BackendBolt:
		if c.Bolt.Path == "" {
			missing = "bolt.path"
		}
	case BackendNats:
		if c.Nats.URL == "" {
			missing = "nats.url"
		}
	case BackendPostgres:
		if c.Postgres.DSN == "" {
			missing = "postgres.dsn"
		}
	case BackendSqlite:
		if c.Sqlite.Path == "" {
			missing = "sqlite.path"
		}
	}
	if missing != "" {
		return fmt.Errorf("invalid config: backend %s requires %s", c.Backend, missing)
	}
	return nil
}

func (c *Config) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// Logger returns a text logger writing to w at the configured level.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: c.Level()}))
}
