package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

//go:embed config.yml
var embeddedConfig []byte

type Config struct {
	Mode   string `mapstructure:"mode"`
	Server struct {
		HTTPPort     string        `mapstructure:"httpPort"`
		ReadTimeout  time.Duration `mapstructure:"readTimeout"`
		WriteTimeout time.Duration `mapstructure:"writeTimeout"`
		IdleTimeout  time.Duration `mapstructure:"idleTimeout"`
	} `mapstructure:"server"`
	Canvas struct {
		Width  float64 `mapstructure:"width"`
		Height float64 `mapstructure:"height"`
	} `mapstructure:"canvas"`
	Requests struct {
		Initial int    `mapstructure:"initial"`
		PinFrom string `mapstructure:"pinFrom"`
		PinTo   string `mapstructure:"pinTo"`
		Seed    uint64 `mapstructure:"seed"`
	} `mapstructure:"requests"`
	Places struct {
		// Source is "embedded", "file" or "postgres".
		Source string `mapstructure:"source"`
		File   string `mapstructure:"file"`
		Seed   bool   `mapstructure:"seed"`
	} `mapstructure:"places"`
	Repositories struct {
		Postgres struct {
			URL string `mapstructure:"url"`
		} `mapstructure:"postgres"`
		Redis struct {
			Addr     string        `mapstructure:"addr"`
			Password string        `mapstructure:"password"`
			DB       int           `mapstructure:"db"`
			TTL      time.Duration `mapstructure:"ttl"`
		} `mapstructure:"redis"`
	} `mapstructure:"repositories"`
}

// InitConfig reads config.yml from the usual paths, falling back to the
// embedded defaults. TRANSFERMAP_* environment variables override both,
// e.g. TRANSFERMAP_SERVER_HTTPPORT.
func InitConfig(paths ...string) (Config, error) {
	var config Config
	v := viper.New()

	if len(paths) == 0 {
		paths = []string{".", "config", "/app/config"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetConfigName("config")
	v.SetConfigType("yml")

	v.SetEnvPrefix("transfermap")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Embedded values are the defaults; a file on disk is merged over them.
	if err := v.ReadConfig(bytes.NewReader(embeddedConfig)); err != nil {
		return Config{}, fmt.Errorf("failed to read embedded config: %w", err)
	}
	if err := v.MergeInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := config.validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

func (c Config) validate() error {
	switch c.Places.Source {
	case "embedded":
	case "file":
		if c.Places.File == "" {
			return fmt.Errorf("config: places.file is required when places.source is file")
		}
	case "postgres":
		if c.Repositories.Postgres.URL == "" {
			return fmt.Errorf("config: repositories.postgres.url is required when places.source is postgres")
		}
	default:
		return fmt.Errorf("config: unknown places.source %q", c.Places.Source)
	}
	if c.Requests.Initial < 0 {
		return fmt.Errorf("config: requests.initial must not be negative")
	}
	if c.Canvas.Width <= 0 || c.Canvas.Height <= 0 {
		return fmt.Errorf("config: canvas dimensions must be positive")
	}
	return nil
}
