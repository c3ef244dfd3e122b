package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

type ServerConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	Name        string `mapstructure:"name"`
	AllowOrigin string `mapstructure:"allow_origin"`
}

type WebSocketConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RenderConfig struct {
	// Tag reserves the temp directory rendered output is written to.
	Tag       string `mapstructure:"tag"`
	Extension string `mapstructure:"extension"`
}

type StorageConfig struct {
	DBPath string `mapstructure:"db_path"`
}

type TempDirConfig struct {
	// Base is the parent of every registry directory. Empty means the
	// system temp directory.
	Base   string `mapstructure:"base"`
	Prefix string `mapstructure:"prefix"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	Render    RenderConfig    `mapstructure:"render"`
	Storage   StorageConfig   `mapstructure:"storage"`
	TempDir   TempDirConfig   `mapstructure:"tempdir"`
	Log       LogConfig       `mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 1987)
	v.SetDefault("server.name", "ExecBridge")
	v.SetDefault("server.allow_origin", "http://localhost:8000")
	v.SetDefault("websocket.allowed_origins", []string{"http://localhost:", "https://localhost:", "file://"})
	v.SetDefault("render.tag", "render")
	v.SetDefault("render.extension", "ly")
	v.SetDefault("storage.db_path", ":memory:")
	v.SetDefault("tempdir.base", "")
	v.SetDefault("tempdir.prefix", "execbridge-")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// Load reads configuration from path, or from execbridge.yaml in the working
// directory or $HOME/.execbridge when path is empty. A missing default file is
// not an error. EXECBRIDGE_* environment variables override file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("execbridge")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("execbridge")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.execbridge")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.Storage.DBPath = expandEnv(cfg.Storage.DBPath)
	cfg.TempDir.Base = expandEnv(cfg.TempDir.Base)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// Defaults always decode.
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Validate checks values that would otherwise fail late at startup.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Render.Tag == "" {
		return errors.New("render.tag must not be empty")
	}
	return nil
}

// Addr is the host:port the server listens on.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// expandEnv replaces a value of the form ${VAR} with the variable's value.
func expandEnv(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		return os.Getenv(s[2 : len(s)-1])
	}
	return s
}
