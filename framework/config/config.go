package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config is the central typed configuration struct.
type Config struct {
	App     AppConfig     `toml:"app"`
	Log     LogConfig     `toml:"log"`
	State   StateConfig   `toml:"state"`
	HTTP    HTTPConfig    `toml:"http"`
	Metrics MetricsConfig `toml:"metrics"`
}

type AppConfig struct {
	Name  string `toml:"name"`
	Env   string `toml:"env"` // local | production | testing
	Debug bool   `toml:"debug"`
}

type LogConfig struct {
	Level string `toml:"level"` // debug | info | warn | error
}

type StateConfig struct {
	Persist bool   `toml:"persist"`
	Path    string `toml:"path"` // SQLite file, or ":memory:"
}

type HTTPConfig struct {
	Port int `toml:"port"`
}

type MetricsConfig struct {
	Enabled   bool   `toml:"enabled"`
	Namespace string `toml:"namespace"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		App:     AppConfig{Name: "tracker", Env: "local", Debug: true},
		Log:     LogConfig{Level: "info"},
		State:   StateConfig{Persist: false, Path: "tracker.db"},
		HTTP:    HTTPConfig{Port: 8000},
		Metrics: MetricsConfig{Enabled: true, Namespace: "tracker"},
	}
}

// Load reads .env (if present) and overlays environment variables on the
// defaults. Call once at bootstrap: cfg := config.Load()
func Load(envFiles ...string) *Config {
	cfg := Default()
	loadEnvFiles(envFiles)
	cfg.applyEnv()
	return cfg
}

// LoadFile is Load with a TOML file between the defaults and the
// environment. An empty path skips the file.
func LoadFile(path string, envFiles ...string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}
	loadEnvFiles(envFiles)
	cfg.applyEnv()
	return cfg, nil
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTP.Port)
}

func loadEnvFiles(files []string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	// Non-fatal: .env may not exist in production
	_ = godotenv.Load(files...)
}

func (c *Config) applyEnv() {
	c.App.Name = Get("APP_NAME", c.App.Name)
	c.App.Env = Get("APP_ENV", c.App.Env)
	c.App.Debug = GetBool("APP_DEBUG", c.App.Debug)
	c.Log.Level = Get("LOG_LEVEL", c.Log.Level)
	c.State.Persist = GetBool("STATE_PERSIST", c.State.Persist)
	c.State.Path = Get("STATE_PATH", c.State.Path)
	c.HTTP.Port = GetInt("HTTP_PORT", c.HTTP.Port)
	c.Metrics.Enabled = GetBool("METRICS_ENABLED", c.Metrics.Enabled)
}

// Get returns a raw env value, falling back to defaultVal.
func Get(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// GetInt returns an int env value.
func GetInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

// GetBool returns a bool env value.
func GetBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}
