// Package config reads server settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

const devSessionSecret = "dev-secret-change-in-production"

type Config struct {
	Env            string
	Port           int
	WSPath         string
	ClientURL      string
	DatabaseURL    string
	DataPath       string
	RedisURL       string
	SessionSecret  string
	LogLevel       string
	LogPretty      bool
	RateLimitMPS   float64
	RateLimitBurst int
	WelcomeMessage string
	DefaultMapID   string
	// DevTokens maps login tokens to player ids when no Redis is configured.
	DevTokens map[string]string

	sessionSecretSet bool
}

// Load reads .env files (default ".env"; missing files are fine) and then
// the environment. Variables already set in the environment win.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv()
}

// FromEnv builds a Config from the process environment only.
func FromEnv() (*Config, error) {
	c := &Config{
		Env:            get("APP_ENV", EnvDevelopment),
		WSPath:         get("WS_PATH", "/ws"),
		ClientURL:      get("CLIENT_URL", "http://localhost:5173"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		DataPath:       os.Getenv("DATA_PATH"),
		RedisURL:       os.Getenv("REDIS_URL"),
		SessionSecret:  get("SESSION_SECRET", devSessionSecret),
		LogLevel:       get("LOG_LEVEL", "info"),
		WelcomeMessage: os.Getenv("WELCOME_MESSAGE"),
		DefaultMapID:   os.Getenv("DEFAULT_MAP_ID"),
	}
	_, c.sessionSecretSet = os.LookupEnv("SESSION_SECRET")

	var err error
	if c.Port, err = getInt("PORT", 3001); err != nil {
		return nil, err
	}
	if c.RateLimitBurst, err = getInt("RATE_LIMIT_BURST", 200); err != nil {
		return nil, err
	}
	if c.RateLimitMPS, err = getFloat("RATE_LIMIT_MPS", 100); err != nil {
		return nil, err
	}
	if c.LogPretty, err = getBool("LOG_PRETTY", c.Env == EnvDevelopment); err != nil {
		return nil, err
	}
	if c.DevTokens, err = parseTokens(os.Getenv("DEV_TOKENS")); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate reports the first setting that prevents the server from
// starting.
func (c *Config) Validate() error {
	if c.IsProduction() {
		if !c.sessionSecretSet || c.SessionSecret == "" {
			return errors.New("SESSION_SECRET is required in production")
		}
		if len(c.DevTokens) > 0 {
			return errors.New("DEV_TOKENS must not be set in production")
		}
	}
	if c.DatabaseURL == "" && c.DataPath == "" {
		return errors.New("one of DATABASE_URL or DATA_PATH is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT %d out of range", c.Port)
	}
	if !strings.HasPrefix(c.WSPath, "/") {
		return fmt.Errorf("WS_PATH %q must start with /", c.WSPath)
	}
	if c.RateLimitMPS < 0 || c.RateLimitBurst < 0 {
		return errors.New("rate limits must not be negative")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// Addr is the listen address for Port.
func (c *Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

// RateLimited reports whether inbound messages are rate limited.
func (c *Config) RateLimited() bool {
	return c.RateLimitMPS > 0
}

func get(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value: %w", key, err)
	}
	return n, nil
}

func getFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value: %w", key, err)
	}
	return f, nil
}

func getBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s value: %w", key, err)
	}
	return b, nil
}

// parseTokens reads "token=playerId,token2=playerId2".
func parseTokens(s string) (map[string]string, error) {
	out := map[string]string{}
	if strings.TrimSpace(s) == "" {
		return out, nil
	}
	for _, pair := range strings.Split(s, ",") {
		tok, id, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || tok == "" || id == "" {
			return nil, fmt.Errorf("invalid DEV_TOKENS entry %q", pair)
		}
		out[tok] = id
	}
	return out, nil
}
