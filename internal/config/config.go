package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. ROOMCHAT_TOKEN.
const EnvPrefix = "ROOMCHAT"

// Config represents the global ~/.roomchat/config.toml.
type Config struct {
	DefaultProfile string `toml:"default_profile"`
}

// Load reads config from the given path. Returns zero config and error if file missing.
func Load(path string) (*Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	return writeTOML(path, cfg)
}

// Duration is a time.Duration written as "3s" in TOML.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Client holds the per-profile client settings stored in
// ~/.roomchat/profiles/<name>/client.toml.
type Client struct {
	APIBaseURL       string   `toml:"api_base_url"`
	Token            string   `toml:"token,omitempty"`
	UserID           string   `toml:"user_id"`
	Username         string   `toml:"username"`
	Language         string   `toml:"language"`
	HistoryPageSize  int      `toml:"history_page_size"`
	TypingExpiry     Duration `toml:"typing_expiry"`
	TypingIdle       Duration `toml:"typing_idle"`
	HandshakeTimeout Duration `toml:"handshake_timeout"`
	WriteTimeout     Duration `toml:"write_timeout"`
	LogLevel         string   `toml:"log_level"`
}

// DefaultClient returns the settings used for anything left unset.
func DefaultClient() Client {
	return Client{
		APIBaseURL:       "http://localhost:8080",
		Language:         "en",
		HistoryPageSize:  50,
		TypingExpiry:     Duration(3 * time.Second),
		TypingIdle:       Duration(2500 * time.Millisecond),
		HandshakeTimeout: Duration(10 * time.Second),
		WriteTimeout:     Duration(5 * time.Second),
		LogLevel:         "info",
	}
}

// LoadClient reads client settings from path, falling back to defaults when
// the file does not exist, then applies environment overrides (including a
// .env file in the working directory).
func LoadClient(path string) (*Client, error) {
	cfg := DefaultClient()
	if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SaveClient writes client settings to path.
func SaveClient(path string, cfg *Client) error {
	return writeTOML(path, cfg)
}

func (c *Client) applyEnv() error {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	for key, dst := range map[string]*string{
		"api_base_url": &c.APIBaseURL,
		"token":        &c.Token,
		"user_id":      &c.UserID,
		"username":     &c.Username,
		"language":     &c.Language,
		"log_level":    &c.LogLevel,
	} {
		if s := v.GetString(key); s != "" {
			*dst = s
		}
	}
	if n := v.GetInt("history_page_size"); n > 0 {
		c.HistoryPageSize = n
	}
	for key, dst := range map[string]*Duration{
		"typing_expiry":     &c.TypingExpiry,
		"typing_idle":       &c.TypingIdle,
		"handshake_timeout": &c.HandshakeTimeout,
		"write_timeout":     &c.WriteTimeout,
	} {
		s := v.GetString(key)
		if s == "" {
			continue
		}
		if err := dst.UnmarshalText([]byte(s)); err != nil {
			return fmt.Errorf("invalid %s_%s: %w", EnvPrefix, strings.ToUpper(key), err)
		}
	}
	return nil
}

// Validate checks the settings a session cannot run without.
func (c *Client) Validate() error {
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("invalid api_base_url %q", c.APIBaseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("api_base_url must be http or https, got %q", u.Scheme)
	}
	if c.HistoryPageSize <= 0 || c.HistoryPageSize > 200 {
		return fmt.Errorf("history_page_size must be between 1 and 200, got %d", c.HistoryPageSize)
	}
	if c.TypingExpiry <= 0 || c.TypingIdle <= 0 {
		return fmt.Errorf("typing durations must be positive")
	}
	return nil
}

// Server holds the simulated backend settings. Flags override these.
type Server struct {
	Addr          string
	DBPath        string
	RedisURL      string
	OpenAIAPIKey  string
	OpenAIModel   string
	AllowedOrigin string
}

// LoadServer reads simulated backend settings from the environment.
func LoadServer() Server {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("sim.addr", ":8080")
	v.SetDefault("sim.db", "roomchat-sim.db")
	v.SetDefault("openai.model", "gpt-4o-mini")

	return Server{
		Addr:          v.GetString("sim.addr"),
		DBPath:        v.GetString("sim.db"),
		RedisURL:      v.GetString("redis.url"),
		OpenAIAPIKey:  v.GetString("openai.api_key"),
		OpenAIModel:   v.GetString("openai.model"),
		AllowedOrigin: v.GetString("sim.allowed_origin"),
	}
}

func writeTOML(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(v)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
