// Package config loads the axochat TOML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// DefaultPath is used when the CONFIG_PATH environment variable is unset.
const DefaultPath = "./axochat.toml"

type Config struct {
	Net        NetConfig   `toml:"net"`
	Message    MsgConfig   `toml:"message"`
	Moderation ModConfig   `toml:"moderation"`
	Auth       *AuthConfig `toml:"auth,omitempty"`
}

type NetConfig struct {
	// Address the server will listen at, host:port.
	Address string `toml:"address"`

	// TLS certificate and key files. TLS is enabled when both are set.
	CertFile string `toml:"cert_file,omitempty"`
	KeyFile  string `toml:"key_file,omitempty"`
}

type MsgConfig struct {
	// Maximum message length in code points.
	MaxLength int `toml:"max_length"`

	// Maximum amount of messages per user within CountDuration.
	MaxMessages   int      `toml:"max_messages"`
	CountDuration Duration `toml:"count_duration"`
}

type ModConfig struct {
	// Line-separated files of moderator and banned uuids.
	Moderators string `toml:"moderators"`
	Banned     string `toml:"banned"`
}

type AuthConfig struct {
	// File containing the symmetric JWT key.
	KeyFile string `toml:"key_file"`

	// JWT algorithm, e.g. HS256. Must be an HMAC method.
	Algorithm string `toml:"algorithm"`

	// How long an issued token stays valid.
	ValidTime Duration `toml:"valid_time"`
}

func Default() *Config {
	return &Config{
		Net: NetConfig{Address: "127.0.0.1:8080"},
		Message: MsgConfig{
			MaxLength:     100,
			MaxMessages:   40,
			CountDuration: Duration(60 * time.Second),
		},
		Moderation: ModConfig{
			Moderators: "./moderators.txt",
			Banned:     "./banned.txt",
		},
	}
}

// Path returns the configuration file path, honoring CONFIG_PATH.
func Path() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return DefaultPath
}

// Read loads the configuration at path. When no file exists there, the
// defaults are written to it and returned.
func Read(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg := Default()
		out, err := toml.Marshal(cfg)
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(path, out, 0o644); err != nil {
			return nil, fmt.Errorf("writing default config: %w", err)
		}
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

// Duration is a time.Duration rendered as a string ("60s") in TOML.
type Duration time.Duration

func (d Duration) Duration() time.Duration { return time.Duration(d) }

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}
