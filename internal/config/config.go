// Package config loads the replay server configuration from config.yaml
// and VCR_-prefixed environment variables.
package config

import (
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/tjfontaine/cassette/cassette"
)

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Cassettes CassettesConfig `koanf:"cassettes"`
	Storage   StorageConfig   `koanf:"storage"`
}

type ServerConfig struct {
	Port int `koanf:"port"`

	// Timeout bounds request handling, in seconds.
	Timeout int `koanf:"timeout"`
}

// CassettesConfig selects the cassette directory and which optional
// cassette features the decoder accepts.
type CassettesConfig struct {
	Dir      string `koanf:"dir"`
	JSON     bool   `koanf:"json"`
	Matching bool   `koanf:"matching"`
	Regex    bool   `koanf:"regex"`
}

// Capabilities converts the feature toggles into the decoder's
// capability set.
func (c CassettesConfig) Capabilities() cassette.Capabilities {
	return cassette.Capabilities{
		JSON:     c.JSON,
		Matching: c.Matching,
		Regex:    c.Regex,
	}
}

type StorageConfig struct {
	// Path is the SQLite database file for the replay hit log. Empty
	// disables persistence.
	Path string `koanf:"path"`
}

func Load() (*Config, error) {
	k := koanf.New(".")

	// Try to load from config.yaml file first
	if err := k.Load(file.Provider("config.yaml"), yaml.Parser()); err != nil {
		// File not found is OK, we'll use env vars
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	// Load environment variables (can override file config)
	if err := k.Load(env.Provider("VCR_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "VCR_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	// Default values
	if !k.Exists("server.port") {
		k.Set("server.port", 8080)
	}
	if !k.Exists("server.timeout") {
		k.Set("server.timeout", 30)
	}
	if !k.Exists("cassettes.dir") {
		k.Set("cassettes.dir", "cassettes")
	}
	for _, capability := range []string{"json", "matching", "regex"} {
		if !k.Exists("cassettes." + capability) {
			k.Set("cassettes."+capability, true)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
