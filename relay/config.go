package relay

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the relay server configuration.
type Config struct {
	// Address to listen on (e.g., ":5000")
	ListenAddr string `toml:"listen"`

	// Upstream OpenAI-compatible API base URL (e.g., "https://api.openai.com/v1").
	// Both models are reached through the same endpoint.
	UpstreamURL string `toml:"api"`

	// APIKey authenticates against the upstream API.
	APIKey string `toml:"api_key"`

	// Model is the completion model name (e.g., "gpt-4o-mini").
	Model string `toml:"model"`

	// SafetyModel is the classifier model name (e.g., "meta-llama/Llama-Guard-7b").
	SafetyModel string `toml:"safety_model"`

	// DBPath is the path to the SQLite transcript database.
	// Use ":memory:" for an in-memory database, or empty to keep
	// transcripts in process memory.
	DBPath string `toml:"db"`
}

// LoadFile reads a TOML config file into c. Fields absent from the file
// keep their current values.
func (c *Config) LoadFile(path string) error {
	if _, err := toml.DecodeFile(path, c); err != nil {
		return fmt.Errorf("decode config file %s: %w", path, err)
	}
	return nil
}

// Validate reports configuration errors. These are fatal at startup;
// per-turn failures never are.
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.UpstreamURL, "http://") && !strings.HasPrefix(c.UpstreamURL, "https://") {
		return fmt.Errorf("api endpoint must be a valid HTTP/HTTPS URL, got %q", c.UpstreamURL)
	}
	if c.APIKey == "" {
		return fmt.Errorf("api key is required")
	}
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	if c.SafetyModel == "" {
		return fmt.Errorf("safety model is required")
	}
	return nil
}
