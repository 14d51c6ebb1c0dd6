package store

import (
	"fmt"
	"os"
	"strings"
)

// Config holds configuration for one store adapter. Values come from the
// loaded config file section; environment variables act as a fallback so
// tokens can stay out of the file.
type Config struct {
	// Prefix is the config section name for this store (e.g. "grist").
	Prefix string

	// Values are the section's key/value pairs.
	Values map[string]string
}

// NewConfig creates an adapter config with the given prefix and values.
func NewConfig(prefix string, values map[string]string) *Config {
	if values == nil {
		values = make(map[string]string)
	}
	return &Config{Prefix: prefix, Values: values}
}

// Get retrieves a config value by key, falling back to the environment.
// Example: for prefix "grist" and key "api_token", the fallback variable
// is PLANSYNC_GRIST_API_TOKEN.
func (c *Config) Get(key string) string {
	if v, ok := c.Values[key]; ok && v != "" {
		return v
	}
	if v := os.Getenv(c.envVarName(key)); v != "" {
		return v
	}
	return ""
}

// GetRequired is like Get but returns an error naming the missing key and
// its environment fallback when the value is empty.
func (c *Config) GetRequired(key string) (string, error) {
	if v := c.Get(key); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("%s.%s not configured (set it in the config file or export %s)",
		c.Prefix, key, c.envVarName(key))
}

// GetDefault returns the value for key, or def when unset.
func (c *Config) GetDefault(key, def string) string {
	if v := c.Get(key); v != "" {
		return v
	}
	return def
}

func (c *Config) envVarName(key string) string {
	name := "PLANSYNC_" + c.Prefix + "_" + key
	name = strings.ReplaceAll(name, ".", "_")
	return strings.ToUpper(name)
}
