// Package config loads the JSON configuration file, substituting
// ${VAR} and ${VAR:default} references from the environment.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
)

// Config is the top-level configuration structure.
type Config struct {
	Server    ServerConfig     `json:"server"`
	Agent     AgentConfig      `json:"agent"`
	Providers []ProviderConfig `json:"providers"`
	Roles     RolesConfig      `json:"roles"`
	Storage   StorageConfig    `json:"storage"`
	Tools     []ToolConfig     `json:"tools"`
}

type ServerConfig struct {
	Port     int    `json:"port"`
	LogLevel string `json:"log_level"`
}

// AgentConfig bounds the reasoning loop.
type AgentConfig struct {
	MaxCycles    int `json:"max_cycles"`
	ParseRetries int `json:"parse_retries"`
}

type ProviderConfig struct {
	ID       string `json:"id"`
	Type     string `json:"type"` // openai | ollama
	Name     string `json:"name"`
	Endpoint string `json:"endpoint"`
	APIKey   string `json:"api_key"`
	Model    string `json:"model"`
}

// RolesConfig binds the reasoning and general roles to provider IDs.
// Fallback entries are optional.
type RolesConfig struct {
	Reasoning RoleBinding `json:"reasoning"`
	General   RoleBinding `json:"general"`
}

type RoleBinding struct {
	Primary  string `json:"primary"`
	Fallback string `json:"fallback,omitempty"`
}

// StorageConfig selects where memory snapshots live. Type is one of
// file, redis, postgres or memory.
type StorageConfig struct {
	Type        string `json:"type"`
	Dir         string `json:"dir,omitempty"`
	RedisURL    string `json:"redis_url,omitempty"`
	PostgresDSN string `json:"postgres_dsn,omitempty"`
}

// ToolConfig declares one external tool exposed to the agent.
type ToolConfig struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// envVarRe matches ${VAR} and ${VAR:default} patterns.
var envVarRe = regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

// Load reads a JSON config file and substitutes environment variable references.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	resolved := envVarRe.ReplaceAllStringFunc(string(data), func(match string) string {
		parts := envVarRe.FindStringSubmatch(match)
		name := parts[1]
		defaultVal := parts[2]
		if v := os.Getenv(name); v != "" {
			return v
		}
		return defaultVal
	})

	var cfg Config
	if err := json.Unmarshal([]byte(resolved), &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Agent.MaxCycles == 0 {
		c.Agent.MaxCycles = 15
	}
	if c.Agent.ParseRetries == 0 {
		c.Agent.ParseRetries = 2
	}
	if c.Storage.Type == "" {
		c.Storage.Type = "file"
	}
	if c.Storage.Type == "file" && c.Storage.Dir == "" {
		c.Storage.Dir = "data/memory"
	}
}

// Provider returns the provider config with the given ID.
func (c *Config) Provider(id string) (ProviderConfig, bool) {
	for _, p := range c.Providers {
		if p.ID == id {
			return p, true
		}
	}
	return ProviderConfig{}, false
}
