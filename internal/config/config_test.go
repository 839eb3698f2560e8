package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadSubstitutesEnvVars(t *testing.T) {
	t.Setenv("SKYWATCH_API_KEY", "secret-key")
	path := writeConfig(t, `{
		"server": {"port": 9000},
		"agent": {"max_cycles": 8},
		"providers": [
			{"id": "oai", "type": "openai", "api_key": "${SKYWATCH_API_KEY}", "model": "${SKYWATCH_MODEL:gpt-4}"}
		],
		"roles": {"reasoning": {"primary": "oai"}, "general": {"primary": "oai"}},
		"storage": {"type": "file", "dir": "/tmp/mem"}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	p, ok := cfg.Provider("oai")
	if !ok {
		t.Fatal("provider oai missing")
	}
	if p.APIKey != "secret-key" {
		t.Errorf("api_key = %q", p.APIKey)
	}
	if p.Model != "gpt-4" {
		t.Errorf("default not applied: model = %q", p.Model)
	}
	if cfg.Agent.MaxCycles != 8 || cfg.Server.Port != 9000 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 8080 || cfg.Agent.MaxCycles != 15 || cfg.Agent.ParseRetries != 2 {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if cfg.Storage.Type != "file" || cfg.Storage.Dir != "data/memory" {
		t.Errorf("storage defaults not applied: %+v", cfg.Storage)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.json"); err == nil {
		t.Fatal("expected error for missing file")
	}
}
