package internal

import "testing"

func validConfig() *Config {
	cfg := NewDefaultConfig()
	cfg.Repo.URL = "https://repo.example/deploy"
	return cfg
}

func TestConfigValidate(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}

func TestConfigValidateFailures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing repo url", func(c *Config) { c.Repo.URL = "" }},
		{"bad repo url", func(c *Config) { c.Repo.URL = "not a url" }},
		{"bad license url", func(c *Config) { c.Repo.LicenseURL = "not a url" }},
		{"missing managed dir", func(c *Config) { c.Client.ManagedDir = "" }},
		{"missing sqlite path", func(c *Config) { c.SQLite.Path = "" }},
		{"port out of range", func(c *Config) { c.App.HTTP.Port = 70000 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("want validation error")
			}
		})
	}
}

func TestHTTPConfig(t *testing.T) {
	c := HTTPConfig{Port: 8787}
	if c.Address() != "127.0.0.1:8787" {
		t.Errorf("Address = %s", c.Address())
	}
	if !c.Enabled() {
		t.Error("port 8787 should enable the API")
	}
	if (HTTPConfig{}).Enabled() {
		t.Error("port 0 should disable the API")
	}
}
