package config

import (
	"testing"
	"time"
)

func TestLoadUsesDefaults(t *testing.T) {
	cfg, err := Load(NewViper())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTPAddress != defaultHTTPAddress {
		t.Fatalf("unexpected address: %s", cfg.HTTPAddress)
	}
	if cfg.SendBuffer != defaultSendBuffer {
		t.Fatalf("unexpected send buffer: %d", cfg.SendBuffer)
	}
	if cfg.PingInterval != defaultPingIntervalSeconds*time.Second {
		t.Fatalf("unexpected ping interval: %s", cfg.PingInterval)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "*" {
		t.Fatalf("unexpected origins: %v", cfg.AllowedOrigins)
	}
}

func TestLoadSplitsCommaSeparatedOrigins(t *testing.T) {
	configViper := NewViper()
	configViper.Set("cors.allowed_origins", []string{"https://a.example.com, https://b.example.com", " "})

	cfg, err := Load(configViper)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := []string{"https://a.example.com", "https://b.example.com"}
	if len(cfg.AllowedOrigins) != len(expected) {
		t.Fatalf("unexpected origins: %v", cfg.AllowedOrigins)
	}
	for index, origin := range expected {
		if cfg.AllowedOrigins[index] != origin {
			t.Fatalf("origin %d: got %s, want %s", index, cfg.AllowedOrigins[index], origin)
		}
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value interface{}
	}{
		{name: "empty-address", key: "http.address", value: "  "},
		{name: "zero-buffer", key: "ws.send_buffer", value: 0},
		{name: "negative-message-size", key: "ws.max_message_bytes", value: -1},
		{name: "zero-ping", key: "ws.ping_interval_seconds", value: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configViper := NewViper()
			configViper.Set(tt.key, tt.value)
			if _, err := Load(configViper); err == nil {
				t.Fatalf("expected validation error for %s", tt.key)
			}
		})
	}
}
