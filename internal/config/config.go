package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix                  = "CANVAS"
	defaultHTTPAddress         = "0.0.0.0:3000"
	defaultLogLevel            = "info"
	defaultLogFormat           = "json"
	defaultAllowedOrigin       = "*"
	defaultSendBuffer          = 256
	defaultMaxMessageBytes     = 1 << 20
	defaultPingIntervalSeconds = 25
)

// AppConfig captures runtime configuration for the whiteboard server.
type AppConfig struct {
	HTTPAddress     string
	LogLevel        string
	LogFormat       string
	AllowedOrigins  []string
	SendBuffer      int
	MaxMessageBytes int64
	PingInterval    time.Duration
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("log.format", defaultLogFormat)
	configViper.SetDefault("cors.allowed_origins", []string{defaultAllowedOrigin})
	configViper.SetDefault("ws.send_buffer", defaultSendBuffer)
	configViper.SetDefault("ws.max_message_bytes", defaultMaxMessageBytes)
	configViper.SetDefault("ws.ping_interval_seconds", defaultPingIntervalSeconds)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:     strings.TrimSpace(configViper.GetString("http.address")),
		LogLevel:        configViper.GetString("log.level"),
		LogFormat:       configViper.GetString("log.format"),
		AllowedOrigins:  normalizeOrigins(configViper.GetStringSlice("cors.allowed_origins")),
		SendBuffer:      configViper.GetInt("ws.send_buffer"),
		MaxMessageBytes: configViper.GetInt64("ws.max_message_bytes"),
		PingInterval:    time.Duration(configViper.GetInt("ws.ping_interval_seconds")) * time.Second,
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if c.HTTPAddress == "" {
		return fmt.Errorf("http.address is required")
	}
	if c.SendBuffer <= 0 {
		return fmt.Errorf("ws.send_buffer must be positive, got %d", c.SendBuffer)
	}
	if c.MaxMessageBytes <= 0 {
		return fmt.Errorf("ws.max_message_bytes must be positive, got %d", c.MaxMessageBytes)
	}
	if c.PingInterval <= 0 {
		return fmt.Errorf("ws.ping_interval_seconds must be positive")
	}
	return nil
}

// Env values arrive as one comma separated string rather than a slice.
func normalizeOrigins(raw []string) []string {
	origins := make([]string, 0, len(raw))
	for _, entry := range raw {
		for _, origin := range strings.Split(entry, ",") {
			if trimmed := strings.TrimSpace(origin); trimmed != "" {
				origins = append(origins, trimmed)
			}
		}
	}
	if len(origins) == 0 {
		return []string{defaultAllowedOrigin}
	}
	return origins
}
