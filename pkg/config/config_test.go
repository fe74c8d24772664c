package config

import (
	"testing"
	"time"
)

// helper to build a minimal valid config that can be tweaked in tests.
func validBaseConfig() *Config {
	cfg := DefaultConfig()
	cfg.RateLimiting.Enabled = true
	cfg.RateLimiting.HTTP.RequestsPerSecond = 10
	cfg.RateLimiting.HTTP.Burst = 20
	cfg.RateLimiting.WebSocket.MessagesPerSecond = 50
	cfg.RateLimiting.WebSocket.Burst = 100
	cfg.RateLimiting.WebSocket.MaxMessageSizeBytes = 65536
	return cfg
}

func TestDefaultConfig_CallConstants(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Call.RingingTimeout != 60*time.Second {
		t.Errorf("RingingTimeout = %v, want 60s", cfg.Call.RingingTimeout)
	}
	if cfg.Call.ConnectTimeout != 30*time.Second {
		t.Errorf("ConnectTimeout = %v, want 30s", cfg.Call.ConnectTimeout)
	}
	if cfg.Call.ReconnectGrace != 10*time.Second {
		t.Errorf("ReconnectGrace = %v, want 10s", cfg.Call.ReconnectGrace)
	}
	if cfg.Call.SampleInterval != 5*time.Second {
		t.Errorf("SampleInterval = %v, want 5s", cfg.Call.SampleInterval)
	}
}

func TestDefaultConfig_BitrateBounds(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Bitrate.Video.MinBps != 100_000 || cfg.Bitrate.Video.MaxBps != 2_000_000 {
		t.Errorf("video bounds = [%d, %d], want [100000, 2000000]",
			cfg.Bitrate.Video.MinBps, cfg.Bitrate.Video.MaxBps)
	}
	if cfg.Bitrate.Audio.MinBps != 32_000 || cfg.Bitrate.Audio.MaxBps != 128_000 {
		t.Errorf("audio bounds = [%d, %d], want [32000, 128000]",
			cfg.Bitrate.Audio.MinBps, cfg.Bitrate.Audio.MaxBps)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got: %v", err)
	}
}

func TestValidate_QualityThresholdsMustWiden(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Quality.Good.MaxRTT = 50 * time.Millisecond // tighter than excellent

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for non-widening thresholds, got nil")
	}
}

func TestValidate_BitrateBaselineOutOfBounds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Bitrate.Video.BaselineBps = 3_000_000

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for baseline above ceiling, got nil")
	}
}

func TestValidate_RateLimitingDisabled_AllowsZeroValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimiting.Enabled = false
	// Zero out rate limiting values to ensure they are ignored when disabled.
	cfg.RateLimiting.HTTP.RequestsPerSecond = 0
	cfg.RateLimiting.HTTP.Burst = 0
	cfg.RateLimiting.WebSocket.MessagesPerSecond = 0
	cfg.RateLimiting.WebSocket.Burst = 0
	cfg.RateLimiting.WebSocket.MaxMessageSizeBytes = 0

	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected config to be valid when rate limiting disabled, got error: %v", err)
	}
}

func TestValidate_RateLimiting_InvalidValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{
			name: "http rps must be > 0",
			mutate: func(c *Config) {
				c.RateLimiting.HTTP.RequestsPerSecond = 0
			},
		},
		{
			name: "http burst must be > 0",
			mutate: func(c *Config) {
				c.RateLimiting.HTTP.Burst = 0
			},
		},
		{
			name: "ws messages per second must be > 0",
			mutate: func(c *Config) {
				c.RateLimiting.WebSocket.MessagesPerSecond = 0
			},
		},
		{
			name: "ws burst must be > 0",
			mutate: func(c *Config) {
				c.RateLimiting.WebSocket.Burst = 0
			},
		},
		{
			name: "ws max message size must be >= 0",
			mutate: func(c *Config) {
				c.RateLimiting.WebSocket.MaxMessageSizeBytes = -1
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validBaseConfig()
			// ensure other timing fields are valid to isolate rate limiting
			cfg.Server.ReadTimeout = time.Second
			cfg.Server.WriteTimeout = time.Second
			cfg.Signal.PingInterval = time.Second
			cfg.Signal.PongTimeout = time.Second
			tc.mutate(cfg)

			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error for case %q, got nil", tc.name)
			}
		})
	}
}
