package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Address         string        `yaml:"address"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Signal struct {
		Address      string        `yaml:"address"`
		PingInterval time.Duration `yaml:"ping_interval"`
		PongTimeout  time.Duration `yaml:"pong_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
	} `yaml:"signal"`

	Call struct {
		RingingTimeout time.Duration `yaml:"ringing_timeout"`
		ConnectTimeout time.Duration `yaml:"connect_timeout"`
		ReconnectGrace time.Duration `yaml:"reconnect_grace"`
		SampleInterval time.Duration `yaml:"sample_interval"`
		EvictAfter     time.Duration `yaml:"evict_after"`
	} `yaml:"call"`

	Quality struct {
		// Per-tier ceilings; a sample at or below both belongs to the tier.
		Excellent QualityThreshold `yaml:"excellent"`
		Good      QualityThreshold `yaml:"good"`
		Fair      QualityThreshold `yaml:"fair"`
		Poor      QualityThreshold `yaml:"poor"`
	} `yaml:"quality"`

	Bitrate struct {
		Video BitrateBounds `yaml:"video"`
		Audio BitrateBounds `yaml:"audio"`
	} `yaml:"bitrate"`

	WebRTC struct {
		ICEServers []struct {
			URLs       []string `yaml:"urls"`
			Username   string   `yaml:"username,omitempty"`
			Credential string   `yaml:"credential,omitempty"`
		} `yaml:"ice_servers"`
	} `yaml:"webrtc"`

	Monitoring struct {
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Tracing struct {
		Enabled    bool    `yaml:"enabled"`
		JaegerURL  string  `yaml:"jaeger_url"`
		SampleRate float64 `yaml:"sample_rate"`
	} `yaml:"tracing"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	Redis struct {
		Enabled      bool   `yaml:"enabled"`
		Address      string `yaml:"address"`
		Password     string `yaml:"password"`
		DB           int    `yaml:"db"`
		PoolSize     int    `yaml:"pool_size"`
		EventChannel string `yaml:"event_channel"`
	} `yaml:"redis"`

	Auth struct {
		JWTSecret      string   `yaml:"jwt_secret"`
		AccessTokenTTL time.Duration `yaml:"access_token_ttl"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"auth"`

	RateLimiting struct {
		Enabled bool `yaml:"enabled"`

		HTTP struct {
			RequestsPerSecond float64 `yaml:"requests_per_second"`
			Burst             int     `yaml:"burst"`
			MaxConcurrent     int     `yaml:"max_concurrent"`
		} `yaml:"http"`

		WebSocket struct {
			MessagesPerSecond   float64 `yaml:"messages_per_second"`
			Burst               int     `yaml:"burst"`
			MaxMessageSizeBytes int64   `yaml:"max_message_size_bytes"`
		} `yaml:"websocket"`
	} `yaml:"rate_limiting"`
}

type QualityThreshold struct {
	MaxRTT  time.Duration `yaml:"max_rtt"`
	MaxLoss float64       `yaml:"max_loss"`
}

type BitrateBounds struct {
	MinBps      int `yaml:"min_bps"`
	MaxBps      int `yaml:"max_bps"`
	BaselineBps int `yaml:"baseline_bps"`
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	// Server
	if c.Server.Address == "" {
		return fmt.Errorf("server.address must not be empty")
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be > 0")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be > 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be > 0")
	}

	// Signal
	if c.Signal.Address == "" {
		return fmt.Errorf("signal.address must not be empty")
	}
	if c.Signal.PingInterval <= 0 {
		return fmt.Errorf("signal.ping_interval must be > 0")
	}
	if c.Signal.PongTimeout <= 0 {
		return fmt.Errorf("signal.pong_timeout must be > 0")
	}
	if c.Signal.WriteTimeout <= 0 {
		return fmt.Errorf("signal.write_timeout must be > 0")
	}

	// Call timers
	if c.Call.RingingTimeout <= 0 {
		return fmt.Errorf("call.ringing_timeout must be > 0")
	}
	if c.Call.ConnectTimeout <= 0 {
		return fmt.Errorf("call.connect_timeout must be > 0")
	}
	if c.Call.ReconnectGrace <= 0 {
		return fmt.Errorf("call.reconnect_grace must be > 0")
	}
	if c.Call.SampleInterval <= 0 {
		return fmt.Errorf("call.sample_interval must be > 0")
	}
	if c.Call.EvictAfter < 0 {
		return fmt.Errorf("call.evict_after must be >= 0")
	}

	// Quality thresholds must be strictly ordered worst-to-best
	tiers := []QualityThreshold{c.Quality.Excellent, c.Quality.Good, c.Quality.Fair, c.Quality.Poor}
	for i, t := range tiers {
		if t.MaxRTT <= 0 {
			return fmt.Errorf("quality threshold %d: max_rtt must be > 0", i)
		}
		if t.MaxLoss <= 0 || t.MaxLoss >= 1 {
			return fmt.Errorf("quality threshold %d: max_loss must be in (0, 1)", i)
		}
		if i > 0 && (t.MaxRTT <= tiers[i-1].MaxRTT || t.MaxLoss <= tiers[i-1].MaxLoss) {
			return fmt.Errorf("quality thresholds must widen from excellent to poor")
		}
	}

	// Bitrate bounds
	for _, b := range []struct {
		name   string
		bounds BitrateBounds
	}{{"video", c.Bitrate.Video}, {"audio", c.Bitrate.Audio}} {
		if b.bounds.MinBps <= 0 {
			return fmt.Errorf("bitrate.%s.min_bps must be > 0", b.name)
		}
		if b.bounds.MaxBps <= b.bounds.MinBps {
			return fmt.Errorf("bitrate.%s.max_bps must be > min_bps", b.name)
		}
		if b.bounds.BaselineBps < b.bounds.MinBps || b.bounds.BaselineBps > b.bounds.MaxBps {
			return fmt.Errorf("bitrate.%s.baseline_bps must be within [min_bps, max_bps]", b.name)
		}
	}

	// Monitoring
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort <= 0 {
		return fmt.Errorf("monitoring.prometheus_port must be > 0 when prometheus_enabled=true")
	}

	// Logging
	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Address == "" {
			return fmt.Errorf("redis.address must not be empty when redis.enabled=true")
		}
		if c.Redis.PoolSize <= 0 {
			return fmt.Errorf("redis.pool_size must be > 0 when redis.enabled=true")
		}
	}

	// Auth
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret must not be empty")
	}
	if c.Auth.AccessTokenTTL <= 0 {
		return fmt.Errorf("auth.access_token_ttl must be > 0")
	}

	// Rate limiting
	if c.RateLimiting.Enabled {
		if c.RateLimiting.HTTP.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate_limiting.http.requests_per_second must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.HTTP.Burst <= 0 {
			return fmt.Errorf("rate_limiting.http.burst must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.WebSocket.MessagesPerSecond <= 0 {
			return fmt.Errorf("rate_limiting.websocket.messages_per_second must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.WebSocket.Burst <= 0 {
			return fmt.Errorf("rate_limiting.websocket.burst must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.WebSocket.MaxMessageSizeBytes < 0 {
			return fmt.Errorf("rate_limiting.websocket.max_message_size_bytes must be >= 0 when rate limiting is enabled")
		}
	}

	return nil
}

// Load reads configuration from YAML file, applies defaults and env overrides.
func Load(configPath string) (*Config, error) {
	// If file does not exist, fall back to defaults
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns configuration with sane defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Server.Address = ":8080"
	cfg.Server.ReadTimeout = 30 * time.Second
	cfg.Server.WriteTimeout = 30 * time.Second
	cfg.Server.ShutdownTimeout = 30 * time.Second

	cfg.Signal.Address = ":8081"
	cfg.Signal.PingInterval = 30 * time.Second
	cfg.Signal.PongTimeout = 60 * time.Second
	cfg.Signal.WriteTimeout = 10 * time.Second

	// Fixed protocol constants; not runtime-negotiated with clients.
	cfg.Call.RingingTimeout = 60 * time.Second
	cfg.Call.ConnectTimeout = 30 * time.Second
	cfg.Call.ReconnectGrace = 10 * time.Second
	cfg.Call.SampleInterval = 5 * time.Second
	cfg.Call.EvictAfter = 30 * time.Second

	cfg.Quality.Excellent = QualityThreshold{MaxRTT: 100 * time.Millisecond, MaxLoss: 0.01}
	cfg.Quality.Good = QualityThreshold{MaxRTT: 200 * time.Millisecond, MaxLoss: 0.03}
	cfg.Quality.Fair = QualityThreshold{MaxRTT: 400 * time.Millisecond, MaxLoss: 0.05}
	cfg.Quality.Poor = QualityThreshold{MaxRTT: 800 * time.Millisecond, MaxLoss: 0.10}

	cfg.Bitrate.Video = BitrateBounds{MinBps: 100_000, MaxBps: 2_000_000, BaselineBps: 800_000}
	cfg.Bitrate.Audio = BitrateBounds{MinBps: 32_000, MaxBps: 128_000, BaselineBps: 64_000}

	cfg.WebRTC.ICEServers = []struct {
		URLs       []string `yaml:"urls"`
		Username   string   `yaml:"username,omitempty"`
		Credential string   `yaml:"credential,omitempty"`
	}{
		{URLs: []string{"stun:stun.l.google.com:19302"}},
	}

	cfg.Monitoring.PrometheusEnabled = true
	cfg.Monitoring.PrometheusPort = 9090

	cfg.Tracing.Enabled = false
	cfg.Tracing.JaegerURL = "http://localhost:14268/api/traces"
	cfg.Tracing.SampleRate = 1.0

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	cfg.Redis.Enabled = false
	cfg.Redis.Address = "localhost:6379"
	cfg.Redis.DB = 0
	cfg.Redis.PoolSize = 10
	cfg.Redis.EventChannel = "callnet:events"

	cfg.Auth.JWTSecret = "change-me-in-production"
	cfg.Auth.AccessTokenTTL = 15 * time.Minute
	cfg.Auth.AllowedOrigins = []string{"*"}

	cfg.RateLimiting.Enabled = false
	cfg.RateLimiting.HTTP.RequestsPerSecond = 50
	cfg.RateLimiting.HTTP.Burst = 100
	cfg.RateLimiting.HTTP.MaxConcurrent = 0
	cfg.RateLimiting.WebSocket.MessagesPerSecond = 100
	cfg.RateLimiting.WebSocket.Burst = 200
	cfg.RateLimiting.WebSocket.MaxMessageSizeBytes = 64 * 1024

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if addr := os.Getenv("CALLNET_SERVER_ADDRESS"); addr != "" {
		c.Server.Address = addr
	}
	if addr := os.Getenv("CALLNET_SIGNAL_ADDRESS"); addr != "" {
		c.Signal.Address = addr
	}
	if level := os.Getenv("CALLNET_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if secret := os.Getenv("CALLNET_JWT_SECRET"); secret != "" {
		c.Auth.JWTSecret = secret
	}
	if addr := os.Getenv("CALLNET_REDIS_ADDRESS"); addr != "" {
		c.Redis.Address = addr
	}
}
