package model

import "time"

// Config is the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" json:"server"`
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`
	Cache     CacheConfig     `yaml:"cache" json:"cache"`
	LLM       LLMConfig       `yaml:"llm" json:"llm"`
	Output    OutputConfig    `yaml:"output" json:"output"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host            string        `yaml:"host" json:"host"`
	Port            int           `yaml:"port" json:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// RateLimitConfig holds fixed-window admission control settings
type RateLimitConfig struct {
	Requests int           `yaml:"requests" json:"requests"` // Admitted requests per window per client
	Window   time.Duration `yaml:"window" json:"window"`     // Fixed window length
}

// CacheConfig holds cache tier settings
type CacheConfig struct {
	RedisAddr            string        `yaml:"redis_addr" json:"redis_addr"` // Empty disables the primary tier
	RedisPassword        string        `yaml:"redis_password" json:"-"`
	RedisDB              int           `yaml:"redis_db" json:"redis_db"`
	TTL                  time.Duration `yaml:"ttl" json:"ttl"`                                       // Default analysis result TTL
	StaleWhileRevalidate time.Duration `yaml:"stale_while_revalidate" json:"stale_while_revalidate"` // Extra window for serving stale entries
}

// LLMConfig holds model provider configuration
type LLMConfig struct {
	Provider          string  `yaml:"provider" json:"provider"` // openai, anthropic, ollama
	Model             string  `yaml:"model" json:"model"`
	APIKey            string  `yaml:"api_key" json:"-"`
	BaseURL           string  `yaml:"base_url" json:"base_url"`
	Timeout           int     `yaml:"timeout" json:"timeout"` // Seconds, blocking completions only
	MaxTokens         int     `yaml:"max_tokens" json:"max_tokens"`
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second"` // Outbound throttle toward the provider
	Burst             int     `yaml:"burst" json:"burst"`
}

// OutputConfig holds logging and CLI output settings
type OutputConfig struct {
	LogLevel string `yaml:"log_level" json:"log_level"`
	Verbose  bool   `yaml:"verbose" json:"verbose"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ShutdownTimeout: 10 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Requests: 10,
			Window:   time.Minute,
		},
		Cache: CacheConfig{
			RedisAddr:            "",
			TTL:                  24 * time.Hour,
			StaleWhileRevalidate: 0,
		},
		LLM: LLMConfig{
			Provider:          "openai",
			Model:             "",
			Timeout:           30,
			MaxTokens:         2000,
			RequestsPerSecond: 2,
			Burst:             5,
		},
		Output: OutputConfig{
			LogLevel: "info",
		},
	}
}
