package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	charmlog "github.com/charmbracelet/log"

	"github.com/ppiankov/paralogia/internal/cache"
	"github.com/ppiankov/paralogia/internal/detect"
	"github.com/ppiankov/paralogia/internal/llm"
	"github.com/ppiankov/paralogia/internal/logger"
	"github.com/ppiankov/paralogia/internal/model"
)

// resolveAPIKey fills the provider API key from the conventional environment
// variables when the config leaves it empty.
func resolveAPIKey(cfg *model.Config) error {
	if cfg.LLM.APIKey != "" {
		return nil
	}
	switch cfg.LLM.Provider {
	case "openai":
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		if cfg.LLM.APIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY environment variable not set")
		}
	case "anthropic", "claude":
		cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		if cfg.LLM.APIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY environment variable not set")
		}
	case "ollama":
		if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
			cfg.LLM.BaseURL = baseURL
		}
	}
	return nil
}

// buildServices assembles the cache and analysis services from configuration.
func buildServices(cfg *model.Config, log *charmlog.Logger) (*detect.Service, *cache.Service, error) {
	var primary cache.Store
	if cfg.Cache.RedisAddr != "" {
		store := cache.NewRedisStore(cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := store.Ping(ctx)
		cancel()
		if err != nil {
			// The fallback tier serves alone; primary outage is never fatal.
			log.Warn("redis unreachable, using in-process cache only", "addr", cfg.Cache.RedisAddr, "error", err)
		} else {
			log.Info("redis cache initialized", "addr", cfg.Cache.RedisAddr)
			primary = store
		}
	} else {
		log.Info("redis not configured, using in-process cache only")
	}
	cacheSvc := cache.NewService(primary, log)

	provider, err := llm.NewProvider(llm.ConfigFromModel(cfg.LLM))
	if err != nil {
		return nil, nil, fmt.Errorf("initialize LLM provider: %w", err)
	}
	if provider == nil {
		return nil, nil, fmt.Errorf("no LLM provider configured (set llm.provider to openai, anthropic, or ollama)")
	}

	detector := detect.NewService(provider, cacheSvc, log, detect.WithTTL(cfg.Cache.TTL))
	return detector, cacheSvc, nil
}

// newLogger builds the process logger from the output config.
func newLogger(cfg *model.Config) *charmlog.Logger {
	level := cfg.Output.LogLevel
	if verbose {
		level = "debug"
	}
	return logger.New(level)
}
