package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/paralogia/internal/model"
	"github.com/ppiankov/paralogia/internal/ratelimit"
	"github.com/ppiankov/paralogia/internal/server"
)

var (
	serveHost      string
	servePort      int
	serveRedisAddr string
	llmProvider    string
	llmModel       string
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the fallacy analysis HTTP server",
	Long: `Serve exposes the analysis pipeline over HTTP:

  POST /api/analyze     analyze text (JSON response, or SSE when "stream": true)
  GET  /api/cache/stats cache statistics
  GET  /healthz         liveness

Requests are rate limited per client address. Results are cached by content,
in Redis when configured, with an in-process fallback.

Example:
  paralogia serve
  paralogia serve --port 9090 --redis localhost:6379
  paralogia serve --llm-provider anthropic`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveHost, "host", "0.0.0.0", "listen host")
	serveCmd.Flags().IntVar(&servePort, "port", 8080, "listen port")
	serveCmd.Flags().StringVar(&serveRedisAddr, "redis", "", "redis address for the primary cache tier (empty disables)")
	serveCmd.Flags().StringVar(&llmProvider, "llm-provider", "openai", "LLM provider (openai, anthropic, ollama)")
	serveCmd.Flags().StringVar(&llmModel, "llm-model", "", "LLM model name (provider default when empty)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := model.DefaultConfig()
	cfg.Server.Host = serveHost
	cfg.Server.Port = servePort
	cfg.Cache.RedisAddr = serveRedisAddr
	cfg.LLM.Provider = llmProvider
	cfg.LLM.Model = llmModel

	if err := resolveAPIKey(cfg); err != nil {
		return err
	}

	log := newLogger(cfg)
	detector, cacheSvc, err := buildServices(cfg, log)
	if err != nil {
		return err
	}

	limiter := ratelimit.NewLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
	srv := server.New(cfg.Server, detector, cacheSvc, limiter, log)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return srv.Run(ctx)
}
