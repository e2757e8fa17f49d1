package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/relaydesk/relaydesk/internal/api"
	"github.com/relaydesk/relaydesk/internal/config"
	"github.com/relaydesk/relaydesk/internal/conversation"
	"github.com/relaydesk/relaydesk/internal/embedding"
	"github.com/relaydesk/relaydesk/internal/engine"
	"github.com/relaydesk/relaydesk/internal/ingest"
	"github.com/relaydesk/relaydesk/internal/knowledge"
	"github.com/relaydesk/relaydesk/internal/log"
	"github.com/relaydesk/relaydesk/internal/provider"
	"github.com/relaydesk/relaydesk/internal/retrieval"
	"github.com/relaydesk/relaydesk/internal/sessionspan"
	"github.com/relaydesk/relaydesk/internal/telemetry"
	"github.com/relaydesk/relaydesk/internal/tenant"
)

// Server timeout configuration. WriteTimeout stays long because SSE
// responses are held open for the full generation.
const (
	readHeaderTimeout = 10 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 2 * time.Minute
	idleTimeout       = 2 * time.Minute
	shutdownTimeout   = 30 * time.Second

	sessionSweepInterval = time.Minute
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the widget and dashboard HTTP server",
	RunE: func(_ *cobra.Command, _ []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := log.New(log.Config{
		Level: log.ParseLevel(cfg.LogLevel),
		JSON:  cfg.LogJSON,
	})
	logger.Info("starting relaydesk", "version", Version, "config", cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("creating database pool: %w", err)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("pinging database: %w", err)
	}

	tracer, shutdownTracer, err := telemetry.Setup(ctx, telemetry.Config{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
	}, logger)
	if err != nil {
		return fmt.Errorf("setting up telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown failed", "error", err)
		}
	}()

	var sessions sessionspan.Cache
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer func() {
			if err := client.Close(); err != nil {
				logger.Warn("closing redis client", "error", err)
			}
		}()
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("pinging redis: %w", err)
		}
		sessions = sessionspan.NewRedis(client)
		logger.Info("session cache backed by redis", "addr", cfg.RedisAddr)
	} else {
		mem := sessionspan.NewMemory(sessionSweepInterval)
		defer mem.Stop()
		sessions = mem
		logger.Info("session cache in-process; use REDIS_ADDR for multi-instance deployments")
	}

	tenants := tenant.NewStore(pool, logger)
	chunks := knowledge.NewStore(pool, logger)

	platformKeys := provider.PlatformKeys{
		OpenAI:    cfg.OpenAIAPIKey,
		Anthropic: cfg.AnthropicAPIKey,
		Google:    cfg.GoogleAPIKey,
	}
	resolver := engine.ResolverFunc(func(ctx context.Context, t *tenant.Tenant) (*provider.Handle, error) {
		return provider.Resolve(ctx, t, platformKeys)
	})

	retriever := retrieval.New(
		retrieval.OpenAIEmbedderFactory,
		cfg.OpenAIAPIKey,
		chunks,
		retrieval.Config{TopK: cfg.TopK, MinSimilarity: cfg.MinSimilarity},
		logger,
	)

	orchestrator := engine.New(resolver, retriever, tracer, sessions, engine.Config{
		Mode:         engine.RetrievalMode(cfg.RetrievalMode),
		MaxToolTurns: cfg.MaxToolTurns,
		SessionTTL:   cfg.SessionTTL,
	}, logger)

	ingestor := ingest.NewService(chunks,
		func(ctx context.Context, apiKey string, logger log.Logger) (ingest.Embedder, error) {
			c, err := embedding.NewOpenAI(ctx, apiKey, logger)
			if err != nil {
				return nil, fmt.Errorf("building embedding client: %w", err)
			}
			return c, nil
		},
		cfg.OpenAIAPIKey, ingest.Config{}, logger)

	transcripts := conversation.NewStore(pool, logger)

	apiServer, err := api.NewServer(api.ServerConfig{
		Logger:      logger,
		Tenants:     tenants,
		Engine:      orchestrator,
		Ingestor:    ingestor,
		Recorder:    transcripts,
		Pool:        pool,
		CORSOrigins: cfg.CORSOrigins,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	logger.Info("HTTP server ready",
		"addr", cfg.ListenAddr,
		"widget", "/api/widget/{slug}/chat",
		"health", "/health, /ready",
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down HTTP server")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down server: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving HTTP: %w", err)
	}
}
