// streamer subscribes to Polymarket market and user channels and fans the
// events out to the log, a Postgres journal and Redis pub/sub.
// Usage: go run ./cmd/streamer --config configs/streamer.local.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/rickgao/polymarket-realtime/internal/api"
	"github.com/rickgao/polymarket-realtime/internal/config"
	"github.com/rickgao/polymarket-realtime/internal/connection"
	"github.com/rickgao/polymarket-realtime/internal/database"
	"github.com/rickgao/polymarket-realtime/internal/poller"
	"github.com/rickgao/polymarket-realtime/internal/publish"
	"github.com/rickgao/polymarket-realtime/internal/realtime"
	"github.com/rickgao/polymarket-realtime/internal/version"
	"github.com/rickgao/polymarket-realtime/internal/writer"
)

func main() {
	configPath := flag.String("config", "configs/streamer.local.yaml", "path to config file")
	envPath := flag.String("env", ".env", "optional dotenv file loaded before the config")
	flag.Parse()

	// Credentials usually come from the environment
	if err := godotenv.Load(*envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load %s: %v\n", *envPath, err)
		os.Exit(1)
	}

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, closeLog := newLogger(cfg.Log)
	defer closeLog.Close()
	slog.SetDefault(logger)

	logger.Info("starting streamer",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
		"instance_id", cfg.Instance.ID,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("streamer failed", "error", err)
		closeLog.Close()
		os.Exit(1)
	}

	logger.Info("streamer stopped")
}

// newLogger builds the slog handler described by cfg.
func newLogger(cfg config.LogConfig) (*slog.Logger, io.Closer) {
	var out io.Writer = os.Stdout
	var closer io.Closer = io.NopCloser(nil)
	if cfg.File != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		out, closer = lj, lj
	}

	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	return slog.New(handler), closer
}

func run(ctx context.Context, cfg *config.StreamerConfig, logger *slog.Logger) error {
	var out sinks
	out.logger = logger

	// Event journal
	if cfg.Database.Enabled {
		logger.Info("connecting to database",
			"host", cfg.Database.Postgres.Host,
			"port", cfg.Database.Postgres.Port,
			"database", cfg.Database.Postgres.Name,
		)
		pool, err := database.Connect(ctx, cfg.Database.Postgres)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer pool.Close()

		if err := writer.EnsureSchema(ctx, pool); err != nil {
			return err
		}

		out.journal = writer.NewEventWriter(writer.WriterConfig{
			BatchSize:     cfg.Writer.BatchSize,
			FlushInterval: cfg.Writer.FlushInterval,
			BufferSize:    cfg.Writer.BufferSize,
		}, pool, logger)
		if err := out.journal.Start(ctx); err != nil {
			return fmt.Errorf("start journal: %w", err)
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			out.journal.Stop(stopCtx)
		}()
		logger.Info("database connected")
	}

	// Redis fan-out
	if cfg.Redis.Enabled {
		rc, err := publish.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		out.publisher = publish.New(rc, publish.Options{Prefix: cfg.Redis.Prefix, LastTTL: time.Hour}, logger)
		defer out.publisher.Close()
		logger.Info("redis connected", "addr", cfg.Redis.Addr, "prefix", cfg.Redis.Prefix)
	}

	// REST client for market resolution and the open order snapshot
	apiOpts := []api.ClientOption{
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.MaxRetries, time.Second),
		api.WithGammaURL(cfg.API.GammaURL),
	}
	if cfg.Credentials.Configured() {
		apiOpts = append(apiOpts, api.WithCredentials(cfg.Credentials.Credentials(), cfg.Credentials.Address))
	}
	apiClient := api.NewClient(cfg.API.RestURL, apiOpts...)

	// Realtime client
	client, err := realtime.New(cfg.Realtime.ClientConfig(version.UserAgent()), logger)
	if err != nil {
		return fmt.Errorf("create realtime client: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		client.Disconnect(stopCtx)
	}()

	client.On(connection.EventConnected, func(ev connection.Event) {
		logger.Info("realtime connected", "session", ev.Session)
	})
	client.On(connection.EventReconnecting, func(ev connection.Event) {
		logger.Warn("realtime reconnecting", "attempt", ev.Attempt, "delay", ev.Delay)
	})
	client.On(connection.EventDisconnected, func(ev connection.Event) {
		logger.Warn("realtime disconnected", "error", ev.Err)
	})
	client.On(connection.EventError, func(ev connection.Event) {
		logger.Error("realtime error", "error", ev.Err)
	})

	// Configured token ids share one subscription; each market gets its own
	// so it can be dropped when the market closes.
	tokens := len(cfg.Subscriptions.TokenIDs)
	if tokens > 0 {
		if _, err := client.SubscribeMarket(cfg.Subscriptions.TokenIDs, out.marketCallbacks()); err != nil {
			return err
		}
	}
	markets := newMarketSubscriptions(clientSubscriber(client), out.marketCallbacks(), logger)
	for _, id := range cfg.Subscriptions.Markets {
		m, err := apiClient.GetMarket(ctx, id)
		if err != nil {
			return fmt.Errorf("resolve market %s: %w", id, err)
		}
		if err := markets.add(id, m); err != nil {
			return err
		}
		tokens += len(m.TokenIDs())
	}
	if cfg.Subscriptions.User {
		if _, err := client.SubscribeUserEvents(cfg.Credentials.Credentials(), out.userCallbacks()); err != nil {
			return err
		}
	}

	if err := client.Connect(ctx); err != nil {
		if !*cfg.Realtime.AutoReconnect {
			return fmt.Errorf("connect realtime: %w", err)
		}
		logger.Warn("initial connect failed, retrying in background", "error", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	// Health server
	var healthServer *http.Server
	if cfg.Health.Port > 0 {
		healthServer = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Health.Port),
			Handler: createHealthHandler(client, &out, markets),
		}
		g.Go(func() error {
			logger.Info("starting health server", "port", cfg.Health.Port)
			if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("health server: %w", err)
			}
			return nil
		})
	}

	// Market status poller
	if cfg.MarketPoll.Enabled {
		mp := poller.New(poller.Config{
			Interval:    cfg.MarketPoll.Interval,
			Concurrency: cfg.MarketPoll.Concurrency,
			Timeout:     cfg.MarketPoll.Timeout,
		}, apiClient, markets, logger)
		mp.Watch(cfg.Subscriptions.Markets...)
		if err := mp.Start(gctx); err != nil {
			return fmt.Errorf("start market poller: %w", err)
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			mp.Stop(stopCtx)
		}()
	}

	// Diagnostics
	g.Go(func() error {
		diag := client.Diagnostics()
		for {
			select {
			case <-gctx.Done():
				return nil
			case err := <-diag:
				logger.Warn("realtime diagnostic", "error", err)
			}
		}
	})

	// Open order snapshot so the log has a baseline before user events arrive
	if cfg.Subscriptions.User {
		g.Go(func() error {
			logOpenOrders(gctx, apiClient, logger)
			return nil
		})
	}

	// Stats
	g.Go(func() error {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				s := client.Stats()
				logger.Info("stats",
					"state", s.State,
					"session", s.Session,
					"reconnects", s.Reconnects,
					"subscriptions", s.Subscriptions,
					"received", s.Router.MessagesReceived,
					"routed", s.Router.MessagesRouted,
					"parse_errors", s.Router.ParseErrors,
					"dropped", s.Router.Dropped,
				)
			}
		}
	})

	logger.Info("streamer running",
		"tokens", tokens,
		"markets", len(cfg.Subscriptions.Markets),
		"user", cfg.Subscriptions.User,
	)

	// Wait for shutdown
	<-gctx.Done()
	logger.Info("shutting down...")

	if healthServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		healthServer.Shutdown(shutdownCtx)
	}

	return g.Wait()
}
