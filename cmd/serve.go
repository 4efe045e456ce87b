package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vainnor/active-flights/api"
	"github.com/vainnor/active-flights/collector"
	"github.com/vainnor/active-flights/config"
	"github.com/vainnor/active-flights/feed"
	"github.com/vainnor/active-flights/logging"
	"github.com/vainnor/active-flights/registry"
	"github.com/vainnor/active-flights/stream"
)

// Serve runs the HTTP server, the collector and the optional Kafka stream
// until ctx is cancelled or the process receives SIGINT/SIGTERM.
func Serve(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	// The stream outlives the HTTP server so events from requests still in
	// flight during shutdown get published.
	streamCtx, stopStream := context.WithCancel(context.Background())
	defer stopStream()

	var listeners []registry.Listener
	if len(cfg.KafkaBrokers) > 0 {
		producer := stream.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic, logger.Named("stream"))
		listeners = append(listeners, producer)
		g.Go(func() error { return producer.Run(streamCtx) })
		logger.Info("publishing flight events to kafka",
			zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	}
	reg := registry.New(listeners...)

	hub := feed.NewHub(logger.Named("feed"))
	c := collector.NewCollector(reg, hub, logger.Named("collector"))
	if err := c.Start(cfg.FeedInterval, cfg.ReportInterval); err != nil {
		return err
	}

	srv := &http.Server{
		Addr: cfg.Addr(),
		Handler: api.NewRouter(reg, c, hub, logger.Named("api"), api.Options{
			MaxBodyBytes: cfg.MaxBodyBytes,
			RateLimit:    cfg.RateLimit,
			RateBurst:    cfg.RateBurst,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		logger.Info("starting API server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("API server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		return shutdownInOrder(shutdownCtx,
			srv.Shutdown,
			func(context.Context) error { stopStream(); return nil },
			c.Stop,
			func(context.Context) error { return hub.Close() },
		)
	})

	return g.Wait()
}

// shutdownInOrder runs every step in order, even after a failure, and
// combines their errors.
func shutdownInOrder(ctx context.Context, steps ...func(context.Context) error) error {
	var err error
	for _, step := range steps {
		err = multierr.Append(err, step(ctx))
	}
	return err
}

func splitAddr(addr string) (string, string, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "", "", fmt.Errorf("invalid --addr %q: %w", addr, err)
	}
	if host == "" {
		host = "0.0.0.0"
	}
	return host, port, nil
}
