package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/kadirpekel/spanstore/pkg/obs"
	"github.com/kadirpekel/spanstore/pkg/telemetry/events"
)

// ServeCmd runs the aggregator against a stream of NDJSON events read from
// stdin until interrupted, optionally serving a Prometheus metrics
// endpoint alongside it. There is no network listener accepting spans
// directly: producing the event stream (a mail server's SMTP/queue/
// delivery subsystems, in the design this CLI exercises) is out of scope,
// matching the module's own Non-goals.
type ServeCmd struct {
	MetricsAddr string `help:"Address to serve Prometheus metrics on (overrides config)." placeholder:"HOST:PORT"`
}

func (c *ServeCmd) Run(cli *CLI) error {
	cfg, err := loadConfig(cli.Config)
	if err != nil {
		return err
	}
	if c.MetricsAddr != "" {
		cfg.Metrics.Endpoint = c.MetricsAddr
		cfg.Metrics.Enabled = true
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	opened, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer opened.Close(context.Background())

	obs.GetLogger().Info("spanstore: serving",
		slog.String("badger_dir", cfg.BadgerDir),
		slog.Uint64("node_id", opened.node),
	)

	if opened.metrics != nil {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Endpoint, opened.metrics.Handler())
		srv := &http.Server{Addr: cfg.Metrics.Endpoint, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				obs.GetLogger().Error("spanstore: metrics server stopped", slog.Any("error", err))
			}
		}()
		go func() {
			<-ctx.Done()
			_ = srv.Close()
		}()
	}

	go opened.store.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- readEvents(os.Stdin, func(evt events.Event) error {
			select {
			case opened.store.Events() <- evt:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: reading events: %w", err)
		}
		<-ctx.Done()
		return nil
	}
}
