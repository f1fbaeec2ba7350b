package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/kadirpekel/spanstore/pkg/obs"
	"github.com/kadirpekel/spanstore/pkg/telemetry/events"
)

// IngestCmd loads a fixed batch of NDJSON events from a file, waits for the
// aggregator to drain them, and exits — the one-shot counterpart to Serve,
// useful for backfills and fixture loading.
type IngestCmd struct {
	File string `arg:"" help:"Path to an NDJSON file of events (one wireEvent per line)." type:"existingfile"`

	// DrainWait bounds how long ingest waits after EOF for the aggregator's
	// channel to empty before exiting, since the aggregator has no
	// synchronous "flush and confirm" call.
	DrainWait time.Duration `help:"How long to wait after EOF for the aggregator to drain." default:"1s"`
}

func (c *IngestCmd) Run(cli *CLI) error {
	cfg, err := loadConfig(cli.Config)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opened, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer opened.Close(context.Background())

	runDone := make(chan struct{})
	go func() {
		opened.store.Run(ctx)
		close(runDone)
	}()

	f, err := os.Open(c.File)
	if err != nil {
		return fmt.Errorf("ingest: %w", err)
	}
	defer f.Close()

	count := 0
	if err := readEvents(f, func(evt events.Event) error {
		count++
		opened.store.Events() <- evt
		return nil
	}); err != nil {
		return fmt.Errorf("ingest: %w", err)
	}

	time.Sleep(c.DrainWait)
	cancel()
	<-runDone

	obs.GetLogger().Info("spanstore: ingest complete", slog.Int("events", count), slog.String("file", c.File))
	return nil
}
