package main

import (
	"context"
	"fmt"
	"time"
)

// PurgeCmd deletes spans and index entries older than MaxAge, or — with no
// flag given — runs the retention window from config.
type PurgeCmd struct {
	MaxAge time.Duration `help:"Delete spans older than this duration (overrides config's retention.span_max_age)."`
}

func (c *PurgeCmd) Run(cli *CLI) error {
	cfg, err := loadConfig(cli.Config)
	if err != nil {
		return err
	}
	d := c.MaxAge
	if d == 0 {
		d = cfg.Retention.SpanMaxAge
	}
	if d == 0 {
		return fmt.Errorf("purge: no max age given on the command line or in config's retention.span_max_age")
	}

	ctx := context.Background()
	opened, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer opened.Close(ctx)

	if err := opened.store.PurgeSpans(ctx, d); err != nil {
		return fmt.Errorf("purge: %w", err)
	}
	fmt.Printf("purged spans older than %s\n", d)
	return nil
}
