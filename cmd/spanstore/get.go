package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// GetCmd fetches one span's decoded event list by id and prints it as JSON.
type GetCmd struct {
	SpanID uint64 `arg:"" help:"Span id to fetch."`
}

func (c *GetCmd) Run(cli *CLI) error {
	cfg, err := loadConfig(cli.Config)
	if err != nil {
		return err
	}
	ctx := context.Background()
	opened, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer opened.Close(ctx)

	evts, err := opened.store.GetSpan(ctx, c.SpanID)
	if err != nil {
		return fmt.Errorf("get: %w", err)
	}
	if evts == nil {
		return fmt.Errorf("get: no span committed with id %d", c.SpanID)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(evts)
}
