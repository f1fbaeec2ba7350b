// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command spanstore is the CLI for the span telemetry store.
//
// Usage:
//
//	spanstore serve --config spanstore.yaml
//	spanstore ingest --config spanstore.yaml events.ndjson
//	spanstore query --config spanstore.yaml --queue-id 42
//	spanstore get --config spanstore.yaml 123456789
//	spanstore purge --config spanstore.yaml --max-age 720h
//	spanstore list-deleted --config spanstore.yaml 1
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"github.com/kadirpekel/spanstore/pkg/obs"
	"github.com/kadirpekel/spanstore/pkg/storeconfig"
)

// CLI defines the command-line interface.
type CLI struct {
	Serve       ServeCmd       `cmd:"" help:"Run the aggregator against a stream of events until stopped."`
	Ingest      IngestCmd      `cmd:"" help:"Load a batch of events from a file and exit once drained."`
	Query       QueryCmd       `cmd:"" help:"Query committed span ids by predicate."`
	Get         GetCmd         `cmd:"" help:"Fetch one span's decoded event list by id."`
	Purge       PurgeCmd       `cmd:"" help:"Delete spans and index entries older than an age."`
	ListDeleted ListDeletedCmd `cmd:"" name:"list-deleted" help:"List live blob-hash reservations for an account."`

	Config string `short:"c" help:"Path to config file." type:"path" default:"spanstore.yaml"`
}

func loadConfig(path string) (*storeconfig.Config, error) {
	cfg, err := storeconfig.NewLoader(path).Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	level, err := obs.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", cfg.LogLevel, err)
	}
	obs.Init(level, os.Stderr, cfg.LogFormat)
	return cfg, nil
}

func main() {
	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("spanstore"),
		kong.Description("Span telemetry store — ingest, query and maintain a span-shaped event log."),
		kong.UsageOnError(),
	)

	err := ctx.Run(&cli)
	if err != nil {
		obs.GetLogger().Error("spanstore: command failed", slog.String("command", ctx.Command()), slog.Any("error", err))
	}
	ctx.FatalIfErrorf(err)
}
