package main

import (
	"context"
	"fmt"

	"github.com/kadirpekel/spanstore/pkg/telemetry/query"
)

// QueryCmd evaluates a predicate conjunction against committed spans and
// prints matching span ids, newest first.
type QueryCmd struct {
	QueueID  []uint64 `name:"queue-id" help:"Match spans carrying this queue id (repeatable; ANDed)."`
	Keyword  []string `help:"Match spans by address/keyword predicate (repeatable; ANDed). Quote for exact match."`
	EventType []uint16 `name:"event-type" help:"Match spans whose span-start event carries this type code (repeatable; ANDed)."`
	From     uint64   `help:"Lower span-id bound (inclusive), 0 = unbounded."`
	To       uint64   `help:"Upper span-id bound (inclusive), 0 = unbounded."`
}

func (c *QueryCmd) Run(cli *CLI) error {
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

	var predicates []query.Predicate
	for _, id := range c.QueueID {
		predicates = append(predicates, query.QueueId(id))
	}
	for _, code := range c.EventType {
		predicates = append(predicates, query.EventType(code))
	}
	for _, kw := range c.Keyword {
		predicates = append(predicates, query.Keywords(kw))
	}
	if len(predicates) == 0 {
		return fmt.Errorf("query: at least one of --queue-id, --event-type, --keyword is required")
	}

	ids, err := opened.store.QuerySpans(ctx, predicates, c.From, c.To)
	if err != nil {
		return fmt.Errorf("query: %w", err)
	}
	for _, id := range ids {
		fmt.Println(id)
	}
	return nil
}
