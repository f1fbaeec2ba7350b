package main

import (
	"context"
	"fmt"
)

// ListDeletedCmd lists every live blob-hash reservation for an account.
type ListDeletedCmd struct {
	Account uint32 `arg:"" help:"Account id to list reservations for."`
}

func (c *ListDeletedCmd) Run(cli *CLI) error {
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

	out, err := opened.store.ListDeleted(ctx, c.Account)
	if err != nil {
		return fmt.Errorf("list-deleted: %w", err)
	}
	if len(out) == 0 {
		fmt.Println("no live reservations")
		return nil
	}
	for _, b := range out {
		fmt.Printf("hash=%x size=%d collection=%d deleted_at=%s expires_at=%s\n",
			b.Hash, b.Size, b.Collection, b.DeletedAt.Format("2006-01-02T15:04:05Z07:00"), b.ExpiresAt.Format("2006-01-02T15:04:05Z07:00"))
	}
	return nil
}
