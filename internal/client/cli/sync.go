package cli

import (
	"context"
	"fmt"
	"log"
)

// Sync materializes due recurring transactions and runs one push/pull cycle,
// blocking until it finishes.
func (a *App) Sync(ctx context.Context) error {
	generated, err := a.recurringService.GenerateDue(ctx)
	if err != nil {
		log.Printf("recurring generation error: %v", err)
	}
	if generated > 0 {
		fmt.Printf("Generated %d recurring transaction(s)\n", generated)
	}

	a.syncService.Sync(ctx)

	pending, err := a.ledgerService.PendingCount(ctx)
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}
	fmt.Printf("Sync finished, %d change(s) pending\n", pending)
	return nil
}

// Status prints connectivity and sync state.
func (a *App) Status(ctx context.Context) error {
	fmt.Printf("mode:      %s\n", a.Mode)
	fmt.Printf("user:      %s\n", a.authService.CurrentEmail())
	fmt.Printf("syncing:   %t\n", a.syncService.IsSyncing())
	if a.channel != nil {
		fmt.Printf("realtime:  %t\n", a.channel.IsSubscribed())
	}

	pending, err := a.ledgerService.PendingCount(ctx)
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}
	fmt.Printf("pending:   %d\n", pending)

	cursor, err := a.syncService.Cursor(ctx)
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}
	fmt.Printf("cursor:    %d\n", cursor)
	return nil
}
