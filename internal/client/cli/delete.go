package cli

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/dmitrijs2005/kopeck/internal/client/models"
)

// Delete tombstones a transaction locally; the deletion propagates on the
// next sync cycle.
func (a *App) Delete(ctx context.Context) error {

	id, err := getSimpleText(a.reader, "Enter transaction id to delete", os.Stdout)
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}

	if err := a.ledgerService.DeleteRecord(ctx, models.TableTransactions, id); err != nil {
		log.Printf("Error: %s", err.Error())
		return err
	}

	fmt.Printf("Deleted %s\n", id)
	go a.runSyncCycle(ctx)
	return nil
}
