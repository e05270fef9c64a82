package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dmitrijs2005/kopeck/internal/client/models"
	"github.com/dmitrijs2005/kopeck/internal/client/services"
)

const dateLayout = "2006-01-02"

// AddTransaction interactively records an expense or income entry. The row
// is written locally as a pending change and a sync cycle is kicked off in
// the background.
func (a *App) AddTransaction(ctx context.Context) error {

	amountText, err := getSimpleText(a.reader, "Enter amount", os.Stdout)
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}
	amount, err := decimal.NewFromString(amountText)
	if err != nil {
		log.Printf("invalid amount %q: %v", amountText, err)
		return err
	}

	kind, err := getSimpleText(a.reader, "Enter type (expense/income, empty for expense)", os.Stdout)
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}
	if kind == "" {
		kind = "expense"
	}

	date, err := getSimpleText(a.reader, "Enter date (YYYY-MM-DD, empty for today)", os.Stdout)
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}
	if date == "" {
		date = time.Now().Format(dateLayout)
	} else if _, err := time.Parse(dateLayout, date); err != nil {
		log.Printf("invalid date %q: %v", date, err)
		return err
	}

	categoryID, err := getSimpleText(a.reader, "Enter category id (empty for none)", os.Stdout)
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}

	description, err := getSimpleText(a.reader, "Enter description (optional)", os.Stdout)
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}

	tx, err := a.ledgerService.AddTransaction(ctx, services.TransactionInput{
		Amount:      amount,
		Type:        kind,
		Description: description,
		Date:        date,
		CategoryID:  categoryID,
	})
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}

	fmt.Printf("Recorded %s %s on %s (id %s)\n", tx.Amount.StringFixed(2), tx.Type, tx.Date, tx.ID)
	go a.runSyncCycle(ctx)
	return nil
}

// AddCategory interactively creates a category.
func (a *App) AddCategory(ctx context.Context) error {

	name, err := getSimpleText(a.reader, "Enter category name", os.Stdout)
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}

	kind, err := getSimpleText(a.reader, "Enter type (expense/income, empty for expense)", os.Stdout)
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}
	if kind == "" {
		kind = "expense"
	}

	category := &models.Category{Name: name, Type: kind}
	if err := a.ledgerService.SaveRecord(ctx, category); err != nil {
		log.Printf("error: %v", err)
		return err
	}

	fmt.Printf("Created category %s (id %s)\n", category.Name, category.ID)
	go a.runSyncCycle(ctx)
	return nil
}
