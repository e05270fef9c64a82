package cli

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/dmitrijs2005/kopeck/internal/client/models"
)

// promptMonth asks for a YYYY-MM month, defaulting to the current one.
func (a *App) promptMonth() (string, error) {
	month, err := getSimpleText(a.reader, "Enter month (YYYY-MM, empty for current)", os.Stdout)
	if err != nil {
		return "", err
	}
	if month == "" {
		month = currentYearMonth()
	}
	return month, nil
}

// List prints the transactions of one month, newest first.
func (a *App) List(ctx context.Context) error {
	month, err := a.promptMonth()
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}

	txs, err := a.ledgerService.ListTransactionsByMonth(ctx, month)
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}

	if len(txs) == 0 {
		fmt.Printf("No transactions in %s\n", month)
		return nil
	}

	for _, tx := range txs {
		sign := "-"
		if tx.Type == "income" {
			sign = "+"
		}
		fmt.Printf("%s  %s%10s  %-30s %s\n", tx.Date, sign, tx.Amount.StringFixed(2), tx.Description, tx.ID)
	}
	return nil
}

// Categories prints all live categories.
func (a *App) Categories(ctx context.Context) error {
	recs, err := a.ledgerService.ListRecords(ctx, models.TableCategories)
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}

	if len(recs) == 0 {
		fmt.Println("No categories yet, use addcat")
		return nil
	}

	for _, rec := range recs {
		category, ok := rec.(*models.Category)
		if !ok {
			continue
		}
		fmt.Printf("%-20s %-8s %s\n", category.Name, category.Type, category.ID)
	}
	return nil
}

// Summary prints the income/expense totals and balance of one month.
func (a *App) Summary(ctx context.Context) error {
	month, err := a.promptMonth()
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}

	summary, err := a.ledgerService.MonthSummary(ctx, month)
	if err != nil {
		log.Printf("error: %v", err)
		return err
	}

	fmt.Printf("%s: %d transactions\n", summary.YearMonth, summary.Count)
	fmt.Printf("  income:  %12s\n", summary.Income.StringFixed(2))
	fmt.Printf("  expense: %12s\n", summary.Expense.StringFixed(2))
	fmt.Printf("  balance: %12s\n", summary.Balance().StringFixed(2))
	return nil
}
