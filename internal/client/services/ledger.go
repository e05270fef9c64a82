// This file defines the ledger service: local reads and writes against the
// replica. Every write is queued for the next sync cycle.
package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/kopeck/internal/client/models"
	"github.com/dmitrijs2005/kopeck/internal/client/repositories/records"
	"github.com/dmitrijs2005/kopeck/internal/dbx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionInput carries the user-entered fields of a new transaction.
type TransactionInput struct {
	Amount      decimal.Decimal
	Type        string
	Description string
	Date        string
	CategoryID  string
	ContextID   string
	GroupID     string
}

// MonthSummary aggregates one month of transactions.
type MonthSummary struct {
	YearMonth string
	Income    decimal.Decimal
	Expense   decimal.Decimal
	Count     int
}

// Balance is income minus expense.
func (s *MonthSummary) Balance() decimal.Decimal {
	return s.Income.Sub(s.Expense)
}

// LedgerService defines local data operations for the CLI.
//
// Contract:
//   - SaveRecord: validate and store a row as a pending local change,
//     assigning an id and write stamp when missing.
//   - AddTransaction: convenience producer for SaveRecord.
//   - DeleteRecord: soft-delete a row as a pending tombstone.
//   - GetRecord/ListRecords/ListTransactionsByMonth: replica reads.
//   - MonthSummary: income/expense totals for one month.
//   - PendingCount: rows awaiting push, all tables combined.
type LedgerService interface {
	SaveRecord(ctx context.Context, rec models.Record) error
	AddTransaction(ctx context.Context, in TransactionInput) (*models.Transaction, error)
	DeleteRecord(ctx context.Context, table models.Table, id string) error
	GetRecord(ctx context.Context, table models.Table, id string) (models.Record, error)
	ListRecords(ctx context.Context, table models.Table) ([]models.Record, error)
	ListTransactionsByMonth(ctx context.Context, yearMonth string) ([]*models.Transaction, error)
	MonthSummary(ctx context.Context, yearMonth string) (*MonthSummary, error)
	PendingCount(ctx context.Context) (int, error)
}

type ledgerService struct {
	db  *sql.DB
	now func() time.Time
}

// NewLedgerService constructs a LedgerService bound to the given DB.
func NewLedgerService(db *sql.DB) LedgerService {
	return &ledgerService{db: db, now: time.Now}
}

func (s *ledgerService) getRecordsRepo() records.Repository {
	return records.NewSQLiteRepository(s.db)
}

// SaveRecord stores a row as a pending local change. A missing id is
// generated; the write stamp is always refreshed.
func (s *ledgerService) SaveRecord(ctx context.Context, rec models.Record) error {
	m := rec.Meta()
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	m.UpdatedAt = models.Timestamp(s.now())
	m.PendingSync = true
	models.RecomputeDerived(rec)

	if err := models.Validate(rec); err != nil {
		return err
	}

	if err := s.getRecordsRepo().CreateOrUpdate(ctx, rec); err != nil {
		return fmt.Errorf("saving error: %w", err)
	}
	return nil
}

// AddTransaction builds a transaction from user input and saves it.
func (s *ledgerService) AddTransaction(ctx context.Context, in TransactionInput) (*models.Transaction, error) {
	tx := &models.Transaction{
		Amount:      in.Amount,
		Type:        in.Type,
		Description: in.Description,
		Date:        in.Date,
		CategoryID:  in.CategoryID,
		ContextID:   in.ContextID,
		GroupID:     in.GroupID,
	}
	if err := s.SaveRecord(ctx, tx); err != nil {
		return nil, err
	}
	return tx, nil
}

// DeleteRecord soft-deletes a row as a pending tombstone.
func (s *ledgerService) DeleteRecord(ctx context.Context, table models.Table, id string) error {
	ts := models.Timestamp(s.now())
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return records.NewSQLiteRepository(tx).DeleteByID(ctx, table, id, ts)
	})
	if err != nil {
		return fmt.Errorf("error deleting row: %w", err)
	}
	return nil
}

// GetRecord returns a row by id, or (nil, nil) when absent.
func (s *ledgerService) GetRecord(ctx context.Context, table models.Table, id string) (models.Record, error) {
	return s.getRecordsRepo().GetByID(ctx, table, id)
}

// ListRecords lists all live rows of a table.
func (s *ledgerService) ListRecords(ctx context.Context, table models.Table) ([]models.Record, error) {
	return s.getRecordsRepo().GetAll(ctx, table)
}

// ListTransactionsByMonth lists live transactions of one month, newest first.
func (s *ledgerService) ListTransactionsByMonth(ctx context.Context, yearMonth string) ([]*models.Transaction, error) {
	rows, err := s.getRecordsRepo().GetByYearMonth(ctx, models.TableTransactions, yearMonth)
	if err != nil {
		return nil, fmt.Errorf("error listing transactions: %w", err)
	}

	result := make([]*models.Transaction, 0, len(rows))
	for _, rec := range rows {
		tx, ok := rec.(*models.Transaction)
		if !ok {
			continue
		}
		result = append(result, tx)
	}
	return result, nil
}

// MonthSummary sums income and expense for one month.
func (s *ledgerService) MonthSummary(ctx context.Context, yearMonth string) (*MonthSummary, error) {
	txs, err := s.ListTransactionsByMonth(ctx, yearMonth)
	if err != nil {
		return nil, err
	}

	summary := &MonthSummary{YearMonth: yearMonth}
	for _, tx := range txs {
		switch tx.Type {
		case "income":
			summary.Income = summary.Income.Add(tx.Amount)
		default:
			summary.Expense = summary.Expense.Add(tx.Amount)
		}
		summary.Count++
	}
	return summary, nil
}

// PendingCount counts rows awaiting push across all tables.
func (s *ledgerService) PendingCount(ctx context.Context) (int, error) {
	repo := s.getRecordsRepo()
	total := 0
	for _, table := range models.Tables() {
		n, err := repo.CountPending(ctx, table)
		if err != nil {
			return 0, fmt.Errorf("error counting pending rows: %w", err)
		}
		total += n
	}
	return total, nil
}
