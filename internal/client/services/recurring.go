// This file defines the recurring-transactions service, which materializes
// transactions from recurring templates whose occurrence dates came due.
package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/kopeck/internal/client/models"
	"github.com/dmitrijs2005/kopeck/internal/client/repositories/records"
	"github.com/dmitrijs2005/kopeck/internal/dbx"
	"github.com/dmitrijs2005/kopeck/internal/logging"
	"github.com/google/uuid"
)

const dateLayout = "2006-01-02"

// maxOccurrences bounds one template's backfill per run; a template far in
// the past catches up over several runs instead of looping unbounded.
const maxOccurrences = 1000

// RecurringService materializes due recurring transactions.
//
// Contract:
//   - GenerateDue: for every active template, create one transaction per
//     occurrence date up to today and advance the template. Both writes are
//     pending local changes, so generated rows sync like manual ones.
//     Templates fail independently; the count of created transactions is
//     returned.
type RecurringService interface {
	GenerateDue(ctx context.Context) (int, error)
}

type recurringService struct {
	db  *sql.DB
	log logging.Logger
	now func() time.Time
}

// NewRecurringService constructs a RecurringService bound to the given DB.
func NewRecurringService(db *sql.DB, log logging.Logger) RecurringService {
	return &recurringService{db: db, log: log, now: time.Now}
}

// GenerateDue scans recurring templates and creates the transactions whose
// dates have arrived.
func (s *recurringService) GenerateDue(ctx context.Context) (int, error) {
	repo := records.NewSQLiteRepository(s.db)
	rows, err := repo.GetAll(ctx, models.TableRecurringTransactions)
	if err != nil {
		return 0, fmt.Errorf("error listing recurring transactions: %w", err)
	}

	today := s.now().UTC().Format(dateLayout)
	created := 0
	for _, rec := range rows {
		template, ok := rec.(*models.RecurringTransaction)
		if !ok {
			continue
		}
		n, err := s.generateForTemplate(ctx, template, today)
		if err != nil {
			s.log.Warn(ctx, "failed to generate recurring transactions",
				"recurring_id", template.ID, "error", err)
			continue
		}
		created += n
	}

	if created > 0 {
		s.log.Info(ctx, "generated recurring transactions", "count", created)
	}
	return created, nil
}

// generateForTemplate creates every due transaction of one template and
// advances its next date, atomically.
func (s *recurringService) generateForTemplate(ctx context.Context, template *models.RecurringTransaction, today string) (int, error) {
	next, err := time.Parse(dateLayout, template.NextDate)
	if err != nil {
		return 0, fmt.Errorf("invalid next_date %q: %w", template.NextDate, err)
	}

	created := 0
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := records.NewSQLiteRepository(tx)
		stamp := models.Timestamp(s.now())

		for created < maxOccurrences {
			date := next.Format(dateLayout)
			if date > today {
				break
			}
			if template.EndDate != "" && date > template.EndDate {
				break
			}

			entry := &models.Transaction{
				Amount:      template.Amount,
				Type:        template.Type,
				Description: template.Description,
				Date:        date,
				CategoryID:  template.CategoryID,
				ContextID:   template.ContextID,
				GroupID:     template.GroupID,
				RecurringID: template.ID,
			}
			entry.ID = uuid.NewString()
			entry.UserID = template.UserID
			entry.UpdatedAt = stamp
			entry.PendingSync = true
			models.RecomputeDerived(entry)

			if err := repo.CreateOrUpdate(ctx, entry); err != nil {
				return err
			}
			created++
			next = advance(next, template.Frequency)
		}

		if created == 0 {
			return nil
		}

		template.NextDate = next.Format(dateLayout)
		template.UpdatedAt = stamp
		template.PendingSync = true
		return repo.CreateOrUpdate(ctx, template)
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}

// advance returns the occurrence date following t for the given frequency.
func advance(t time.Time, frequency string) time.Time {
	switch frequency {
	case "daily":
		return t.AddDate(0, 0, 1)
	case "weekly":
		return t.AddDate(0, 0, 7)
	case "yearly":
		return t.AddDate(1, 0, 0)
	default: // monthly
		return t.AddDate(0, 1, 0)
	}
}
