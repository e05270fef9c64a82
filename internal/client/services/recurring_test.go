package services

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/kopeck/internal/client/client"
	"github.com/dmitrijs2005/kopeck/internal/client/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRecurring(t *testing.T, repos *client.Repositories, now time.Time) *recurringService {
	t.Helper()
	svc := NewRecurringService(repos.DB, testLogger()).(*recurringService)
	svc.now = func() time.Time { return now }
	return svc
}

func seedTemplate(t *testing.T, repos *client.Repositories, id, frequency, nextDate, endDate string) *models.RecurringTransaction {
	t.Helper()
	tmpl := &models.RecurringTransaction{
		Amount:      decimal.RequireFromString("9.99"),
		Type:        "expense",
		Description: "Streaming",
		CategoryID:  "cat1",
		Frequency:   frequency,
		NextDate:    nextDate,
		EndDate:     endDate,
	}
	tmpl.ID = id
	tmpl.UserID = "u1"
	tmpl.UpdatedAt = "2024-01-01T00:00:00Z"
	require.NoError(t, repos.Records.CreateOrUpdate(context.Background(), tmpl))
	return tmpl
}

func TestGenerateDue_MonthlyBackfill(t *testing.T) {
	repos := setupRepos(t)
	svc := newRecurring(t, repos, time.Date(2024, 4, 10, 9, 0, 0, 0, time.UTC))

	seedTemplate(t, repos, "r1", "monthly", "2024-02-01", "")

	n, err := svc.GenerateDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n, "february, march and april are due")

	dates := make([]string, 0, 3)
	rows, err := repos.DB.Query(`SELECT date, year_month, pending_sync FROM transactions ORDER BY date`)
	require.NoError(t, err)
	defer rows.Close()
	for rows.Next() {
		var date, ym string
		var pending int
		require.NoError(t, rows.Scan(&date, &ym, &pending))
		dates = append(dates, date)
		assert.Equal(t, models.YearMonth(date), ym)
		assert.Equal(t, 1, pending, "generated rows sync like manual ones")
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"2024-02-01", "2024-03-01", "2024-04-01"}, dates)

	// template advanced past today and queued for push
	rec, err := repos.Records.GetByID(context.Background(), models.TableRecurringTransactions, "r1")
	require.NoError(t, err)
	tmpl := rec.(*models.RecurringTransaction)
	assert.Equal(t, "2024-05-01", tmpl.NextDate)
	assert.True(t, tmpl.PendingSync)
}

func TestGenerateDue_GeneratedRowsLinkTemplate(t *testing.T) {
	repos := setupRepos(t)
	svc := newRecurring(t, repos, time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC))

	seedTemplate(t, repos, "r1", "monthly", "2024-02-01", "")

	n, err := svc.GenerateDue(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)

	rows, err := repos.Records.GetAll(context.Background(), models.TableTransactions)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	tx := rows[0].(*models.Transaction)
	assert.Equal(t, "r1", tx.RecurringID)
	assert.Equal(t, "u1", tx.UserID)
	assert.Equal(t, "Streaming", tx.Description)
	assert.True(t, tx.Amount.Equal(decimal.RequireFromString("9.99")))
}

func TestGenerateDue_NothingDue(t *testing.T) {
	repos := setupRepos(t)
	svc := newRecurring(t, repos, time.Date(2024, 4, 10, 9, 0, 0, 0, time.UTC))

	seedTemplate(t, repos, "r1", "monthly", "2024-05-01", "")

	n, err := svc.GenerateDue(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	count := oneRow[int](t, repos, `SELECT COUNT(*) FROM transactions`)
	assert.Zero(t, count)

	rec, err := repos.Records.GetByID(context.Background(), models.TableRecurringTransactions, "r1")
	require.NoError(t, err)
	assert.False(t, rec.Meta().PendingSync, "untouched template stays synced")
}

func TestGenerateDue_RespectsEndDate(t *testing.T) {
	repos := setupRepos(t)
	svc := newRecurring(t, repos, time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC))

	seedTemplate(t, repos, "r1", "monthly", "2024-03-01", "2024-04-30")

	n, err := svc.GenerateDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n, "march and april only, may is past end_date")
}

func TestGenerateDue_WeeklyAndDaily(t *testing.T) {
	repos := setupRepos(t)
	svc := newRecurring(t, repos, time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC))

	seedTemplate(t, repos, "w1", "weekly", "2024-03-01", "")
	seedTemplate(t, repos, "d1", "daily", "2024-03-13", "")

	n, err := svc.GenerateDue(context.Background())
	require.NoError(t, err)
	// weekly: 01, 08, 15; daily: 13, 14, 15
	assert.Equal(t, 6, n)
}

func TestGenerateDue_BadTemplateIsSkipped(t *testing.T) {
	repos := setupRepos(t)
	svc := newRecurring(t, repos, time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC))

	bad := seedTemplate(t, repos, "bad", "monthly", "2024-03-01", "")
	bad.NextDate = "soon"
	require.NoError(t, repos.Records.CreateOrUpdate(context.Background(), bad))

	seedTemplate(t, repos, "ok", "monthly", "2024-03-01", "")

	n, err := svc.GenerateDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n, "the valid template still generates")
}

func TestGenerateDue_DeletedTemplateIgnored(t *testing.T) {
	repos := setupRepos(t)
	svc := newRecurring(t, repos, time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC))

	ctx := context.Background()
	seedTemplate(t, repos, "r1", "monthly", "2024-03-01", "")
	require.NoError(t, repos.Records.DeleteByID(ctx, models.TableRecurringTransactions, "r1", "2024-03-10T00:00:00Z"))

	n, err := svc.GenerateDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAdvance(t *testing.T) {
	base := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "2024-02-01", advance(base, "daily").Format(dateLayout))
	assert.Equal(t, "2024-02-07", advance(base, "weekly").Format(dateLayout))
	assert.Equal(t, "2024-03-02", advance(base, "monthly").Format(dateLayout), "january 31 plus a month normalizes")
	assert.Equal(t, "2025-01-31", advance(base, "yearly").Format(dateLayout))
}
