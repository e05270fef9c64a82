package models

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTablesOrderParentsFirst(t *testing.T) {
	order := Tables()
	require.Len(t, order, len(registry))

	pos := make(map[Table]int, len(order))
	for i, tbl := range order {
		pos[tbl] = i
	}

	// Referenced tables come before the tables that reference them.
	assert.Less(t, pos[TableCategories], pos[TableTransactions])
	assert.Less(t, pos[TableContexts], pos[TableTransactions])
	assert.Less(t, pos[TableGroups], pos[TableGroupMembers])
	assert.Less(t, pos[TableCategories], pos[TableCategoryBudgets])
	assert.Less(t, pos[TableRecurringTransactions], pos[TableTransactions])
}

func TestKnown(t *testing.T) {
	for _, tbl := range Tables() {
		assert.True(t, Known(tbl), tbl)
	}
	assert.False(t, Known(Table("users")))
	assert.False(t, Known(Table("")))
}

func TestRegistryFlags(t *testing.T) {
	assert.True(t, AttributesOwner(TableTransactions))
	assert.True(t, AttributesOwner(TableCategories))
	assert.False(t, AttributesOwner(TableGroups))
	assert.False(t, AttributesOwner(TableGroupMembers))

	assert.True(t, Dated(TableTransactions))
	assert.False(t, Dated(TableCategories))
}

func TestNewRecordUnknownTable(t *testing.T) {
	_, err := NewRecord(Table("users"))
	require.ErrorIs(t, err, ErrUnknownTable)
}

func TestDecodeRecordTransaction(t *testing.T) {
	data := []byte(`{
		"id": "tx1",
		"user_id": "u1",
		"amount": "12.50",
		"type": "expense",
		"date": "2024-01-15",
		"updated_at": "2024-01-15T10:00:00Z"
	}`)

	rec, err := DecodeRecord(TableTransactions, data)
	require.NoError(t, err)

	tx, ok := rec.(*Transaction)
	require.True(t, ok)
	assert.Equal(t, "tx1", tx.ID)
	assert.Equal(t, "u1", tx.UserID)
	assert.True(t, tx.Amount.Equal(decimal.RequireFromString("12.50")))
	assert.Equal(t, "2024-01", tx.YearMonth, "year_month derived on decode")
	assert.False(t, tx.PendingSync)
}

func TestDecodeRecordUnknownTable(t *testing.T) {
	_, err := DecodeRecord(Table("users"), []byte(`{"id":"x"}`))
	require.ErrorIs(t, err, ErrUnknownTable)
}

func TestDecodeRecordMalformedJSON(t *testing.T) {
	_, err := DecodeRecord(TableCategories, []byte(`{"id":`))
	require.Error(t, err)
}

func TestDecodeRecordMissingID(t *testing.T) {
	_, err := DecodeRecord(TableCategories, []byte(`{"name":"Food"}`))
	require.Error(t, err)
}

func TestDecodeRecordBadEnum(t *testing.T) {
	_, err := DecodeRecord(TableRecurringTransactions, []byte(`{
		"id": "r1", "frequency": "fortnightly", "next_date": "2024-02-01"
	}`))
	require.Error(t, err)
}

func TestLocalOnlyFieldsStayOffTheWire(t *testing.T) {
	tx := &Transaction{
		Amount:    decimal.RequireFromString("9.99"),
		Type:      "expense",
		Date:      "2024-03-02",
		YearMonth: "2024-03",
	}
	tx.ID = "tx1"
	tx.PendingSync = true

	data, err := json.Marshal(tx)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	assert.NotContains(t, m, "year_month")
	assert.NotContains(t, m, "pending_sync")
	assert.NotContains(t, m, "sync_token", "zero token is omitted")
}

func TestRecomputeDerived(t *testing.T) {
	tx := &Transaction{Date: "2025-07-04"}
	RecomputeDerived(tx)
	assert.Equal(t, "2025-07", tx.YearMonth)

	date, ym := IndexFields(tx)
	assert.Equal(t, "2025-07-04", date)
	assert.Equal(t, "2025-07", ym)

	cat := &Category{Name: "Food"}
	RecomputeDerived(cat)
	date, ym = IndexFields(cat)
	assert.Empty(t, date)
	assert.Empty(t, ym)
}

func TestTableMethodMatchesRegistry(t *testing.T) {
	for _, tbl := range Tables() {
		rec, err := NewRecord(tbl)
		require.NoError(t, err)
		assert.Equal(t, tbl, rec.Table())
	}
}
