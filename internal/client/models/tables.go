package models

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Table names one synced replica table.
type Table string

const (
	TableCategories            Table = "categories"
	TableContexts              Table = "contexts"
	TableGroups                Table = "groups"
	TableGroupMembers          Table = "group_members"
	TableCategoryBudgets       Table = "category_budgets"
	TableRecurringTransactions Table = "recurring_transactions"
	TableTransactions          Table = "transactions"
)

// ErrUnknownTable is returned for a table name outside the synced set.
var ErrUnknownTable = errors.New("unknown table")

// tableInfo describes one entry of the closed table registry.
type tableInfo struct {
	newRecord func() Record

	// attributeOwner marks tables whose outgoing rows get user_id stamped.
	// Group-owned tables keep whatever ownership the row already carries.
	attributeOwner bool

	// dated marks tables whose rows carry a date with a derived year_month.
	dated bool
}

var registry = map[Table]tableInfo{
	TableCategories:            {newRecord: func() Record { return &Category{} }, attributeOwner: true},
	TableContexts:              {newRecord: func() Record { return &Context{} }, attributeOwner: true},
	TableGroups:                {newRecord: func() Record { return &Group{} }},
	TableGroupMembers:          {newRecord: func() Record { return &GroupMember{} }},
	TableCategoryBudgets:       {newRecord: func() Record { return &CategoryBudget{} }, attributeOwner: true},
	TableRecurringTransactions: {newRecord: func() Record { return &RecurringTransaction{} }, attributeOwner: true},
	TableTransactions:          {newRecord: func() Record { return &Transaction{} }, attributeOwner: true, dated: true},
}

// Tables returns every synced table, parents before dependents. Push and
// pull walk the slice in this order.
func Tables() []Table {
	return []Table{
		TableCategories,
		TableContexts,
		TableGroups,
		TableGroupMembers,
		TableCategoryBudgets,
		TableRecurringTransactions,
		TableTransactions,
	}
}

// Known reports whether t belongs to the synced set.
func Known(t Table) bool {
	_, ok := registry[t]
	return ok
}

// AttributesOwner reports whether outgoing rows of t get user_id stamped.
func AttributesOwner(t Table) bool {
	return registry[t].attributeOwner
}

// Dated reports whether rows of t carry a date with a derived year_month.
func Dated(t Table) bool {
	return registry[t].dated
}

// NewRecord returns an empty typed row for t.
func NewRecord(t Table) (Record, error) {
	info, ok := registry[t]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, t)
	}
	return info.newRecord(), nil
}

var validate = validator.New()

// Validate checks a typed row against its struct tags.
func Validate(rec Record) error {
	if err := validate.Struct(rec); err != nil {
		return fmt.Errorf("invalid %s row: %w", rec.Table(), err)
	}
	return nil
}

// DecodeRecord unmarshals data into the typed row for t, validates it and
// recomputes the derived index fields. Every remote row, whether pulled or
// delivered over the realtime channel, enters through here.
func DecodeRecord(t Table, data []byte) (Record, error) {
	rec, err := NewRecord(t)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("failed to decode %s row: %w", t, err)
	}
	if err := Validate(rec); err != nil {
		return nil, err
	}
	RecomputeDerived(rec)
	return rec, nil
}

// RecomputeDerived refreshes the locally derived index fields of rec.
func RecomputeDerived(rec Record) {
	if tx, ok := rec.(*Transaction); ok {
		tx.YearMonth = YearMonth(tx.Date)
	}
}

// IndexFields returns the date and year_month column values for rec.
// Both are empty for tables without a date.
func IndexFields(rec Record) (date, yearMonth string) {
	if tx, ok := rec.(*Transaction); ok {
		return tx.Date, tx.YearMonth
	}
	return "", ""
}
