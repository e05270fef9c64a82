package models

import "github.com/shopspring/decimal"

// Transaction is a single expense or income entry.
type Transaction struct {
	SyncFields
	Amount      decimal.Decimal `json:"amount"`
	Type        string          `json:"type" validate:"omitempty,oneof=expense income"`
	Description string          `json:"description,omitempty"`
	Date        string          `json:"date" validate:"required"`
	CategoryID  string          `json:"category_id,omitempty"`
	ContextID   string          `json:"context_id,omitempty"`
	GroupID     string          `json:"group_id,omitempty"`
	RecurringID string          `json:"recurring_id,omitempty"`

	// YearMonth is derived from Date on every accepted write and indexed
	// locally for month queries. It is never part of the wire payload.
	YearMonth string `json:"-"`
}

func (t *Transaction) Table() Table { return TableTransactions }

// Category classifies transactions within a context.
type Category struct {
	SyncFields
	Name  string `json:"name" validate:"required"`
	Icon  string `json:"icon,omitempty"`
	Color string `json:"color,omitempty"`
	Type  string `json:"type" validate:"omitempty,oneof=expense income"`
}

func (c *Category) Table() Table { return TableCategories }

// Context is a spending context, e.g. personal versus family budgets.
type Context struct {
	SyncFields
	Name     string `json:"name" validate:"required"`
	Icon     string `json:"icon,omitempty"`
	Currency string `json:"currency,omitempty"`
}

func (c *Context) Table() Table { return TableContexts }

// Group is a shared workspace whose rows are owned by the group rather than
// by a single user.
type Group struct {
	SyncFields
	Name      string `json:"name" validate:"required"`
	CreatedBy string `json:"created_by,omitempty"`
}

func (g *Group) Table() Table { return TableGroups }

// GroupMember links a user to a group.
type GroupMember struct {
	SyncFields
	GroupID  string `json:"group_id" validate:"required"`
	MemberID string `json:"member_id" validate:"required"`
	Role     string `json:"role" validate:"omitempty,oneof=owner member"`
}

func (m *GroupMember) Table() Table { return TableGroupMembers }

// RecurringTransaction is a template that materializes transactions each
// time its next occurrence date comes due.
type RecurringTransaction struct {
	SyncFields
	Amount      decimal.Decimal `json:"amount"`
	Type        string          `json:"type" validate:"omitempty,oneof=expense income"`
	Description string          `json:"description,omitempty"`
	CategoryID  string          `json:"category_id,omitempty"`
	ContextID   string          `json:"context_id,omitempty"`
	GroupID     string          `json:"group_id,omitempty"`
	Frequency   string          `json:"frequency" validate:"required,oneof=daily weekly monthly yearly"`
	NextDate    string          `json:"next_date" validate:"required"`
	EndDate     string          `json:"end_date,omitempty"`
}

func (r *RecurringTransaction) Table() Table { return TableRecurringTransactions }

// CategoryBudget is a per-category spending limit for one month.
type CategoryBudget struct {
	SyncFields
	CategoryID string          `json:"category_id" validate:"required"`
	Month      string          `json:"month" validate:"required"`
	Amount     decimal.Decimal `json:"amount"`
}

func (b *CategoryBudget) Table() Table { return TableCategoryBudgets }

// UserSettings is the local per-user settings row. It is not a synced table;
// the delta-pull cursor lives here.
type UserSettings struct {
	UserID        string
	LastSyncToken int64
	Currency      string
}
