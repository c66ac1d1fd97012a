package core

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	AccountCash    AccountType = "cash"
	AccountBank    AccountType = "bank"
	AccountEwallet AccountType = "ewallet"

	CategoryIncome  CategoryType = "income"
	CategoryExpense CategoryType = "expense"

	TransactionIncome      TransactionType = "income"
	TransactionExpense     TransactionType = "expense"
	TransactionTransferIn  TransactionType = "transfer_in"
	TransactionTransferOut TransactionType = "transfer_out"

	ActionCreate     AuditAction = "create"
	ActionUpdate     AuditAction = "update"
	ActionDelete     AuditAction = "delete"
	ActionSoftDelete AuditAction = "soft_delete"
	ActionRestore    AuditAction = "restore"
)

type (
	AccountType     string
	CategoryType    string
	TransactionType string
	AuditAction     string

	// Profile holds per-user locale defaults. One row per user, created at
	// first sign-in, never deleted.
	Profile struct {
		ID        string    `json:"id"`
		FullName  *string   `json:"full_name"`
		PhotoURL  *string   `json:"photo_url"`
		Locale    string    `json:"locale"`
		Currency  string    `json:"currency"`
		Timezone  string    `json:"timezone"`
		CreatedAt time.Time `json:"created_at"`
	}

	// Account carries a cached balance maintained incrementally by the ledger
	// engine. The balance always equals the sum of signed amounts of all
	// non-soft-deleted transactions referencing the account.
	Account struct {
		ID        string          `json:"id"`
		UserID    string          `json:"user_id"`
		Name      string          `json:"name"`
		Type      AccountType     `json:"type"`
		Balance   decimal.Decimal `json:"balance"`
		Currency  string          `json:"currency"`
		CreatedAt time.Time       `json:"created_at"`
		DeletedAt *time.Time      `json:"deleted_at"`
	}

	Category struct {
		ID        string       `json:"id"`
		UserID    string       `json:"user_id"`
		Name      string       `json:"name"`
		Type      CategoryType `json:"type"`
		Color     string       `json:"color"`
		IsSystem  bool         `json:"is_system"`
		CreatedAt time.Time    `json:"created_at"`
		DeletedAt *time.Time   `json:"deleted_at"`
	}

	// Transaction amounts are stored non-negative; the sign of the balance
	// delta is derived from Type. TransferGroupID is non-nil exactly for
	// transfer legs and shared by the two legs of one transfer.
	Transaction struct {
		ID              string          `json:"id"`
		UserID          string          `json:"user_id"`
		AccountID       string          `json:"account_id"`
		CategoryID      string          `json:"category_id"`
		Type            TransactionType `json:"type"`
		Amount          decimal.Decimal `json:"amount"`
		Currency        string          `json:"currency"`
		OccurredAt      Date            `json:"occurred_at"`
		Note            *string         `json:"note"`
		Tags            []string        `json:"tags"`
		ReceiptURL      *string         `json:"receipt_url"`
		TransferGroupID *string         `json:"transfer_group_id"`
		CreatedAt       time.Time       `json:"created_at"`
		DeletedAt       *time.Time      `json:"deleted_at"`
	}

	// Transfer is the caller-facing view of a linked transfer pair. Storage
	// keeps two transaction rows; the coordinator is the only mutation path.
	Transfer struct {
		Out Transaction `json:"out"`
		In  Transaction `json:"in"`
	}

	Budget struct {
		ID         string          `json:"id"`
		UserID     string          `json:"user_id"`
		CategoryID string          `json:"category_id"`
		Month      Date            `json:"month"`
		Amount     decimal.Decimal `json:"amount"`
		Rollover   bool            `json:"rollover"`
		CreatedAt  time.Time       `json:"created_at"`
	}

	// TransactionTemplate is the partial transaction a recurring rule
	// materializes. For transfer templates ToAccountID names the destination
	// and AccountID the source.
	TransactionTemplate struct {
		Type        TransactionType `json:"type"`
		AccountID   string          `json:"account_id"`
		ToAccountID string          `json:"to_account_id,omitempty"`
		CategoryID  string          `json:"category_id,omitempty"`
		Amount      decimal.Decimal `json:"amount"`
		Currency    string          `json:"currency"`
		Note        *string         `json:"note,omitempty"`
		Tags        []string        `json:"tags,omitempty"`
	}

	// RecurringRule invariant: NextRun is the earliest not-yet-materialized
	// occurrence; it only moves forward, and only after successful
	// materialization.
	RecurringRule struct {
		ID        string              `json:"id"`
		UserID    string              `json:"user_id"`
		Template  TransactionTemplate `json:"template"`
		Schedule  string              `json:"schedule"`
		NextRun   Date                `json:"next_run"`
		Active    bool                `json:"active"`
		CreatedAt time.Time           `json:"created_at"`
	}

	Goal struct {
		ID            string          `json:"id"`
		UserID        string          `json:"user_id"`
		Name          string          `json:"name"`
		TargetAmount  decimal.Decimal `json:"target_amount"`
		CurrentAmount decimal.Decimal `json:"current_amount"`
		Deadline      Date            `json:"deadline"`
		CreatedAt     time.Time       `json:"created_at"`
		DeletedAt     *time.Time      `json:"deleted_at"`
	}

	// AuditLog rows are append-only; Meta carries the changed-field diff for
	// updates and the full snapshot for everything else.
	AuditLog struct {
		ID        int64           `json:"id"`
		UserID    string          `json:"user_id"`
		Action    AuditAction     `json:"action"`
		TableName string          `json:"table_name"`
		RecordID  string          `json:"record_id"`
		Meta      json.RawMessage `json:"meta"`
		CreatedAt time.Time       `json:"created_at"`
	}
)

// Valid reports whether t is a known account type.
func (t AccountType) Valid() bool {
	switch t {
	case AccountCash, AccountBank, AccountEwallet:
		return true
	}
	return false
}

func (t CategoryType) Valid() bool {
	return t == CategoryIncome || t == CategoryExpense
}

func (t TransactionType) Valid() bool {
	switch t {
	case TransactionIncome, TransactionExpense, TransactionTransferIn, TransactionTransferOut:
		return true
	}
	return false
}

// IsTransfer reports whether t is one of the two transfer leg types.
func (t TransactionType) IsTransfer() bool {
	return t == TransactionTransferIn || t == TransactionTransferOut
}

func (a AuditAction) Valid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete, ActionSoftDelete, ActionRestore:
		return true
	}
	return false
}

// IsDeleted reports whether the transaction is soft-deleted.
func (t Transaction) IsDeleted() bool {
	return t.DeletedAt != nil
}

// IsDeleted reports whether the account is soft-deleted.
func (a Account) IsDeleted() bool {
	return a.DeletedAt != nil
}

// SignedDelta is the balance contribution of this transaction.
func (t Transaction) SignedDelta() decimal.Decimal {
	return SignedAmount(t.Type, t.Amount)
}
