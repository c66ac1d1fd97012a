package core

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Input payloads for engine operations. The transport layer is expected to
// have decoded them already; Validate covers shape constraints so the engine
// never trusts the caller.

var hexColorRe = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

type CreateAccountInput struct {
	Name     string
	Type     AccountType
	Currency string
}

func (in CreateAccountInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: account name is required", ErrValidation)
	}
	if !in.Type.Valid() {
		return fmt.Errorf("%w: unknown account type %q", ErrValidation, in.Type)
	}
	if in.Currency == "" {
		return fmt.Errorf("%w: currency is required", ErrValidation)
	}
	return nil
}

type UpdateAccountInput struct {
	ID       string
	Name     *string
	Type     *AccountType
	Currency *string
}

func (in UpdateAccountInput) Validate() error {
	if in.ID == "" {
		return fmt.Errorf("%w: account id is required", ErrValidation)
	}
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return fmt.Errorf("%w: account name cannot be empty", ErrValidation)
	}
	if in.Type != nil && !in.Type.Valid() {
		return fmt.Errorf("%w: unknown account type %q", ErrValidation, *in.Type)
	}
	return nil
}

type CreateCategoryInput struct {
	Name  string
	Type  CategoryType
	Color string
}

func (in CreateCategoryInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: category name is required", ErrValidation)
	}
	if !in.Type.Valid() {
		return fmt.Errorf("%w: unknown category type %q", ErrValidation, in.Type)
	}
	if !hexColorRe.MatchString(in.Color) {
		return fmt.Errorf("%w: color must be a #RRGGBB hex literal", ErrValidation)
	}
	return nil
}

type UpdateCategoryInput struct {
	ID    string
	Name  *string
	Type  *CategoryType
	Color *string
}

func (in UpdateCategoryInput) Validate() error {
	if in.ID == "" {
		return fmt.Errorf("%w: category id is required", ErrValidation)
	}
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return fmt.Errorf("%w: category name cannot be empty", ErrValidation)
	}
	if in.Type != nil && !in.Type.Valid() {
		return fmt.Errorf("%w: unknown category type %q", ErrValidation, *in.Type)
	}
	if in.Color != nil && !hexColorRe.MatchString(*in.Color) {
		return fmt.Errorf("%w: color must be a #RRGGBB hex literal", ErrValidation)
	}
	return nil
}

type CreateTransactionInput struct {
	AccountID  string
	CategoryID string
	Type       TransactionType
	Amount     decimal.Decimal
	Currency   string
	OccurredAt Date
	Note       *string
	Tags       []string
	ReceiptURL *string
}

func (in CreateTransactionInput) Validate() error {
	if in.AccountID == "" || in.CategoryID == "" {
		return fmt.Errorf("%w: account and category are required", ErrValidation)
	}
	if !in.Type.Valid() {
		return fmt.Errorf("%w: unknown transaction type %q", ErrValidation, in.Type)
	}
	if in.Type.IsTransfer() {
		// Transfer legs are created only through the transfer coordinator.
		return fmt.Errorf("%w: transfer legs cannot be created directly", ErrTransferIntegrity)
	}
	if !ValidAmount(in.Amount) {
		return fmt.Errorf("%w: amount must be positive with at most two decimals", ErrValidation)
	}
	if in.Currency == "" {
		return fmt.Errorf("%w: currency is required", ErrValidation)
	}
	if in.OccurredAt.IsZero() {
		return fmt.Errorf("%w: occurred_at is required", ErrValidation)
	}
	return nil
}

type UpdateTransactionInput struct {
	ID         string
	AccountID  *string
	CategoryID *string
	Type       *TransactionType
	Amount     *decimal.Decimal
	Currency   *string
	OccurredAt *Date
	Note       *string
	Tags       []string // nil means unchanged
	ReceiptURL *string
}

func (in UpdateTransactionInput) Validate() error {
	if in.ID == "" {
		return fmt.Errorf("%w: transaction id is required", ErrValidation)
	}
	if in.Type != nil && !in.Type.Valid() {
		return fmt.Errorf("%w: unknown transaction type %q", ErrValidation, *in.Type)
	}
	if in.Type != nil && in.Type.IsTransfer() {
		return fmt.Errorf("%w: transactions cannot be turned into transfer legs", ErrTransferIntegrity)
	}
	if in.Amount != nil && !ValidAmount(*in.Amount) {
		return fmt.Errorf("%w: amount must be positive with at most two decimals", ErrValidation)
	}
	return nil
}

// TouchesBalance reports whether the update changes any balance-affecting
// field. Display-only edits (note, tags, receipt_url) are permitted on
// transfer legs; everything else must go through the coordinator.
func (in UpdateTransactionInput) TouchesBalance() bool {
	return in.AccountID != nil || in.Type != nil || in.Amount != nil ||
		in.CategoryID != nil || in.Currency != nil || in.OccurredAt != nil
}

type CreateTransferInput struct {
	FromAccountID string
	ToAccountID   string
	Amount        decimal.Decimal
	Currency      string
	OccurredAt    Date
	Note          *string
}

func (in CreateTransferInput) Validate() error {
	if in.FromAccountID == "" || in.ToAccountID == "" {
		return fmt.Errorf("%w: both accounts are required", ErrValidation)
	}
	if in.FromAccountID == in.ToAccountID {
		return fmt.Errorf("%w: cannot transfer to the same account", ErrValidation)
	}
	if !ValidAmount(in.Amount) {
		return fmt.Errorf("%w: amount must be positive with at most two decimals", ErrValidation)
	}
	if in.Currency == "" {
		return fmt.Errorf("%w: currency is required", ErrValidation)
	}
	if in.OccurredAt.IsZero() {
		return fmt.Errorf("%w: occurred_at is required", ErrValidation)
	}
	return nil
}

type UpdateTransferInput struct {
	TransferGroupID string
	Amount          *decimal.Decimal
	OccurredAt      *Date
	Note            *string
}

func (in UpdateTransferInput) Validate() error {
	if in.TransferGroupID == "" {
		return fmt.Errorf("%w: transfer group id is required", ErrValidation)
	}
	if in.Amount != nil && !ValidAmount(*in.Amount) {
		return fmt.Errorf("%w: amount must be positive with at most two decimals", ErrValidation)
	}
	return nil
}

type CreateBudgetInput struct {
	CategoryID string
	Month      Date // first of month
	Amount     decimal.Decimal
	Rollover   bool
}

func (in CreateBudgetInput) Validate() error {
	if in.CategoryID == "" {
		return fmt.Errorf("%w: category id is required", ErrValidation)
	}
	if in.Month.IsZero() || in.Month.Day() != 1 {
		return fmt.Errorf("%w: month must be a first-of-month date", ErrValidation)
	}
	if in.Amount.Sign() < 0 || in.Amount.Exponent() < -2 {
		return fmt.Errorf("%w: budget amount must be non-negative with at most two decimals", ErrValidation)
	}
	return nil
}

type UpdateBudgetInput struct {
	ID       string
	Amount   *decimal.Decimal
	Rollover *bool
}

func (in UpdateBudgetInput) Validate() error {
	if in.ID == "" {
		return fmt.Errorf("%w: budget id is required", ErrValidation)
	}
	if in.Amount != nil && (in.Amount.Sign() < 0 || in.Amount.Exponent() < -2) {
		return fmt.Errorf("%w: budget amount must be non-negative with at most two decimals", ErrValidation)
	}
	return nil
}

type CreateRecurringRuleInput struct {
	Template TransactionTemplate
	Schedule string
	NextRun  Date
	Active   bool
}

func (in CreateRecurringRuleInput) Validate() error {
	if in.Schedule == "" {
		return fmt.Errorf("%w: schedule is required", ErrValidation)
	}
	if in.NextRun.IsZero() {
		return fmt.Errorf("%w: next_run is required", ErrValidation)
	}
	return in.Template.Validate()
}

type UpdateRecurringRuleInput struct {
	ID       string
	Template *TransactionTemplate
	Schedule *string
	NextRun  *Date
	Active   *bool
}

func (in UpdateRecurringRuleInput) Validate() error {
	if in.ID == "" {
		return fmt.Errorf("%w: rule id is required", ErrValidation)
	}
	if in.Schedule != nil && *in.Schedule == "" {
		return fmt.Errorf("%w: schedule cannot be empty", ErrValidation)
	}
	if in.Template != nil {
		return in.Template.Validate()
	}
	return nil
}

// Validate checks the template the same way a direct create would be checked;
// the referenced entities are verified at materialization time.
func (t TransactionTemplate) Validate() error {
	if !t.Type.Valid() {
		return fmt.Errorf("%w: unknown template transaction type %q", ErrValidation, t.Type)
	}
	if t.AccountID == "" {
		return fmt.Errorf("%w: template account id is required", ErrValidation)
	}
	if t.Type.IsTransfer() {
		if t.ToAccountID == "" {
			return fmt.Errorf("%w: transfer template requires a destination account", ErrValidation)
		}
		if t.ToAccountID == t.AccountID {
			return fmt.Errorf("%w: transfer template cannot target its source account", ErrValidation)
		}
	} else if t.CategoryID == "" {
		return fmt.Errorf("%w: template category id is required", ErrValidation)
	}
	if !ValidAmount(t.Amount) {
		return fmt.Errorf("%w: template amount must be positive with at most two decimals", ErrValidation)
	}
	if t.Currency == "" {
		return fmt.Errorf("%w: template currency is required", ErrValidation)
	}
	return nil
}

type CreateGoalInput struct {
	Name          string
	TargetAmount  decimal.Decimal
	CurrentAmount decimal.Decimal
	Deadline      Date
}

func (in CreateGoalInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: goal name is required", ErrValidation)
	}
	if in.TargetAmount.Sign() <= 0 {
		return fmt.Errorf("%w: target amount must be positive", ErrValidation)
	}
	if in.CurrentAmount.Sign() < 0 {
		return fmt.Errorf("%w: current amount cannot be negative", ErrValidation)
	}
	if in.Deadline.IsZero() {
		return fmt.Errorf("%w: deadline is required", ErrValidation)
	}
	return nil
}

type UpdateGoalInput struct {
	ID            string
	Name          *string
	TargetAmount  *decimal.Decimal
	CurrentAmount *decimal.Decimal
	Deadline      *Date
}

func (in UpdateGoalInput) Validate() error {
	if in.ID == "" {
		return fmt.Errorf("%w: goal id is required", ErrValidation)
	}
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return fmt.Errorf("%w: goal name cannot be empty", ErrValidation)
	}
	if in.TargetAmount != nil && in.TargetAmount.Sign() <= 0 {
		return fmt.Errorf("%w: target amount must be positive", ErrValidation)
	}
	if in.CurrentAmount != nil && in.CurrentAmount.Sign() < 0 {
		return fmt.Errorf("%w: current amount cannot be negative", ErrValidation)
	}
	return nil
}

type CreateProfileInput struct {
	ID       string
	FullName *string
	PhotoURL *string
	Locale   string
	Currency string
	Timezone string
}

func (in CreateProfileInput) Validate() error {
	if in.ID == "" {
		return fmt.Errorf("%w: profile id is required", ErrValidation)
	}
	return nil
}

type UpdateProfileInput struct {
	FullName *string
	PhotoURL *string
	Locale   *string
	Currency *string
	Timezone *string
}

// TransactionFilter narrows GetTransactions listings.
type TransactionFilter struct {
	Limit      int
	Offset     int
	DateFrom   *Date
	DateTo     *Date
	AccountID  *string
	CategoryID *string
	Type       *TransactionType
	Tags       []string
}

func (f TransactionFilter) Validate() error {
	if f.Limit <= 0 {
		return fmt.Errorf("%w: limit must be positive", ErrValidation)
	}
	if f.Offset < 0 {
		return fmt.Errorf("%w: offset cannot be negative", ErrValidation)
	}
	if f.Type != nil && !f.Type.Valid() {
		return fmt.Errorf("%w: unknown transaction type %q", ErrValidation, *f.Type)
	}
	return nil
}

// AuditFilter narrows GetAuditLogs listings.
type AuditFilter struct {
	Limit     int
	Offset    int
	TableName *string
	Action    *AuditAction
	RecordID  *string
}

func (f AuditFilter) Validate() error {
	if f.Limit <= 0 {
		return fmt.Errorf("%w: limit must be positive", ErrValidation)
	}
	if f.Offset < 0 {
		return fmt.Errorf("%w: offset cannot be negative", ErrValidation)
	}
	if f.Action != nil && !f.Action.Valid() {
		return fmt.Errorf("%w: unknown audit action %q", ErrValidation, *f.Action)
	}
	return nil
}

// Page is the pagination envelope for filtered listings.
type Page[T any] struct {
	Data   []T `json:"data"`
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}
