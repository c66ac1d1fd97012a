package core

import "errors"

// Error taxonomy for engine operations. Services wrap these with context via
// fmt.Errorf("...: %w", err); callers classify with errors.Is. Ownership
// mismatches on lookups report ErrNotFound so existence never leaks across
// users; ErrOwnership is reserved for cross-user references inside a payload.
var (
	ErrNotFound            = errors.New("not found")
	ErrValidation          = errors.New("validation failed")
	ErrOwnership           = errors.New("ownership violation")
	ErrTransferIntegrity   = errors.New("transfer must be edited as a pair")
	ErrDuplicateBudget     = errors.New("budget already exists for category and month")
	ErrAccountUnavailable  = errors.New("account is soft-deleted")
	ErrRuleInactive        = errors.New("recurring rule is inactive")
	ErrConcurrencyConflict = errors.New("concurrent update conflict, retry the operation")
)
