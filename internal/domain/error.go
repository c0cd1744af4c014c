package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound             = errors.New("entity not found")
	ErrAlreadyExists        = errors.New("entity already exists")
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrInvalidCreditType    = errors.New("unknown credit type")
	ErrInvalidAction        = errors.New("unknown usage action")
	ErrInsufficientCredits  = errors.New("insufficient credits")
	ErrNoActiveSubscription = errors.New("no active subscription")
	ErrUpgradeRequired      = errors.New("upgrade required")
	ErrUnauthenticated      = errors.New("unauthenticated")
	ErrRateLimited          = errors.New("rate limited")
	ErrProviderFailed       = errors.New("provider request failed")

	// Storage errors
	ErrOperationFailed    = errors.New("database operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid execution context")
)

// ProviderError carries a message that is safe to show to the end user
// (e.g. the remove.bg error title) alongside the underlying cause.
type ProviderError struct {
	Provider string
	Status   int
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return e.Provider + ": " + e.Message + ": " + e.Err.Error()
	}
	return e.Provider + ": " + e.Message
}

func (e *ProviderError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrProviderFailed}
	}
	return []error{ErrProviderFailed, e.Err}
}
