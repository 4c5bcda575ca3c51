package receipt

import "fmt"

// Reasons a draft field fails validation.
const (
	ReasonMissing   = "missing"
	ReasonMalformed = "malformed"
)

// Warning codes attached to otherwise successful outcomes.
const (
	WarnReconciliation = "reconciliation"
	WarnMarketConflict = "market_conflict"
)

// ValidationError is a caller-input error: the draft record is missing a
// required field or carries a value that cannot be coerced. Never retried.
type ValidationError struct {
	Reason string
	Field  string
	Value  string
}

func (e *ValidationError) Error() string {
	if e.Reason == ReasonMissing {
		return fmt.Sprintf("missing required field %q", e.Field)
	}
	return fmt.Sprintf("malformed field %q: %q", e.Field, e.Value)
}

func missingField(field string) *ValidationError {
	return &ValidationError{Reason: ReasonMissing, Field: field}
}

func malformedField(field, value string) *ValidationError {
	return &ValidationError{Reason: ReasonMalformed, Field: field, Value: value}
}

// DuplicateError signals that a receipt with the same natural key already
// exists. Under the default reject policy this is an expected steady-state
// condition, surfaced as a skipped outcome rather than a failure.
type DuplicateError struct {
	Key        NaturalKey
	ExistingID uint
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("receipt already exists (store %s, register %s, bon %s, date %s): id %d",
		e.Key.StoreNumber, e.Key.RegisterNumber, e.Key.ReceiptNumber,
		e.Key.PurchaseDate.Format("2006-01-02"), e.ExistingID)
}

// Warning is a non-fatal finding attached to a successful outcome, e.g. a
// reconciliation discrepancy or a market field conflict.
type Warning struct {
	Code    string
	Message string
}

func (w Warning) String() string {
	return fmt.Sprintf("[%s] %s", w.Code, w.Message)
}
