package analytics

import "fmt"

// DataError indicates the ledger itself is unusable: required columns
// are missing or no valid rows survived cleaning. It is fatal for the
// whole analysis run.
type DataError struct {
	Reason string
}

func (e *DataError) Error() string {
	return "invalid ledger data: " + e.Reason
}

// ModelUnavailableError indicates an optional model backend is not
// available. The affected component degrades to a no-op or an absent
// result; the rest of the pipeline proceeds.
type ModelUnavailableError struct {
	Model string
}

func (e *ModelUnavailableError) Error() string {
	return fmt.Sprintf("model backend %q unavailable", e.Model)
}

// InsufficientDataError indicates a component received fewer rows than
// its training threshold. Non-fatal: the component emits its sentinel
// output (zeros, "Unknown", or an absent forecast).
type InsufficientDataError struct {
	Op   string
	Rows int
	Min  int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%s: insufficient data (%d rows, need %d)", e.Op, e.Rows, e.Min)
}

// ForecastError wraps a failure in one forecasting sub-stage. Only that
// sub-stage's result is absent; other sub-stages are unaffected.
type ForecastError struct {
	Stage string
	Err   error
}

func (e *ForecastError) Error() string {
	return fmt.Sprintf("forecast stage %s failed: %v", e.Stage, e.Err)
}

func (e *ForecastError) Unwrap() error { return e.Err }
