package ingest

import "fmt"

// FormatError means the source itself cannot be understood: no candidate
// encoding decodes it, the column mapping cannot resolve the required
// fields, or a dump contains nothing importable. It aborts the whole run.
type FormatError struct {
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("source format: %s: %v", e.Reason, e.Err)
	}
	return "source format: " + e.Reason
}

func (e *FormatError) Unwrap() error { return e.Err }

// MissingRequiredFieldError means neither a number nor a title column could
// be resolved, by name or by position. Without at least one of them no row
// can be keyed, so the import aborts instead of skipping every row.
type MissingRequiredFieldError struct {
	Columns []string
}

func (e *MissingRequiredFieldError) Error() string {
	if len(e.Columns) == 0 {
		return "no number or title column resolved"
	}
	return fmt.Sprintf("no number or title column found in %v", e.Columns)
}

// StoreError means the catalog store rejected the transaction scope itself
// (open, clear, count or commit), as opposed to a single row failing. Every
// following row would fail the same way, so the run stops immediately.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("catalog store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Per-row skip reasons. Skips are counted, never fatal.
const (
	SkipNoNumber = "no number"
)
