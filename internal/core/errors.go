package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Row-level error kinds.
var (
	// ErrStructural marks a row missing a required cell.
	ErrStructural = errors.New("structural error")

	// ErrFormat marks an unparseable date or non-integer quantity.
	ErrFormat = errors.New("format error")
)

// Batch-level failure causes, wrapped by *ImportError.
var (
	ErrValidation = errors.New("validation failed")
	ErrDuplicate  = errors.New("duplicate ledger entries")
	ErrStorage    = errors.New("storage failure")

	// ErrRepeatedKey rejects a batch that lists one (date, sku) more than
	// once. It wraps ErrDuplicate.
	ErrRepeatedKey = fmt.Errorf("%w: repeated within the file", ErrDuplicate)
)

// RowError is one problem found in one sheet row.
type RowError struct {
	Row     int    // 1-indexed sheet row; the header is row 1
	Kind    error  // ErrStructural or ErrFormat
	Field   string // Column name, empty for whole-row problems
	Message string
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Message)
}

func (e RowError) Unwrap() error {
	return e.Kind
}

// rowErrorJSON is the wire form of RowError.
type rowErrorJSON struct {
	Row     int    `json:"row"`
	Kind    string `json:"kind"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// Wire names of the row error kinds.
const (
	kindStructural = "structural"
	kindFormat     = "format"
)

func (e RowError) MarshalJSON() ([]byte, error) {
	var kind string
	switch {
	case errors.Is(e.Kind, ErrStructural):
		kind = kindStructural
	case errors.Is(e.Kind, ErrFormat):
		kind = kindFormat
	}
	return json.Marshal(rowErrorJSON{Row: e.Row, Kind: kind, Field: e.Field, Message: e.Message})
}

func (e *RowError) UnmarshalJSON(data []byte) error {
	var v rowErrorJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*e = RowError{Row: v.Row, Field: v.Field, Message: v.Message}
	switch v.Kind {
	case kindStructural:
		e.Kind = ErrStructural
	case kindFormat:
		e.Kind = ErrFormat
	case "":
	default:
		return fmt.Errorf("unknown row error kind %q", v.Kind)
	}
	return nil
}

// ImportStage names the pipeline state an import reached.
type ImportStage string

const (
	StageReceived          ImportStage = "received"
	StageValidating        ImportStage = "validating"
	StageDuplicateChecking ImportStage = "duplicate_checking"
	StageCommitting        ImportStage = "committing"
	StageDone              ImportStage = "done"
)

// ImportError is a rejected or failed import. Nothing from the batch was
// written when an ImportError is returned.
type ImportError struct {
	Stage       ImportStage
	Diagnostics []string
	Conflicts   []Key      // Set when Stage is StageDuplicateChecking
	RowErrors   []RowError // Set when Stage is StageValidating
	Err         error
}

func (e *ImportError) Error() string {
	var b strings.Builder
	b.WriteString("import ")
	b.WriteString(string(e.Stage))
	b.WriteString(": ")
	if e.Err != nil {
		b.WriteString(e.Err.Error())
	} else {
		b.WriteString("failed")
	}
	if len(e.Diagnostics) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(e.Diagnostics, "; "))
		b.WriteString(")")
	}
	return b.String()
}

func (e *ImportError) Unwrap() error {
	return e.Err
}

// storageError wraps a commit or lookup failure so that both ErrStorage and
// the driver error stay reachable through errors.Is/As.
type storageError struct {
	op  string
	err error
}

func (e *storageError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrStorage, e.op, e.err)
}

func (e *storageError) Unwrap() []error {
	return []error{ErrStorage, e.err}
}

func wrapStorage(op string, err error) error {
	return &storageError{op: op, err: err}
}
