package core

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ImportStatus is the final outcome of an import attempt.
type ImportStatus string

const (
	ImportSucceeded ImportStatus = "succeeded"
	ImportRejected  ImportStatus = "rejected" // validation or duplicate rejection
	ImportFailed    ImportStatus = "failed"   // storage or decode failure
)

// maxHistoryDiagnostics caps how many diagnostics one history entry keeps.
const maxHistoryDiagnostics = 50

// ImportBatch records one import attempt. Entries are written on a best
// effort basis after the import finished; a failed write never changes the
// import's outcome.
type ImportBatch struct {
	ID          uuid.UUID    `json:"id"`
	FileName    string       `json:"file_name"`
	Status      ImportStatus `json:"status"`
	Stage       ImportStage  `json:"stage"`
	RowCount    int          `json:"row_count"`
	Inserted    int          `json:"inserted"`
	Skipped     int          `json:"skipped"`
	Diagnostics []string     `json:"diagnostics"`
	DurationMS  int64        `json:"duration_ms"`
	ClientIP    string       `json:"client_ip,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// newImportBatch builds the history entry for a finished import.
func newImportBatch(id uuid.UUID, fileName string, result ImportResult, err error, elapsed time.Duration) ImportBatch {
	b := ImportBatch{
		ID:         id,
		FileName:   fileName,
		Status:     ImportSucceeded,
		Stage:      StageDone,
		RowCount:   result.TotalRows,
		Inserted:   result.Inserted,
		Skipped:    result.Skipped,
		DurationMS: elapsed.Milliseconds(),
		CreatedAt:  time.Now().UTC(),
	}
	if err == nil {
		return b
	}

	b.Status = ImportFailed
	b.Stage = StageReceived
	b.Inserted = 0
	b.Skipped = 0

	if IsRejection(err) {
		b.Status = ImportRejected
	}

	var ie *ImportError
	if errors.As(err, &ie) {
		b.Stage = ie.Stage
		b.Diagnostics = append([]string(nil), ie.Diagnostics...)
		if b.Status == ImportFailed && ie.Err != nil {
			b.Diagnostics = append(b.Diagnostics, ie.Err.Error())
		}
	} else {
		b.Diagnostics = []string{err.Error()}
	}
	if len(b.Diagnostics) > maxHistoryDiagnostics {
		b.Diagnostics = b.Diagnostics[:maxHistoryDiagnostics]
	}
	return b
}

// IsRejection reports whether err is a problem with the submitted sheet,
// the user's to fix, rather than a system failure.
func IsRejection(err error) bool {
	for _, target := range []error{
		ErrValidation, ErrDuplicate,
		ErrUnsupportedFormat, ErrEmptySheet, ErrInvalidSheet, ErrFileTooLarge,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
