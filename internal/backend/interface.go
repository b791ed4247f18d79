package backend

import (
	"context"

	"budget/internal/amqp"
	"budget/internal/services"
	"budget/internal/sheets"
	"budget/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the opened store, the optional AMQP client and the
// cleanup function releasing both.
type BackendResult struct {
	Store   storage.Store
	AMQP    *amqp.Client
	Cleanup CleanupFunc
}

// Publisher returns the AMQP client as a change publisher, or nil when AMQP
// is disabled. A nil *amqp.Client must not leak into the interface.
func (r *BackendResult) Publisher() services.ChangePublisher {
	if r.AMQP == nil {
		return nil
	}
	return r.AMQP
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend opens the store selected by config and connects to AMQP
	// when a URL is configured.
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
	// CreateReportWriter returns the Google Sheets writer when a spreadsheet is
	// configured and an in-memory writer otherwise.
	CreateReportWriter(ctx context.Context, config Config) (sheets.ReportWriter, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Backend type
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// AMQP (optional)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets report export (optional)
	GoogleSpreadsheetID      string
	GoogleReportSheetName    string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
