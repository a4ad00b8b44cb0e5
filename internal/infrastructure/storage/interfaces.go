package storage

// Repository defines the complete local ledger interface.
// The interface exists so handlers and the sync engine can be tested
// against mocks without a real database file.
type Repository interface {
	RecordRepository
	SyncRunRepository
	Close() error
}

// RecordRepository handles per-order sync records
type RecordRepository interface {
	// SaveRecord saves or updates the record for an order
	SaveRecord(record *SyncRecord) error

	// GetRecord retrieves a record by order id
	GetRecord(orderID string) (*SyncRecord, error)

	// IsSynced reports whether an order has a successful record
	IsSynced(orderID string) bool

	// ListRecords returns the most recent records, newest first
	ListRecords(limit int) ([]*SyncRecord, error)

	// GetStats returns aggregate ledger statistics
	GetStats() (*Stats, error)
}

// SyncRunRepository tracks poll cycles
type SyncRunRepository interface {
	// StartSyncRun records the start of a cycle and returns its id
	StartSyncRun() (int64, error)

	// CompleteSyncRun records the end of a cycle with its counters
	CompleteSyncRun(runID int64, found, synced, skipped, errored int) error

	// ListSyncRuns returns recent cycles, newest first
	ListSyncRuns(limit int) ([]SyncRun, error)
}
