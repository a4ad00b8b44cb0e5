package storage

import (
	"sort"
	"time"
)

// MockRepository is an in-memory implementation of Repository for testing.
type MockRepository struct {
	records  map[string]*SyncRecord
	syncRuns map[int64]*SyncRun
	nextRun  int64

	// Hooks for test assertions
	SaveRecordCalled   bool
	LastSavedRecord    *SyncRecord
	StartSyncRunCalled bool

	// Error injection for testing error paths
	SaveRecordErr      error
	GetRecordErr       error
	ListRecordsErr     error
	GetStatsErr        error
	StartSyncRunErr    error
	CompleteSyncRunErr error
	ListSyncRunsErr    error
}

// NewMockRepository creates a new mock repository for testing
func NewMockRepository() *MockRepository {
	return &MockRepository{
		records:  make(map[string]*SyncRecord),
		syncRuns: make(map[int64]*SyncRun),
		nextRun:  1,
	}
}

// Compile-time check that MockRepository implements Repository
var _ Repository = (*MockRepository)(nil)

// Close does nothing for mock
func (m *MockRepository) Close() error {
	return nil
}

// SaveRecord saves a record to the in-memory map
func (m *MockRepository) SaveRecord(record *SyncRecord) error {
	m.SaveRecordCalled = true
	m.LastSavedRecord = record
	if m.SaveRecordErr != nil {
		return m.SaveRecordErr
	}
	// Deep copy to avoid test mutations
	copied := *record
	m.records[record.OrderID] = &copied
	return nil
}

// AddRecord seeds a record directly
func (m *MockRepository) AddRecord(record *SyncRecord) {
	m.records[record.OrderID] = record
}

// GetRecord retrieves a record by order ID
func (m *MockRepository) GetRecord(orderID string) (*SyncRecord, error) {
	if m.GetRecordErr != nil {
		return nil, m.GetRecordErr
	}
	return m.records[orderID], nil
}

// IsSynced reports whether an order has a successful record
func (m *MockRepository) IsSynced(orderID string) bool {
	record, ok := m.records[orderID]
	return ok && record.Status == StatusSuccess
}

// ListRecords returns records newest first
func (m *MockRepository) ListRecords(limit int) ([]*SyncRecord, error) {
	if m.ListRecordsErr != nil {
		return nil, m.ListRecordsErr
	}
	records := make([]*SyncRecord, 0, len(m.records))
	for _, record := range m.records {
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].SyncedAt.After(records[j].SyncedAt)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// GetStats computes stats over the in-memory records
func (m *MockRepository) GetStats() (*Stats, error) {
	if m.GetStatsErr != nil {
		return nil, m.GetStatsErr
	}
	stats := &Stats{}
	var last time.Time
	for _, record := range m.records {
		stats.TotalOrders++
		switch record.Status {
		case StatusSuccess:
			stats.SuccessCount++
			stats.TotalAmount += record.Amount
			if record.SyncedAt.After(last) {
				last = record.SyncedAt
			}
		case StatusError:
			stats.ErrorCount++
		case StatusSkipped:
			stats.SkippedCount++
		}
	}
	if !last.IsZero() {
		stats.LastSyncedAt = last.Format(time.RFC3339)
	}
	return stats, nil
}

// StartSyncRun records a new run
func (m *MockRepository) StartSyncRun() (int64, error) {
	m.StartSyncRunCalled = true
	if m.StartSyncRunErr != nil {
		return 0, m.StartSyncRunErr
	}
	id := m.nextRun
	m.nextRun++
	m.syncRuns[id] = &SyncRun{ID: id, StartedAt: time.Now().Format(time.RFC3339), Status: "running"}
	return id, nil
}

// CompleteSyncRun closes out a run
func (m *MockRepository) CompleteSyncRun(runID int64, found, synced, skipped, errored int) error {
	if m.CompleteSyncRunErr != nil {
		return m.CompleteSyncRunErr
	}
	run, ok := m.syncRuns[runID]
	if !ok {
		return nil
	}
	run.CompletedAt = time.Now().Format(time.RFC3339)
	run.OrdersFound = found
	run.OrdersSynced = synced
	run.OrdersSkipped = skipped
	run.OrdersErrored = errored
	run.Status = "completed"
	if errored > 0 {
		run.Status = "completed_with_errors"
	}
	return nil
}

// ListSyncRuns returns runs newest first
func (m *MockRepository) ListSyncRuns(limit int) ([]SyncRun, error) {
	if m.ListSyncRunsErr != nil {
		return nil, m.ListSyncRunsErr
	}
	runs := make([]SyncRun, 0, len(m.syncRuns))
	for _, run := range m.syncRuns {
		runs = append(runs, *run)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].ID > runs[j].ID })
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}
