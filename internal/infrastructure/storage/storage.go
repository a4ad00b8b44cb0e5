// Package storage keeps the local SQLite ledger of synchronized orders.
// The ledger is the durable audit trail: every order the sync engine
// touches leaves a record, whether it was written, skipped, or failed.
package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Storage provides SQLite database access for sync records.
// It implements the Repository interface.
type Storage struct {
	db *sql.DB
}

// Compile-time check that Storage implements Repository
var _ Repository = (*Storage)(nil)

// NewStorage creates a new storage instance with SQLite database
func NewStorage(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// Enable foreign key constraints (SQLite-specific)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Storage{db: db}

	if err := s.runMigrations(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

// SaveRecord saves or updates the ledger record for an order
func (s *Storage) SaveRecord(record *SyncRecord) error {
	productsJSON, _ := json.Marshal(record.Products)

	if record.SyncedAt.IsZero() {
		record.SyncedAt = time.Now()
	}

	query := `
	INSERT OR REPLACE INTO sync_records
	(order_id, amount, status, match_type, confidence, strategy,
	 remote_key, error_message, synced_at, products_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		record.OrderID,
		record.Amount,
		record.Status,
		record.MatchType,
		record.Confidence,
		record.Strategy,
		record.RemoteKey,
		record.ErrorMessage,
		record.SyncedAt,
		string(productsJSON),
	)

	return err
}

// GetRecord retrieves a ledger record by order ID.
// Returns (nil, nil) when no record exists.
func (s *Storage) GetRecord(orderID string) (*SyncRecord, error) {
	query := `
	SELECT id, order_id, amount, status, match_type, confidence, strategy,
	       remote_key, error_message, synced_at, products_json
	FROM sync_records WHERE order_id = ?
	`

	record, err := s.scanRecord(s.db.QueryRow(query, orderID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return record, err
}

// IsSynced reports whether an order already has a successful ledger record
func (s *Storage) IsSynced(orderID string) bool {
	var count int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM sync_records WHERE order_id = ? AND status = ?
	`, orderID, StatusSuccess).Scan(&count)
	return err == nil && count > 0
}

// ListRecords returns the most recent ledger records, newest first
func (s *Storage) ListRecords(limit int) ([]*SyncRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(`
		SELECT id, order_id, amount, status, match_type, confidence, strategy,
		       remote_key, error_message, synced_at, products_json
		FROM sync_records
		ORDER BY synced_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var records []*SyncRecord
	for rows.Next() {
		record, err := s.scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

// GetStats returns aggregate ledger statistics
func (s *Storage) GetStats() (*Stats, error) {
	stats := &Stats{}

	query := `
	SELECT
		COUNT(*),
		COALESCE(SUM(CASE WHEN status = 'success' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN status = 'error' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN status = 'skipped' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN status = 'success' THEN amount ELSE 0 END), 0)
	FROM sync_records
	`

	err := s.db.QueryRow(query).Scan(
		&stats.TotalOrders,
		&stats.SuccessCount,
		&stats.ErrorCount,
		&stats.SkippedCount,
		&stats.TotalAmount,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query stats: %w", err)
	}

	err = s.db.QueryRow(`
		SELECT COUNT(*) FROM sync_records
		WHERE status = 'success' AND date(synced_at) = date('now', 'localtime')
	`).Scan(&stats.TodaySynced)
	if err != nil {
		return nil, fmt.Errorf("failed to query today's count: %w", err)
	}

	var lastSynced sql.NullString
	err = s.db.QueryRow(`
		SELECT MAX(synced_at) FROM sync_records WHERE status = 'success'
	`).Scan(&lastSynced)
	if err != nil {
		return nil, fmt.Errorf("failed to query last sync time: %w", err)
	}
	if lastSynced.Valid {
		stats.LastSyncedAt = lastSynced.String
	}

	return stats, nil
}

// StartSyncRun records the start of a poll cycle and returns its id
func (s *Storage) StartSyncRun() (int64, error) {
	result, err := s.db.Exec(`
		INSERT INTO sync_runs (started_at, status) VALUES (CURRENT_TIMESTAMP, 'running')
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to start sync run: %w", err)
	}
	return result.LastInsertId()
}

// CompleteSyncRun records the end of a poll cycle with its counters
func (s *Storage) CompleteSyncRun(runID int64, found, synced, skipped, errored int) error {
	status := "completed"
	if errored > 0 {
		status = "completed_with_errors"
	}

	_, err := s.db.Exec(`
		UPDATE sync_runs
		SET completed_at = CURRENT_TIMESTAMP,
		    orders_found = ?,
		    orders_synced = ?,
		    orders_skipped = ?,
		    orders_errored = ?,
		    status = ?
		WHERE id = ?
	`, found, synced, skipped, errored, status, runID)
	if err != nil {
		return fmt.Errorf("failed to complete sync run %d: %w", runID, err)
	}
	return nil
}

// ListSyncRuns returns recent poll cycles, newest first
func (s *Storage) ListSyncRuns(limit int) ([]SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(`
		SELECT id, started_at, COALESCE(completed_at, ''),
		       orders_found, orders_synced, orders_skipped, orders_errored, status
		FROM sync_runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var runs []SyncRun
	for rows.Next() {
		var run SyncRun
		err := rows.Scan(
			&run.ID,
			&run.StartedAt,
			&run.CompletedAt,
			&run.OrdersFound,
			&run.OrdersSynced,
			&run.OrdersSkipped,
			&run.OrdersErrored,
			&run.Status,
		)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// scanner abstracts sql.Row and sql.Rows for record scanning
type scanner interface {
	Scan(dest ...any) error
}

func (s *Storage) scanRecord(row scanner) (*SyncRecord, error) {
	record := &SyncRecord{}
	var matchType, strategy, remoteKey, errorMessage sql.NullString
	err := row.Scan(
		&record.ID,
		&record.OrderID,
		&record.Amount,
		&record.Status,
		&matchType,
		&record.Confidence,
		&strategy,
		&remoteKey,
		&errorMessage,
		&record.SyncedAt,
		&record.ProductsJSON,
	)
	if err != nil {
		return nil, err
	}

	record.MatchType = matchType.String
	record.Strategy = strategy.String
	record.RemoteKey = remoteKey.String
	record.ErrorMessage = errorMessage.String

	// Unmarshal errors ignored: products are an optional enrichment field
	if record.ProductsJSON != "" && record.ProductsJSON != "null" {
		_ = json.Unmarshal([]byte(record.ProductsJSON), &record.Products)
	}

	return record, nil
}
