// Package firebase talks to the Firebase Realtime Database over its REST
// protocol: every node is addressable as <database_url>/<path>.json, GET on a
// missing node returns the JSON literal null, PUT writes a node, DELETE
// removes it.
//
// Three buckets are used: the lookup bucket (orders) holds ids checked for
// existence, the write bucket (orders_auto) holds the synchronized payloads
// under time-bucketed keys, and sync_logs collects append-only log entries.
package firebase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/eshaffer321/tonglian-sync-backend/internal/infrastructure/config"
)

// LogEntry is one append-only sync log record
type LogEntry struct {
	OrderID   string `json:"order_id"`
	Status    string `json:"status"` // "success", "error", or "skipped"
	Timestamp string `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
}

// Client is a thin Realtime Database REST client
type Client struct {
	http   *resty.Client
	cfg    config.FirebaseConfig
	logger *slog.Logger
}

// NewClient creates a client for the configured database
func NewClient(cfg config.FirebaseConfig, logger *slog.Logger) (*Client, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("firebase database url is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	client := resty.New()
	client.SetBaseURL(cfg.DatabaseURL)
	client.SetTimeout(30 * time.Second)
	if cfg.AuthToken != "" {
		client.SetQueryParam("auth", cfg.AuthToken)
	}

	return &Client{http: client, cfg: cfg, logger: logger}, nil
}

// OrderExists checks the lookup bucket for an order id
func (c *Client) OrderExists(ctx context.Context, orderID string) (bool, error) {
	res, err := c.http.R().
		SetContext(ctx).
		Get(c.nodePath(c.cfg.OrdersCollection, orderID))
	if err != nil {
		return false, fmt.Errorf("existence check for %s failed: %w", orderID, err)
	}
	if res.StatusCode() != http.StatusOK {
		return false, fmt.Errorf("existence check for %s returned HTTP %d", orderID, res.StatusCode())
	}
	return string(res.Body()) != "null", nil
}

// WriteAutoOrder writes a synchronized payload under the write bucket.
// Keys are time-bucketed by the caller so repeated runs never overwrite.
func (c *Client) WriteAutoOrder(ctx context.Context, key string, payload any) error {
	res, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Put(c.nodePath(c.cfg.AutoCollection, key))
	if err != nil {
		return fmt.Errorf("order write failed: %w", err)
	}
	if res.StatusCode() != http.StatusOK {
		return fmt.Errorf("order write returned HTTP %d", res.StatusCode())
	}
	return nil
}

// AppendSyncLog appends one log entry under a fresh unique key
func (c *Client) AppendSyncLog(ctx context.Context, orderID, status string, data any) error {
	entry := LogEntry{
		OrderID:   orderID,
		Status:    status,
		Timestamp: time.Now().Format(time.RFC3339),
		Data:      data,
	}

	res, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(entry).
		Put(c.nodePath(c.cfg.SyncLogCollection, uuid.NewString()))
	if err != nil {
		return fmt.Errorf("sync log append failed: %w", err)
	}
	if res.StatusCode() != http.StatusOK {
		return fmt.Errorf("sync log append returned HTTP %d", res.StatusCode())
	}
	return nil
}

// RecentOrders returns up to limit orders from the lookup bucket, most
// recently synchronized last (Realtime Database ordering).
func (c *Client) RecentOrders(ctx context.Context, limit int) ([]map[string]any, error) {
	if limit <= 0 {
		limit = 50
	}

	res, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("orderBy", `"sync_time"`).
		SetQueryParam("limitToLast", fmt.Sprint(limit)).
		Get(c.nodePath(c.cfg.OrdersCollection))
	if err != nil {
		return nil, fmt.Errorf("recent orders query failed: %w", err)
	}
	if res.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("recent orders query returned HTTP %d", res.StatusCode())
	}

	body := res.Body()
	if string(body) == "null" {
		return nil, nil
	}

	var keyed map[string]map[string]any
	if err := json.Unmarshal(body, &keyed); err != nil {
		return nil, fmt.Errorf("failed to decode recent orders: %w", err)
	}

	orders := make([]map[string]any, 0, len(keyed))
	for _, order := range keyed {
		orders = append(orders, order)
	}
	return orders, nil
}

// CleanupLogs deletes log entries older than the cutoff. Returns how many
// entries were removed.
func (c *Client) CleanupLogs(ctx context.Context, olderThan time.Time) (int, error) {
	res, err := c.http.R().
		SetContext(ctx).
		Get(c.nodePath(c.cfg.SyncLogCollection))
	if err != nil {
		return 0, fmt.Errorf("log listing failed: %w", err)
	}
	if res.StatusCode() != http.StatusOK {
		return 0, fmt.Errorf("log listing returned HTTP %d", res.StatusCode())
	}

	body := res.Body()
	if string(body) == "null" {
		return 0, nil
	}

	var entries map[string]LogEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return 0, fmt.Errorf("failed to decode log entries: %w", err)
	}

	removed := 0
	for key, entry := range entries {
		ts, err := time.Parse(time.RFC3339, entry.Timestamp)
		if err != nil || !ts.Before(olderThan) {
			continue
		}
		res, err := c.http.R().
			SetContext(ctx).
			Delete(c.nodePath(c.cfg.SyncLogCollection, key))
		if err != nil {
			return removed, fmt.Errorf("failed to delete log %s: %w", key, err)
		}
		if res.StatusCode() != http.StatusOK {
			return removed, fmt.Errorf("log delete returned HTTP %d", res.StatusCode())
		}
		removed++
	}

	if removed > 0 {
		c.logger.Info("Cleaned up old sync logs", "removed", removed)
	}
	return removed, nil
}

// nodePath joins path segments into a REST node path ending in .json
func (c *Client) nodePath(segments ...string) string {
	path := ""
	for _, segment := range segments {
		path += "/" + segment
	}
	return path + ".json"
}
