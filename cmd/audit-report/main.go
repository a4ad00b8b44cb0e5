// The audit report prints a summary of the local sync ledger: overall
// counters, recent poll cycles, recent orders with their matched products,
// and an error breakdown.
package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/eshaffer321/tonglian-sync-backend/internal/infrastructure/config"
)

func main() {
	var (
		dbPath     string
		configFile string
	)
	flag.StringVar(&dbPath, "db", "", "Path to database file (uses config if not specified)")
	flag.StringVar(&configFile, "config", "", "Configuration file path")
	flag.Parse()

	if dbPath == "" {
		cfg := config.LoadOrEnvWithPath(configFile)
		dbPath = cfg.Storage.DatabasePath
		if dbPath == "" {
			dbPath = "tonglian_sync.db"
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	fmt.Println("📊 通联支付 SYNC AUDIT REPORT")
	fmt.Println("=" + strings.Repeat("=", 60))
	fmt.Printf("Database: %s\n", dbPath)
	fmt.Printf("Generated: %s\n\n", time.Now().Format("2006-01-02 15:04:05"))

	printOverallStats(db)
	printRecentRuns(db)
	printRecentOrders(db)
	printErrorAnalysis(db)
}

func printOverallStats(db *sql.DB) {
	fmt.Println("📈 OVERALL STATISTICS")
	fmt.Println(strings.Repeat("-", 40))

	var totalOrders, successCount, errorCount, skippedCount int
	var totalAmount float64

	err := db.QueryRow(`
		SELECT
			COUNT(*),
			SUM(CASE WHEN status = 'success' THEN 1 ELSE 0 END),
			SUM(CASE WHEN status = 'error' THEN 1 ELSE 0 END),
			SUM(CASE WHEN status = 'skipped' THEN 1 ELSE 0 END),
			COALESCE(SUM(CASE WHEN status = 'success' THEN amount ELSE 0 END), 0)
		FROM sync_records
	`).Scan(&totalOrders, &successCount, &errorCount, &skippedCount, &totalAmount)
	if err != nil {
		log.Printf("Error getting stats: %v", err)
		return
	}

	successRate := 0.0
	if totalOrders > 0 {
		successRate = float64(successCount) / float64(totalOrders) * 100
	}

	fmt.Printf("Total Orders: %d\n", totalOrders)
	fmt.Printf("Synchronized: %d (%.1f%%)\n", successCount, successRate)
	fmt.Printf("Failed: %d\n", errorCount)
	fmt.Printf("Skipped: %d\n", skippedCount)
	fmt.Printf("Total Amount Synced: ¥%.2f\n", totalAmount)
	fmt.Println()
}

func printRecentRuns(db *sql.DB) {
	fmt.Println("🔄 RECENT SYNC RUNS")
	fmt.Println(strings.Repeat("-", 40))

	rows, err := db.Query(`
		SELECT started_at, orders_found, orders_synced, orders_skipped, orders_errored, status
		FROM sync_runs
		ORDER BY started_at DESC
		LIMIT 10
	`)
	if err != nil {
		log.Printf("Error getting sync runs: %v", err)
		return
	}
	defer func() { _ = rows.Close() }()

	fmt.Printf("%-20s %-8s %-16s %-20s\n", "Started", "Found", "Outcome", "Status")
	fmt.Println(strings.Repeat("-", 70))

	for rows.Next() {
		var startedAt sql.NullString
		var found, synced, skipped, errored int
		var status string

		if err := rows.Scan(&startedAt, &found, &synced, &skipped, &errored, &status); err != nil {
			continue
		}

		startTime, _ := time.Parse("2006-01-02 15:04:05", startedAt.String)
		outcome := fmt.Sprintf("✅%d ❌%d ⏭️%d", synced, errored, skipped)

		fmt.Printf("%-20s %-8d %-16s %-20s\n",
			startTime.Format("2006-01-02 15:04"),
			found,
			outcome,
			status,
		)
	}
	fmt.Println()
}

func printRecentOrders(db *sql.DB) {
	fmt.Println("📝 RECENT ORDERS")
	fmt.Println(strings.Repeat("-", 40))

	rows, err := db.Query(`
		SELECT order_id, amount, status, match_type, confidence, strategy, error_message, products_json, synced_at
		FROM sync_records
		ORDER BY synced_at DESC
		LIMIT 10
	`)
	if err != nil {
		log.Printf("Error getting sync records: %v", err)
		return
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var orderID, status string
		var matchType, strategy, errorMsg, productsJSON sql.NullString
		var amount, confidence float64
		var syncedAt sql.NullString

		if err := rows.Scan(&orderID, &amount, &status, &matchType, &confidence, &strategy, &errorMsg, &productsJSON, &syncedAt); err != nil {
			continue
		}

		statusIcon := "✅"
		switch status {
		case "error":
			statusIcon = "❌"
		case "skipped":
			statusIcon = "⏭️"
		}

		fmt.Printf("\n%s Order: %s\n", statusIcon, orderID)
		fmt.Printf("   Amount: ¥%.2f | Status: %s | Strategy: %s\n", amount, status, strategy.String)
		if matchType.Valid && matchType.String != "" {
			fmt.Printf("   Match: %s | Confidence: %.0f%%\n", matchType.String, confidence*100)
		}
		for _, name := range productNames(productsJSON.String) {
			fmt.Printf("   Product: %s\n", name)
		}
		if errorMsg.Valid && errorMsg.String != "" {
			fmt.Printf("   Error: %s\n", errorMsg.String)
		}
	}
	fmt.Println()
}

func printErrorAnalysis(db *sql.DB) {
	fmt.Println("\n❌ ERROR ANALYSIS")
	fmt.Println(strings.Repeat("-", 40))

	rows, err := db.Query(`
		SELECT error_message, COUNT(*) as cnt
		FROM sync_records
		WHERE status = 'error' AND error_message IS NOT NULL AND error_message != ''
		GROUP BY error_message
		ORDER BY cnt DESC
		LIMIT 10
	`)
	if err != nil {
		log.Printf("Error getting error breakdown: %v", err)
		return
	}
	defer func() { _ = rows.Close() }()

	found := false
	for rows.Next() {
		var message string
		var count int
		if err := rows.Scan(&message, &count); err != nil {
			continue
		}
		found = true
		fmt.Printf("%3dx %s\n", count, message)
	}
	if !found {
		fmt.Println("No errors recorded 🎉")
	}
}

func productNames(productsJSON string) []string {
	if productsJSON == "" || productsJSON == "null" {
		return nil
	}
	var products []struct {
		Name   string  `json:"name"`
		Amount float64 `json:"amount"`
	}
	if err := json.Unmarshal([]byte(productsJSON), &products); err != nil {
		return nil
	}
	names := make([]string, 0, len(products))
	for _, p := range products {
		names = append(names, fmt.Sprintf("%s (¥%.2f)", p.Name, p.Amount))
	}
	return names
}
