package backoffice

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Currency-formatted numbers like 1,234.56 — the always-available fallback
var amountPattern = regexp.MustCompile(`[\d,]+\.\d{2}`)

// Flat JSON-shaped fragments inside script tags
var jsonFragmentPattern = regexp.MustCompile(`\{[^{}]*"[^"]*"[^{}]*\}`)

// maxScanRecords caps how many records the degraded paths produce per page
const maxScanRecords = 10

// Header labels mapped to record fields for tabular extraction
var tableColumns = map[string]string{
	"商户订单号": "order_id",
	"订单号":   "order_id",
	"金额":    "amount",
	"交易金额":  "amount",
	"交易时间":  "create_time",
	"支付时间":  "pay_time",
	"交易状态":  "status",
	"状态":    "status",
	"支付方式":  "payment_method",
}

// parseOrderTable extracts records from an explicit result table. It needs a
// header row naming at least an amount column and an order-id column;
// anything less falls through to the next strategy.
func parseOrderTable(doc *goquery.Document) []RawOrderRecord {
	var orders []RawOrderRecord

	doc.Find("table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		columns := map[int]string{}
		table.Find("tr").First().Find("th, td").Each(func(i int, cell *goquery.Selection) {
			label := strings.TrimSpace(cell.Text())
			for header, field := range tableColumns {
				if strings.Contains(label, header) {
					if _, taken := columnTaken(columns, field); !taken {
						columns[i] = field
					}
					break
				}
			}
		})

		if !hasColumn(columns, "amount") || !hasColumn(columns, "order_id") {
			return true // keep looking at other tables
		}

		table.Find("tr").Each(func(rowIdx int, row *goquery.Selection) {
			if rowIdx == 0 {
				return // header
			}
			record := RawOrderRecord{}
			ok := false
			row.Find("td").Each(func(i int, cell *goquery.Selection) {
				value := strings.TrimSpace(cell.Text())
				switch columns[i] {
				case "order_id":
					record.ExternalID = value
				case "amount":
					if amount, err := parseAmount(value); err == nil {
						record.Amount = amount
						ok = true
					}
				case "create_time":
					record.CreateTime = value
				case "pay_time":
					record.PayTime = value
				case "status":
					record.Status = value
				case "payment_method":
					record.PaymentMethod = value
				}
			})
			if ok && record.ExternalID != "" {
				orders = append(orders, record)
			}
		})

		return len(orders) == 0
	})

	return orders
}

// parseScriptJSON scans embedded script payloads for flat JSON fragments
// that look like order data (AJAX-rendered consoles ship rows this way).
func parseScriptJSON(doc *goquery.Document) []RawOrderRecord {
	var orders []RawOrderRecord

	doc.Find("script").Each(func(_ int, script *goquery.Selection) {
		text := script.Text()
		if !strings.Contains(text, "data") && !strings.Contains(text, "list") {
			return
		}

		fragments := jsonFragmentPattern.FindAllString(text, 3)
		for _, fragment := range fragments {
			var payload map[string]any
			if err := json.Unmarshal([]byte(fragment), &payload); err != nil {
				continue
			}
			if !looksLikeOrder(payload) {
				continue
			}
			record, ok := recordFromPayload(payload)
			if !ok {
				continue
			}
			if record.ExternalID == "" {
				record.ExternalID = fmt.Sprintf("parsed_%d", len(orders)+1)
				record.Synthetic = true
			}
			orders = append(orders, record)
			if len(orders) >= maxScanRecords {
				return
			}
		}
	})

	return orders
}

// parseAmountScan is the degraded path: pull currency-formatted values out
// of the rendered text and mint synthetic ids in encounter order.
func parseAmountScan(pageText string) []RawOrderRecord {
	matches := amountPattern.FindAllString(pageText, -1)
	if len(matches) > maxScanRecords {
		matches = matches[:maxScanRecords]
	}

	var orders []RawOrderRecord
	for i, raw := range matches {
		amount, err := parseAmount(raw)
		if err != nil {
			continue
		}
		orders = append(orders, RawOrderRecord{
			ExternalID: fmt.Sprintf("parsed_%d", i+1),
			Amount:     amount,
			Status:     "已解析",
			CreateTime: time.Now().Format("2006-01-02 15:04:05"),
			Synthetic:  true,
		})
	}
	return orders
}

func looksLikeOrder(payload map[string]any) bool {
	blob := strings.ToLower(fmt.Sprint(payload))
	return strings.Contains(blob, "amount") ||
		strings.Contains(blob, "order") ||
		strings.Contains(blob, "trade")
}

func recordFromPayload(payload map[string]any) (RawOrderRecord, bool) {
	record := RawOrderRecord{}

	for _, key := range []string{"amount", "tranAmt", "payAmount", "money", "trade_amount"} {
		if value, ok := payload[key]; ok {
			if amount, err := parseAmountValue(value); err == nil {
				record.Amount = amount
				break
			}
		}
	}
	if record.Amount <= 0 {
		return record, false
	}

	for _, key := range []string{"order_id", "orderId", "orderNo", "tranxId", "id"} {
		if value, ok := payload[key]; ok {
			record.ExternalID = strings.TrimSpace(fmt.Sprint(value))
			break
		}
	}
	if status, ok := payload["status"]; ok {
		record.Status = fmt.Sprint(status)
	}
	if t, ok := payload["create_time"]; ok {
		record.CreateTime = fmt.Sprint(t)
	}
	if method, ok := payload["payment_method"]; ok {
		record.PaymentMethod = fmt.Sprint(method)
	}

	return record, true
}

func parseAmountValue(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case string:
		return parseAmount(v)
	default:
		return 0, fmt.Errorf("unsupported amount type %T", value)
	}
}

// parseAmount parses a currency-formatted string like "1,234.56" or "¥48.00"
func parseAmount(s string) (float64, error) {
	cleaned := strings.TrimSpace(s)
	cleaned = strings.TrimPrefix(cleaned, "¥")
	cleaned = strings.TrimPrefix(cleaned, "￥")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return 0, fmt.Errorf("empty amount")
	}
	return strconv.ParseFloat(cleaned, 64)
}

func hasColumn(columns map[int]string, field string) bool {
	_, ok := columnTaken(columns, field)
	return ok
}

func columnTaken(columns map[int]string, field string) (int, bool) {
	for idx, f := range columns {
		if f == field {
			return idx, true
		}
	}
	return 0, false
}
