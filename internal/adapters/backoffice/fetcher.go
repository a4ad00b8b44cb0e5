package backoffice

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/PuerkitoBio/goquery"
)

// Order query paging. Volumes are tens of orders a day, one page is enough.
const (
	queryPageNum  = "1"
	queryPageSize = "100"
)

// OrderFetcher queries a date range against the order console and converts
// the response into raw order records. It replays requests under the
// session's cookie jar but never mutates the session.
type OrderFetcher struct {
	session *SessionManager
	logger  *slog.Logger
}

// NewOrderFetcher creates a fetcher bound to an existing session
func NewOrderFetcher(session *SessionManager, logger *slog.Logger) *OrderFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &OrderFetcher{session: session, logger: logger}
}

// FetchOrders runs the order-search query for the given range. The response
// itself re-validates the session: a login or captcha page comes back as
// ErrSessionExpired / ErrCaptchaBlocked without a second round trip, and no
// extraction is attempted on it. An empty order list is a valid result.
func (f *OrderFetcher) FetchOrders(ctx context.Context, dateRange DateRange) (FetchResult, error) {
	res, err := f.session.Client().R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"startDate": dateRange.Start.Format("2006-01-02"),
			"endDate":   dateRange.End.Format("2006-01-02"),
			"pageNum":   queryPageNum,
			"pageSize":  queryPageSize,
		}).
		Get(f.session.cfg.OrdersPath)
	if err != nil {
		return FetchResult{}, fmt.Errorf("order query failed: %w", err)
	}
	if res.StatusCode() != http.StatusOK {
		return FetchResult{}, fmt.Errorf("order query returned HTTP %d", res.StatusCode())
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body()))
	if err != nil {
		return FetchResult{}, fmt.Errorf("failed to parse order page: %w", err)
	}
	pageText := doc.Text()

	switch shape := classifyPageShape(pageText); shape {
	case ShapeLogin:
		f.logger.Error("Order page is the login form, session expired")
		return FetchResult{}, ErrSessionExpired
	case ShapeCaptcha:
		f.logger.Error("Order page demands captcha verification")
		return FetchResult{}, ErrCaptchaBlocked
	case ShapeUnknown:
		f.logger.Error("Order page shape unknown", "snippet", snippet(pageText, 200))
		return FetchResult{}, fmt.Errorf("%w: %s", ErrPageShapeUnknown, snippet(pageText, 200))
	}

	result := f.extractOrders(doc, pageText)
	f.logger.Info("Extracted orders",
		"count", len(result.Orders),
		"strategy", result.Strategy,
		"degraded", result.Degraded,
	)
	return result, nil
}

// extractOrders applies the extraction strategies in priority order; the
// first one that yields records wins.
func (f *OrderFetcher) extractOrders(doc *goquery.Document, pageText string) FetchResult {
	if orders := parseOrderTable(doc); len(orders) > 0 {
		return FetchResult{Orders: orders, Strategy: StrategyTable}
	}

	if orders := parseScriptJSON(doc); len(orders) > 0 {
		f.logger.Warn("Order table missing, extracted from script payloads", "count", len(orders))
		return FetchResult{Orders: orders, Strategy: StrategyScriptJSON}
	}

	if orders := parseAmountScan(pageText); len(orders) > 0 {
		f.logger.Warn("Falling back to text amount scan", "count", len(orders))
		return FetchResult{Orders: orders, Strategy: StrategyTextScan, Degraded: true}
	}

	return FetchResult{Strategy: StrategyNone}
}

// snippet trims text for logging without dumping whole pages
func snippet(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max])
}
