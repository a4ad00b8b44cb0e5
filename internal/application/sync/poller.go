package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/eshaffer321/tonglian-sync-backend/internal/adapters/backoffice"
	"github.com/eshaffer321/tonglian-sync-backend/internal/infrastructure/envfile"
	"github.com/eshaffer321/tonglian-sync-backend/internal/infrastructure/storage"
)

// ErrLoginRequired means no valid session exists and one cannot be created
// without a human solving the captcha in the login helper.
var ErrLoginRequired = errors.New("login required: run the login helper to establish a session")

// Authenticator is the slice of the session manager the poller needs
type Authenticator interface {
	Probe(ctx context.Context) backoffice.ProbeResult
	RestoreCookiePair(pair backoffice.CookiePair)
}

// OrderSource fetches raw order records for a date range
type OrderSource interface {
	FetchOrders(ctx context.Context, dateRange backoffice.DateRange) (backoffice.FetchResult, error)
}

// Poller runs the fetch-match-sync cycle on an interval. Each cycle is
// tracked as a sync run in the local ledger.
type Poller struct {
	auth       Authenticator
	source     OrderSource
	engine     *Engine
	repo       storage.SyncRunRepository
	cookieFile string
	interval   time.Duration
	logger     *slog.Logger
}

// PollerConfig wires a poller
type PollerConfig struct {
	Auth       Authenticator
	Source     OrderSource
	Engine     *Engine
	Repo       storage.SyncRunRepository
	CookieFile string
	Interval   time.Duration
	Logger     *slog.Logger
}

// NewPoller creates a poller. The repository may be nil.
func NewPoller(cfg PollerConfig) *Poller {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = 60 * time.Second
	}
	return &Poller{
		auth:       cfg.Auth,
		source:     cfg.Source,
		engine:     cfg.Engine,
		repo:       cfg.Repo,
		cookieFile: cfg.CookieFile,
		interval:   interval,
		logger:     logger,
	}
}

// RunOnce executes a single cycle: ensure a session, fetch the window,
// match and push every order.
func (p *Poller) RunOnce(ctx context.Context, opts Options) (*Result, error) {
	if err := p.ensureSession(ctx); err != nil {
		return nil, err
	}

	var runID int64
	if p.repo != nil {
		var err error
		runID, err = p.repo.StartSyncRun()
		if err != nil {
			p.logger.Warn("Failed to start sync run tracking", "error", err)
			// Tracking failure shouldn't block the cycle
		}
	}

	fetched, err := p.source.FetchOrders(ctx, p.window(opts))
	if err != nil {
		p.completeRun(runID, 0, 0, 0, 1)
		if errors.Is(err, backoffice.ErrSessionExpired) || errors.Is(err, backoffice.ErrCaptchaBlocked) {
			return nil, fmt.Errorf("%w: %v", ErrLoginRequired, err)
		}
		return nil, fmt.Errorf("order fetch failed: %w", err)
	}

	if fetched.Degraded {
		p.logger.Warn("Order page shape changed, using degraded parsing",
			"strategy", string(fetched.Strategy),
			"orders", len(fetched.Orders),
		)
	}

	result := p.engine.SyncMany(ctx, fetched, opts)
	p.completeRun(runID, result.OrdersFound, result.SyncedCount, result.SkippedCount, result.ErrorCount)

	p.logger.Info("Sync cycle complete",
		"found", result.OrdersFound,
		"synced", result.SyncedCount,
		"skipped", result.SkippedCount,
		"errors", result.ErrorCount,
		"strategy", string(result.Strategy),
	)
	return result, nil
}

// Run loops RunOnce on the configured interval until the context ends.
func (p *Poller) Run(ctx context.Context, opts Options) error {
	p.logger.Info("Poller started", "interval", p.interval.String())

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if _, err := p.RunOnce(ctx, opts); err != nil {
			if errors.Is(err, ErrLoginRequired) {
				p.logger.Warn("No valid session, waiting for login", "error", err)
			} else {
				p.logger.Error("Sync cycle failed", "error", err)
			}
		}

		select {
		case <-ctx.Done():
			p.logger.Info("Poller stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// ensureSession probes the back office and, when unauthenticated, tries to
// restore the cookie pair persisted by the login helper.
func (p *Poller) ensureSession(ctx context.Context) error {
	probe := p.auth.Probe(ctx)
	if probe.Authenticated {
		return nil
	}
	if probe.Err != nil {
		return fmt.Errorf("session probe failed: %w", probe.Err)
	}

	if p.cookieFile != "" {
		userID, session, err := envfile.ReadCookiePair(p.cookieFile)
		if err != nil {
			p.logger.Warn("Failed to read cookie file", "path", p.cookieFile, "error", err)
		} else if pair := (backoffice.CookiePair{UserID: userID, Session: session}); pair.IsComplete() {
			p.logger.Info("Restoring persisted session cookies")
			p.auth.RestoreCookiePair(pair)
			if retry := p.auth.Probe(ctx); retry.Authenticated {
				return nil
			}
		}
	}

	return fmt.Errorf("%w: %s", ErrLoginRequired, probe.Reason)
}

func (p *Poller) window(opts Options) backoffice.DateRange {
	if opts.LookbackDays <= 0 {
		return backoffice.Today()
	}
	end := time.Now()
	return backoffice.DateRange{Start: end.AddDate(0, 0, -opts.LookbackDays), End: end}
}

func (p *Poller) completeRun(runID int64, found, synced, skipped, errored int) {
	if p.repo == nil || runID == 0 {
		return
	}
	if err := p.repo.CompleteSyncRun(runID, found, synced, skipped, errored); err != nil {
		p.logger.Warn("Failed to complete sync run tracking", "run_id", runID, "error", err)
	}
}
