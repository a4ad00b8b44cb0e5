package sync

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/tonglian-sync-backend/internal/adapters/backoffice"
	"github.com/eshaffer321/tonglian-sync-backend/internal/infrastructure/envfile"
)

// fakeAuth replays a sequence of probe results
type fakeAuth struct {
	probes   []backoffice.ProbeResult
	restored []backoffice.CookiePair
}

func (f *fakeAuth) Probe(context.Context) backoffice.ProbeResult {
	if len(f.probes) == 0 {
		return backoffice.ProbeResult{}
	}
	result := f.probes[0]
	if len(f.probes) > 1 {
		f.probes = f.probes[1:]
	}
	return result
}

func (f *fakeAuth) RestoreCookiePair(pair backoffice.CookiePair) {
	f.restored = append(f.restored, pair)
}

// fakeSource returns a canned fetch result and records the requested window
type fakeSource struct {
	result   backoffice.FetchResult
	err      error
	gotRange backoffice.DateRange
	calls    int
}

func (f *fakeSource) FetchOrders(_ context.Context, dateRange backoffice.DateRange) (backoffice.FetchResult, error) {
	f.calls++
	f.gotRange = dateRange
	return f.result, f.err
}

func authenticated() backoffice.ProbeResult {
	return backoffice.ProbeResult{Authenticated: true, Shape: backoffice.ShapeConsole}
}

func unauthenticated() backoffice.ProbeResult {
	return backoffice.ProbeResult{Shape: backoffice.ShapeLogin, Reason: "login page"}
}

func newTestPoller(t *testing.T, auth Authenticator, source OrderSource, repo *memRepo, cookieFile string) *Poller {
	t.Helper()
	engine := NewEngine(newFakeRemote(), repo, testMatcher(t), nil)
	return NewPoller(PollerConfig{
		Auth:       auth,
		Source:     source,
		Engine:     engine,
		Repo:       repo,
		CookieFile: cookieFile,
	})
}

func TestRunOnce_HappyPath(t *testing.T) {
	source := &fakeSource{result: backoffice.FetchResult{
		Orders:   []backoffice.RawOrderRecord{testOrder("T1", 48.0)},
		Strategy: backoffice.StrategyTable,
	}}
	repo := newMemRepo()
	poller := newTestPoller(t, &fakeAuth{probes: []backoffice.ProbeResult{authenticated()}}, source, repo, "")

	result, err := poller.RunOnce(context.Background(), Options{})

	require.NoError(t, err)
	assert.Equal(t, 1, result.OrdersFound)
	assert.Equal(t, 1, result.SyncedCount)

	// The cycle is tracked as a completed run
	require.Len(t, repo.runs, 1)
	assert.Equal(t, "completed", repo.runs[0].Status)
	assert.Equal(t, 1, repo.runs[0].OrdersSynced)
}

func TestRunOnce_DefaultWindowIsToday(t *testing.T) {
	source := &fakeSource{result: backoffice.FetchResult{Strategy: backoffice.StrategyNone}}
	poller := newTestPoller(t, &fakeAuth{probes: []backoffice.ProbeResult{authenticated()}}, source, newMemRepo(), "")

	_, err := poller.RunOnce(context.Background(), Options{})

	require.NoError(t, err)
	assert.Equal(t, source.gotRange.Start.Format("2006-01-02"), source.gotRange.End.Format("2006-01-02"))
}

func TestRunOnce_LookbackWindow(t *testing.T) {
	source := &fakeSource{result: backoffice.FetchResult{Strategy: backoffice.StrategyNone}}
	poller := newTestPoller(t, &fakeAuth{probes: []backoffice.ProbeResult{authenticated()}}, source, newMemRepo(), "")

	_, err := poller.RunOnce(context.Background(), Options{LookbackDays: 3})

	require.NoError(t, err)
	days := source.gotRange.End.Sub(source.gotRange.Start).Hours() / 24
	assert.InDelta(t, 3.0, days, 0.01)
}

func TestRunOnce_RestoresCookiesFromFile(t *testing.T) {
	cookieFile := filepath.Join(t.TempDir(), "user.env")
	require.NoError(t, envfile.UpdateCookiePair(cookieFile, "u-123", "s-456"))

	auth := &fakeAuth{probes: []backoffice.ProbeResult{unauthenticated(), authenticated()}}
	source := &fakeSource{result: backoffice.FetchResult{Strategy: backoffice.StrategyNone}}
	poller := newTestPoller(t, auth, source, newMemRepo(), cookieFile)

	_, err := poller.RunOnce(context.Background(), Options{})

	require.NoError(t, err)
	require.Len(t, auth.restored, 1)
	assert.Equal(t, "u-123", auth.restored[0].UserID)
	assert.Equal(t, "s-456", auth.restored[0].Session)
}

func TestRunOnce_NoSessionReturnsLoginRequired(t *testing.T) {
	auth := &fakeAuth{probes: []backoffice.ProbeResult{unauthenticated()}}
	source := &fakeSource{}
	poller := newTestPoller(t, auth, source, newMemRepo(), "")

	_, err := poller.RunOnce(context.Background(), Options{})

	assert.ErrorIs(t, err, ErrLoginRequired)
	assert.Zero(t, source.calls)
}

func TestRunOnce_StaleCookiesStillLoginRequired(t *testing.T) {
	cookieFile := filepath.Join(t.TempDir(), "user.env")
	require.NoError(t, envfile.UpdateCookiePair(cookieFile, "u-old", "s-old"))

	// Both probes land on the login page: restore did not help
	auth := &fakeAuth{probes: []backoffice.ProbeResult{unauthenticated(), unauthenticated()}}
	poller := newTestPoller(t, auth, &fakeSource{}, newMemRepo(), cookieFile)

	_, err := poller.RunOnce(context.Background(), Options{})

	assert.ErrorIs(t, err, ErrLoginRequired)
	assert.Len(t, auth.restored, 1)
}

func TestRunOnce_SessionExpiredDuringFetch(t *testing.T) {
	source := &fakeSource{err: backoffice.ErrSessionExpired}
	repo := newMemRepo()
	poller := newTestPoller(t, &fakeAuth{probes: []backoffice.ProbeResult{authenticated()}}, source, repo, "")

	_, err := poller.RunOnce(context.Background(), Options{})

	assert.ErrorIs(t, err, ErrLoginRequired)

	// The run is closed out as errored rather than left dangling
	require.Len(t, repo.runs, 1)
	assert.Equal(t, 1, repo.runs[0].OrdersErrored)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	source := &fakeSource{result: backoffice.FetchResult{Strategy: backoffice.StrategyNone}}
	auth := &fakeAuth{probes: []backoffice.ProbeResult{authenticated()}}
	engine := NewEngine(newFakeRemote(), nil, testMatcher(t), nil)
	poller := NewPoller(PollerConfig{
		Auth:     auth,
		Source:   source,
		Engine:   engine,
		Interval: 10 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- poller.Run(ctx, Options{}) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("poller did not stop after cancel")
	}

	assert.GreaterOrEqual(t, source.calls, 1)
}
