package sync

import (
	"context"
	"errors"
	"regexp"
	gosync "sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/tonglian-sync-backend/internal/adapters/backoffice"
	"github.com/eshaffer321/tonglian-sync-backend/internal/domain/matcher"
	"github.com/eshaffer321/tonglian-sync-backend/internal/infrastructure/storage"
)

// fakeRemote is an in-memory RemoteStore
type fakeRemote struct {
	mu       gosync.Mutex
	existing map[string]bool
	writes   []writeCall
	logs     []logCall

	existsErr error
	writeErr  error

	existsCalls int
}

type writeCall struct {
	key     string
	payload any
}

type logCall struct {
	orderID string
	status  string
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{existing: map[string]bool{}}
}

func (f *fakeRemote) OrderExists(_ context.Context, orderID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.existsCalls++
	if f.existsErr != nil {
		return false, f.existsErr
	}
	return f.existing[orderID], nil
}

func (f *fakeRemote) WriteAutoOrder(_ context.Context, key string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writes = append(f.writes, writeCall{key: key, payload: payload})
	return nil
}

func (f *fakeRemote) AppendSyncLog(_ context.Context, orderID, status string, _ any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, logCall{orderID: orderID, status: status})
	return nil
}

// memRepo is an in-memory storage.Repository
type memRepo struct {
	records map[string]*storage.SyncRecord
	runs    []storage.SyncRun
	nextRun int64
}

var _ storage.Repository = (*memRepo)(nil)

func newMemRepo() *memRepo {
	return &memRepo{records: map[string]*storage.SyncRecord{}, nextRun: 1}
}

func (r *memRepo) SaveRecord(record *storage.SyncRecord) error {
	r.records[record.OrderID] = record
	return nil
}

func (r *memRepo) GetRecord(orderID string) (*storage.SyncRecord, error) {
	return r.records[orderID], nil
}

func (r *memRepo) IsSynced(orderID string) bool {
	record, ok := r.records[orderID]
	return ok && record.Status == storage.StatusSuccess
}

func (r *memRepo) ListRecords(int) ([]*storage.SyncRecord, error) {
	var records []*storage.SyncRecord
	for _, record := range r.records {
		records = append(records, record)
	}
	return records, nil
}

func (r *memRepo) GetStats() (*storage.Stats, error) { return &storage.Stats{}, nil }

func (r *memRepo) StartSyncRun() (int64, error) {
	id := r.nextRun
	r.nextRun++
	r.runs = append(r.runs, storage.SyncRun{ID: id, Status: "running"})
	return id, nil
}

func (r *memRepo) CompleteSyncRun(runID int64, found, synced, skipped, errored int) error {
	for i := range r.runs {
		if r.runs[i].ID == runID {
			r.runs[i].OrdersFound = found
			r.runs[i].OrdersSynced = synced
			r.runs[i].OrdersSkipped = skipped
			r.runs[i].OrdersErrored = errored
			r.runs[i].Status = "completed"
		}
	}
	return nil
}

func (r *memRepo) ListSyncRuns(int) ([]storage.SyncRun, error) { return r.runs, nil }

func (r *memRepo) Close() error { return nil }

func testMatcher(t *testing.T) *matcher.Matcher {
	t.Helper()
	exact := 48.0
	set := matcher.MappingSet{
		Mappings: []matcher.Mapping{
			{ID: "sugui", Name: "苏贵", Category: "饮品", ExactAmount: &exact},
		},
		DefaultProduct: matcher.DefaultProduct{Name: "其他商品", Category: "其他"},
	}
	return matcher.NewMatcher(set, nil, nil)
}

func testOrder(id string, amount float64) backoffice.RawOrderRecord {
	return backoffice.RawOrderRecord{
		ExternalID: id,
		Amount:     amount,
		CreateTime: "2024-01-01 10:00:00",
		Status:     "成功",
	}
}

func TestSyncOne_WritesRemoteAndLedger(t *testing.T) {
	remote := newFakeRemote()
	repo := newMemRepo()
	engine := NewEngine(remote, repo, testMatcher(t), nil)

	outcome, err := engine.SyncOne(context.Background(), testOrder("T1", 48.0), backoffice.StrategyTable, Options{})

	require.NoError(t, err)
	assert.Equal(t, OutcomeSynced, outcome)

	require.Len(t, remote.writes, 1)
	assert.Regexp(t, regexp.MustCompile(`^\d{8}_\d{6}_\d{3}$`), remote.writes[0].key)
	body := remote.writes[0].payload.(map[string]any)
	assert.Equal(t, "T1", body["order_id"])
	assert.Equal(t, "通联支付", body["source"])
	assert.Equal(t, []string{"苏贵"}, body["products"])

	require.Len(t, remote.logs, 1)
	assert.Equal(t, "success", remote.logs[0].status)

	record := repo.records["T1"]
	require.NotNil(t, record)
	assert.Equal(t, storage.StatusSuccess, record.Status)
	assert.Equal(t, "exact", record.MatchType)
	assert.Equal(t, 1.0, record.Confidence)
	assert.Equal(t, "table", record.Strategy)
	assert.NotEmpty(t, record.RemoteKey)
}

func TestSyncOne_SecondCallIsSkipped(t *testing.T) {
	remote := newFakeRemote()
	engine := NewEngine(remote, newMemRepo(), testMatcher(t), nil)

	first, err := engine.SyncOne(context.Background(), testOrder("T1", 48.0), backoffice.StrategyTable, Options{})
	require.NoError(t, err)
	second, err := engine.SyncOne(context.Background(), testOrder("T1", 48.0), backoffice.StrategyTable, Options{})
	require.NoError(t, err)

	assert.Equal(t, OutcomeSynced, first)
	assert.Equal(t, OutcomeSkipped, second)
	assert.Len(t, remote.writes, 1)
	require.Len(t, remote.logs, 2)
	assert.Equal(t, "success", remote.logs[0].status)
	assert.Equal(t, "skipped", remote.logs[1].status)
}

func TestSyncOne_RemoteDuplicateSkips(t *testing.T) {
	remote := newFakeRemote()
	remote.existing["T1"] = true
	repo := newMemRepo()
	engine := NewEngine(remote, repo, testMatcher(t), nil)

	outcome, err := engine.SyncOne(context.Background(), testOrder("T1", 48.0), backoffice.StrategyTable, Options{})

	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, outcome)
	assert.Empty(t, remote.writes)
	require.Len(t, remote.logs, 1)
	assert.Equal(t, "skipped", remote.logs[0].status)
	assert.Equal(t, storage.StatusSkipped, repo.records["T1"].Status)
}

func TestSyncOne_LedgerShortCircuitsRemoteCheck(t *testing.T) {
	remote := newFakeRemote()
	repo := newMemRepo()
	repo.records["T1"] = &storage.SyncRecord{OrderID: "T1", Status: storage.StatusSuccess}
	engine := NewEngine(remote, repo, testMatcher(t), nil)

	outcome, err := engine.SyncOne(context.Background(), testOrder("T1", 48.0), backoffice.StrategyTable, Options{})

	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, outcome)
	assert.Zero(t, remote.existsCalls)
	require.Len(t, remote.logs, 1)
	assert.Equal(t, "skipped", remote.logs[0].status)
}

func TestSyncOne_WriteFailure(t *testing.T) {
	remote := newFakeRemote()
	remote.writeErr = errors.New("write refused")
	repo := newMemRepo()
	engine := NewEngine(remote, repo, testMatcher(t), nil)

	outcome, err := engine.SyncOne(context.Background(), testOrder("T1", 48.0), backoffice.StrategyTable, Options{})

	assert.Error(t, err)
	assert.Equal(t, OutcomeFailed, outcome)
	require.Len(t, remote.logs, 1)
	assert.Equal(t, "error", remote.logs[0].status)

	record := repo.records["T1"]
	require.NotNil(t, record)
	assert.Equal(t, storage.StatusError, record.Status)
	assert.Contains(t, record.ErrorMessage, "write refused")
}

func TestSyncOne_FailedOrderCanRetry(t *testing.T) {
	remote := newFakeRemote()
	remote.writeErr = errors.New("write refused")
	engine := NewEngine(remote, newMemRepo(), testMatcher(t), nil)

	_, err := engine.SyncOne(context.Background(), testOrder("T1", 48.0), backoffice.StrategyTable, Options{})
	require.Error(t, err)

	// Remote recovers: failed orders are not in the seen set
	remote.writeErr = nil
	outcome, err := engine.SyncOne(context.Background(), testOrder("T1", 48.0), backoffice.StrategyTable, Options{})

	require.NoError(t, err)
	assert.Equal(t, OutcomeSynced, outcome)
	assert.Len(t, remote.writes, 1)
}

func TestSyncOne_ForceResyncs(t *testing.T) {
	remote := newFakeRemote()
	remote.existing["T1"] = true
	repo := newMemRepo()
	repo.records["T1"] = &storage.SyncRecord{OrderID: "T1", Status: storage.StatusSuccess}
	engine := NewEngine(remote, repo, testMatcher(t), nil)

	outcome, err := engine.SyncOne(context.Background(), testOrder("T1", 48.0), backoffice.StrategyTable, Options{Force: true})

	require.NoError(t, err)
	assert.Equal(t, OutcomeSynced, outcome)
	assert.Len(t, remote.writes, 1)
}

func TestSyncMany_AggregatesAndNeverAborts(t *testing.T) {
	remote := newFakeRemote()
	remote.existing["T2"] = true
	engine := NewEngine(remote, newMemRepo(), testMatcher(t), nil)

	fetched := backoffice.FetchResult{
		Orders: []backoffice.RawOrderRecord{
			testOrder("T1", 48.0),
			testOrder("T2", 20.0),
			testOrder("T3", 99.0),
		},
		Strategy: backoffice.StrategyTable,
	}

	result := engine.SyncMany(context.Background(), fetched, Options{})

	assert.Equal(t, 3, result.OrdersFound)
	assert.Equal(t, 2, result.SyncedCount)
	assert.Equal(t, 1, result.SkippedCount)
	assert.Equal(t, 0, result.ErrorCount)
	assert.Equal(t, backoffice.StrategyTable, result.Strategy)
}

func TestSyncMany_CollectsErrors(t *testing.T) {
	remote := newFakeRemote()
	remote.writeErr = errors.New("remote down")
	engine := NewEngine(remote, newMemRepo(), testMatcher(t), nil)

	fetched := backoffice.FetchResult{
		Orders:   []backoffice.RawOrderRecord{testOrder("T1", 48.0), testOrder("T2", 20.0)},
		Strategy: backoffice.StrategyTable,
	}

	result := engine.SyncMany(context.Background(), fetched, Options{})

	assert.Equal(t, 2, result.ErrorCount)
	assert.Len(t, result.Errors, 2)
}

func TestSyncMany_RespectsMaxOrders(t *testing.T) {
	remote := newFakeRemote()
	engine := NewEngine(remote, newMemRepo(), testMatcher(t), nil)

	fetched := backoffice.FetchResult{
		Orders: []backoffice.RawOrderRecord{
			testOrder("T1", 48.0),
			testOrder("T2", 48.0),
			testOrder("T3", 48.0),
		},
		Strategy: backoffice.StrategyTable,
	}

	result := engine.SyncMany(context.Background(), fetched, Options{MaxOrders: 2})

	assert.Equal(t, 3, result.OrdersFound)
	assert.Equal(t, 2, result.SyncedCount)
	assert.Len(t, remote.writes, 2)
}
