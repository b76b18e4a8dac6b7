package audit_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecoaudit/internal/audit"
	"ecoaudit/internal/audit/store/memory"
	dErrors "ecoaudit/pkg/domain-errors"
	"ecoaudit/pkg/platform/sentinel"
	"ecoaudit/pkg/requestcontext"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type failingLedger struct{ err error }

func (f *failingLedger) Append(context.Context, *audit.Event) error { return f.err }
func (f *failingLedger) Query(context.Context, audit.Filter, audit.Page) ([]audit.Event, error) {
	return nil, f.err
}

type fakeMirror struct {
	published []audit.Event
	accept    bool
}

func (m *fakeMirror) Publish(_ context.Context, e audit.Event) bool {
	if m.accept {
		m.published = append(m.published, e)
	}
	return m.accept
}

type fakeCache struct {
	recent      []audit.Event
	invalidated int
	setCalls    int
}

func (c *fakeCache) GetRecent(context.Context, int) ([]audit.Event, error) {
	if c.recent == nil {
		return nil, sentinel.ErrNotFound
	}
	return c.recent, nil
}

func (c *fakeCache) SetRecent(_ context.Context, _ int, events []audit.Event) error {
	c.setCalls++
	c.recent = events
	return nil
}

func (c *fakeCache) Invalidate(context.Context) error {
	c.invalidated++
	c.recent = nil
	return nil
}

func validRequest() audit.RecordRequest {
	return audit.RecordRequest{
		AdminID:    "admin-1",
		Action:     audit.ActionUserBlocked,
		TargetType: "User",
		TargetID:   "42",
		TargetName: "Jane Doe (jane@example.com)",
		Reason:     "spam reports",
	}
}

func TestRecordPersistsAndReturnsEvent(t *testing.T) {
	store := memory.New()
	svc := audit.NewService(store, discardLogger())

	event, err := svc.Record(context.Background(), validRequest())
	require.NoError(t, err)
	require.NotNil(t, event)

	assert.NotZero(t, event.ID)
	assert.Equal(t, audit.ResultSuccess, event.Result, "result defaults to success")
	assert.False(t, event.Timestamp.IsZero())

	got, err := svc.Query(context.Background(), audit.Filter{}, audit.Page{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, event.ID, got[0].ID)
}

func TestRecordRejectsUnknownAction(t *testing.T) {
	svc := audit.NewService(memory.New(), discardLogger())

	req := validRequest()
	req.Action = "user_promoted"

	_, err := svc.Record(context.Background(), req)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidAction))
}

func TestRecordRejectsEmptyAction(t *testing.T) {
	svc := audit.NewService(memory.New(), discardLogger())

	req := validRequest()
	req.Action = ""

	_, err := svc.Record(context.Background(), req)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidAction))
}

func TestRecordRequiresTargetFields(t *testing.T) {
	svc := audit.NewService(memory.New(), discardLogger())

	for name, mutate := range map[string]func(*audit.RecordRequest){
		"target_type": func(r *audit.RecordRequest) { r.TargetType = "" },
		"target_id":   func(r *audit.RecordRequest) { r.TargetID = "  " },
		"target_name": func(r *audit.RecordRequest) { r.TargetName = "" },
	} {
		t.Run(name, func(t *testing.T) {
			req := validRequest()
			mutate(&req)
			_, err := svc.Record(context.Background(), req)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
		})
	}
}

func TestRecordRejectsUnknownResult(t *testing.T) {
	svc := audit.NewService(memory.New(), discardLogger())

	req := validRequest()
	req.Result = "partial"

	_, err := svc.Record(context.Background(), req)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestRecordAllowsSystemInitiatedEvents(t *testing.T) {
	store := memory.New()
	svc := audit.NewService(store, discardLogger())

	req := validRequest()
	req.AdminID = ""
	req.Action = audit.ActionListingRemoved

	event, err := svc.Record(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, event.AdminID)
}

func TestRecordSurfacesAppendFailure(t *testing.T) {
	ledger := &failingLedger{err: errors.New("connection reset")}
	svc := audit.NewService(ledger, discardLogger())

	_, err := svc.Record(context.Background(), validRequest())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
}

func TestRecordFillsClientMetadataFromContext(t *testing.T) {
	store := memory.New()
	svc := audit.NewService(store, discardLogger())

	ctx := requestcontext.WithClientMetadata(context.Background(), "203.0.113.9", "curl/8.4")
	event, err := svc.Record(ctx, validRequest())
	require.NoError(t, err)

	assert.Equal(t, "203.0.113.9", event.IPAddress)
	assert.Equal(t, "curl/8.4", event.UserAgent)
}

func TestRecordPrefersExplicitClientMetadata(t *testing.T) {
	svc := audit.NewService(memory.New(), discardLogger())

	ctx := requestcontext.WithClientMetadata(context.Background(), "203.0.113.9", "curl/8.4")
	req := validRequest()
	req.IPAddress = "198.51.100.7"
	req.UserAgent = "backoffice/2.1"

	event, err := svc.Record(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "198.51.100.7", event.IPAddress)
	assert.Equal(t, "backoffice/2.1", event.UserAgent)
}

func TestRecordUsesRequestScopedClock(t *testing.T) {
	svc := audit.NewService(memory.New(), discardLogger())

	pinned := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), pinned)

	event, err := svc.Record(ctx, validRequest())
	require.NoError(t, err)
	assert.True(t, event.Timestamp.Equal(pinned))
}

func TestRecordPublishesToMirror(t *testing.T) {
	mirror := &fakeMirror{accept: true}
	svc := audit.NewService(memory.New(), discardLogger(), audit.WithMirror(mirror))

	event, err := svc.Record(context.Background(), validRequest())
	require.NoError(t, err)

	require.Len(t, mirror.published, 1)
	assert.Equal(t, event.ID, mirror.published[0].ID)
}

func TestRecordInvalidatesRecentCache(t *testing.T) {
	cache := &fakeCache{}
	svc := audit.NewService(memory.New(), discardLogger(), audit.WithRecentCache(cache))

	_, err := svc.Record(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Equal(t, 1, cache.invalidated)
}

func TestQueryClampsLimit(t *testing.T) {
	store := memory.New()
	svc := audit.NewService(store, discardLogger(), audit.WithPageLimits(2, 3))

	for range 5 {
		_, err := svc.Record(context.Background(), validRequest())
		require.NoError(t, err)
	}

	got, err := svc.Query(context.Background(), audit.Filter{}, audit.Page{})
	require.NoError(t, err)
	assert.Len(t, got, 2, "zero limit falls back to the default")

	got, err = svc.Query(context.Background(), audit.Filter{}, audit.Page{Limit: 100})
	require.NoError(t, err)
	assert.Len(t, got, 3, "oversized limit is clamped to the maximum")
}

func TestQueryReturnsEmptySliceNotNil(t *testing.T) {
	svc := audit.NewService(memory.New(), discardLogger())

	got, err := svc.Query(context.Background(), audit.Filter{AdminID: "nobody"}, audit.Page{})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Empty(t, got)
}

func TestQueryWrapsLedgerFailure(t *testing.T) {
	svc := audit.NewService(&failingLedger{err: errors.New("boom")}, discardLogger())

	_, err := svc.Query(context.Background(), audit.Filter{}, audit.Page{})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
}

func TestQueryMapsDeadlineToTimeout(t *testing.T) {
	svc := audit.NewService(&failingLedger{err: context.DeadlineExceeded}, discardLogger())

	_, err := svc.Query(context.Background(), audit.Filter{}, audit.Page{})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))
}

func TestQueryCachesUnfilteredFirstPage(t *testing.T) {
	cache := &fakeCache{}
	store := memory.New()
	svc := audit.NewService(store, discardLogger(), audit.WithRecentCache(cache))

	_, err := svc.Record(context.Background(), validRequest())
	require.NoError(t, err)

	// First read misses and populates; second is served from the cache.
	first, err := svc.Query(context.Background(), audit.Filter{}, audit.Page{})
	require.NoError(t, err)
	require.Equal(t, 1, cache.setCalls)

	second, err := svc.Query(context.Background(), audit.Filter{}, audit.Page{})
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, cache.setCalls, "cache hit must not rewrite the entry")
}

func TestQueryBypassesCacheWhenFiltered(t *testing.T) {
	cache := &fakeCache{recent: []audit.Event{{ID: 999}}}
	svc := audit.NewService(memory.New(), discardLogger(), audit.WithRecentCache(cache))

	got, err := svc.Query(context.Background(), audit.Filter{Action: audit.ActionUserBlocked}, audit.Page{})
	require.NoError(t, err)
	assert.Empty(t, got, "filtered queries go to the ledger, not the cache")
}
