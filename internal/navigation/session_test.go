package navigation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mozilla/clouseau/internal/common"
	"github.com/mozilla/clouseau/internal/domain"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- Mock Loader ---

type mockLoader struct {
	mock.Mock
}

func (m *mockLoader) FetchCatalog(ctx context.Context) (domain.Catalog, error) {
	args := m.Called(ctx)
	return args.Get(0).(domain.Catalog), args.Error(1)
}

func (m *mockLoader) FetchDataset(ctx context.Context, key domain.DatasetKey) (domain.Dataset, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(domain.Dataset), args.Error(1)
}

// gatedLoader holds each dataset fetch until the test releases it
type gatedLoader struct {
	mu    sync.Mutex
	gates map[string]chan domain.Dataset
}

func newGatedLoader() *gatedLoader {
	return &gatedLoader{gates: map[string]chan domain.Dataset{}}
}

func (g *gatedLoader) gate(date string) chan domain.Dataset {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.gates[date]
	if !ok {
		ch = make(chan domain.Dataset, 1)
		g.gates[date] = ch
	}
	return ch
}

func (g *gatedLoader) FetchCatalog(context.Context) (domain.Catalog, error) {
	return domain.Catalog{Products: []string{"Firefox"}, Dates: []string{"d1", "d2"}}, nil
}

func (g *gatedLoader) FetchDataset(ctx context.Context, key domain.DatasetKey) (domain.Dataset, error) {
	select {
	case ds := <-g.gate(key.Date):
		return ds, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func waitIdle(t *testing.T, s *Session) State {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	st, err := s.WaitIdle(ctx)
	require.NoError(t, err)
	return st
}

func TestSession_InitializeLoadsCatalogAndDataset(t *testing.T) {
	loader := new(mockLoader)
	key := domain.DatasetKey{Channel: "nightly", Product: "Firefox", Date: "d1"}
	loader.On("FetchCatalog", mock.Anything).
		Return(domain.Catalog{Products: []string{"Firefox"}, Dates: []string{"d1"}}, nil)
	loader.On("FetchDataset", mock.Anything, key).Return(sampleDataset(), nil)

	s := NewSession("sid", loader)
	defer s.Close()

	require.NoError(t, s.Dispatch(context.Background(), Initialize("Firefox", "nightly", "d1")))
	st := waitIdle(t, s)

	assert.True(t, st.Loaded)
	assert.Equal(t, "B", st.Signature)
	assert.Equal(t, []string{"d1"}, st.Catalog.Dates)
	assert.Empty(t, st.LastError)
	loader.AssertExpectations(t)
}

func TestSession_DefaultsFromCatalog(t *testing.T) {
	loader := new(mockLoader)
	loader.On("FetchCatalog", mock.Anything).
		Return(domain.Catalog{Products: []string{"FennecAndroid"}, Dates: []string{"d9"}}, nil)
	loader.On("FetchDataset", mock.Anything, domain.DatasetKey{Channel: "nightly", Product: "FennecAndroid", Date: "d9"}).
		Return(domain.Dataset{}, nil)

	s := NewSession("sid", loader)
	defer s.Close()

	require.NoError(t, s.Dispatch(context.Background(), Initialize("", "nightly", "")))
	st := waitIdle(t, s)

	assert.Equal(t, "FennecAndroid", st.Product)
	assert.Equal(t, "d9", st.Date)
	assert.Equal(t, domain.NoSignature, st.Signature)
	loader.AssertExpectations(t)
}

func TestSession_LateResultForOldDateIsDiscarded(t *testing.T) {
	loader := newGatedLoader()
	s := NewSession("sid", loader)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Dispatch(ctx, Initialize("Firefox", "nightly", "d1")))
	require.NoError(t, s.Dispatch(ctx, SelectDate("d2")))

	// d2 answers first, then the superseded d1 request completes
	loader.gate("d2") <- domain.Dataset{"new": {{Count: 1, UUIDs: []string{"n"}}}}
	st := waitIdle(t, s)
	require.Equal(t, "new", st.Signature)

	discarded := testutil.ToFloat64(staleResultsDiscarded.WithLabelValues(string(EventDatasetLoaded)))
	loader.gate("d1") <- domain.Dataset{"old": {{Count: 9, UUIDs: []string{"o"}}}}

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(staleResultsDiscarded.WithLabelValues(string(EventDatasetLoaded))) > discarded
	}, time.Second, 5*time.Millisecond)

	st = s.Snapshot()
	assert.Equal(t, "d2", st.Date)
	assert.Equal(t, "new", st.Signature)
	_, hasOld := st.Dataset["old"]
	assert.False(t, hasOld)
}

func TestSession_FailureSurfacesInState(t *testing.T) {
	loader := new(mockLoader)
	loader.On("FetchCatalog", mock.Anything).Return(domain.Catalog{}, nil)
	loader.On("FetchDataset", mock.Anything, mock.Anything).Return(nil, errors.New("upstream 502"))

	s := NewSession("sid", loader)
	defer s.Close()

	require.NoError(t, s.Dispatch(context.Background(), Initialize("Firefox", "nightly", "d1")))
	st := waitIdle(t, s)

	assert.False(t, st.Loaded)
	assert.Contains(t, st.LastError, "upstream 502")
}

func TestSession_DispatchAfterClose(t *testing.T) {
	s := NewSession("sid", newGatedLoader())
	s.Close()

	err := s.Dispatch(context.Background(), SelectDate("d1"))
	assert.ErrorIs(t, err, common.ErrSessionClosed)
}

func TestSession_WaitIdleTimesOut(t *testing.T) {
	s := NewSession("sid", newGatedLoader())
	defer s.Close()

	require.NoError(t, s.Dispatch(context.Background(), Initialize("Firefox", "nightly", "d1")))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	st, err := s.WaitIdle(ctx)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, st.DatasetPending)
	assert.Equal(t, "d1", st.Date)
}

func TestManager_CreateGetSweep(t *testing.T) {
	m := NewManager(newGatedLoader(), time.Minute)
	defer m.Close()

	now := time.Now()
	m.now = func() time.Time { return now }

	s := m.Create("a")
	got, err := m.Get("a")
	require.NoError(t, err)
	assert.Same(t, s, got)

	_, err = m.Get("missing")
	assert.ErrorIs(t, err, common.ErrSessionNotFound)

	assert.Equal(t, 0, m.Sweep())

	m.now = func() time.Time { return now.Add(2 * time.Minute) }
	assert.Equal(t, 1, m.Sweep())
	assert.Equal(t, 0, m.Len())
}

func TestManager_GetKeepsSessionAlive(t *testing.T) {
	m := NewManager(newGatedLoader(), time.Minute)
	defer m.Close()

	now := time.Now()
	m.now = func() time.Time { return now }
	m.Create("a")

	now = now.Add(50 * time.Second)
	_, err := m.Get("a")
	require.NoError(t, err)

	// a's last access is 50s old, within the ttl; only its creation is older
	now = now.Add(50 * time.Second)
	m.Create("b")

	s, err := m.Get("a")
	require.NoError(t, err)
	assert.NoError(t, s.Dispatch(context.Background(), SelectDate("d1")))
	assert.Equal(t, 2, m.Len())
}

func TestManager_CreateReplacesSession(t *testing.T) {
	m := NewManager(newGatedLoader(), 0)
	defer m.Close()

	first := m.Create("a")
	second := m.Create("a")

	assert.NotSame(t, first, second)
	assert.Equal(t, 1, m.Len())
	assert.ErrorIs(t, first.Dispatch(context.Background(), SelectDate("d1")), common.ErrSessionClosed)
}

type recordingNotifier struct {
	calls chan bool
}

func (n *recordingNotifier) ViewChanged(_ string, idle bool) {
	n.calls <- idle
}

func TestSession_NotifiesOnFetchCompletion(t *testing.T) {
	loader := new(mockLoader)
	loader.On("FetchCatalog", mock.Anything).Return(domain.Catalog{Products: []string{"Firefox"}, Dates: []string{"d1"}}, nil)
	loader.On("FetchDataset", mock.Anything, mock.Anything).Return(sampleDataset(), nil)

	n := &recordingNotifier{calls: make(chan bool, 4)}
	m := NewManager(loader, time.Minute, WithNotifier(n))
	defer m.Close()

	s := m.Create("sid")
	require.NoError(t, s.Dispatch(context.Background(), Initialize("Firefox", "nightly", "d1")))
	waitIdle(t, s)

	// one call per completion, the last one reporting an idle session
	var got []bool
	for len(got) < 2 {
		select {
		case idle := <-n.calls:
			got = append(got, idle)
		case <-time.After(time.Second):
			t.Fatalf("expected 2 notifications, got %d", len(got))
		}
	}
	assert.True(t, got[1])

	require.NoError(t, s.Dispatch(context.Background(), SelectSignature("A")))
	assert.Empty(t, n.calls)
}
