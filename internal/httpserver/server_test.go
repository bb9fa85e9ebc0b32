package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tphakala/eas-monitor/internal/audiocore"
	"github.com/tphakala/eas-monitor/internal/audiocore/registry"
	"github.com/tphakala/eas-monitor/internal/errors"
	"github.com/tphakala/eas-monitor/internal/health"
	"github.com/tphakala/eas-monitor/internal/observability"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeSources is an in-memory SourceAdmin.
type fakeSources struct {
	mu      sync.Mutex
	sources map[string]registry.Source
	calls   []string
}

func newFakeSources(ids ...string) *fakeSources {
	f := &fakeSources{sources: make(map[string]registry.Source)}
	for i, id := range ids {
		f.sources[id] = registry.Source{ID: id, Name: id, Priority: i, Enabled: true, State: registry.StateStopped}
	}
	return f
}

func (f *fakeSources) List() []registry.Source {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]registry.Source, 0, len(f.sources))
	for _, s := range f.sources {
		out = append(out, s)
	}
	return out
}

func (f *fakeSources) Get(id string) (registry.Source, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sources[id]
	if !ok {
		return registry.Source{}, errors.New(audiocore.ErrSourceNotFound).
			Component(audiocore.ComponentAudioCore).
			Context("source_id", id).
			Build()
	}
	return s, nil
}

func (f *fakeSources) set(id string, to registry.State, op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, op+":"+id)
	s, ok := f.sources[id]
	if !ok {
		return errors.New(audiocore.ErrSourceNotFound).
			Component(audiocore.ComponentAudioCore).
			Context("source_id", id).
			Build()
	}
	if op == "start" && s.State == registry.StateRunning {
		return errors.New(audiocore.ErrAlreadyRunning).
			Component(audiocore.ComponentAudioCore).
			Context("source_id", id).
			Build()
	}
	s.State = to
	f.sources[id] = s
	return nil
}

func (f *fakeSources) Start(_ context.Context, id string) error {
	return f.set(id, registry.StateRunning, "start")
}

func (f *fakeSources) Stop(id string) error {
	return f.set(id, registry.StateStopped, "stop")
}

func (f *fakeSources) Restart(_ context.Context, id string) error {
	return f.set(id, registry.StateRunning, "restart")
}

type staticHealth struct {
	snap health.Snapshot
}

func (h staticHealth) Snapshot() health.Snapshot { return h.snap }

func do(t *testing.T, s *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, http.NoBody)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		sources    []health.SourceHealth
		wantStatus string
		wantCode   int
	}{
		{
			name:       "all running",
			sources:    []health.SourceHealth{{ID: "a", Status: "running"}, {ID: "b", Status: "running"}},
			wantStatus: StatusHealthy,
			wantCode:   http.StatusOK,
		},
		{
			name:       "one silent",
			sources:    []health.SourceHealth{{ID: "a", Status: "running"}, {ID: "b", Status: "running", Silent: true}},
			wantStatus: StatusDegraded,
			wantCode:   http.StatusOK,
		},
		{
			name:       "none running",
			sources:    []health.SourceHealth{{ID: "a", Status: "error"}, {ID: "b", Status: "stopped"}},
			wantStatus: StatusDown,
			wantCode:   http.StatusServiceUnavailable,
		},
		{
			name:       "no sources",
			wantStatus: StatusDegraded,
			wantCode:   http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			snap := health.Snapshot{
				Sources: tt.sources,
				Scans:   health.ScanMetrics{ScansPerformed: 7},
			}
			s := New("127.0.0.1:0", newFakeSources(), staticHealth{snap: snap}, WithVersion("1.2.3"))

			rec := do(t, s, http.MethodGet, "/api/v1/health")
			assert.Equal(t, tt.wantCode, rec.Code)

			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantStatus, body["status"])
			assert.Equal(t, "1.2.3", body["version"])
			scans, ok := body["scans"].(map[string]any)
			require.True(t, ok, "snapshot fields are inlined")
			assert.InDelta(t, 7, scans["scans_performed"], 0)
		})
	}
}

func TestSourceEndpoints(t *testing.T) {
	t.Parallel()

	sources := newFakeSources("radio", "stream")
	s := New("127.0.0.1:0", sources, staticHealth{})

	rec := do(t, s, http.MethodGet, "/api/v1/sources")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []registry.Source
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 2)

	rec = do(t, s, http.MethodGet, "/api/v1/sources/radio")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodPost, "/api/v1/sources/radio/start")
	require.Equal(t, http.StatusOK, rec.Code)
	var src registry.Source
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &src))
	assert.Equal(t, registry.StateRunning, src.State)

	rec = do(t, s, http.MethodPost, "/api/v1/sources/radio/start")
	assert.Equal(t, http.StatusConflict, rec.Code, "already running")

	rec = do(t, s, http.MethodPost, "/api/v1/sources/radio/stop")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &src))
	assert.Equal(t, registry.StateStopped, src.State)

	rec = do(t, s, http.MethodPost, "/api/v1/sources/radio/restart")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, []string{"start:radio", "start:radio", "stop:radio", "restart:radio"}, sources.calls)
}

func TestSourceNotFound(t *testing.T) {
	t.Parallel()

	s := New("127.0.0.1:0", newFakeSources(), staticHealth{})

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/v1/sources/missing"},
		{http.MethodPost, "/api/v1/sources/missing/start"},
		{http.MethodPost, "/api/v1/sources/missing/stop"},
		{http.MethodPost, "/api/v1/sources/missing/restart"},
	} {
		rec := do(t, s, tc.method, tc.path)
		assert.Equal(t, http.StatusNotFound, rec.Code, tc.path)

		var body ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.NotEmpty(t, body.Error)
	}

	rec := do(t, s, http.MethodGet, "/api/v1/nothing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	m, err := observability.NewMetrics()
	require.NoError(t, err)
	s := New("127.0.0.1:0", newFakeSources("radio"), staticHealth{}, WithMetrics(m))

	require.Equal(t, http.StatusOK, do(t, s, http.MethodPost, "/api/v1/sources/radio/start").Code)
	require.Equal(t, http.StatusNotFound, do(t, s, http.MethodPost, "/api/v1/sources/nope/stop").Code)

	rec := do(t, s, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "http_admin_operations_total")
	assert.Contains(t, body, `operation="start",status="success"`)
	assert.Contains(t, body, `operation="stop",status="error"`)
	assert.Contains(t, body, `path="/api/v1/sources/:id/start"`)

	count, err := testutil.GatherAndCount(m.Registry(), "http_requests_total")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, count, 2)
}

func TestRunServesUntilCancelled(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := New(ln.Addr().String(), newFakeSources(), staticHealth{})
	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	url := fmt.Sprintf("http://%s/api/v1/sources", ln.Addr())
	require.Eventually(t, func() bool {
		resp, err := http.Get(url) //nolint:noctx // test helper
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
	http.DefaultClient.CloseIdleConnections()
}

func TestRunInvalidAddress(t *testing.T) {
	t.Parallel()

	s := New("not-an-address", newFakeSources(), staticHealth{})
	err := s.Run(t.Context())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "listen"))
}
