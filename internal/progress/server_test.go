package progress

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/linguanet/linguanet-go/internal/buildinfo"
	"github.com/linguanet/linguanet-go/internal/migration"
	"github.com/linguanet/linguanet-go/internal/observability"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type stubSource struct {
	p migration.Progress
}

func (s *stubSource) Progress() migration.Progress { return s.p }

func testServer(t *testing.T, m *observability.Metrics) (*Server, *stubSource) {
	t.Helper()
	src := &stubSource{p: migration.Progress{
		RunID:         "2d1f4a52-0000-4000-8000-000000000001",
		Status:        migration.RunStatusRunning,
		CurrentEntity: "redirections",
		StartedAt:     time.Now().UTC(),
		Entities: []migration.EntityReport{
			{Entity: "modules", Migrated: 3, Skipped: 1},
		},
	}}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	build := &buildinfo.Context{Version: "1.2.3", BuildDate: "2026-01-02T15:04:05Z"}
	return New("127.0.0.1:0", src, m, build, log), src
}

func TestServer_ProgressEndpoint(t *testing.T) {
	s, src := testServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/progress", http.NoBody)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var got migration.Progress
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, src.p.RunID, got.RunID)
	assert.Equal(t, migration.RunStatusRunning, got.Status)
	assert.Equal(t, "redirections", got.CurrentEntity)
	require.Len(t, got.Entities, 1)
	assert.Equal(t, 3, got.Entities[0].Migrated)
}

func TestServer_HealthEndpoint(t *testing.T) {
	s, _ := testServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "ok", got["status"])
	assert.Equal(t, "1.2.3", got["version"])
}

func TestServer_MetricsEndpointMountedOnlyWithMetrics(t *testing.T) {
	m, err := observability.NewMetrics()
	require.NoError(t, err)
	m.Migration.RecordRun("completed", 2*time.Second)

	withMetrics, _ := testServer(t, m)
	req := httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody)
	rec := httptest.NewRecorder()
	withMetrics.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "migration_runs_total")

	withoutMetrics, _ := testServer(t, nil)
	rec = httptest.NewRecorder()
	withoutMetrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_StartAndShutdown(t *testing.T) {
	s, _ := testServer(t, nil)
	s.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
}
