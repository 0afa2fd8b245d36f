package notify

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linguanet/linguanet-go/internal/errors"
	"github.com/linguanet/linguanet-go/internal/migration"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleSummary() *migration.Summary {
	return &migration.Summary{
		RunID:      "f2a9dc1e-0000-4000-8000-000000000042",
		Status:     migration.RunStatusCompleted,
		DryRun:     true,
		StartedAt:  time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		FinishedAt: time.Date(2026, 3, 1, 10, 0, 42, 0, time.UTC),
		Duration:   "42s",
		Entities: []migration.EntityReport{
			{Entity: "modules", Migrated: 5, Skipped: 2},
			{Entity: "redirections", Migrated: 1, Failed: 1, Errors: []string{"site 3: bad blob"}},
		},
	}
}

func TestNew_DisabledNeedsNoURLs(t *testing.T) {
	n, err := New(false, nil, testLogger())
	require.NoError(t, err)
	assert.False(t, n.Enabled())
	assert.NoError(t, n.RunFinished(sampleSummary()), "disabled notifier is a no-op")
}

func TestNew_EnabledWithoutURLsFails(t *testing.T) {
	_, err := New(true, nil, testLogger())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestNew_InvalidURLFailsAtStartup(t *testing.T) {
	_, err := New(true, []string{"definitely-not-a-service-url"}, testLogger())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestRunFinished_SendsThroughRouter(t *testing.T) {
	// The logger service delivers without touching the network.
	n, err := New(true, []string{"logger://"}, testLogger())
	require.NoError(t, err)
	require.True(t, n.Enabled())

	assert.NoError(t, n.RunFinished(sampleSummary()))
}

func TestRenderSummary(t *testing.T) {
	title, body := renderSummary(sampleSummary())

	assert.Equal(t, "LinguaNet migration completed (dry run)", title)
	assert.Contains(t, body, "Run f2a9dc1e-0000-4000-8000-000000000042 finished in 42s")
	assert.Contains(t, body, "modules: 5 migrated, 2 skipped, 0 failed")
	assert.Contains(t, body, "redirections: 1 migrated, 0 skipped, 1 failed")
	assert.NotContains(t, body, "fatal:", "no fatal line for completed runs")
}

func TestRenderSummary_FatalError(t *testing.T) {
	s := sampleSummary()
	s.Status = migration.RunStatusFailed
	s.DryRun = false
	s.FatalError = "store connection lost"

	title, body := renderSummary(s)
	assert.Equal(t, "LinguaNet migration failed", title)
	assert.Contains(t, body, "fatal: store connection lost")
}
