package app

import (
	"context"
	"io"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/louisbranch/kingdom/internal/core/check"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/definition"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/engine"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/realm"
	"github.com/louisbranch/kingdom/internal/services/kingdom/domain/resource"
	"github.com/louisbranch/kingdom/internal/services/kingdom/storage/sqlite"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) *Service {
	t.Helper()
	service, err := New(context.Background(), Config{
		DBPath:  filepath.Join(t.TempDir(), "kingdom.db"),
		TieRule: "fail",
	}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, service.Close())
	})
	return service
}

func TestNewRejectsUnknownTieRule(t *testing.T) {
	_, err := New(context.Background(), Config{DBPath: filepath.Join(t.TempDir(), "kingdom.db"), TieRule: "coin-flip"}, zerolog.Nop())
	assert.Error(t, err)
}

func TestFoundKingdomIsIdempotent(t *testing.T) {
	service := newService(t)
	ctx := context.Background()
	require.NoError(t, service.FoundKingdom(ctx, "k1", "Stolen Lands"))
	require.NoError(t, service.FoundKingdom(ctx, "k1", "Renamed"))

	snapshot, err := service.Kingdom(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, "Stolen Lands", snapshot.Name)
	assert.Equal(t, DefaultControlDC, snapshot.ControlDC)
	assert.Equal(t, 10, snapshot.Resource(resource.Gold))
	assert.Equal(t, 1, snapshot.Count(realm.KindSettlement))
}

func TestRunPersistsAndCounts(t *testing.T) {
	service := newService(t)
	ctx := context.Background()
	require.NoError(t, service.FoundKingdom(ctx, "k1", "Stolen Lands"))

	result, err := service.Run(ctx, Request{
		KingdomID:    "k1",
		DefinitionID: "collect-taxes",
		Skill:        "trade",
		Roll:         &check.Roll{Total: 20, Natural: 10},
	})
	require.NoError(t, err)
	require.Equal(t, engine.VerdictOK, result.Verdict, result.Error)
	assert.Equal(t, "success", result.Outcome)

	snapshot, err := service.Kingdom(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, 12, snapshot.Resource(resource.Gold))

	journal, err := service.Journal(ctx, "k1", 5)
	require.NoError(t, err)
	require.Len(t, journal, 1)
	assert.Equal(t, result.CheckID, journal[0].CheckID)

	metrics := service.Metrics()
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.verdicts.WithLabelValues("ok", "action")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.transitions.WithLabelValues(string(engine.StateCompleted))))
}

func TestPreviewWritesNothing(t *testing.T) {
	service := newService(t)
	ctx := context.Background()
	require.NoError(t, service.FoundKingdom(ctx, "k1", "Stolen Lands"))

	result, err := service.Preview(ctx, Request{
		KingdomID:    "k1",
		DefinitionID: "collect-taxes",
		Skill:        "trade",
		Roll:         &check.Roll{Total: 20, Natural: 10},
	})
	require.NoError(t, err)
	assert.True(t, result.DryRun)
	assert.Equal(t, engine.StateCompleted, result.State)
	assert.NotEmpty(t, result.Preview.Badges)

	snapshot, err := service.Kingdom(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, 10, snapshot.Resource(resource.Gold))

	journal, err := service.Journal(ctx, "k1", 5)
	require.NoError(t, err)
	assert.Empty(t, journal)
	assert.Equal(t, 0.0, testutil.ToFloat64(service.Metrics().verdicts.WithLabelValues("ok", "action")))
}

func TestRunCountsShortfalls(t *testing.T) {
	service := newService(t)
	ctx := context.Background()
	require.NoError(t, service.Store().CreateKingdom(ctx, realm.Kingdom{
		ID:        "k1",
		ControlDC: 14,
		Resources: map[string]int{resource.Gold: 1, resource.Unrest: 1},
	}))

	result, err := service.Run(ctx, Request{
		KingdomID:    "k1",
		DefinitionID: "arrest-dissidents",
		Skill:        "intrigue",
		Roll:         &check.Roll{Total: 10, Natural: 5},
	})
	require.NoError(t, err)
	require.Equal(t, engine.VerdictOK, result.Verdict, result.Error)
	assert.Equal(t, "failure", result.Outcome)

	snapshot, err := service.Kingdom(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, 0, snapshot.Resource(resource.Gold))
	assert.Equal(t, 2, snapshot.Resource(resource.Unrest))

	shortfalls, err := service.Shortfalls(ctx, "k1")
	require.NoError(t, err)
	require.Len(t, shortfalls, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(service.Metrics().shortfalls.WithLabelValues(resource.Gold)))

	recorder := httptest.NewRecorder()
	service.Metrics().Handler().ServeHTTP(recorder, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(recorder.Result().Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `kingdom_resource_shortfalls_total{resource="gold"} 1`), string(body))
}

func TestRunRequirementsNotMet(t *testing.T) {
	service := newService(t)
	ctx := context.Background()
	require.NoError(t, service.FoundKingdom(ctx, "k1", ""))

	result, err := service.Run(ctx, Request{KingdomID: "k1", DefinitionID: "arrest-dissidents", Skill: "intrigue"})
	require.NoError(t, err)
	assert.Equal(t, engine.VerdictRequirementsNotMet, result.Verdict)
	assert.Equal(t, "There is no unrest to suppress.", result.Message)
}

func TestRunUnknownInputs(t *testing.T) {
	service := newService(t)
	ctx := context.Background()
	require.NoError(t, service.FoundKingdom(ctx, "k1", ""))

	_, err := service.Run(ctx, Request{KingdomID: "k1", DefinitionID: "conquer-the-world"})
	assert.ErrorIs(t, err, definition.ErrNotFound)

	_, err = service.Run(ctx, Request{KingdomID: "k9", DefinitionID: "collect-taxes"})
	assert.ErrorIs(t, err, sqlite.ErrKingdomNotFound)
}

func TestChecksByCategory(t *testing.T) {
	service := newService(t)

	all, err := service.Checks("")
	require.NoError(t, err)
	incidents, err := service.Checks("incident")
	require.NoError(t, err)
	assert.Greater(t, len(all), len(incidents))
	for _, def := range incidents {
		assert.Equal(t, definition.CategoryIncident, def.Category)
	}

	_, err = service.Checks("festival")
	assert.Error(t, err)
}
