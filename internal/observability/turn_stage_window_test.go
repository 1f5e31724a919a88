package observability

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStageWindowSnapshot(t *testing.T) {
	w := NewStageWindow(8)
	w.ObserveDuration(StageTurnTotal, 7*time.Second)
	w.ObserveDuration(StageModel, 500*time.Millisecond)
	w.ObserveDuration(StageModel, 900*time.Millisecond)
	w.ObserveDuration(StageModel, 700*time.Millisecond)
	w.ObserveIndicator(IndicatorFallback)
	w.ObserveIndicator(IndicatorFallback)
	w.ObserveIndicator("  ")

	snap := w.Snapshot()
	assert.Equal(t, 8, snap.WindowSize)
	require.Len(t, snap.Stages, 2)

	model := snap.Stages[0]
	assert.Equal(t, StageModel, model.Stage)
	assert.Equal(t, 3, model.Samples)
	assert.Equal(t, 700.0, model.P50MS)
	assert.Equal(t, 900.0, model.P95MS)
	assert.Equal(t, 900.0, model.MaxMS)
	assert.Equal(t, 6000.0, model.TargetP95MS)
	assert.False(t, model.OverTarget)

	total := snap.Stages[1]
	assert.Equal(t, StageTurnTotal, total.Stage)
	assert.True(t, total.OverTarget)

	assert.Equal(t, map[string]int{IndicatorFallback: 2}, snap.Indicators)
}

func TestStageWindowRingOverwritesOldest(t *testing.T) {
	w := NewStageWindow(2)
	w.ObserveDuration(StageValidate, 9*time.Millisecond)
	w.ObserveDuration(StageValidate, 3*time.Millisecond)
	w.ObserveDuration(StageValidate, 1*time.Millisecond)

	s := w.Snapshot().Stages[0]
	assert.Equal(t, 2, s.Samples)
	assert.Equal(t, 3.0, s.MaxMS)
	assert.Equal(t, 1.0, s.P50MS)
}

func TestStageWindowIgnoresInvalidSamples(t *testing.T) {
	w := NewStageWindow(0)
	w.ObserveDuration("", time.Millisecond)
	w.ObserveDuration("unknown_stage", time.Millisecond)
	w.ObserveDuration(StageTurnTotal, -time.Millisecond)
	snap := w.Snapshot()
	assert.Empty(t, snap.Stages)
	assert.Empty(t, snap.Indicators)
	assert.Equal(t, 256, snap.WindowSize)

	var nilWindow *StageWindow
	nilWindow.ObserveDuration(StageTurnTotal, time.Millisecond)
	nilWindow.ObserveIndicator(IndicatorTimeout)
	assert.Empty(t, nilWindow.Snapshot().Stages)
}

func TestMetricsHandlerServesOwnRegistry(t *testing.T) {
	a := NewMetrics("sourcebot")
	b := NewMetrics("sourcebot")
	a.Turns.WithLabelValues("ok", "pills", "collecting").Inc()
	b.ObserveModelLatency("mock", 20*time.Millisecond)

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	assert.True(t, strings.Contains(string(body), `sourcebot_turns_total{kind="pills",outcome="ok",stage="collecting"} 1`))
}
