package observability

import (
	"math"
	"slices"
	"strings"
	"sync"
	"time"
)

// Turn stages recorded by the dialogue orchestrator, in pipeline order.
const (
	StageValidate  = "validate"
	StageContext   = "context_build"
	StageModel     = "model_call"
	StageTurnTotal = "turn_total"
)

// Turn outcome indicators.
const (
	IndicatorFallback       = "fallback_reply"
	IndicatorSchemaRejected = "schema_rejected"
	IndicatorTimeout        = "model_timeout"
	IndicatorSubmitted      = "requirements_submitted"
)

type stageTarget struct {
	stage string
	p95   time.Duration
}

var stageTargets = []stageTarget{
	{StageValidate, 5 * time.Millisecond},
	{StageContext, 20 * time.Millisecond},
	{StageModel, 6 * time.Second},
	{StageTurnTotal, 6500 * time.Millisecond},
}

// StageStats summarizes the recent latencies of one turn stage.
type StageStats struct {
	Stage       string  `json:"stage"`
	Samples     int     `json:"samples"`
	P50MS       float64 `json:"p50_ms"`
	P95MS       float64 `json:"p95_ms"`
	MaxMS       float64 `json:"max_ms"`
	TargetP95MS float64 `json:"target_p95_ms"`
	OverTarget  bool    `json:"over_target"`
}

// StageSnapshot is the JSON body of the latency endpoint.
type StageSnapshot struct {
	GeneratedAt time.Time      `json:"generated_at"`
	WindowSize  int            `json:"window_size"`
	Stages      []StageStats   `json:"stages"`
	Indicators  map[string]int `json:"indicators"`
}

// StageWindow keeps the last N durations of each known turn stage plus
// counters for notable turn outcomes. A nil window drops everything.
type StageWindow struct {
	mu         sync.Mutex
	size       int
	samples    map[string][]time.Duration
	cursor     map[string]int
	indicators map[string]int
}

func NewStageWindow(size int) *StageWindow {
	if size <= 0 {
		size = 256
	}
	return &StageWindow{
		size:       size,
		samples:    make(map[string][]time.Duration, len(stageTargets)),
		cursor:     make(map[string]int, len(stageTargets)),
		indicators: make(map[string]int),
	}
}

// ObserveDuration records d for stage. Unknown stages and negative
// durations are ignored.
func (w *StageWindow) ObserveDuration(stage string, d time.Duration) {
	if w == nil || d < 0 || !knownStage(stage) {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	buf := w.samples[stage]
	if len(buf) < w.size {
		w.samples[stage] = append(buf, d)
		return
	}
	i := w.cursor[stage]
	buf[i] = d
	w.cursor[stage] = (i + 1) % w.size
}

func (w *StageWindow) ObserveIndicator(name string) {
	name = strings.TrimSpace(name)
	if w == nil || name == "" {
		return
	}
	w.mu.Lock()
	w.indicators[name]++
	w.mu.Unlock()
}

func (w *StageWindow) Snapshot() StageSnapshot {
	snap := StageSnapshot{
		GeneratedAt: time.Now().UTC(),
		Stages:      []StageStats{},
		Indicators:  map[string]int{},
	}
	if w == nil {
		return snap
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	snap.WindowSize = w.size
	for _, t := range stageTargets {
		buf := w.samples[t.stage]
		if len(buf) == 0 {
			continue
		}
		sorted := slices.Clone(buf)
		slices.Sort(sorted)
		p95 := nearestRank(sorted, 0.95)
		snap.Stages = append(snap.Stages, StageStats{
			Stage:       t.stage,
			Samples:     len(sorted),
			P50MS:       millis(nearestRank(sorted, 0.50)),
			P95MS:       millis(p95),
			MaxMS:       millis(sorted[len(sorted)-1]),
			TargetP95MS: millis(t.p95),
			OverTarget:  p95 > t.p95,
		})
	}
	for name, n := range w.indicators {
		snap.Indicators[name] = n
	}
	return snap
}

func knownStage(stage string) bool {
	return slices.ContainsFunc(stageTargets, func(t stageTarget) bool { return t.stage == stage })
}

// nearestRank expects sorted to be non-empty and ascending.
func nearestRank(sorted []time.Duration, q float64) time.Duration {
	rank := int(math.Ceil(q*float64(len(sorted)))) - 1
	return sorted[max(0, min(rank, len(sorted)-1))]
}

func millis(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
