package turn

import (
	"strings"
	"sync"
	"time"
)

// historySize is how many finished turns are kept for averaging.
const historySize = 100

// Outcome of a finished turn.
type Outcome string

const (
	OutcomeOK        Outcome = "ok"
	OutcomeRecovered Outcome = "recovered"
	OutcomeEnded     Outcome = "ended"
	OutcomeFault     Outcome = "fault"
)

// StageTiming is the duration of one stage that did work.
type StageTiming struct {
	Stage    Stage         `json:"stage"`
	Duration time.Duration `json:"duration"`
	Failed   bool          `json:"failed,omitempty"`
}

// TurnMetrics describes one turn.
type TurnMetrics struct {
	TurnID  string        `json:"turn_id"`
	Start   time.Time     `json:"start"`
	Stages  []StageTiming `json:"stages"`
	Total   time.Duration `json:"total"`
	Intent  string        `json:"intent,omitempty"`
	Outcome Outcome       `json:"outcome"`
}

// Summary aggregates recent turns.
type Summary struct {
	Turns    int                     `json:"turns"`
	Failures int                     `json:"failures"`
	Faults   int                     `json:"faults"`
	Average  map[Stage]time.Duration `json:"average"`
	Total    time.Duration           `json:"average_total"`
	Last     *TurnMetrics            `json:"last,omitempty"`
}

// Metrics collects stage latencies across turns. It is goroutine-safe.
type Metrics struct {
	mu       sync.Mutex
	history  []TurnMetrics
	onUpdate func(TurnMetrics)
}

// NewMetrics creates an empty collector.
func NewMetrics() *Metrics {
	return &Metrics{history: make([]TurnMetrics, 0, historySize)}
}

// OnUpdate sets a callback that fires after every finished turn.
func (m *Metrics) OnUpdate(fn func(TurnMetrics)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onUpdate = fn
}

// record archives a finished turn.
func (m *Metrics) record(tm TurnMetrics) {
	m.mu.Lock()
	m.history = append(m.history, tm)
	if len(m.history) > historySize {
		m.history = m.history[1:]
	}
	fn := m.onUpdate
	m.mu.Unlock()

	if fn != nil {
		fn(tm)
	}
}

// Last returns the most recent turn, if any.
func (m *Metrics) Last() (TurnMetrics, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.history) == 0 {
		return TurnMetrics{}, false
	}
	return m.history[len(m.history)-1], true
}

// Summary averages each stage over the turns in which it ran.
func (m *Metrics) Summary() Summary {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Summary{Turns: len(m.history), Average: map[Stage]time.Duration{}}
	if len(m.history) == 0 {
		return s
	}

	counts := map[Stage]int{}
	for _, tm := range m.history {
		s.Total += tm.Total
		switch tm.Outcome {
		case OutcomeRecovered:
			s.Failures++
		case OutcomeFault:
			s.Faults++
		}
		for _, st := range tm.Stages {
			s.Average[st.Stage] += st.Duration
			counts[st.Stage]++
		}
	}
	for stage, n := range counts {
		s.Average[stage] /= time.Duration(n)
	}
	s.Total /= time.Duration(len(m.history))

	last := m.history[len(m.history)-1]
	s.Last = &last
	return s
}

// FormatLatency renders the stages of tm on one line.
func (tm TurnMetrics) FormatLatency() string {
	parts := make([]string, 0, len(tm.Stages)+1)
	for _, st := range tm.Stages {
		parts = append(parts, formatDuration(st.Duration)+" "+string(st.Stage))
	}
	parts = append(parts, formatDuration(tm.Total)+" TOTAL")
	return strings.Join(parts, " | ")
}

func formatDuration(d time.Duration) string {
	if d == 0 {
		return "---ms"
	}
	return d.Round(time.Millisecond).String()
}
