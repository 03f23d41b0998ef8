package ai

import "time"

const defaultTimingsHistorySize = 100

// Timings keeps a rolling history of phase durations for diagnostics. A
// measurement can be paused and resumed within one tick so interleaved
// phases (gravity vs AI work per entity) accumulate correctly.
type Timings struct {
	history []time.Duration
	counter int

	started bool
	paused  bool
	start   time.Time
	elapsed time.Duration
}

func NewTimings(historySize int) *Timings {
	return &Timings{history: make([]time.Duration, historySize)}
}

func (t *Timings) ensure() {
	if t.history == nil {
		t.history = make([]time.Duration, defaultTimingsHistorySize)
	}
}

func (t *Timings) Start() {
	t.ensure()
	t.started = true
	t.paused = false
	t.elapsed = 0
	t.start = time.Now()
}

func (t *Timings) StartPaused() {
	t.ensure()
	t.started = true
	t.paused = true
	t.elapsed = 0
}

func (t *Timings) Pause() {
	if !t.started || t.paused {
		return
	}
	t.paused = true
	t.elapsed += time.Since(t.start)
}

func (t *Timings) Resume() {
	if !t.started || !t.paused {
		return
	}
	t.paused = false
	t.start = time.Now()
}

// StopMeasure finishes the current measurement and records it in the rolling
// history.
func (t *Timings) StopMeasure() {
	if !t.started {
		return
	}
	if !t.paused {
		t.elapsed += time.Since(t.start)
	}
	t.started = false
	t.history[t.counter%len(t.history)] = t.elapsed
	t.counter++
}

func (t *Timings) Reset() {
	t.counter = 0
	t.started = false
	t.paused = false
	t.elapsed = 0
	for i := range t.history {
		t.history[i] = 0
	}
}

func (t *Timings) Counter() int { return t.counter }

func (t *Timings) AverageMillis() float64 {
	if t.counter == 0 || len(t.history) == 0 {
		return 0
	}
	n := t.counter
	if n > len(t.history) {
		n = len(t.history)
	}
	var sum time.Duration
	for i := 0; i < n; i++ {
		sum += t.history[i]
	}
	return float64(sum.Microseconds()) / float64(n) / 1000.0
}

func (t *Timings) MaxMillis() float64 {
	var max time.Duration
	for _, d := range t.history {
		if d > max {
			max = d
		}
	}
	return float64(max.Microseconds()) / 1000.0
}
