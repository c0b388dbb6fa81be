package volume

import (
	"context"
	"time"
)

const defaultInterval = 100 * time.Millisecond

// Analyser exposes the current amplitude samples of the live microphone
// signal, each in the 0-255 range.
type Analyser interface {
	Samples() []byte
}

// Monitor periodically reads the analyser and reports a scalar level to
// the collaborator layer. It runs independently of recording state.
type Monitor struct {
	analyser Analyser
	gate     func() bool
	emit     func(level float64)
	interval time.Duration
}

// NewMonitor builds a monitor. The gate is evaluated at the top of every
// tick; the loop terminates cleanly as soon as it reports false.
func NewMonitor(analyser Analyser, gate func() bool, emit func(level float64)) *Monitor {
	return &Monitor{
		analyser: analyser,
		gate:     gate,
		emit:     emit,
		interval: defaultInterval,
	}
}

// Run loops until the gate turns false or the context is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		if !m.gate() {
			return
		}

		m.emit(Level(m.analyser.Samples()))

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Level reduces amplitude samples to a 0-100-like scale. Values may exceed
// 100; there is no hard ceiling.
func Level(samples []byte) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum int
	for _, s := range samples {
		sum += int(s)
	}
	average := float64(sum) / float64(len(samples))
	return average / 128 * 100
}
