// Package telemetry turns raw proctoring samples (face presence, engagement,
// distraction) into candidate-facing quality warnings. Warnings are written
// to the session store's warning slot; the event stream delivers them.
package telemetry

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/gleehq/interviewd/internal/session"
)

// Warning kinds emitted by the monitor.
const (
	KindFaceFirst    = "face_not_detected"
	KindFaceFinal    = "face_not_detected_final"
	KindFaceTerminal = "face_not_detected_terminated"
	KindAttention    = "low_attention"
)

const (
	firstStrike    = 1
	finalStrike    = 3
	terminalStrike = 5

	attentionWindow   = 10
	minAvgEngagement  = 50.0
	maxAvgDistraction = 70.0
)

type tracker struct {
	misses       int
	detected     []session.MetricSample
	attentionLow bool
	terminated   bool
}

// Monitor evaluates telemetry per session. One consecutive-miss counter and
// one attention window per session, dropped with Forget when the interview
// ends.
type Monitor struct {
	store session.Store

	mu       sync.Mutex
	trackers map[string]*tracker
}

func NewMonitor(store session.Store) *Monitor {
	return &Monitor{store: store, trackers: make(map[string]*tracker)}
}

// Observe records a sample and applies the warning policy. The returned
// warning (when emitted=true) has already been written to the session's
// warning slot; a Terminating warning means the interview must be ended.
func (m *Monitor) Observe(ctx context.Context, id string, sample session.MetricSample) (session.Warning, bool, error) {
	if err := m.store.AppendMetrics(ctx, id, sample); err != nil {
		return session.Warning{}, false, errors.Wrapf(err, "record telemetry for %s", id)
	}

	m.mu.Lock()
	tr, ok := m.trackers[id]
	if !ok {
		tr = &tracker{}
		m.trackers[id] = tr
	}
	warning, emitted := tr.apply(sample)
	m.mu.Unlock()

	if !emitted {
		return session.Warning{}, false, nil
	}
	if err := m.store.SetWarning(ctx, id, warning); err != nil {
		return session.Warning{}, false, errors.Wrapf(err, "store warning for %s", id)
	}
	return warning, true, nil
}

// Forget drops the per-session state.
func (m *Monitor) Forget(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.trackers, id)
}

func (tr *tracker) apply(sample session.MetricSample) (session.Warning, bool) {
	if tr.terminated {
		return session.Warning{}, false
	}

	if !sample.FaceDetected {
		tr.misses++
		switch {
		case tr.misses == firstStrike:
			return session.Warning{
				Kind:    KindFaceFirst,
				Message: "We can't see you on camera. Please make sure your face is visible.",
			}, true
		case tr.misses == finalStrike:
			return session.Warning{
				Kind:    KindFaceFinal,
				Message: "Final warning: your face is still not visible. The interview will be terminated if this continues.",
			}, true
		case tr.misses >= terminalStrike:
			tr.terminated = true
			return session.Warning{
				Kind:        KindFaceTerminal,
				Message:     "The interview has been terminated because your face remained out of view.",
				Terminating: true,
			}, true
		}
		return session.Warning{}, false
	}

	// a detected face resets the strike counter
	tr.misses = 0

	// sliding window over the most recent detected samples
	tr.detected = append(tr.detected, sample)
	if len(tr.detected) > attentionWindow {
		copy(tr.detected, tr.detected[1:])
		tr.detected = tr.detected[:attentionWindow]
	}
	if len(tr.detected) < attentionWindow {
		return session.Warning{}, false
	}

	var engagement, distraction float64
	for _, s := range tr.detected {
		engagement += s.Engagement
		distraction += s.Distraction
	}
	engagement /= attentionWindow
	distraction /= attentionWindow

	if engagement >= minAvgEngagement && distraction <= maxAvgDistraction {
		// a healthy window re-arms the warning
		tr.attentionLow = false
		return session.Warning{}, false
	}
	if tr.attentionLow {
		return session.Warning{}, false
	}
	tr.attentionLow = true
	return session.Warning{
		Kind:    KindAttention,
		Message: "You seem distracted. Please stay focused on the interview.",
	}, true
}
