package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gleehq/interviewd/internal/session"
)

func newMonitor(t *testing.T) (*Monitor, *session.MemoryStore) {
	t.Helper()
	store := session.NewMemoryStore(0)
	err := store.Create(context.Background(), session.Data{ID: "s1"})
	require.NoError(t, err)
	return NewMonitor(store), store
}

func detected(engagement, distraction float64) session.MetricSample {
	return session.MetricSample{FaceDetected: true, Engagement: engagement, Distraction: distraction}
}

func missing() session.MetricSample {
	return session.MetricSample{FaceDetected: false}
}

func TestFaceStrikeEscalation(t *testing.T) {
	t.Parallel()

	m, _ := newMonitor(t)
	ctx := context.Background()

	expect := []struct {
		kind        string
		emitted     bool
		terminating bool
	}{
		{KindFaceFirst, true, false},
		{"", false, false},
		{KindFaceFinal, true, false},
		{"", false, false},
		{KindFaceTerminal, true, true},
	}
	for i, want := range expect {
		warning, emitted, err := m.Observe(ctx, "s1", missing())
		require.NoError(t, err)
		require.Equal(t, want.emitted, emitted, "sample %d", i)
		require.Equal(t, want.kind, warning.Kind, "sample %d", i)
		require.Equal(t, want.terminating, warning.Terminating, "sample %d", i)
	}
}

func TestDetectedFaceResetsStrikes(t *testing.T) {
	t.Parallel()

	m, _ := newMonitor(t)
	ctx := context.Background()

	_, emitted, err := m.Observe(ctx, "s1", missing())
	require.NoError(t, err)
	require.True(t, emitted)
	_, _, err = m.Observe(ctx, "s1", missing())
	require.NoError(t, err)

	_, emitted, err = m.Observe(ctx, "s1", detected(80, 10))
	require.NoError(t, err)
	require.False(t, emitted)

	// back to strike one, not strike three
	warning, emitted, err := m.Observe(ctx, "s1", missing())
	require.NoError(t, err)
	require.True(t, emitted)
	require.Equal(t, KindFaceFirst, warning.Kind)
}

func TestLowEngagementWarnsAfterFullWindow(t *testing.T) {
	t.Parallel()

	m, _ := newMonitor(t)
	ctx := context.Background()

	for i := 0; i < attentionWindow-1; i++ {
		_, emitted, err := m.Observe(ctx, "s1", detected(30, 20))
		require.NoError(t, err)
		require.False(t, emitted, "sample %d warned before the window filled", i)
	}

	warning, emitted, err := m.Observe(ctx, "s1", detected(30, 20))
	require.NoError(t, err)
	require.True(t, emitted)
	require.Equal(t, KindAttention, warning.Kind)
	require.False(t, warning.Terminating)
}

func TestHighDistractionWarns(t *testing.T) {
	t.Parallel()

	m, _ := newMonitor(t)
	ctx := context.Background()

	var warning session.Warning
	var emitted bool
	var err error
	for i := 0; i < attentionWindow; i++ {
		warning, emitted, err = m.Observe(ctx, "s1", detected(90, 85))
		require.NoError(t, err)
	}
	require.True(t, emitted)
	require.Equal(t, KindAttention, warning.Kind)
}

func TestAttentionWindowSlides(t *testing.T) {
	t.Parallel()

	m, _ := newMonitor(t)
	ctx := context.Background()

	// an attentive opening keeps the first full window healthy
	for i := 0; i < 5; i++ {
		_, emitted, err := m.Observe(ctx, "s1", detected(100, 0))
		require.NoError(t, err)
		require.False(t, emitted)
	}
	for i := 0; i < 5; i++ {
		_, emitted, err := m.Observe(ctx, "s1", detected(0, 0))
		require.NoError(t, err)
		require.False(t, emitted, "sample %d warned too early", 5+i)
	}

	// one more disengaged sample tips the last-10 average below the floor
	warning, emitted, err := m.Observe(ctx, "s1", detected(0, 0))
	require.NoError(t, err)
	require.True(t, emitted)
	require.Equal(t, KindAttention, warning.Kind)
}

func TestAttentionWarnsOncePerDip(t *testing.T) {
	t.Parallel()

	m, _ := newMonitor(t)
	ctx := context.Background()

	warned := 0
	for i := 0; i < 2*attentionWindow; i++ {
		_, emitted, err := m.Observe(ctx, "s1", detected(20, 10))
		require.NoError(t, err)
		if emitted {
			warned++
		}
	}
	require.Equal(t, 1, warned)

	// a fully recovered window re-arms the warning
	for i := 0; i < attentionWindow; i++ {
		_, emitted, err := m.Observe(ctx, "s1", detected(90, 5))
		require.NoError(t, err)
		require.False(t, emitted)
	}
	for i := 0; i < attentionWindow; i++ {
		_, emitted, err := m.Observe(ctx, "s1", detected(20, 10))
		require.NoError(t, err)
		if emitted {
			warned++
		}
	}
	require.Equal(t, 2, warned)
}

func TestAttentiveWindowStaysQuiet(t *testing.T) {
	t.Parallel()

	m, _ := newMonitor(t)
	ctx := context.Background()

	for i := 0; i < 3*attentionWindow; i++ {
		_, emitted, err := m.Observe(ctx, "s1", detected(75, 15))
		require.NoError(t, err)
		require.False(t, emitted)
	}
}

func TestWarningLandsInSessionSlot(t *testing.T) {
	t.Parallel()

	m, store := newMonitor(t)
	ctx := context.Background()

	_, emitted, err := m.Observe(ctx, "s1", missing())
	require.NoError(t, err)
	require.True(t, emitted)

	warning, ok, err := store.TakeWarning(ctx, "s1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, KindFaceFirst, warning.Kind)

	summary, err := store.MetricsSummary(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, 1, summary.Samples)
}

func TestNothingAfterTermination(t *testing.T) {
	t.Parallel()

	m, _ := newMonitor(t)
	ctx := context.Background()

	for i := 0; i < terminalStrike; i++ {
		_, _, err := m.Observe(ctx, "s1", missing())
		require.NoError(t, err)
	}

	_, emitted, err := m.Observe(ctx, "s1", missing())
	require.NoError(t, err)
	require.False(t, emitted)
}

func TestForgetResetsSession(t *testing.T) {
	t.Parallel()

	m, _ := newMonitor(t)
	ctx := context.Background()

	_, _, err := m.Observe(ctx, "s1", missing())
	require.NoError(t, err)
	_, _, err = m.Observe(ctx, "s1", missing())
	require.NoError(t, err)

	m.Forget("s1")

	warning, emitted, err := m.Observe(ctx, "s1", missing())
	require.NoError(t, err)
	require.True(t, emitted)
	require.Equal(t, KindFaceFirst, warning.Kind)
}
