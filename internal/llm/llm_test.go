package llm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gleehq/interviewd/internal/fault"
)

func TestMatchLabel(t *testing.T) {
	t.Parallel()

	labels := []string{"Technical", "Technical_before", "Offensive"}

	got, err := MatchLabel("Technical_before", labels)
	require.NoError(t, err)
	require.Equal(t, "Technical_before", got)

	got, err = MatchLabel("  offensive \n", labels)
	require.NoError(t, err)
	require.Equal(t, "Offensive", got)

	// Substring hit on a single label.
	got, err = MatchLabel("The answer is: Offensive.", labels)
	require.NoError(t, err)
	require.Equal(t, "Offensive", got)

	// The longer label shadows its prefix.
	got, err = MatchLabel("Next node: Technical_before", labels)
	require.NoError(t, err)
	require.Equal(t, "Technical_before", got)

	// "Technical" is a prefix of "Technical_before": ambiguous free text fails.
	_, err = MatchLabel("either Technical or Offensive", labels)
	require.Error(t, err)
	require.Equal(t, fault.KindUpstream, fault.KindOf(err))

	_, err = MatchLabel("no idea", labels)
	require.Error(t, err)
	require.Equal(t, fault.KindUpstream, fault.KindOf(err))
}
