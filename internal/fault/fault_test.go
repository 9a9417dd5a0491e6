package fault

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	t.Parallel()

	require.Equal(t, KindNotFound, KindOf(New(KindNotFound, "session missing")))
	require.Equal(t, KindInternal, KindOf(errors.New("plain")))

	wrapped := errors.Wrap(New(KindUpstream, "model call"), "turn failed")
	require.Equal(t, KindUpstream, KindOf(wrapped))
}

func TestRetryable(t *testing.T) {
	t.Parallel()

	require.True(t, Retryable(New(KindUpstream, "model call")))
	require.True(t, Retryable(errors.New("unclassified")))

	require.False(t, Retryable(New(KindInvalidInput, "empty message")))
	require.False(t, Retryable(New(KindForbidden, "wrong owner")))
	require.False(t, Retryable(New(KindNotFound, "gone")))
	require.False(t, Retryable(New(KindTimeout, "hard limit")))
	require.False(t, Retryable(New(KindRateLimited, "turn in flight")))
}
