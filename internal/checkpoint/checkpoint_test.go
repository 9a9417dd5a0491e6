package checkpoint

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/gleehq/interviewd/internal/graph"
)

type TestState struct {
	Value int
}

func (s TestState) Validate() error {
	if s.Value < 0 {
		return errors.New("value cannot be negative")
	}
	return nil
}

func (s TestState) Clone() TestState {
	return TestState{Value: s.Value}
}

func TestMemoryStoreSaveLoadDelete(t *testing.T) {
	t.Parallel()
	store := NewMemoryStore[TestState](0)
	ctx := context.Background()

	key := Key{GraphID: "g1", SessionID: "s1"}
	cp := Checkpoint[TestState]{
		Key:    key,
		Meta:   Meta{Status: graph.StatusPending, NodeQueue: []string{"node1"}},
		State:  TestState{Value: 10},
		NodeID: "node1",
	}

	require.NoError(t, store.Save(ctx, cp))

	loaded, err := store.Load(ctx, key)
	require.NoError(t, err)
	require.Equal(t, TestState{Value: 10}, loaded.State)
	require.Equal(t, []string{"node1"}, loaded.Meta.NodeQueue)

	require.NoError(t, store.Delete(ctx, key))
	_, err = store.Load(ctx, key)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreTTL(t *testing.T) {
	t.Parallel()
	store := NewMemoryStore[TestState](20 * time.Millisecond)
	ctx := context.Background()

	key := Key{GraphID: "g1", SessionID: "s1"}
	require.NoError(t, store.Save(ctx, Checkpoint[TestState]{Key: key, State: TestState{Value: 1}}))

	_, err := store.Load(ctx, key)
	require.NoError(t, err)

	time.Sleep(40 * time.Millisecond)
	_, err = store.Load(ctx, key)
	require.ErrorIs(t, err, ErrNotFound)

	// Sweep drops expired entries without a read touching them first.
	require.NoError(t, store.Save(ctx, Checkpoint[TestState]{Key: key, State: TestState{Value: 2}}))
	time.Sleep(40 * time.Millisecond)
	require.Equal(t, 1, store.Sweep())
}

func TestFileStoreRoundTrip(t *testing.T) {
	t.Parallel()
	store := NewFileStore[TestState](afero.NewMemMapFs(), "/var/lib/interviewd")
	ctx := context.Background()

	key := Key{GraphID: "interview-technical", SessionID: "s1"}
	cp := Checkpoint[TestState]{
		Key:    key,
		Meta:   Meta{Status: graph.StatusPending, Steps: 3, NodeQueue: []string{"Technical_after"}},
		State:  TestState{Value: 42},
		NodeID: "Technical_after",
	}

	require.NoError(t, store.Save(ctx, cp))

	loaded, err := store.Load(ctx, key)
	require.NoError(t, err)
	require.Equal(t, cp.State, loaded.State)
	require.Equal(t, cp.Meta.Status, loaded.Meta.Status)
	require.Equal(t, cp.Meta.NodeQueue, loaded.Meta.NodeQueue)

	_, err = store.Load(ctx, Key{GraphID: "interview-technical", SessionID: "missing"})
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Delete(ctx, key))
	_, err = store.Load(ctx, key)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStateCheckpointer(t *testing.T) {
	t.Parallel()
	checkpointer := NewStateCheckpointer[TestState](NewMemoryStore[TestState](0))
	ctx := context.Background()

	config := graph.Config{GraphID: "g1", ThreadID: "session-1"}
	data := &graph.DataPoint[TestState]{
		State:       TestState{Value: 100},
		Status:      graph.StatusPending,
		CurrentNode: "node1",
		Steps:       2,
		NodeQueue:   []string{"node1", "node2"},
	}

	require.NoError(t, checkpointer.Save(ctx, config, data))

	loaded, err := checkpointer.Load(ctx, config)
	require.NoError(t, err)
	require.Equal(t, data, loaded)

	// Overwrite wins.
	data2 := &graph.DataPoint[TestState]{
		State:       TestState{Value: 200},
		Status:      graph.StatusCompleted,
		CurrentNode: "node2",
	}
	require.NoError(t, checkpointer.Save(ctx, config, data2))
	loaded, err = checkpointer.Load(ctx, config)
	require.NoError(t, err)
	require.Equal(t, data2, loaded)

	// Loading a nonexistent session names it.
	_, err = checkpointer.Load(ctx, graph.Config{GraphID: "g1", ThreadID: "session-2"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "session-2")
	require.ErrorIs(t, err, ErrNotFound)
}
