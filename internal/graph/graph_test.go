package graph

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type CounterState struct {
	Count int
	Trail []string
}

func (s CounterState) Validate() error {
	if s.Count < 0 {
		return errors.New("count cannot be negative")
	}
	return nil
}

func (s CounterState) Clone() CounterState {
	return CounterState{Count: s.Count, Trail: append([]string{}, s.Trail...)}
}

func visit(name string) NodeFunc[CounterState] {
	return func(_ context.Context, s CounterState, _ Config) (CounterState, error) {
		s.Count++
		s.Trail = append(s.Trail, name)
		return s, nil
	}
}

type memCheckpointer struct {
	mu   sync.Mutex
	data map[string]*DataPoint[CounterState]
}

func newMemCheckpointer() *memCheckpointer {
	return &memCheckpointer{data: make(map[string]*DataPoint[CounterState])}
}

func (m *memCheckpointer) Save(_ context.Context, cfg Config, data *DataPoint[CounterState]) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *data
	m.data[cfg.GraphID+"/"+cfg.ThreadID] = &cp
	return nil
}

func (m *memCheckpointer) Load(_ context.Context, cfg Config) (*DataPoint[CounterState], error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp, ok := m.data[cfg.GraphID+"/"+cfg.ThreadID]
	if !ok {
		return nil, errors.New("checkpoint not found")
	}
	return cp, nil
}

func TestGraphConstructionValidation(t *testing.T) {
	t.Parallel()

	t.Run("duplicate node", func(t *testing.T) {
		t.Parallel()
		g := NewGraph[CounterState]("dup")
		require.NoError(t, g.AddNode("a", visit("a")))
		err := g.AddNode("a", visit("a"))
		require.ErrorIs(t, err, ErrDuplicateNode)
	})

	t.Run("reserved names", func(t *testing.T) {
		t.Parallel()
		g := NewGraph[CounterState]("reserved")
		require.ErrorIs(t, g.AddNode(END, visit("end")), ErrReservedName)
		require.ErrorIs(t, g.AddNode(START, visit("start")), ErrReservedName)
	})

	t.Run("edge to missing node", func(t *testing.T) {
		t.Parallel()
		g := NewGraph[CounterState]("missing")
		require.NoError(t, g.AddNode("a", visit("a")))
		require.ErrorIs(t, g.AddEdge("a", "ghost"), ErrNodeNotFound)
	})

	t.Run("router route to missing node", func(t *testing.T) {
		t.Parallel()
		g := NewGraph[CounterState]("router-missing")
		require.NoError(t, g.AddNode("a", visit("a")))
		err := g.AddRouter("a", Router[CounterState]{
			Decide: func(context.Context, CounterState, Config) (Outcome, error) { return "go", nil },
			Routes: map[Outcome]string{"go": "ghost"},
		})
		require.ErrorIs(t, err, ErrNodeNotFound)
	})

	t.Run("router without decision", func(t *testing.T) {
		t.Parallel()
		g := NewGraph[CounterState]("router-nil")
		require.NoError(t, g.AddNode("a", visit("a")))
		err := g.AddRouter("a", Router[CounterState]{Routes: map[Outcome]string{"go": END}})
		require.ErrorIs(t, err, ErrInvalidCondition)
	})

	t.Run("edge and router conflict", func(t *testing.T) {
		t.Parallel()
		g := NewGraph[CounterState]("conflict")
		require.NoError(t, g.AddNode("a", visit("a")))
		require.NoError(t, g.AddEdge("a", END))
		err := g.AddRouter("a", Router[CounterState]{
			Decide: func(context.Context, CounterState, Config) (Outcome, error) { return "go", nil },
			Routes: map[Outcome]string{"go": END},
		})
		require.ErrorIs(t, err, ErrConflictingRouter)
	})

	t.Run("unreachable node", func(t *testing.T) {
		t.Parallel()
		g := NewGraph[CounterState]("unreachable")
		require.NoError(t, g.AddNode("a", visit("a")))
		require.NoError(t, g.AddNode("island", visit("island")))
		require.NoError(t, g.AddEdge("a", END))
		require.NoError(t, g.AddEdge("island", END))
		require.NoError(t, g.SetEntryPoint("a"))
		require.ErrorIs(t, g.Validate(), ErrUnreachableNode)
	})

	t.Run("no transition", func(t *testing.T) {
		t.Parallel()
		g := NewGraph[CounterState]("dead-end")
		require.NoError(t, g.AddNode("a", visit("a")))
		require.NoError(t, g.AddNode("b", visit("b")))
		require.NoError(t, g.AddEdge("a", "b"))
		require.NoError(t, g.SetEntryPoint("a"))
		err := g.Validate()
		require.Error(t, err)
		require.True(t, errors.Is(err, ErrNoTransition) || errors.Is(err, ErrNoEndPoint))
	})
}

func TestFailedCompileDoesNotFreeze(t *testing.T) {
	t.Parallel()

	g := NewGraph[CounterState]("refreeze")
	require.NoError(t, g.AddNode("a", visit("a")))
	require.NoError(t, g.AddNode("b", visit("b")))
	require.NoError(t, g.AddEdge("a", "b"))
	require.NoError(t, g.AddEdge("b", END))
	require.NoError(t, g.SetEntryPoint("a"))

	_, err := g.Compile(WithInterruptBefore[CounterState]("ghost"))
	require.ErrorIs(t, err, ErrNodeNotFound)

	// the graph stays editable and compilable after the rejected compile
	require.NoError(t, g.SetEntryPoint("a"))
	cg, err := g.Compile(WithInterruptBefore[CounterState]("b"))
	require.NoError(t, err)
	require.NotNil(t, cg)
}

func TestLinearExecution(t *testing.T) {
	t.Parallel()

	g := NewGraph[CounterState]("linear")
	require.NoError(t, g.AddNode("a", visit("a")))
	require.NoError(t, g.AddNode("b", visit("b")))
	require.NoError(t, g.AddEdge("a", "b"))
	require.NoError(t, g.AddEdge("b", END))
	require.NoError(t, g.SetEntryPoint("a"))

	cg, err := g.Compile()
	require.NoError(t, err)

	st, err := cg.Run(context.Background(), CounterState{})
	require.NoError(t, err)
	require.Equal(t, 2, st.Count)
	require.Equal(t, []string{"a", "b"}, st.Trail)
}

func TestRouterExecution(t *testing.T) {
	t.Parallel()

	g := NewGraph[CounterState]("looping")
	require.NoError(t, g.AddNode("work", visit("work")))
	require.NoError(t, g.AddRouter("work", Router[CounterState]{
		Decide: func(_ context.Context, s CounterState, _ Config) (Outcome, error) {
			if s.Count < 3 {
				return "again", nil
			}
			return "done", nil
		},
		Routes: map[Outcome]string{"again": "work", "done": END},
	}))
	require.NoError(t, g.SetEntryPoint("work"))

	cg, err := g.Compile()
	require.NoError(t, err)

	st, err := cg.Run(context.Background(), CounterState{})
	require.NoError(t, err)
	require.Equal(t, 3, st.Count)
}

func TestUndeclaredOutcomeFailsExecution(t *testing.T) {
	t.Parallel()

	g := NewGraph[CounterState]("rogue")
	require.NoError(t, g.AddNode("a", visit("a")))
	require.NoError(t, g.AddRouter("a", Router[CounterState]{
		Decide: func(context.Context, CounterState, Config) (Outcome, error) {
			return "surprise", nil
		},
		Routes: map[Outcome]string{"done": END},
	}))
	require.NoError(t, g.SetEntryPoint("a"))

	cg, err := g.Compile()
	require.NoError(t, err)

	_, err = cg.Run(context.Background(), CounterState{})
	require.ErrorIs(t, err, ErrUndeclaredOutcome)
}

func TestMaxStepsLimit(t *testing.T) {
	t.Parallel()

	g := NewGraph[CounterState]("endless")
	require.NoError(t, g.AddNode("spin", visit("spin")))
	require.NoError(t, g.AddRouter("spin", Router[CounterState]{
		Decide: func(context.Context, CounterState, Config) (Outcome, error) { return "again", nil },
		Routes: map[Outcome]string{"again": "spin", "done": END},
	}))
	require.NoError(t, g.SetEntryPoint("spin"))

	cg, err := g.Compile(WithMaxSteps[CounterState](5))
	require.NoError(t, err)

	_, err = cg.Run(context.Background(), CounterState{})
	require.ErrorIs(t, err, ErrMaxStepsReached)
}

func TestInterruptAndResume(t *testing.T) {
	t.Parallel()

	build := func(cp Checkpointer[CounterState]) *CompiledGraph[CounterState] {
		g := NewGraph[CounterState]("interview-like")
		require.NoError(t, g.AddNode("ask", visit("ask")))
		require.NoError(t, g.AddNode("ask_after", visit("ask_after")))
		require.NoError(t, g.AddEdge("ask", "ask_after"))
		require.NoError(t, g.AddRouter("ask_after", Router[CounterState]{
			Decide: func(_ context.Context, s CounterState, _ Config) (Outcome, error) {
				if s.Count < 4 {
					return "ask", nil
				}
				return "done", nil
			},
			Routes: map[Outcome]string{"ask": "ask", "done": END},
		}))
		require.NoError(t, g.SetEntryPoint("ask"))

		cg, err := g.Compile(
			WithCheckpointer[CounterState](cp),
			WithInterruptBefore[CounterState]("ask_after"),
		)
		require.NoError(t, err)
		return cg
	}

	cp := newMemCheckpointer()
	cg := build(cp)
	ctx := context.Background()

	// First invocation halts before ask_after.
	st, err := cg.Run(ctx, CounterState{}, WithThreadID[CounterState]("t1"))
	require.NoError(t, err)
	require.Equal(t, []string{"ask"}, st.Trail)

	dp, err := cg.State(ctx, "t1")
	require.NoError(t, err)
	require.Equal(t, StatusPending, dp.Status)
	require.Equal(t, "ask_after", dp.CurrentNode)
	require.Equal(t, []string{"ask_after"}, dp.NodeQueue)

	// Resume runs the interrupt node, loops once and halts at it again.
	st, err = cg.Run(ctx, CounterState{}, WithThreadID[CounterState]("t1"))
	require.NoError(t, err)
	require.Equal(t, []string{"ask", "ask_after", "ask"}, st.Trail)

	// Keep resuming until the router ends the loop.
	st, err = cg.Run(ctx, CounterState{}, WithThreadID[CounterState]("t1"))
	require.NoError(t, err)

	dp, err = cg.State(ctx, "t1")
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, dp.Status)
	require.Empty(t, dp.NodeQueue)
	require.GreaterOrEqual(t, st.Count, 4)
}

func TestStateUpdateAppliedBeforeResume(t *testing.T) {
	t.Parallel()

	g := NewGraph[CounterState]("update")
	require.NoError(t, g.AddNode("first", visit("first")))
	require.NoError(t, g.AddNode("second", visit("second")))
	require.NoError(t, g.AddEdge("first", "second"))
	require.NoError(t, g.AddEdge("second", END))
	require.NoError(t, g.SetEntryPoint("first"))

	cp := newMemCheckpointer()
	cg, err := g.Compile(
		WithCheckpointer[CounterState](cp),
		WithInterruptBefore[CounterState]("second"),
	)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = cg.Run(ctx, CounterState{}, WithThreadID[CounterState]("t1"))
	require.NoError(t, err)

	st, err := cg.Run(ctx, CounterState{},
		WithThreadID[CounterState]("t1"),
		WithStateUpdate[CounterState](func(s CounterState) CounterState {
			s.Trail = append(s.Trail, "injected")
			return s
		}),
	)
	require.NoError(t, err)
	require.Equal(t, []string{"first", "injected", "second"}, st.Trail)
}

func TestNodeFailureLeavesCheckpointUntouched(t *testing.T) {
	t.Parallel()

	boom := errors.New("model unavailable")
	failing := true

	g := NewGraph[CounterState]("flaky")
	require.NoError(t, g.AddNode("stable", visit("stable")))
	require.NoError(t, g.AddNode("flaky", func(_ context.Context, s CounterState, _ Config) (CounterState, error) {
		if failing {
			return s, boom
		}
		s.Count++
		s.Trail = append(s.Trail, "flaky")
		return s, nil
	}))
	require.NoError(t, g.AddEdge("stable", "flaky"))
	require.NoError(t, g.AddEdge("flaky", END))
	require.NoError(t, g.SetEntryPoint("stable"))

	cp := newMemCheckpointer()
	cg, err := g.Compile(
		WithCheckpointer[CounterState](cp),
		WithInterruptBefore[CounterState]("flaky"),
	)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = cg.Run(ctx, CounterState{}, WithThreadID[CounterState]("t1"))
	require.NoError(t, err)

	before, err := cg.State(ctx, "t1")
	require.NoError(t, err)

	// Failed resume must not advance or mutate the persisted position.
	_, err = cg.Run(ctx, CounterState{}, WithThreadID[CounterState]("t1"))
	require.ErrorIs(t, err, boom)

	after, err := cg.State(ctx, "t1")
	require.NoError(t, err)
	require.Equal(t, before, after)

	// Retry succeeds from the same position.
	failing = false
	st, err := cg.Run(ctx, CounterState{}, WithThreadID[CounterState]("t1"))
	require.NoError(t, err)
	require.Equal(t, []string{"stable", "flaky"}, st.Trail)
}
