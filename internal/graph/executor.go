package graph

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// CompiledGraph is an immutable, executable version of the graph.
type CompiledGraph[T State[T]] struct {
	graph *Graph[T]

	checkpointer    Checkpointer[T]
	interruptBefore map[string]bool
	maxSteps        int
	timeout         time.Duration
	debug           bool
}

func (cg *CompiledGraph[T]) GraphID() string { return cg.graph.graphID }

// State returns the persisted execution position of a thread.
func (cg *CompiledGraph[T]) State(ctx context.Context, threadID string) (*DataPoint[T], error) {
	if cg.checkpointer == nil {
		return nil, NewExecutionError("state", "", ErrNoCheckpointer)
	}
	return cg.checkpointer.Load(ctx, Config{GraphID: cg.graph.graphID, ThreadID: threadID})
}

// Run executes the graph for one thread until it completes or halts at an
// interrupt point. With a checkpointer bound, a pending thread resumes from
// its saved node queue and the initial state argument is ignored.
func (cg *CompiledGraph[T]) Run(ctx context.Context, initial T, opt ...ExecOption[T]) (T, error) {
	cfg := execConfig[T]{
		Config: Config{
			GraphID:  cg.graph.graphID,
			ThreadID: uuid.New().String(),
			MaxSteps: cg.maxSteps,
			Timeout:  cg.timeout,
			Debug:    cg.debug,
		},
	}
	for _, o := range opt {
		o(&cfg)
	}

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	checkpoint, resumedAt := cg.loadOrInitCheckpoint(ctx, initial, cfg.Config)
	st := checkpoint.State
	if cfg.update != nil {
		st = cfg.update(st)
	}

	steps := checkpoint.Steps
	invocationSteps := 0
	nodeQueue := checkpoint.NodeQueue

	for len(nodeQueue) > 0 {
		if err := checkExecutionLimits(ctx, invocationSteps, cfg.Config); err != nil {
			return st, err
		}

		// Pop next node
		current := nodeQueue[0]
		nodeQueue = nodeQueue[1:]

		if current == END {
			continue
		}

		node, exists := cg.graph.nodes[current]
		if !exists {
			return st, NewExecutionError("run", current, ErrNodeNotFound)
		}

		// Halt before a declared interrupt node, except when this invocation
		// is resuming at exactly that node.
		if cg.interruptBefore[current] && current != resumedAt {
			pending := &DataPoint[T]{
				State:       st,
				Status:      StatusPending,
				CurrentNode: current,
				Steps:       steps,
				NodeQueue:   append([]string{current}, nodeQueue...),
			}
			if err := cg.saveCheckpoint(ctx, cfg.Config, pending); err != nil {
				return st, err
			}
			return st, nil
		}
		resumedAt = ""

		if cfg.Debug {
			slog.Debug("executing node", "graph", cfg.GraphID, "thread", cfg.ThreadID, "node", current, "step", steps)
		}

		// A node or router failure surfaces without touching the persisted
		// checkpoint, so the invocation can be retried from the same position.
		newState, err := node.Function(ctx, st, cfg.Config)
		if err != nil {
			return st, NewExecutionError("run", current, err)
		}
		st = newState

		next, err := cg.nextNode(ctx, current, st, cfg.Config)
		if err != nil {
			return st, err
		}
		if next != END {
			nodeQueue = append(nodeQueue, next)
		}

		steps++
		invocationSteps++
	}

	done := &DataPoint[T]{
		State:       st,
		Status:      StatusCompleted,
		CurrentNode: END,
		Steps:       steps,
	}
	if err := cg.saveCheckpoint(ctx, cfg.Config, done); err != nil {
		return st, err
	}
	return st, nil
}

// loadOrInitCheckpoint returns the execution position to run from and, when
// resuming a pending thread, the node the queue is positioned at.
func (cg *CompiledGraph[T]) loadOrInitCheckpoint(ctx context.Context, initial T, cfg Config) (DataPoint[T], string) {
	data := DataPoint[T]{
		State:       initial,
		Status:      StatusReady,
		CurrentNode: cg.graph.entryPoint,
		NodeQueue:   []string{cg.graph.entryPoint},
	}

	if cg.checkpointer == nil {
		return data, ""
	}

	checkpoint, err := cg.checkpointer.Load(ctx, cfg)
	if err != nil || checkpoint.Status != StatusPending {
		return data, ""
	}

	data.State = checkpoint.State
	data.Steps = checkpoint.Steps
	data.CurrentNode = checkpoint.CurrentNode
	data.NodeQueue = checkpoint.NodeQueue
	resumedAt := ""
	if len(checkpoint.NodeQueue) > 0 {
		resumedAt = checkpoint.NodeQueue[0]
	}
	return data, resumedAt
}

func (cg *CompiledGraph[T]) saveCheckpoint(ctx context.Context, cfg Config, data *DataPoint[T]) error {
	if cg.checkpointer == nil {
		return nil
	}
	if err := cg.checkpointer.Save(ctx, cfg, data); err != nil {
		return NewExecutionError("checkpoint", data.CurrentNode, err)
	}
	return nil
}

func (cg *CompiledGraph[T]) nextNode(ctx context.Context, current string, st T, cfg Config) (string, error) {
	if router, ok := cg.graph.routers[current]; ok {
		outcome, err := router.Decide(ctx, st, cfg)
		if err != nil {
			return "", NewExecutionError("route", current, err)
		}
		target, declared := router.Routes[outcome]
		if !declared {
			return "", NewExecutionError("route", current, ErrUndeclaredOutcome)
		}
		return target, nil
	}

	if to, ok := cg.graph.edges[current]; ok {
		return to, nil
	}
	return "", NewExecutionError("route", current, ErrNoTransition)
}

func checkExecutionLimits(ctx context.Context, steps int, cfg Config) error {
	select {
	case <-ctx.Done():
		return NewExecutionError("run", "", ctx.Err())
	default:
	}

	if cfg.MaxSteps > 0 && steps >= cfg.MaxSteps {
		return NewExecutionError("run", "", ErrMaxStepsReached)
	}
	return nil
}
