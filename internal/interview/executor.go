package interview

import (
	"context"

	"github.com/pkg/errors"

	"github.com/gleehq/interviewd/internal/checkpoint"
	"github.com/gleehq/interviewd/internal/fault"
	"github.com/gleehq/interviewd/internal/graph"
	"github.com/gleehq/interviewd/internal/state"
)

var ErrSessionNotFound = errors.New("interview session not found")

// Turn is the interviewer's reply for one interaction: the message to
// deliver and the stage that produced it.
type Turn struct {
	Message string
	Stage   string
}

// Executor drives checkpointed interview sessions over the variant registry.
type Executor struct {
	registry *Registry
}

func NewExecutor(registry *Registry) *Executor {
	return &Executor{registry: registry}
}

// Start begins a new session: the workflow runs from its entry node until
// the first interrupt point and the greeting turn is returned.
func (e *Executor) Start(ctx context.Context, sessionID string, init state.Interview) (Turn, error) {
	if err := init.Validate(); err != nil {
		return Turn{}, fault.Wrap(fault.KindInvalidInput, err, "interview state")
	}
	cg, err := e.registry.Graph(init.Variant)
	if err != nil {
		return Turn{}, fault.Wrap(fault.KindInvalidInput, err, "interview variant")
	}

	st, err := cg.Run(ctx, init, graph.WithThreadID[state.Interview](sessionID))
	if err != nil {
		return Turn{}, errors.Wrapf(err, "start interview %s", sessionID)
	}
	return Turn{Message: st.LastMessage, Stage: st.LastStage}, nil
}

// Resume delivers the candidate's reply into a waiting session and runs the
// workflow to the next interrupt point or to completion. Resuming a
// finished session is an idempotent no-op.
func (e *Executor) Resume(ctx context.Context, sessionID string, variant state.Variant, input string) (Turn, error) {
	cg, err := e.registry.Graph(variant)
	if err != nil {
		return Turn{}, fault.Wrap(fault.KindInvalidInput, err, "interview variant")
	}

	dp, err := cg.State(ctx, sessionID)
	if err != nil {
		if errors.Is(err, checkpoint.ErrNotFound) {
			return Turn{}, fault.Wrap(fault.KindNotFound, ErrSessionNotFound, sessionID)
		}
		return Turn{}, errors.Wrapf(err, "load interview %s", sessionID)
	}
	if dp.Status != graph.StatusPending || len(dp.NodeQueue) == 0 {
		return Turn{Message: "", Stage: StageFinished}, nil
	}

	st, err := cg.Run(ctx, state.Interview{},
		graph.WithThreadID[state.Interview](sessionID),
		graph.WithStateUpdate[state.Interview](func(s state.Interview) state.Interview {
			return s.AppendInterviewee(input)
		}),
	)
	if err != nil {
		return Turn{}, errors.Wrapf(err, "resume interview %s", sessionID)
	}
	return Turn{Message: st.LastMessage, Stage: st.LastStage}, nil
}

// Snapshot returns the persisted state of a session.
func (e *Executor) Snapshot(ctx context.Context, sessionID string, variant state.Variant) (state.Interview, error) {
	cg, err := e.registry.Graph(variant)
	if err != nil {
		return state.Interview{}, fault.Wrap(fault.KindInvalidInput, err, "interview variant")
	}
	dp, err := cg.State(ctx, sessionID)
	if err != nil {
		if errors.Is(err, checkpoint.ErrNotFound) {
			return state.Interview{}, fault.Wrap(fault.KindNotFound, ErrSessionNotFound, sessionID)
		}
		return state.Interview{}, errors.Wrapf(err, "load interview %s", sessionID)
	}
	return dp.State, nil
}
