// Package checkpoint persists graph execution positions keyed by graph and
// session. Stores are pluggable; the service runs on the TTL'd memory store
// by default and the afero file store when durability across restarts is
// configured.
package checkpoint

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/gleehq/interviewd/internal/graph"
)

var ErrNotFound = errors.New("checkpoint not found")

type Key struct {
	GraphID   string
	SessionID string
}

type Meta struct {
	CreatedAt time.Time
	UpdatedAt time.Time
	Steps     int
	Status    graph.Status
	NodeQueue []string
}

type Checkpoint[T graph.State[T]] struct {
	Key    Key
	Meta   Meta
	State  T
	NodeID string
}

// Store defines persistent checkpoint storage operations.
type Store[T graph.State[T]] interface {
	Save(ctx context.Context, checkpoint Checkpoint[T]) error
	Load(ctx context.Context, key Key) (*Checkpoint[T], error)
	Delete(ctx context.Context, key Key) error
}

// StateCheckpointer adapts a Store to the graph engine's Checkpointer.
type StateCheckpointer[T graph.State[T]] struct {
	store Store[T]
}

func NewStateCheckpointer[T graph.State[T]](store Store[T]) *StateCheckpointer[T] {
	return &StateCheckpointer[T]{store: store}
}

func (sc *StateCheckpointer[T]) Save(ctx context.Context, config graph.Config, data *graph.DataPoint[T]) error {
	key := Key{
		GraphID:   config.GraphID,
		SessionID: config.ThreadID,
	}

	cp := Checkpoint[T]{
		Key: key,
		Meta: Meta{
			CreatedAt: time.Now(),
			Steps:     data.Steps,
			Status:    data.Status,
			NodeQueue: data.NodeQueue,
		},
		State:  data.State,
		NodeID: data.CurrentNode,
	}

	if err := sc.store.Save(ctx, cp); err != nil {
		return errors.Wrapf(err, "save checkpoint for graph %s session %s", key.GraphID, key.SessionID)
	}
	return nil
}

func (sc *StateCheckpointer[T]) Load(ctx context.Context, config graph.Config) (*graph.DataPoint[T], error) {
	key := Key{
		GraphID:   config.GraphID,
		SessionID: config.ThreadID,
	}

	cp, err := sc.store.Load(ctx, key)
	if err != nil {
		return nil, errors.Wrapf(err, "load checkpoint for graph %s session %s", key.GraphID, key.SessionID)
	}

	return &graph.DataPoint[T]{
		State:       cp.State,
		CurrentNode: cp.NodeID,
		Status:      cp.Meta.Status,
		Steps:       cp.Meta.Steps,
		NodeQueue:   cp.Meta.NodeQueue,
	}, nil
}
