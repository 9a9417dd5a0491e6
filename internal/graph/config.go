package graph

import (
	"context"
	"time"
)

const (
	defaultMaxSteps = 50
	defaultTimeout  = 60 * time.Second
)

// Status reports where a checkpointed execution stands.
type Status string

const (
	StatusReady     Status = "ready"
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

// Config represents runtime configuration for a single graph execution
type Config struct {
	GraphID  string        // Unique identifier for the graph
	ThreadID string        // Unique identifier for this execution thread
	MaxSteps int           // Maximum number of node executions per invocation
	Timeout  time.Duration // Wall-clock limit per invocation
	Debug    bool          // Enable execution tracing
}

// DataPoint is the persisted execution position of one thread.
type DataPoint[T State[T]] struct {
	State       T
	Status      Status
	CurrentNode string
	Steps       int
	NodeQueue   []string
}

// Checkpointer handles execution state persistence
type Checkpointer[T State[T]] interface {
	// Save persists the current execution position
	Save(ctx context.Context, config Config, data *DataPoint[T]) error
	// Load retrieves a previously saved position
	Load(ctx context.Context, config Config) (*DataPoint[T], error)
}

// CompileOption configures a compiled graph.
type CompileOption[T State[T]] func(*CompiledGraph[T])

// WithCheckpointer sets the checkpointer for state persistence
func WithCheckpointer[T State[T]](cp Checkpointer[T]) CompileOption[T] {
	return func(cg *CompiledGraph[T]) {
		cg.checkpointer = cp
	}
}

// WithInterruptBefore halts execution before each named node, leaving the
// checkpoint queue positioned at that node.
func WithInterruptBefore[T State[T]](nodes ...string) CompileOption[T] {
	return func(cg *CompiledGraph[T]) {
		for _, n := range nodes {
			cg.interruptBefore[n] = true
		}
	}
}

// WithMaxSteps sets the maximum number of node executions per invocation
func WithMaxSteps[T State[T]](steps int) CompileOption[T] {
	return func(cg *CompiledGraph[T]) {
		cg.maxSteps = steps
	}
}

// WithTimeout sets the wall-clock limit per invocation
func WithTimeout[T State[T]](timeout time.Duration) CompileOption[T] {
	return func(cg *CompiledGraph[T]) {
		cg.timeout = timeout
	}
}

// WithDebug enables execution tracing
func WithDebug[T State[T]]() CompileOption[T] {
	return func(cg *CompiledGraph[T]) {
		cg.debug = true
	}
}

type execConfig[T State[T]] struct {
	Config
	update func(T) T
}

// ExecOption configures a single Run invocation.
type ExecOption[T State[T]] func(*execConfig[T])

// WithThreadID sets the unique thread identifier
func WithThreadID[T State[T]](id string) ExecOption[T] {
	return func(c *execConfig[T]) {
		c.ThreadID = id
	}
}

// WithStateUpdate applies fn to the loaded state before the first node runs.
// The update is persisted only with the next successful checkpoint, so a
// failed invocation can be retried without compounding it.
func WithStateUpdate[T State[T]](fn func(T) T) ExecOption[T] {
	return func(c *execConfig[T]) {
		c.update = fn
	}
}
