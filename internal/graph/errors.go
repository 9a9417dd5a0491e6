package graph

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyCompiled is returned when attempting to modify a compiled graph
	ErrAlreadyCompiled = errors.New("graph is already compiled and cannot be modified")

	// ErrInvalidNode is returned when a node fails validation
	ErrInvalidNode = errors.New("invalid node")

	// ErrReservedName is returned when a node uses a reserved name
	ErrReservedName = errors.New("node name is reserved")

	// ErrDuplicateNode is returned when adding a node that already exists
	ErrDuplicateNode = errors.New("node with this name already exists")

	// ErrDuplicateEdge is returned when a node already has an out-edge
	ErrDuplicateEdge = errors.New("node already has an out-edge")

	// ErrDuplicateRouter is returned when a node already has a router
	ErrDuplicateRouter = errors.New("node already has a router")

	// ErrConflictingRouter is returned when mixing an edge and a router on one node
	ErrConflictingRouter = errors.New("node cannot carry both an edge and a router")

	// ErrEmptyRoutes is returned for a router with no declared outcomes
	ErrEmptyRoutes = errors.New("router declares no outcomes")

	// ErrNodeNotFound is returned when referencing a non-existent node
	ErrNodeNotFound = errors.New("node not found")

	// ErrUnreachableNode is returned when a node cannot be reached from the entry point
	ErrUnreachableNode = errors.New("node is unreachable from entry point")

	// ErrNoEntryPoint is returned when validating a graph with no entry point
	ErrNoEntryPoint = errors.New("graph must have an entry point")

	// ErrNoEndPoint is returned when validating a graph with no end point
	ErrNoEndPoint = errors.New("graph must have at least one path to END")

	// ErrInvalidCondition is returned when a router decision function is invalid
	ErrInvalidCondition = errors.New("invalid router decision")

	// ErrNoTransition is returned when a node has no way to hand off control
	ErrNoTransition = errors.New("node has no outgoing transition")

	// ErrUndeclaredOutcome is returned when a router decision falls outside its route table
	ErrUndeclaredOutcome = errors.New("router returned an undeclared outcome")

	// ErrMaxStepsReached is returned when an invocation exceeds its step budget
	ErrMaxStepsReached = errors.New("max steps reached")

	// ErrNoCheckpointer is returned when a stateful operation runs without persistence
	ErrNoCheckpointer = errors.New("no checkpointer configured")
)

// ValidationError represents an error that occurs during graph validation
type ValidationError struct {
	// Op is the operation that failed
	Op string
	// Node is the name of the node involved (if any)
	Node string
	// Err is the underlying error
	Err error
}

func (e *ValidationError) Error() string {
	if e.Node != "" {
		return fmt.Sprintf("validation failed: %s: node '%s': %v", e.Op, e.Node, e.Err)
	}
	return fmt.Sprintf("validation failed: %s: %v", e.Op, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a new ValidationError
func NewValidationError(op string, node string, err error) error {
	return &ValidationError{
		Op:   op,
		Node: node,
		Err:  err,
	}
}

// ExecutionError represents an error during the graph execution
type ExecutionError struct {
	// Phase is the execution phase where the error occurred
	Phase string
	// Node is the name of the node being executed
	Node string
	// Err is the underlying error
	Err error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution error: %s: node '%s': %v", e.Phase, e.Node, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// NewExecutionError creates a new ExecutionError
func NewExecutionError(phase string, node string, err error) error {
	return &ExecutionError{
		Phase: phase,
		Node:  node,
		Err:   err,
	}
}
