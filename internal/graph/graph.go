// Package graph implements the workflow graph engine: directed stage graphs
// with unconditional edges and routers over closed outcome sets, compiled
// into a checkpointed executor that can halt before declared interrupt nodes
// and resume from the persisted node queue.
package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Constants for special nodes
const (
	START            = "START"
	END              = "END"
	defaultGraphName = "graph"
)

// State is the contract graph state types must satisfy.
type State[T any] interface {
	Validate() error
	Clone() T
}

// NodeFunc executes a single node and returns the updated state.
type NodeFunc[T State[T]] func(context.Context, T, Config) (T, error)

// Outcome is a routing decision label. The set of outcomes a router may
// return is declared up front and validated at construction.
type Outcome string

// Router decides the next node after its source node ran. Decide must return
// one of the declared outcomes; Routes maps each outcome to a node name or END.
type Router[T State[T]] struct {
	Decide func(context.Context, T, Config) (Outcome, error)
	Routes map[Outcome]string
}

// NodeSpec represents a node's specification
type NodeSpec[T State[T]] struct {
	Name     string
	Function NodeFunc[T]
}

// Graph represents the base graph structure
type Graph[T State[T]] struct {
	graphID string
	nodes   map[string]NodeSpec[T]
	edges   map[string]string
	routers map[string]Router[T]

	entryPoint string
	compiled   bool
}

type Option[T State[T]] func(*Graph[T])

// WithGraphID overrides the generated graph ID. Deterministic IDs keep
// checkpoints addressable across process restarts.
func WithGraphID[T State[T]](id string) Option[T] {
	return func(g *Graph[T]) {
		g.graphID = id
	}
}

// NewGraph creates a new graph instance
func NewGraph[T State[T]](name string, opt ...Option[T]) *Graph[T] {
	graphName := defaultGraphName
	if name != "" {
		graphName = strings.ReplaceAll(name, " ", "-")
	}

	g := Graph[T]{
		graphID: fmt.Sprintf("%s-%s", graphName, uuid.New().String()),
		nodes:   make(map[string]NodeSpec[T]),
		edges:   make(map[string]string),
		routers: make(map[string]Router[T]),
	}
	for _, o := range opt {
		o(&g)
	}
	return &g
}

func (g *Graph[T]) ID() string { return g.graphID }

// HasNode reports whether a node with the given name exists.
func (g *Graph[T]) HasNode(name string) bool {
	_, ok := g.nodes[name]
	return ok
}

// AddNode adds a new node to the graph
func (g *Graph[T]) AddNode(name string, fn NodeFunc[T]) error {
	if g.compiled {
		return ErrAlreadyCompiled
	}
	if name == START || name == END {
		return NewValidationError("AddNode", name, ErrReservedName)
	}
	if _, exists := g.nodes[name]; exists {
		return NewValidationError("AddNode", name, ErrDuplicateNode)
	}
	if fn == nil {
		return NewValidationError("AddNode", name, ErrInvalidNode)
	}

	g.nodes[name] = NodeSpec[T]{Name: name, Function: fn}
	return nil
}

// AddEdge adds the unconditional out-edge of a node. A node carries either
// one edge or one router, never both.
func (g *Graph[T]) AddEdge(from, to string) error {
	if g.compiled {
		return ErrAlreadyCompiled
	}
	if err := g.validateSource(from); err != nil {
		return NewValidationError("AddEdge", from, err)
	}
	if err := g.validateTarget(to); err != nil {
		return NewValidationError("AddEdge", to, err)
	}
	if _, exists := g.edges[from]; exists {
		return NewValidationError("AddEdge", from, ErrDuplicateEdge)
	}
	if _, exists := g.routers[from]; exists {
		return NewValidationError("AddEdge", from, ErrConflictingRouter)
	}

	g.edges[from] = to
	return nil
}

// AddRouter attaches a router to a node. Every declared outcome must map to
// an existing node or END; an empty route table or nil decision is rejected.
func (g *Graph[T]) AddRouter(from string, router Router[T]) error {
	if g.compiled {
		return ErrAlreadyCompiled
	}
	if err := g.validateSource(from); err != nil {
		return NewValidationError("AddRouter", from, err)
	}
	if _, exists := g.routers[from]; exists {
		return NewValidationError("AddRouter", from, ErrDuplicateRouter)
	}
	if _, exists := g.edges[from]; exists {
		return NewValidationError("AddRouter", from, ErrConflictingRouter)
	}
	if router.Decide == nil {
		return NewValidationError("AddRouter", from, ErrInvalidCondition)
	}
	if len(router.Routes) == 0 {
		return NewValidationError("AddRouter", from, ErrEmptyRoutes)
	}
	for outcome, target := range router.Routes {
		if err := g.validateTarget(target); err != nil {
			return NewValidationError("AddRouter", string(outcome), err)
		}
	}

	g.routers[from] = router
	return nil
}

func (g *Graph[T]) validateSource(from string) error {
	if from == END {
		return errors.New("cannot add edge from END node")
	}
	if _, exists := g.nodes[from]; !exists {
		return ErrNodeNotFound
	}
	return nil
}

func (g *Graph[T]) validateTarget(to string) error {
	if to == START {
		return errors.New("cannot add edge to START node")
	}
	if to == END {
		return nil
	}
	if _, exists := g.nodes[to]; !exists {
		return ErrNodeNotFound
	}
	return nil
}

// SetEntryPoint sets the entry point of the graph
func (g *Graph[T]) SetEntryPoint(name string) error {
	if g.compiled {
		return ErrAlreadyCompiled
	}
	if name == END {
		return errors.New("cannot set END as entry point")
	}
	if _, exists := g.nodes[name]; !exists {
		return NewValidationError("SetEntryPoint", name, ErrNodeNotFound)
	}

	g.entryPoint = name
	return nil
}

func (g *Graph[T]) Validate() error {
	if g.entryPoint == "" {
		return ErrNoEntryPoint
	}

	reachable := make(map[string]bool)
	g.dfs(g.entryPoint, reachable)

	for node := range g.nodes {
		if !reachable[node] {
			return NewValidationError("Validate", node, ErrUnreachableNode)
		}
	}
	if !reachable[END] {
		return ErrNoEndPoint
	}

	// Every node must be able to hand off control.
	for node := range g.nodes {
		_, hasEdge := g.edges[node]
		_, hasRouter := g.routers[node]
		if !hasEdge && !hasRouter {
			return NewValidationError("Validate", node, ErrNoTransition)
		}
	}
	return nil
}

func (g *Graph[T]) dfs(node string, visited map[string]bool) {
	if visited[node] || node == END {
		visited[node] = true
		return
	}
	visited[node] = true

	if to, ok := g.edges[node]; ok {
		g.dfs(to, visited)
	}
	if router, ok := g.routers[node]; ok {
		for _, target := range router.Routes {
			g.dfs(target, visited)
		}
	}
}

// Compile validates the graph, freezes it and binds runtime configuration.
func (g *Graph[T]) Compile(opt ...CompileOption[T]) (*CompiledGraph[T], error) {
	if err := g.Validate(); err != nil {
		return nil, errors.Wrap(err, "compile")
	}

	cg := &CompiledGraph[T]{
		graph:           g,
		maxSteps:        defaultMaxSteps,
		timeout:         defaultTimeout,
		interruptBefore: make(map[string]bool),
	}
	for _, o := range opt {
		o(cg)
	}
	for node := range cg.interruptBefore {
		if _, exists := g.nodes[node]; !exists {
			return nil, NewValidationError("Compile", node, ErrNodeNotFound)
		}
	}

	// freeze only once everything validated, so a failed compile can be fixed
	g.compiled = true
	return cg, nil
}
