package interview

import (
	"time"

	"github.com/pkg/errors"

	"github.com/gleehq/interviewd/internal/graph"
	"github.com/gleehq/interviewd/internal/llm"
	"github.com/gleehq/interviewd/internal/state"
)

// Minimum distinct questions per content stage. The same numbers appear in
// the router instructions for the classifier and as the structural turn
// floor the router enforces over it.
const (
	minTechnicalQuestions     = 5
	minTechnicalCodingRounds  = 1
	minProjectQuestions       = 3
	minHRQuestions            = 5
	minQuestionCodingProblems = 2
	minCaseQuestions          = 1
)

type builder struct {
	g   *graph.Graph[state.Interview]
	err error
}

func newBuilder(name string) *builder {
	return &builder{g: graph.NewGraph[state.Interview](name, graph.WithGraphID[state.Interview]("interview-"+name))}
}

func (b *builder) node(name string, fn nodeFunc) *builder {
	if b.err == nil {
		b.err = b.g.AddNode(name, fn)
	}
	return b
}

func (b *builder) edge(from, to string) *builder {
	if b.err == nil {
		b.err = b.g.AddEdge(from, to)
	}
	return b
}

func (b *builder) router(from string, r graph.Router[state.Interview]) *builder {
	if b.err == nil {
		b.err = b.g.AddRouter(from, r)
	}
	return b
}

func (b *builder) entry(name string) *builder {
	if b.err == nil {
		b.err = b.g.SetEntryPoint(name)
	}
	return b
}

func (b *builder) build() (*graph.Graph[state.Interview], error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.g, nil
}

func buildTechnical(gen llm.Generator, cls llm.Classifier) (*graph.Graph[state.Interview], error) {
	return newBuilder("technical").
		node(StageGreeting, greetingNode(gen)).
		node(nodeGreetingAfter, passThroughNode()).
		node(nodeTechnicalPrep, prepNode(gen, technicalResearch, func(s state.Interview, out string) state.Interview {
			s = s.Clone()
			s.Technical.TechnicalResearch = out
			return s
		})).
		node(StageTechnical, contentNode(gen, StageTechnical, technicalStagePrompt)).
		node(nodeTechnicalAfter, passThroughNode()).
		node(nodeCodingPrep, prepNode(gen, codingResearch, func(s state.Interview, out string) state.Interview {
			s = s.Clone()
			s.Technical.CodingResearch = out
			return s
		})).
		node(StageCoding, contentNode(gen, StageCoding, codingStagePrompt)).
		node(nodeCodingAfter, passThroughNode()).
		node(nodeProjectPrep, passThroughNode()).
		node(StageProject, contentNode(gen, StageProject, projectStagePrompt)).
		node(nodeProjectAfter, passThroughNode()).
		node(nodeEnd, endNode()).
		node(StageOffensive, offensiveNode(gen)).
		entry(StageGreeting).
		edge(StageGreeting, nodeGreetingAfter).
		edge(nodeTechnicalPrep, StageTechnical).
		edge(StageTechnical, nodeTechnicalAfter).
		edge(nodeCodingPrep, StageCoding).
		edge(StageCoding, nodeCodingAfter).
		edge(nodeProjectPrep, StageProject).
		edge(StageProject, nodeProjectAfter).
		edge(nodeEnd, graph.END).
		edge(StageOffensive, graph.END).
		router(nodeGreetingAfter, progressRouter(cls, greetingRouteInstruction, map[graph.Outcome]string{
			"Greeting":         StageGreeting,
			"Technical_before": nodeTechnicalPrep,
			OutcomeOffensive:   StageOffensive,
		}, nil)).
		router(nodeTechnicalAfter, progressRouter(cls, progressRouteInstruction(StageTechnical, minTechnicalQuestions), map[graph.Outcome]string{
			"Technical":      StageTechnical,
			"Coding_before":  nodeCodingPrep,
			OutcomeOffensive: StageOffensive,
		}, &turnFloor{stage: StageTechnical, min: minTechnicalQuestions, stay: "Technical"})).
		router(nodeCodingAfter, progressRouter(cls, progressRouteInstruction(StageCoding, minTechnicalCodingRounds), map[graph.Outcome]string{
			"Coding":         StageCoding,
			"Project_before": nodeProjectPrep,
			OutcomeOffensive: StageOffensive,
		}, &turnFloor{stage: StageCoding, min: minTechnicalCodingRounds, stay: "Coding"})).
		router(nodeProjectAfter, progressRouter(cls, progressRouteInstruction(StageProject, minProjectQuestions), map[graph.Outcome]string{
			"Project":        StageProject,
			"End":            nodeEnd,
			OutcomeOffensive: StageOffensive,
		}, &turnFloor{stage: StageProject, min: minProjectQuestions, stay: "Project"})).
		build()
}

func buildHR(gen llm.Generator, cls llm.Classifier) (*graph.Graph[state.Interview], error) {
	return newBuilder("hr").
		node(StageGreeting, greetingNode(gen)).
		node(nodeGreetingAfter, passThroughNode()).
		node(nodeHRPrep, passThroughNode()).
		node(StageHR, contentNode(gen, StageHR, hrStagePrompt)).
		node(nodeHRAfter, passThroughNode()).
		node(nodeEnd, endNode()).
		node(StageOffensive, offensiveNode(gen)).
		entry(StageGreeting).
		edge(StageGreeting, nodeGreetingAfter).
		edge(nodeHRPrep, StageHR).
		edge(StageHR, nodeHRAfter).
		edge(nodeEnd, graph.END).
		edge(StageOffensive, graph.END).
		router(nodeGreetingAfter, progressRouter(cls, greetingRouteInstruction, map[graph.Outcome]string{
			"Greeting":       StageGreeting,
			"HR_before":      nodeHRPrep,
			OutcomeOffensive: StageOffensive,
		}, nil)).
		router(nodeHRAfter, progressRouter(cls, progressRouteInstruction(StageHR, minHRQuestions), map[graph.Outcome]string{
			"HR":             StageHR,
			"End":            nodeEnd,
			OutcomeOffensive: StageOffensive,
		}, &turnFloor{stage: StageHR, min: minHRQuestions, stay: "HR"})).
		build()
}

// buildQuestionDrill covers the Company and Subject variants: a one-shot
// research curation entry, then a greeting and a coding drill over the
// curated questions.
func buildQuestionDrill(name string, gen llm.Generator, cls llm.Classifier) (*graph.Graph[state.Interview], error) {
	return newBuilder(name).
		node(nodeResearch, prepNode(gen, researchSummary, func(s state.Interview, out string) state.Interview {
			s = s.Clone()
			s.Question.Research = out
			return s
		})).
		node(StageGreeting, greetingNode(gen)).
		node(nodeGreetingAfter, passThroughNode()).
		node(nodeCodingPrep, passThroughNode()).
		node(StageCoding, contentNode(gen, StageCoding, questionCodingStagePrompt)).
		node(nodeCodingAfter, passThroughNode()).
		node(nodeEnd, endNode()).
		node(StageOffensive, offensiveNode(gen)).
		entry(nodeResearch).
		edge(nodeResearch, StageGreeting).
		edge(StageGreeting, nodeGreetingAfter).
		edge(nodeCodingPrep, StageCoding).
		edge(StageCoding, nodeCodingAfter).
		edge(nodeEnd, graph.END).
		edge(StageOffensive, graph.END).
		router(nodeGreetingAfter, progressRouter(cls, greetingRouteInstruction, map[graph.Outcome]string{
			"Greeting":       StageGreeting,
			"Coding_before":  nodeCodingPrep,
			OutcomeOffensive: StageOffensive,
		}, nil)).
		router(nodeCodingAfter, progressRouter(cls, progressRouteInstruction(StageCoding, minQuestionCodingProblems), map[graph.Outcome]string{
			"Coding":         StageCoding,
			"End":            nodeEnd,
			OutcomeOffensive: StageOffensive,
		}, &turnFloor{stage: StageCoding, min: minQuestionCodingProblems, stay: "Coding"})).
		build()
}

func buildCaseStudy(gen llm.Generator, cls llm.Classifier) (*graph.Graph[state.Interview], error) {
	return newBuilder("case-study").
		node(StageGreeting, greetingNode(gen)).
		node(nodeGreetingAfter, passThroughNode()).
		node(nodeCasePrep, passThroughNode()).
		node(StageCaseStudy, contentNode(gen, StageCaseStudy, caseStagePrompt)).
		node(nodeCaseAfter, passThroughNode()).
		node(nodeEnd, endNode()).
		node(StageOffensive, offensiveNode(gen)).
		entry(StageGreeting).
		edge(StageGreeting, nodeGreetingAfter).
		edge(nodeCasePrep, StageCaseStudy).
		edge(StageCaseStudy, nodeCaseAfter).
		edge(nodeEnd, graph.END).
		edge(StageOffensive, graph.END).
		router(nodeGreetingAfter, progressRouter(cls, greetingRouteInstruction, map[graph.Outcome]string{
			"Greeting":         StageGreeting,
			"CaseStudy_before": nodeCasePrep,
			OutcomeOffensive:   StageOffensive,
		}, nil)).
		router(nodeCaseAfter, progressRouter(cls, progressRouteInstruction(StageCaseStudy, minCaseQuestions), map[graph.Outcome]string{
			"CaseStudy":      StageCaseStudy,
			"End":            nodeEnd,
			OutcomeOffensive: StageOffensive,
		}, &turnFloor{stage: StageCaseStudy, min: minCaseQuestions, stay: "CaseStudy"})).
		build()
}

var interruptNodes = []string{
	nodeGreetingAfter,
	nodeTechnicalAfter,
	nodeCodingAfter,
	nodeProjectAfter,
	nodeHRAfter,
	nodeCaseAfter,
}

// Registry holds one compiled workflow per interview variant, all sharing a
// checkpointer so sessions are addressable by {graph, session} key.
type Registry struct {
	graphs map[state.Variant]*graph.CompiledGraph[state.Interview]
}

type RegistryOption func(*registryConfig)

type registryConfig struct {
	checkpointer graph.Checkpointer[state.Interview]
	maxSteps     int
	timeout      time.Duration
}

func WithRegistryCheckpointer(cp graph.Checkpointer[state.Interview]) RegistryOption {
	return func(c *registryConfig) { c.checkpointer = cp }
}

func WithRegistryMaxSteps(n int) RegistryOption {
	return func(c *registryConfig) { c.maxSteps = n }
}

func WithRegistryTimeout(d time.Duration) RegistryOption {
	return func(c *registryConfig) { c.timeout = d }
}

func NewRegistry(gen llm.Generator, cls llm.Classifier, opt ...RegistryOption) (*Registry, error) {
	cfg := registryConfig{maxSteps: 30, timeout: 90 * time.Second}
	for _, o := range opt {
		o(&cfg)
	}

	builders := map[state.Variant]func() (*graph.Graph[state.Interview], error){
		state.VariantTechnical: func() (*graph.Graph[state.Interview], error) { return buildTechnical(gen, cls) },
		state.VariantHR:        func() (*graph.Graph[state.Interview], error) { return buildHR(gen, cls) },
		state.VariantCompany: func() (*graph.Graph[state.Interview], error) {
			return buildQuestionDrill("company", gen, cls)
		},
		state.VariantSubject: func() (*graph.Graph[state.Interview], error) {
			return buildQuestionDrill("subject", gen, cls)
		},
		state.VariantCaseStudy: func() (*graph.Graph[state.Interview], error) { return buildCaseStudy(gen, cls) },
	}

	r := &Registry{graphs: make(map[state.Variant]*graph.CompiledGraph[state.Interview], len(builders))}
	for variant, build := range builders {
		g, err := build()
		if err != nil {
			return nil, errors.Wrapf(err, "build %s workflow", variant)
		}
		interrupts := make([]string, 0, len(interruptNodes))
		for _, n := range interruptNodes {
			if g.HasNode(n) {
				interrupts = append(interrupts, n)
			}
		}
		compiled, err := g.Compile(
			graph.WithCheckpointer[state.Interview](cfg.checkpointer),
			graph.WithInterruptBefore[state.Interview](interrupts...),
			graph.WithMaxSteps[state.Interview](cfg.maxSteps),
			graph.WithTimeout[state.Interview](cfg.timeout),
		)
		if err != nil {
			return nil, errors.Wrapf(err, "compile %s workflow", variant)
		}
		r.graphs[variant] = compiled
	}
	return r, nil
}

// Graph returns the compiled workflow for a variant.
func (r *Registry) Graph(variant state.Variant) (*graph.CompiledGraph[state.Interview], error) {
	cg, ok := r.graphs[variant]
	if !ok {
		return nil, errors.Wrapf(state.ErrUnknownVariant, "%q", variant)
	}
	return cg, nil
}
