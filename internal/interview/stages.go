// Package interview assembles the per-variant interview workflows on top of
// the graph engine: stage nodes that generate interviewer turns, routers
// that supervise stage progression over the transcript, and the executor
// that starts and resumes checkpointed sessions.
package interview

import (
	"context"
	"sort"

	"github.com/tmc/langchaingo/llms"

	"github.com/gleehq/interviewd/internal/graph"
	"github.com/gleehq/interviewd/internal/llm"
	"github.com/gleehq/interviewd/internal/state"
)

// Stage and node names. The *_after nodes are the interrupt points where a
// session waits for the candidate's reply.
const (
	StageGreeting  = "Greeting"
	StageTechnical = "Technical"
	StageCoding    = "Coding"
	StageProject   = "Project"
	StageHR        = "HR"
	StageCaseStudy = "CaseStudy"
	StageOffensive = "Offensive"
	StageFinished  = "finished"

	nodeGreetingAfter  = "Greeting_after"
	nodeTechnicalPrep  = "Technical_before"
	nodeTechnicalAfter = "Technical_after"
	nodeCodingPrep     = "Coding_before"
	nodeCodingAfter    = "Coding_after"
	nodeProjectPrep    = "Project_before"
	nodeProjectAfter   = "Project_after"
	nodeHRPrep         = "HR_before"
	nodeHRAfter        = "HR_after"
	nodeCasePrep       = "CaseStudy_before"
	nodeCaseAfter      = "CaseStudy_after"
	nodeResearch       = "Initial_Research"
	nodeEnd            = "End"
)

const startCue = "Start the interview now"

type nodeFunc = graph.NodeFunc[state.Interview]

// greetingNode seeds the system prompt and the opening cue on first entry,
// then generates the interviewer's message on every entry.
func greetingNode(gen llm.Generator) nodeFunc {
	return func(ctx context.Context, s state.Interview, _ graph.Config) (state.Interview, error) {
		s, first := s.EnterStage(StageGreeting)
		if first {
			s = s.SetSystemPrompt(greetingPromptFor(s))
			s.Messages = append(s.Messages, llms.TextParts(llms.ChatMessageTypeHuman, startCue))
		}

		reply, err := gen.Generate(ctx, s.Messages)
		if err != nil {
			return s, err
		}
		return s.AppendInterviewer(reply), nil
	}
}

// contentNode installs the stage instruction payload on first entry
// (overwriting the previous stage's system message) and generates an
// interviewer turn on every entry.
func contentNode(gen llm.Generator, stage string, prompt func(state.Interview) string) nodeFunc {
	return func(ctx context.Context, s state.Interview, _ graph.Config) (state.Interview, error) {
		s, first := s.EnterStage(stage)
		if first {
			s = s.SetSystemPrompt(prompt(s))
		}

		reply, err := gen.Generate(ctx, s.Messages)
		if err != nil {
			return s, err
		}
		return s.AppendInterviewer(reply), nil
	}
}

// prepNode runs a one-shot research curation outside the conversation and
// writes the result back through apply.
func prepNode(gen llm.Generator, prompt func(state.Interview) string, apply func(state.Interview, string) state.Interview) nodeFunc {
	return func(ctx context.Context, s state.Interview, _ graph.Config) (state.Interview, error) {
		out, err := gen.Generate(ctx, []llms.MessageContent{
			llms.TextParts(llms.ChatMessageTypeHuman, prompt(s)),
		})
		if err != nil {
			return s, err
		}
		return apply(s, out), nil
	}
}

func passThroughNode() nodeFunc {
	return func(_ context.Context, s state.Interview, _ graph.Config) (state.Interview, error) {
		return s, nil
	}
}

func endNode() nodeFunc {
	return func(_ context.Context, s state.Interview, _ graph.Config) (state.Interview, error) {
		s = s.Clone()
		s.LastStage = StageFinished
		// The previous interviewer turn was already delivered.
		s.LastMessage = ""
		return s, nil
	}
}

// offensiveNode generates the conduct-termination message and finishes the
// interview.
func offensiveNode(gen llm.Generator) nodeFunc {
	return func(ctx context.Context, s state.Interview, _ graph.Config) (state.Interview, error) {
		reply, err := gen.Generate(ctx, []llms.MessageContent{
			llms.TextParts(llms.ChatMessageTypeHuman, offensiveExit(s.History)),
		})
		if err != nil {
			return s, err
		}
		s = s.AppendInterviewer(reply)
		s.LastStage = StageFinished
		return s, nil
	}
}

// turnFloor is the structural guard behind the classifier: the router may
// not advance past a content stage before it produced min interviewer turns.
type turnFloor struct {
	stage string
	min   int
	stay  graph.Outcome
}

// progressRouter builds a router whose outcome set is exactly the keys of
// routes. The classifier picks a label over the transcript of record; an
// optional turn floor overrides premature advancement back to the stage.
func progressRouter(cls llm.Classifier, instruction string, routes map[graph.Outcome]string, floor *turnFloor) graph.Router[state.Interview] {
	labels := make([]string, 0, len(routes))
	for outcome := range routes {
		labels = append(labels, string(outcome))
	}
	sort.Strings(labels)

	return graph.Router[state.Interview]{
		Decide: func(ctx context.Context, s state.Interview, _ graph.Config) (graph.Outcome, error) {
			label, err := cls.Classify(ctx, instruction, s.History, labels)
			if err != nil {
				return "", err
			}
			outcome := graph.Outcome(label)
			if floor != nil && outcome != floor.stay && outcome != OutcomeOffensive && s.Turns(floor.stage) < floor.min {
				outcome = floor.stay
			}
			return outcome, nil
		},
		Routes: routes,
	}
}

// OutcomeOffensive is shared by every router: misconduct can surface at any
// point of any interview.
const OutcomeOffensive = graph.Outcome("Offensive")
