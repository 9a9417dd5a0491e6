package llm

import (
	"context"
	"sync"

	"github.com/tmc/langchaingo/llms"

	"github.com/gleehq/interviewd/internal/fault"
)

// Fake is a scripted Generator/Classifier for tests and offline runs.
// Generate pops replies in order; Classify delegates to DecideFn when set
// and otherwise returns the first declared label.
type Fake struct {
	mu       sync.Mutex
	replies  []string
	fallback string

	DecideFn func(instruction, history string, labels []string) string
	Err      error

	GenerateCalls int
	ClassifyCalls int
}

func NewFake(replies ...string) *Fake {
	return &Fake{replies: replies, fallback: "Understood."}
}

func (f *Fake) Script(replies ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, replies...)
}

func (f *Fake) Generate(_ context.Context, _ []llms.MessageContent) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.GenerateCalls++
	if f.Err != nil {
		return "", fault.Wrap(fault.KindUpstream, f.Err, "fake generate")
	}
	if len(f.replies) == 0 {
		return f.fallback, nil
	}
	reply := f.replies[0]
	f.replies = f.replies[1:]
	return reply, nil
}

func (f *Fake) Classify(_ context.Context, instruction, history string, labels []string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.ClassifyCalls++
	if f.Err != nil {
		return "", fault.Wrap(fault.KindUpstream, f.Err, "fake classify")
	}
	if f.DecideFn != nil {
		return f.DecideFn(instruction, history, labels), nil
	}
	return labels[0], nil
}
