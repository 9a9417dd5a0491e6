// Package llm wraps the content-generation collaborators behind two narrow
// interfaces: free-form generation over a message list, and routing
// classification that must land on one of a closed set of labels.
package llm

import (
	"context"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/gleehq/interviewd/internal/fault"
)

// Generator produces the next interviewer message from the conversation.
type Generator interface {
	Generate(ctx context.Context, msgs []llms.MessageContent) (string, error)
}

// Classifier picks exactly one of the declared labels for a transcript.
type Classifier interface {
	Classify(ctx context.Context, instruction, history string, labels []string) (string, error)
}

// Client adapts a langchaingo model to both interfaces.
type Client struct {
	model       llms.Model
	temperature float64
}

func NewClient(model llms.Model, temperature float64) *Client {
	return &Client{model: model, temperature: temperature}
}

func (c *Client) Generate(ctx context.Context, msgs []llms.MessageContent) (string, error) {
	resp, err := c.model.GenerateContent(ctx, msgs, llms.WithTemperature(c.temperature))
	if err != nil {
		return "", fault.Wrap(fault.KindUpstream, err, "generate content")
	}
	if len(resp.Choices) == 0 {
		return "", fault.New(fault.KindUpstream, "model returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Content), nil
}

func (c *Client) Classify(ctx context.Context, instruction, history string, labels []string) (string, error) {
	msgs := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, instruction+
			"\n\nAnswer with exactly one of: "+strings.Join(labels, ", ")+
			". Output the label and nothing else."),
		llms.TextParts(llms.ChatMessageTypeHuman, history),
	}

	resp, err := c.model.GenerateContent(ctx, msgs, llms.WithTemperature(0))
	if err != nil {
		return "", fault.Wrap(fault.KindUpstream, err, "classify")
	}
	if len(resp.Choices) == 0 {
		return "", fault.New(fault.KindUpstream, "model returned no choices")
	}

	return MatchLabel(resp.Choices[0].Content, labels)
}

// MatchLabel normalizes a model reply onto one of the declared labels.
// Exact match is preferred; otherwise a single unambiguous substring hit
// wins. Anything else is an upstream fault, never a free-form label.
func MatchLabel(reply string, labels []string) (string, error) {
	answer := strings.TrimSpace(reply)
	for _, l := range labels {
		if strings.EqualFold(answer, l) {
			return l, nil
		}
	}

	lower := strings.ToLower(answer)
	var hits []string
	for _, l := range labels {
		if strings.Contains(lower, strings.ToLower(l)) {
			hits = append(hits, l)
		}
	}

	// A label that is a substring of another hit (Technical inside
	// Technical_before) is shadowed by the longer one.
	var distinct []string
	for _, h := range hits {
		shadowed := false
		for _, other := range hits {
			if h != other && strings.Contains(strings.ToLower(other), strings.ToLower(h)) {
				shadowed = true
				break
			}
		}
		if !shadowed {
			distinct = append(distinct, h)
		}
	}

	switch len(distinct) {
	case 0:
		return "", fault.Newf(fault.KindUpstream, "unrecognized label %q", answer)
	case 1:
		return distinct[0], nil
	default:
		return "", fault.Newf(fault.KindUpstream, "ambiguous label %q", answer)
	}
}
