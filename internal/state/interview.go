// Package state defines the interview state record carried through the
// workflow graph. The record is closed: a variant tag selects which optional
// field group applies, and the message list and flattened transcript are
// kept in lock-step through the append helpers.
package state

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/tmc/langchaingo/llms"
)

type Variant string

const (
	VariantTechnical Variant = "technical"
	VariantHR        Variant = "hr"
	VariantCompany   Variant = "company"
	VariantSubject   Variant = "subject"
	VariantCaseStudy Variant = "case_study"
)

var ErrUnknownVariant = errors.New("unknown interview variant")

// Transcript line prefixes. The flattened history is the transcript of
// record consumed by routers, classifiers and feedback scoring.
const (
	interviewerPrefix = "\nInterviewer-"
	intervieweePrefix = "\nInterviewee-"
)

// TechnicalProfile carries curated question research for technical interviews.
type TechnicalProfile struct {
	TechnicalResearch string `json:"technical_research"`
	CodingResearch    string `json:"coding_research"`
}

// QuestionSpec parameterizes company and subject drill interviews.
type QuestionSpec struct {
	Company    string   `json:"company,omitempty"`
	Subject    string   `json:"subject,omitempty"`
	Research   string   `json:"research"`
	Difficulty string   `json:"difficulty"`
	Tags       []string `json:"tags,omitempty"`
}

// CaseStudySpec carries the case prompt and its reference solution.
type CaseStudySpec struct {
	Question  string `json:"question"`
	Reference string `json:"reference"`
	Completed bool   `json:"completed"`
}

// Interview is the graph state for one interview session.
type Interview struct {
	Variant     Variant               `json:"variant"`
	Resume      string                `json:"resume,omitempty"`
	Messages    []llms.MessageContent `json:"messages"`
	History     string                `json:"history"`
	LastStage   string                `json:"last_stage"`
	LastMessage string                `json:"last_message"`
	StageTurns  map[string]int        `json:"stage_turns,omitempty"`

	Technical *TechnicalProfile `json:"technical,omitempty"`
	Question  *QuestionSpec     `json:"question,omitempty"`
	Case      *CaseStudySpec    `json:"case,omitempty"`
}

func (s Interview) Validate() error {
	switch s.Variant {
	case VariantTechnical:
		if s.Technical == nil {
			return errors.New("technical interview requires a technical profile")
		}
	case VariantCompany, VariantSubject:
		if s.Question == nil {
			return errors.New("question interview requires a question spec")
		}
	case VariantCaseStudy:
		if s.Case == nil {
			return errors.New("case study interview requires a case spec")
		}
	case VariantHR:
	default:
		return errors.Wrapf(ErrUnknownVariant, "%q", s.Variant)
	}
	return nil
}

func (s Interview) Clone() Interview {
	out := s
	out.Messages = append([]llms.MessageContent{}, s.Messages...)
	if s.StageTurns != nil {
		out.StageTurns = make(map[string]int, len(s.StageTurns))
		for k, v := range s.StageTurns {
			out.StageTurns[k] = v
		}
	}
	if s.Technical != nil {
		t := *s.Technical
		out.Technical = &t
	}
	if s.Question != nil {
		q := *s.Question
		q.Tags = append([]string{}, s.Question.Tags...)
		out.Question = &q
	}
	if s.Case != nil {
		c := *s.Case
		out.Case = &c
	}
	return out
}

// AppendInterviewer records an AI turn in both the message list and the
// transcript, and remembers it as the latest deliverable message.
func (s Interview) AppendInterviewer(text string) Interview {
	out := s.Clone()
	out.Messages = append(out.Messages, llms.TextParts(llms.ChatMessageTypeAI, text))
	out.History += interviewerPrefix + text
	out.LastMessage = text
	return out
}

// AppendInterviewee records a candidate turn in both the message list and
// the transcript.
func (s Interview) AppendInterviewee(text string) Interview {
	out := s.Clone()
	out.Messages = append(out.Messages, llms.TextParts(llms.ChatMessageTypeHuman, text))
	out.History += intervieweePrefix + text
	return out
}

// SetSystemPrompt installs the stage instruction payload as the leading
// system message, overwriting a previous stage's instructions.
func (s Interview) SetSystemPrompt(text string) Interview {
	out := s.Clone()
	msg := llms.TextParts(llms.ChatMessageTypeSystem, text)
	if len(out.Messages) == 0 {
		out.Messages = []llms.MessageContent{msg}
		return out
	}
	out.Messages[0] = msg
	return out
}

// EnterStage marks the stage as current and counts the entry. Returns the
// updated state and whether this was the first entry into the stage.
func (s Interview) EnterStage(stage string) (Interview, bool) {
	out := s.Clone()
	if out.StageTurns == nil {
		out.StageTurns = make(map[string]int)
	}
	first := out.StageTurns[stage] == 0
	out.StageTurns[stage]++
	out.LastStage = stage
	return out, first
}

// Turns reports how many times a stage has produced an interviewer turn.
func (s Interview) Turns(stage string) int {
	return s.StageTurns[stage]
}

func (s Interview) Dump() ([]byte, error) {
	return json.Marshal(s)
}

func Load(data []byte) (Interview, error) {
	var st Interview
	if err := json.Unmarshal(data, &st); err != nil {
		return Interview{}, errors.Wrap(err, "decode interview state")
	}
	return st, nil
}
