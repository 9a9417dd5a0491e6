// Package feedback produces post-interview evaluation reports and resume
// analyses. Generation is asynchronous and best-effort: a failed report
// never fails the interview that produced it.
package feedback

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/tmc/langchaingo/llms"

	"github.com/gleehq/interviewd/internal/fault"
	"github.com/gleehq/interviewd/internal/llm"
	"github.com/gleehq/interviewd/internal/session"
	"github.com/gleehq/interviewd/internal/state"
)

// TechnicalResult scores a technical interview. A zero score means the
// transcript carried too little signal to judge that skill.
type TechnicalResult struct {
	LanguageScore       int      `json:"language_score"`
	FrameworkScore      int      `json:"framework_score"`
	AlgorithmsScore     int      `json:"algorithms_score"`
	DataStructuresScore int      `json:"data_structures_score"`
	ApproachScore       int      `json:"approach_score"`
	OptimizationScore   int      `json:"optimization_score"`
	DebuggingScore      int      `json:"debugging_score"`
	SyntaxScore         int      `json:"syntax_score"`
	Strengths           []string `json:"strengths"`
	AreasOfImprovement  []string `json:"areas_of_improvements"`
}

type HRResult struct {
	ClarityScore       int      `json:"clarity_score"`
	ConfidenceScore    int      `json:"confidence_score"`
	StructureScore     int      `json:"structure_score"`
	EngagementScore    int      `json:"engagement_score"`
	ValuesScore        int      `json:"values_score"`
	TeamworkScore      int      `json:"teamwork_score"`
	GrowthScore        int      `json:"growth_score"`
	InitiativeScore    int      `json:"initiative_score"`
	Strengths          []string `json:"strengths"`
	AreasOfImprovement []string `json:"areas_of_improvements"`
}

type CaseStudyResult struct {
	ProblemUnderstandingScore int      `json:"problem_understanding_score"`
	HypothesisScore           int      `json:"hypothesis_score"`
	AnalysisScore             int      `json:"analysis_score"`
	SynthesisScore            int      `json:"synthesis_score"`
	BusinessJudgmentScore     int      `json:"business_judgment_score"`
	CreativityScore           int      `json:"creativity_score"`
	DecisionMakingScore       int      `json:"decision_making_score"`
	ImpactOrientationScore    int      `json:"impact_orientation_score"`
	Strengths                 []string `json:"strengths"`
	AreasOfImprovement        []string `json:"areas_of_improvements"`
}

// SoftSkills is computed from the proctoring telemetry, not from the model.
type SoftSkills struct {
	PresenceScore  float64 `json:"presence_score"`
	AvgEngagement  float64 `json:"avg_engagement"`
	AvgDistraction float64 `json:"avg_distraction"`
	Samples        int     `json:"samples"`
}

// Report is the stored evaluation for one finished interview. Exactly one
// of the result pointers is set, matching the variant.
type Report struct {
	SessionID   string           `json:"session_id"`
	UserID      string           `json:"user_id"`
	Variant     state.Variant    `json:"interview_type"`
	Technical   *TechnicalResult `json:"technical,omitempty"`
	HR          *HRResult        `json:"hr,omitempty"`
	CaseStudy   *CaseStudyResult `json:"case_study,omitempty"`
	SoftSkills  *SoftSkills      `json:"soft_skills,omitempty"`
	GeneratedAt time.Time        `json:"generated_at"`
}

// ResumeAnalysis scores a resume against a job description.
type ResumeAnalysis struct {
	Company            string   `json:"company"`
	Role               string   `json:"role"`
	JobMatchScore      int      `json:"job_match_score"`
	FormatScore        int      `json:"format_and_structure"`
	ContentScore       int      `json:"content_quality"`
	ConcisenessScore   int      `json:"length_and_conciseness"`
	KeywordsScore      int      `json:"keywords_optimization"`
	FoundKeywords      []string `json:"found_keywords"`
	MissingKeywords    []string `json:"not_found_keywords"`
	TopKeywords        []string `json:"top_3_keywords"`
	Strengths          []string `json:"candidate_strengths"`
	AreasOfImprovement []string `json:"candidate_areas_of_improvements"`
}

type reportEntry struct {
	report    Report
	expiresAt time.Time
}

type resumeEntry struct {
	analysis  ResumeAnalysis
	expiresAt time.Time
}

// Service generates and retains reports. Retention uses a TTL so abandoned
// reports age out with their sessions; zero keeps them forever.
type Service struct {
	gen llm.Generator
	ttl time.Duration

	mu      sync.Mutex
	reports map[string]reportEntry
	resumes map[string]resumeEntry
	now     func() time.Time
}

func NewService(gen llm.Generator, ttl time.Duration) *Service {
	return &Service{
		gen:     gen,
		ttl:     ttl,
		reports: make(map[string]reportEntry),
		resumes: make(map[string]resumeEntry),
		now:     time.Now,
	}
}

// GenerateInterview evaluates a finished interview transcript and stores the
// report under the session ID.
func (s *Service) GenerateInterview(ctx context.Context, sessionID, userID string, variant state.Variant, history string, metrics session.MetricsSummary) (Report, error) {
	if strings.TrimSpace(history) == "" {
		return Report{}, fault.New(fault.KindInvalidInput, "empty interview transcript")
	}

	report := Report{
		SessionID:   sessionID,
		UserID:      userID,
		Variant:     variant,
		GeneratedAt: s.now(),
	}
	if metrics.Samples > 0 {
		report.SoftSkills = &SoftSkills{
			PresenceScore:  100 * float64(metrics.FaceDetected) / float64(metrics.Samples),
			AvgEngagement:  metrics.AvgEngagement,
			AvgDistraction: metrics.AvgDistraction,
			Samples:        metrics.Samples,
		}
	}

	var err error
	switch variant {
	case state.VariantTechnical, state.VariantCompany, state.VariantSubject:
		report.Technical = &TechnicalResult{}
		err = s.evaluate(ctx, technicalFeedbackPrompt, history, report.Technical)
	case state.VariantHR:
		report.HR = &HRResult{}
		err = s.evaluate(ctx, hrFeedbackPrompt, history, report.HR)
	case state.VariantCaseStudy:
		report.CaseStudy = &CaseStudyResult{}
		err = s.evaluate(ctx, caseStudyFeedbackPrompt, history, report.CaseStudy)
	default:
		return Report{}, fault.Newf(fault.KindInvalidInput, "no feedback pipeline for variant %q", variant)
	}
	if err != nil {
		return Report{}, err
	}

	s.mu.Lock()
	s.sweepLocked()
	s.reports[sessionID] = reportEntry{report: report, expiresAt: s.expiry()}
	s.mu.Unlock()
	return report, nil
}

// Report returns the stored report for a session.
func (s *Service) Report(sessionID string) (Report, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.reports[sessionID]
	if !ok || s.expired(entry.expiresAt) {
		return Report{}, false
	}
	return entry.report, true
}

// AnalyzeResume scores a resume against a job description and stores the
// analysis under id.
func (s *Service) AnalyzeResume(ctx context.Context, id, resume, jobDescription string) (ResumeAnalysis, error) {
	if strings.TrimSpace(resume) == "" {
		return ResumeAnalysis{}, fault.New(fault.KindInvalidInput, "empty resume")
	}

	var analysis ResumeAnalysis
	input := "Resume:\n" + resume + "\n\nJob description:\n" + jobDescription
	if err := s.evaluate(ctx, resumeAnalysisPrompt, input, &analysis); err != nil {
		return ResumeAnalysis{}, err
	}

	s.mu.Lock()
	s.sweepLocked()
	s.resumes[id] = resumeEntry{analysis: analysis, expiresAt: s.expiry()}
	s.mu.Unlock()
	return analysis, nil
}

// Resume returns a stored resume analysis.
func (s *Service) Resume(id string) (ResumeAnalysis, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.resumes[id]
	if !ok || s.expired(entry.expiresAt) {
		return ResumeAnalysis{}, false
	}
	return entry.analysis, true
}

func (s *Service) evaluate(ctx context.Context, prompt, input string, out any) error {
	reply, err := s.gen.Generate(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, prompt),
		llms.TextParts(llms.ChatMessageTypeHuman, input),
	})
	if err != nil {
		return err
	}
	if err := decodeModelJSON(reply, out); err != nil {
		return fault.Wrap(fault.KindUpstream, err, "malformed evaluation payload")
	}
	return nil
}

func (s *Service) expiry() time.Time {
	if s.ttl <= 0 {
		return time.Time{}
	}
	return s.now().Add(s.ttl)
}

func (s *Service) expired(at time.Time) bool {
	return !at.IsZero() && s.now().After(at)
}

func (s *Service) sweepLocked() {
	for id, entry := range s.reports {
		if s.expired(entry.expiresAt) {
			delete(s.reports, id)
		}
	}
	for id, entry := range s.resumes {
		if s.expired(entry.expiresAt) {
			delete(s.resumes, id)
		}
	}
}

// decodeModelJSON parses a JSON object out of a model reply, tolerating
// markdown code fences and surrounding prose.
func decodeModelJSON(reply string, out any) error {
	text := strings.TrimSpace(reply)
	if start := strings.Index(text, "{"); start >= 0 {
		if end := strings.LastIndex(text, "}"); end > start {
			text = text[start : end+1]
		}
	}
	return json.Unmarshal([]byte(text), out)
}
