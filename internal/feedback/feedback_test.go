package feedback

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gleehq/interviewd/internal/fault"
	"github.com/gleehq/interviewd/internal/llm"
	"github.com/gleehq/interviewd/internal/session"
	"github.com/gleehq/interviewd/internal/state"
)

const hrTranscript = "\nInterviewer-Tell me about yourself.\nInterviewee-I lead a platform team of four."

const hrPayload = "```json\n" + `{
  "clarity_score": 80, "confidence_score": 70, "structure_score": 60, "engagement_score": 70,
  "values_score": 80, "teamwork_score": 90, "growth_score": 60, "initiative_score": 70,
  "strengths": ["You communicate clearly", "You own outcomes", "You mentor well"],
  "areas_of_improvements": ["Quantify your impact", "Structure answers with STAR", "Ask more questions"]
}` + "\n```"

func TestGenerateHRReport(t *testing.T) {
	t.Parallel()

	svc := NewService(llm.NewFake(hrPayload), time.Hour)
	metrics := session.MetricsSummary{Samples: 4, FaceDetected: 3, AvgEngagement: 72, AvgDistraction: 18}

	report, err := svc.GenerateInterview(context.Background(), "s1", "u1", state.VariantHR, hrTranscript, metrics)
	require.NoError(t, err)
	require.NotNil(t, report.HR)
	require.Equal(t, 90, report.HR.TeamworkScore)
	require.Len(t, report.HR.Strengths, 3)
	require.Nil(t, report.Technical)

	require.NotNil(t, report.SoftSkills)
	require.InDelta(t, 75, report.SoftSkills.PresenceScore, 0.001)
	require.InDelta(t, 72, report.SoftSkills.AvgEngagement, 0.001)

	stored, ok := svc.Report("s1")
	require.True(t, ok)
	require.Equal(t, report.HR, stored.HR)
}

func TestTechnicalVariantsShareThePipeline(t *testing.T) {
	t.Parallel()

	payload := `{"language_score": 70, "algorithms_score": 60, "strengths": ["You reason aloud"], "areas_of_improvements": ["Name complexity bounds"]}`
	for _, variant := range []state.Variant{state.VariantTechnical, state.VariantCompany, state.VariantSubject} {
		svc := NewService(llm.NewFake(payload), 0)
		report, err := svc.GenerateInterview(context.Background(), "s1", "u1", variant, hrTranscript, session.MetricsSummary{})
		require.NoError(t, err, variant)
		require.NotNil(t, report.Technical, variant)
		require.Equal(t, 70, report.Technical.LanguageScore)
		require.Nil(t, report.SoftSkills, "no telemetry, no soft skills")
	}
}

func TestGenerateRejectsEmptyTranscript(t *testing.T) {
	t.Parallel()

	svc := NewService(llm.NewFake(), time.Hour)
	_, err := svc.GenerateInterview(context.Background(), "s1", "u1", state.VariantHR, "   ", session.MetricsSummary{})
	require.Error(t, err)
	require.Equal(t, fault.KindInvalidInput, fault.KindOf(err))
}

func TestMalformedModelPayloadIsUpstream(t *testing.T) {
	t.Parallel()

	svc := NewService(llm.NewFake("I cannot produce JSON today."), time.Hour)
	_, err := svc.GenerateInterview(context.Background(), "s1", "u1", state.VariantHR, hrTranscript, session.MetricsSummary{})
	require.Error(t, err)
	require.Equal(t, fault.KindUpstream, fault.KindOf(err))

	_, ok := svc.Report("s1")
	require.False(t, ok)
}

func TestAnalyzeResume(t *testing.T) {
	t.Parallel()

	payload := `{"company": "Acme", "role": "Backend Engineer", "job_match_score": 65,
		"found_keywords": ["Go", "PostgreSQL"], "not_found_keywords": ["Kubernetes"],
		"top_3_keywords": ["Kubernetes", "gRPC", "Terraform"],
		"candidate_strengths": ["Strong backend depth"], "candidate_areas_of_improvements": ["Add infra exposure"]}`
	svc := NewService(llm.NewFake(payload), time.Hour)

	analysis, err := svc.AnalyzeResume(context.Background(), "r1", "Go developer, 4 years", "Backend Engineer at Acme")
	require.NoError(t, err)
	require.Equal(t, "Acme", analysis.Company)
	require.Equal(t, 65, analysis.JobMatchScore)
	require.Equal(t, []string{"Kubernetes"}, analysis.MissingKeywords)

	stored, ok := svc.Resume("r1")
	require.True(t, ok)
	require.Equal(t, analysis, stored)

	_, err = svc.AnalyzeResume(context.Background(), "r2", "", "jd")
	require.Error(t, err)
	require.Equal(t, fault.KindInvalidInput, fault.KindOf(err))
}

func TestReportsExpire(t *testing.T) {
	t.Parallel()

	svc := NewService(llm.NewFake(hrPayload), time.Hour)
	now := time.Now()
	svc.now = func() time.Time { return now }

	_, err := svc.GenerateInterview(context.Background(), "s1", "u1", state.VariantHR, hrTranscript, session.MetricsSummary{})
	require.NoError(t, err)

	_, ok := svc.Report("s1")
	require.True(t, ok)

	now = now.Add(2 * time.Hour)
	_, ok = svc.Report("s1")
	require.False(t, ok)
}

func TestDecodeModelJSONStripsProse(t *testing.T) {
	t.Parallel()

	var out struct {
		A int `json:"a"`
	}
	err := decodeModelJSON("Here is the evaluation:\n```json\n{\"a\": 7}\n```\nThanks!", &out)
	require.NoError(t, err)
	require.Equal(t, 7, out.A)

	require.Error(t, decodeModelJSON("no json here", &out))
}
