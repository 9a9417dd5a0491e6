package httpapi

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/gleehq/interviewd/internal/events"
	"github.com/gleehq/interviewd/internal/fault"
	"github.com/gleehq/interviewd/internal/session"
	"github.com/gleehq/interviewd/internal/state"
)

type startRequest struct {
	SessionID         string   `json:"session_id"`
	InterviewType     string   `json:"interview_type"`
	Resume            string   `json:"resume"`
	TechnicalResearch string   `json:"technical_research"`
	CodingResearch    string   `json:"coding_research"`
	Company           string   `json:"company"`
	Subject           string   `json:"subject"`
	Research          string   `json:"research"`
	Difficulty        string   `json:"difficulty"`
	Tags              []string `json:"tags"`
	CaseQuestion      string   `json:"case_question"`
	CaseReference     string   `json:"case_reference"`
}

func (req startRequest) toState() state.Interview {
	init := state.Interview{
		Variant: state.Variant(req.InterviewType),
		Resume:  req.Resume,
	}
	switch init.Variant {
	case state.VariantTechnical:
		init.Technical = &state.TechnicalProfile{
			TechnicalResearch: req.TechnicalResearch,
			CodingResearch:    req.CodingResearch,
		}
	case state.VariantCompany, state.VariantSubject:
		init.Question = &state.QuestionSpec{
			Company:    req.Company,
			Subject:    req.Subject,
			Research:   req.Research,
			Difficulty: req.Difficulty,
			Tags:       req.Tags,
		}
	case state.VariantCaseStudy:
		init.Case = &state.CaseStudySpec{
			Question:  req.CaseQuestion,
			Reference: req.CaseReference,
		}
	}
	return init
}

type startResponse struct {
	SessionID string `json:"session_id"`
	TaskID    string `json:"task_id"`
	Status    string `json:"status"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	ctx := r.Context()
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	data := session.Data{
		ID:      sessionID,
		UserID:  userFrom(ctx),
		Variant: state.Variant(req.InterviewType),
	}
	taskID, err := s.deps.Tasks.StartInterview(ctx, data, req.toState())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, startResponse{
		SessionID: data.ID,
		TaskID:    taskID,
		Status:    string(session.StatusInitialized),
	})
}

type respondRequest struct {
	Message     string `json:"message"`
	Audio       string `json:"audio"`
	ContentType string `json:"content_type"`
	Code        string `json:"code"`
}

type respondResponse struct {
	SessionID     string `json:"session_id"`
	TaskID        string `json:"task_id"`
	Status        string `json:"status"`
	Transcription string `json:"transcription,omitempty"`
}

func (s *Server) handleRespond(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	var req respondRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Message == "" && req.Audio == "" && req.Code == "" {
		s.writeError(w, r, fault.New(fault.KindInvalidInput, "message, audio or code is required"))
		return
	}

	ctx := r.Context()
	if _, err := s.owned(ctx, sessionID); err != nil {
		s.writeError(w, r, err)
		return
	}

	// one turn in flight per session
	if !s.deps.Sessions.TryBeginProcessing(sessionID, s.deps.ProcessingTTL) {
		s.writeError(w, r, fault.New(fault.KindRateLimited, "a response is already being processed"))
		return
	}

	message := req.Message
	var transcription string
	if req.Audio != "" {
		media, err := base64.StdEncoding.DecodeString(req.Audio)
		if err != nil {
			s.deps.Sessions.EndProcessing(sessionID)
			s.writeError(w, r, fault.Wrap(fault.KindInvalidInput, err, "audio payload"))
			return
		}
		text, err := s.deps.Tasks.TranscribeAndWait(ctx, sessionID, media, req.ContentType)
		if err != nil {
			s.deps.Sessions.EndProcessing(sessionID)
			s.writeError(w, r, err)
			return
		}
		message = text
		transcription = text
	}
	if req.Code != "" {
		if message == "" {
			message = "[CODE INPUT]\n" + req.Code
		} else {
			message += "\n\n[CODE INPUT]\n" + req.Code
		}
	}

	taskID, err := s.deps.Tasks.Respond(ctx, sessionID, message)
	if err != nil {
		s.deps.Sessions.EndProcessing(sessionID)
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, respondResponse{
		SessionID:     sessionID,
		TaskID:        taskID,
		Status:        string(session.StatusProcessing),
		Transcription: transcription,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	ctx := r.Context()
	if _, err := s.owned(ctx, sessionID); err != nil {
		s.writeError(w, r, err)
		return
	}

	wait := time.Duration(0)
	if raw := r.URL.Query().Get("wait"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds < 0 {
			s.writeError(w, r, fault.New(fault.KindInvalidInput, "wait must be a non-negative integer"))
			return
		}
		wait = time.Duration(seconds) * time.Second
		if wait > maxPollWait {
			wait = maxPollWait
		}
	}

	snap, err := s.deps.Poller.Snapshot(ctx, sessionID, wait)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	ctx := r.Context()
	if _, err := s.owned(ctx, sessionID); err != nil {
		s.writeError(w, r, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, r, fault.New(fault.KindInternal, "streaming unsupported by connection"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	err := s.deps.Streamer.Run(ctx, sessionID, func(ev events.Event) error {
		payload, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, payload); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})
	if err != nil {
		s.deps.Logger.Warn("event stream ended with error", "session", sessionID, "error", err)
	}
}

type telemetryRequest struct {
	FaceDetected bool    `json:"face_detected"`
	Engagement   float64 `json:"engagement"`
	Distraction  float64 `json:"distraction"`
}

type telemetryResponse struct {
	Recorded bool             `json:"recorded"`
	Warning  *session.Warning `json:"warning,omitempty"`
}

func (s *Server) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	var req telemetryRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	ctx := r.Context()
	if _, err := s.owned(ctx, sessionID); err != nil {
		s.writeError(w, r, err)
		return
	}

	warning, emitted, err := s.deps.Monitor.Observe(ctx, sessionID, session.MetricSample{
		FaceDetected: req.FaceDetected,
		Engagement:   req.Engagement,
		Distraction:  req.Distraction,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := telemetryResponse{Recorded: true}
	if emitted {
		resp.Warning = &warning
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEnd(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	ctx := r.Context()
	if _, err := s.owned(ctx, sessionID); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.deps.Tasks.EndInterview(ctx, sessionID); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"session_id": sessionID,
		"status":     string(session.StatusCompleted),
	})
}

type feedbackGenerateRequest struct {
	SessionID string `json:"session_id"`
}

func (s *Server) handleFeedbackGenerate(w http.ResponseWriter, r *http.Request) {
	var req feedbackGenerateRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	ctx := r.Context()
	if _, err := s.owned(ctx, req.SessionID); err != nil {
		s.writeError(w, r, err)
		return
	}
	taskID, err := s.deps.Tasks.GenerateFeedback(ctx, req.SessionID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{
		"session_id": req.SessionID,
		"task_id":    taskID,
		"status":     "queued",
	})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	ctx := r.Context()
	if _, err := s.owned(ctx, sessionID); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.deps.Tasks.DeleteSession(ctx, sessionID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	res, ok := s.deps.Dispatcher.Result(id)
	if !ok {
		s.writeError(w, r, fault.Newf(fault.KindNotFound, "task %s not found", id))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"task_id":  res.ID,
		"op":       res.Op,
		"status":   string(res.Status),
		"attempts": res.Attempts,
		"error":    res.Error,
	})
}

type resumeAnalyzeRequest struct {
	Resume         string `json:"resume"`
	JobDescription string `json:"job_description"`
}

func (s *Server) handleResumeAnalyze(w http.ResponseWriter, r *http.Request) {
	var req resumeAnalyzeRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	analysisID, taskID, err := s.deps.Tasks.AnalyzeResume(r.Context(), req.Resume, req.JobDescription)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{
		"analysis_id": analysisID,
		"task_id":     taskID,
		"status":      "queued",
	})
}

func (s *Server) handleResumeResult(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	analysis, ok := s.deps.Reports.Resume(id)
	if !ok {
		s.writeError(w, r, fault.Newf(fault.KindNotFound, "resume analysis %s not found", id))
		return
	}
	s.writeJSON(w, http.StatusOK, analysis)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	ctx := r.Context()
	if _, err := s.owned(ctx, sessionID); err != nil {
		s.writeError(w, r, err)
		return
	}

	report, ok := s.deps.Reports.Report(sessionID)
	if !ok {
		s.writeError(w, r, fault.Newf(fault.KindNotFound, "no report for session %s", sessionID))
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}
