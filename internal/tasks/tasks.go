// Package tasks binds the domain services to the dispatcher: it owns the
// operation handlers for interview turns, transcription, feedback and
// resume analysis, and the session status transitions around them.
package tasks

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/pkg/errors"

	"github.com/gleehq/interviewd/internal/audio"
	"github.com/gleehq/interviewd/internal/dispatch"
	"github.com/gleehq/interviewd/internal/fault"
	"github.com/gleehq/interviewd/internal/feedback"
	"github.com/gleehq/interviewd/internal/interview"
	"github.com/gleehq/interviewd/internal/session"
	"github.com/gleehq/interviewd/internal/state"
	"github.com/gleehq/interviewd/internal/telemetry"
)

// Dispatcher operation names.
const (
	OpInterviewStart   = "interview.start"
	OpInterviewRespond = "interview.respond"
	OpAudioTranscribe  = "audio.transcribe"
	OpFeedbackGenerate = "feedback.generate"
	OpResumeAnalyze    = "analysis.resume"
)

type mediaPayload struct {
	media       []byte
	contentType string
}

type resumePayload struct {
	resume         string
	jobDescription string
}

// Service schedules and executes the asynchronous operations. Large or
// structured inputs travel through an in-process stash instead of the unit
// argument list.
type Service struct {
	exec     *interview.Executor
	sessions session.Store
	synth    audio.Synthesizer
	trans    audio.Transcriber
	reports  *feedback.Service
	monitor  *telemetry.Monitor
	disp     *dispatch.Dispatcher
	logger   *slog.Logger
	wait     time.Duration

	mu      sync.Mutex
	starts  map[string]state.Interview
	media   map[string]mediaPayload
	resumes map[string]resumePayload
}

func NewService(
	exec *interview.Executor,
	sessions session.Store,
	synth audio.Synthesizer,
	trans audio.Transcriber,
	reports *feedback.Service,
	monitor *telemetry.Monitor,
	disp *dispatch.Dispatcher,
	transcribeWait time.Duration,
	logger *slog.Logger,
) *Service {
	s := &Service{
		exec:     exec,
		sessions: sessions,
		synth:    synth,
		trans:    trans,
		reports:  reports,
		monitor:  monitor,
		disp:     disp,
		logger:   logger,
		wait:     transcribeWait,
		starts:   make(map[string]state.Interview),
		media:    make(map[string]mediaPayload),
		resumes:  make(map[string]resumePayload),
	}
	disp.Register(OpInterviewStart, dispatch.QueueInterview, s.handleStart)
	disp.Register(OpInterviewRespond, dispatch.QueueInterview, s.handleRespond)
	disp.Register(OpAudioTranscribe, dispatch.QueueAudio, s.handleTranscribe)
	disp.Register(OpFeedbackGenerate, dispatch.QueueFeedback, s.handleFeedback)
	disp.Register(OpResumeAnalyze, dispatch.QueueAnalysis, s.handleResumeAnalysis)
	return s
}

// StartInterview creates the session record and schedules the opening turn.
func (s *Service) StartInterview(ctx context.Context, data session.Data, init state.Interview) (string, error) {
	if err := init.Validate(); err != nil {
		return "", fault.Wrap(fault.KindInvalidInput, err, "interview request")
	}
	if err := s.sessions.Create(ctx, data); err != nil {
		return "", errors.Wrapf(err, "create session %s", data.ID)
	}

	s.mu.Lock()
	s.starts[data.ID] = init
	s.mu.Unlock()

	id, err := s.disp.Submit(ctx, OpInterviewStart, []string{data.ID},
		dispatch.WithCleanup(s.failToError(data.ID)),
	)
	if err != nil {
		s.mu.Lock()
		delete(s.starts, data.ID)
		s.mu.Unlock()
		return "", err
	}
	return id, nil
}

// Respond schedules the candidate's reply. The caller must already hold the
// session's processing marker; it is released when the unit finishes.
func (s *Service) Respond(ctx context.Context, sessionID, message string) (string, error) {
	return s.disp.Submit(ctx, OpInterviewRespond, []string{sessionID, message},
		dispatch.WithCleanup(func(res dispatch.Result) {
			s.sessions.EndProcessing(sessionID)
			s.failToError(sessionID)(res)
		}),
	)
}

// TranscribeAndWait schedules a transcription and blocks until the text is
// available or the wait budget runs out.
func (s *Service) TranscribeAndWait(ctx context.Context, sessionID string, media []byte, contentType string) (string, error) {
	s.mu.Lock()
	s.media[sessionID] = mediaPayload{media: media, contentType: contentType}
	s.mu.Unlock()

	id, err := s.disp.Submit(ctx, OpAudioTranscribe, []string{sessionID})
	if err != nil {
		return "", err
	}
	res, err := s.disp.Await(ctx, id, s.wait)
	if err != nil {
		return "", errors.Wrapf(err, "transcription for %s", sessionID)
	}
	if res.Status == dispatch.StatusFailed {
		return "", fault.Newf(res.Kind, "transcription failed: %s", res.Error)
	}

	fragment, ok, err := s.sessions.TakeTranscript(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fault.New(fault.KindUpstream, "transcription produced no text")
	}
	return fragment, nil
}

// GenerateFeedback schedules report generation for a finished session.
func (s *Service) GenerateFeedback(ctx context.Context, sessionID string) (string, error) {
	return s.disp.Submit(ctx, OpFeedbackGenerate, []string{sessionID})
}

// AnalyzeResume schedules a resume analysis and returns the analysis ID the
// result will be stored under, plus the unit ID.
func (s *Service) AnalyzeResume(ctx context.Context, resume, jobDescription string) (analysisID, unitID string, err error) {
	analysisID = ulid.Make().String()
	s.mu.Lock()
	s.resumes[analysisID] = resumePayload{resume: resume, jobDescription: jobDescription}
	s.mu.Unlock()

	unitID, err = s.disp.Submit(ctx, OpResumeAnalyze, []string{analysisID})
	if err != nil {
		s.mu.Lock()
		delete(s.resumes, analysisID)
		s.mu.Unlock()
		return "", "", err
	}
	return analysisID, unitID, nil
}

// EndInterview closes a session on the candidate's request and schedules
// feedback over whatever transcript exists.
func (s *Service) EndInterview(ctx context.Context, sessionID string) error {
	if err := s.sessions.SetStatus(ctx, sessionID, session.StatusCompleted); err != nil {
		return err
	}
	s.monitor.Forget(sessionID)
	if _, err := s.GenerateFeedback(ctx, sessionID); err != nil {
		s.logger.Warn("feedback scheduling failed", "session", sessionID, "error", err)
	}
	return nil
}

// Terminate force-ends a session, e.g. when proctoring telemetry escalates
// to a terminal warning. No feedback is generated.
func (s *Service) Terminate(ctx context.Context, sessionID string) error {
	s.monitor.Forget(sessionID)
	return s.sessions.SetStatus(ctx, sessionID, session.StatusError)
}

// DeleteSession removes every trace of a session.
func (s *Service) DeleteSession(ctx context.Context, sessionID string) error {
	s.monitor.Forget(sessionID)
	s.sessions.EndProcessing(sessionID)
	s.mu.Lock()
	delete(s.starts, sessionID)
	delete(s.media, sessionID)
	s.mu.Unlock()
	return s.sessions.Delete(ctx, sessionID)
}

func (s *Service) handleStart(ctx context.Context, unit dispatch.Unit) error {
	sessionID := unit.Args[0]
	s.mu.Lock()
	init, ok := s.starts[sessionID]
	delete(s.starts, sessionID)
	s.mu.Unlock()
	if !ok {
		return fault.Newf(fault.KindInternal, "no pending start for session %s", sessionID)
	}

	if err := s.sessions.SetStatus(ctx, sessionID, session.StatusProcessing); err != nil {
		return err
	}
	turn, err := s.exec.Start(ctx, sessionID, init)
	if err != nil {
		// the payload survives for the retry
		s.mu.Lock()
		s.starts[sessionID] = init
		s.mu.Unlock()
		return err
	}
	return s.settle(ctx, sessionID, init.Variant, turn)
}

func (s *Service) handleRespond(ctx context.Context, unit dispatch.Unit) error {
	sessionID, message := unit.Args[0], unit.Args[1]
	data, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return err
	}

	if err := s.sessions.SetStatus(ctx, sessionID, session.StatusProcessing); err != nil {
		return err
	}
	turn, err := s.exec.Resume(ctx, sessionID, data.Variant, message)
	if err != nil {
		return err
	}
	return s.settle(ctx, sessionID, data.Variant, turn)
}

// settle records the turn's outcome on the session: response delivery, the
// transcript of record, and the status transition. A finished turn also
// kicks off feedback.
func (s *Service) settle(ctx context.Context, sessionID string, variant state.Variant, turn interview.Turn) error {
	if st, err := s.exec.Snapshot(ctx, sessionID, variant); err == nil {
		if uerr := s.sessions.Update(ctx, sessionID, func(d *session.Data) {
			d.Stage = st.LastStage
			d.History = st.History
		}); uerr != nil {
			return uerr
		}
	}

	if turn.Message != "" {
		if err := s.deliver(ctx, sessionID, turn); err != nil {
			return err
		}
	}

	if turn.Stage == interview.StageFinished {
		s.monitor.Forget(sessionID)
		if err := s.sessions.SetStatus(ctx, sessionID, session.StatusCompleted); err != nil {
			return err
		}
		if _, err := s.GenerateFeedback(ctx, sessionID); err != nil {
			s.logger.Warn("feedback scheduling failed", "session", sessionID, "error", err)
		}
		return nil
	}
	return s.sessions.SetStatus(ctx, sessionID, session.StatusAIResponded)
}

// deliver synthesizes and stores the interviewer turn. Synthesis failures
// degrade to text-only delivery.
func (s *Service) deliver(ctx context.Context, sessionID string, turn interview.Turn) error {
	voice, err := s.synth.Synthesize(ctx, turn.Message)
	if err != nil {
		s.logger.Warn("speech synthesis failed, delivering text only", "session", sessionID, "error", err)
		voice = ""
	}
	return s.sessions.SetResponse(ctx, sessionID, session.Response{
		Message: turn.Message,
		Audio:   voice,
		Stage:   turn.Stage,
	})
}

func (s *Service) handleTranscribe(ctx context.Context, unit dispatch.Unit) error {
	sessionID := unit.Args[0]
	s.mu.Lock()
	payload, ok := s.media[sessionID]
	delete(s.media, sessionID)
	s.mu.Unlock()
	if !ok {
		return fault.Newf(fault.KindInternal, "no pending audio for session %s", sessionID)
	}

	text, err := s.trans.Transcribe(ctx, payload.media, payload.contentType)
	if err != nil {
		s.mu.Lock()
		s.media[sessionID] = payload
		s.mu.Unlock()
		return err
	}
	return s.sessions.SetTranscript(ctx, sessionID, text)
}

func (s *Service) handleFeedback(ctx context.Context, unit dispatch.Unit) error {
	sessionID := unit.Args[0]
	data, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	metrics, err := s.sessions.MetricsSummary(ctx, sessionID)
	if err != nil {
		return err
	}
	_, err = s.reports.GenerateInterview(ctx, sessionID, data.UserID, data.Variant, data.History, metrics)
	return err
}

func (s *Service) handleResumeAnalysis(ctx context.Context, unit dispatch.Unit) error {
	analysisID := unit.Args[0]
	s.mu.Lock()
	payload, ok := s.resumes[analysisID]
	delete(s.resumes, analysisID)
	s.mu.Unlock()
	if !ok {
		return fault.Newf(fault.KindInternal, "no pending resume analysis %s", analysisID)
	}

	_, err := s.reports.AnalyzeResume(ctx, analysisID, payload.resume, payload.jobDescription)
	if err != nil {
		s.mu.Lock()
		s.resumes[analysisID] = payload
		s.mu.Unlock()
	}
	return err
}

// failToError flips the session to error when a unit exhausts its attempts.
func (s *Service) failToError(sessionID string) func(dispatch.Result) {
	return func(res dispatch.Result) {
		if res.Status != dispatch.StatusFailed {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.sessions.SetStatus(ctx, sessionID, session.StatusError); err != nil {
			s.logger.Error("failed to mark session errored", "session", sessionID, "error", err)
		}
	}
}
