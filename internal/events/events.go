// Package events turns session store mutations into client-visible events,
// both as one-shot poll snapshots and as a server-sent event stream.
package events

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/gleehq/interviewd/internal/session"
)

// Event types carried on the stream.
const (
	TypeStatus        = "status"
	TypeAIResponse    = "ai_response"
	TypeTranscription = "transcription"
	TypeWarning       = "quality_warning"
	TypeComplete      = "complete"
	TypeError         = "error"
)

// Event is one stream item. Fatal is only meaningful on error events: a
// fatal error ends the stream, a non-fatal one does not.
type Event struct {
	Type      string           `json:"type"`
	SessionID string           `json:"session_id"`
	Status    session.Status   `json:"status,omitempty"`
	Stage     string           `json:"stage,omitempty"`
	Message   string           `json:"message,omitempty"`
	Audio     string           `json:"audio,omitempty"`
	Warning   *session.Warning `json:"warning,omitempty"`
	Fatal     bool             `json:"fatal"`
	Timestamp time.Time        `json:"timestamp"`
}

// Terminator force-ends a session when telemetry escalates mid-stream.
type Terminator interface {
	Terminate(ctx context.Context, sessionID string) error
}

// Snapshot is the poll view of a session. Transcript and Warning are
// consumed by the read that returns them.
type Snapshot struct {
	SessionID  string            `json:"session_id"`
	Status     session.Status    `json:"status"`
	Stage      string            `json:"stage,omitempty"`
	Response   *session.Response `json:"response,omitempty"`
	Transcript string            `json:"transcript,omitempty"`
	Warning    *session.Warning  `json:"warning,omitempty"`
}

// Poller serves one-shot snapshots with a bounded wait: if nothing is ready
// it blocks until the next session write or the wait budget, whichever is
// first.
type Poller struct {
	sessions session.Store
	ender    Terminator
}

func NewPoller(sessions session.Store, ender Terminator) *Poller {
	return &Poller{sessions: sessions, ender: ender}
}

func (p *Poller) Snapshot(ctx context.Context, sessionID string, wait time.Duration) (Snapshot, error) {
	deadline := time.NewTimer(wait)
	defer deadline.Stop()

	for {
		// register before reading so a write between the two cannot be missed
		notify := p.sessions.Notify(sessionID)

		snap, ready, err := p.collect(ctx, sessionID)
		if err != nil {
			return Snapshot{}, err
		}
		if ready || wait <= 0 {
			return snap, nil
		}

		select {
		case <-notify:
		case <-deadline.C:
			return snap, nil
		case <-ctx.Done():
			return snap, nil
		}
	}
}

// collect reads the observable state. It only consumes the destructive
// slots when it is about to report them.
func (p *Poller) collect(ctx context.Context, sessionID string) (Snapshot, bool, error) {
	data, err := p.sessions.Get(ctx, sessionID)
	if err != nil {
		return Snapshot{}, false, err
	}
	snap := Snapshot{SessionID: sessionID, Status: data.Status, Stage: data.Stage}
	ready := false

	if warning, ok, err := p.sessions.TakeWarning(ctx, sessionID); err == nil && ok {
		snap.Warning = &warning
		ready = true
		if warning.Terminating {
			if terr := p.ender.Terminate(ctx, sessionID); terr != nil {
				return Snapshot{}, false, terr
			}
			snap.Status = session.StatusError
			return snap, true, nil
		}
	}

	if fragment, ok, err := p.sessions.TakeTranscript(ctx, sessionID); err == nil && ok {
		snap.Transcript = fragment
		ready = true
	}

	if data.Status == session.StatusAIResponded || data.Status.Terminal() {
		if resp, ok, err := p.sessions.GetResponse(ctx, sessionID); err == nil && ok {
			snap.Response = &resp
		}
		ready = true
		if data.Status == session.StatusAIResponded {
			// the turn has been handed to the client; wait for the reply
			if err := p.sessions.SetStatus(ctx, sessionID, session.StatusWaiting); err != nil {
				return Snapshot{}, false, err
			}
		}
	}
	return snap, ready, nil
}

// Streamer drives a server-sent event stream, checking the session once per
// interval and emitting whatever changed. Run returns when the session
// reaches a terminal status, the sink fails, or the context ends.
type Streamer struct {
	sessions session.Store
	ender    Terminator
	interval time.Duration
}

func NewStreamer(sessions session.Store, ender Terminator, interval time.Duration) *Streamer {
	if interval <= 0 {
		interval = time.Second
	}
	return &Streamer{sessions: sessions, ender: ender, interval: interval}
}

func (s *Streamer) Run(ctx context.Context, sessionID string, emit func(Event) error) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	var lastStatus session.Status
	var lastResponseAt time.Time

	for {
		done, err := s.tick(ctx, sessionID, emit, &lastStatus, &lastResponseAt)
		if err != nil || done {
			return err
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil
		}
	}
}

func (s *Streamer) tick(ctx context.Context, sessionID string, emit func(Event) error, lastStatus *session.Status, lastResponseAt *time.Time) (bool, error) {
	now := time.Now()
	event := func(typ string) Event {
		return Event{Type: typ, SessionID: sessionID, Timestamp: now}
	}

	data, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			ev := event(TypeError)
			ev.Message = "session no longer exists"
			ev.Fatal = true
			_ = emit(ev)
			return true, nil
		}
		// transient store failure: report it and keep the stream open
		ev := event(TypeError)
		ev.Message = err.Error()
		return false, emit(ev)
	}

	if warning, ok, werr := s.sessions.TakeWarning(ctx, sessionID); werr == nil && ok {
		ev := event(TypeWarning)
		ev.Warning = &warning
		if err := emit(ev); err != nil {
			return false, err
		}
		if warning.Terminating {
			if terr := s.ender.Terminate(ctx, sessionID); terr != nil {
				ev := event(TypeError)
				ev.Message = terr.Error()
				return false, emit(ev)
			}
			ev := event(TypeError)
			ev.Status = session.StatusError
			ev.Message = warning.Message
			ev.Fatal = true
			_ = emit(ev)
			return true, nil
		}
	}

	if fragment, ok, terr := s.sessions.TakeTranscript(ctx, sessionID); terr == nil && ok {
		ev := event(TypeTranscription)
		ev.Message = fragment
		if err := emit(ev); err != nil {
			return false, err
		}
	}

	if resp, ok, rerr := s.sessions.GetResponse(ctx, sessionID); rerr == nil && ok && resp.Timestamp.After(*lastResponseAt) {
		ev := event(TypeAIResponse)
		ev.Message = resp.Message
		ev.Audio = resp.Audio
		ev.Stage = resp.Stage
		if err := emit(ev); err != nil {
			return false, err
		}
		*lastResponseAt = resp.Timestamp
		if data.Status == session.StatusAIResponded {
			if err := s.sessions.SetStatus(ctx, sessionID, session.StatusWaiting); err != nil {
				return false, err
			}
			data.Status = session.StatusWaiting
		}
	}

	if data.Status != *lastStatus {
		ev := event(TypeStatus)
		ev.Status = data.Status
		ev.Stage = data.Stage
		if err := emit(ev); err != nil {
			return false, err
		}
		*lastStatus = data.Status
	}

	if data.Status.Terminal() {
		typ := TypeComplete
		if data.Status == session.StatusError {
			typ = TypeError
		}
		ev := event(typ)
		ev.Status = data.Status
		ev.Fatal = typ == TypeError
		_ = emit(ev)
		return true, nil
	}
	return false, nil
}
