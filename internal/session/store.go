// Package session implements the per-interview session store: lifecycle
// status, the latest deliverable response, destructive transcript and
// warning slots, a telemetry log and the single-in-flight processing
// marker. Every slot of a session shares one TTL, refreshed on any write.
package session

import (
	"context"
	"time"

	"github.com/gleehq/interviewd/internal/fault"
	"github.com/gleehq/interviewd/internal/state"
)

type Status string

const (
	StatusInitialized Status = "initialized"
	StatusProcessing  Status = "processing"
	StatusWaiting     Status = "waiting_for_response"
	StatusAIResponded Status = "ai_responded"
	StatusCompleted   Status = "completed"
	StatusError       Status = "error"
)

// Terminal reports whether a status ends the event stream.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

var ErrNotFound = fault.New(fault.KindNotFound, "session not found")

// Data is the session record.
type Data struct {
	ID        string
	UserID    string
	Variant   state.Variant
	Status    Status
	Stage     string
	History   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Response is the latest interviewer turn awaiting delivery. Audio is a
// base64-encoded synthesis of Message, empty when synthesis was skipped or
// failed.
type Response struct {
	Message   string
	Audio     string
	Stage     string
	Timestamp time.Time
}

// Warning is a quality-telemetry warning slot. Terminating warnings end the
// interview.
type Warning struct {
	Kind        string
	Message     string
	Terminating bool
	Timestamp   time.Time
}

// MetricSample is one telemetry observation.
type MetricSample struct {
	FaceDetected bool
	Engagement   float64
	Distraction  float64
	At           time.Time
}

// MetricsSummary aggregates a session's telemetry log.
type MetricsSummary struct {
	Samples        int
	FaceDetected   int
	AvgEngagement  float64
	AvgDistraction float64
}

// Store is the session persistence contract. The in-memory implementation
// is authoritative for a single node; a shared backend would implement the
// same interface.
type Store interface {
	Create(ctx context.Context, data Data) error
	Get(ctx context.Context, id string) (Data, error)
	// Update applies fn to the stored record under the store's lock.
	Update(ctx context.Context, id string, fn func(*Data)) error
	Delete(ctx context.Context, id string) error
	RefreshTTL(ctx context.Context, id string) error

	SetStatus(ctx context.Context, id string, status Status) error
	GetStatus(ctx context.Context, id string) (Status, error)

	SetResponse(ctx context.Context, id string, resp Response) error
	GetResponse(ctx context.Context, id string) (Response, bool, error)

	SetTranscript(ctx context.Context, id string, fragment string) error
	// TakeTranscript returns and clears the transcript fragment.
	TakeTranscript(ctx context.Context, id string) (string, bool, error)

	SetWarning(ctx context.Context, id string, warning Warning) error
	// TakeWarning returns and clears the pending warning.
	TakeWarning(ctx context.Context, id string) (Warning, bool, error)

	AppendMetrics(ctx context.Context, id string, sample MetricSample) error
	MetricsSummary(ctx context.Context, id string) (MetricsSummary, error)

	// TryBeginProcessing acquires the single-in-flight marker for a session.
	// The marker expires on its own after ttl in case a worker dies holding it.
	TryBeginProcessing(id string, ttl time.Duration) bool
	EndProcessing(id string)

	// Notify returns a channel closed on the next write touching the session.
	Notify(id string) <-chan struct{}
}
