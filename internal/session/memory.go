package session

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/gleehq/interviewd/internal/fault"
)

type entry struct {
	data       Data
	response   *Response
	transcript string
	warning    *Warning
	metrics    []MetricSample
	expiresAt  time.Time
}

// MemoryStore is the single-node Store implementation. A ttl of zero means
// sessions never expire.
type MemoryStore struct {
	mu         sync.Mutex
	ttl        time.Duration
	entries    map[string]*entry
	processing map[string]time.Time
	waiters    map[string][]chan struct{}
	now        func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:        ttl,
		entries:    make(map[string]*entry),
		processing: make(map[string]time.Time),
		waiters:    make(map[string][]chan struct{}),
		now:        time.Now,
	}
}

var _ Store = (*MemoryStore)(nil)

// live returns the entry for id, dropping it first if it has expired.
// Callers hold s.mu.
func (s *MemoryStore) live(id string) (*entry, bool) {
	e, ok := s.entries[id]
	if !ok {
		return nil, false
	}
	if s.ttl > 0 && s.now().After(e.expiresAt) {
		delete(s.entries, id)
		return nil, false
	}
	return e, true
}

// touch refreshes the TTL and wakes everything blocked on the session.
// Callers hold s.mu.
func (s *MemoryStore) touch(id string, e *entry) {
	e.data.UpdatedAt = s.now()
	if s.ttl > 0 {
		e.expiresAt = s.now().Add(s.ttl)
	}
	for _, ch := range s.waiters[id] {
		close(ch)
	}
	delete(s.waiters, id)
}

func (s *MemoryStore) Create(_ context.Context, data Data) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.live(data.ID); ok {
		// session ids are caller-supplied, so a clash is a client error
		return fault.Newf(fault.KindInvalidInput, "session %s already exists", data.ID)
	}
	if data.Status == "" {
		data.Status = StatusInitialized
	}
	data.CreatedAt = s.now()
	e := &entry{data: data}
	s.entries[data.ID] = e
	s.touch(data.ID, e)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Data, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.live(id)
	if !ok {
		return Data{}, errors.Wrap(ErrNotFound, id)
	}
	return e.data, nil
}

func (s *MemoryStore) Update(_ context.Context, id string, fn func(*Data)) error {
	return s.write(id, func(e *entry) { fn(&e.data) })
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.live(id); !ok {
		return errors.Wrap(ErrNotFound, id)
	}
	delete(s.entries, id)
	delete(s.processing, id)
	for _, ch := range s.waiters[id] {
		close(ch)
	}
	delete(s.waiters, id)
	return nil
}

func (s *MemoryStore) RefreshTTL(_ context.Context, id string) error {
	return s.write(id, func(*entry) {})
}

func (s *MemoryStore) SetStatus(_ context.Context, id string, status Status) error {
	return s.write(id, func(e *entry) { e.data.Status = status })
}

func (s *MemoryStore) GetStatus(ctx context.Context, id string) (Status, error) {
	data, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return data.Status, nil
}

func (s *MemoryStore) SetResponse(_ context.Context, id string, resp Response) error {
	return s.write(id, func(e *entry) {
		if resp.Timestamp.IsZero() {
			resp.Timestamp = s.now()
		}
		e.response = &resp
	})
}

func (s *MemoryStore) GetResponse(_ context.Context, id string) (Response, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.live(id)
	if !ok {
		return Response{}, false, errors.Wrap(ErrNotFound, id)
	}
	if e.response == nil {
		return Response{}, false, nil
	}
	return *e.response, true, nil
}

func (s *MemoryStore) SetTranscript(_ context.Context, id string, fragment string) error {
	return s.write(id, func(e *entry) { e.transcript = fragment })
}

func (s *MemoryStore) TakeTranscript(_ context.Context, id string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.live(id)
	if !ok {
		return "", false, errors.Wrap(ErrNotFound, id)
	}
	if e.transcript == "" {
		return "", false, nil
	}
	fragment := e.transcript
	e.transcript = ""
	s.touch(id, e)
	return fragment, true, nil
}

func (s *MemoryStore) SetWarning(_ context.Context, id string, warning Warning) error {
	return s.write(id, func(e *entry) {
		if warning.Timestamp.IsZero() {
			warning.Timestamp = s.now()
		}
		e.warning = &warning
	})
}

func (s *MemoryStore) TakeWarning(_ context.Context, id string) (Warning, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.live(id)
	if !ok {
		return Warning{}, false, errors.Wrap(ErrNotFound, id)
	}
	if e.warning == nil {
		return Warning{}, false, nil
	}
	warning := *e.warning
	e.warning = nil
	s.touch(id, e)
	return warning, true, nil
}

func (s *MemoryStore) AppendMetrics(_ context.Context, id string, sample MetricSample) error {
	return s.write(id, func(e *entry) {
		if sample.At.IsZero() {
			sample.At = s.now()
		}
		e.metrics = append(e.metrics, sample)
	})
}

func (s *MemoryStore) MetricsSummary(_ context.Context, id string) (MetricsSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.live(id)
	if !ok {
		return MetricsSummary{}, errors.Wrap(ErrNotFound, id)
	}
	summary := MetricsSummary{Samples: len(e.metrics)}
	for _, m := range e.metrics {
		if !m.FaceDetected {
			continue
		}
		summary.FaceDetected++
		summary.AvgEngagement += m.Engagement
		summary.AvgDistraction += m.Distraction
	}
	if summary.FaceDetected > 0 {
		summary.AvgEngagement /= float64(summary.FaceDetected)
		summary.AvgDistraction /= float64(summary.FaceDetected)
	}
	return summary, nil
}

func (s *MemoryStore) TryBeginProcessing(id string, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if until, ok := s.processing[id]; ok && s.now().Before(until) {
		return false
	}
	s.processing[id] = s.now().Add(ttl)
	return true
}

func (s *MemoryStore) EndProcessing(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.processing, id)
}

func (s *MemoryStore) Notify(id string) <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan struct{})
	s.waiters[id] = append(s.waiters[id], ch)
	return ch
}

// Sweep drops expired sessions and stale processing markers, returning the
// number of sessions removed.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	now := s.now()
	for id, e := range s.entries {
		if s.ttl > 0 && now.After(e.expiresAt) {
			delete(s.entries, id)
			removed++
		}
	}
	for id, until := range s.processing {
		if now.After(until) {
			delete(s.processing, id)
		}
	}
	return removed
}

func (s *MemoryStore) write(id string, fn func(*entry)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.live(id)
	if !ok {
		return errors.Wrap(ErrNotFound, id)
	}
	fn(e)
	s.touch(id, e)
	return nil
}
