// Package playback places decoded speech on a shared timeline so that
// consecutive buffers play back to back, and stops everything at once when
// the remote side reports an interruption.
package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/koscakluka/ema-live/core/audio"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Clock reports the current position of the shared output timeline.
type Clock interface {
	Now() time.Duration
}

// Source is a buffer that has been handed to a sink.
type Source interface {
	// Stop silences the source immediately. The ended callback passed to
	// [Sink.Start] is not called for stopped sources.
	Stop()
}

// Sink starts buffers at absolute positions on the timeline its clock
// reports. onEnded must not be called from within Start.
type Sink interface {
	Start(buffer audio.Buffer, at time.Duration, onEnded func()) (Source, error)
}

// Output is a sink that also owns the timeline clock, such as [Timeline].
type Output interface {
	Clock
	Sink
}

var ErrNoOutput = errors.New("playback output not configured")

type Scheduler struct {
	clock Clock
	sink  Sink

	nextStartTime time.Duration
	active        map[*scheduledSource]struct{}

	mu sync.Mutex
}

type scheduledSource struct {
	source Source
	start  time.Duration
	end    time.Duration
}

func NewScheduler(output Output) *Scheduler {
	return &Scheduler{
		clock:  output,
		sink:   output,
		active: map[*scheduledSource]struct{}{},
	}
}

// Schedule places buffer right after everything already scheduled, or at
// the current time if the timeline has caught up. It returns the position
// the buffer starts at.
func (s *Scheduler) Schedule(buffer audio.Buffer) (time.Duration, error) {
	if s == nil || s.sink == nil || s.clock == nil {
		return 0, ErrNoOutput
	}

	duration := buffer.Duration()
	if duration <= 0 {
		return 0, fmt.Errorf("%w: buffer has no playable samples", audio.ErrDecode)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	startAt := max(s.nextStartTime, s.clock.Now())
	entry := &scheduledSource{start: startAt, end: startAt + duration}
	source, err := s.sink.Start(buffer, startAt, func() { s.ended(entry) })
	if err != nil {
		return 0, fmt.Errorf("failed to start playback source: %w", err)
	}

	entry.source = source
	s.active[entry] = struct{}{}
	s.nextStartTime = entry.end

	scheduledCounter.Add(context.Background(), 1)
	return startAt, nil
}

func (s *Scheduler) ended(entry *scheduledSource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, entry)
}

// Interrupt stops every active source and rewinds the cursor so the next
// buffer plays as soon as it is scheduled.
func (s *Scheduler) Interrupt() int {
	if s == nil {
		return 0
	}

	stopped := s.stopAll()
	if stopped > 0 {
		interruptedCounter.Add(context.Background(), int64(stopped),
			metric.WithAttributes(attribute.String("reason", "interrupted")))
	}
	return stopped
}

// Reset drains anything left over from a previous session.
func (s *Scheduler) Reset() {
	if s == nil {
		return
	}

	if stopped := s.stopAll(); stopped > 0 {
		logger.Info("dropped leftover playback on reset", "sources", stopped)
	}
}

func (s *Scheduler) stopAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	stopped := len(s.active)
	for entry := range s.active {
		entry.source.Stop()
	}
	clear(s.active)
	s.nextStartTime = 0

	return stopped
}

func (s *Scheduler) NextStartTime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextStartTime
}

func (s *Scheduler) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}
