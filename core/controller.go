// Package live runs voice conversations with a streaming conversational
// endpoint: it captures the microphone, schedules the speech that comes
// back, aggregates both transcripts and executes the tools the endpoint
// asks for.
package live

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/koscakluka/ema-live/core/playback"
	"github.com/koscakluka/ema-live/core/realtime"
	"github.com/koscakluka/ema-live/core/tools"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

// Controller starts sessions one at a time and owns what outlives them: the
// microphone and the playback timeline.
type Controller struct {
	connector  realtime.Connector
	audioInput *audioInput
	scheduler  *playback.Scheduler
	flights    tools.FlightSearcher
	config     realtime.SessionConfig
	greeting   string

	active *Session
	closed bool

	closeOnce sync.Once
	mu        sync.Mutex
}

func NewController(opts ...ControllerOption) *Controller {
	c := &Controller{
		audioInput: newAudioInput(nil),
		config: realtime.SessionConfig{
			SystemInstruction:        DefaultSystemInstruction,
			ResponseModalities:       []realtime.Modality{realtime.ModalityAudio},
			InputAudioTranscription:  true,
			OutputAudioTranscription: true,
		},
		greeting: DefaultGreeting,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Start connects a new session and starts capturing the microphone once it
// is open. Cancelling ctx closes the session.
//
// Start fails with an error wrapping ErrConnect when the endpoint could not
// be reached and ErrPermission when the microphone could not be opened. In
// both cases nothing is left running and Start can be called again.
func (c *Controller) Start(ctx context.Context, opts ...SessionOption) (*Session, error) {
	ctx, span := tracer.Start(ctx, "start live session")
	defer span.End()

	session, err := c.start(ctx, opts...)
	outcome := "open"
	if err != nil {
		outcome = "failed"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.String("session.id", session.ID()))
	}
	sessionCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))

	return session, err
}

func (c *Controller) start(ctx context.Context, opts ...SessionOption) (*Session, error) {
	options := SessionOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrControllerClosed
	} else if c.active != nil {
		c.mu.Unlock()
		return nil, ErrSessionActive
	}
	session := newSession(ctx, c, options)
	c.active = session
	c.mu.Unlock()

	c.scheduler.Reset()
	session.transition(StateConnecting, nil)

	if c.connector == nil {
		err := fmt.Errorf("%w: no connector configured", ErrConnect)
		_ = session.shutdown(err)
		return nil, err
	}

	conn, err := c.connector.Connect(ctx, c.sessionConfig())
	if err != nil {
		if !errors.Is(err, ErrConnect) {
			err = fmt.Errorf("%w: %w", ErrConnect, err)
		}
		_ = session.shutdown(err)
		return nil, err
	}

	if err := session.open(conn); err != nil {
		return nil, err
	}

	if c.audioInput.IsConfigured() {
		if err := session.startCapture(c.audioInput); err != nil {
			_ = session.shutdown(err)
			return nil, err
		}
	}

	return session, nil
}

func (c *Controller) sessionConfig() realtime.SessionConfig {
	config := c.config
	config.ResponseModalities = append([]realtime.Modality(nil), c.config.ResponseModalities...)
	config.Tools = tools.Declarations()
	return config
}

// release frees the slot held by session so a new one can start.
func (c *Controller) release(session *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == session {
		c.active = nil
	}
}

// Active returns the session currently holding the controller, if any.
func (c *Controller) Active() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// CheckPermission probes the microphone without starting a session.
func (c *Controller) CheckPermission() error {
	if err := c.audioInput.CheckPermission(); err != nil {
		return fmt.Errorf("%w: %w", ErrPermission, err)
	}
	return nil
}

// Close ends the active session, if any, and releases the microphone. It is
// safe to call when nothing was ever started.
func (c *Controller) Close() error {
	var errs error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		active := c.active
		c.mu.Unlock()

		if active != nil {
			if err := active.Close(); err != nil {
				errs = errors.Join(errs, fmt.Errorf("failed to close session: %w", err))
			}
		}

		if err := c.audioInput.Close(); err != nil {
			errs = errors.Join(errs, fmt.Errorf("failed to close audio input: %w", err))
		}
		c.scheduler.Reset()
	})
	return errs
}
