package live

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/koscakluka/ema-live/core/audio"
	"github.com/koscakluka/ema-live/core/events"
	"github.com/koscakluka/ema-live/core/playback"
	"github.com/koscakluka/ema-live/core/realtime"
	"github.com/koscakluka/ema-live/core/tools"
	"github.com/koscakluka/ema-live/core/transcripts"
	"github.com/koscakluka/ema-live/core/travel"
)

const toolBatchQueueCapacity = 16

// Session is one live conversation. Everything it reports to the caller is
// emitted from a single loop goroutine, in the order it happened.
type Session struct {
	id         string
	controller *Controller
	emit       eventEmitter
	onInput    func(chunk audio.Chunk)

	conn       realtime.Connection
	scheduler  *playback.Scheduler
	transcript *transcripts.Aggregator
	dispatcher *tools.Dispatcher

	ctx    context.Context
	cancel context.CancelFunc

	queue       *taskQueue
	toolBatches chan []realtime.ToolCall
	done        chan struct{}
	// ctxHookDone stops watching the context Start was called with.
	ctxHookDone chan struct{}

	sendEnabled atomic.Bool

	state State
	err   error
	mode  travel.ViewMode

	// Only touched on the loop.
	emittedMode travel.ViewMode
	thinking    bool
	finished    bool

	closeOnce sync.Once
	mu        sync.Mutex
	// captureMu orders starting the microphone against shutdown stopping it.
	captureMu sync.Mutex
}

func newSession(ctx context.Context, controller *Controller, opts SessionOptions) *Session {
	var initial []transcripts.Entry
	if controller.greeting != "" {
		initial = append(initial, transcripts.Entry{Speaker: transcripts.SpeakerAI, Text: controller.greeting, IsFinal: true})
	}

	s := &Session{
		id:          uuid.NewString(),
		controller:  controller,
		emit:        newCallbackEventEmitter(opts),
		onInput:     opts.onInputAudio,
		scheduler:   controller.scheduler,
		transcript:  transcripts.NewAggregator(initial...),
		queue:       newTaskQueue(),
		toolBatches: make(chan []realtime.ToolCall, toolBatchQueueCapacity),
		done:        make(chan struct{}),
		state:       StateIdle,
	}
	s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	s.dispatcher = tools.NewDispatcher(
		tools.WithFlightSearcher(controller.flights),
		tools.WithView(sessionView{session: s}),
		tools.WithEventCallback(func(event events.Event) {
			s.post(func() { s.emit(event) })
		}),
	)
	s.ctxHookDone = withContextCancelHook(ctx, func() { _ = s.Close() })

	go s.run()
	return s
}

func (s *Session) ID() string { return s.id }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the reason a failed session ended.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Done is closed once the session has ended and every event has been
// delivered.
func (s *Session) Done() <-chan struct{} { return s.done }

// ViewMode returns the mode the visual panel was last asked to show.
func (s *Session) ViewMode() travel.ViewMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

func (s *Session) Transcript() []transcripts.Entry { return s.transcript.Entries() }

// SendAudio forwards one encoded frame to the endpoint. It does nothing
// unless the session is open.
func (s *Session) SendAudio(chunk audio.Chunk) error {
	if !s.sendEnabled.Load() {
		return nil
	}

	if s.onInput != nil {
		s.onInput(chunk)
	}

	if err := s.conn.SendRealtimeAudio(s.ctx, chunk); err != nil {
		if errors.Is(err, realtime.ErrClosed) {
			return nil
		}
		return fmt.Errorf("failed to send audio: %w", err)
	}

	framesSentCounter.Add(s.ctx, 1)
	return nil
}

func (s *Session) sendCaptured(chunk audio.Chunk) {
	if err := s.SendAudio(chunk); err != nil {
		logger.Debug("dropped microphone frame", "session_id", s.id, "error", err)
	}
}

// Close ends the session. Capture, playback and the connection are released
// before it returns; the remaining events are delivered asynchronously and
// Done is closed after the last one. Close is safe to call more than once
// and in any state.
func (s *Session) Close() error {
	return s.shutdown(nil)
}

func (s *Session) transition(to State, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	from := s.state
	s.state = to
	s.queue.push(func() { s.emit(events.NewSessionStateChanged(s.id, from.String(), to.String(), err)) })
}

// open moves a connecting session to open and starts its workers. It fails
// if the session was closed while the connection was being established.
func (s *Session) open(conn realtime.Connection) error {
	s.mu.Lock()
	if s.state != StateConnecting {
		s.mu.Unlock()
		_ = conn.Close()
		return fmt.Errorf("%w: session closed while connecting", ErrConnect)
	}
	s.conn = conn
	s.mu.Unlock()

	s.transition(StateOpen, nil)
	s.sendEnabled.Store(true)

	if entries := s.transcript.Entries(); len(entries) > 0 {
		s.post(func() { s.emit(events.NewTranscriptUpdated(entries)) })
	}
	s.setViewMode(travel.ViewModeSearch)

	go s.watch(panicSafeNamedWorker("listen", s.listen))
	go s.watch(panicSafeNamedWorker("tools", s.runTools))

	return nil
}

// startCapture starts the microphone for an open session. It fails with
// ErrConnect once the session has started shutting down, so a capture is
// never started that shutdown would not stop.
func (s *Session) startCapture(input *audioInput) error {
	s.captureMu.Lock()
	defer s.captureMu.Unlock()

	if s.State() != StateOpen {
		return fmt.Errorf("%w: session closed while starting capture", ErrConnect)
	}

	onError := func(err error) {
		_ = s.shutdown(fmt.Errorf("%w: %w", ErrPermission, err))
	}
	if err := input.Capture(s.ctx, s.sendCaptured, onError); err != nil {
		return fmt.Errorf("%w: %w", ErrPermission, err)
	}
	return nil
}

// watch ends the session when a worker stops on its own.
func (s *Session) watch(run workerRun) {
	err := run(s.ctx)
	if s.ctx.Err() != nil {
		return
	}

	if err == nil {
		err = fmt.Errorf("%w: connection ended", ErrRemoteClosed)
	}
	_ = s.shutdown(err)
}

func (s *Session) listen(ctx context.Context) error {
	return s.conn.Listen(ctx, func(message realtime.ServerMessage) {
		s.post(func() { s.handleMessage(message) })
	})
}

func (s *Session) runTools(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case calls := <-s.toolBatches:
			if _, err := s.dispatcher.Dispatch(ctx, calls, s.ViewMode(), s.conn); err != nil && ctx.Err() == nil {
				logger.Warn("failed to respond to tool calls", "session_id", s.id, "error", err)
			}
		}
	}
}

func (s *Session) shutdown(cause error) error {
	var err error
	s.closeOnce.Do(func() {
		s.sendEnabled.Store(false)

		s.mu.Lock()
		from := s.state
		s.state = StateClosing
		conn := s.conn
		s.mu.Unlock()

		if from == StateOpen {
			s.captureMu.Lock()
			if stopErr := s.controller.audioInput.StopCapture(); stopErr != nil {
				err = errors.Join(err, stopErr)
			}
			s.captureMu.Unlock()
		}
		if stopped := s.scheduler.Interrupt(); stopped > 0 {
			logger.Debug("stopped playback on session end", "session_id", s.id, "sources", stopped)
		}

		s.cancel()
		if conn != nil {
			if closeErr := conn.Close(); closeErr != nil {
				err = errors.Join(err, fmt.Errorf("failed to close connection: %w", closeErr))
			}
		}
		s.controller.release(s)

		s.queue.push(func() { s.finish(from, cause) })
	})
	return err
}

func (s *Session) finish(from State, cause error) {
	if entries, changed := s.transcript.FinalizeAll(); changed {
		s.emit(events.NewTranscriptUpdated(entries))
	}
	if s.thinking {
		s.thinking = false
		s.emit(events.NewViewThinkingChanged(false))
	}

	final := StateClosed
	if cause != nil && !errors.Is(cause, ErrRemoteClosed) {
		final = StateFailed
	}

	s.mu.Lock()
	s.state = final
	if final == StateFailed {
		s.err = cause
	}
	s.mu.Unlock()

	if from == StateOpen {
		s.emit(events.NewSessionStateChanged(s.id, from.String(), StateClosing.String(), nil))
		from = StateClosing
	}
	s.emit(events.NewSessionStateChanged(s.id, from.String(), final.String(), cause))
	s.emit(events.NewSessionEnded(s.id, cause))

	if cause != nil {
		logger.Info("session ended", "session_id", s.id, "state", final.String(), "error", cause)
	} else {
		logger.Info("session ended", "session_id", s.id, "state", final.String())
	}

	s.finished = true
	s.queue.close()
	close(s.ctxHookDone)
}

func (s *Session) run() {
	defer close(s.done)

	for {
		<-s.queue.ready
		for _, task := range s.queue.drain() {
			s.runTask(task)
			if s.finished {
				return
			}
		}
	}
}

func (s *Session) runTask(task func()) {
	defer func() {
		if recovered := recover(); recovered != nil {
			logger.Error("session event handler panicked", "session_id", s.id, "panic", fmt.Sprint(recovered))
		}
	}()
	task()
}

// post queues work for the loop. It is skipped if the session is no longer
// open by the time the loop gets to it.
func (s *Session) post(task func()) {
	s.queue.push(func() {
		if s.State() != StateOpen {
			return
		}
		task()
	})
}

func (s *Session) handleMessage(message realtime.ServerMessage) {
	if message.InputTranscript != "" {
		s.emit(events.NewTranscriptUpdated(s.transcript.Append(transcripts.SpeakerUser, message.InputTranscript, false)))
	}
	if message.HasModelOutput() {
		if entries, changed := s.transcript.Finalize(transcripts.SpeakerUser); changed {
			s.emit(events.NewTranscriptUpdated(entries))
		}
	}
	if message.OutputTranscript != "" {
		s.emit(events.NewTranscriptUpdated(s.transcript.Append(transcripts.SpeakerAI, message.OutputTranscript, false)))
	}

	for _, payload := range message.Audio {
		s.schedule(payload)
	}

	if message.Interrupted {
		stopped := s.scheduler.Interrupt()
		s.emit(events.NewPlaybackInterrupted(stopped))
	}

	if len(message.ToolCalls) > 0 {
		select {
		case s.toolBatches <- message.ToolCalls:
		case <-s.ctx.Done():
		}
	}

	if message.TurnComplete {
		if entries, changed := s.transcript.FinalizeAll(); changed {
			s.emit(events.NewTranscriptUpdated(entries))
		}
	}

	if message.GoAway != nil {
		logger.Info("endpoint announced disconnect", "session_id", s.id, "time_left", message.GoAway.String())
		s.emit(events.NewSessionGoAway(s.id, *message.GoAway))
	}
}

func (s *Session) schedule(payload realtime.AudioPayload) {
	buffer, err := audio.DecodeBase64PCM16(payload.Data, payload.MIMEType)
	if err != nil {
		s.dropAudio(err)
		return
	}

	startAt, err := s.scheduler.Schedule(buffer)
	if errors.Is(err, playback.ErrNoOutput) {
		logger.Debug("no playback output configured, dropping speech", "session_id", s.id)
		return
	} else if err != nil {
		s.dropAudio(err)
		return
	}

	s.emit(events.NewPlaybackScheduled(startAt, buffer.Duration()))
}

func (s *Session) dropAudio(err error) {
	decodeFailureCounter.Add(s.ctx, 1)
	logger.Warn("dropped inbound audio", "session_id", s.id, "error", err)
	s.emit(events.NewPlaybackDecodeFailed(err.Error()))
}

func (s *Session) setViewMode(mode travel.ViewMode) {
	s.mu.Lock()
	s.mode = mode
	s.mu.Unlock()

	s.post(func() {
		if mode == s.emittedMode {
			return
		}
		s.emittedMode = mode
		s.emit(events.NewViewModeChanged(mode))
	})
}

// sessionView applies the visual side effects of tool batches on the
// session loop.
type sessionView struct {
	session *Session
}

func (v sessionView) SetThinking(thinking bool) {
	v.session.post(func() {
		if thinking == v.session.thinking {
			return
		}
		v.session.thinking = thinking
		v.session.emit(events.NewViewThinkingChanged(thinking))
	})
}

func (v sessionView) SetViewMode(mode travel.ViewMode) { v.session.setViewMode(mode) }

func (v sessionView) ShowPayload(payload travel.VisualPayload) {
	v.session.post(func() { v.session.emit(events.NewViewPayloadUpdated(payload)) })
}
