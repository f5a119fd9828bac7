package live

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/koscakluka/ema-live/core/audio"
	"github.com/koscakluka/ema-live/core/events"
	"github.com/koscakluka/ema-live/core/realtime"
)

type testConnector struct {
	conn     *testConnection
	err      error
	configs  []realtime.SessionConfig
	connects atomic.Int32
	mu       sync.Mutex
}

func (c *testConnector) Connect(_ context.Context, config realtime.SessionConfig) (realtime.Connection, error) {
	c.connects.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.configs = append(c.configs, config)
	if c.err != nil {
		return nil, c.err
	}
	if c.conn == nil || c.conn.isClosed() {
		c.conn = newTestConnection()
	}
	return c.conn, nil
}

func (c *testConnector) connection() *testConnection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

type testConnection struct {
	incoming chan realtime.ServerMessage
	// end makes Listen return the given error.
	end    chan error
	closed chan struct{}

	closeOnce  sync.Once
	closeCalls atomic.Int32

	audio     []audio.Chunk
	responses [][]realtime.ToolResult
	gotResult chan struct{}
	mu        sync.Mutex
}

func newTestConnection() *testConnection {
	return &testConnection{
		incoming:  make(chan realtime.ServerMessage, 32),
		end:       make(chan error, 1),
		closed:    make(chan struct{}),
		gotResult: make(chan struct{}, 8),
	}
}

func (c *testConnection) SendRealtimeAudio(_ context.Context, chunk audio.Chunk) error {
	if c.isClosed() {
		return realtime.ErrClosed
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.audio = append(c.audio, chunk)
	return nil
}

func (c *testConnection) SendToolResponse(_ context.Context, results []realtime.ToolResult) error {
	if c.isClosed() {
		return realtime.ErrClosed
	}
	c.mu.Lock()
	c.responses = append(c.responses, results)
	c.mu.Unlock()
	c.gotResult <- struct{}{}
	return nil
}

func (c *testConnection) Listen(ctx context.Context, onMessage func(realtime.ServerMessage)) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.closed:
			return nil
		case err := <-c.end:
			return err
		case message := <-c.incoming:
			onMessage(message)
		}
	}
}

func (c *testConnection) Close() error {
	c.closeCalls.Add(1)
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *testConnection) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *testConnection) send(message realtime.ServerMessage) { c.incoming <- message }

func (c *testConnection) sentAudio() []audio.Chunk {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]audio.Chunk(nil), c.audio...)
}

func (c *testConnection) toolResponses() [][]realtime.ToolResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]realtime.ToolResult(nil), c.responses...)
}

func (c *testConnection) awaitToolResponse(t *testing.T) []realtime.ToolResult {
	t.Helper()

	select {
	case <-c.gotResult:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for a tool response")
	}
	responses := c.toolResponses()
	return responses[len(responses)-1]
}

type testCaptureInput struct {
	startErr error
	// onStart runs before the capture is started.
	onStart func()

	onSamples  func([]float32)
	startCalls atomic.Int32
	stopCalls  atomic.Int32
	closeCalls atomic.Int32
	mu         sync.Mutex
}

func (c *testCaptureInput) EncodingInfo() audio.EncodingInfo { return audio.CaptureEncodingInfo() }

func (c *testCaptureInput) Stream(context.Context, func([]float32)) error {
	return errors.New("streaming not supported")
}

func (c *testCaptureInput) Close() { c.closeCalls.Add(1) }

func (c *testCaptureInput) StartCapture(_ context.Context, onSamples func([]float32)) error {
	c.startCalls.Add(1)
	if c.onStart != nil {
		c.onStart()
	}
	if c.startErr != nil {
		return c.startErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onSamples = onSamples
	return nil
}

func (c *testCaptureInput) StopCapture() error {
	c.stopCalls.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onSamples = nil
	return nil
}

func (c *testCaptureInput) capturing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.onSamples != nil
}

// speak delivers samples as the device callback would.
func (c *testCaptureInput) speak(samples []float32) {
	c.mu.Lock()
	onSamples := c.onSamples
	c.mu.Unlock()
	if onSamples != nil {
		onSamples(samples)
	}
}

type testStreamInput struct {
	err           error
	permissionErr error
	streamCalls   atomic.Int32
	probes        atomic.Int32
	stopped       atomic.Int32
}

func (c *testStreamInput) CheckPermission() error {
	c.probes.Add(1)
	return c.permissionErr
}

func (c *testStreamInput) EncodingInfo() audio.EncodingInfo { return audio.CaptureEncodingInfo() }

func (c *testStreamInput) Stream(ctx context.Context, onSamples func([]float32)) error {
	c.streamCalls.Add(1)
	if c.err != nil {
		return c.err
	}
	onSamples(make([]float32, audio.CaptureFrameSize))
	<-ctx.Done()
	c.stopped.Add(1)
	return nil
}

func (c *testStreamInput) Close() {}

type eventRecorder struct {
	events []events.Event
	mu     sync.Mutex
}

func (r *eventRecorder) record(event events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *eventRecorder) snapshot() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Event(nil), r.events...)
}

func (r *eventRecorder) ofKind(kind events.Kind) []events.Event {
	var matching []events.Event
	for _, event := range r.snapshot() {
		if event.Kind() == kind {
			matching = append(matching, event)
		}
	}
	return matching
}

func (r *eventRecorder) awaitKind(t *testing.T, kind events.Kind, count int) []events.Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if matching := r.ofKind(kind); len(matching) >= count {
			return matching
		}
		time.Sleep(5 * time.Millisecond)
	}

	t.Fatalf("expected %d %q events, got %d", count, kind, len(r.ofKind(kind)))
	return nil
}

func awaitDone(t *testing.T, session *Session) {
	t.Helper()

	select {
	case <-session.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("session did not finish, state %s", session.State())
	}
}

func pcmPayload(samples int) realtime.AudioPayload {
	return realtime.AudioPayload{
		MIMEType: "audio/pcm;rate=24000",
		Data:     base64.StdEncoding.EncodeToString(make([]byte, samples*2)),
	}
}
