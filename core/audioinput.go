package live

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/koscakluka/ema-live/core/audio"
)

var errNoAudioInput = errors.New("no audio input configured")

// audioInput turns whatever periods the configured client delivers into
// fixed-size encoded frames.
type audioInput struct {
	// base stores the configured input client used for streaming audio.
	base audioInputBase
	// fineCaptureControl is set when the input client supports explicit capture controls.
	fineCaptureControl AudioInputFine

	// connected reports whether a concrete input client is currently configured.
	connected atomic.Bool
	// isCapturing reports whether the input client is currently capturing audio.
	isCapturing atomic.Bool

	framer  *audio.Framer
	encoder *audio.Encoder

	// onChunk receives every encoded frame of the current capture.
	onChunk func(chunk audio.Chunk)
	// stopStream ends a capture started through the blocking Stream API.
	stopStream context.CancelFunc
	streamDone chan struct{}

	mu sync.Mutex
}

func newAudioInput(client audioInputBase) *audioInput {
	a := &audioInput{encoder: audio.NewEncoder(audio.CaptureEncodingInfo())}
	a.framer = audio.NewFramer(audio.CaptureFrameSize, a.onFrame)
	a.Set(client)
	return a
}

func (a *audioInput) Set(client audioInputBase) {
	if a == nil {
		return
	}

	a.base = client
	a.fineCaptureControl = nil
	a.connected.Store(false)
	a.isCapturing.Store(false)

	if client == nil {
		return
	}

	a.connected.Store(true)
	if fine, ok := client.(AudioInputFine); ok {
		a.fineCaptureControl = fine
	}

	if info := client.EncodingInfo(); !info.IsZero() && info.SampleRate != audio.CaptureSampleRate {
		logger.Warn("audio input does not capture at the rate sent to the endpoint",
			"input_rate", info.SampleRate, "sent_rate", audio.CaptureSampleRate)
	}
}

func (a *audioInput) IsConfigured() bool            { return a != nil && a.connected.Load() }
func (a *audioInput) SupportsCaptureControls() bool { return a != nil && a.fineCaptureControl != nil }
func (a *audioInput) IsCapturing() bool             { return a != nil && a.isCapturing.Load() }

// Capture starts delivering encoded frames to onChunk. Inputs with capture
// controls fail synchronously; a streaming input that fails after starting
// reports through onError.
func (a *audioInput) Capture(ctx context.Context, onChunk func(chunk audio.Chunk), onError func(error)) error {
	if !a.IsConfigured() {
		return errNoAudioInput
	}

	if !a.isCapturing.CompareAndSwap(false, true) {
		return nil
	}

	a.mu.Lock()
	a.onChunk = onChunk
	a.mu.Unlock()
	a.framer.Reset()

	if a.SupportsCaptureControls() {
		if err := a.fineCaptureControl.StartCapture(ctx, a.framer.Write); err != nil {
			a.isCapturing.Store(false)
			return fmt.Errorf("failed to start audio input: %w", err)
		}
		return nil
	}

	streamCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	a.mu.Lock()
	a.stopStream = cancel
	a.streamDone = done
	a.mu.Unlock()

	go func() {
		defer close(done)
		err := panicSafeNamedWorker("audio input", func(ctx context.Context) error {
			return a.base.Stream(ctx, a.framer.Write)
		})(streamCtx)
		a.isCapturing.Store(false)
		if err != nil && streamCtx.Err() == nil && onError != nil {
			// StopCapture waits on done, so onError may not block this worker.
			go onError(err)
		}
	}()
	return nil
}

// StopCapture returns once the input has stopped delivering audio. A frame
// that was only partly filled is dropped.
func (a *audioInput) StopCapture() error {
	if !a.IsConfigured() {
		return nil
	}

	var err error
	if a.SupportsCaptureControls() {
		if stopErr := a.fineCaptureControl.StopCapture(); stopErr != nil {
			err = fmt.Errorf("failed to stop audio input: %w", stopErr)
		}
	} else {
		a.mu.Lock()
		stop, done := a.stopStream, a.streamDone
		a.stopStream, a.streamDone = nil, nil
		a.mu.Unlock()

		if stop != nil {
			stop()
			<-done
		}
	}

	a.mu.Lock()
	a.onChunk = nil
	a.mu.Unlock()
	a.framer.Reset()
	a.isCapturing.Store(false)

	return err
}

func (a *audioInput) Close() error {
	if !a.IsConfigured() {
		return nil
	}

	err := a.StopCapture()
	a.base.Close()
	return err
}

// CheckPermission probes the microphone when the input supports it.
func (a *audioInput) CheckPermission() error {
	if !a.IsConfigured() {
		return errNoAudioInput
	}

	checker, ok := a.base.(PermissionChecker)
	if !ok {
		return nil
	}
	return checker.CheckPermission()
}

func (a *audioInput) EncodingInfo() audio.EncodingInfo {
	if a == nil || a.base == nil {
		return audio.CaptureEncodingInfo()
	}

	return a.base.EncodingInfo()
}

func (a *audioInput) onFrame(samples []float32) {
	a.mu.Lock()
	onChunk := a.onChunk
	a.mu.Unlock()

	if onChunk != nil {
		onChunk(a.encoder.Encode(samples))
	}
}
