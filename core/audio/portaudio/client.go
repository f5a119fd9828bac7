// Package portaudio captures microphone audio through PortAudio. It is an
// alternative to the miniaudio backend for hosts where that one is not
// available; playback still goes through miniaudio.
package portaudio

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/koscakluka/ema-live/core/audio"
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

const scopeName = "github.com/koscakluka/ema-live/core/audio/portaudio"

var logger = otelslog.NewLogger(scopeName)

var ErrStreamClosed = errors.New("portaudio stream closed")

type Client struct {
	stream    *portaudio.Stream
	in        []float32
	streaming bool

	closeOnce sync.Once
	mu        sync.Mutex
}

// NewClient opens the default input device at the capture rate, reading
// periods of periodSize samples.
func NewClient(periodSize int) (*Client, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}

	in := make([]float32, periodSize)
	stream, err := portaudio.OpenDefaultStream(1, 0, audio.CaptureSampleRate, periodSize, in)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("failed to open PortAudio stream: %w", err)
	}

	return &Client{stream: stream, in: in}, nil
}

// Stream reads periods until ctx is done. onSamples receives a fresh slice
// for every period.
func (c *Client) Stream(ctx context.Context, onSamples func(samples []float32)) error {
	c.mu.Lock()
	if c.stream == nil {
		c.mu.Unlock()
		return ErrStreamClosed
	}
	if err := c.stream.Start(); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("failed to start PortAudio stream: %w", err)
	}
	c.streaming = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.streaming = false
		if c.stream != nil {
			_ = c.stream.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := c.read(); err != nil {
			if errors.Is(err, ErrStreamClosed) {
				return nil
			}
			if errors.Is(err, portaudio.InputOverflowed) {
				logger.Debug("PortAudio input overflowed")
			} else {
				return fmt.Errorf("failed to read from PortAudio stream: %w", err)
			}
		}

		samples := make([]float32, len(c.in))
		copy(samples, c.in)
		onSamples(samples)
	}
}

// CheckPermission starts and stops the input stream once so a front-end can
// tell whether the microphone is usable before starting a session. A stream
// that is already running needs no check.
func (c *Client) CheckPermission() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream == nil {
		return ErrStreamClosed
	} else if c.streaming {
		return nil
	}

	if err := c.stream.Start(); err != nil {
		return fmt.Errorf("failed to start PortAudio stream: %w", err)
	}
	if err := c.stream.Stop(); err != nil {
		return fmt.Errorf("failed to stop PortAudio stream: %w", err)
	}
	return nil
}

func (c *Client) read() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream == nil {
		return ErrStreamClosed
	}
	return c.stream.Read()
}

func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.stream != nil {
			_ = c.stream.Close()
			c.stream = nil
		}
		_ = portaudio.Terminate()
	})
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return audio.CaptureEncodingInfo()
}
