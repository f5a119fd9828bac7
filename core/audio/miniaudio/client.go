// Package miniaudio captures microphone audio and plays synthesized speech
// through the default devices using miniaudio.
package miniaudio

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/gen2brain/malgo"
	"github.com/koscakluka/ema-live/core/audio"
)

var ErrNotInitialized = errors.New("device not initialized")

type Client struct {
	// audioContext is only saved to be able to uninitialize it, it is an
	// ownership thing
	audioContext *malgo.AllocatedContext
	playbackClient
	captureClient
}

// NewClient opens the default capture device at the capture rate. When
// source is not nil the default playback device is opened as well and
// pulls its samples from source, typically a playback.Timeline.
func NewClient(source io.Reader) (*Client, error) {
	audioCtx, err := malgo.InitContext(
		nil,
		malgo.ContextConfig{},
		func(message string) { logger.Debug("malgo", "message", message) },
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}

	client := Client{audioContext: audioCtx}

	if err := client.captureClient.Init(audioCtx); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to initialize capture client: %w", err)
	}

	if source != nil {
		if err := client.playbackClient.Init(audioCtx, source); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to initialize playback client: %w", err)
		}

		if err := client.playbackClient.Start(); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to start playback device: %w", err)
		}
	}

	return &client, nil
}

// CheckPermission starts and immediately stops the capture device so a
// front-end can tell whether the microphone is usable before starting a
// session.
func (c *Client) CheckPermission() error {
	if err := c.captureClient.Start(nil); err != nil {
		return err
	}
	return c.captureClient.Stop()
}

// Stream captures until ctx is done.
func (c *Client) Stream(ctx context.Context, onSamples func(samples []float32)) error {
	if err := c.captureClient.Start(onSamples); err != nil {
		return err
	}
	<-ctx.Done()
	return c.captureClient.Stop()
}

func (c *Client) StartCapture(_ context.Context, onSamples func(samples []float32)) error {
	return c.captureClient.Start(onSamples)
}

func (c *Client) StopCapture() error {
	return c.captureClient.Stop()
}

func (c *Client) Close() {
	_ = c.captureClient.Uninit()
	_ = c.playbackClient.Uninit()
	if c.audioContext != nil {
		_ = c.audioContext.Uninit()
		c.audioContext.Free()
		c.audioContext = nil
	}
}

func (c *Client) EncodingInfo() audio.EncodingInfo {
	return audio.CaptureEncodingInfo()
}
