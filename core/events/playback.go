package events

import "time"

const (
	// KindPlaybackScheduled identifies a speech buffer placed on the output timeline.
	KindPlaybackScheduled Kind = "playback.scheduled"
	// KindPlaybackInterrupted identifies playback cut short by the user talking over it.
	KindPlaybackInterrupted Kind = "playback.interrupted"
	// KindPlaybackDecodeFailed identifies an inbound audio payload that was dropped.
	KindPlaybackDecodeFailed Kind = "playback.decode_failed"
)

// PlaybackScheduled carries where a buffer landed on the timeline.
type PlaybackScheduled struct {
	Base
	StartAt  time.Duration
	Duration time.Duration
}

// NewPlaybackScheduled creates a playback scheduled event.
func NewPlaybackScheduled(startAt, duration time.Duration) PlaybackScheduled {
	return PlaybackScheduled{Base: NewBase(KindPlaybackScheduled), StartAt: startAt, Duration: duration}
}

// PlaybackInterrupted carries how many sources were stopped.
type PlaybackInterrupted struct {
	Base
	Stopped int
}

// NewPlaybackInterrupted creates a playback interrupted event.
func NewPlaybackInterrupted(stopped int) PlaybackInterrupted {
	return PlaybackInterrupted{Base: NewBase(KindPlaybackInterrupted), Stopped: stopped}
}

// PlaybackDecodeFailed carries the reason a payload was dropped.
type PlaybackDecodeFailed struct {
	Base
	Error string
}

// NewPlaybackDecodeFailed creates a playback decode failed event.
func NewPlaybackDecodeFailed(err string) PlaybackDecodeFailed {
	return PlaybackDecodeFailed{Base: NewBase(KindPlaybackDecodeFailed), Error: err}
}
