package playback

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/koscakluka/ema-live/core/audio"
)

// Timeline is a software mixer. Time advances only as an output device
// pulls rendered PCM through [Timeline.Read], so the clock always matches
// what has actually been played.
type Timeline struct {
	encoding audio.EncodingInfo

	position int64 // frames rendered so far
	sources  []*timelineSource

	mu sync.Mutex
}

type timelineSource struct {
	timeline   *Timeline
	startFrame int64
	samples    []int16
	onEnded    func()
}

func (s *timelineSource) frames() int64 {
	return int64(len(s.samples) / s.timeline.channels())
}

func (s *timelineSource) endFrame() int64 {
	return s.startFrame + s.frames()
}

func NewTimeline(encoding audio.EncodingInfo) *Timeline {
	if encoding.IsZero() {
		encoding = audio.PlaybackEncodingInfo()
	}
	return &Timeline{encoding: encoding}
}

func (t *Timeline) Encoding() audio.EncodingInfo { return t.encoding }

func (t *Timeline) channels() int {
	return max(1, t.encoding.Channels)
}

func (t *Timeline) Now() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.framesToDuration(t.position)
}

func (t *Timeline) framesToDuration(frames int64) time.Duration {
	return time.Duration(frames * int64(time.Second) / int64(t.encoding.SampleRate))
}

// durationToFrames rounds to the nearest frame so that positions produced
// by adding buffer durations land back on exact frame boundaries.
func (t *Timeline) durationToFrames(d time.Duration) int64 {
	return (int64(d)*int64(t.encoding.SampleRate) + int64(time.Second)/2) / int64(time.Second)
}

func (t *Timeline) Start(buffer audio.Buffer, at time.Duration, onEnded func()) (Source, error) {
	if buffer.Encoding.SampleRate != t.encoding.SampleRate {
		return nil, fmt.Errorf("sample rate %d does not match output rate %d", buffer.Encoding.SampleRate, t.encoding.SampleRate)
	}
	if max(1, buffer.Encoding.Channels) != t.channels() {
		return nil, fmt.Errorf("channel count %d does not match output channel count %d", buffer.Encoding.Channels, t.channels())
	}
	if onEnded == nil {
		onEnded = func() {}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	source := &timelineSource{
		timeline:   t,
		startFrame: max(t.durationToFrames(at), t.position),
		samples:    buffer.Samples,
		onEnded:    onEnded,
	}
	t.sources = append(t.sources, source)
	return source, nil
}

func (s *timelineSource) Stop() {
	t := s.timeline
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, source := range t.sources {
		if source == s {
			t.sources = append(t.sources[:i], t.sources[i+1:]...)
			return
		}
	}
}

// Read renders the next len(p) bytes of 16-bit little-endian PCM. Gaps
// between sources are silence. Ended callbacks fire after the samples that
// finish a source have been rendered.
func (t *Timeline) Read(p []byte) (int, error) {
	bytesPerFrame := 2 * t.channels()
	frameCount := int64(len(p) / bytesPerFrame)
	n := int(frameCount) * bytesPerFrame

	t.mu.Lock()
	windowStart := t.position
	windowEnd := windowStart + frameCount

	mix := make([]int32, int(frameCount)*t.channels())
	var finished []func()
	remaining := t.sources[:0]
	for _, source := range t.sources {
		from := max(source.startFrame, windowStart)
		to := min(source.endFrame(), windowEnd)
		for frame := from; frame < to; frame++ {
			for channel := range t.channels() {
				sample := source.samples[int(frame-source.startFrame)*t.channels()+channel]
				mix[int(frame-windowStart)*t.channels()+channel] += int32(sample)
			}
		}

		if source.endFrame() <= windowEnd {
			finished = append(finished, source.onEnded)
			continue
		}
		remaining = append(remaining, source)
	}
	clear(t.sources[len(remaining):])
	t.sources = remaining
	t.position = windowEnd
	t.mu.Unlock()

	for i, value := range mix {
		binary.LittleEndian.PutUint16(p[i*2:], uint16(int16(max(-0x8000, min(0x7FFF, value)))))
	}

	for _, onEnded := range finished {
		onEnded()
	}

	return n, nil
}

// ActiveSources reports how many sources are still waiting to finish.
func (t *Timeline) ActiveSources() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sources)
}
