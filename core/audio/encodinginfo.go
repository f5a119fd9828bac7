package audio

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// CaptureSampleRate is the rate microphone audio is sent to the endpoint at.
	CaptureSampleRate = 16000
	// PlaybackSampleRate is the rate synthesized speech arrives at.
	PlaybackSampleRate = 24000
	// CaptureFrameSize is the number of samples in a single outbound frame.
	CaptureFrameSize = 4096
)

func CaptureEncodingInfo() EncodingInfo {
	return EncodingInfo{SampleRate: CaptureSampleRate, Channels: 1, Format: EncodingLinear16}
}

func PlaybackEncodingInfo() EncodingInfo {
	return EncodingInfo{SampleRate: PlaybackSampleRate, Channels: 1, Format: EncodingLinear16}
}

type EncodingInfo struct {
	SampleRate int
	Channels   int
	Format     encodingFormat
}

func (e EncodingInfo) IsZero() bool {
	return e.SampleRate == 0 || e.Format.Name() == ""
}

func (e EncodingInfo) channels() int {
	if e.Channels <= 0 {
		return 1
	}
	return e.Channels
}

// BytesPerFrame is the size of one sample across all channels.
func (e EncodingInfo) BytesPerFrame() int {
	return e.Format.ByteSize() * e.channels()
}

// Duration reports how long byteCount bytes of audio play for.
func (e EncodingInfo) Duration(byteCount int) time.Duration {
	bytesPerFrame := e.BytesPerFrame()
	if bytesPerFrame <= 0 || e.SampleRate <= 0 {
		return 0
	}

	frames := byteCount / bytesPerFrame
	return time.Duration(frames) * time.Second / time.Duration(e.SampleRate)
}

// MIMEType renders the encoding the way the streaming endpoint labels raw
// PCM, for example "audio/pcm;rate=16000".
func (e EncodingInfo) MIMEType() string {
	return fmt.Sprintf("audio/pcm;rate=%d", e.SampleRate)
}

// ParseMIMEType reads the sample rate out of an "audio/pcm;rate=N" label.
// Labels without a rate keep the fallback's rate.
func ParseMIMEType(mimeType string, fallback EncodingInfo) (EncodingInfo, error) {
	parts := strings.Split(mimeType, ";")
	base := strings.TrimSpace(strings.ToLower(parts[0]))
	if base != "audio/pcm" && base != "audio/l16" {
		return EncodingInfo{}, fmt.Errorf("%w: unsupported mime type %q", ErrDecode, mimeType)
	}

	info := fallback
	info.Format = EncodingLinear16
	for _, param := range parts[1:] {
		key, value, ok := strings.Cut(strings.TrimSpace(param), "=")
		if !ok || strings.ToLower(key) != "rate" {
			continue
		}

		rate, err := strconv.Atoi(value)
		if err != nil || rate <= 0 {
			return EncodingInfo{}, fmt.Errorf("%w: invalid sample rate in %q", ErrDecode, mimeType)
		}
		info.SampleRate = rate
	}

	return info, nil
}

type encodingFormat string

func (e encodingFormat) Name() string {
	return string(e)
}

func (e encodingFormat) ByteSize() int {
	switch e {
	case EncodingLinear16:
		return 2
	case EncodingFloat32:
		return 4
	}
	return -1
}

const (
	EncodingLinear16 encodingFormat = "linear16"
	EncodingFloat32  encodingFormat = "float32"
)
