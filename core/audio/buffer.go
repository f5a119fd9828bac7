package audio

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// ErrDecode reports an inbound audio payload that cannot be turned into
// playable samples.
var ErrDecode = errors.New("malformed audio payload")

// Buffer holds decoded 16-bit samples ready for playback.
type Buffer struct {
	Samples  []int16
	Encoding EncodingInfo
}

func (b Buffer) Frames() int {
	return len(b.Samples) / b.Encoding.channels()
}

func (b Buffer) Duration() time.Duration {
	if b.Encoding.SampleRate <= 0 {
		return 0
	}
	return time.Duration(b.Frames()) * time.Second / time.Duration(b.Encoding.SampleRate)
}

// DecodePCM16 interprets raw bytes as little-endian 16-bit PCM.
func DecodePCM16(data []byte, encoding EncodingInfo) (Buffer, error) {
	if len(data) == 0 {
		return Buffer{}, fmt.Errorf("%w: empty payload", ErrDecode)
	}
	if len(data)%2 != 0 {
		return Buffer{}, fmt.Errorf("%w: odd byte count %d", ErrDecode, len(data))
	}
	if encoding.IsZero() {
		encoding = PlaybackEncodingInfo()
	}

	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}

	return Buffer{Samples: samples, Encoding: encoding}, nil
}

// DecodeBase64PCM16 decodes a base64 payload labelled with mimeType. An
// empty label means 24 kHz mono PCM.
func DecodeBase64PCM16(payload, mimeType string) (Buffer, error) {
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Buffer{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	encoding := PlaybackEncodingInfo()
	if mimeType != "" {
		if encoding, err = ParseMIMEType(mimeType, encoding); err != nil {
			return Buffer{}, err
		}
	}

	return DecodePCM16(data, encoding)
}
