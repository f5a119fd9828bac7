package audio

import (
	"encoding/binary"
	"math"
)

// EncodeFloat32 converts normalized float samples to 16-bit little-endian
// PCM. Samples outside [-1, 1] are clamped first.
func EncodeFloat32(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, sample := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(float32ToInt16(sample)))
	}
	return out
}

func float32ToInt16(sample float32) int16 {
	if math.IsNaN(float64(sample)) {
		return 0
	}

	s := max(-1, min(1, sample))
	if s < 0 {
		return int16(s * 0x8000)
	}
	return int16(s * 0x7FFF)
}

// Encoder turns capture frames into chunks for the endpoint.
type Encoder struct {
	encoding EncodingInfo
}

func NewEncoder(encoding EncodingInfo) *Encoder {
	if encoding.IsZero() {
		encoding = CaptureEncodingInfo()
	}
	return &Encoder{encoding: encoding}
}

func (e *Encoder) Encode(samples []float32) Chunk {
	return NewChunk(EncodeFloat32(samples), e.encoding)
}

// DecodeFloat32LE reads little-endian IEEE 754 samples as delivered by
// float capture devices. Trailing partial samples are ignored.
func DecodeFloat32LE(data []byte) []float32 {
	samples := make([]float32, len(data)/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return samples
}
