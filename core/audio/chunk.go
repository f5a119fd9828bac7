package audio

// Chunk is one encoded frame of outbound audio. It is immutable once built
// and is handed to the transport exactly once.
type Chunk struct {
	data     []byte
	encoding EncodingInfo
}

func NewChunk(data []byte, encoding EncodingInfo) Chunk {
	return Chunk{data: data, encoding: encoding}
}

// Bytes returns the encoded payload. Callers must not modify it.
func (c Chunk) Bytes() []byte          { return c.data }
func (c Chunk) Len() int               { return len(c.data) }
func (c Chunk) Encoding() EncodingInfo { return c.encoding }
func (c Chunk) MIMEType() string       { return c.encoding.MIMEType() }
func (c Chunk) Stereo() bool           { return c.encoding.Channels > 1 }
func (c Chunk) SampleCount() int {
	bytesPerFrame := c.encoding.BytesPerFrame()
	if bytesPerFrame <= 0 {
		return 0
	}
	return len(c.data) / bytesPerFrame
}

