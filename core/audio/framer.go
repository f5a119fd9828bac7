package audio

import "sync"

// Framer regroups device periods of arbitrary size into fixed size frames.
// Each full frame is handed to onFrame synchronously on the caller's
// goroutine; nothing is queued beyond the partial tail.
type Framer struct {
	size    int
	onFrame func(samples []float32)

	pending []float32
	mu      sync.Mutex
}

func NewFramer(size int, onFrame func(samples []float32)) *Framer {
	if size <= 0 {
		size = CaptureFrameSize
	}
	if onFrame == nil {
		onFrame = func([]float32) {}
	}

	return &Framer{size: size, onFrame: onFrame, pending: make([]float32, 0, size)}
}

func (f *Framer) Write(samples []float32) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for len(samples) > 0 {
		n := min(f.size-len(f.pending), len(samples))
		f.pending = append(f.pending, samples[:n]...)
		samples = samples[n:]

		if len(f.pending) == f.size {
			frame := f.pending
			f.pending = make([]float32, 0, f.size)
			f.onFrame(frame)
		}
	}
}

// Reset drops any partial frame.
func (f *Framer) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = f.pending[:0]
}

func (f *Framer) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}
