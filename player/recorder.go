package player

import (
	"fmt"
	"os"
	"sync"

	"github.com/tmc/wordjam/internal/helpers"
)

// Recorder tees scheduled audio into a WAV file. Buffers are written in
// schedule order, so the capture is the generated stream itself with any
// dropped or underrun chunks left out.
type Recorder struct {
	mu     sync.Mutex
	f      *os.File
	format Format
	size   int // PCM bytes written so far
	closed bool
}

// NewRecorder creates path and reserves space for the WAV header. The
// header is patched with the real data size on Close.
func NewRecorder(path string, f Format) (*Recorder, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create recording: %w", err)
	}
	if _, err := file.Write(helpers.CreateWavHeader(0, f.Channels, f.SampleRate, 16)); err != nil {
		file.Close()
		return nil, fmt.Errorf("write recording header: %w", err)
	}
	return &Recorder{f: file, format: f}, nil
}

// Write appends the buffer's samples as interleaved s16le PCM.
func (r *Recorder) Write(b *Buffer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return fmt.Errorf("recorder is closed")
	}

	frames := b.Frames()
	channels := r.format.Channels
	interleaved := make([]float32, frames*channels)
	for i := 0; i < frames; i++ {
		for c := 0; c < channels; c++ {
			if c < len(b.Data) {
				interleaved[i*channels+c] = b.Data[c][i]
			}
		}
	}

	pcm := helpers.Float32ToPCM16(interleaved)
	if _, err := r.f.Write(pcm); err != nil {
		return fmt.Errorf("write recording: %w", err)
	}
	r.size += len(pcm)
	return nil
}

// Close patches the WAV header with the final data size and closes the file.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	header := helpers.CreateWavHeader(r.size, r.format.Channels, r.format.SampleRate, 16)
	if _, err := r.f.WriteAt(header, 0); err != nil {
		r.f.Close()
		return fmt.Errorf("patch recording header: %w", err)
	}
	return r.f.Close()
}
