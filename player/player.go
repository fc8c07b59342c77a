// Package player decodes streamed PCM chunks and schedules them for
// gapless playback against a hardware output clock.
package player

import (
	"errors"
	"log"

	"github.com/tmc/wordjam/internal/helpers"
)

// Playback timing defaults, in seconds.
const (
	// DefaultBufferTime is the pre-roll collected before playback starts.
	DefaultBufferTime = 0.5

	// DefaultRampTime is the linear gain ramp applied on start, pause and stop.
	DefaultRampTime = 0.2

	// maxLeadTime bounds how far ahead of the output clock buffers may be
	// queued. Chunks beyond it are dropped rather than held indefinitely.
	maxLeadTime = 15.0
)

// Errors reported by the decode and scheduling layers. All of them are
// recoverable; none should take the session down.
var (
	ErrEmptyPayload = errors.New("empty audio payload")
	ErrEmptyBuffer  = errors.New("empty audio buffer")
	ErrUnderrun     = errors.New("playback underrun")
	ErrAheadLimit   = errors.New("scheduling ahead limit reached")
)

// Format describes the PCM layout of a stream.
type Format struct {
	SampleRate int
	Channels   int
}

// DefaultFormat matches the output of the music generation service.
var DefaultFormat = Format{SampleRate: 48000, Channels: 2}

// Buffer holds one decoded chunk as de-interleaved samples in [-1, 1],
// one slice per channel, all of equal length.
type Buffer struct {
	Format Format
	Data   [][]float32
}

// Frames returns the number of sample frames in the buffer.
func (b *Buffer) Frames() int {
	if b == nil || len(b.Data) == 0 {
		return 0
	}
	return len(b.Data[0])
}

// Duration returns the buffer's play time in seconds.
func (b *Buffer) Duration() float64 {
	if b == nil || b.Format.SampleRate == 0 {
		return 0
	}
	return float64(b.Frames()) / float64(b.Format.SampleRate)
}

// Output is a clocked audio destination. Implementations must be safe for
// use from the UI goroutine while a render goroutine drains the lines.
type Output interface {
	// Now returns the position of the output clock in seconds.
	Now() float64

	// NewLine returns a fresh output line at zero gain.
	NewLine() Line

	Close() error
}

// Line is one gain-controlled path into an Output. Replacing the line is
// how callers guarantee buffers queued on it can never be heard again.
type Line interface {
	// ScheduleAt queues b to begin playing at the given clock time.
	ScheduleAt(b *Buffer, when float64)

	// Fade ramps the line gain linearly to target over the given seconds.
	Fade(target, over float64)

	// Detach retires the line once any running fade completes. A detached
	// line accepts no further buffers, and whatever is still queued is
	// dropped when it goes silent.
	Detach()
}

// Scheduler lines decoded buffers up back-to-back on an Output so playback
// stays gapless as long as chunks arrive faster than they are consumed.
// It is not safe for concurrent use; the UI event loop owns it.
type Scheduler struct {
	out        Output
	line       Line
	bufferTime float64
	rampTime   float64
	next       float64 // clock time of the next buffer start; 0 = unprimed
	rec        *Recorder
}

// NewScheduler creates a scheduler over out with the given pre-roll in
// seconds. A non-positive pre-roll selects DefaultBufferTime.
func NewScheduler(out Output, bufferTime float64) *Scheduler {
	if bufferTime <= 0 {
		bufferTime = DefaultBufferTime
	}
	return &Scheduler{
		out:        out,
		line:       out.NewLine(),
		bufferTime: bufferTime,
		rampTime:   DefaultRampTime,
	}
}

// BufferTime returns the configured pre-roll in seconds.
func (s *Scheduler) BufferTime() float64 {
	return s.bufferTime
}

// NextStartTime returns the clock time the next buffer would start at,
// or 0 when the clock is unprimed.
func (s *Scheduler) NextStartTime() float64 {
	return s.next
}

// Schedule queues b for gapless playback. It returns primed=true when this
// call primed the clock, in which case the caller should arm its pre-roll
// timer. ErrUnderrun means the clock fell behind real time: the buffer is
// dropped, the clock is reset, and the caller should fall back to its
// loading state. ErrAheadLimit means the queue is already maxLeadTime ahead
// of the clock; the buffer is dropped and the clock is left untouched.
func (s *Scheduler) Schedule(b *Buffer) (primed bool, err error) {
	if b.Frames() == 0 {
		return false, ErrEmptyBuffer
	}

	now := s.out.Now()
	if s.next == 0 {
		s.next = now + s.bufferTime
		primed = true
	} else if s.next < now {
		s.next = 0
		return false, ErrUnderrun
	}

	if s.next-now > maxLeadTime {
		return primed, ErrAheadLimit
	}

	s.line.ScheduleAt(b, s.next)
	s.next += b.Duration()

	if s.rec != nil {
		if err := s.rec.Write(b); err != nil {
			log.Printf("Warning: recording failed: %v", err)
			s.rec = nil
		}
	}
	return primed, nil
}

// Reset clears the clock so the next Schedule call re-primes.
func (s *Scheduler) Reset() {
	s.next = 0
}

// RampUp fades the current line in. Called on play and resume.
func (s *Scheduler) RampUp() {
	s.line.Fade(1, s.rampTime)
}

// RampDown fades the current line out, retires it, and swaps in a fresh
// line so buffers queued against the old one cannot leak into a restarted
// session. The clock resets with it. Called on pause, stop and errors.
func (s *Scheduler) RampDown() {
	s.line.Fade(0, s.rampTime)
	s.line.Detach()
	s.line = s.out.NewLine()
	s.next = 0
	if helpers.IsAudioTraceEnabled() {
		log.Printf("[AUDIO_PIPE] Scheduler: line replaced, clock reset")
	}
}

// Record tees every successfully scheduled buffer into r. Pass nil to stop.
func (s *Scheduler) Record(r *Recorder) {
	s.rec = r
}
