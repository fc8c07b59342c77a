package player

import (
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/tmc/wordjam/internal/helpers"
)

// renderQuantum is the number of frames mixed per stream write.
const renderQuantum = 1024

// Device renders scheduled buffers to the default output through PortAudio.
// A render goroutine mixes all live lines into fixed quanta and blocks on
// the stream write, so the render cursor is the playback clock.
type Device struct {
	format Format
	stream *portaudio.Stream
	buffer []float32 // interleaved render quantum, shared with the stream

	mu     sync.Mutex
	lines  []*deviceLine
	cursor int64 // frames rendered since start
	closed bool

	done    chan struct{}
	stopped chan struct{}
}

// NewDevice opens the default audio output for the given format and starts
// the render loop. Callers own the device and must Close it.
func NewDevice(f Format) (*Device, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %v", err)
	}

	d := &Device{
		format:  f,
		buffer:  make([]float32, renderQuantum*f.Channels),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}

	stream, err := portaudio.OpenDefaultStream(0, f.Channels, float64(f.SampleRate), renderQuantum, &d.buffer)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("open output stream: %v", err)
	}
	d.stream = stream

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("start output stream: %v", err)
	}

	go d.run()
	log.Printf("Audio device open: %d Hz, %d channels", f.SampleRate, f.Channels)
	return d, nil
}

// Now returns the render cursor position in seconds.
func (d *Device) Now() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return float64(d.cursor) / float64(d.format.SampleRate)
}

// NewLine registers a fresh output line at zero gain.
func (d *Device) NewLine() Line {
	d.mu.Lock()
	defer d.mu.Unlock()
	l := &deviceLine{dev: d}
	d.lines = append(d.lines, l)
	return l
}

// Close stops the render loop and releases the stream.
func (d *Device) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	close(d.done)
	err := d.stream.Stop()
	<-d.stopped
	if cerr := d.stream.Close(); err == nil {
		err = cerr
	}
	portaudio.Terminate()
	return err
}

func (d *Device) run() {
	defer close(d.stopped)
	for {
		select {
		case <-d.done:
			return
		default:
		}

		d.mix()
		if err := d.stream.Write(); err != nil {
			select {
			case <-d.done:
				return
			default:
			}
			// Underflows and other transient write errors; keep rendering.
			if helpers.IsAudioTraceEnabled() {
				log.Printf("[AUDIO_PIPE] Device write: %v", err)
			}
		}
	}
}

// mix renders one quantum from all live lines into the stream buffer and
// advances the cursor. Lines that are detached and fully faded are pruned.
func (d *Device) mix() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i := range d.buffer {
		d.buffer[i] = 0
	}

	start := d.cursor
	live := d.lines[:0]
	for _, l := range d.lines {
		l.mixInto(d.buffer, start, renderQuantum, d.format.Channels)
		if !l.finished(start + renderQuantum) {
			live = append(live, l)
		}
	}
	// Zero dropped tail entries so pruned lines can be collected.
	for i := len(live); i < len(d.lines); i++ {
		d.lines[i] = nil
	}
	d.lines = live

	d.cursor += renderQuantum
}

// deviceLine is one gain-enveloped path into the device mix.
type deviceLine struct {
	dev      *Device
	queue    []lineBuffer
	detached bool

	// Linear gain envelope. gainAt interpolates from gainFrom to gainTo
	// across [rampStart, rampStart+rampFrames).
	gainFrom   float64
	gainTo     float64
	rampStart  int64
	rampFrames int64
}

type lineBuffer struct {
	buf        *Buffer
	startFrame int64
}

// ScheduleAt queues b to start at the given clock time. Buffers arriving
// after Detach are dropped.
func (l *deviceLine) ScheduleAt(b *Buffer, when float64) {
	l.dev.mu.Lock()
	defer l.dev.mu.Unlock()
	if l.detached {
		return
	}
	start := int64(math.Round(when * float64(l.dev.format.SampleRate)))
	l.queue = append(l.queue, lineBuffer{buf: b, startFrame: start})
}

// Fade ramps the line gain linearly to target over the given seconds,
// starting from whatever the gain is right now.
func (l *deviceLine) Fade(target, over float64) {
	l.dev.mu.Lock()
	defer l.dev.mu.Unlock()
	cursor := l.dev.cursor
	l.gainFrom = l.gainAt(cursor)
	l.gainTo = target
	l.rampStart = cursor
	l.rampFrames = int64(over * float64(l.dev.format.SampleRate))
}

// Detach retires the line once its fade completes.
func (l *deviceLine) Detach() {
	l.dev.mu.Lock()
	defer l.dev.mu.Unlock()
	l.detached = true
}

// gainAt evaluates the envelope at an absolute frame position.
// Callers hold the device mutex.
func (l *deviceLine) gainAt(frame int64) float64 {
	if l.rampFrames <= 0 || frame >= l.rampStart+l.rampFrames {
		return l.gainTo
	}
	if frame <= l.rampStart {
		return l.gainFrom
	}
	t := float64(frame-l.rampStart) / float64(l.rampFrames)
	return l.gainFrom + (l.gainTo-l.gainFrom)*t
}

// mixInto adds the line's audible samples for [start, start+frames) into
// the interleaved out slice. Buffers entirely behind the cursor are
// released. Callers hold the device mutex.
func (l *deviceLine) mixInto(out []float32, start int64, frames int, channels int) {
	end := start + int64(frames)
	keep := l.queue[:0]
	for _, q := range l.queue {
		bufFrames := int64(q.buf.Frames())
		bufEnd := q.startFrame + bufFrames
		if bufEnd <= start {
			continue // fully played
		}
		keep = append(keep, q)
		if q.startFrame >= end {
			continue // not due yet
		}

		from := start
		if q.startFrame > from {
			from = q.startFrame
		}
		to := end
		if bufEnd < to {
			to = bufEnd
		}
		for fr := from; fr < to; fr++ {
			g := float32(l.gainAt(fr))
			if g == 0 {
				continue
			}
			src := fr - q.startFrame
			dst := int(fr-start) * channels
			for c := 0; c < channels && c < len(q.buf.Data); c++ {
				out[dst+c] += q.buf.Data[c][src] * g
			}
		}
	}
	for i := len(keep); i < len(l.queue); i++ {
		l.queue[i] = lineBuffer{}
	}
	l.queue = keep
}

// finished reports whether the line can be pruned: it was detached and its
// fade has run out. Queued leftovers are dropped with it.
// Callers hold the device mutex.
func (l *deviceLine) finished(cursor int64) bool {
	return l.detached && cursor >= l.rampStart+l.rampFrames
}

// nullOutput is a silent Output driven by the wall clock, used when no
// audio hardware is available so the rest of the pipeline still runs.
type nullOutput struct {
	start time.Time
}

// NewNullOutput returns an Output that discards all audio and advances its
// clock in real time.
func NewNullOutput() Output {
	return &nullOutput{start: time.Now()}
}

func (o *nullOutput) Now() float64 {
	return time.Since(o.start).Seconds()
}

func (o *nullOutput) NewLine() Line { return nullLine{} }

func (o *nullOutput) Close() error { return nil }

type nullLine struct{}

func (nullLine) ScheduleAt(*Buffer, float64) {}
func (nullLine) Fade(float64, float64)       {}
func (nullLine) Detach()                     {}
