package player

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
)

// DecodeChunk converts a base64-encoded chunk of interleaved little-endian
// 16-bit PCM into a playable buffer, normalizing samples to [-1, 1].
// Trailing bytes that do not fill a whole frame are truncated. An empty
// payload yields ErrEmptyPayload; a payload too short for even one frame
// yields ErrEmptyBuffer.
func DecodeChunk(data string, f Format) (*Buffer, error) {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return nil, fmt.Errorf("invalid format: %d Hz, %d channels", f.SampleRate, f.Channels)
	}

	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("decode chunk: %w", err)
	}
	if len(raw) == 0 {
		return nil, ErrEmptyPayload
	}

	frames := len(raw) / 2 / f.Channels
	if frames == 0 {
		return nil, ErrEmptyBuffer
	}

	chans := make([][]float32, f.Channels)
	for c := range chans {
		chans[c] = make([]float32, frames)
	}
	for i := 0; i < frames; i++ {
		base := i * f.Channels * 2
		for c := 0; c < f.Channels; c++ {
			v := int16(binary.LittleEndian.Uint16(raw[base+c*2 : base+c*2+2]))
			chans[c][i] = float32(v) / 32768.0
		}
	}

	return &Buffer{Format: f, Data: chans}, nil
}
