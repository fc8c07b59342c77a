package wordjam

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tmc/wordjam/player"
)

// WithAPIKey sets the API key used to authenticate the music session.
func WithAPIKey(key string) Option {
	return func(m *Model) error {
		m.apiKey = key
		return nil
	}
}

// WithModel sets the music generation model ID.
func WithModel(name string) Option {
	return func(m *Model) error {
		m.modelName = name
		return nil
	}
}

// WithEndpoint overrides the service WebSocket endpoint.
func WithEndpoint(url string) Option {
	return func(m *Model) error {
		m.endpoint = url
		return nil
	}
}

// WithWords sets the guess list directly.
func WithWords(words []string) Option {
	return func(m *Model) error {
		if len(words) == 0 {
			return fmt.Errorf("word list is empty")
		}
		m.words = words
		return nil
	}
}

// wordFile is the YAML shape of a word list file.
type wordFile struct {
	Words []string `yaml:"words"`
}

// WithWordFile loads the guess list from a YAML file of the form
// `words: [MUSIC, JAZZY, ...]`.
func WithWordFile(path string) Option {
	return func(m *Model) error {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read word file: %w", err)
		}
		var wf wordFile
		if err := yaml.Unmarshal(data, &wf); err != nil {
			return fmt.Errorf("parse word file %s: %w", path, err)
		}
		if len(wf.Words) == 0 {
			return fmt.Errorf("word file %s contains no words", path)
		}
		m.words = wf.Words
		return nil
	}
}

// WithOutput sets the audio output the scheduler plays through. Defaults
// to a silent null output; cmd/wordjam installs the PortAudio device.
func WithOutput(out player.Output) Option {
	return func(m *Model) error {
		if out == nil {
			return fmt.Errorf("output is nil")
		}
		m.output = out
		return nil
	}
}

// WithDialer overrides how sessions are established, primarily so tests
// can inject an in-memory session.
func WithDialer(dial DialFunc) Option {
	return func(m *Model) error {
		m.dial = dial
		return nil
	}
}

// WithRecordPath tees all scheduled audio into a WAV file at path.
func WithRecordPath(path string) Option {
	return func(m *Model) error {
		m.recordPath = path
		return nil
	}
}

// WithBufferTime sets the pre-roll in seconds collected before playback
// flips from loading to playing.
func WithBufferTime(seconds float64) Option {
	return func(m *Model) error {
		if seconds <= 0 {
			return fmt.Errorf("buffer time must be positive, got %v", seconds)
		}
		m.bufferTime = seconds
		return nil
	}
}

// WithFormat sets the PCM layout expected from the service.
func WithFormat(f player.Format) Option {
	return func(m *Model) error {
		if f.SampleRate <= 0 || f.Channels <= 0 {
			return fmt.Errorf("invalid format: %d Hz, %d channels", f.SampleRate, f.Channels)
		}
		m.format = f
		return nil
	}
}
