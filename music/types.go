package music

// WeightedPrompt is one named musical influence and its strength. The
// service blends all prompts in a snapshot proportionally to their weights.
type WeightedPrompt struct {
	Text   string  `json:"text"`
	Weight float64 `json:"weight"`
}

// GenerationConfig carries the tunable generation parameters. Pointer
// fields distinguish "auto" (nil, omitted from the wire) from an explicit
// value, including explicit zeros.
type GenerationConfig struct {
	Temperature *float64 `json:"temperature,omitempty"`
	TopK        *int     `json:"topK,omitempty"`
	Guidance    *float64 `json:"guidance,omitempty"`
	Seed        *int     `json:"seed,omitempty"`
	BPM         *int     `json:"bpm,omitempty"`
	Density     *float64 `json:"density,omitempty"`
	Brightness  *float64 `json:"brightness,omitempty"`

	// Scale is one of the service's scale enum names; empty means auto.
	Scale string `json:"scale,omitempty"`

	MuteBass         bool `json:"muteBass,omitempty"`
	MuteDrums        bool `json:"muteDrums,omitempty"`
	OnlyBassAndDrums bool `json:"onlyBassAndDrums,omitempty"`
}

// setupRequest is the first frame sent after the WebSocket opens.
type setupRequest struct {
	Setup setupConfig `json:"setup"`
}

type setupConfig struct {
	Model string `json:"model"`
}

// clientMessage is the union of all frames the client sends after setup.
// Exactly one field is set per frame.
type clientMessage struct {
	ClientContent         *clientContent    `json:"clientContent,omitempty"`
	MusicGenerationConfig *GenerationConfig `json:"musicGenerationConfig,omitempty"`
	PlaybackControl       string            `json:"playbackControl,omitempty"`
}

type clientContent struct {
	WeightedPrompts []WeightedPrompt `json:"weightedPrompts"`
}

// Playback control verbs understood by the service.
const (
	controlPlay         = "PLAY"
	controlPause        = "PAUSE"
	controlStop         = "STOP"
	controlResetContext = "RESET_CONTEXT"
)

// MessageKind discriminates the inbound message union.
type MessageKind int

const (
	KindUnknown MessageKind = iota
	KindSetupComplete
	KindFilteredPrompt
	KindAudioChunks
)

func (k MessageKind) String() string {
	switch k {
	case KindSetupComplete:
		return "setupComplete"
	case KindFilteredPrompt:
		return "filteredPrompt"
	case KindAudioChunks:
		return "audioChunks"
	default:
		return "unknown"
	}
}

// ServerMessage is one inbound frame from the service. The three payload
// variants are mutually exclusive; Kind reports which one is present.
type ServerMessage struct {
	SetupComplete  *struct{}       `json:"setupComplete,omitempty"`
	FilteredPrompt *FilteredPrompt `json:"filteredPrompt,omitempty"`
	ServerContent  *ServerContent  `json:"serverContent,omitempty"`
}

// FilteredPrompt reports that the service rejected a prompt, typically on
// moderation grounds. The prompt is identified by its exact text.
type FilteredPrompt struct {
	Text           string `json:"text"`
	FilteredReason string `json:"filteredReason"`
}

// ServerContent carries generated audio.
type ServerContent struct {
	AudioChunks []AudioChunk `json:"audioChunks"`
}

// AudioChunk is one base64-encoded block of interleaved s16le PCM.
type AudioChunk struct {
	Data string `json:"data"`
}

// Kind reports which payload variant the message carries.
func (m ServerMessage) Kind() MessageKind {
	switch {
	case m.SetupComplete != nil:
		return KindSetupComplete
	case m.FilteredPrompt != nil:
		return KindFilteredPrompt
	case m.ServerContent != nil:
		return KindAudioChunks
	default:
		return KindUnknown
	}
}

// Callbacks receive inbound traffic and connection lifecycle events. All
// three are invoked from the session's read goroutine, one at a time.
type Callbacks struct {
	// OnMessage is called for every classified server message.
	OnMessage func(msg ServerMessage)

	// OnError is called for transport-level failures.
	OnError func(err error)

	// OnClose is called exactly once when the read loop exits. clean is
	// true when the closure was a normal, expected shutdown.
	OnClose func(err error, clean bool)
}
