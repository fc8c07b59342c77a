package wordjam

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/tmc/wordjam/music"
	"github.com/tmc/wordjam/player"
	"github.com/tmc/wordjam/settings"
)

// PlaybackState is the playback lifecycle. Every user action and every
// inbound server event funnels through transitions on this value.
type PlaybackState int

const (
	PlaybackStopped PlaybackState = iota
	PlaybackLoading
	PlaybackPlaying
	PlaybackPaused
)

func (s PlaybackState) String() string {
	switch s {
	case PlaybackLoading:
		return "loading"
	case PlaybackPlaying:
		return "playing"
	case PlaybackPaused:
		return "paused"
	default:
		return "stopped"
	}
}

// MusicComponent is one guessed word acting as a weighted musical
// influence. Components have value semantics: mutation is replacing the
// map entry, so a snapshot taken for a push can never see a half-updated
// component.
type MusicComponent struct {
	ID     string  // stable for the component's lifetime
	Text   string  // the guessed word
	Weight float64 // in [0, 2]
	Color  string  // lipgloss color token for rendering
}

// GameState tracks progress through the word list.
type GameState struct {
	Words []string
	Index int
	Won   bool
	Hint  string // scrambled rendering of the current word
}

// SessionController is the slice of the remote session the model drives.
// *music.Session satisfies it; tests substitute fakes through WithDialer.
type SessionController interface {
	Play() error
	Pause() error
	Stop() error
	ResetContext() error
	SetWeightedPrompts(prompts []music.WeightedPrompt) error
	SetMusicGenerationConfig(cfg music.GenerationConfig) error
	Close() error
}

// DialFunc establishes a session, delivering inbound traffic to cb.
type DialFunc func(ctx context.Context, cb music.Callbacks) (SessionController, error)

// Model is the Bubble Tea application state: the game controller, the
// component map, the playback state machine, and the glue to the remote
// session. All fields are owned by the update loop; background work
// (timers, session callbacks, pushes) reaches it only as messages through
// uiUpdateChan or command results.
type Model struct {
	textarea textarea.Model
	viewport viewport.Model
	spinner  spinner.Model

	// Remote session.
	client     *music.Client
	dial       DialFunc
	session    SessionController
	connecting bool
	connErr    bool // set on transport failure; play must re-dial

	// Playback pipeline.
	playback   PlaybackState
	primeSeq   int // invalidates in-flight pre-roll timers when bumped
	format     player.Format
	output     player.Output
	sched      *player.Scheduler
	recorder   *player.Recorder
	recordPath string
	bufferTime float64

	// Components and game.
	components map[string]MusicComponent
	order      []string // display order of component IDs
	filtered   map[string]struct{}
	selected   int // index into order
	game       GameState

	// Generation config, edited by the settings panel.
	genConfig           music.GenerationConfig
	pendingContextReset bool // BPM/scale changed; reset after next push

	promptThrottle *throttle
	configThrottle *throttle

	// Toast notification, single slot.
	toastText string
	toastSeq  int

	// Channel for goroutines to send messages back to the UI loop.
	uiUpdateChan chan tea.Msg

	settingsPanel    *settings.Model
	showSettings     bool
	focusedComponent string // one of "input", "settings"

	// Configuration.
	apiKey    string
	modelName string
	endpoint  string
	words     []string

	width    int
	height   int
	quitting bool
	err      error
}

// Option defines a functional option for configuring the Model.
type Option func(*Model) error

// --- Messages ---

// connectResultMsg reports the outcome of a dial attempt.
type connectResultMsg struct {
	session SessionController
	err     error
}

// serverMsg wraps one inbound session message for the update loop.
type serverMsg struct {
	msg music.ServerMessage
}

// transportErrorMsg reports a session read failure.
type transportErrorMsg struct{ err error }

// sessionClosedMsg reports the session read loop exiting.
type sessionClosedMsg struct {
	err   error
	clean bool
}

// audioDecodedMsg carries one decoded chunk back to the update loop, which
// re-checks playback state before scheduling it.
type audioDecodedMsg struct {
	buf *player.Buffer
	err error
}

// preRollMsg fires when the pre-roll delay elapses. Stale timers are
// detected by comparing seq against the model's current primeSeq.
type preRollMsg struct{ seq int }

// flushPromptsMsg and flushConfigMsg reopen their throttle windows and
// dispatch one push with the state current at flush time.
type flushPromptsMsg struct{}
type flushConfigMsg struct{}

// pushResultMsg reports the outcome of a throttled push or a playback
// control call.
type pushResultMsg struct {
	op  string
	err error
}

// toastHideMsg hides the toast if it is still the one that armed it.
type toastHideMsg struct{ seq int }

// toastDuration is how long a toast stays visible.
const toastDuration = 3 * time.Second
