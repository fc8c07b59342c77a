// Package wordjam is a terminal word-guessing game that drives a
// real-time music generation session: every guessed word becomes a
// weighted prompt streamed to the service, and the audio that comes back
// is decoded and played gaplessly while you keep guessing.
package wordjam

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tmc/wordjam/internal/helpers"
	"github.com/tmc/wordjam/music"
	"github.com/tmc/wordjam/player"
	"github.com/tmc/wordjam/settings"
)

// New creates a new Model instance with default settings and applies options.
func New(opts ...Option) (*Model, error) {
	ta := textarea.New()
	ta.Placeholder = "Type your guess and press Enter..."
	ta.Focus()
	ta.Prompt = "┃ "
	ta.CharLimit = 0
	ta.SetWidth(50)
	ta.SetHeight(1)
	ta.ShowLineNumbers = false
	ta.KeyMap.InsertNewline.SetEnabled(false)

	vp := viewport.New(50, 5)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	settingsPanel := settings.New()

	m := &Model{
		textarea:         ta,
		viewport:         vp,
		spinner:          s,
		modelName:        DefaultModel,
		format:           player.DefaultFormat,
		bufferTime:       player.DefaultBufferTime,
		components:       make(map[string]MusicComponent),
		filtered:         make(map[string]struct{}),
		words:            DefaultWords,
		uiUpdateChan:     make(chan tea.Msg, 10),
		settingsPanel:    &settingsPanel,
		focusedComponent: "input",
	}

	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}

	m.game = newGame(m.words)

	if m.output == nil {
		m.output = player.NewNullOutput()
	}
	m.sched = player.NewScheduler(m.output, m.bufferTime)

	if m.recordPath != "" {
		rec, err := player.NewRecorder(m.recordPath, m.format)
		if err != nil {
			return nil, err
		}
		m.recorder = rec
		m.sched.Record(rec)
		log.Printf("Recording generated audio to %s", m.recordPath)
	}

	m.client = &music.Client{APIKey: m.apiKey, Endpoint: m.endpoint, Model: m.modelName}
	if m.dial == nil {
		client := m.client
		m.dial = func(ctx context.Context, cb music.Callbacks) (SessionController, error) {
			return client.Connect(ctx, cb)
		}
	}

	m.promptThrottle = newThrottle(pushInterval, m.uiUpdateChan, flushPromptsMsg{})
	m.configThrottle = newThrottle(pushInterval, m.uiUpdateChan, flushConfigMsg{})

	log.Printf("Using model: %s", m.modelName)
	log.Printf("Audio format: %d Hz, %d channels, pre-roll %.2fs", m.format.SampleRate, m.format.Channels, m.bufferTime)
	log.Printf("Word list: %d words", len(m.words))

	return m, nil
}

// listenForUIUpdatesCmd returns a command that listens on the uiUpdateChan
// and forwards messages to the main Bubble Tea update loop.
func (m *Model) listenForUIUpdatesCmd() tea.Cmd {
	return func() tea.Msg {
		return <-m.uiUpdateChan
	}
}

// Init is the initial command called by Bubble Tea.
func (m Model) Init() tea.Cmd {
	m.textarea.Focus()
	return tea.Batch(
		m.spinner.Tick,
		m.listenForUIUpdatesCmd(),
	)
}

// Update handles incoming messages and updates the model state.
// It acts as the main dispatcher.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		taCmd tea.Cmd
		vpCmd tea.Cmd
		spCmd tea.Cmd
		cmds  []tea.Cmd
	)

	// Update standard components; key messages are routed below.
	switch msg.(type) {
	case tea.KeyMsg:
	default:
		m.viewport, vpCmd = m.viewport.Update(msg)
	}
	m.spinner, spCmd = m.spinner.Update(msg)
	cmds = append(cmds, vpCmd, spCmd)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		// The settings panel gets first claim on keys while focused.
		if m.showSettings && m.focusedComponent == "settings" {
			switch msg.String() {
			case "ctrl+c", "ctrl+s", "tab":
				// Global keys handled below.
			default:
				var settingsCmd tea.Cmd
				*m.settingsPanel, settingsCmd = m.settingsPanel.Update(msg)
				cmds = append(cmds, settingsCmd)
				if !m.settingsPanel.Focused {
					m.showSettings = false
					m.focusedComponent = "input"
					m.textarea.Focus()
				}
				cmds = append(cmds, m.listenForUIUpdatesCmd())
				return m, tea.Batch(cmds...)
			}
		}

		switch msg.String() {
		case "ctrl+c":
			m.quitting = true
			m.Cleanup()
			return m, tea.Quit

		case "ctrl+s": // Toggle settings panel
			m.showSettings = !m.showSettings
			if m.showSettings {
				m.focusedComponent = "settings"
				m.settingsPanel.Focus()
				m.textarea.Blur()
			} else {
				m.focusedComponent = "input"
				m.settingsPanel.Blur()
				m.textarea.Focus()
			}

		case "tab":
			if m.showSettings {
				if m.focusedComponent == "input" {
					m.focusedComponent = "settings"
					m.settingsPanel.Focus()
					m.textarea.Blur()
				} else {
					m.focusedComponent = "input"
					m.settingsPanel.Blur()
					m.textarea.Focus()
				}
			}

		case "ctrl+p": // Play / pause toggle
			cmds = append(cmds, m.handlePlayPause())

		case "ctrl+x": // Stop
			cmds = append(cmds, m.stopPlayback())

		case "ctrl+r": // Restart the game with a fresh musical context
			cmds = append(cmds, m.restartGame())

		case "up":
			if len(m.order) > 0 {
				m.selected = (m.selected - 1 + len(m.order)) % len(m.order)
				m.refreshBoard()
			}

		case "down":
			if len(m.order) > 0 {
				m.selected = (m.selected + 1) % len(m.order)
				m.refreshBoard()
			}

		case "ctrl+up", "ctrl+down":
			if c, ok := m.selectedComponent(); ok {
				delta := weightStep
				if msg.String() == "ctrl+down" {
					delta = -weightStep
				}
				m.setComponentWeight(c.ID, c.Weight+delta)
				m.promptThrottle.Trigger()
				m.refreshBoard()
			}

		case "ctrl+d": // Remove selected component
			if c, ok := m.selectedComponent(); ok {
				m.removeComponent(c.ID)
				m.promptThrottle.Trigger()
				m.refreshBoard()
			}

		case "enter":
			cmds = append(cmds, m.handleGuess())

		default:
			m.textarea, taCmd = m.textarea.Update(msg)
			cmds = append(cmds, taCmd)
		}

	// --- Session lifecycle ---
	case connectResultMsg:
		m.connecting = false
		if msg.err != nil {
			m.connErr = true
			m.session = nil
			m.playback = PlaybackStopped
			m.err = msg.err
			m.showToast(fmt.Sprintf("Connection failed: %v", msg.err))
			log.Printf("Session connect failed: %v", msg.err)
		} else {
			m.session = msg.session
			m.connErr = false
			m.err = nil
			// The fresh session needs the current prompts and config
			// before audio makes sense.
			m.promptThrottle.Trigger()
			m.configThrottle.Trigger()
			cmds = append(cmds, m.startPlayback())
		}

	case serverMsg:
		cmds = append(cmds, m.handleServerMessage(msg.msg)...)

	case transportErrorMsg:
		m.connErr = true
		m.err = msg.err
		m.forcePause()
		m.showToast(fmt.Sprintf("Connection error: %v", msg.err))
		log.Printf("Session transport error: %v", msg.err)

	case sessionClosedMsg:
		m.session = nil
		if !msg.clean {
			wasErr := m.connErr
			m.connErr = true
			m.forcePause()
			if !wasErr {
				m.showToast("Connection lost")
			}
			log.Printf("Session closed uncleanly: %v", msg.err)
		} else {
			log.Printf("Session closed")
		}

	// --- Playback pipeline ---
	case audioDecodedMsg:
		cmds = append(cmds, m.handleDecodedChunk(msg)...)

	case preRollMsg:
		// A stale timer (pause, stop, underrun or reset since it was
		// armed) carries an old sequence number and is inert.
		if msg.seq == m.primeSeq && m.playback == PlaybackLoading {
			m.playback = PlaybackPlaying
			log.Printf("Pre-roll elapsed, playback running")
		}

	// --- Throttled pushes ---
	case flushPromptsMsg:
		cmds = append(cmds, m.flushPrompts())

	case flushConfigMsg:
		cmds = append(cmds, m.flushConfig())

	case pushResultMsg:
		if msg.err != nil {
			log.Printf("Session %s failed: %v", msg.op, msg.err)
			m.showToast(fmt.Sprintf("%s failed: %v", msg.op, msg.err))
			if m.playback == PlaybackPlaying || m.playback == PlaybackLoading {
				m.forcePause()
			}
		}

	// --- UI housekeeping ---
	case settings.ChangedMsg:
		old := m.genConfig
		m.genConfig = msg.Config
		if needsContextReset(old, m.genConfig) {
			m.pendingContextReset = true
		}
		m.configThrottle.Trigger()

	case toastHideMsg:
		if msg.seq == m.toastSeq {
			m.toastText = ""
		}

	case spinner.TickMsg:
		// Handled by spinner update earlier.

	case tea.WindowSizeMsg:
		m.width = max(msg.Width, 20)
		m.height = max(msg.Height, 10)

		headerHeight := lipgloss.Height(m.headerView())
		footerHeight := lipgloss.Height(m.footerView())
		vpHeight := m.height - headerHeight - footerHeight
		if vpHeight < 1 {
			vpHeight = 1
		}
		m.viewport.Width = m.width
		m.viewport.Height = vpHeight
		m.textarea.SetWidth(m.width)
		m.textarea.SetHeight(1)
		m.refreshBoard()
	}

	if m.focusedComponent == "input" {
		m.textarea.Focus()
	}

	// Always add the listener command back to the batch.
	cmds = append(cmds, m.listenForUIUpdatesCmd())

	return m, tea.Batch(cmds...)
}

// handleGuess submits the textarea contents as a guess.
func (m *Model) handleGuess() tea.Cmd {
	txt := strings.TrimSpace(m.textarea.Value())
	if txt == "" {
		return nil
	}
	m.textarea.Reset()

	word := m.game.CurrentWord()
	switch m.game.guess(txt) {
	case guessGameOver:
		m.showToast("Game over — Ctrl+R starts a new game")

	case guessIncorrect:
		m.showToast(fmt.Sprintf("%q is not it — try again", txt))

	case guessCorrect:
		m.addComponent(word)
		m.promptThrottle.Trigger()
		m.showToast(fmt.Sprintf("Correct! %q joins the mix", word))

	case guessWon:
		m.addComponent(word)
		m.promptThrottle.Trigger()
		m.showToast("You guessed them all!")
	}
	m.refreshBoard()
	return nil
}

// handlePlayPause drives the play side of the state machine. Playback and
// loading pause; stopped and paused (re)start, re-dialing first when the
// previous connection errored.
func (m *Model) handlePlayPause() tea.Cmd {
	switch m.playback {
	case PlaybackPlaying, PlaybackLoading:
		return m.pausePlayback()
	default:
		if m.session == nil || m.connErr {
			if m.connecting {
				return nil
			}
			m.connecting = true
			return m.connectCmd()
		}
		return m.startPlayback()
	}
}

// connectCmd dials a fresh session in the background.
func (m *Model) connectCmd() tea.Cmd {
	dial := m.dial
	cb := m.sessionCallbacks()
	return func() tea.Msg {
		session, err := dial(context.Background(), cb)
		return connectResultMsg{session: session, err: err}
	}
}

// sessionCallbacks bridges the session's read goroutine into the update
// loop via uiUpdateChan.
func (m *Model) sessionCallbacks() music.Callbacks {
	ch := m.uiUpdateChan
	return music.Callbacks{
		OnMessage: func(msg music.ServerMessage) { ch <- serverMsg{msg: msg} },
		OnError:   func(err error) { ch <- transportErrorMsg{err: err} },
		OnClose:   func(err error, clean bool) { ch <- sessionClosedMsg{err: err, clean: clean} },
	}
}

// startPlayback enters loading: gain up, clock cleared for re-priming,
// play issued to the session.
func (m *Model) startPlayback() tea.Cmd {
	m.playback = PlaybackLoading
	m.primeSeq++
	m.sched.Reset()
	m.sched.RampUp()
	session := m.session
	return func() tea.Msg {
		return pushResultMsg{op: "play", err: session.Play()}
	}
}

// pausePlayback ramps down, retires the output line, and tells the
// session to hold generation.
func (m *Model) pausePlayback() tea.Cmd {
	m.playback = PlaybackPaused
	m.primeSeq++
	m.sched.RampDown()
	session := m.session
	if session == nil {
		return nil
	}
	return func() tea.Msg {
		return pushResultMsg{op: "pause", err: session.Pause()}
	}
}

// stopPlayback ramps down and tells the session to stop generation.
func (m *Model) stopPlayback() tea.Cmd {
	m.playback = PlaybackStopped
	m.primeSeq++
	m.sched.RampDown()
	session := m.session
	if session == nil {
		return nil
	}
	return func() tea.Msg {
		return pushResultMsg{op: "stop", err: session.Stop()}
	}
}

// forcePause is the error-path transition to paused: gain down, clock
// reset, no session call (the transport may be gone).
func (m *Model) forcePause() {
	if m.playback == PlaybackPlaying || m.playback == PlaybackLoading {
		m.sched.RampDown()
	}
	m.playback = PlaybackPaused
	m.primeSeq++
}

// restartGame resets the game wholesale and starts a fresh musical
// context.
func (m *Model) restartGame() tea.Cmd {
	m.game = newGame(m.words)
	m.components = make(map[string]MusicComponent)
	m.order = nil
	m.filtered = make(map[string]struct{})
	m.selected = 0
	m.promptThrottle.Trigger()
	m.showToast("New game!")
	m.refreshBoard()

	session := m.session
	if session == nil {
		return nil
	}
	return func() tea.Msg {
		return pushResultMsg{op: "context reset", err: session.ResetContext()}
	}
}

// flushPrompts reopens the prompt throttle window and dispatches one push
// carrying the snapshot current right now — the latest state wins, no
// matter how many triggers were dropped inside the window.
func (m *Model) flushPrompts() tea.Cmd {
	m.promptThrottle.Flushed()
	if m.session == nil {
		return nil
	}
	session := m.session
	snapshot := m.promptSnapshot()
	return func() tea.Msg {
		return pushResultMsg{op: "prompt push", err: session.SetWeightedPrompts(snapshot)}
	}
}

// flushConfig is the config-side flush. When the change touched BPM or
// scale, a context reset follows the successful push.
func (m *Model) flushConfig() tea.Cmd {
	m.configThrottle.Flushed()
	if m.session == nil {
		return nil
	}
	session := m.session
	cfg := m.genConfig
	reset := m.pendingContextReset
	m.pendingContextReset = false
	return func() tea.Msg {
		if err := session.SetMusicGenerationConfig(cfg); err != nil {
			return pushResultMsg{op: "config push", err: err}
		}
		if reset {
			if err := session.ResetContext(); err != nil {
				return pushResultMsg{op: "context reset", err: err}
			}
		}
		return pushResultMsg{op: "config push"}
	}
}

// handleServerMessage dispatches one inbound session message.
func (m *Model) handleServerMessage(msg music.ServerMessage) []tea.Cmd {
	var cmds []tea.Cmd
	switch msg.Kind() {
	case music.KindSetupComplete:
		m.connErr = false
		m.err = nil
		log.Printf("Session setup complete")

	case music.KindFilteredPrompt:
		fp := msg.FilteredPrompt
		if c, ok := m.markFiltered(fp.Text); ok {
			m.showToast(fmt.Sprintf("%q was filtered: %s", c.Text, fp.FilteredReason))
			m.promptThrottle.Trigger()
			m.refreshBoard()
			log.Printf("Component %q filtered by service: %s", c.Text, fp.FilteredReason)
		} else {
			log.Printf("Filtered prompt %q matches no component", fp.Text)
		}

	case music.KindAudioChunks:
		// While paused or stopped, chunks are dropped before decode.
		if m.playback == PlaybackPaused || m.playback == PlaybackStopped {
			if helpers.IsAudioTraceEnabled() {
				log.Printf("[AUDIO_PIPE] Dropping %d chunks in %s state", len(msg.ServerContent.AudioChunks), m.playback)
			}
			break
		}
		for _, chunk := range msg.ServerContent.AudioChunks {
			cmds = append(cmds, m.decodeChunkCmd(chunk.Data))
		}
	}
	return cmds
}

// decodeChunkCmd decodes one chunk off the update loop.
func (m *Model) decodeChunkCmd(data string) tea.Cmd {
	format := m.format
	return func() tea.Msg {
		buf, err := player.DecodeChunk(data, format)
		return audioDecodedMsg{buf: buf, err: err}
	}
}

// handleDecodedChunk schedules a decoded buffer. Decoding ran between two
// update-loop turns, so the playback state is re-checked before anything
// touches the scheduler.
func (m *Model) handleDecodedChunk(msg audioDecodedMsg) []tea.Cmd {
	if m.playback != PlaybackLoading && m.playback != PlaybackPlaying {
		return nil
	}

	if msg.err != nil {
		if errors.Is(msg.err, player.ErrEmptyPayload) || errors.Is(msg.err, player.ErrEmptyBuffer) {
			if helpers.IsAudioTraceEnabled() {
				log.Printf("[AUDIO_PIPE] Skipping chunk: %v", msg.err)
			}
			return nil
		}
		log.Printf("Audio decode failed: %v", msg.err)
		m.forcePause()
		m.showToast(fmt.Sprintf("Audio error: %v", msg.err))
		return nil
	}

	primed, err := m.sched.Schedule(msg.buf)
	switch {
	case errors.Is(err, player.ErrUnderrun):
		log.Printf("Playback underrun, rebuffering")
		m.playback = PlaybackLoading
		m.primeSeq++
		m.showToast("Rebuffering…")

	case errors.Is(err, player.ErrAheadLimit):
		if helpers.IsAudioTraceEnabled() {
			log.Printf("[AUDIO_PIPE] Chunk dropped at look-ahead limit")
		}

	case errors.Is(err, player.ErrEmptyBuffer):
		// Nothing to play.

	case err != nil:
		log.Printf("Audio schedule failed: %v", err)
		m.forcePause()
		m.showToast(fmt.Sprintf("Audio error: %v", err))
		return nil
	}

	if primed && err == nil {
		m.armPreRoll()
	}
	return nil
}

// armPreRoll schedules the loading→playing flip, tagged with the current
// prime sequence so any reset in between neutralizes it.
func (m *Model) armPreRoll() {
	seq := m.primeSeq
	ch := m.uiUpdateChan
	delay := time.Duration(m.sched.BufferTime() * float64(time.Second))
	time.AfterFunc(delay, func() {
		ch <- preRollMsg{seq: seq}
	})
}

// showToast replaces the toast slot and re-arms the auto-hide, cancelling
// the pending hide of any previous toast via the sequence number.
func (m *Model) showToast(text string) {
	m.toastText = text
	m.toastSeq++
	seq := m.toastSeq
	ch := m.uiUpdateChan
	time.AfterFunc(toastDuration, func() {
		ch <- toastHideMsg{seq: seq}
	})
}

// needsContextReset reports whether a config change touches parameters the
// service only applies to a fresh musical context.
func needsContextReset(old, updated music.GenerationConfig) bool {
	return !intPtrEqual(old.BPM, updated.BPM) || old.Scale != updated.Scale
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Cleanup properly releases all resources.
func (m *Model) Cleanup() {
	log.Println("Cleaning up resources")

	if m.session != nil {
		if err := m.session.Close(); err != nil {
			log.Printf("Error closing session: %v", err)
		}
		m.session = nil
	}
	if m.recorder != nil {
		if err := m.recorder.Close(); err != nil {
			log.Printf("Error closing recorder: %v", err)
		}
		m.recorder = nil
	}
	if m.output != nil {
		if err := m.output.Close(); err != nil {
			log.Printf("Error closing audio output: %v", err)
		}
	}

	log.Println("Cleanup finished.")
}
