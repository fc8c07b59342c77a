package wordjam

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tmc/wordjam/music"
	"github.com/tmc/wordjam/player"
	"github.com/tmc/wordjam/settings"
)

// fakeSession records every control call, standing in for the remote
// session. Setting err makes all operations fail.
type fakeSession struct {
	mu      sync.Mutex
	plays   int
	pauses  int
	stops   int
	resets  int
	prompts [][]music.WeightedPrompt
	configs []music.GenerationConfig
	err     error
	closed  bool
}

func (s *fakeSession) op(n *int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	*n++
	return nil
}

func (s *fakeSession) Play() error         { return s.op(&s.plays) }
func (s *fakeSession) Pause() error        { return s.op(&s.pauses) }
func (s *fakeSession) Stop() error         { return s.op(&s.stops) }
func (s *fakeSession) ResetContext() error { return s.op(&s.resets) }

func (s *fakeSession) SetWeightedPrompts(prompts []music.WeightedPrompt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.prompts = append(s.prompts, prompts)
	return nil
}

func (s *fakeSession) SetMusicGenerationConfig(cfg music.GenerationConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.configs = append(s.configs, cfg)
	return nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// stubOutput is a manual-clock audio output recording scheduled buffers.
type stubOutput struct {
	now   float64
	lines []*stubLine
}

func (o *stubOutput) Now() float64 { return o.now }
func (o *stubOutput) NewLine() player.Line {
	l := &stubLine{}
	o.lines = append(o.lines, l)
	return l
}
func (o *stubOutput) Close() error { return nil }

type stubLine struct {
	starts   []float64
	detached bool
}

func (l *stubLine) ScheduleAt(b *player.Buffer, when float64) { l.starts = append(l.starts, when) }
func (l *stubLine) Fade(target, over float64)                 {}
func (l *stubLine) Detach()                                   { l.detached = true }

// scheduledCount sums buffers scheduled across all lines.
func (o *stubOutput) scheduledCount() int {
	n := 0
	for _, l := range o.lines {
		n += len(l.starts)
	}
	return n
}

// newTestModel wires a model to a fake session and a manual-clock output.
func newTestModel(t *testing.T, words ...string) (*Model, *fakeSession, *stubOutput) {
	t.Helper()
	if len(words) == 0 {
		words = []string{"MUSIC", "JAZZY", "DRUMS"}
	}
	session := &fakeSession{}
	out := &stubOutput{}
	m, err := New(
		WithAPIKey("test"),
		WithWords(words),
		WithOutput(out),
		WithDialer(func(ctx context.Context, cb music.Callbacks) (SessionController, error) {
			return session, nil
		}),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return m, session, out
}

// update routes one message through Update and folds the result back.
func update(t *testing.T, m *Model, msg tea.Msg) {
	t.Helper()
	updated, _ := m.Update(msg)
	*m = updated.(Model)
}

// encodeChunk builds a base64 s16le stereo payload of the given frame count.
func encodeChunk(frames int) string {
	return base64.StdEncoding.EncodeToString(make([]byte, frames*2*2))
}

// --- Guess handling ---

func TestGuessCorrectAddsComponentAndSchedulesPush(t *testing.T) {
	m, _, _ := newTestModel(t)

	m.textarea.SetValue("music")
	m.handleGuess()

	if len(m.order) != 1 {
		t.Fatalf("got %d components, want 1", len(m.order))
	}
	c := m.components[m.order[0]]
	if c.Text != "MUSIC" || c.Weight != 0.5 {
		t.Errorf("component = %+v, want {MUSIC 0.5}", c)
	}
	if got := m.game.CurrentWord(); got != "JAZZY" {
		t.Errorf("current word = %q, want JAZZY (advanced)", got)
	}
	if !m.promptThrottle.Armed() {
		t.Error("prompt throttle not armed after correct guess")
	}
	if m.textarea.Value() != "" {
		t.Error("textarea not cleared after guess")
	}
}

func TestGuessIncorrectLeavesStateAlone(t *testing.T) {
	m, _, _ := newTestModel(t)

	m.textarea.SetValue("WRONG")
	m.handleGuess()

	if len(m.order) != 0 {
		t.Errorf("got %d components after wrong guess, want 0", len(m.order))
	}
	if got := m.game.CurrentWord(); got != "MUSIC" {
		t.Errorf("current word = %q, want unchanged MUSIC", got)
	}
	if m.promptThrottle.Armed() {
		t.Error("prompt throttle armed by an incorrect guess")
	}
	if !strings.Contains(m.toastText, "not it") {
		t.Errorf("toast = %q, want incorrect-guess notification", m.toastText)
	}
}

func TestGuessAfterWinRejected(t *testing.T) {
	m, _, _ := newTestModel(t, "MUSIC")

	m.textarea.SetValue("MUSIC")
	m.handleGuess()
	if !m.game.Won {
		t.Fatal("game not won after guessing the last word")
	}
	if len(m.order) != 1 {
		t.Fatalf("got %d components, want 1", len(m.order))
	}

	m.textarea.SetValue("EXTRA")
	m.handleGuess()
	if len(m.order) != 1 {
		t.Error("component added after game over")
	}
	if !strings.Contains(m.toastText, "Game over") {
		t.Errorf("toast = %q, want game-over notification", m.toastText)
	}
}

// --- Pushes ---

func TestFilteredComponentExcludedFromNextPush(t *testing.T) {
	m, session, _ := newTestModel(t)
	m.session = session

	m.textarea.SetValue("MUSIC")
	m.handleGuess()
	m.textarea.SetValue("JAZZY")
	m.handleGuess()

	m.handleServerMessage(music.ServerMessage{
		FilteredPrompt: &music.FilteredPrompt{Text: "MUSIC", FilteredReason: "moderation"},
	})

	if cmd := m.flushPrompts(); cmd != nil {
		cmd()
	}

	session.mu.Lock()
	defer session.mu.Unlock()
	if len(session.prompts) != 1 {
		t.Fatalf("got %d pushes, want 1", len(session.prompts))
	}
	pushed := session.prompts[0]
	if len(pushed) != 1 || pushed[0].Text != "JAZZY" {
		t.Errorf("pushed %v, want only JAZZY", pushed)
	}

	// The filtered component remains visible with its weight.
	c := m.components[m.order[0]]
	if c.Text != "MUSIC" || c.Weight != 0.5 {
		t.Errorf("filtered component = %+v, want still present at 0.5", c)
	}
}

func TestThrottledPushUsesLatestState(t *testing.T) {
	m, session, _ := newTestModel(t)
	m.session = session

	id := m.addComponent("MUSIC")
	m.promptThrottle.Trigger()

	// A second change inside the window: trigger dropped, state updated.
	m.setComponentWeight(id, 1.7)
	m.promptThrottle.Trigger()

	// Exactly one flush lands, then the window is quiet.
	msg := waitMsg(t, m.uiUpdateChan)
	if _, ok := msg.(flushPromptsMsg); !ok {
		t.Fatalf("got %T, want flushPromptsMsg", msg)
	}
	assertNoMsg(t, m.uiUpdateChan, pushInterval+50*time.Millisecond)

	if cmd := m.flushPrompts(); cmd != nil {
		cmd()
	}

	session.mu.Lock()
	defer session.mu.Unlock()
	if len(session.prompts) != 1 {
		t.Fatalf("got %d pushes, want exactly 1", len(session.prompts))
	}
	if got := session.prompts[0][0].Weight; got != 1.7 {
		t.Errorf("pushed weight = %v, want the second call's 1.7", got)
	}
}

func TestPushRejectedPausesActivePlayback(t *testing.T) {
	m, _, _ := newTestModel(t)
	m.playback = PlaybackPlaying

	update(t, m, pushResultMsg{op: "prompt push", err: errors.New("boom")})

	if m.playback != PlaybackPaused {
		t.Errorf("playback = %v, want paused after rejected push", m.playback)
	}
	if !strings.Contains(m.toastText, "prompt push failed") {
		t.Errorf("toast = %q, want push failure notification", m.toastText)
	}

	// A failure while already stopped does not resurrect playback.
	m.playback = PlaybackStopped
	update(t, m, pushResultMsg{op: "config push", err: errors.New("boom")})
	if m.playback != PlaybackStopped {
		t.Errorf("playback = %v, want stopped unchanged", m.playback)
	}
}

// --- Connection lifecycle ---

func TestPlayDialsWhenNoSession(t *testing.T) {
	m, session, _ := newTestModel(t)

	cmd := m.handlePlayPause()
	if !m.connecting {
		t.Fatal("connecting = false after play with no session")
	}
	if cmd == nil {
		t.Fatal("play with no session returned no connect command")
	}

	update(t, m, cmd().(connectResultMsg))
	if m.session != SessionController(session) {
		t.Error("session not installed after successful dial")
	}
	if m.connErr {
		t.Error("connErr = true after successful dial")
	}
	if m.playback != PlaybackLoading {
		t.Errorf("playback = %v, want loading after connect", m.playback)
	}
	if !m.promptThrottle.Armed() || !m.configThrottle.Armed() {
		t.Error("fresh session did not schedule prompt and config pushes")
	}
}

func TestPlayRetriesConnectAfterError(t *testing.T) {
	dialErr := errors.New("dial refused")
	var dials int
	m, err := New(
		WithAPIKey("test"),
		WithWords([]string{"MUSIC"}),
		WithOutput(&stubOutput{}),
		WithDialer(func(ctx context.Context, cb music.Callbacks) (SessionController, error) {
			dials++
			return nil, dialErr
		}),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	m.connErr = true

	cmd := m.handlePlayPause()
	if cmd == nil {
		t.Fatal("play with errored connection returned no connect command")
	}
	if m.playback != PlaybackStopped {
		t.Errorf("playback = %v, want no state change before connect resolves", m.playback)
	}

	update(t, m, cmd().(connectResultMsg))
	if dials != 1 {
		t.Fatalf("dials = %d, want 1", dials)
	}
	if m.playback != PlaybackStopped {
		t.Errorf("playback = %v, want stopped after failed dial", m.playback)
	}
	if !m.connErr {
		t.Error("connErr cleared despite dial failure")
	}
	if !strings.Contains(m.toastText, "Connection failed") {
		t.Errorf("toast = %q, want connection failure notification", m.toastText)
	}

	// While a dial is in flight, play does not stack another.
	m.connecting = true
	if cmd := m.handlePlayPause(); cmd != nil {
		t.Error("play while connecting returned a second connect command")
	}
}

func TestPlayWithHealthySessionSkipsDial(t *testing.T) {
	m, session, _ := newTestModel(t)
	m.session = session

	cmd := m.handlePlayPause()
	if m.playback != PlaybackLoading {
		t.Fatalf("playback = %v, want loading", m.playback)
	}
	cmd()
	session.mu.Lock()
	defer session.mu.Unlock()
	if session.plays != 1 {
		t.Errorf("session plays = %d, want 1", session.plays)
	}
}

func TestTransportErrorForcesPause(t *testing.T) {
	m, session, _ := newTestModel(t)
	m.session = session
	m.playback = PlaybackPlaying

	update(t, m, transportErrorMsg{err: errors.New("broken pipe")})

	if m.playback != PlaybackPaused {
		t.Errorf("playback = %v, want paused", m.playback)
	}
	if !m.connErr {
		t.Error("connErr = false after transport error")
	}
	if m.sched.NextStartTime() != 0 {
		t.Error("clock not reset on transport error")
	}
}

func TestUncleanCloseForcesPauseCleanDoesNot(t *testing.T) {
	m, session, _ := newTestModel(t)
	m.session = session
	m.playback = PlaybackPlaying

	update(t, m, sessionClosedMsg{err: errors.New("reset by peer"), clean: false})
	if m.playback != PlaybackPaused || !m.connErr {
		t.Errorf("state = %v connErr = %v after unclean close, want paused/true", m.playback, m.connErr)
	}
	if m.session != nil {
		t.Error("session reference kept after close")
	}

	m2, session2, _ := newTestModel(t)
	m2.session = session2
	m2.playback = PlaybackPlaying
	update(t, m2, sessionClosedMsg{clean: true})
	if m2.connErr {
		t.Error("connErr = true after clean close")
	}
	if m2.playback != PlaybackPlaying {
		t.Errorf("playback = %v after clean close, want unchanged", m2.playback)
	}
}

func TestSetupCompleteClearsErrorFlag(t *testing.T) {
	m, _, _ := newTestModel(t)
	m.connErr = true
	m.err = errors.New("stale")

	m.handleServerMessage(music.ServerMessage{SetupComplete: &struct{}{}})
	if m.connErr || m.err != nil {
		t.Errorf("connErr = %v err = %v after setupComplete, want cleared", m.connErr, m.err)
	}
}

// --- Playback pipeline ---

func TestAudioChunksDroppedWhileNotActive(t *testing.T) {
	chunk := music.ServerMessage{
		ServerContent: &music.ServerContent{AudioChunks: []music.AudioChunk{{Data: encodeChunk(4800)}}},
	}
	for _, state := range []PlaybackState{PlaybackStopped, PlaybackPaused} {
		t.Run(state.String(), func(t *testing.T) {
			m, _, _ := newTestModel(t)
			m.playback = state
			if cmds := m.handleServerMessage(chunk); len(cmds) != 0 {
				t.Errorf("got %d decode commands in %s state, want 0", len(cmds), state)
			}
		})
	}

	m, _, _ := newTestModel(t)
	m.playback = PlaybackLoading
	if cmds := m.handleServerMessage(chunk); len(cmds) != 1 {
		t.Errorf("got %d decode commands in loading state, want 1", len(cmds))
	}
}

func TestDecodedChunkScheduledGapless(t *testing.T) {
	m, _, out := newTestModel(t)
	m.playback = PlaybackLoading

	for i := 0; i < 2; i++ {
		buf, err := player.DecodeChunk(encodeChunk(4800), m.format)
		if err != nil {
			t.Fatalf("DecodeChunk() error = %v", err)
		}
		m.handleDecodedChunk(audioDecodedMsg{buf: buf})
	}

	line := out.lines[0]
	if len(line.starts) != 2 {
		t.Fatalf("scheduled %d buffers, want 2", len(line.starts))
	}
	want := line.starts[0] + 0.1 // 4800 frames at 48kHz
	if diff := line.starts[1] - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("second buffer start = %v, want gapless %v", line.starts[1], want)
	}
}

func TestDecodedChunkIgnoredAfterStateChange(t *testing.T) {
	// The state moved to paused while the decode was in flight; the
	// continuation must not touch the scheduler.
	m, _, out := newTestModel(t)
	m.playback = PlaybackPaused

	buf, _ := player.DecodeChunk(encodeChunk(4800), m.format)
	m.handleDecodedChunk(audioDecodedMsg{buf: buf})

	if out.scheduledCount() != 0 {
		t.Error("stale decoded chunk was scheduled")
	}
}

func TestUnderrunFallsBackToLoading(t *testing.T) {
	m, _, out := newTestModel(t)
	m.playback = PlaybackLoading

	buf, _ := player.DecodeChunk(encodeChunk(4800), m.format)
	m.handleDecodedChunk(audioDecodedMsg{buf: buf})
	m.playback = PlaybackPlaying
	seq := m.primeSeq

	// The hardware clock overtakes the schedule.
	out.now = 30
	buf2, _ := player.DecodeChunk(encodeChunk(4800), m.format)
	m.handleDecodedChunk(audioDecodedMsg{buf: buf2})

	if m.playback != PlaybackLoading {
		t.Errorf("playback = %v after underrun, want loading", m.playback)
	}
	if m.sched.NextStartTime() != 0 {
		t.Error("clock not reset after underrun")
	}
	if m.primeSeq == seq {
		t.Error("primeSeq not bumped after underrun; stale pre-roll timer stays live")
	}
	if out.scheduledCount() != 1 {
		t.Errorf("scheduled %d buffers, want 1 (underrun buffer dropped)", out.scheduledCount())
	}
}

func TestEmptyChunkErrorsAreSilentlySkipped(t *testing.T) {
	m, _, _ := newTestModel(t)
	m.playback = PlaybackPlaying

	for _, err := range []error{player.ErrEmptyPayload, player.ErrEmptyBuffer} {
		m.handleDecodedChunk(audioDecodedMsg{err: err})
		if m.playback != PlaybackPlaying {
			t.Errorf("playback = %v after %v, want unchanged", m.playback, err)
		}
		if m.toastText != "" {
			t.Errorf("toast = %q after %v, want silent skip", m.toastText, err)
		}
	}

	// Real decode failures pause with a notification.
	m.handleDecodedChunk(audioDecodedMsg{err: errors.New("corrupt")})
	if m.playback != PlaybackPaused {
		t.Errorf("playback = %v after decode failure, want paused", m.playback)
	}
}

func TestPreRollTimerRespectsSequence(t *testing.T) {
	m, _, _ := newTestModel(t)
	m.playback = PlaybackLoading
	m.primeSeq = 5

	// A timer armed before a reset is inert.
	update(t, m, preRollMsg{seq: 4})
	if m.playback != PlaybackLoading {
		t.Errorf("playback = %v after stale pre-roll, want loading", m.playback)
	}

	update(t, m, preRollMsg{seq: 5})
	if m.playback != PlaybackPlaying {
		t.Errorf("playback = %v after current pre-roll, want playing", m.playback)
	}

	// Firing again outside loading changes nothing.
	m.playback = PlaybackPaused
	update(t, m, preRollMsg{seq: 5})
	if m.playback != PlaybackPaused {
		t.Errorf("playback = %v, want paused unchanged", m.playback)
	}
}

func TestPauseAndStopIssueSessionCalls(t *testing.T) {
	m, session, out := newTestModel(t)
	m.session = session
	m.playback = PlaybackPlaying

	if cmd := m.pausePlayback(); cmd != nil {
		cmd()
	}
	if m.playback != PlaybackPaused {
		t.Errorf("playback = %v, want paused", m.playback)
	}
	if m.sched.NextStartTime() != 0 {
		t.Error("clock not reset on pause")
	}
	if !out.lines[0].detached {
		t.Error("output line not retired on pause")
	}

	if cmd := m.stopPlayback(); cmd != nil {
		cmd()
	}
	if m.playback != PlaybackStopped {
		t.Errorf("playback = %v, want stopped", m.playback)
	}

	session.mu.Lock()
	defer session.mu.Unlock()
	if session.pauses != 1 || session.stops != 1 {
		t.Errorf("session calls: %d pauses, %d stops, want 1 and 1", session.pauses, session.stops)
	}
}

// --- Settings and restart ---

func TestSettingsChangeSchedulesConfigPush(t *testing.T) {
	m, session, _ := newTestModel(t)
	m.session = session

	temp := 1.4
	update(t, m, settingsChanged(music.GenerationConfig{Temperature: &temp}))
	if !m.configThrottle.Armed() {
		t.Fatal("config throttle not armed after settings change")
	}
	if m.pendingContextReset {
		t.Error("temperature change flagged a context reset")
	}

	bpm := 140
	update(t, m, settingsChanged(music.GenerationConfig{Temperature: &temp, BPM: &bpm}))
	if !m.pendingContextReset {
		t.Fatal("BPM change did not flag a context reset")
	}

	if cmd := m.flushConfig(); cmd != nil {
		cmd()
	}
	session.mu.Lock()
	defer session.mu.Unlock()
	if len(session.configs) != 1 {
		t.Fatalf("got %d config pushes, want 1", len(session.configs))
	}
	if session.configs[0].BPM == nil || *session.configs[0].BPM != 140 {
		t.Errorf("pushed config BPM = %v, want 140", session.configs[0].BPM)
	}
	if session.resets != 1 {
		t.Errorf("context resets = %d, want 1 after BPM change", session.resets)
	}
	if m.pendingContextReset {
		t.Error("pendingContextReset not cleared by flush")
	}
}

func TestRestartGameResetsEverything(t *testing.T) {
	m, session, _ := newTestModel(t)
	m.session = session

	m.textarea.SetValue("MUSIC")
	m.handleGuess()
	m.filtered[m.order[0]] = struct{}{}

	if cmd := m.restartGame(); cmd != nil {
		cmd()
	}

	if len(m.components) != 0 || len(m.order) != 0 || len(m.filtered) != 0 {
		t.Error("components survived a game restart")
	}
	if m.game.Index != 0 || m.game.Won {
		t.Errorf("game = %+v, want fresh", m.game)
	}
	session.mu.Lock()
	defer session.mu.Unlock()
	if session.resets != 1 {
		t.Errorf("context resets = %d, want 1 on restart", session.resets)
	}
}

func TestToastReplacementCancelsPendingHide(t *testing.T) {
	m, _, _ := newTestModel(t)

	m.showToast("first")
	firstSeq := m.toastSeq
	m.showToast("second")

	// The first toast's hide must not clear the second.
	update(t, m, toastHideMsg{seq: firstSeq})
	if m.toastText != "second" {
		t.Errorf("toast = %q, want second toast to survive stale hide", m.toastText)
	}
	update(t, m, toastHideMsg{seq: m.toastSeq})
	if m.toastText != "" {
		t.Errorf("toast = %q, want cleared by current hide", m.toastText)
	}
}

// settingsChanged builds the message the settings panel emits.
func settingsChanged(cfg music.GenerationConfig) tea.Msg {
	return settings.ChangedMsg{Config: cfg}
}

func ExamplePlaybackState_String() {
	fmt.Println(PlaybackStopped, PlaybackLoading, PlaybackPlaying, PlaybackPaused)
	// Output: stopped loading playing paused
}
