package wordjam

import (
	"time"

	"github.com/charmbracelet/lipgloss"
)

// --- Config ---

// DefaultModel is the real-time music generation model.
const DefaultModel = "models/lyria-realtime-exp"

// pushInterval is the throttle window for session pushes: across each
// window at most one SetWeightedPrompts / SetMusicGenerationConfig call is
// dispatched, carrying whatever state is current when the window reopens.
const pushInterval = 200 * time.Millisecond

// initialWeight is the weight a freshly guessed component starts at.
const initialWeight = 0.5

// weightStep is the keyboard weight adjustment granularity.
const weightStep = 0.1

// maxWeight caps a component's influence.
const maxWeight = 2.0

// weightEpsilon is the negligible-weight threshold below which a component
// is left out of push snapshots.
const weightEpsilon = 0.01

// DefaultWords is the built-in guess list, used when no word file is given.
var DefaultWords = []string{
	"MUSIC", "JAZZY", "DRUMS", "PIANO", "SYNTH",
	"CHORD", "TEMPO", "VINYL", "FUNKY", "DISCO",
}

// componentPalette colors chips in creation order.
var componentPalette = []string{"5", "6", "3", "2", "4", "1", "13", "14", "11", "10"}

// weightBarWidth defines the width of a component's weight bar.
const weightBarWidth = 10 // characters

// Styles
var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	wordStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11")) // Yellow
	wonStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10")) // Bright Green
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)  // Red
	statusStyle    = lipgloss.NewStyle().Faint(true)
	toastStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("11")).Padding(0, 1)
	chipStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")).Padding(0, 1)
	chipSelStyle   = chipStyle.BorderForeground(lipgloss.Color("63"))
	filteredStyle  = lipgloss.NewStyle().Strikethrough(true).Foreground(lipgloss.Color("8")) // Gray
	weightBarStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("5"))                     // Magenta
	stateIconStyle = lipgloss.NewStyle().Bold(true)
	playIcon       = stateIconStyle.Foreground(lipgloss.Color("10")).Render("▶")
	pauseIcon      = stateIconStyle.Foreground(lipgloss.Color("11")).Render("‖")
	stopIcon       = stateIconStyle.Foreground(lipgloss.Color("8")).Render("■")
)
