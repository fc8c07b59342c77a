// Package settings implements the generation-config panel: a focusable
// list of tunable parameters, each either an explicit value or "auto".
package settings

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tmc/wordjam/music"
)

// ChangedMsg is emitted to the parent model whenever an edit lands.
type ChangedMsg struct {
	Config music.GenerationConfig
}

// Field indices, in display order.
const (
	fieldBPM = iota
	fieldScale
	fieldDensity
	fieldBrightness
	fieldTemperature
	fieldTopK
	fieldGuidance
	fieldSeed
	fieldMuteBass
	fieldMuteDrums
	fieldOnlyBassAndDrums
	fieldCount
)

var fieldNames = [fieldCount]string{
	"BPM", "Scale", "Density", "Brightness", "Temperature",
	"Top-K", "Guidance", "Seed", "Mute bass", "Mute drums", "Bass & drums only",
}

// scales the service understands; "" renders as auto.
var scales = []string{
	"",
	"C_MAJOR_A_MINOR",
	"D_FLAT_MAJOR_B_FLAT_MINOR",
	"D_MAJOR_B_MINOR",
	"E_FLAT_MAJOR_C_MINOR",
	"E_MAJOR_D_FLAT_MINOR",
	"F_MAJOR_D_MINOR",
	"G_FLAT_MAJOR_E_FLAT_MINOR",
	"G_MAJOR_E_MINOR",
	"A_FLAT_MAJOR_F_MINOR",
	"A_MAJOR_G_FLAT_MINOR",
	"B_FLAT_MAJOR_G_MINOR",
	"B_MAJOR_A_FLAT_MINOR",
}

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	cursorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	autoStyle     = lipgloss.NewStyle().Faint(true)
	helpStyle     = lipgloss.NewStyle().Faint(true)
	settingStyle  = lipgloss.NewStyle()
	selectedStyle = lipgloss.NewStyle().Bold(true)
)

// Model represents the settings panel state.
type Model struct {
	Width   int
	Height  int
	Focused bool
	Config  music.GenerationConfig

	cursor int
}

// New creates a new settings model with everything on auto.
func New() Model {
	return Model{}
}

// Init initializes the settings model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles updating the settings model. Up/down move the cursor,
// left/right adjust the selected field, "a" resets it to auto, esc closes
// the panel. Every edit emits a ChangedMsg.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width / 3
		m.Height = msg.Height

	case tea.KeyMsg:
		if !m.Focused {
			return m, nil
		}
		switch msg.String() {
		case "esc":
			m.Focused = false
		case "up", "k":
			m.cursor = (m.cursor - 1 + fieldCount) % fieldCount
		case "down", "j":
			m.cursor = (m.cursor + 1) % fieldCount
		case "left", "h":
			m.adjust(-1)
			return m, m.changed()
		case "right", "l", "enter", " ":
			m.adjust(1)
			return m, m.changed()
		case "a":
			m.clearField()
			return m, m.changed()
		}
	}
	return m, nil
}

func (m Model) changed() tea.Cmd {
	cfg := m.Config
	return func() tea.Msg {
		return ChangedMsg{Config: cfg}
	}
}

// adjust nudges the selected field by dir steps, initializing an auto
// field at its midpoint first.
func (m *Model) adjust(dir int) {
	c := &m.Config
	switch m.cursor {
	case fieldBPM:
		c.BPM = stepInt(c.BPM, dir*5, 60, 200, 120)
	case fieldScale:
		c.Scale = cycleScale(c.Scale, dir)
	case fieldDensity:
		c.Density = stepFloat(c.Density, float64(dir)*0.05, 0, 1, 0.5)
	case fieldBrightness:
		c.Brightness = stepFloat(c.Brightness, float64(dir)*0.05, 0, 1, 0.5)
	case fieldTemperature:
		c.Temperature = stepFloat(c.Temperature, float64(dir)*0.1, 0, 3, 1.1)
	case fieldTopK:
		c.TopK = stepInt(c.TopK, dir, 1, 100, 40)
	case fieldGuidance:
		c.Guidance = stepFloat(c.Guidance, float64(dir)*0.5, 0, 6, 4)
	case fieldSeed:
		c.Seed = stepInt(c.Seed, dir, 0, 1<<30, 0)
	case fieldMuteBass:
		c.MuteBass = !c.MuteBass
	case fieldMuteDrums:
		c.MuteDrums = !c.MuteDrums
	case fieldOnlyBassAndDrums:
		c.OnlyBassAndDrums = !c.OnlyBassAndDrums
	}
}

// clearField resets the selected field to auto/unset.
func (m *Model) clearField() {
	c := &m.Config
	switch m.cursor {
	case fieldBPM:
		c.BPM = nil
	case fieldScale:
		c.Scale = ""
	case fieldDensity:
		c.Density = nil
	case fieldBrightness:
		c.Brightness = nil
	case fieldTemperature:
		c.Temperature = nil
	case fieldTopK:
		c.TopK = nil
	case fieldGuidance:
		c.Guidance = nil
	case fieldSeed:
		c.Seed = nil
	case fieldMuteBass:
		c.MuteBass = false
	case fieldMuteDrums:
		c.MuteDrums = false
	case fieldOnlyBassAndDrums:
		c.OnlyBassAndDrums = false
	}
}

func stepInt(v *int, delta, lo, hi, init int) *int {
	n := init
	if v != nil {
		n = *v + delta
	}
	if n < lo {
		n = lo
	}
	if n > hi {
		n = hi
	}
	return &n
}

func stepFloat(v *float64, delta, lo, hi, init float64) *float64 {
	n := init
	if v != nil {
		n = *v + delta
	}
	if n < lo {
		n = lo
	}
	if n > hi {
		n = hi
	}
	return &n
}

func cycleScale(current string, dir int) string {
	idx := 0
	for i, s := range scales {
		if s == current {
			idx = i
			break
		}
	}
	idx = (idx + dir + len(scales)) % len(scales)
	return scales[idx]
}

// fieldValue renders the selected field's current value.
func (m Model) fieldValue(field int) string {
	c := m.Config
	auto := autoStyle.Render("auto")
	switch field {
	case fieldBPM:
		if c.BPM == nil {
			return auto
		}
		return fmt.Sprintf("%d", *c.BPM)
	case fieldScale:
		if c.Scale == "" {
			return auto
		}
		return strings.ReplaceAll(c.Scale, "_", " ")
	case fieldDensity:
		if c.Density == nil {
			return auto
		}
		return fmt.Sprintf("%.2f", *c.Density)
	case fieldBrightness:
		if c.Brightness == nil {
			return auto
		}
		return fmt.Sprintf("%.2f", *c.Brightness)
	case fieldTemperature:
		if c.Temperature == nil {
			return auto
		}
		return fmt.Sprintf("%.1f", *c.Temperature)
	case fieldTopK:
		if c.TopK == nil {
			return auto
		}
		return fmt.Sprintf("%d", *c.TopK)
	case fieldGuidance:
		if c.Guidance == nil {
			return auto
		}
		return fmt.Sprintf("%.1f", *c.Guidance)
	case fieldSeed:
		if c.Seed == nil {
			return auto
		}
		return fmt.Sprintf("%d", *c.Seed)
	case fieldMuteBass:
		return onOff(c.MuteBass)
	case fieldMuteDrums:
		return onOff(c.MuteDrums)
	case fieldOnlyBassAndDrums:
		return onOff(c.OnlyBassAndDrums)
	}
	return ""
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// View renders the settings panel.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Generation Settings"))
	b.WriteString("\n\n")

	for i := 0; i < fieldCount; i++ {
		cursor := "  "
		style := settingStyle
		if m.Focused && i == m.cursor {
			cursor = cursorStyle.Render("> ")
			style = selectedStyle
		}
		b.WriteString(fmt.Sprintf("%s%s %s\n", cursor, style.Render(fieldNames[i]+":"), m.fieldValue(i)))
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("↑/↓ select · ←/→ adjust · a auto · esc close"))
	return b.String()
}

// Focus sets focus on the settings panel.
func (m *Model) Focus() {
	m.Focused = true
}

// Blur removes focus from the settings panel.
func (m *Model) Blur() {
	m.Focused = false
}

// IsFocused returns whether the settings panel is focused.
func (m Model) IsFocused() bool {
	return m.Focused
}
