package wordjam

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// refreshBoard rebuilds the viewport content: game progress plus the
// component chips.
func (m *Model) refreshBoard() {
	m.viewport.SetContent(m.boardContent())
}

// boardContent renders the current word prompt and every component as a
// colored chip with its weight bar.
func (m *Model) boardContent() string {
	var b strings.Builder

	if m.game.Won {
		b.WriteString(wonStyle.Render("You guessed them all! Every word is in the mix."))
		b.WriteString("\n")
		b.WriteString(statusStyle.Render("Ctrl+R starts a new game."))
		b.WriteString("\n\n")
	} else {
		b.WriteString(fmt.Sprintf("Unscramble word %d of %d:  %s\n\n",
			m.game.Index+1, len(m.game.Words), wordStyle.Render(m.game.Hint)))
	}

	if len(m.order) == 0 {
		b.WriteString(statusStyle.Render("Guess words to add musical components..."))
		b.WriteString("\n")
		return b.String()
	}

	for i, id := range m.order {
		c := m.components[id]
		b.WriteString(m.renderComponent(c, i == m.selected))
		b.WriteString("\n")
	}
	return b.String()
}

// renderComponent draws one chip: name, weight bar, weight value, and a
// filtered marker when the service rejected it.
func (m *Model) renderComponent(c MusicComponent, selected bool) string {
	name := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(c.Color)).Render(c.Text)

	_, isFiltered := m.filtered[c.ID]
	if isFiltered {
		name = filteredStyle.Render(c.Text)
	}

	filled := int(c.Weight / maxWeight * float64(weightBarWidth))
	if filled > weightBarWidth {
		filled = weightBarWidth
	}
	bar := weightBarStyle.Render(strings.Repeat("━", filled)) + strings.Repeat("╌", weightBarWidth-filled)

	line := fmt.Sprintf("%s %s %.1f", name, bar, c.Weight)
	if isFiltered {
		line += " " + errorStyle.Render("⊘ filtered")
	}

	style := chipStyle
	if selected {
		style = chipSelStyle
	}
	return style.Render(line)
}

// headerView renders the header for the UI.
func (m Model) headerView() string {
	var header strings.Builder
	title := "wordjam — " + m.modelName
	header.WriteString(titleStyle.Width(max(m.width, len(title))).Align(lipgloss.Center).Render(title))
	header.WriteString("\n")
	return header.String()
}

// statusView renders the playback state indicator.
func (m Model) statusView() string {
	switch m.playback {
	case PlaybackLoading:
		if m.connecting {
			return m.spinner.View() + " Connecting..."
		}
		return m.spinner.View() + " Buffering..."
	case PlaybackPlaying:
		return playIcon + " Playing"
	case PlaybackPaused:
		return pauseIcon + " Paused"
	default:
		if m.connecting {
			return m.spinner.View() + " Connecting..."
		}
		return stopIcon + statusStyle.Render(" Stopped")
	}
}

// footerView renders the input area, status line and toast.
func (m Model) footerView() string {
	var footer strings.Builder

	status := m.statusView()
	if m.err != nil && m.toastText == "" {
		errStr := fmt.Sprintf("Error: %v", m.err)
		maxErrWidth := m.width / 2
		if maxErrWidth > 3 && lipgloss.Width(errStr) > maxErrWidth {
			errStr = errStr[:maxErrWidth-3] + "..."
		}
		status += "  " + errorStyle.Render(errStr)
	}

	var toast string
	if m.toastText != "" {
		toast = toastStyle.Render(m.toastText)
	}

	help := statusStyle.Render("Ctrl+P: Play/Pause | Ctrl+X: Stop | Ctrl+S: Settings | ↑/↓: Select | Ctrl+↑/↓: Weight | Ctrl+D: Remove | Ctrl+C: Quit")

	spacerWidth := m.width - lipgloss.Width(status) - lipgloss.Width(toast) - 2
	if spacerWidth < 1 {
		spacerWidth = 1
	}
	statusLine := status + strings.Repeat(" ", spacerWidth) + toast

	footer.WriteString(lipgloss.JoinVertical(lipgloss.Left, "", m.textarea.View(), statusLine, help))
	return footer.String()
}

// View renders the UI.
func (m Model) View() string {
	if m.quitting {
		return "Closing session and quitting...\n"
	}

	if m.width == 0 || m.height == 0 {
		m.width = 80
		m.height = 24
	}

	m.textarea.SetWidth(m.width)
	m.textarea.SetHeight(1)
	if m.focusedComponent == "input" {
		m.textarea.Focus()
	}

	headerHeight := 2
	footerHeight := 4
	vpHeight := m.height - headerHeight - footerHeight
	m.viewport.Width = m.width
	m.viewport.Height = max(5, vpHeight)
	m.viewport.Style = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)
	m.viewport.SetContent(m.boardContent())

	var mainContent strings.Builder
	mainContent.WriteString(m.headerView())
	mainContent.WriteString(m.viewport.View())
	mainContent.WriteString(m.footerView())

	if !m.showSettings {
		return mainContent.String()
	}

	// Settings panel joined alongside the main content.
	settingsPanelWidth := m.width / 3
	settingsStyled := lipgloss.NewStyle().
		Width(settingsPanelWidth).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(0, 1).
		Render(m.settingsPanel.View())

	mainLines := strings.Split(mainContent.String(), "\n")
	settingsLines := strings.Split(settingsStyled, "\n")
	maxLines := max(len(mainLines), len(settingsLines))
	for len(settingsLines) < maxLines {
		settingsLines = append(settingsLines, "")
	}
	for len(mainLines) < maxLines {
		mainLines = append(mainLines, "")
	}

	var combined strings.Builder
	for i := 0; i < maxLines; i++ {
		combined.WriteString(lipgloss.NewStyle().Width(settingsPanelWidth).Render(settingsLines[i]))
		combined.WriteString(" ")
		combined.WriteString(mainLines[i])
		combined.WriteString("\n")
	}
	return combined.String()
}
