package wordjam

import (
	"github.com/google/uuid"

	"github.com/tmc/wordjam/music"
)

// addComponent creates a component for a guessed word and returns its ID.
func (m *Model) addComponent(text string) string {
	c := MusicComponent{
		ID:     uuid.NewString(),
		Text:   text,
		Weight: initialWeight,
		Color:  componentPalette[len(m.order)%len(componentPalette)],
	}
	m.components[c.ID] = c
	m.order = append(m.order, c.ID)
	m.selected = len(m.order) - 1
	return c.ID
}

// setComponentWeight replaces the component entry with the clamped weight.
func (m *Model) setComponentWeight(id string, weight float64) {
	c, ok := m.components[id]
	if !ok {
		return
	}
	if weight < 0 {
		weight = 0
	}
	if weight > maxWeight {
		weight = maxWeight
	}
	c.Weight = weight
	m.components[id] = c
}

// removeComponent drops a component entirely, including its filtered mark,
// so re-guessing the same word starts clean.
func (m *Model) removeComponent(id string) {
	if _, ok := m.components[id]; !ok {
		return
	}
	delete(m.components, id)
	delete(m.filtered, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	if m.selected >= len(m.order) {
		m.selected = len(m.order) - 1
	}
}

// markFiltered records a service rejection for the component whose text
// matches exactly. The component stays visible but leaves every snapshot.
// Returns the matched component and whether one matched.
func (m *Model) markFiltered(text string) (MusicComponent, bool) {
	for _, id := range m.order {
		c := m.components[id]
		if c.Text == text {
			m.filtered[id] = struct{}{}
			return c, true
		}
	}
	return MusicComponent{}, false
}

// promptSnapshot builds the weighted-prompt list sent to the session:
// every component above the negligible-weight threshold that has not been
// filtered, in display order.
func (m *Model) promptSnapshot() []music.WeightedPrompt {
	prompts := make([]music.WeightedPrompt, 0, len(m.order))
	for _, id := range m.order {
		if _, ok := m.filtered[id]; ok {
			continue
		}
		c := m.components[id]
		if c.Weight <= weightEpsilon {
			continue
		}
		prompts = append(prompts, music.WeightedPrompt{Text: c.Text, Weight: c.Weight})
	}
	return prompts
}

// selectedComponent returns the currently selected component, if any.
func (m *Model) selectedComponent() (MusicComponent, bool) {
	if m.selected < 0 || m.selected >= len(m.order) {
		return MusicComponent{}, false
	}
	return m.components[m.order[m.selected]], true
}
