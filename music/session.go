package music

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/gorilla/websocket"
)

// Session is one live connection to the music generation service. Control
// operations may be called from any goroutine; writes are serialized on an
// internal mutex. Inbound traffic is delivered to the Callbacks passed to
// Connect from a dedicated read goroutine.
type Session struct {
	conn *websocket.Conn
	cb   Callbacks

	mu     sync.Mutex
	closed bool
}

// Play asks the service to start or resume generating audio.
func (s *Session) Play() error {
	return s.send(clientMessage{PlaybackControl: controlPlay})
}

// Pause asks the service to suspend generation without losing the musical
// context.
func (s *Session) Pause() error {
	return s.send(clientMessage{PlaybackControl: controlPause})
}

// Stop halts generation.
func (s *Session) Stop() error {
	return s.send(clientMessage{PlaybackControl: controlStop})
}

// ResetContext discards the accumulated musical context so the next audio
// starts fresh. Required after changing parameters the service only applies
// to a new context, such as BPM and scale.
func (s *Session) ResetContext() error {
	return s.send(clientMessage{PlaybackControl: controlResetContext})
}

// SetWeightedPrompts replaces the active prompt snapshot.
func (s *Session) SetWeightedPrompts(prompts []WeightedPrompt) error {
	if prompts == nil {
		prompts = []WeightedPrompt{}
	}
	return s.send(clientMessage{ClientContent: &clientContent{WeightedPrompts: prompts}})
}

// SetMusicGenerationConfig replaces the generation parameters.
func (s *Session) SetMusicGenerationConfig(cfg GenerationConfig) error {
	return s.send(clientMessage{MusicGenerationConfig: &cfg})
}

// Close sends a normal close message and tears the connection down. The
// read loop reports the resulting closure as clean. Closing twice is a
// no-op.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	err := s.conn.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
	)
	if err != nil {
		log.Printf("Error sending close message: %v", err)
	}
	return s.conn.Close()
}

func (s *Session) send(msg clientMessage) error {
	return s.writeJSON(msg)
}

func (s *Session) writeJSON(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %v", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("session has been closed")
	}
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

// readLoop reads frames until the connection drops, classifying each into
// the ServerMessage union. It always fires OnClose exactly once on exit.
func (s *Session) readLoop() {
	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			wasClosed := s.closed
			s.closed = true
			s.mu.Unlock()

			clean := wasClosed || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
			if !clean && s.cb.OnError != nil {
				s.cb.OnError(fmt.Errorf("failed to read from session: %v", err))
			}
			if s.cb.OnClose != nil {
				s.cb.OnClose(err, clean)
			}
			return
		}

		var msg ServerMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			log.Printf("Warning: Failed to parse server message: %v", err)
			continue
		}
		if msg.Kind() == KindUnknown {
			log.Printf("Skipping unrecognized server message: %s", string(payload))
			continue
		}
		if s.cb.OnMessage != nil {
			s.cb.OnMessage(msg)
		}
	}
}
