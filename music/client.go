// Package music implements the client side of the real-time music
// generation session: a WebSocket connection carrying JSON control frames
// out and classified server messages in.
package music

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultEndpoint is the WebSocket endpoint for the real-time music
// generation service.
const DefaultEndpoint = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1alpha.GenerativeService.BidiGenerateMusic"

// handshakeTimeout bounds the WebSocket dial.
const handshakeTimeout = 30 * time.Second

// Client dials music generation sessions. The zero value is not usable;
// at minimum APIKey and Model must be set. Endpoint defaults to
// DefaultEndpoint when empty.
type Client struct {
	APIKey   string
	Endpoint string
	Model    string
}

// Connect establishes a session: it dials the endpoint, sends the setup
// frame, and starts the read loop delivering inbound traffic to cb. The
// setup-complete acknowledgment arrives asynchronously through
// cb.OnMessage. Callers own the returned session and must Close it.
func (c *Client) Connect(ctx context.Context, cb Callbacks) (*Session, error) {
	if c.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if c.Model == "" {
		return nil, fmt.Errorf("model name is required")
	}

	endpoint := c.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	// The wire protocol requires the "models/" prefix.
	model := c.Model
	if !strings.HasPrefix(model, "models/") {
		model = "models/" + model
	}

	log.Printf("Connecting to music session endpoint: %s", endpoint)
	header := http.Header{}
	header.Add("x-goog-api-key", c.APIKey)

	dialer := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
	}

	conn, resp, err := dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to connect to music session: %v (HTTP status: %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("failed to connect to music session: %v", err)
	}

	s := &Session{
		conn: conn,
		cb:   cb,
	}

	if err := s.writeJSON(setupRequest{Setup: setupConfig{Model: model}}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to send setup message: %v", err)
	}

	go s.readLoop()
	log.Printf("Music session established for model: %s", model)
	return s, nil
}
