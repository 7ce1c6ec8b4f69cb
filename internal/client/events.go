// ABOUTME: WebSocket listener for backend job/status notifications
// ABOUTME: Delivers signaling messages as opaque events on a channel
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Event is one signaling notification. The payload is opaque to the
// playback core; consumers interpret it by type.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// EventListener maintains the signaling WebSocket connection and routes
// incoming notifications to the Events channel.
type EventListener struct {
	serverAddr string
	sessionID  string
	conn       *websocket.Conn
	events     chan Event
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewEventListener creates a listener for the signaling endpoint.
func NewEventListener(serverAddr string) *EventListener {
	ctx, cancel := context.WithCancel(context.Background())

	return &EventListener{
		serverAddr: serverAddr,
		sessionID:  uuid.New().String(),
		events:     make(chan Event, 32),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// SessionID returns the listener's session identifier.
func (l *EventListener) SessionID() string {
	return l.sessionID
}

// Connect dials the signaling endpoint and starts the read loop.
func (l *EventListener) Connect() error {
	u := url.URL{
		Scheme:   "ws",
		Host:     l.serverAddr,
		Path:     "/api/events",
		RawQuery: url.Values{"session": {l.sessionID}}.Encode(),
	}
	log.Printf("Connecting to signaling endpoint %s", u.String())

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}
	l.conn = conn

	go l.readLoop()
	return nil
}

// Events returns the channel of incoming notifications.
func (l *EventListener) Events() <-chan Event {
	return l.events
}

// readLoop reads and routes incoming messages until the connection drops.
// It is the only sender on the events channel, so it closes it on exit and
// range consumers terminate with it.
func (l *EventListener) readLoop() {
	defer close(l.events)
	defer l.Close()

	for {
		select {
		case <-l.ctx.Done():
			return
		default:
		}

		_, data, err := l.conn.ReadMessage()
		if err != nil {
			log.Printf("Signaling read error: %v", err)
			return
		}

		var event Event
		if err := json.Unmarshal(data, &event); err != nil {
			log.Printf("Failed to parse signaling message: %v", err)
			continue
		}

		select {
		case l.events <- event:
		case <-l.ctx.Done():
			return
		}
	}
}

// Close tears down the connection. Safe to call more than once.
func (l *EventListener) Close() {
	l.cancel()
	if l.conn != nil {
		l.conn.Close()
	}
}
