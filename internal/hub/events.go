package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// hub websocket message types
const (
	wsAuthRequired = "auth_required"
	wsAuth         = "auth"
	wsAuthOK       = "auth_ok"
	wsAuthInvalid  = "auth_invalid"
	wsSubscribe    = "subscribe_events"
	wsResult       = "result"
	wsEvent        = "event"
)

type wsMessage struct {
	ID          int             `json:"id,omitempty"`
	Type        string          `json:"type"`
	AccessToken string          `json:"access_token,omitempty"`
	EventType   string          `json:"event_type,omitempty"`
	Success     *bool           `json:"success,omitempty"`
	Event       json.RawMessage `json:"event,omitempty"`
}

// StateChange is a state_changed event from the hub.
type StateChange struct {
	EntityID string `json:"entity_id"`
	OldState *State `json:"old_state"`
	NewState *State `json:"new_state"`
}

type stateChangedEvent struct {
	EventType string      `json:"event_type"`
	Data      StateChange `json:"data"`
}

// SubscribeStateChanges opens a websocket to the hub and invokes
// onChange for every state_changed event until ctx is cancelled or the
// connection drops. The caller owns reconnection.
func (c *Client) SubscribeStateChanges(ctx context.Context, onChange func(StateChange)) error {
	endpoint := "ws" + c.baseURL[len("http"):] + "/api/websocket"

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket connect: %w", err)
	}
	defer conn.Close()

	var mu sync.Mutex
	closed := false
	closeConn := func() {
		mu.Lock()
		defer mu.Unlock()
		if !closed {
			closed = true
			conn.Close()
		}
	}
	defer closeConn()

	// Auth handshake: auth_required -> auth -> auth_ok.
	var hello wsMessage
	if err := conn.ReadJSON(&hello); err != nil {
		return fmt.Errorf("read auth_required: %w", err)
	}
	if hello.Type != wsAuthRequired {
		return fmt.Errorf("expected auth_required, got %s", hello.Type)
	}

	if err := conn.WriteJSON(wsMessage{Type: wsAuth, AccessToken: c.token}); err != nil {
		return fmt.Errorf("send auth: %w", err)
	}

	var authResp wsMessage
	if err := conn.ReadJSON(&authResp); err != nil {
		return fmt.Errorf("read auth response: %w", err)
	}
	if authResp.Type != wsAuthOK {
		return fmt.Errorf("hub auth failed: %s", authResp.Type)
	}

	if err := conn.WriteJSON(wsMessage{ID: 1, Type: wsSubscribe, EventType: "state_changed"}); err != nil {
		return fmt.Errorf("send subscribe: %w", err)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			closeConn()
		case <-done:
		}
	}()

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read event: %w", err)
		}

		switch msg.Type {
		case wsResult:
			if msg.Success != nil && !*msg.Success {
				return fmt.Errorf("subscription rejected by hub")
			}

		case wsEvent:
			var event stateChangedEvent
			if err := json.Unmarshal(msg.Event, &event); err != nil {
				c.logger.Warn("malformed hub event", "error", err)
				continue
			}
			if event.EventType != "" && event.EventType != "state_changed" {
				continue
			}
			onChange(event.Data)

		default:
			continue
		}
	}
}
