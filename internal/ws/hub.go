// Package ws pushes popup, badge, and sound events to connected dashboard
// clients over WebSocket, and routes their dismiss/tap actions back to
// the presentation queue.
package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"facility-notify/internal/popup"
)

const maxConnsPerUser = 10

// Controller handles alert actions arriving from clients.
type Controller interface {
	Dismiss(id string)
	Tap(ctx context.Context, id string)
}

type envelope struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload,omitempty"`
}

type closePayload struct {
	ID string `json:"id"`
}

type badgePayload struct {
	Count int `json:"count"`
}

type clientAction struct {
	Action string `json:"action"`
	ID     string `json:"id"`
}

// Hub manages WebSocket connections per user and fans presentation
// events out to all of them. It satisfies popup.Sink.
//
// The hub doubles as the session identity source: a dashboard client
// connecting signs that user in, and closing their last connection signs
// them out.
type Hub struct {
	mu          sync.Mutex
	connections map[string]map[*websocket.Conn]bool
	activeUser  string
	onChange    []func(string)
	ctrl        Controller
	logger      *logrus.Logger
}

func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		connections: make(map[string]map[*websocket.Conn]bool),
		logger:      logger,
	}
}

// SetController wires the action handler. Must be called before clients
// connect.
func (h *Hub) SetController(ctrl Controller) {
	h.ctrl = ctrl
}

// CurrentUser reports the signed-in dashboard user, "" when none.
func (h *Hub) CurrentUser(_ context.Context) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.activeUser, nil
}

// OnChange registers a callback fired when the signed-in user changes.
func (h *Hub) OnChange(fn func(string)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onChange = append(h.onChange, fn)
}

// AddConnection registers a connection for a user, up to the per-user cap.
func (h *Hub) AddConnection(userID string, conn *websocket.Conn) bool {
	h.mu.Lock()
	if _, exists := h.connections[userID]; !exists {
		h.connections[userID] = make(map[*websocket.Conn]bool)
	}
	if len(h.connections[userID]) >= maxConnsPerUser {
		h.mu.Unlock()
		h.logger.Warnf("Max connections reached for user %s", userID)
		return false
	}
	h.connections[userID][conn] = true
	h.logger.Infof("Added WebSocket connection for user %s (total: %d)", userID, len(h.connections[userID]))
	notify := h.setActiveLocked(userID)
	h.mu.Unlock()
	notify()
	return true
}

// RemoveConnection drops a connection for a user.
func (h *Hub) RemoveConnection(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	notify := func() {}
	if conns, exists := h.connections[userID]; exists {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.connections, userID)
			if h.activeUser == userID {
				notify = h.setActiveLocked("")
			}
		}
		h.logger.Infof("Removed WebSocket connection for user %s (remaining: %d)", userID, len(conns))
	}
	h.mu.Unlock()
	notify()
}

// setActiveLocked swaps the signed-in user and returns a closure that
// fires the change callbacks. Callers invoke it after releasing the lock
// so callbacks can broadcast without deadlocking.
func (h *Hub) setActiveLocked(userID string) func() {
	if h.activeUser == userID {
		return func() {}
	}
	h.activeUser = userID
	callbacks := make([]func(string), len(h.onChange))
	copy(callbacks, h.onChange)
	return func() {
		for _, fn := range callbacks {
			fn(userID)
		}
	}
}

// ReadPump consumes client actions until the connection drops. Runs in
// the connection's goroutine; RemoveConnection is handled by the caller.
func (h *Hub) ReadPump(userID string, conn *websocket.Conn) {
	for {
		var action clientAction
		if err := conn.ReadJSON(&action); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Errorf("WebSocket read failed for user %s: %v", userID, err)
			}
			return
		}
		h.handleAction(userID, action)
	}
}

func (h *Hub) handleAction(userID string, action clientAction) {
	if h.ctrl == nil || action.ID == "" {
		return
	}
	switch action.Action {
	case "dismiss":
		h.ctrl.Dismiss(action.ID)
	case "tap":
		h.ctrl.Tap(context.Background(), action.ID)
	default:
		h.logger.Warnf("Unknown WebSocket action %q from user %s", action.Action, userID)
	}
}

// ShowAlert pushes a rendered popup to the signed-in user's clients.
func (h *Hub) ShowAlert(a popup.Alert) {
	h.broadcast(envelope{Event: "notification_popup", Payload: a})
}

// CloseAlert tells clients to start the closing animation for an alert.
func (h *Hub) CloseAlert(id string) {
	h.broadcast(envelope{Event: "notification_close", Payload: closePayload{ID: id}})
}

// UpdateBadge pushes the unread count.
func (h *Hub) UpdateBadge(count int) {
	h.broadcast(envelope{Event: "badge_update", Payload: badgePayload{Count: count}})
}

// PlayAlertSound asks clients to play the alert chime.
func (h *Hub) PlayAlertSound() error {
	h.broadcast(envelope{Event: "play_alert_sound"})
	return nil
}

// broadcast fans an event out to the signed-in user's connections only.
// Popups and badge counts belong to the active session, so connections
// held open by a previously signed-in user must never see them.
func (h *Hub) broadcast(ev envelope) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Errorf("Failed to marshal %s event: %v", ev.Event, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.activeUser == "" {
		return
	}
	conns, exists := h.connections[h.activeUser]
	if !exists {
		return
	}
	for conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Errorf("Failed to send WebSocket message to user %s: %v", h.activeUser, err)
			delete(conns, conn)
		}
	}
	if len(conns) == 0 {
		delete(h.connections, h.activeUser)
	}
}
