package ws

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"facility-notify/internal/popup"
)

type fakeController struct {
	mu        sync.Mutex
	dismissed []string
	tapped    []string
}

func (f *fakeController) Dismiss(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dismissed = append(f.dismissed, id)
}

func (f *fakeController) Tap(_ context.Context, id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tapped = append(f.tapped, id)
}

func (f *fakeController) snapshot() ([]string, []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.dismissed...), append([]string(nil), f.tapped...)
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestIdentityFollowsConnections(t *testing.T) {
	hub := NewHub(testLogger())

	var mu sync.Mutex
	var changes []string
	hub.OnChange(func(userID string) {
		mu.Lock()
		defer mu.Unlock()
		changes = append(changes, userID)
	})

	u1Conn := &websocket.Conn{}
	u2Conn := &websocket.Conn{}

	require.True(t, hub.AddConnection("u1", u1Conn))
	require.True(t, hub.AddConnection("u2", u2Conn))
	hub.RemoveConnection("u2", u2Conn)

	current, err := hub.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "", current)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"u1", "u2", ""}, changes)
}

func TestSecondConnectionSameUserKeepsIdentity(t *testing.T) {
	hub := NewHub(testLogger())

	var mu sync.Mutex
	var changes []string
	hub.OnChange(func(userID string) {
		mu.Lock()
		defer mu.Unlock()
		changes = append(changes, userID)
	})

	first := &websocket.Conn{}
	second := &websocket.Conn{}
	require.True(t, hub.AddConnection("u1", first))
	require.True(t, hub.AddConnection("u1", second))

	// Dropping one of two connections does not sign the user out.
	hub.RemoveConnection("u1", first)
	current, _ := hub.CurrentUser(context.Background())
	assert.Equal(t, "u1", current)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"u1"}, changes)
}

func TestConnectionCap(t *testing.T) {
	hub := NewHub(testLogger())
	for i := 0; i < maxConnsPerUser; i++ {
		require.True(t, hub.AddConnection("u1", &websocket.Conn{}))
	}
	assert.False(t, hub.AddConnection("u1", &websocket.Conn{}))
}

// dialClient connects one client for userID through a hub-backed server
// and waits until the hub has registered it.
func dialClient(t *testing.T, hub *Hub, userID string) *websocket.Conn {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		if !hub.AddConnection(userID, conn) {
			conn.Close()
			return
		}
		defer func() {
			hub.RemoveConnection(userID, conn)
			conn.Close()
		}()
		hub.ReadPump(userID, conn)
	}))
	t.Cleanup(srv.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	eventually(t, func() bool {
		current, _ := hub.CurrentUser(context.Background())
		return current == userID
	}, "connection was not registered")
	return client
}

func TestEventsReachOnlyTheSignedInUser(t *testing.T) {
	hub := NewHub(testLogger())

	stale := dialClient(t, hub, "u1")
	active := dialClient(t, hub, "u2")

	hub.ShowAlert(popup.Alert{ID: "n-u2", Type: "task_assigned", Title: "Personal task"})
	hub.UpdateBadge(3)

	var env wsEnvelope
	require.NoError(t, active.ReadJSON(&env))
	assert.Equal(t, "notification_popup", env.Event)
	assert.Equal(t, "n-u2", env.Payload["id"])
	require.NoError(t, active.ReadJSON(&env))
	assert.Equal(t, "badge_update", env.Event)

	// The previous user's still-open connection sees none of it.
	require.NoError(t, stale.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	err := stale.ReadJSON(&env)
	require.Error(t, err, "stale connection received %q", env.Event)
	var netErr interface{ Timeout() bool }
	require.ErrorAs(t, err, &netErr)
	assert.True(t, netErr.Timeout())
}

type wsEnvelope struct {
	Event   string                 `json:"event"`
	Payload map[string]interface{} `json:"payload"`
}

func TestHubPushesEventsAndRoutesActions(t *testing.T) {
	hub := NewHub(testLogger())
	ctrl := &fakeController{}
	hub.SetController(ctrl)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		if !hub.AddConnection("u1", conn) {
			conn.Close()
			return
		}
		defer func() {
			hub.RemoveConnection("u1", conn)
			conn.Close()
		}()
		hub.ReadPump("u1", conn)
	}))
	defer srv.Close()

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer client.Close()

	eventually(t, func() bool {
		current, _ := hub.CurrentUser(context.Background())
		return current == "u1"
	}, "connection was not registered")

	hub.ShowAlert(popup.Alert{ID: "n1", Type: "trashcan_full", Title: "Bin full"})
	hub.UpdateBadge(2)
	require.NoError(t, hub.PlayAlertSound())
	hub.CloseAlert("n1")

	var env wsEnvelope
	require.NoError(t, client.ReadJSON(&env))
	assert.Equal(t, "notification_popup", env.Event)
	assert.Equal(t, "n1", env.Payload["id"])
	assert.Equal(t, "Bin full", env.Payload["title"])

	require.NoError(t, client.ReadJSON(&env))
	assert.Equal(t, "badge_update", env.Event)
	assert.Equal(t, float64(2), env.Payload["count"])

	require.NoError(t, client.ReadJSON(&env))
	assert.Equal(t, "play_alert_sound", env.Event)

	require.NoError(t, client.ReadJSON(&env))
	assert.Equal(t, "notification_close", env.Event)
	assert.Equal(t, "n1", env.Payload["id"])

	require.NoError(t, client.WriteJSON(map[string]string{"action": "dismiss", "id": "n1"}))
	require.NoError(t, client.WriteJSON(map[string]string{"action": "tap", "id": "n2"}))

	eventually(t, func() bool {
		dismissed, tapped := ctrl.snapshot()
		return len(dismissed) == 1 && len(tapped) == 1
	}, "client actions were not routed")
	dismissed, tapped := ctrl.snapshot()
	assert.Equal(t, []string{"n1"}, dismissed)
	assert.Equal(t, []string{"n2"}, tapped)
}
