package popup

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"facility-notify/internal/models"
)

// Sink receives popup lifecycle events and badge updates. Concrete sinks
// render them however they like (WebSocket push, Telegram forward, ...).
type Sink interface {
	ShowAlert(a Alert)
	CloseAlert(id string)
	UpdateBadge(count int)
	PlayAlertSound() error
}

// Acknowledger marks a notification read when the user taps its popup.
type Acknowledger interface {
	MarkRead(ctx context.Context, id string) error
}

// Timing controls how long popups stay up. Zero values fall back to the
// 5s/10s/300ms defaults.
type Timing struct {
	Duration       time.Duration
	UrgentDuration time.Duration
	CloseDelay     time.Duration
}

func (t Timing) withDefaults() Timing {
	if t.Duration == 0 {
		t.Duration = 5 * time.Second
	}
	if t.UrgentDuration == 0 {
		t.UrgentDuration = 10 * time.Second
	}
	if t.CloseDelay == 0 {
		t.CloseDelay = 300 * time.Millisecond
	}
	return t
}

type alertState struct {
	autoClose *time.Timer
	closing   bool
}

// Queue renders notifications as transient popups: at most one active
// alert per notification id, auto-dismissed after a priority-dependent
// timeout, with a short staged closing delay before detach.
type Queue struct {
	mu     sync.Mutex
	active map[string]*alertState
	sinks  []Sink
	ack    Acknowledger
	timing Timing
	logger *logrus.Logger
	now    func() time.Time
}

func NewQueue(timing Timing, logger *logrus.Logger, sinks ...Sink) *Queue {
	return &Queue{
		active: make(map[string]*alertState),
		sinks:  sinks,
		timing: timing.withDefaults(),
		logger: logger,
		now:    time.Now,
	}
}

// SetAcknowledger wires the read-marking dependency. Set once during
// startup, before any popup can be tapped.
func (q *Queue) SetAcknowledger(ack Acknowledger) {
	q.ack = ack
}

// Display renders the record as a popup on every sink and schedules its
// auto-dismiss. A record already on screen is not rendered twice.
func (q *Queue) Display(n models.Notification) {
	alert := Render(n, q.now())

	q.mu.Lock()
	if _, exists := q.active[alert.ID]; exists {
		q.mu.Unlock()
		return
	}
	state := &alertState{}
	state.autoClose = time.AfterFunc(q.durationFor(alert.Priority), func() {
		q.Dismiss(alert.ID)
	})
	q.active[alert.ID] = state
	q.mu.Unlock()

	for _, s := range q.sinks {
		s.ShowAlert(alert)
	}
}

// Dismiss removes the popup without touching read state: the close button
// and the auto timeout both land here.
func (q *Queue) Dismiss(id string) {
	q.mu.Lock()
	state, ok := q.active[id]
	if !ok || state.closing {
		q.mu.Unlock()
		return
	}
	state.closing = true
	state.autoClose.Stop()
	q.mu.Unlock()

	for _, s := range q.sinks {
		s.CloseAlert(id)
	}

	// The detach delay mirrors the closing animation; nothing logical
	// waits on it.
	time.AfterFunc(q.timing.CloseDelay, func() {
		q.mu.Lock()
		delete(q.active, id)
		q.mu.Unlock()
	})
}

// Tap handles a primary click on the popup body: mark read, then remove.
// The popup goes away even if the backend call failed; the record simply
// stays unread.
func (q *Queue) Tap(ctx context.Context, id string) {
	if q.ack != nil {
		if err := q.ack.MarkRead(ctx, id); err != nil {
			q.logger.Errorf("Failed to mark notification %s read from popup tap: %v", id, err)
		}
	}
	q.Dismiss(id)
}

// UpdateBadge pushes the unread count to every sink.
func (q *Queue) UpdateBadge(count int) {
	for _, s := range q.sinks {
		s.UpdateBadge(count)
	}
}

// PlaySound asks sinks for an audible alert. Failures never reach the
// display path.
func (q *Queue) PlaySound() {
	for _, s := range q.sinks {
		if err := s.PlayAlertSound(); err != nil {
			q.logger.Debugf("Alert sound unavailable: %v", err)
		}
	}
}

// ActiveIDs lists notifications currently on screen, including ones in
// their closing transition.
func (q *Queue) ActiveIDs() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	ids := make([]string, 0, len(q.active))
	for id := range q.active {
		ids = append(ids, id)
	}
	return ids
}

// Reset drops every active popup without running closing transitions.
// Called when the session ends.
func (q *Queue) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for id, state := range q.active {
		state.autoClose.Stop()
		delete(q.active, id)
	}
}

func (q *Queue) durationFor(priority string) time.Duration {
	if priority == models.PriorityUrgent {
		return q.timing.UrgentDuration
	}
	return q.timing.Duration
}
