// Package manager binds the notification pipeline to the signed-in
// identity: it owns the feed subscription, the in-memory store, and the
// popup queue, and reconciles read state with the backend of record.
package manager

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"facility-notify/internal/enrich"
	"facility-notify/internal/feed"
	"facility-notify/internal/models"
	"facility-notify/internal/popup"
	"facility-notify/internal/store"
)

const defaultFetchLimit = 100

// Identity reports the signed-in recipient. CurrentUser returns "" when
// signed out; OnChange fires with the new recipient id, or "" on sign-out.
type Identity interface {
	CurrentUser(ctx context.Context) (string, error)
	OnChange(func(recipientID string))
}

// Backend is the notification store of record.
type Backend interface {
	FetchRecent(ctx context.Context, userID string, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context, userID string) error
}

// Manager runs the subscribe/fetch/merge/render/acknowledge cycle for the
// active session.
type Manager struct {
	identity   Identity
	backend    Backend
	feed       feed.Feed
	resolver   *enrich.Resolver
	store      *store.Store
	queue      *popup.Queue
	logger     *logrus.Logger
	fetchLimit int

	mu      sync.Mutex
	session *session
}

type session struct {
	recipientID string
	sub         feed.Subscription
	done        chan struct{}
}

func New(identity Identity, backend Backend, f feed.Feed, resolver *enrich.Resolver,
	st *store.Store, queue *popup.Queue, logger *logrus.Logger) *Manager {
	m := &Manager{
		identity:   identity,
		backend:    backend,
		feed:       f,
		resolver:   resolver,
		store:      st,
		queue:      queue,
		logger:     logger,
		fetchLimit: defaultFetchLimit,
	}
	queue.SetAcknowledger(m)
	return m
}

// Start resolves the current identity, binds the pipeline to it if signed
// in, and registers for identity changes.
func (m *Manager) Start(ctx context.Context) error {
	recipientID, err := m.identity.CurrentUser(ctx)
	if err != nil {
		m.logger.Errorf("Failed to resolve current identity: %v", err)
	} else if recipientID != "" {
		m.signIn(ctx, recipientID)
	}

	m.identity.OnChange(func(recipientID string) {
		m.handleIdentityChange(recipientID)
	})
	return nil
}

// Stop tears the active session down: no further feed events are delivered
// and the local cache is cleared.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.teardownLocked()
}

func (m *Manager) handleIdentityChange(recipientID string) {
	m.mu.Lock()
	if m.session != nil && m.session.recipientID == recipientID {
		m.mu.Unlock()
		return
	}
	// Identity switches must release the old subscription before the new
	// one connects so nothing from the previous recipient leaks through.
	m.teardownLocked()
	m.mu.Unlock()

	if recipientID != "" {
		m.signIn(context.Background(), recipientID)
	}
}

func (m *Manager) signIn(ctx context.Context, recipientID string) {
	m.mu.Lock()
	if m.session != nil {
		if m.session.recipientID == recipientID {
			m.mu.Unlock()
			return
		}
		m.teardownLocked()
	}

	sub, err := m.feed.Subscribe(ctx, recipientID)
	if err != nil {
		m.mu.Unlock()
		m.logger.Errorf("Failed to subscribe feed for %s: %v", recipientID, err)
		return
	}
	sess := &session{recipientID: recipientID, sub: sub, done: make(chan struct{})}
	m.session = sess
	m.mu.Unlock()

	go m.consume(sess)
	m.loadRecent(ctx, sess)
	m.logger.Infof("Notification session started for %s", recipientID)
}

// loadRecent performs the catch-up fetch: bulk load the most recent
// records and pop up the ones still unread.
func (m *Manager) loadRecent(ctx context.Context, sess *session) {
	records, err := m.backend.FetchRecent(ctx, sess.recipientID, m.fetchLimit)
	if err != nil {
		m.logger.Errorf("Failed to load notifications for %s: %v", sess.recipientID, err)
		return
	}
	for i := range records {
		records[i] = m.resolver.Enrich(ctx, records[i])
	}

	if !m.active(sess) {
		return
	}
	m.store.BulkLoad(records)
	for _, n := range records {
		if !n.IsRead {
			m.queue.Display(n)
		}
	}
	m.publishBadge()
}

func (m *Manager) consume(sess *session) {
	defer close(sess.done)
	for n := range sess.sub.Events() {
		m.handleIncoming(sess, n)
	}
}

// handleIncoming runs the per-record pipeline: enrich, insert, display.
// Events are processed strictly in arrival order; an event enriched after
// its session ended is discarded without touching the store.
func (m *Manager) handleIncoming(sess *session, n models.Notification) {
	enriched := m.resolver.Enrich(context.Background(), n)

	if !m.active(sess) {
		return
	}
	if !m.store.Insert(enriched) {
		m.logger.Warnf("Skipping redelivered notification %s", enriched.ID)
		return
	}
	m.queue.Display(enriched)
	m.queue.PlaySound()
	m.publishBadge()
}

// MarkRead reconciles one notification's read state with the backend. The
// local cache only changes after the backend accepts; on failure the
// record stays unread and the error is logged.
func (m *Manager) MarkRead(ctx context.Context, id string) error {
	if n, ok := m.store.Get(id); ok && n.IsRead {
		return nil
	}
	if err := m.backend.MarkRead(ctx, id); err != nil {
		m.logger.Errorf("Failed to mark notification %s read: %v", id, err)
		return err
	}
	m.store.MarkRead(id, time.Now())
	m.publishBadge()
	return nil
}

// MarkAllRead marks every notification for the active recipient read,
// backend first, then the local cache.
func (m *Manager) MarkAllRead(ctx context.Context) error {
	m.mu.Lock()
	sess := m.session
	m.mu.Unlock()
	if sess == nil {
		return nil
	}

	if err := m.backend.MarkAllRead(ctx, sess.recipientID); err != nil {
		m.logger.Errorf("Failed to mark all read for %s: %v", sess.recipientID, err)
		return err
	}
	m.store.MarkAllRead(time.Now())
	m.publishBadge()
	return nil
}

// UnreadCount exposes the cached unread total.
func (m *Manager) UnreadCount() int {
	return m.store.UnreadCount()
}

// Notifications exposes the cached records, most recent first.
func (m *Manager) Notifications() []models.Notification {
	return m.store.All()
}

func (m *Manager) active(sess *session) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session == sess
}

func (m *Manager) publishBadge() {
	m.queue.UpdateBadge(m.store.UnreadCount())
}

// teardownLocked releases the subscription and clears session-scoped
// state. Caller holds m.mu. Safe to call when already signed out.
func (m *Manager) teardownLocked() {
	if m.session == nil {
		return
	}
	sess := m.session
	m.session = nil
	if err := sess.sub.Close(); err != nil {
		m.logger.Errorf("Failed to close feed subscription for %s: %v", sess.recipientID, err)
	}
	m.store.Clear()
	m.queue.Reset()
	m.logger.Infof("Notification session stopped for %s", sess.recipientID)
}
