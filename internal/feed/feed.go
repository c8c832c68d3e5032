package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"facility-notify/internal/db"
	"facility-notify/internal/models"
)

// Feed delivers newly inserted notification records for one recipient.
type Feed interface {
	Subscribe(ctx context.Context, recipientID string) (Subscription, error)
}

// Subscription is a live feed handle. Events is closed when the
// subscription ends; Close is safe to call more than once and returns only
// after delivery has stopped.
type Subscription interface {
	Events() <-chan models.Notification
	Close() error
}

// Listener implements Feed on Postgres LISTEN/NOTIFY. Each subscription
// holds a dedicated connection listening on the recipient channel and the
// broadcast channel; both surface through a single Events channel in
// arrival order.
type Listener struct {
	pool   *pgxpool.Pool
	logger *logrus.Logger
}

func NewListener(pool *pgxpool.Pool, logger *logrus.Logger) *Listener {
	return &Listener{pool: pool, logger: logger}
}

func (l *Listener) Subscribe(ctx context.Context, recipientID string) (Subscription, error) {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire listen connection: %w", err)
	}

	channels := []string{db.UserChannel(recipientID), db.BroadcastChannel}
	for _, ch := range channels {
		listen := "LISTEN " + pgx.Identifier{ch}.Sanitize()
		if _, err := conn.Exec(ctx, listen); err != nil {
			conn.Release()
			return nil, fmt.Errorf("failed to listen on %s: %w", ch, err)
		}
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	sub := &subscription{
		events: make(chan models.Notification, 16),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(sub.done)
		defer close(sub.events)
		defer conn.Release()
		for {
			notice, err := conn.Conn().WaitForNotification(loopCtx)
			if err != nil {
				if loopCtx.Err() == nil {
					l.logger.Errorf("Feed listener for %s stopped: %v", recipientID, err)
				}
				return
			}

			var n models.Notification
			if err := json.Unmarshal([]byte(notice.Payload), &n); err != nil {
				l.logger.Errorf("Dropping malformed feed payload on %s: %v", notice.Channel, err)
				continue
			}

			select {
			case sub.events <- n:
			case <-loopCtx.Done():
				return
			}
		}
	}()

	l.logger.Infof("Feed subscription started for recipient %s", recipientID)
	return sub, nil
}

type subscription struct {
	events    chan models.Notification
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

func (s *subscription) Events() <-chan models.Notification {
	return s.events
}

func (s *subscription) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
	})
	<-s.done
	return nil
}
