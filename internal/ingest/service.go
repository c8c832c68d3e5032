// Package ingest turns task lifecycle events from the facility backend
// into persisted notification records. Persisting a record also fires the
// change feed, so anything written here reaches connected sessions live.
package ingest

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"facility-notify/internal/config"
	"facility-notify/internal/models"
)

// Creator persists notification records.
type Creator interface {
	CreateNotification(ctx context.Context, n models.Notification) error
}

// Service fans incoming task events out to a worker pool that writes
// notification records.
type Service struct {
	creator Creator
	logger  *logrus.Logger
	config  config.Config
	events  chan TaskEvent
	ctx     context.Context
	cancel  context.CancelFunc
	wg      *sync.WaitGroup
}

func New(creator Creator, logger *logrus.Logger, cfg config.Config) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		creator: creator,
		logger:  logger,
		config:  cfg,
		events:  make(chan TaskEvent, cfg.Ingest.QueueSize),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Logger exposes the Service's logger to the Kafka consumer.
func (s *Service) Logger() *logrus.Logger {
	return s.logger
}

// Start launches the worker pool.
func (s *Service) Start(wg *sync.WaitGroup) {
	s.wg = wg
	for i := 0; i < s.config.Ingest.MaxWorkers; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}
}

// Stop signals workers to drain and exit.
func (s *Service) Stop() {
	s.cancel()
}

// QueueEvent enqueues a task event for processing. Events arriving while
// the queue is full are dropped and logged.
func (s *Service) QueueEvent(ev TaskEvent) {
	select {
	case s.events <- ev:
		s.logger.Infof("Queued %s event for task %s", ev.EventType, ev.TaskID)
	default:
		s.logger.Errorf("Queue full, dropping %s event for task %s", ev.EventType, ev.TaskID)
	}
}

func (s *Service) worker(id int) {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			s.logger.Infof("Ingest worker %d stopped", id)
			return
		case ev := <-s.events:
			s.handleEvent(ev)
		}
	}
}

// handleEvent builds the notification record and persists it. The insert
// and the feed publish run in one transaction downstream, so a failed
// write never produces a phantom live event.
func (s *Service) handleEvent(ev TaskEvent) {
	n := buildNotification(ev)
	if err := s.creator.CreateNotification(s.ctx, n); err != nil {
		s.logger.Errorf("CreateNotification failed for %s event: %v", ev.EventType, err)
		return
	}
	s.logger.Infof("Created %s notification %s", n.Type, n.ID)
}

func buildNotification(ev TaskEvent) models.Notification {
	n := models.Notification{
		ID:        uuid.NewString(),
		Type:      ev.EventType,
		Priority:  ev.Priority,
		Title:     ev.Title,
		Body:      ev.Body,
		Data:      ev.Data,
		CreatedAt: time.Now(),
	}
	if ev.UserID != "" {
		userID := ev.UserID
		n.UserID = &userID
	}
	if ev.TaskID != "" {
		taskID := ev.TaskID
		n.TaskID = &taskID
	}
	if n.Priority == "" {
		n.Priority = defaultPriority(ev.EventType)
	}
	return n
}

func defaultPriority(eventType string) string {
	switch eventType {
	case models.TypeTrashcanFull:
		return models.PriorityUrgent
	case models.TypeMaintenanceRequired:
		return models.PriorityHigh
	case models.TypeTaskReminder:
		return models.PriorityHigh
	default:
		return models.PriorityMedium
	}
}
