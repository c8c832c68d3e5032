package ingest

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"facility-notify/internal/config"
)

// Consumer reads task lifecycle events from Kafka and feeds the ingest
// Service.
type Consumer struct {
	reader *kafka.Reader
	svc    *Service
	logger *logrus.Logger
}

func NewConsumer(cfg config.Config, svc *Service) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  []string{cfg.Kafka.Broker},
		Topic:    cfg.Kafka.Topic,
		GroupID:  cfg.Kafka.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return &Consumer{reader: r, svc: svc, logger: svc.Logger()}
}

// Start runs the read loop until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.logger.Info("Kafka consumer started")
		for {
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					c.logger.Info("Kafka consumer stopped")
					return
				}
				c.logger.Errorf("Read message failed: %v", err)
				continue
			}

			var ev TaskEvent
			if err := json.Unmarshal(msg.Value, &ev); err != nil {
				c.logger.Errorf("Unmarshal message failed: %v", err)
				continue
			}
			if err := ev.Validate(); err != nil {
				c.logger.Errorf("Invalid message: %v", err)
				continue
			}

			c.svc.QueueEvent(ev)
			c.logger.Infof("Processed Kafka message for task %s", ev.TaskID)
		}
	}()
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
