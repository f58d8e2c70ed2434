package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mkteagle/teaglink/internal/app/model"
	"github.com/mkteagle/teaglink/internal/app/repository"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// ScanConsumer drains the scans stream into the database. It is the durable
// half of the fire-and-forget recording path: the publisher never waits for
// the insert.
type ScanConsumer struct {
	js     nats.JetStreamContext
	logger *zap.Logger
	scans  repository.ScanRepository
}

// NewScanConsumer creates a consumer over the given JetStream context.
func NewScanConsumer(js nats.JetStreamContext, logger *zap.Logger, scans repository.ScanRepository) *ScanConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScanConsumer{js: js, logger: logger, scans: scans}
}

// Start ensures the stream and durable consumer exist and begins pulling
// events in a background goroutine.
func (c *ScanConsumer) Start() error {
	if _, err := c.js.StreamInfo(model.ScanStreamName); err != nil {
		if _, err = c.js.AddStream(&nats.StreamConfig{
			Name:     model.ScanStreamName,
			Subjects: []string{model.ScanStreamSubject},
			MaxBytes: model.ScanStreamMaxBytes,
		}); err != nil {
			return fmt.Errorf("create scans stream: %w", err)
		}
	}

	if _, err := c.js.ConsumerInfo(model.ScanStreamName, model.ScanConsumerName); err != nil {
		if _, err = c.js.AddConsumer(model.ScanStreamName, &nats.ConsumerConfig{
			Durable:   model.ScanConsumerName,
			AckPolicy: nats.AckExplicitPolicy,
		}); err != nil {
			return fmt.Errorf("create scans consumer: %w", err)
		}
	}

	sub, err := c.js.PullSubscribe(model.ScanStreamSubject, model.ScanConsumerName)
	if err != nil {
		return fmt.Errorf("subscribe scans stream: %w", err)
	}

	go c.consume(sub)
	return nil
}

func (c *ScanConsumer) consume(sub *nats.Subscription) {
	ctx := context.Background()
	for {
		msgs, err := sub.Fetch(10, nats.MaxWait(5*time.Second))
		if err != nil && err != nats.ErrTimeout {
			c.logger.Error("failed to fetch scan events", zap.Error(err))
			continue
		}

		for _, msg := range msgs {
			var event model.ScanEvent
			if err := json.Unmarshal(msg.Data, &event); err != nil {
				c.logger.Error("failed to unmarshal scan event", zap.Error(err))
				msg.Nak()
				continue
			}

			if err := c.scans.Create(ctx, &event); err != nil {
				c.logger.Error("failed to store scan event",
					zap.String("id", event.ID),
					zap.String("link_id", event.LinkID),
					zap.Error(err))
				msg.Nak()
				continue
			}

			c.logger.Debug("scan event stored",
				zap.String("id", event.ID),
				zap.String("link_id", event.LinkID),
				zap.String("source", event.Source),
				zap.Time("timestamp", event.Timestamp),
			)

			msg.Ack()
		}
	}
}
