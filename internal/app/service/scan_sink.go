package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mkteagle/teaglink/internal/app/model"
	"github.com/mkteagle/teaglink/internal/app/repository"
	"github.com/nats-io/nats.go"
)

// RepositoryScanSink writes scan events straight to the database. Used when
// the service runs without NATS, and as the terminal stage of the stream
// consumer.
type RepositoryScanSink struct {
	scans repository.ScanRepository
}

// NewRepositoryScanSink returns a sink backed by the scan repository.
func NewRepositoryScanSink(scans repository.ScanRepository) *RepositoryScanSink {
	return &RepositoryScanSink{scans: scans}
}

func (s *RepositoryScanSink) Submit(ctx context.Context, event *model.ScanEvent) error {
	if err := s.scans.Create(ctx, event); err != nil {
		return fmt.Errorf("insert scan event: %w", err)
	}
	return nil
}

// StreamScanSink publishes scan events to the JetStream scans stream, keeping
// the redirect path decoupled from database latency. ScanConsumer drains the
// stream into the repository.
type StreamScanSink struct {
	js nats.JetStreamContext
}

// NewStreamScanSink returns a JetStream-backed sink.
func NewStreamScanSink(js nats.JetStreamContext) *StreamScanSink {
	return &StreamScanSink{js: js}
}

func (s *StreamScanSink) Submit(ctx context.Context, event *model.ScanEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal scan event: %w", err)
	}
	if _, err := s.js.Publish(model.ScanStreamSubject, data, nats.Context(ctx)); err != nil {
		return fmt.Errorf("publish scan event: %w", err)
	}
	return nil
}
