package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mkteagle/teaglink/internal/app/model"
	"github.com/mkteagle/teaglink/internal/app/track"
	"github.com/mkteagle/teaglink/internal/infra/prometheus"
	"github.com/mssola/user_agent"
	"go.uber.org/zap"
)

// recordTimeout caps the scan write so a slow analytics store can never
// stall a redirect.
const recordTimeout = 2 * time.Second

// ScanSink accepts a fully built scan event for persistence. Implementations
// may write synchronously or hand the event to a queue.
type ScanSink interface {
	Submit(ctx context.Context, event *model.ScanEvent) error
}

// ScanRecorder assembles scan events from the request context and pushes them
// to a sink. Recording is best-effort telemetry: every failure is logged and
// counted, never surfaced to the redirect path.
type ScanRecorder struct {
	logger *zap.Logger
	sink   ScanSink
}

// NewScanRecorder wires a recorder to the given sink.
func NewScanRecorder(logger *zap.Logger, sink ScanSink) *ScanRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScanRecorder{logger: logger, sink: sink}
}

// Record builds and submits one scan event for linkID. The returned error is
// informational; callers on the redirect path ignore it by contract.
func (r *ScanRecorder) Record(ctx context.Context, linkID string, rc track.RequestContext) error {
	event := buildScanEvent(linkID, rc)

	ctx, cancel := context.WithTimeout(ctx, recordTimeout)
	defer cancel()

	if err := r.sink.Submit(ctx, event); err != nil {
		prometheus.ScanRecordFailures.Inc()
		r.logger.Error("failed to record scan",
			zap.String("link_id", linkID),
			zap.String("source", event.Source),
			zap.Error(err))
		return fmt.Errorf("record scan: %w", err)
	}

	prometheus.ScansRecorded.Inc()
	r.logger.Debug("scan recorded",
		zap.String("link_id", linkID),
		zap.String("source", event.Source),
		zap.String("medium", event.Medium))
	return nil
}

func buildScanEvent(linkID string, rc track.RequestContext) *model.ScanEvent {
	cls := track.Classify(rc.Referrer, rc.UserAgent)
	device, browser := parseUserAgent(rc.UserAgent)

	return &model.ScanEvent{
		ID:        uuid.New().String(),
		LinkID:    linkID,
		Timestamp: time.Now().UTC(),
		IP:        rc.IP,
		UserAgent: rc.UserAgent,
		Country:   rc.Country,
		Region:    rc.Region,
		City:      rc.City,
		Source:    cls.Source,
		Medium:    cls.Medium,
		Device:    device,
		Browser:   browser,
	}
}

func parseUserAgent(raw string) (device, browser *string) {
	if raw == "" || raw == "unknown" {
		return nil, nil
	}

	ua := user_agent.New(raw)

	var d string
	switch {
	case ua.Bot():
		d = "bot"
	case ua.Mobile():
		d = "mobile"
	default:
		d = "desktop"
	}
	device = &d

	if name, _ := ua.Browser(); name != "" {
		browser = &name
	}
	return device, browser
}
