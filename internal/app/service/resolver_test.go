package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mkteagle/teaglink/internal/app/model"
	"github.com/mkteagle/teaglink/internal/app/repository"
	"github.com/mkteagle/teaglink/internal/app/track"
)

func TestRedirectResolver_Found(t *testing.T) {
	links := &mockLinkRepository{
		getFn: func(ctx context.Context, id string) (*model.Link, error) {
			return &model.Link{ID: id, RedirectURL: "https://example.com"}, nil
		},
	}
	sink := newCaptureSink()
	resolver := NewRedirectResolver(nil, links, nil, NewScanRecorder(nil, sink))

	link, err := resolver.Resolve(context.Background(), "abc123", track.RequestContext{
		IP:        "203.0.113.7",
		UserAgent: "Mozilla/5.0",
		Referrer:  "https://www.google.com/search?q=x",
	})
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if link.RedirectURL != "https://example.com" {
		t.Fatalf("unexpected destination %q", link.RedirectURL)
	}

	select {
	case event := <-sink.events:
		if event.LinkID != "abc123" {
			t.Fatalf("scan recorded against %q", event.LinkID)
		}
		if event.Source != "google" || event.Medium != "organic" {
			t.Fatalf("unexpected classification {%s, %s}", event.Source, event.Medium)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a scan event to be recorded")
	}
}

func TestRedirectResolver_NotFound(t *testing.T) {
	links := &mockLinkRepository{
		getFn: func(ctx context.Context, id string) (*model.Link, error) {
			return nil, repository.ErrLinkNotFound
		},
	}
	resolver := NewRedirectResolver(nil, links, nil, nil)

	_, err := resolver.Resolve(context.Background(), "missing", track.RequestContext{})
	if !errors.Is(err, repository.ErrLinkNotFound) {
		t.Fatalf("expected ErrLinkNotFound, got %v", err)
	}
}

func TestRedirectResolver_TransientError(t *testing.T) {
	boom := errors.New("connection reset")
	links := &mockLinkRepository{
		getFn: func(ctx context.Context, id string) (*model.Link, error) {
			return nil, boom
		},
	}
	resolver := NewRedirectResolver(nil, links, nil, nil)

	_, err := resolver.Resolve(context.Background(), "abc123", track.RequestContext{})
	if err == nil || errors.Is(err, repository.ErrLinkNotFound) {
		t.Fatalf("transient failure must not look like absence, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
}

func TestRedirectResolver_RecordingFailureDoesNotBlock(t *testing.T) {
	links := &mockLinkRepository{
		getFn: func(ctx context.Context, id string) (*model.Link, error) {
			return &model.Link{ID: id, RedirectURL: "https://example.com"}, nil
		},
	}
	sink := newCaptureSink()
	sink.err = errors.New("stream unavailable")
	resolver := NewRedirectResolver(nil, links, nil, NewScanRecorder(nil, sink))

	link, err := resolver.Resolve(context.Background(), "abc123", track.RequestContext{
		IP:        "unknown",
		UserAgent: "unknown",
	})
	if err != nil {
		t.Fatalf("redirect must survive a broken sink, got %v", err)
	}
	if link == nil || link.RedirectURL != "https://example.com" {
		t.Fatalf("unexpected link %+v", link)
	}
}

func TestRedirectResolver_ArchivedStillResolves(t *testing.T) {
	links := &mockLinkRepository{
		getFn: func(ctx context.Context, id string) (*model.Link, error) {
			return &model.Link{ID: id, RedirectURL: "https://example.com", Archived: true}, nil
		},
	}
	resolver := NewRedirectResolver(nil, links, nil, nil)

	link, err := resolver.Resolve(context.Background(), "abc123", track.RequestContext{})
	if err != nil {
		t.Fatalf("archived link failed to resolve: %v", err)
	}
	if !link.Archived {
		t.Fatal("expected archived flag to survive")
	}
}

func TestRedirectResolver_DistinctSources(t *testing.T) {
	links := &mockLinkRepository{
		getFn: func(ctx context.Context, id string) (*model.Link, error) {
			return &model.Link{ID: id, RedirectURL: "https://example.com"}, nil
		},
	}
	sink := newCaptureSink()
	resolver := NewRedirectResolver(nil, links, nil, NewScanRecorder(nil, sink))
	ctx := context.Background()

	if _, err := resolver.Resolve(ctx, "abc123", track.RequestContext{
		IP:        "203.0.113.7",
		UserAgent: "Mozilla/5.0",
		Referrer:  "https://www.google.com/search?q=x",
	}); err != nil {
		t.Fatalf("first resolve failed: %v", err)
	}
	if _, err := resolver.Resolve(ctx, "abc123", track.RequestContext{
		IP:        "203.0.113.8",
		UserAgent: "Mozilla/5.0",
	}); err != nil {
		t.Fatalf("second resolve failed: %v", err)
	}

	got := map[string]string{}
	for i := 0; i < 2; i++ {
		select {
		case event := <-sink.events:
			got[event.Source] = event.Medium
		case <-time.After(time.Second):
			t.Fatal("missing scan event")
		}
	}
	if got["google"] != "organic" || got["direct"] != "none" {
		t.Fatalf("unexpected classifications %v", got)
	}
}
