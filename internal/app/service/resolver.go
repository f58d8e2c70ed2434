package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/mkteagle/teaglink/internal/app/model"
	"github.com/mkteagle/teaglink/internal/app/repository"
	"github.com/mkteagle/teaglink/internal/app/track"
	"github.com/mkteagle/teaglink/internal/infra/prometheus"
	"go.uber.org/zap"
)

// RedirectResolver resolves a short id to its destination and kicks off scan
// recording. A missing link is terminal; any other lookup failure is returned
// as-is so the caller can tell transient errors apart from absence.
type RedirectResolver struct {
	logger   *zap.Logger
	links    repository.LinkRepository
	cache    *LinkCache
	recorder *ScanRecorder
}

// NewRedirectResolver builds a resolver. cache and recorder may be nil.
func NewRedirectResolver(logger *zap.Logger, links repository.LinkRepository, cache *LinkCache, recorder *ScanRecorder) *RedirectResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedirectResolver{
		logger:   logger,
		links:    links,
		cache:    cache,
		recorder: recorder,
	}
}

// Resolve looks up the short id and, on success, records the scan without
// waiting for it. Archived links still resolve; archiving only hides a link
// from default listings.
func (r *RedirectResolver) Resolve(ctx context.Context, id string, rc track.RequestContext) (*model.Link, error) {
	link := r.cache.Get(ctx, id)
	if link == nil {
		var err error
		link, err = r.links.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrLinkNotFound) {
				prometheus.RedirectsTotal.WithLabelValues(prometheus.OutcomeNotFound).Inc()
				return nil, err
			}
			prometheus.RedirectsTotal.WithLabelValues(prometheus.OutcomeError).Inc()
			return nil, fmt.Errorf("lookup link: %w", err)
		}
		r.cache.Set(ctx, link)
	}

	if r.recorder != nil {
		// Fire-and-forget: the redirect decision never waits for, or fails
		// on, the scan write. WithoutCancel keeps the write alive after the
		// response is sent; the recorder applies its own timeout.
		go func(ctx context.Context) {
			_ = r.recorder.Record(ctx, link.ID, rc)
		}(context.WithoutCancel(ctx))
	}

	prometheus.RedirectsTotal.WithLabelValues(prometheus.OutcomeFound).Inc()
	r.logger.Debug("resolved short link",
		zap.String("id", link.ID),
		zap.String("target", link.RedirectURL))
	return link, nil
}
