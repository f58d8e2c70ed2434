package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/mkteagle/teaglink/internal/app/model"
	"github.com/mkteagle/teaglink/internal/app/repository"
	"github.com/mkteagle/teaglink/internal/qr"
	"go.uber.org/zap"
)

var (
	// ErrInvalidURL rejects destinations that are not absolute http(s) URLs.
	ErrInvalidURL = errors.New("destination must be an absolute http or https URL")
	// ErrInvalidPath rejects custom paths with a bad length or character set.
	ErrInvalidPath = errors.New("custom path must be 3-20 characters of letters, digits, hyphen or underscore")
	// ErrReservedPath rejects custom paths that collide with application routes.
	ErrReservedPath = errors.New("custom path is reserved")
	// ErrForbidden is returned when the caller is neither owner nor admin.
	ErrForbidden = errors.New("caller may not modify this link")
)

var customPathPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,20}$`)

// Path segments that collide with application routes. Checked
// case-insensitively against custom paths before any store mutation.
var reservedPaths = map[string]struct{}{
	"api":       {},
	"admin":     {},
	"auth":      {},
	"login":     {},
	"logout":    {},
	"dashboard": {},
	"analytics": {},
	"generate":  {},
	"health":    {},
	"metrics":   {},
	"not-found": {},
	"privacy":   {},
	"terms":     {},
	"qr":        {},
	"qr-codes":  {},
}

// IDGenerator mints short ids and is told which ids turned out to be taken.
// Satisfied by ShortIDGenerator.
type IDGenerator interface {
	Next(ctx context.Context) (string, error)
	Observe(id string)
}

// LinkService owns the link lifecycle: creation with id assignment and QR
// attachment, lookups, listings, guarded mutation and cascading deletion.
type LinkService interface {
	CreateLink(ctx context.Context, input CreateLinkInput) (*model.Link, error)
	GetLink(ctx context.Context, id string) (*model.Link, error)
	ListLinks(ctx context.Context, opts repository.ListOptions) ([]model.Link, error)
	UpdateLink(ctx context.Context, id, callerID string, input UpdateLinkInput) (*model.Link, error)
	DeleteLink(ctx context.Context, id, callerID string) error
	GetAnalytics(ctx context.Context, id, callerID string) (*LinkAnalytics, error)
	IsAdmin(ctx context.Context, userID string) (bool, error)
	ShortURL(id string) string
}

type linkService struct {
	logger   *zap.Logger
	links    repository.LinkRepository
	scans    repository.ScanRepository
	users    repository.UserRepository
	gen      IDGenerator
	renderer qr.Renderer
	cache    *LinkCache
	baseURL  string
}

// LinkServiceDeps bundles everything the link service needs.
type LinkServiceDeps struct {
	Logger   *zap.Logger
	Links    repository.LinkRepository
	Scans    repository.ScanRepository
	Users    repository.UserRepository
	Gen      IDGenerator
	Renderer qr.Renderer
	Cache    *LinkCache
	BaseURL  string
}

// NewLinkService returns a service implementation backed by the given deps.
func NewLinkService(deps LinkServiceDeps) LinkService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &linkService{
		logger:   logger,
		links:    deps.Links,
		scans:    deps.Scans,
		users:    deps.Users,
		gen:      deps.Gen,
		renderer: deps.Renderer,
		cache:    deps.Cache,
		baseURL:  strings.TrimRight(deps.BaseURL, "/"),
	}
}

// CreateLinkInput captures data required to create a link.
type CreateLinkInput struct {
	RedirectURL string
	CustomPath  string
	UserID      string
}

// UpdateLinkInput captures the fields that may change on an existing link.
type UpdateLinkInput struct {
	RedirectURL *string
	Archived    *bool
}

// LinkAnalytics bundles a link with its recorded scans.
type LinkAnalytics struct {
	Link  *model.Link       `json:"link"`
	Scans []model.ScanEvent `json:"scans"`
	Total int64             `json:"total"`
}

func (s *linkService) CreateLink(ctx context.Context, input CreateLinkInput) (*model.Link, error) {
	if err := validateDestination(input.RedirectURL); err != nil {
		return nil, err
	}

	link := &model.Link{
		RedirectURL: input.RedirectURL,
		UserID:      input.UserID,
	}

	if input.CustomPath != "" {
		path := strings.TrimSpace(input.CustomPath)
		if err := validateCustomPath(path); err != nil {
			return nil, err
		}
		link.ID = path
		link.Custom = true

		// Custom collisions surface directly; the user picked the id.
		if err := s.links.Create(ctx, link); err != nil {
			if errors.Is(err, repository.ErrLinkExists) {
				s.gen.Observe(path)
				return nil, repository.ErrLinkExists
			}
			return nil, fmt.Errorf("create link: %w", err)
		}
	} else {
		if err := s.createGenerated(ctx, link); err != nil {
			return nil, err
		}
	}
	s.gen.Observe(link.ID)

	// The link is live as soon as the insert commits; a failed render only
	// costs the stored image, never the link.
	if err := s.attachImage(ctx, link); err != nil {
		s.logger.Warn("link created without QR image",
			zap.String("id", link.ID), zap.Error(err))
	}

	s.logger.Info("link created",
		zap.String("id", link.ID),
		zap.String("user_id", link.UserID),
		zap.Bool("custom", link.Custom))
	return link, nil
}

// createGenerated assigns a generated id and inserts, regenerating whenever
// the insert loses a race on the unique constraint.
func (s *linkService) createGenerated(ctx context.Context, link *model.Link) error {
	for attempt := 0; attempt < maxGenerateAttempts; attempt++ {
		id, err := s.gen.Next(ctx)
		if err != nil {
			return err
		}

		link.ID = id
		err = s.links.Create(ctx, link)
		if err == nil {
			return nil
		}
		if errors.Is(err, repository.ErrLinkExists) {
			// Lost the check-then-insert race; remember the id and retry.
			s.gen.Observe(id)
			continue
		}
		return fmt.Errorf("create link: %w", err)
	}
	return ErrGenerationExhausted
}

// attachImage renders the QR artifact for the advertised short URL and stores
// it on the link.
func (s *linkService) attachImage(ctx context.Context, link *model.Link) error {
	image, err := s.renderer.Render(s.ShortURL(link.ID))
	if err != nil {
		return fmt.Errorf("render qr image: %w", err)
	}
	link.Base64 = image
	if err := s.links.Update(ctx, link); err != nil {
		return fmt.Errorf("store qr image: %w", err)
	}
	return nil
}

func (s *linkService) GetLink(ctx context.Context, id string) (*model.Link, error) {
	link, err := s.links.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return link, nil
}

func (s *linkService) ListLinks(ctx context.Context, opts repository.ListOptions) ([]model.Link, error) {
	links, err := s.links.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	return links, nil
}

func (s *linkService) UpdateLink(ctx context.Context, id, callerID string, input UpdateLinkInput) (*model.Link, error) {
	link, err := s.links.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.authorize(ctx, link, callerID); err != nil {
		return nil, err
	}

	if input.RedirectURL != nil {
		if err := validateDestination(*input.RedirectURL); err != nil {
			return nil, err
		}
		link.RedirectURL = *input.RedirectURL
	}
	if input.Archived != nil {
		link.Archived = *input.Archived
	}

	if err := s.links.Update(ctx, link); err != nil {
		return nil, fmt.Errorf("update link: %w", err)
	}
	s.cache.Invalidate(ctx, link.ID)

	return link, nil
}

func (s *linkService) DeleteLink(ctx context.Context, id, callerID string) error {
	link, err := s.links.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.authorize(ctx, link, callerID); err != nil {
		return err
	}

	// Scan events have no lifecycle of their own; they go with the link.
	removed, err := s.scans.DeleteByLinkID(ctx, id)
	if err != nil {
		return fmt.Errorf("delete scan events: %w", err)
	}
	if err := s.links.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete link: %w", err)
	}
	s.cache.Invalidate(ctx, id)

	s.logger.Info("link deleted",
		zap.String("id", id),
		zap.Int64("scans_removed", removed))
	return nil
}

func (s *linkService) GetAnalytics(ctx context.Context, id, callerID string) (*LinkAnalytics, error) {
	link, err := s.links.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.authorize(ctx, link, callerID); err != nil {
		return nil, err
	}

	scans, err := s.scans.ListByLinkID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list scans: %w", err)
	}
	total, err := s.scans.CountByLinkID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("count scans: %w", err)
	}

	return &LinkAnalytics{Link: link, Scans: scans, Total: total}, nil
}

func (s *linkService) IsAdmin(ctx context.Context, userID string) (bool, error) {
	return s.users.IsAdmin(ctx, userID)
}

// ShortURL composes the externally advertised URL for a short id.
func (s *linkService) ShortURL(id string) string {
	return s.baseURL + "/" + id
}

// authorize allows the owner and admins; everyone else gets ErrForbidden.
func (s *linkService) authorize(ctx context.Context, link *model.Link, callerID string) error {
	if callerID != "" && callerID == link.UserID {
		return nil
	}
	admin, err := s.users.IsAdmin(ctx, callerID)
	if err != nil {
		return fmt.Errorf("check admin role: %w", err)
	}
	if !admin {
		return ErrForbidden
	}
	return nil
}

func validateDestination(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return ErrInvalidURL
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidURL
	}
	return nil
}

func validateCustomPath(path string) error {
	if !customPathPattern.MatchString(path) {
		return ErrInvalidPath
	}
	if _, ok := reservedPaths[strings.ToLower(path)]; ok {
		return ErrReservedPath
	}
	return nil
}
