package handler

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/mkteagle/teaglink/internal/app/model"
	"github.com/mkteagle/teaglink/internal/app/repository"
	"github.com/mkteagle/teaglink/internal/app/service"
	httpUtil "github.com/mkteagle/teaglink/internal/http/util"
	"go.uber.org/zap"
)

// APIDeps groups dependencies required by API handlers.
type APIDeps struct {
	Logger      *zap.Logger
	LinkService service.LinkService
}

// APIHandler implements the management API endpoints.
type APIHandler struct {
	logger      *zap.Logger
	linkService service.LinkService
}

// NewAPIHandler creates an API handler with the provided dependencies.
func NewAPIHandler(deps APIDeps) *APIHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIHandler{
		logger:      logger,
		linkService: deps.LinkService,
	}
}

// Register wires API routes onto the provided router.
func (h *APIHandler) Register(router fiber.Router) {
	api := router.Group("/api")
	{
		api.Get("/admin/check", h.AdminCheck)

		links := api.Group("/links")
		{
			links.Post("/", h.CreateLink)
			links.Get("/", h.ListLinks)
			links.Get("/:id", h.GetLink)
			links.Patch("/:id", h.UpdateLink)
			links.Delete("/:id", h.DeleteLink)
			links.Get("/:id/analytics", h.GetAnalytics)
		}
	}
}

// CreateLinkRequest represents the request body for creating a link.
type CreateLinkRequest struct {
	RedirectURL string `json:"redirect_url"`
	CustomPath  string `json:"custom_path,omitempty"`
}

// LinkResponse represents a link in API responses.
type LinkResponse struct {
	ID          string    `json:"id"`
	RedirectURL string    `json:"redirect_url"`
	ShortURL    string    `json:"short_url"`
	UserID      string    `json:"user_id"`
	Custom      bool      `json:"custom"`
	Archived    bool      `json:"archived"`
	Base64      string    `json:"base64,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (h *APIHandler) linkResponse(link *model.Link) LinkResponse {
	return LinkResponse{
		ID:          link.ID,
		RedirectURL: link.RedirectURL,
		ShortURL:    h.linkService.ShortURL(link.ID),
		UserID:      link.UserID,
		Custom:      link.Custom,
		Archived:    link.Archived,
		Base64:      link.Base64,
		CreatedAt:   link.CreatedAt,
		UpdatedAt:   link.UpdatedAt,
	}
}

// CreateLink handles POST /api/links
func (h *APIHandler) CreateLink(c *fiber.Ctx) error {
	callerID, err := httpUtil.CallerID(c)
	if err != nil {
		return unauthorized(c)
	}

	var req CreateLinkRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	if req.RedirectURL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "redirect_url is required",
		})
	}

	link, err := h.linkService.CreateLink(requestCtx(c), service.CreateLinkInput{
		RedirectURL: req.RedirectURL,
		CustomPath:  req.CustomPath,
		UserID:      callerID,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidURL),
			errors.Is(err, service.ErrInvalidPath),
			errors.Is(err, service.ErrReservedPath):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		case errors.Is(err, repository.ErrLinkExists):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "custom path already in use",
			})
		case errors.Is(err, service.ErrGenerationExhausted):
			h.logger.Error("short id generation exhausted", zap.Error(err))
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error": "could not allocate a short id, try again",
			})
		default:
			h.logger.Error("failed to create link", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to create link",
			})
		}
	}

	return c.Status(fiber.StatusCreated).JSON(h.linkResponse(link))
}

// ListLinks handles GET /api/links. Regular users see their own links; admins
// may pass all=true to see everyone's. Archived links are excluded unless
// archived=true.
func (h *APIHandler) ListLinks(c *fiber.Ctx) error {
	callerID, err := httpUtil.CallerID(c)
	if err != nil {
		return unauthorized(c)
	}

	ctx := requestCtx(c)

	opts := repository.ListOptions{
		UserID:          callerID,
		IncludeArchived: c.QueryBool("archived"),
		Limit:           20,
		Offset:          0,
	}
	if parsed := c.QueryInt("limit"); parsed > 0 && parsed <= 100 {
		opts.Limit = parsed
	}
	if parsed := c.QueryInt("offset"); parsed > 0 {
		opts.Offset = parsed
	}

	if c.QueryBool("all") {
		admin, err := h.linkService.IsAdmin(ctx, callerID)
		if err != nil {
			h.logger.Error("failed to check admin role", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "internal server error",
			})
		}
		if !admin {
			return forbidden(c)
		}
		opts.UserID = ""
	}

	links, err := h.linkService.ListLinks(ctx, opts)
	if err != nil {
		h.logger.Error("failed to list links", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to list links",
		})
	}

	response := make([]LinkResponse, len(links))
	for i := range links {
		response[i] = h.linkResponse(&links[i])
	}

	return c.JSON(fiber.Map{
		"links":  response,
		"limit":  opts.Limit,
		"offset": opts.Offset,
		"count":  len(response),
	})
}

// GetLink handles GET /api/links/:id
func (h *APIHandler) GetLink(c *fiber.Ctx) error {
	if _, err := httpUtil.CallerID(c); err != nil {
		return unauthorized(c)
	}

	id := c.Params("id")
	link, err := h.linkService.GetLink(requestCtx(c), id)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return notFound(c)
		}
		h.logger.Error("failed to get link", zap.Error(err), zap.String("id", id))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}

	return c.JSON(h.linkResponse(link))
}

// UpdateLinkRequest represents the request body for updating a link.
type UpdateLinkRequest struct {
	RedirectURL *string `json:"redirect_url,omitempty"`
	Archived    *bool   `json:"archived,omitempty"`
}

// UpdateLink handles PATCH /api/links/:id
func (h *APIHandler) UpdateLink(c *fiber.Ctx) error {
	callerID, err := httpUtil.CallerID(c)
	if err != nil {
		return unauthorized(c)
	}

	var req UpdateLinkRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	id := c.Params("id")
	link, err := h.linkService.UpdateLink(requestCtx(c), id, callerID, service.UpdateLinkInput{
		RedirectURL: req.RedirectURL,
		Archived:    req.Archived,
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrLinkNotFound):
			return notFound(c)
		case errors.Is(err, service.ErrForbidden):
			return forbidden(c)
		case errors.Is(err, service.ErrInvalidURL):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		default:
			h.logger.Error("failed to update link", zap.Error(err), zap.String("id", id))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to update link",
			})
		}
	}

	return c.JSON(h.linkResponse(link))
}

// DeleteLink handles DELETE /api/links/:id
func (h *APIHandler) DeleteLink(c *fiber.Ctx) error {
	callerID, err := httpUtil.CallerID(c)
	if err != nil {
		return unauthorized(c)
	}

	id := c.Params("id")
	if err := h.linkService.DeleteLink(requestCtx(c), id, callerID); err != nil {
		switch {
		case errors.Is(err, repository.ErrLinkNotFound):
			return notFound(c)
		case errors.Is(err, service.ErrForbidden):
			return forbidden(c)
		default:
			h.logger.Error("failed to delete link", zap.Error(err), zap.String("id", id))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to delete link",
			})
		}
	}

	return c.JSON(fiber.Map{"success": true})
}

// GetAnalytics handles GET /api/links/:id/analytics
func (h *APIHandler) GetAnalytics(c *fiber.Ctx) error {
	callerID, err := httpUtil.CallerID(c)
	if err != nil {
		return unauthorized(c)
	}

	id := c.Params("id")
	analytics, err := h.linkService.GetAnalytics(requestCtx(c), id, callerID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrLinkNotFound):
			return notFound(c)
		case errors.Is(err, service.ErrForbidden):
			return forbidden(c)
		default:
			h.logger.Error("failed to load analytics", zap.Error(err), zap.String("id", id))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to load analytics",
			})
		}
	}

	return c.JSON(analytics)
}

// AdminCheck handles GET /api/admin/check. Missing or unknown callers are
// simply not admins; this endpoint never errors to the client.
func (h *APIHandler) AdminCheck(c *fiber.Ctx) error {
	callerID, err := httpUtil.CallerID(c)
	if err != nil {
		return c.JSON(fiber.Map{"is_admin": false})
	}

	admin, err := h.linkService.IsAdmin(requestCtx(c), callerID)
	if err != nil {
		h.logger.Error("failed to check admin status", zap.Error(err))
		return c.JSON(fiber.Map{"is_admin": false})
	}
	return c.JSON(fiber.Map{"is_admin": admin})
}

func requestCtx(c *fiber.Ctx) context.Context {
	if ctx := c.UserContext(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error": "unauthorized",
	})
}

func forbidden(c *fiber.Ctx) error {
	return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
		"error": "forbidden",
	})
}

func notFound(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"error": "link not found",
	})
}
