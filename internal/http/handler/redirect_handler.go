package handler

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/mkteagle/teaglink/internal/app/repository"
	"github.com/mkteagle/teaglink/internal/app/service"
	"github.com/mkteagle/teaglink/internal/app/track"
	"github.com/mkteagle/teaglink/internal/http/view"
	"go.uber.org/zap"
)

// RedirectDeps groups dependencies required by the redirect handler.
type RedirectDeps struct {
	Logger   *zap.Logger
	Resolver *service.RedirectResolver
	HomeURL  string
}

// RedirectHandler serves the hot path: short id in, 302 out.
type RedirectHandler struct {
	logger   *zap.Logger
	resolver *service.RedirectResolver
	homeURL  string
}

// NewRedirectHandler creates a redirect handler with the provided dependencies.
func NewRedirectHandler(deps RedirectDeps) *RedirectHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedirectHandler{
		logger:   logger,
		resolver: deps.Resolver,
		homeURL:  deps.HomeURL,
	}
}

// Register wires redirect routes onto the provided router. The catch-all
// short-id route must be registered after every other route.
func (h *RedirectHandler) Register(router fiber.Router) {
	router.Get("/", h.Health)
	router.Get("/health", h.Health)
	router.Get("/not-found", h.NotFound)
	router.Get("/:id", h.Resolve)
}

// Health is a simple root endpoint so we know the service is running.
func (h *RedirectHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"service": "teaglink",
		"status":  "ok",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// Resolve handles GET /:id and issues the redirect or the not-found page.
func (h *RedirectHandler) Resolve(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "missing link id",
		})
	}

	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}

	rc := track.ExtractRequestContext(func(key string) string {
		return c.Get(key)
	})

	link, err := h.resolver.Resolve(ctx, id, rc)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			return h.NotFound(c)
		}
		// Transient store failure; distinct from absence so clients may retry.
		h.logger.Error("failed to resolve link", zap.Error(err), zap.String("id", id))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}

	return c.Redirect(link.RedirectURL, fiber.StatusFound)
}

// NotFound renders the terminal not-found page.
func (h *RedirectHandler) NotFound(c *fiber.Ctx) error {
	html, err := view.RenderNotFoundPage(view.NotFoundPageData{
		HomeURL: h.homeURL,
	})
	if err != nil {
		h.logger.Error("failed to render not-found page", zap.Error(err))
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "short link not found",
		})
	}

	return c.Status(fiber.StatusNotFound).
		Type("html", "utf-8").
		SendString(html)
}
