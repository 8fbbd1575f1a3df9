package handler

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/siteharvest/ingest-engine/internal/domain"
)

const siteLocalKey = "resolvedSite"

// SiteResolver maps an API key to the active site it identifies.
type SiteResolver interface {
	GetActiveByAPIKey(ctx context.Context, apiKey string) (*domain.Site, error)
}

// SiteIdentity resolves the X-Api-Key header to a (account, site) pair and
// stashes it for the handlers. Every site-scoped route runs behind it.
func SiteIdentity(resolver SiteResolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		apiKey := strings.TrimSpace(c.Get("X-Api-Key"))
		if apiKey == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing api key")
		}

		site, err := resolver.GetActiveByAPIKey(c.Context(), apiKey)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return fiber.NewError(fiber.StatusUnauthorized, "unknown api key")
			}
			return err
		}

		c.Locals(siteLocalKey, site)
		return c.Next()
	}
}

func resolvedSite(c *fiber.Ctx) (*domain.Site, error) {
	site, ok := c.Locals(siteLocalKey).(*domain.Site)
	if !ok || site == nil {
		return nil, fiber.NewError(fiber.StatusUnauthorized, "site identity not resolved")
	}
	return site, nil
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrInvalidState),
		errors.Is(err, domain.ErrDuplicateFile),
		errors.Is(err, domain.ErrNoActiveBatch):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrAccountLimitExceeded):
		return fiber.NewError(fiber.StatusTooManyRequests, err.Error())
	case errors.Is(err, domain.ErrStoreUnavailable):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	default:
		return err
	}
}
