package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
)

type AccountService interface {
	Deactivate(ctx context.Context, accountID string) error
}

type AdminHandler struct {
	accounts AccountService
}

func NewAdminHandler(accounts AccountService) (*AdminHandler, error) {
	if accounts == nil {
		return nil, fmt.Errorf("account service is required")
	}
	return &AdminHandler{accounts: accounts}, nil
}

// RegisterAdminRoutes wires the admin surface. Admin routes sit behind the
// operator's network boundary, not the site API key middleware.
func RegisterAdminRoutes(router fiber.Router, accounts AccountService) error {
	h, err := NewAdminHandler(accounts)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1/admin")
	v1.Post("/accounts/:id/deactivate", h.DeactivateAccount)

	return nil
}

func (h *AdminHandler) DeactivateAccount(c *fiber.Ctx) error {
	accountID := strings.TrimSpace(c.Params("id"))
	if err := h.accounts.Deactivate(c.Context(), accountID); err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"accountId": accountID,
		"active":    false,
	})
}
