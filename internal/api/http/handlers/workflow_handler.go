package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/fieldops/maintenance-ticketing/internal/api/dto"
	"github.com/fieldops/maintenance-ticketing/internal/domain"
	"github.com/fieldops/maintenance-ticketing/internal/service"
	apperrors "github.com/fieldops/maintenance-ticketing/pkg/util/errorutil"
)

// WorkflowHandler exposes the transition tables for client-side hinting.
type WorkflowHandler struct {
	service *service.TicketService
}

// NewWorkflowHandler constructs handler.
func NewWorkflowHandler(ticketService *service.TicketService) *WorkflowHandler {
	return &WorkflowHandler{service: ticketService}
}

// Transitions GET /api/v1/workflow/:category/transitions?from=.
func (h *WorkflowHandler) Transitions(c *fiber.Ctx) error {
	category := domain.Category(strings.ToLower(c.Params("category")))
	from := domain.TicketStatus(strings.TrimSpace(c.Query("from")))
	if from == "" {
		return apperrors.NewValidationError("from is required", map[string]any{"field": "from"})
	}
	allowed, err := h.service.AllowedTransitions(category, from)
	if err != nil {
		return err
	}
	if allowed == nil {
		allowed = []domain.TicketStatus{}
	}
	return c.JSON(fiber.Map{"data": dto.WorkflowTransitionsResponse{
		Category: category,
		From:     from,
		Allowed:  allowed,
	}})
}
