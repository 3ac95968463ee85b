package handlers

import (
	"slices"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/fieldops/maintenance-ticketing/internal/api/dto"
	"github.com/fieldops/maintenance-ticketing/internal/auth"
	"github.com/fieldops/maintenance-ticketing/internal/domain"
	"github.com/fieldops/maintenance-ticketing/internal/lifecycle"
	"github.com/fieldops/maintenance-ticketing/internal/service"
	apperrors "github.com/fieldops/maintenance-ticketing/pkg/util/errorutil"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// TicketsHandler manages ticket endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /api/v1/tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := dto.Decode(c, &req); err != nil {
		return err
	}
	expected, err := coordinatePair(req.ExpectedLocationLat, req.ExpectedLocationLng, "expectedLocation")
	if err != nil {
		return err
	}

	input := service.CreateTicketInput{
		Category:         req.Category,
		PriorityLevel:    req.PriorityLevel,
		Severity:         req.Severity,
		Title:            req.Title,
		Description:      req.Description,
		LocationRef:      req.LocationRef,
		ExpectedLocation: expected,
		Assignment:       assignmentFrom(req.AssignedToID, req.AssignedToName),
		Draft:            req.Draft,
	}
	view, err := h.service.CreateTicket(c.UserContext(), actor, input)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": ticketResponse(view)})
}

// ListTickets GET /api/v1/tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	query, err := parseTicketListQuery(c)
	if err != nil {
		return err
	}
	filter := service.TicketListFilter{
		Category:       query.Category,
		Statuses:       query.Statuses,
		PriorityLevels: query.PriorityLevels,
		AssigneeID:     query.AssigneeID,
		RequesterID:    query.RequesterID,
		SearchTerm:     query.Search,
		Limit:          query.PageSize,
		Offset:         (query.Page - 1) * query.PageSize,
	}
	views, total, err := h.service.ListTickets(c.UserContext(), filter)
	if err != nil {
		return err
	}

	items := make([]dto.TicketResponse, 0, len(views))
	for i := range views {
		items = append(items, ticketResponse(&views[i]))
	}
	pagination := dto.NewPagination(query.Page, query.PageSize, total)
	c.Set("X-Total-Count", strconv.Itoa(pagination.TotalCount))
	c.Set("X-Total-Pages", strconv.Itoa(pagination.TotalPages))
	c.Set("X-Current-Page", strconv.Itoa(pagination.Page))
	c.Set("X-Page-Size", strconv.Itoa(pagination.PageSize))
	return c.JSON(fiber.Map{"data": items, "pagination": pagination})
}

// GetTicket GET /api/v1/tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	view, err := h.service.GetTicket(c.UserContext(), c.Params("id"), c.QueryBool("include_history"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(view)})
}

// Transition POST /api/v1/tickets/:id/transitions.
func (h *TicketsHandler) Transition(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.TransitionRequest
	if err := dto.Decode(c, &req); err != nil {
		return err
	}
	workLocation, err := coordinatePair(req.WorkLocationLat, req.WorkLocationLng, "workLocation")
	if err != nil {
		return err
	}

	result, err := h.service.Transition(c.UserContext(), c.Params("id"), lifecycle.TransitionRequest{
		Status: req.Status,
		Actor:  actor,
		Evidence: &lifecycle.Evidence{
			BeforePhoto:          req.BeforePhoto,
			AfterPhoto:           req.AfterPhoto,
			TechnicianSignature:  req.TechnicianSignature,
			TechnicianNotes:      req.TechnicianNotes,
			WorkLocation:         workLocation,
			WorkLocationAccuracy: req.WorkLocationAccuracy,
		},
		Assignment: assignmentFrom(req.AssignedToID, req.AssignedToName),
		Costs: &lifecycle.CostUpdate{
			Labor:      req.LaborCost,
			Material:   req.MaterialCost,
			SpareParts: req.SparePartsCost,
		},
		Reason:        req.Reason,
		ForceLocation: req.ForceLocation,
	})
	if err != nil {
		return err
	}

	resp := dto.TransitionResponse{
		Ticket:  ticketResponse(result.View),
		Changed: result.Changed,
	}
	if result.Entry != nil {
		entry := historyResponse(*result.Entry)
		resp.Entry = &entry
	}
	return c.JSON(fiber.Map{"data": resp})
}

// ListHistory GET /api/v1/tickets/:id/history.
func (h *TicketsHandler) ListHistory(c *fiber.Ctx) error {
	order := domain.SortOrder(strings.ToLower(c.Query("order", string(domain.SortDesc))))
	if order != domain.SortAsc && order != domain.SortDesc {
		return apperrors.NewValidationError("order must be asc or desc", map[string]any{"order": order})
	}
	entries, err := h.service.ListHistory(c.UserContext(), c.Params("id"), order)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": historyResponses(entries)})
}

// AppendCorrection POST /api/v1/tickets/:id/corrections.
func (h *TicketsHandler) AppendCorrection(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req dto.CorrectionRequest
	if err := dto.Decode(c, &req); err != nil {
		return err
	}
	entry, err := h.service.AppendCorrection(c.UserContext(), c.Params("id"), actor, req.Reason)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": historyResponse(*entry)})
}

// RetireTicket DELETE /api/v1/tickets/:id.
func (h *TicketsHandler) RetireTicket(c *fiber.Ctx) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	view, err := h.service.Retire(c.UserContext(), c.Params("id"), actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(view)})
}

func actorFrom(c *fiber.Ctx) (domain.Actor, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Actor.ID == "" {
		return domain.Actor{}, apperrors.NewUnauthorized("actor required")
	}
	return principal.Actor, nil
}

func assignmentFrom(id, name *string) *lifecycle.Assignment {
	if id == nil {
		return nil
	}
	assignment := &lifecycle.Assignment{ID: strings.TrimSpace(*id)}
	if name != nil {
		assignment.Name = *name
	}
	return assignment
}

func coordinatePair(lat, lng *float64, field string) (*domain.Coordinate, error) {
	if lat == nil && lng == nil {
		return nil, nil
	}
	if lat == nil || lng == nil {
		return nil, apperrors.NewValidationError(field+" requires both latitude and longitude", nil)
	}
	return &domain.Coordinate{Lat: *lat, Lng: *lng}, nil
}

func parseTicketListQuery(c *fiber.Ctx) (dto.TicketListQuery, error) {
	query := dto.TicketListQuery{
		Page:     parseInt(c.Query("page"), 1),
		PageSize: parseInt(c.Query("page_size"), defaultPageSize),
	}
	if query.PageSize > maxPageSize {
		query.PageSize = maxPageSize
	}

	if categoryStr := c.Query("category"); categoryStr != "" {
		category := domain.Category(strings.ToLower(categoryStr))
		if !category.Valid() {
			return query, apperrors.NewValidationError("unknown category", map[string]any{"category": categoryStr})
		}
		query.Category = &category
	}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			status := domain.TicketStatus(strings.TrimSpace(part))
			if !slices.Contains(domain.AllStatuses, status) {
				return query, apperrors.NewValidationError("unknown status", map[string]any{"status": part})
			}
			query.Statuses = append(query.Statuses, status)
		}
	}
	if priorityStr := c.Query("priority"); priorityStr != "" {
		for _, part := range strings.Split(priorityStr, ",") {
			level, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil || level <= 0 {
				return query, apperrors.NewValidationError("priority must be a positive integer", map[string]any{"priority": part})
			}
			query.PriorityLevels = append(query.PriorityLevels, level)
		}
	}
	if assignee := strings.TrimSpace(c.Query("assignee")); assignee != "" {
		query.AssigneeID = &assignee
	}
	if requester := strings.TrimSpace(c.Query("requester")); requester != "" {
		query.RequesterID = &requester
	}
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		query.Search = &search
	}
	return query, nil
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func ticketResponse(view *service.TicketView) dto.TicketResponse {
	t := view.Ticket
	resp := dto.TicketResponse{
		ID:              t.ID,
		ReferenceCode:   t.ReferenceCode,
		Category:        t.Category,
		PriorityLevel:   t.PriorityLevel,
		Severity:        t.Severity,
		Title:           t.Title,
		Description:     t.Description,
		RequesterID:     t.RequesterID,
		RequesterName:   t.RequesterName,
		Status:          t.Status,
		PreviousStatus:  t.PreviousStatus,
		StatusChangedAt: t.StatusChangedAt,
		AssignedToID:    t.AssignedToID,
		AssignedToName:  t.AssignedToName,
		AssignedAt:      t.AssignedAt,
		AcknowledgedAt:  t.AcknowledgedAt,
		StartedAt:       t.StartedAt,
		CompletedAt:     t.CompletedAt,
		ClosedAt:        t.ClosedAt,
		Location: dto.LocationResponse{
			Ref:            t.LocationRef,
			Expected:       t.ExpectedLocation,
			Work:           t.WorkLocation,
			WorkAccuracy:   t.WorkLocationAccuracy,
			Verified:       t.LocationVerified,
			DistanceMeters: t.LocationDistance,
			Overridden:     t.LocationOverride,
			OverriddenBy:   t.LocationOverrideBy,
		},
		Evidence: dto.EvidenceResponse{
			BeforePhoto:         t.BeforePhoto,
			AfterPhoto:          t.AfterPhoto,
			TechnicianSignature: t.TechnicianSignature,
			TechnicianNotes:     t.TechnicianNotes,
		},
		Costs: dto.CostResponse{
			Labor:      t.LaborCost,
			Material:   t.MaterialCost,
			SpareParts: t.SparePartsCost,
			Total:      t.TotalCost,
		},
		RejectionCount:      t.RejectionCount,
		LastRejectionReason: t.LastRejectionReason,
		CompletionRecordID:  t.CompletionRecordID,
		SLA: dto.SLAResponse{
			ResponseDeadline:         t.SLAResponseDeadline,
			ResolutionDeadline:       t.SLAResolutionDeadline,
			ActualResponseAt:         t.ActualResponseAt,
			ActualResolutionAt:       t.ActualResolutionAt,
			ResponseHealth:           view.Health.Response,
			ResolutionHealth:         view.Health.Resolution,
			Health:                   view.Health.Overall,
			ResponseHoursRemaining:   view.ResponseHoursRemaining,
			ResolutionHoursRemaining: view.ResolutionHoursRemaining,
		},
		CanReopen:          view.CanReopen,
		CanClose:           view.CanClose,
		AllowedTransitions: view.AllowedTransitions,
		Retired:            t.Retired,
		RetiredAt:          t.RetiredAt,
		RetiredBy:          t.RetiredBy,
		Version:            t.Version,
		CreatedAt:          t.CreatedAt,
		UpdatedAt:          t.UpdatedAt,
	}
	if resp.AllowedTransitions == nil {
		resp.AllowedTransitions = []domain.TicketStatus{}
	}
	if view.History != nil {
		resp.History = historyResponses(view.History)
	}
	return resp
}

func historyResponse(entry domain.StatusHistoryEntry) dto.HistoryEntryResponse {
	return dto.HistoryEntryResponse{
		ID:         entry.ID,
		TicketID:   entry.TicketID,
		FromStatus: entry.FromStatus,
		ToStatus:   entry.ToStatus,
		ActorID:    entry.ActorID,
		ActorName:  entry.ActorName,
		Kind:       entry.Kind,
		Reason:     entry.Reason,
		CreatedAt:  entry.CreatedAt,
	}
}

func historyResponses(entries []domain.StatusHistoryEntry) []dto.HistoryEntryResponse {
	resp := make([]dto.HistoryEntryResponse, 0, len(entries))
	for _, entry := range entries {
		resp = append(resp, historyResponse(entry))
	}
	return resp
}
