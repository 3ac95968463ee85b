package http

import (
	"bytes"
	"encoding/json"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fieldops/maintenance-ticketing/internal/api/http/handlers"
	"github.com/fieldops/maintenance-ticketing/internal/auth"
	"github.com/fieldops/maintenance-ticketing/internal/domain"
	"github.com/fieldops/maintenance-ticketing/internal/events"
	"github.com/fieldops/maintenance-ticketing/internal/lifecycle"
	"github.com/fieldops/maintenance-ticketing/internal/observability"
	"github.com/fieldops/maintenance-ticketing/internal/persistence"
	"github.com/fieldops/maintenance-ticketing/internal/refcode"
	"github.com/fieldops/maintenance-ticketing/internal/repository"
	"github.com/fieldops/maintenance-ticketing/internal/service"
	"github.com/fieldops/maintenance-ticketing/internal/sla"
)

var (
	requester  = domain.Actor{ID: "req-1", Name: "Rina", Role: domain.RoleRequester}
	technician = domain.Actor{ID: "tech-1", Name: "Tono", Role: domain.RoleTechnician}
	supervisor = domain.Actor{ID: "sup-1", Name: "Sari", Role: domain.RoleSupervisor}
	admin      = domain.Actor{ID: "adm-1", Name: "Adi", Role: domain.RoleAdmin}
)

type testServer struct {
	app    *fiber.App
	tokens *auth.TokenManager
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := repository.NewMemoryStore()
	metrics := observability.NewMetrics()
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:  store,
		HistoryRepo: store,
		References:  refcode.NewGenerator(refcode.NewMemorySequencer()),
		Engine:      lifecycle.New(nil, 0),
		Clock:       sla.NewClock(nil, 0),
		Dispatcher:  events.NewInMemoryDispatcher(),
		Metrics:     metrics,
		Logger:      zap.NewNop(),
	})
	tokens := auth.NewTokenManager("test-secret", 60)

	app := fiber.New()
	RegisterMiddlewares(app, zap.NewNop(), metrics, 0)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("maintenance-ticketing", "test", &persistence.Postgres{}, &persistence.Redis{}),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Workflow:       handlers.NewWorkflowHandler(ticketService),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
		Metrics:        metrics,
	})
	return &testServer{app: app, tokens: tokens}
}

func (s *testServer) do(t *testing.T, method, path string, actor *domain.Actor, body any) (*nethttp.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if actor != nil {
		token, _, err := s.tokens.GenerateToken(*actor)
		require.NoError(t, err)
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()

	payload := map[string]any{}
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(raw, &payload))
	}
	return resp, payload
}

func (s *testServer) createTicket(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	resp, payload := s.do(t, fiber.MethodPost, "/api/v1/tickets", &requester, body)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, payload)
	return payload["data"].(map[string]any)
}

func errorCode(payload map[string]any) string {
	errBody, _ := payload["error"].(map[string]any)
	code, _ := errBody["code"].(string)
	return code
}

func errorDetails(payload map[string]any) map[string]any {
	errBody, _ := payload["error"].(map[string]any)
	details, _ := errBody["details"].(map[string]any)
	return details
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t)

	resp, payload := srv.do(t, fiber.MethodGet, "/health/live", nil, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "alive", payload["status"])

	resp, payload = srv.do(t, fiber.MethodGet, "/health/ready", nil, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	deps := payload["dependencies"].(map[string]any)
	assert.Equal(t, "disabled", deps["postgres"])
	assert.Equal(t, "disabled", deps["redis"])
}

func TestTicketRoutesRequireToken(t *testing.T) {
	srv := newTestServer(t)

	resp, payload := srv.do(t, fiber.MethodGet, "/api/v1/tickets", nil, nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "UNAUTHORIZED", errorCode(payload))
}

func TestCreateTicket(t *testing.T) {
	srv := newTestServer(t)

	ticket := srv.createTicket(t, map[string]any{
		"category":      "cm",
		"priorityLevel": 2,
		"title":         "Pump leaking",
		"locationRef":   "Plant 3",
	})
	assert.Regexp(t, `^CM-\d{8}-0001$`, ticket["referenceCode"])
	assert.Equal(t, "open", ticket["status"])
	assert.Equal(t, requester.ID, ticket["requesterId"])
	assert.EqualValues(t, 1, ticket["version"])
	slaBlock := ticket["sla"].(map[string]any)
	assert.Equal(t, "on_time", slaBlock["health"])
}

func TestCreateTicketValidation(t *testing.T) {
	srv := newTestServer(t)

	resp, payload := srv.do(t, fiber.MethodPost, "/api/v1/tickets", &requester, map[string]any{
		"category":      "xx",
		"priorityLevel": 1,
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(payload))
	fields := errorDetails(payload)["fields"].(map[string]any)
	assert.Contains(t, fields, "category")
	assert.Contains(t, fields, "title")

	resp, payload = srv.do(t, fiber.MethodPost, "/api/v1/tickets", &requester, map[string]any{
		"category":      "pm",
		"priorityLevel": 9,
		"title":         "Quarterly inspection",
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "UNKNOWN_PRIORITY_LEVEL", errorCode(payload))

	resp, payload = srv.do(t, fiber.MethodPost, "/api/v1/tickets", &requester, map[string]any{
		"category":            "pm",
		"priorityLevel":       1,
		"title":               "Quarterly inspection",
		"expectedLocationLat": -6.2,
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(payload))
}

func TestTransitionFlow(t *testing.T) {
	srv := newTestServer(t)
	ticket := srv.createTicket(t, map[string]any{
		"category":       "cm",
		"priorityLevel":  1,
		"title":          "Generator fault",
		"assignedToId":   technician.ID,
		"assignedToName": technician.Name,
	})
	id := ticket["id"].(string)
	require.Equal(t, "assigned", ticket["status"])
	base := "/api/v1/tickets/" + id

	resp, payload := srv.do(t, fiber.MethodPost, base+"/transitions", &technician, map[string]any{"status": "acknowledged"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode, payload)
	data := payload["data"].(map[string]any)
	assert.Equal(t, true, data["changed"])
	entry := data["entry"].(map[string]any)
	assert.Equal(t, "assigned", entry["fromStatus"])
	assert.Equal(t, "acknowledged", entry["toStatus"])

	resp, payload = srv.do(t, fiber.MethodPost, base+"/transitions", &technician, map[string]any{"status": "on_progress"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode, payload)

	resp, payload = srv.do(t, fiber.MethodPost, base+"/transitions", &technician, map[string]any{
		"status":     "pending_review",
		"afterPhoto": "after.jpg",
	})
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "INCOMPLETE_EVIDENCE", errorCode(payload))
	assert.ElementsMatch(t,
		[]any{"beforePhoto", "technicianNotes", "technicianSignature"},
		errorDetails(payload)["missing_fields"])

	resp, payload = srv.do(t, fiber.MethodPost, base+"/transitions", &technician, map[string]any{
		"status":              "pending_review",
		"beforePhoto":         "before.jpg",
		"afterPhoto":          "after.jpg",
		"technicianNotes":     "replaced relay",
		"technicianSignature": "sig.png",
		"laborCost":           100,
		"materialCost":        50.5,
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode, payload)
	updated := payload["data"].(map[string]any)["ticket"].(map[string]any)
	assert.Equal(t, "pending_review", updated["status"])
	assert.EqualValues(t, 150.5, updated["costs"].(map[string]any)["total"])
	assert.EqualValues(t, 4, updated["version"])

	resp, payload = srv.do(t, fiber.MethodGet, base+"/history?order=asc", &requester, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	entries := payload["data"].([]any)
	require.Len(t, entries, 3)
	assert.Equal(t, "acknowledged", entries[0].(map[string]any)["toStatus"])
	assert.Equal(t, "pending_review", entries[2].(map[string]any)["toStatus"])

	resp, payload = srv.do(t, fiber.MethodGet, base+"?include_history=true", &requester, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	detail := payload["data"].(map[string]any)
	assert.Len(t, detail["history"], 3)
	assert.ElementsMatch(t, []any{"approved", "rejected"}, detail["allowedTransitions"])
}

func TestInvalidTransitionReportsAllowedTargets(t *testing.T) {
	srv := newTestServer(t)
	ticket := srv.createTicket(t, map[string]any{"category": "cm", "priorityLevel": 3, "title": "Door jammed"})

	resp, payload := srv.do(t, fiber.MethodPost, "/api/v1/tickets/"+ticket["id"].(string)+"/transitions", &technician,
		map[string]any{"status": "closed"})
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	assert.Equal(t, "INVALID_TRANSITION", errorCode(payload))
	assert.ElementsMatch(t, []any{"assigned", "cancelled"}, errorDetails(payload)["allowed"])

	resp, payload = srv.do(t, fiber.MethodPost, "/api/v1/tickets/"+ticket["id"].(string)+"/transitions", &technician,
		map[string]any{"status": "sleeping"})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(payload))
}

func TestUnknownTicketIsNotFound(t *testing.T) {
	srv := newTestServer(t)

	resp, payload := srv.do(t, fiber.MethodGet, "/api/v1/tickets/missing", &requester, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", errorCode(payload))

	resp, payload = srv.do(t, fiber.MethodGet, "/api/v1/tickets/missing/history", &requester, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", errorCode(payload))
}

func TestListTicketsPagination(t *testing.T) {
	srv := newTestServer(t)
	for i := 0; i < 3; i++ {
		srv.createTicket(t, map[string]any{"category": "cm", "priorityLevel": 2, "title": "Leak"})
	}
	srv.createTicket(t, map[string]any{"category": "pm", "priorityLevel": 4, "title": "Inspection", "draft": true})

	resp, payload := srv.do(t, fiber.MethodGet, "/api/v1/tickets?category=cm&page=1&page_size=2", &requester, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Len(t, payload["data"], 2)
	assert.Equal(t, "3", resp.Header.Get("X-Total-Count"))
	assert.Equal(t, "2", resp.Header.Get("X-Total-Pages"))
	assert.Equal(t, "1", resp.Header.Get("X-Current-Page"))
	assert.Equal(t, "2", resp.Header.Get("X-Page-Size"))
	pagination := payload["pagination"].(map[string]any)
	assert.Equal(t, true, pagination["has_next"])
	assert.Equal(t, false, pagination["has_previous"])

	resp, payload = srv.do(t, fiber.MethodGet, "/api/v1/tickets?status=draft", &requester, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Len(t, payload["data"], 1)
	assert.Equal(t, "pm", payload["data"].([]any)[0].(map[string]any)["category"])

	resp, payload = srv.do(t, fiber.MethodGet, "/api/v1/tickets?status=bogus", &requester, nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(payload))
}

func TestRetireTicket(t *testing.T) {
	srv := newTestServer(t)
	active := srv.createTicket(t, map[string]any{"category": "cm", "priorityLevel": 2, "title": "Leak"})
	draft := srv.createTicket(t, map[string]any{"category": "pm", "priorityLevel": 2, "title": "Plan", "draft": true})

	resp, payload := srv.do(t, fiber.MethodDelete, "/api/v1/tickets/"+draft["id"].(string), &requester, nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "FORBIDDEN", errorCode(payload))

	resp, payload = srv.do(t, fiber.MethodDelete, "/api/v1/tickets/"+active["id"].(string), &supervisor, nil)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	assert.Equal(t, "TICKET_STILL_ACTIVE", errorCode(payload))

	resp, payload = srv.do(t, fiber.MethodDelete, "/api/v1/tickets/"+draft["id"].(string), &supervisor, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	retired := payload["data"].(map[string]any)
	assert.Equal(t, true, retired["retired"])
	assert.Equal(t, supervisor.ID, retired["retiredBy"])
	assert.Equal(t, "draft", retired["status"])

	resp, _ = srv.do(t, fiber.MethodGet, "/api/v1/tickets/"+draft["id"].(string), &requester, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestAppendCorrection(t *testing.T) {
	srv := newTestServer(t)
	ticket := srv.createTicket(t, map[string]any{"category": "cm", "priorityLevel": 2, "title": "Leak"})
	path := "/api/v1/tickets/" + ticket["id"].(string) + "/corrections"

	resp, _ := srv.do(t, fiber.MethodPost, path, &supervisor, map[string]any{"reason": "typo"})
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, payload := srv.do(t, fiber.MethodPost, path, &admin, map[string]any{"reason": " "})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(payload))

	resp, payload = srv.do(t, fiber.MethodPost, path, &admin, map[string]any{"reason": "assignee recorded on paper"})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, payload)
	entry := payload["data"].(map[string]any)
	assert.Equal(t, "correction", entry["kind"])
	assert.Equal(t, "open", entry["fromStatus"])
	assert.Equal(t, "open", entry["toStatus"])
}

func TestWorkflowTransitions(t *testing.T) {
	srv := newTestServer(t)

	resp, payload := srv.do(t, fiber.MethodGet, "/api/v1/workflow/pm/transitions?from=draft", &technician, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	data := payload["data"].(map[string]any)
	assert.ElementsMatch(t, []any{"open", "cancelled"}, data["allowed"])

	resp, payload = srv.do(t, fiber.MethodGet, "/api/v1/workflow/cm/transitions?from=draft", &technician, nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(payload))

	resp, payload = srv.do(t, fiber.MethodGet, "/api/v1/workflow/cm/transitions?from=closed", &technician, nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Empty(t, payload["data"].(map[string]any)["allowed"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	srv.do(t, fiber.MethodGet, "/health/live", nil, nil)

	req := httptest.NewRequest(fiber.MethodGet, "/metrics", nil)
	resp, err := srv.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "http_requests_total")
}

func TestUnknownRouteUsesErrorEnvelope(t *testing.T) {
	srv := newTestServer(t)

	resp, payload := srv.do(t, fiber.MethodGet, "/nope", nil, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", errorCode(payload))
}
