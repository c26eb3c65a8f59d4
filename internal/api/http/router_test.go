package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/elegantflow/crm-service/internal/api/http/handlers"
	"github.com/elegantflow/crm-service/internal/auth"
	"github.com/elegantflow/crm-service/internal/domain"
	"github.com/elegantflow/crm-service/internal/observability"
	"github.com/elegantflow/crm-service/internal/repository"
	apperrors "github.com/elegantflow/crm-service/pkg/util/errorutil"
)

type stubUsers struct {
	repository.UserRepository
	users map[string]*domain.User
}

func (s stubUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	return nil, pgx.ErrNoRows
}

type errorBody struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func decodeError(t *testing.T, resp *http.Response) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

type testServer struct {
	app     *fiber.App
	tokens  *auth.TokenManager
	metrics *observability.Metrics
}

func newTestServer(t *testing.T, users ...*domain.User) *testServer {
	t.Helper()
	byID := map[string]*domain.User{}
	for _, u := range users {
		byID[u.ID] = u
	}
	tokens := auth.NewTokenManager("router-test", 5)
	metrics := observability.NewMetrics()

	app := fiber.New()
	RegisterMiddlewares(app, zap.NewNop(), metrics, 0)
	RegisterRoutes(app, RouteConfig{
		Health: handlers.NewHealthHandler("crm-service", "test",
			handlers.DependencyCheck{Name: "postgres", Ping: func(context.Context) error { return nil }},
			handlers.DependencyCheck{Name: "redis", Ping: func(context.Context) error { return errors.New("connection refused") }},
		),
		Auth:           handlers.NewAuthHandler(nil),
		Team:           handlers.NewTeamHandler(nil),
		Organizations:  handlers.NewOrganizationHandler(nil),
		Clients:        handlers.NewClientHandler(nil),
		Leads:          handlers.NewLeadHandler(nil),
		Notifications:  handlers.NewNotificationHandler(nil),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, stubUsers{users: byID}),
		Metrics:        metrics,
		MetricsPath:    "/metrics",
	})
	return &testServer{app: app, tokens: tokens, metrics: metrics}
}

func (s *testServer) do(t *testing.T, method, path string, user *domain.User) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if user != nil {
		token, _, err := s.tokens.GenerateToken(user)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.app.Test(req)
	require.NoError(t, err)
	return resp
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, http.MethodGet, "/clients", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, apperrors.CodeUnauthorized, decodeError(t, resp).Error.Code)
}

func TestRoleGates(t *testing.T) {
	employee := &domain.User{ID: "emp-1", OrganizationID: "org-1", Role: domain.RoleEmployee, Status: domain.UserStatusActive}
	manager := &domain.User{ID: "mgr-1", OrganizationID: "org-1", Role: domain.RoleManager, Status: domain.UserStatusActive}
	s := newTestServer(t, employee, manager)

	tests := []struct {
		name   string
		method string
		path   string
		user   *domain.User
	}{
		{name: "employee deletes client", method: http.MethodDelete, path: "/clients/c-1", user: employee},
		{name: "manager deletes client", method: http.MethodDelete, path: "/clients/c-1", user: manager},
		{name: "employee reviews lead", method: http.MethodPost, path: "/leads/l-1/review", user: employee},
		{name: "employee deletes lead", method: http.MethodDelete, path: "/leads/l-1", user: employee},
		{name: "employee invites", method: http.MethodPost, path: "/auth/invite", user: employee},
		{name: "manager edits organization", method: http.MethodPatch, path: "/organizations/mine", user: manager},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := s.do(t, tt.method, tt.path, tt.user)
			assert.Equal(t, http.StatusForbidden, resp.StatusCode)
			assert.Equal(t, apperrors.CodeForbidden, decodeError(t, resp).Error.Code)
		})
	}
}

func TestMeReturnsCurrentUser(t *testing.T) {
	owner := &domain.User{ID: "own-1", Email: "owner@acme.test", OrganizationID: "org-1", Role: domain.RoleOwner, Status: domain.UserStatusActive}
	s := newTestServer(t, owner)

	resp := s.do(t, http.MethodGet, "/auth/me", owner)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Data struct {
			ID    string `json:"id"`
			Email string `json:"email"`
			Role  string `json:"role"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "own-1", body.Data.ID)
	assert.Equal(t, "owner", body.Data.Role)
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t)

	live := s.do(t, http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, live.StatusCode)

	ready := s.do(t, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, ready.StatusCode)
	body := decodeError(t, ready)
	assert.Equal(t, "DEPENDENCY_UNAVAILABLE", body.Error.Code)
	assert.Equal(t, "ok", body.Error.Details["postgres"])
	assert.Equal(t, "connection refused", body.Error.Details["redis"])
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodGet, "/health/live", nil)

	resp := s.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(raw), "crm_http_requests_total"))
}

func TestErrorMetricsUseRouteTemplate(t *testing.T) {
	employee := &domain.User{ID: "emp-1", OrganizationID: "org-1", Role: domain.RoleEmployee, Status: domain.UserStatusActive}
	s := newTestServer(t, employee)

	resp := s.do(t, http.MethodDelete, "/clients/c-123", employee)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `crm_http_errors_total{code="FORBIDDEN",method="DELETE",route="/clients/:id"} 1`)
	assert.NotContains(t, string(raw), "c-123")
}

func TestErrorMiddlewareRendersDomainErrors(t *testing.T) {
	app := fiber.New()
	RegisterMiddlewares(app, zap.NewNop(), nil, 0)
	app.Get("/assign", func(c *fiber.Ctx) error { return apperrors.NewInvalidAssignee("user-9") })
	app.Get("/missing", func(c *fiber.Ctx) error { return pgx.ErrNoRows })
	app.Get("/panic", func(c *fiber.Ctx) error { panic("boom") })

	tests := []struct {
		path   string
		status int
		code   string
	}{
		{path: "/assign", status: http.StatusUnprocessableEntity, code: apperrors.CodeInvalidAssignee},
		{path: "/missing", status: http.StatusNotFound, code: apperrors.CodeNotFound},
		{path: "/panic", status: http.StatusInternalServerError, code: apperrors.CodeInternal},
		{path: "/nowhere", status: http.StatusNotFound, code: apperrors.CodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, tt.path, nil))
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
			body := decodeError(t, resp)
			assert.Equal(t, tt.code, body.Error.Code)
			if tt.code == apperrors.CodeInvalidAssignee {
				assert.Equal(t, "user-9", body.Error.Details["assigned_to"])
			}
		})
	}
}
