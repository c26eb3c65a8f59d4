package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/elegantflow/crm-service/internal/api/dto"
	"github.com/elegantflow/crm-service/internal/auth"
	"github.com/elegantflow/crm-service/internal/domain"
	"github.com/elegantflow/crm-service/internal/service"
)

// ClientHandler manages client, feedback and project endpoints.
type ClientHandler struct {
	clients *service.ClientService
}

// NewClientHandler constructs handler.
func NewClientHandler(clients *service.ClientService) *ClientHandler {
	return &ClientHandler{clients: clients}
}

// Create handles POST /clients.
func (h *ClientHandler) Create(c *fiber.Ctx) error {
	actor, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	var req dto.CreateClientRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	client, err := h.clients.CreateClient(c.UserContext(), actor, service.CreateClientInput{
		Name:       req.Name,
		Email:      req.Email,
		Phone:      req.Phone,
		Address:    req.Address,
		Type:       domain.ClientType(strings.ToLower(req.Type)),
		Industry:   req.Industry,
		Notes:      req.Notes,
		BranchID:   req.BranchID,
		AssignedTo: req.AssignedTo,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": clientResponse(client)})
}

// List handles GET /clients.
func (h *ClientHandler) List(c *fiber.Ctx) error {
	actor, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	var status *domain.ClientStatus
	if raw := c.Query("status"); raw != "" {
		s := domain.ClientStatus(raw)
		status = &s
	}
	limit, offset := page(c)
	clients, err := h.clients.ListClients(c.UserContext(), actor, status, limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": clientResponses(clients)})
}

// Stats handles GET /clients/stats.
func (h *ClientHandler) Stats(c *fiber.Ctx) error {
	actor, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	stats, err := h.clients.Stats(c.UserContext(), actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.ClientStatsResponse{
		Total:  stats.Total,
		Active: stats.Active,
		Latest: clientResponses(stats.Latest),
	}})
}

// Get handles GET /clients/:id.
func (h *ClientHandler) Get(c *fiber.Ctx) error {
	actor, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	client, err := h.clients.GetClient(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": clientResponse(client)})
}

// UpdateStatus handles PATCH /clients/:id/status.
func (h *ClientHandler) UpdateStatus(c *fiber.Ctx) error {
	actor, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	var req dto.ClientStatusRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	client, err := h.clients.UpdateStatus(c.UserContext(), actor, c.Params("id"), domain.ClientStatus(req.Status))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": clientResponse(client)})
}

// Delete handles DELETE /clients/:id.
func (h *ClientHandler) Delete(c *fiber.Ctx) error {
	actor, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	if err := h.clients.DeleteClient(c.UserContext(), actor, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// AddFeedback handles POST /clients/:id/feedback.
func (h *ClientHandler) AddFeedback(c *fiber.Ctx) error {
	actor, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	var req dto.FeedbackRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	feedback, err := h.clients.AddFeedback(c.UserContext(), actor, c.Params("id"), req.Text)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": feedbackResponse(feedback)})
}

// EditFeedback handles PATCH /clients/:id/feedback/:feedbackId.
func (h *ClientHandler) EditFeedback(c *fiber.Ctx) error {
	actor, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	var req dto.FeedbackRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	feedback, err := h.clients.EditFeedback(c.UserContext(), actor, c.Params("id"), c.Params("feedbackId"), req.Text)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": feedbackResponse(feedback)})
}

// RemoveFeedback handles DELETE /clients/:id/feedback/:feedbackId.
func (h *ClientHandler) RemoveFeedback(c *fiber.Ctx) error {
	actor, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	if err := h.clients.RemoveFeedback(c.UserContext(), actor, c.Params("id"), c.Params("feedbackId")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// MarkFeedbackSeen handles POST /clients/:id/feedback/:feedbackId/seen.
func (h *ClientHandler) MarkFeedbackSeen(c *fiber.Ctx) error {
	actor, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	feedback, err := h.clients.MarkFeedbackSeen(c.UserContext(), actor, c.Params("id"), c.Params("feedbackId"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": feedbackResponse(feedback)})
}

// CreateProject handles POST /clients/:id/projects.
func (h *ClientHandler) CreateProject(c *fiber.Ctx) error {
	actor, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	var req dto.CreateProjectRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	project, err := h.clients.CreateProject(c.UserContext(), actor, c.Params("id"), service.CreateProjectInput{
		Name:        req.Name,
		Description: req.Description,
		Budget:      req.Budget,
		Deadline:    req.Deadline,
		AssignedTo:  req.AssignedTo,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": projectResponse(project)})
}

// ListProjects handles GET /clients/:id/projects.
func (h *ClientHandler) ListProjects(c *fiber.Ctx) error {
	actor, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	projects, err := h.clients.ListProjects(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.ProjectResponse, 0, len(projects))
	for i := range projects {
		items = append(items, projectResponse(&projects[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}
