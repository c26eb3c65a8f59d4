package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/elegantflow/crm-service/internal/api/dto"
	"github.com/elegantflow/crm-service/internal/auth"
	"github.com/elegantflow/crm-service/internal/domain"
	"github.com/elegantflow/crm-service/internal/service"
	apperrors "github.com/elegantflow/crm-service/pkg/util/errorutil"
)

// LeadHandler manages lead endpoints.
type LeadHandler struct {
	leads *service.LeadService
}

// NewLeadHandler constructs handler.
func NewLeadHandler(leads *service.LeadService) *LeadHandler {
	return &LeadHandler{leads: leads}
}

// Create handles POST /leads.
func (h *LeadHandler) Create(c *fiber.Ctx) error {
	actor, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	var req dto.CreateLeadRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	lead, err := h.leads.CreateLead(c.UserContext(), actor, service.CreateLeadInput{
		Name:                  req.Name,
		Type:                  domain.ClientType(strings.ToLower(req.Type)),
		Email:                 req.Email,
		Phone:                 req.Phone,
		Address:               req.Address,
		BranchID:              req.BranchID,
		Source:                domain.LeadSource(strings.ToLower(req.Source)),
		Notes:                 req.Notes,
		AssignedTo:            req.AssignedTo,
		ScheduledFollowupDate: req.ScheduledFollowupDate,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": leadResponse(lead)})
}

// List handles GET /leads.
func (h *LeadHandler) List(c *fiber.Ctx) error {
	actor, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	var status *domain.LeadStatus
	if raw := c.Query("status"); raw != "" {
		s := domain.LeadStatus(raw)
		status = &s
	}
	limit, offset := page(c)
	leads, err := h.leads.ListLeads(c.UserContext(), actor, status, limit, offset)
	if err != nil {
		return err
	}
	items := make([]dto.LeadResponse, 0, len(leads))
	for i := range leads {
		items = append(items, leadResponse(&leads[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Get handles GET /leads/:id.
func (h *LeadHandler) Get(c *fiber.Ctx) error {
	actor, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	lead, err := h.leads.GetLead(c.UserContext(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": leadResponse(lead)})
}

// ChangeStatus handles PATCH /leads/:id/status. An employee asking for
// inactive gets 202 and a pending approval instead of a status change.
func (h *LeadHandler) ChangeStatus(c *fiber.Ctx) error {
	actor, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	var req dto.LeadStatusRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.Status == "" {
		return apperrors.NewValidationError("status required", nil)
	}
	result, err := h.leads.ChangeStatus(c.UserContext(), actor.ID, c.Params("id"), domain.LeadStatus(strings.ToLower(req.Status)), req.Reason)
	if err != nil {
		return err
	}
	resp := dto.LeadTransitionResponse{
		Lead:            leadResponse(result.Lead),
		Applied:         result.Applied,
		PendingApproval: !result.Applied,
		ClientCreated:   result.ClientCreated,
	}
	if result.Client != nil {
		client := clientResponse(result.Client)
		resp.Client = &client
	}
	status := http.StatusOK
	if !result.Applied {
		status = http.StatusAccepted
	}
	return c.Status(status).JSON(fiber.Map{"data": resp})
}

// Review handles POST /leads/:id/review.
func (h *LeadHandler) Review(c *fiber.Ctx) error {
	actor, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	var req dto.LeadReviewRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	lead, err := h.leads.ReviewInactiveRequest(c.UserContext(), actor, c.Params("id"), req.Approve, req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": leadResponse(lead)})
}

// Delete handles DELETE /leads/:id.
func (h *LeadHandler) Delete(c *fiber.Ctx) error {
	actor, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	if err := h.leads.DeleteLead(c.UserContext(), actor, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}
