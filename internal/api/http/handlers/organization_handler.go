package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/elegantflow/crm-service/internal/api/dto"
	"github.com/elegantflow/crm-service/internal/auth"
	"github.com/elegantflow/crm-service/internal/service"
)

// OrganizationHandler exposes organization and branch endpoints.
type OrganizationHandler struct {
	orgs *service.OrganizationService
}

// NewOrganizationHandler constructs handler.
func NewOrganizationHandler(orgs *service.OrganizationService) *OrganizationHandler {
	return &OrganizationHandler{orgs: orgs}
}

// List handles GET /organizations. Public, used by the registration form.
func (h *OrganizationHandler) List(c *fiber.Ctx) error {
	orgs, err := h.orgs.List(c.UserContext())
	if err != nil {
		return err
	}
	items := make([]dto.OrganizationResponse, 0, len(orgs))
	for i := range orgs {
		items = append(items, organizationResponse(&orgs[i], nil))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Mine handles GET /organizations/mine.
func (h *OrganizationHandler) Mine(c *fiber.Ctx) error {
	actor, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	view, err := h.orgs.GetMine(c.UserContext(), actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": organizationView(view)})
}

// ByOwner handles GET /organizations/owner/:ownerId.
func (h *OrganizationHandler) ByOwner(c *fiber.Ctx) error {
	view, err := h.orgs.GetByOwner(c.UserContext(), c.Params("ownerId"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": organizationView(view)})
}

// Update handles PATCH /organizations/mine.
func (h *OrganizationHandler) Update(c *fiber.Ctx) error {
	actor, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	var req dto.UpdateOrganizationRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	input := service.UpdateOrganizationInput{
		Name:     req.Name,
		Industry: req.Industry,
		Website:  req.Website,
		Logo:     req.Logo,
	}
	for _, b := range req.Branches {
		input.Branches = append(input.Branches, service.BranchInput{
			Name:     b.Name,
			Location: b.Location,
			Contact:  b.Contact,
			Email:    b.Email,
		})
	}
	view, err := h.orgs.Update(c.UserContext(), actor, input)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": organizationView(view)})
}

// Branches handles GET /branches.
func (h *OrganizationHandler) Branches(c *fiber.Ctx) error {
	actor, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	branches, err := h.orgs.ListBranches(c.UserContext(), actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": branchResponses(branches)})
}

// DeleteBranch handles DELETE /branches/:id.
func (h *OrganizationHandler) DeleteBranch(c *fiber.Ctx) error {
	actor, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	if err := h.orgs.DeleteBranch(c.UserContext(), actor, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}
