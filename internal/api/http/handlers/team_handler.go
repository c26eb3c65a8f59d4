package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/elegantflow/crm-service/internal/auth"
	"github.com/elegantflow/crm-service/internal/service"
)

// TeamHandler exposes hierarchy listings.
type TeamHandler struct {
	team *service.TeamService
}

// NewTeamHandler constructs handler.
func NewTeamHandler(team *service.TeamService) *TeamHandler {
	return &TeamHandler{team: team}
}

// Managers handles GET /team/managers.
func (h *TeamHandler) Managers(c *fiber.Ctx) error {
	actor, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	managers, err := h.team.ListManagers(c.UserContext(), actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": userResponses(managers)})
}

// Mine handles GET /team.
func (h *TeamHandler) Mine(c *fiber.Ctx) error {
	actor, err := auth.CurrentUser(c)
	if err != nil {
		return err
	}
	members, err := h.team.MyTeam(c.UserContext(), actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": userResponses(members)})
}
