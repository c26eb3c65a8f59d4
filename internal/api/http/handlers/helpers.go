package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/elegantflow/crm-service/internal/api/dto"
	"github.com/elegantflow/crm-service/internal/domain"
	"github.com/elegantflow/crm-service/internal/service"
	apperrors "github.com/elegantflow/crm-service/pkg/util/errorutil"
)

const defaultPageSize = 20

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

// page reads page and page_size query parameters as limit and offset.
func page(c *fiber.Ctx) (limit, offset int) {
	p := parseInt(c.Query("page"), 1)
	size := parseInt(c.Query("page_size"), defaultPageSize)
	return size, (p - 1) * size
}

func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return nil
}

func userResponse(user *domain.User) dto.UserResponse {
	return dto.UserResponse{
		ID:             user.ID,
		FirstName:      user.FirstName,
		LastName:       user.LastName,
		UserName:       user.UserName,
		Email:          user.Email,
		OrganizationID: user.OrganizationID,
		BranchID:       user.BranchID,
		ParentID:       user.ParentID,
		Role:           string(user.Role),
		Status:         string(user.Status),
		JobTitle:       user.JobTitle,
		Department:     user.Department,
		Phone:          user.Profile.Phone,
		Avatar:         user.Profile.Avatar,
		CreatedAt:      user.CreatedAt,
		LastLoggedIn:   user.LastLoggedIn,
	}
}

func userResponses(users []domain.User) []dto.UserResponse {
	items := make([]dto.UserResponse, 0, len(users))
	for i := range users {
		items = append(items, userResponse(&users[i]))
	}
	return items
}

func branchResponses(branches []domain.Branch) []dto.BranchResponse {
	items := make([]dto.BranchResponse, 0, len(branches))
	for _, b := range branches {
		items = append(items, dto.BranchResponse{
			ID:        b.ID,
			Name:      b.Name,
			Location:  b.Location,
			Contact:   b.Contact,
			Email:     b.Email,
			ManagerID: b.ManagerID,
			CreatedAt: b.CreatedAt,
		})
	}
	return items
}

func organizationResponse(org *domain.Organization, branches []domain.Branch) dto.OrganizationResponse {
	resp := dto.OrganizationResponse{
		ID:       org.ID,
		Name:     org.Name,
		Industry: org.Industry,
		Website:  org.Website,
		Logo:     org.Logo,
		OwnerID:  org.OwnerID,
	}
	if len(branches) > 0 {
		resp.Branches = branchResponses(branches)
	}
	return resp
}

func organizationView(view *service.OrganizationView) dto.OrganizationResponse {
	return organizationResponse(view.Organization, view.Branches)
}

func feedbackResponse(fb *domain.Feedback) dto.FeedbackResponse {
	return dto.FeedbackResponse{
		ID:        fb.ID,
		Text:      fb.Text,
		AuthorID:  fb.AuthorID,
		Seen:      fb.Seen,
		Edited:    fb.Edited,
		CreatedAt: fb.CreatedAt,
		UpdatedAt: fb.UpdatedAt,
	}
}

func clientResponse(client *domain.Client) dto.ClientResponse {
	resp := dto.ClientResponse{
		ID:         client.ID,
		Name:       client.Name,
		Email:      client.Email,
		Phone:      client.Phone,
		Address:    client.Address,
		Type:       string(client.Type),
		Status:     string(client.Status),
		Industry:   client.Industry,
		Notes:      client.Notes,
		BranchID:   client.BranchID,
		AssignedTo: client.AssignedTo,
		ProjectIDs: client.ProjectIDs,
		CreatedBy:  client.CreatedBy,
		CreatedAt:  client.CreatedAt,
		UpdatedAt:  client.UpdatedAt,
	}
	for i := range client.Feedback {
		resp.Feedback = append(resp.Feedback, feedbackResponse(&client.Feedback[i]))
	}
	return resp
}

func clientResponses(clients []domain.Client) []dto.ClientResponse {
	items := make([]dto.ClientResponse, 0, len(clients))
	for i := range clients {
		items = append(items, clientResponse(&clients[i]))
	}
	return items
}

func projectResponse(p *domain.Project) dto.ProjectResponse {
	return dto.ProjectResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Budget:      p.Budget,
		Deadline:    p.Deadline,
		Status:      string(p.Status),
		ClientID:    p.ClientID,
		AssignedTo:  p.AssignedTo,
		CreatedBy:   p.CreatedBy,
		CreatedAt:   p.CreatedAt,
	}
}

func leadResponse(lead *domain.Lead) dto.LeadResponse {
	return dto.LeadResponse{
		ID:         lead.ID,
		Name:       lead.Name,
		Type:       string(lead.Type),
		Email:      lead.Email,
		Phone:      lead.Phone,
		Address:    lead.Address,
		BranchID:   lead.BranchID,
		Source:     string(lead.Source),
		AssignedTo: lead.AssignedTo,
		Approval:   string(lead.Approval),
		Status:     string(lead.Status),
		Notes:      lead.Notes,
		History: dto.LeadHistoryResponse{
			CreatedAt: lead.History.CreatedAt,
			CreatedBy: lead.History.CreatedBy,
			UpdatedAt: lead.History.UpdatedAt,
			UpdatedBy: lead.History.UpdatedBy,
			Reason:    lead.History.Reason,
		},
		ScheduledFollowupDate: lead.ScheduledFollowupDate,
		IsArchived:            lead.IsArchived,
		InactiveRequested:     lead.InactiveRequested,
	}
}

func notificationResponse(n *domain.Notification) dto.NotificationResponse {
	return dto.NotificationResponse{
		ID:        n.ID,
		Title:     n.Title,
		Subject:   n.Subject,
		Body:      n.Body,
		Type:      string(n.Type),
		From:      n.From,
		To:        n.To,
		Route:     n.Route,
		Screen:    n.Screen,
		Status:    string(n.Status),
		CreatedAt: n.CreatedAt,
	}
}
