package service

import (
	"context"

	"github.com/elegantflow/crm-service/internal/domain"
	"github.com/elegantflow/crm-service/internal/repository"
	apperrors "github.com/elegantflow/crm-service/pkg/util/errorutil"
)

// TeamService answers staff hierarchy queries.
type TeamService struct {
	users repository.UserRepository
}

// NewTeamService creates the service.
func NewTeamService(users repository.UserRepository) *TeamService {
	return &TeamService{users: users}
}

// ListManagers returns the managers of the actor's organization.
func (s *TeamService) ListManagers(ctx context.Context, actor *domain.User) ([]domain.User, error) {
	managers, err := s.users.List(ctx, repository.UserFilter{
		OrganizationID: &actor.OrganizationID,
		Roles:          []domain.Role{domain.RoleManager},
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return managers, nil
}

// MyTeam returns the organization for owners, direct reports for managers
// and the user alone for employees.
func (s *TeamService) MyTeam(ctx context.Context, actor *domain.User) ([]domain.User, error) {
	filter := repository.UserFilter{OrganizationID: &actor.OrganizationID}
	switch actor.Role {
	case domain.RoleOwner:
	case domain.RoleManager:
		filter.ParentID = &actor.ID
	default:
		return []domain.User{*actor}, nil
	}
	users, err := s.users.List(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return users, nil
}
