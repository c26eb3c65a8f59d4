package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/elegantflow/crm-service/internal/domain"
	"github.com/elegantflow/crm-service/internal/repository"
	apperrors "github.com/elegantflow/crm-service/pkg/util/errorutil"
)

// OrganizationService manages organizations and their branches.
type OrganizationService struct {
	orgs     repository.OrganizationRepository
	branches repository.BranchRepository
}

// NewOrganizationService creates the service.
func NewOrganizationService(orgs repository.OrganizationRepository, branches repository.BranchRepository) *OrganizationService {
	return &OrganizationService{orgs: orgs, branches: branches}
}

// BranchInput describes a branch to add.
type BranchInput struct {
	Name     string
	Location string
	Contact  string
	Email    string
}

// UpdateOrganizationInput carries editable organization fields. Empty
// fields are left unchanged.
type UpdateOrganizationInput struct {
	Name     string
	Industry string
	Website  string
	Logo     string
	Branches []BranchInput
}

// OrganizationView is an organization with its branches.
type OrganizationView struct {
	Organization *domain.Organization
	Branches     []domain.Branch
}

// List returns all organizations.
func (s *OrganizationService) List(ctx context.Context) ([]domain.Organization, error) {
	orgs, err := s.orgs.List(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return orgs, nil
}

// GetByOwner returns the organization owned by ownerID.
func (s *OrganizationService) GetByOwner(ctx context.Context, ownerID string) (*OrganizationView, error) {
	org, err := s.orgs.GetByOwner(ctx, ownerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("organization", map[string]any{"owner_id": ownerID})
		}
		return nil, apperrors.MapError(err)
	}
	return s.view(ctx, org)
}

// GetMine returns the actor's organization.
func (s *OrganizationService) GetMine(ctx context.Context, actor *domain.User) (*OrganizationView, error) {
	org, err := s.orgs.GetByID(ctx, actor.OrganizationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("organization", map[string]any{"organization_id": actor.OrganizationID})
		}
		return nil, apperrors.MapError(err)
	}
	return s.view(ctx, org)
}

// Update edits the actor's organization and adds branches whose names are
// new, compared case-insensitively. Owner only.
func (s *OrganizationService) Update(ctx context.Context, actor *domain.User, input UpdateOrganizationInput) (*OrganizationView, error) {
	if actor.Role != domain.RoleOwner {
		return nil, apperrors.NewForbidden("only the owner may edit the organization")
	}
	org, err := s.orgs.GetByID(ctx, actor.OrganizationID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if v := strings.TrimSpace(input.Name); v != "" {
		org.Name = v
	}
	if input.Industry != "" {
		org.Industry = input.Industry
	}
	if input.Website != "" {
		org.Website = input.Website
	}
	if input.Logo != "" {
		org.Logo = input.Logo
	}
	if err := s.orgs.Update(ctx, org); err != nil {
		if isUniqueViolation(err) {
			return nil, apperrors.NewConflict("organization name taken", map[string]any{"name": org.Name})
		}
		return nil, apperrors.MapError(err)
	}

	existing, err := s.branches.ListByOrganization(ctx, org.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	for _, branch := range newBranches(existing, input.Branches) {
		branch.OrganizationID = org.ID
		if err := s.branches.Create(ctx, &branch); err != nil {
			if isUniqueViolation(err) {
				continue
			}
			return nil, apperrors.MapError(err)
		}
	}
	return s.view(ctx, org)
}

// newBranches filters inputs down to names not yet present, case-insensitively.
func newBranches(existing []domain.Branch, inputs []BranchInput) []domain.Branch {
	seen := make(map[string]struct{}, len(existing)+len(inputs))
	for _, branch := range existing {
		seen[strings.ToLower(strings.TrimSpace(branch.Name))] = struct{}{}
	}
	var result []domain.Branch
	for _, input := range inputs {
		name := strings.TrimSpace(input.Name)
		key := strings.ToLower(name)
		if name == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		result = append(result, domain.Branch{
			Name:     name,
			Location: input.Location,
			Contact:  input.Contact,
			Email:    input.Email,
		})
	}
	return result
}

// ListBranches returns the actor's organization branches.
func (s *OrganizationService) ListBranches(ctx context.Context, actor *domain.User) ([]domain.Branch, error) {
	branches, err := s.branches.ListByOrganization(ctx, actor.OrganizationID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return branches, nil
}

// DeleteBranch removes a branch of the actor's organization. Owner only.
func (s *OrganizationService) DeleteBranch(ctx context.Context, actor *domain.User, branchID string) error {
	if actor.Role != domain.RoleOwner {
		return apperrors.NewForbidden("only the owner may delete branches")
	}
	if err := s.branches.Delete(ctx, actor.OrganizationID, branchID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("branch", map[string]any{"branch_id": branchID})
		}
		return apperrors.MapError(err)
	}
	return nil
}

func (s *OrganizationService) view(ctx context.Context, org *domain.Organization) (*OrganizationView, error) {
	branches, err := s.branches.ListByOrganization(ctx, org.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return &OrganizationView{Organization: org, Branches: branches}, nil
}
