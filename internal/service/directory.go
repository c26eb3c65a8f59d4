package service

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/elegantflow/crm-service/internal/domain"
	"github.com/elegantflow/crm-service/internal/repository"
	apperrors "github.com/elegantflow/crm-service/pkg/util/errorutil"
)

// directory answers the hierarchy questions shared by services:
// who is this user, who is their manager, who owns the organization.
type directory struct {
	users repository.UserRepository
	orgs  repository.OrganizationRepository
}

func (d directory) user(ctx context.Context, id string) (*domain.User, error) {
	user, err := d.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"user_id": id})
		}
		return nil, apperrors.MapError(err)
	}
	return user, nil
}

// managerOf returns nil when user has no manager or the manager no longer exists.
func (d directory) managerOf(ctx context.Context, user *domain.User) (*domain.User, error) {
	if user == nil || user.ParentID == nil || *user.ParentID == "" {
		return nil, nil
	}
	return d.optionalUser(ctx, *user.ParentID)
}

// managerOfID resolves the manager of the user with the given id.
func (d directory) managerOfID(ctx context.Context, id *string) (*domain.User, error) {
	if id == nil {
		return nil, nil
	}
	user, err := d.optionalUser(ctx, *id)
	if err != nil || user == nil {
		return nil, err
	}
	return d.managerOf(ctx, user)
}

// ownerOf returns nil when the organization has no owner yet.
func (d directory) ownerOf(ctx context.Context, orgID string) (*domain.User, error) {
	org, err := d.orgs.GetByID(ctx, orgID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if org.OwnerID == nil {
		return nil, nil
	}
	return d.optionalUser(ctx, *org.OwnerID)
}

func (d directory) optionalUser(ctx context.Context, id string) (*domain.User, error) {
	user, err := d.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}

// visibleAssignees returns the assignee ids whose records actor may see.
// all is true for owners, who see the whole organization.
func (d directory) visibleAssignees(ctx context.Context, actor *domain.User) (ids []string, all bool, err error) {
	switch actor.Role {
	case domain.RoleOwner:
		return nil, true, nil
	case domain.RoleManager:
		reports, err := d.users.List(ctx, repository.UserFilter{
			OrganizationID: &actor.OrganizationID,
			ParentID:       &actor.ID,
		})
		if err != nil {
			return nil, false, err
		}
		ids = append(ids, actor.ID)
		for _, report := range reports {
			ids = append(ids, report.ID)
		}
		return ids, false, nil
	default:
		return []string{actor.ID}, false, nil
	}
}

// canSee reports whether actor may read a record of orgID assigned to assignee.
func (d directory) canSee(ctx context.Context, actor *domain.User, orgID string, assignee *string) (bool, error) {
	if actor.OrganizationID != orgID {
		return false, nil
	}
	ids, all, err := d.visibleAssignees(ctx, actor)
	if err != nil || all {
		return all, err
	}
	if assignee == nil {
		return false, nil
	}
	return contains(ids, *assignee), nil
}

func contains(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func strPtr(v string) *string {
	return &v
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
