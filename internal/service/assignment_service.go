package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/elegantflow/crm-service/internal/domain"
	"github.com/elegantflow/crm-service/internal/observability"
	"github.com/elegantflow/crm-service/internal/repository"
	apperrors "github.com/elegantflow/crm-service/pkg/util/errorutil"
)

// WorkloadKind selects which records count towards a candidate's load.
type WorkloadKind string

const (
	WorkloadClients  WorkloadKind = "client"
	WorkloadLeads    WorkloadKind = "lead"
	WorkloadProjects WorkloadKind = "project"
)

// AssignmentRequest describes one assignment decision.
type AssignmentRequest struct {
	Kind           WorkloadKind
	Actor          *domain.User
	OrganizationID string
	// BranchID scopes the candidate pool when set.
	BranchID *string
	// Explicit is an assignee chosen by the actor; it must be in the actor's authorized pool.
	Explicit *string
}

// AssignmentEngine picks the staff member that receives a new client or lead.
type AssignmentEngine struct {
	users   repository.UserRepository
	clients repository.ClientRepository
	leads   repository.LeadRepository
	metrics *observability.Metrics
	logger  *zap.Logger
}

// AssignmentDependencies bundles repositories.
type AssignmentDependencies struct {
	UserRepo   repository.UserRepository
	ClientRepo repository.ClientRepository
	LeadRepo   repository.LeadRepository
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// NewAssignmentEngine creates the engine.
func NewAssignmentEngine(deps AssignmentDependencies) *AssignmentEngine {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentEngine{
		users:   deps.UserRepo,
		clients: deps.ClientRepo,
		leads:   deps.LeadRepo,
		metrics: deps.Metrics,
		logger:  logger,
	}
}

// Resolve returns the assignee id, or nil when there is nobody to assign to.
func (e *AssignmentEngine) Resolve(ctx context.Context, req AssignmentRequest) (*string, error) {
	if req.Explicit != nil && *req.Explicit != "" {
		return e.resolveExplicit(ctx, req)
	}

	candidates, err := e.users.List(ctx, repository.UserFilter{
		OrganizationID: &req.OrganizationID,
		BranchID:       req.BranchID,
		Roles:          []domain.Role{domain.RoleEmployee},
		Status:         userStatusPtr(domain.UserStatusActive),
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if len(candidates) == 0 {
		e.metrics.RecordAssignment(string(req.Kind), "unassigned")
		return nil, nil
	}

	counts := make(map[string]int, len(candidates))
	for _, candidate := range candidates {
		n, err := e.openWorkload(ctx, req.Kind, req.OrganizationID, candidate.ID)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		counts[candidate.ID] = n
	}

	chosen := leastLoaded(candidates, counts)
	e.metrics.RecordAssignment(string(req.Kind), "auto")
	e.logger.Debug("auto assigned",
		zap.String("kind", string(req.Kind)),
		zap.String("assignee_id", chosen.ID),
		zap.Int("open", counts[chosen.ID]),
		zap.Int("candidates", len(candidates)))
	return strPtr(chosen.ID), nil
}

func (e *AssignmentEngine) resolveExplicit(ctx context.Context, req AssignmentRequest) (*string, error) {
	assigneeID := *req.Explicit
	if req.Actor == nil {
		return nil, apperrors.NewInvalidAssignee(assigneeID)
	}
	pool, err := e.authorizedPool(ctx, req.Actor)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if !contains(pool, assigneeID) {
		e.metrics.RecordAssignment(string(req.Kind), "invalid")
		return nil, apperrors.NewInvalidAssignee(assigneeID)
	}
	e.metrics.RecordAssignment(string(req.Kind), "explicit")
	return strPtr(assigneeID), nil
}

// authorizedPool lists who actor may assign work to.
func (e *AssignmentEngine) authorizedPool(ctx context.Context, actor *domain.User) ([]string, error) {
	switch actor.Role {
	case domain.RoleOwner:
		staff, err := e.users.List(ctx, repository.UserFilter{
			OrganizationID: &actor.OrganizationID,
			Roles:          []domain.Role{domain.RoleEmployee, domain.RoleManager},
			Status:         userStatusPtr(domain.UserStatusActive),
		})
		if err != nil {
			return nil, err
		}
		return userIDs(staff), nil
	case domain.RoleManager:
		reports, err := e.users.List(ctx, repository.UserFilter{
			OrganizationID: &actor.OrganizationID,
			ParentID:       &actor.ID,
			Status:         userStatusPtr(domain.UserStatusActive),
		})
		if err != nil {
			return nil, err
		}
		return append([]string{actor.ID}, userIDs(reports)...), nil
	case domain.RoleEmployee:
		return []string{actor.ID}, nil
	}
	return nil, nil
}

func (e *AssignmentEngine) openWorkload(ctx context.Context, kind WorkloadKind, orgID, userID string) (int, error) {
	if kind == WorkloadLeads {
		return e.leads.Count(ctx, repository.LeadFilter{
			OrganizationID: &orgID,
			AssigneeID:     &userID,
			OpenOnly:       true,
		})
	}
	return e.clients.Count(ctx, repository.ClientFilter{
		OrganizationID: &orgID,
		AssigneeID:     &userID,
	})
}

// leastLoaded returns the first candidate, in pool order, holding the minimum count.
// candidates must not be empty.
func leastLoaded(candidates []domain.User, counts map[string]int) *domain.User {
	best := 0
	for i := 1; i < len(candidates); i++ {
		if counts[candidates[i].ID] < counts[candidates[best].ID] {
			best = i
		}
	}
	return &candidates[best]
}

func userIDs(users []domain.User) []string {
	ids := make([]string, 0, len(users))
	for _, user := range users {
		ids = append(ids, user.ID)
	}
	return ids
}

func userStatusPtr(v domain.UserStatus) *domain.UserStatus {
	return &v
}
