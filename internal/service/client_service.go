package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/elegantflow/crm-service/internal/domain"
	"github.com/elegantflow/crm-service/internal/events"
	"github.com/elegantflow/crm-service/internal/repository"
	apperrors "github.com/elegantflow/crm-service/pkg/util/errorutil"
)

// ClientService manages clients, their feedback log and projects.
type ClientService struct {
	clients    repository.ClientRepository
	projects   repository.ProjectRepository
	branches   repository.BranchRepository
	dir        directory
	engine     *AssignmentEngine
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// ClientDependencies bundles collaborators.
type ClientDependencies struct {
	ClientRepo       repository.ClientRepository
	ProjectRepo      repository.ProjectRepository
	BranchRepo       repository.BranchRepository
	UserRepo         repository.UserRepository
	OrganizationRepo repository.OrganizationRepository
	Engine           *AssignmentEngine
	Dispatcher       events.Dispatcher
	Logger           *zap.Logger
}

// NewClientService creates the service.
func NewClientService(deps ClientDependencies) *ClientService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClientService{
		clients:    deps.ClientRepo,
		projects:   deps.ProjectRepo,
		branches:   deps.BranchRepo,
		dir:        directory{users: deps.UserRepo, orgs: deps.OrganizationRepo},
		engine:     deps.Engine,
		dispatcher: deps.Dispatcher,
		logger:     logger,
	}
}

// CreateClientInput carries manual client creation fields.
type CreateClientInput struct {
	Name       string
	Email      string
	Phone      string
	Address    string
	Type       domain.ClientType
	Industry   string
	Notes      string
	BranchID   *string
	AssignedTo *string
}

// CreateProjectInput carries project fields.
type CreateProjectInput struct {
	Name        string
	Description string
	Budget      float64
	Deadline    *time.Time
	AssignedTo  *string
}

// ClientStats summarizes the clients an actor can see.
type ClientStats struct {
	Total  int
	Active int
	Latest []domain.Client
}

// CreateClient validates, assigns and stores a client.
func (s *ClientService) CreateClient(ctx context.Context, actor *domain.User, input CreateClientInput) (*domain.Client, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.TrimSpace(input.Email)
	input.Phone = strings.TrimSpace(input.Phone)
	missing := []string{}
	if input.Name == "" {
		missing = append(missing, "name")
	}
	if input.Email == "" {
		missing = append(missing, "email")
	}
	if input.Phone == "" {
		missing = append(missing, "phone")
	}
	if len(missing) > 0 {
		return nil, apperrors.NewValidationError("missing required fields", map[string]any{"fields": missing})
	}
	if input.Type == "" {
		input.Type = domain.ClientTypeIndividual
	}
	if input.Type != domain.ClientTypeIndividual && input.Type != domain.ClientTypeOrganization {
		return nil, apperrors.NewValidationError("invalid client type", map[string]any{"type": input.Type})
	}
	if input.BranchID != nil && *input.BranchID != "" {
		branch, err := s.branches.GetByID(ctx, *input.BranchID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperrors.NewNotFound("branch", map[string]any{"branch_id": *input.BranchID})
			}
			return nil, apperrors.MapError(err)
		}
		if branch.OrganizationID != actor.OrganizationID {
			return nil, apperrors.NewForbidden("branch belongs to another organization")
		}
	} else {
		input.BranchID = nil
	}

	if _, err := s.clients.FindByIdentity(ctx, actor.OrganizationID, input.Name, input.Email, input.Phone); err == nil {
		return nil, apperrors.NewConflict("client already exists", map[string]any{"email": input.Email, "phone": input.Phone})
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.MapError(err)
	}

	assignee, err := s.engine.Resolve(ctx, AssignmentRequest{
		Kind:           WorkloadClients,
		Actor:          actor,
		OrganizationID: actor.OrganizationID,
		BranchID:       input.BranchID,
		Explicit:       input.AssignedTo,
	})
	if err != nil {
		return nil, err
	}

	client := &domain.Client{
		Name:           input.Name,
		Email:          input.Email,
		Phone:          input.Phone,
		Address:        input.Address,
		Type:           input.Type,
		Status:         domain.ClientStatusActive,
		Industry:       input.Industry,
		Notes:          input.Notes,
		OrganizationID: actor.OrganizationID,
		BranchID:       input.BranchID,
		AssignedTo:     assignee,
		CreatedBy:      actor.ID,
		UpdatedBy:      actor.ID,
	}
	if err := s.clients.Create(ctx, client); err != nil {
		return nil, apperrors.MapError(err)
	}

	publishEvent(ctx, s.dispatcher, events.EventClientCreated, actor, client.OrganizationID, events.ClientPayload{
		ClientID:   client.ID,
		ClientName: client.Name,
		AssigneeID: client.AssignedTo,
	})
	return client, nil
}

// GetClient returns a client with its feedback and project references.
func (s *ClientService) GetClient(ctx context.Context, actor *domain.User, id string) (*domain.Client, error) {
	return s.visibleClient(ctx, actor, id)
}

// ListClients returns the clients actor may see.
func (s *ClientService) ListClients(ctx context.Context, actor *domain.User, status *domain.ClientStatus, limit, offset int) ([]domain.Client, error) {
	filter, err := s.scopedFilter(ctx, actor)
	if err != nil {
		return nil, err
	}
	filter.Status = status
	filter.Limit = limit
	filter.Offset = offset
	clients, err := s.clients.List(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return clients, nil
}

// Stats counts visible clients and returns the most recent ones.
func (s *ClientService) Stats(ctx context.Context, actor *domain.User) (*ClientStats, error) {
	filter, err := s.scopedFilter(ctx, actor)
	if err != nil {
		return nil, err
	}
	total, err := s.clients.Count(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	active := domain.ClientStatusActive
	activeFilter := filter
	activeFilter.Status = &active
	activeCount, err := s.clients.Count(ctx, activeFilter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	latestFilter := filter
	latestFilter.NewestFirst = true
	latestFilter.Limit = 5
	latest, err := s.clients.List(ctx, latestFilter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return &ClientStats{Total: total, Active: activeCount, Latest: latest}, nil
}

// UpdateStatus toggles a client between active and inactive.
func (s *ClientService) UpdateStatus(ctx context.Context, actor *domain.User, id string, status domain.ClientStatus) (*domain.Client, error) {
	if status != domain.ClientStatusActive && status != domain.ClientStatusInactive {
		return nil, apperrors.NewValidationError("invalid client status", map[string]any{"status": status})
	}
	client, err := s.visibleClient(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	client.Status = status
	client.UpdatedBy = actor.ID
	if err := s.clients.Update(ctx, client); err != nil {
		return nil, apperrors.MapError(err)
	}
	return client, nil
}

// DeleteClient removes a client. Only the organization owner may delete.
func (s *ClientService) DeleteClient(ctx context.Context, actor *domain.User, id string) error {
	if actor.Role != domain.RoleOwner {
		return apperrors.NewForbidden("only the organization owner may delete clients")
	}
	client, err := s.visibleClient(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.clients.Delete(ctx, client.ID); err != nil {
		return apperrors.MapError(err)
	}
	publishEvent(ctx, s.dispatcher, events.EventClientDeleted, actor, client.OrganizationID, events.ClientPayload{
		ClientID:   client.ID,
		ClientName: client.Name,
		AssigneeID: client.AssignedTo,
	})
	return nil
}

// AddFeedback appends an unseen entry to the client's feedback log.
func (s *ClientService) AddFeedback(ctx context.Context, actor *domain.User, clientID, text string) (*domain.Feedback, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.NewValidationError("feedback text required", nil)
	}
	client, err := s.visibleClient(ctx, actor, clientID)
	if err != nil {
		return nil, err
	}
	feedback := &domain.Feedback{
		ID:       uuid.NewString(),
		ClientID: client.ID,
		Text:     text,
		AuthorID: actor.ID,
	}
	if err := s.clients.AppendFeedback(ctx, feedback); err != nil {
		return nil, apperrors.MapError(err)
	}
	publishEvent(ctx, s.dispatcher, events.EventClientFeedbackAdded, actor, client.OrganizationID, events.FeedbackAddedPayload{
		ClientID:   client.ID,
		ClientName: client.Name,
		AssigneeID: client.AssignedTo,
		FeedbackID: feedback.ID,
		AuthorID:   actor.ID,
	})
	return feedback, nil
}

// EditFeedback rewrites an entry. Only its author may edit it.
func (s *ClientService) EditFeedback(ctx context.Context, actor *domain.User, clientID, feedbackID, text string) (*domain.Feedback, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.NewValidationError("feedback text required", nil)
	}
	feedback, err := s.feedbackEntry(ctx, actor, clientID, feedbackID)
	if err != nil {
		return nil, err
	}
	if feedback.AuthorID != actor.ID {
		return nil, apperrors.NewForbidden("only the author may edit feedback")
	}
	feedback.Text = text
	feedback.Edited = true
	feedback.Seen = false
	if err := s.clients.UpdateFeedback(ctx, feedback); err != nil {
		return nil, apperrors.MapError(err)
	}
	return feedback, nil
}

// RemoveFeedback deletes an entry. Its author or the owner may remove it.
func (s *ClientService) RemoveFeedback(ctx context.Context, actor *domain.User, clientID, feedbackID string) error {
	feedback, err := s.feedbackEntry(ctx, actor, clientID, feedbackID)
	if err != nil {
		return err
	}
	if feedback.AuthorID != actor.ID && actor.Role != domain.RoleOwner {
		return apperrors.NewForbidden("only the author may remove feedback")
	}
	return apperrors.MapError(s.clients.DeleteFeedback(ctx, clientID, feedbackID))
}

// MarkFeedbackSeen flags an entry as seen.
func (s *ClientService) MarkFeedbackSeen(ctx context.Context, actor *domain.User, clientID, feedbackID string) (*domain.Feedback, error) {
	feedback, err := s.feedbackEntry(ctx, actor, clientID, feedbackID)
	if err != nil {
		return nil, err
	}
	if feedback.Seen {
		return feedback, nil
	}
	feedback.Seen = true
	if err := s.clients.UpdateFeedback(ctx, feedback); err != nil {
		return nil, apperrors.MapError(err)
	}
	return feedback, nil
}

// CreateProject adds a project to a client.
func (s *ClientService) CreateProject(ctx context.Context, actor *domain.User, clientID string, input CreateProjectInput) (*domain.Project, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return nil, apperrors.NewValidationError("project name required", nil)
	}
	if input.Budget < 0 {
		return nil, apperrors.NewValidationError("budget must not be negative", map[string]any{"budget": input.Budget})
	}
	client, err := s.visibleClient(ctx, actor, clientID)
	if err != nil {
		return nil, err
	}
	if input.AssignedTo != nil && *input.AssignedTo != "" {
		input.AssignedTo, err = s.engine.Resolve(ctx, AssignmentRequest{
			Kind:           WorkloadProjects,
			Actor:          actor,
			OrganizationID: client.OrganizationID,
			Explicit:       input.AssignedTo,
		})
		if err != nil {
			return nil, err
		}
	} else {
		input.AssignedTo = nil
	}
	project := &domain.Project{
		Name:           input.Name,
		Description:    input.Description,
		Budget:         input.Budget,
		Deadline:       input.Deadline,
		Status:         domain.ProjectStatusActive,
		OrganizationID: client.OrganizationID,
		ClientID:       client.ID,
		AssignedTo:     input.AssignedTo,
		CreatedBy:      actor.ID,
	}
	if project.AssignedTo == nil {
		project.AssignedTo = client.AssignedTo
	}
	if err := s.projects.Create(ctx, project); err != nil {
		return nil, apperrors.MapError(err)
	}
	return project, nil
}

// ListProjects returns a client's projects.
func (s *ClientService) ListProjects(ctx context.Context, actor *domain.User, clientID string) ([]domain.Project, error) {
	client, err := s.visibleClient(ctx, actor, clientID)
	if err != nil {
		return nil, err
	}
	projects, err := s.projects.ListByClient(ctx, client.ID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return projects, nil
}

func (s *ClientService) feedbackEntry(ctx context.Context, actor *domain.User, clientID, feedbackID string) (*domain.Feedback, error) {
	client, err := s.visibleClient(ctx, actor, clientID)
	if err != nil {
		return nil, err
	}
	for i := range client.Feedback {
		if client.Feedback[i].ID == feedbackID {
			return &client.Feedback[i], nil
		}
	}
	return nil, apperrors.NewNotFound("feedback", map[string]any{"feedback_id": feedbackID})
}

func (s *ClientService) visibleClient(ctx context.Context, actor *domain.User, id string) (*domain.Client, error) {
	client, err := s.clients.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("client", map[string]any{"client_id": id})
		}
		return nil, apperrors.MapError(err)
	}
	ok, err := s.dir.canSee(ctx, actor, client.OrganizationID, client.AssignedTo)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if !ok {
		return nil, apperrors.NewForbidden("client not visible to user")
	}
	return client, nil
}

func (s *ClientService) scopedFilter(ctx context.Context, actor *domain.User) (repository.ClientFilter, error) {
	ids, all, err := s.dir.visibleAssignees(ctx, actor)
	if err != nil {
		return repository.ClientFilter{}, apperrors.MapError(err)
	}
	filter := repository.ClientFilter{OrganizationID: &actor.OrganizationID}
	if !all {
		filter.AssigneeIDs = ids
	}
	return filter, nil
}
