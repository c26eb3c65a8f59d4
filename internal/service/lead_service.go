package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/elegantflow/crm-service/internal/domain"
	"github.com/elegantflow/crm-service/internal/events"
	"github.com/elegantflow/crm-service/internal/observability"
	"github.com/elegantflow/crm-service/internal/repository"
	apperrors "github.com/elegantflow/crm-service/pkg/util/errorutil"
)

// LeadService implements the lead lifecycle.
type LeadService struct {
	leads      repository.LeadRepository
	clients    repository.ClientRepository
	branches   repository.BranchRepository
	dir        directory
	engine     *AssignmentEngine
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// LeadDependencies bundles collaborators.
type LeadDependencies struct {
	LeadRepo         repository.LeadRepository
	ClientRepo       repository.ClientRepository
	BranchRepo       repository.BranchRepository
	UserRepo         repository.UserRepository
	OrganizationRepo repository.OrganizationRepository
	Engine           *AssignmentEngine
	Dispatcher       events.Dispatcher
	Metrics          *observability.Metrics
	Logger           *zap.Logger
}

// NewLeadService creates the service.
func NewLeadService(deps LeadDependencies) *LeadService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LeadService{
		leads:      deps.LeadRepo,
		clients:    deps.ClientRepo,
		branches:   deps.BranchRepo,
		dir:        directory{users: deps.UserRepo, orgs: deps.OrganizationRepo},
		engine:     deps.Engine,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
		now:        time.Now,
	}
}

// CreateLeadInput carries the fields accepted on lead creation.
type CreateLeadInput struct {
	Name                  string
	Type                  domain.ClientType
	Email                 string
	Phone                 string
	Address               string
	BranchID              string
	Source                domain.LeadSource
	Notes                 string
	AssignedTo            *string
	ScheduledFollowupDate *time.Time
}

// TransitionResult reports what a status change request did.
type TransitionResult struct {
	Lead *domain.Lead
	// Applied is false when the request was turned into an approval request.
	Applied bool
	// Client is the client linked to the lead when it became active.
	Client        *domain.Client
	ClientCreated bool
}

// CreateLead validates input, assigns the lead and announces it.
func (s *LeadService) CreateLead(ctx context.Context, actor *domain.User, input CreateLeadInput) (*domain.Lead, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
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
	if input.BranchID == "" {
		missing = append(missing, "branch_id")
	}
	if len(missing) > 0 {
		return nil, apperrors.NewValidationError("missing required fields", map[string]any{"fields": missing})
	}
	if !input.Source.Valid() {
		return nil, apperrors.NewValidationError("invalid lead source", map[string]any{"source": input.Source})
	}
	if input.Type == "" {
		input.Type = domain.ClientTypeIndividual
	}
	if input.Type != domain.ClientTypeIndividual && input.Type != domain.ClientTypeOrganization {
		return nil, apperrors.NewValidationError("invalid lead type", map[string]any{"type": input.Type})
	}

	branch, err := s.branches.GetByID(ctx, input.BranchID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("branch", map[string]any{"branch_id": input.BranchID})
		}
		return nil, apperrors.MapError(err)
	}
	if branch.OrganizationID != actor.OrganizationID {
		return nil, apperrors.NewForbidden("branch belongs to another organization")
	}

	assignee, err := s.engine.Resolve(ctx, AssignmentRequest{
		Kind:           WorkloadLeads,
		Actor:          actor,
		OrganizationID: actor.OrganizationID,
		BranchID:       &branch.ID,
		Explicit:       input.AssignedTo,
	})
	if err != nil {
		return nil, err
	}

	lead := &domain.Lead{
		Name:                  input.Name,
		Type:                  input.Type,
		Email:                 input.Email,
		Phone:                 input.Phone,
		Address:               input.Address,
		OrganizationID:        actor.OrganizationID,
		BranchID:              branch.ID,
		Source:                input.Source,
		AssignedTo:            assignee,
		Approval:              domain.ApprovalPending,
		Status:                domain.LeadStatusPending,
		Notes:                 input.Notes,
		History:               domain.LeadHistory{CreatedBy: actor.ID, Reason: domain.DefaultTransitionReason},
		ScheduledFollowupDate: input.ScheduledFollowupDate,
	}
	if err := s.leads.Create(ctx, lead); err != nil {
		return nil, apperrors.MapError(err)
	}

	publishEvent(ctx, s.dispatcher, events.EventLeadCreated, actor, lead.OrganizationID, events.LeadCreatedPayload{
		LeadID:     lead.ID,
		LeadName:   lead.Name,
		AssigneeID: lead.AssignedTo,
	})
	return lead, nil
}

// GetLead returns a lead visible to actor.
func (s *LeadService) GetLead(ctx context.Context, actor *domain.User, id string) (*domain.Lead, error) {
	lead, err := s.loadLead(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.ensureVisible(ctx, actor, lead); err != nil {
		return nil, err
	}
	return lead, nil
}

// ListLeads returns the leads actor may see.
func (s *LeadService) ListLeads(ctx context.Context, actor *domain.User, status *domain.LeadStatus, limit, offset int) ([]domain.Lead, error) {
	ids, all, err := s.dir.visibleAssignees(ctx, actor)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	filter := repository.LeadFilter{OrganizationID: &actor.OrganizationID, Limit: limit, Offset: offset}
	if !all {
		filter.AssigneeIDs = ids
	}
	if status != nil {
		if !status.Valid() {
			return nil, apperrors.NewValidationError("invalid lead status", map[string]any{"status": *status})
		}
		filter.Statuses = []domain.LeadStatus{*status}
	}
	leads, err := s.leads.List(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return leads, nil
}

// DeleteLead removes a lead. Owners and managers only.
func (s *LeadService) DeleteLead(ctx context.Context, actor *domain.User, id string) error {
	if !actor.Role.IsAdmin() {
		return apperrors.NewForbidden("only owners and managers may delete leads")
	}
	lead, err := s.loadLead(ctx, id)
	if err != nil {
		return err
	}
	if err := s.ensureVisible(ctx, actor, lead); err != nil {
		return err
	}
	return apperrors.MapError(s.leads.Delete(ctx, lead.ID))
}

type transitionDecision int

const (
	applyTransition transitionDecision = iota
	requestApproval
)

// decideTransition applies the lifecycle rules. closed is terminal; an
// employee asking for inactive gets an approval request instead.
func decideTransition(role domain.Role, current, target domain.LeadStatus) (transitionDecision, error) {
	if !target.Valid() {
		return 0, apperrors.NewValidationError("invalid lead status", map[string]any{"status": target})
	}
	if current == domain.LeadStatusClosed {
		return 0, apperrors.NewConflict("lead is closed", map[string]any{"status": current})
	}
	if target == domain.LeadStatusInactive && !role.IsAdmin() {
		return requestApproval, nil
	}
	return applyTransition, nil
}

// ChangeStatus moves a lead to target on behalf of actorID.
func (s *LeadService) ChangeStatus(ctx context.Context, actorID, leadID string, target domain.LeadStatus, reason string) (*TransitionResult, error) {
	lead, err := s.loadLead(ctx, leadID)
	if err != nil {
		return nil, err
	}
	actor, err := s.dir.user(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureVisible(ctx, actor, lead); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = domain.DefaultTransitionReason
	}

	decision, err := decideTransition(actor.Role, lead.Status, target)
	if err != nil {
		s.metrics.RecordTransition(string(target), "rejected")
		return nil, err
	}

	if decision == requestApproval {
		if !lead.InactiveRequested || lead.Approval != domain.ApprovalPending {
			lead.InactiveRequested = true
			lead.Approval = domain.ApprovalPending
			if err := s.leads.Update(ctx, lead); err != nil {
				return nil, apperrors.MapError(err)
			}
		}
		s.metrics.RecordTransition(string(target), "approval_requested")
		publishEvent(ctx, s.dispatcher, events.EventLeadInactiveRequested, actor, lead.OrganizationID, events.LeadInactiveRequestedPayload{
			LeadID:     lead.ID,
			LeadName:   lead.Name,
			AssigneeID: lead.AssignedTo,
			Reason:     reason,
		})
		return &TransitionResult{Lead: lead}, nil
	}

	oldStatus, oldHistory := lead.Status, lead.History
	if err := s.applyTransition(ctx, actor, lead, target, reason); err != nil {
		return nil, err
	}

	result := &TransitionResult{Lead: lead, Applied: true}
	if target == domain.LeadStatusActive {
		client, created, err := s.ensureClient(ctx, actor, lead)
		if err != nil {
			s.revertTransition(ctx, lead, oldStatus, oldHistory)
			return nil, err
		}
		result.Client = client
		result.ClientCreated = created
		if created {
			publishEvent(ctx, s.dispatcher, events.EventClientCreated, actor, client.OrganizationID, events.ClientPayload{
				ClientID:   client.ID,
				ClientName: client.Name,
				AssigneeID: client.AssignedTo,
			})
		}
	}

	payload := events.LeadStatusChangedPayload{
		LeadID:     lead.ID,
		LeadName:   lead.Name,
		AssigneeID: lead.AssignedTo,
		OldStatus:  oldStatus,
		NewStatus:  target,
		Reason:     reason,
	}
	if result.Client != nil {
		payload.ClientID = &result.Client.ID
	}
	publishEvent(ctx, s.dispatcher, events.EventLeadStatusChanged, actor, lead.OrganizationID, payload)
	return result, nil
}

// ReviewInactiveRequest approves or rejects an employee's inactive request.
func (s *LeadService) ReviewInactiveRequest(ctx context.Context, actor *domain.User, leadID string, approve bool, reason string) (*domain.Lead, error) {
	if !actor.Role.IsAdmin() {
		return nil, apperrors.NewForbidden("only owners and managers may review requests")
	}
	lead, err := s.loadLead(ctx, leadID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureVisible(ctx, actor, lead); err != nil {
		return nil, err
	}
	if lead.Status == domain.LeadStatusClosed || !lead.InactiveRequested {
		return nil, apperrors.NewConflict("no pending inactive request", map[string]any{"status": lead.Status})
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = domain.DefaultTransitionReason
	}

	lead.InactiveRequested = false
	if !approve {
		lead.Approval = domain.ApprovalRejected
		if err := s.leads.Update(ctx, lead); err != nil {
			return nil, apperrors.MapError(err)
		}
		s.metrics.RecordTransition(string(domain.LeadStatusInactive), "request_rejected")
		publishEvent(ctx, s.dispatcher, events.EventLeadApprovalReviewed, actor, lead.OrganizationID, events.LeadApprovalReviewedPayload{
			LeadID:     lead.ID,
			LeadName:   lead.Name,
			AssigneeID: lead.AssignedTo,
			Approved:   false,
			Reason:     reason,
		})
		return lead, nil
	}

	oldStatus := lead.Status
	lead.Approval = domain.ApprovalApproved
	if err := s.applyTransition(ctx, actor, lead, domain.LeadStatusInactive, reason); err != nil {
		return nil, err
	}
	publishEvent(ctx, s.dispatcher, events.EventLeadStatusChanged, actor, lead.OrganizationID, events.LeadStatusChangedPayload{
		LeadID:     lead.ID,
		LeadName:   lead.Name,
		AssigneeID: lead.AssignedTo,
		OldStatus:  oldStatus,
		NewStatus:  domain.LeadStatusInactive,
		Reason:     reason,
	})
	return lead, nil
}

func (s *LeadService) applyTransition(ctx context.Context, actor *domain.User, lead *domain.Lead, target domain.LeadStatus, reason string) error {
	now := s.now().UTC()
	lead.Status = target
	if target == domain.LeadStatusInactive {
		lead.InactiveRequested = false
	}
	lead.History.UpdatedAt = &now
	lead.History.UpdatedBy = strPtr(actor.ID)
	lead.History.Reason = reason
	if err := s.leads.Update(ctx, lead); err != nil {
		return apperrors.MapError(err)
	}
	s.metrics.RecordTransition(string(target), "applied")
	return nil
}

// revertTransition restores the lead after its follow-up work failed.
func (s *LeadService) revertTransition(ctx context.Context, lead *domain.Lead, status domain.LeadStatus, history domain.LeadHistory) {
	attempted := lead.Status
	lead.Status = status
	lead.History = history
	if err := s.leads.Update(ctx, lead); err != nil {
		s.logger.Error("revert lead transition",
			zap.String("lead_id", lead.ID),
			zap.String("status", string(status)),
			zap.Error(err))
		return
	}
	s.metrics.RecordTransition(string(attempted), "reverted")
}

// ensureClient returns the client matching the lead's identity, creating it
// through the assignment engine scoped to the lead's branch when absent.
func (s *LeadService) ensureClient(ctx context.Context, actor *domain.User, lead *domain.Lead) (*domain.Client, bool, error) {
	existing, err := s.clients.FindByIdentity(ctx, lead.OrganizationID, lead.Name, lead.Email, lead.Phone)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, apperrors.MapError(err)
	}

	branchID := lead.BranchID
	assignee, err := s.engine.Resolve(ctx, AssignmentRequest{
		Kind:           WorkloadClients,
		Actor:          actor,
		OrganizationID: lead.OrganizationID,
		BranchID:       &branchID,
	})
	if err != nil {
		return nil, false, err
	}

	client := &domain.Client{
		Name:           lead.Name,
		Email:          lead.Email,
		Phone:          lead.Phone,
		Address:        lead.Address,
		Type:           lead.Type,
		Status:         domain.ClientStatusActive,
		Notes:          lead.Notes,
		OrganizationID: lead.OrganizationID,
		BranchID:       &branchID,
		AssignedTo:     assignee,
		CreatedBy:      actor.ID,
		UpdatedBy:      actor.ID,
	}
	if client.Type == "" {
		client.Type = domain.ClientTypeIndividual
	}
	if err := s.clients.Create(ctx, client); err != nil {
		return nil, false, apperrors.MapError(err)
	}
	s.logger.Info("client created from lead",
		zap.String("lead_id", lead.ID),
		zap.String("client_id", client.ID),
		zap.String("assignee_id", derefString(assignee)))
	return client, true, nil
}

func (s *LeadService) loadLead(ctx context.Context, id string) (*domain.Lead, error) {
	lead, err := s.leads.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("lead", map[string]any{"lead_id": id})
		}
		return nil, apperrors.MapError(err)
	}
	return lead, nil
}

func (s *LeadService) ensureVisible(ctx context.Context, actor *domain.User, lead *domain.Lead) error {
	ok, err := s.dir.canSee(ctx, actor, lead.OrganizationID, lead.AssignedTo)
	if err != nil {
		return apperrors.MapError(err)
	}
	if !ok {
		return apperrors.NewForbidden("lead not visible to user")
	}
	return nil
}
