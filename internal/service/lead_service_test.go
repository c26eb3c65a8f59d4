package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elegantflow/crm-service/internal/domain"
	apperrors "github.com/elegantflow/crm-service/pkg/util/errorutil"
)

// hierarchy is owner > manager > employee, plus a second employee under the owner.
type hierarchy struct {
	owner, manager, employee, peer *domain.User
}

func newHierarchy(w *world) hierarchy {
	owner := w.addUser(domain.RoleOwner, nil, "ExponentPushToken[owner]")
	manager := w.addUser(domain.RoleManager, owner, "ExponentPushToken[manager]")
	employee := w.addUser(domain.RoleEmployee, manager, "ExponentPushToken[employee]")
	peer := w.addUser(domain.RoleEmployee, owner)
	return hierarchy{owner: owner, manager: manager, employee: employee, peer: peer}
}

func (w *world) leadFor(t *testing.T, actor, assignee *domain.User) *domain.Lead {
	t.Helper()
	lead, err := w.leadSvc.CreateLead(context.Background(), actor, CreateLeadInput{
		Name:       "Jane Roe",
		Email:      "jane@example.com",
		Phone:      "+1 555 0100",
		BranchID:   w.defaultBranch.ID,
		Source:     domain.SourceCall,
		AssignedTo: &assignee.ID,
	})
	require.NoError(t, err)
	w.resetOutbox()
	return lead
}

func TestDecideTransition(t *testing.T) {
	tests := []struct {
		name     string
		role     domain.Role
		current  domain.LeadStatus
		target   domain.LeadStatus
		want     transitionDecision
		wantCode string
	}{
		{name: "employee activates", role: domain.RoleEmployee, current: domain.LeadStatusPending, target: domain.LeadStatusActive, want: applyTransition},
		{name: "employee asks inactive", role: domain.RoleEmployee, current: domain.LeadStatusActive, target: domain.LeadStatusInactive, want: requestApproval},
		{name: "manager inactive", role: domain.RoleManager, current: domain.LeadStatusActive, target: domain.LeadStatusInactive, want: applyTransition},
		{name: "owner inactive", role: domain.RoleOwner, current: domain.LeadStatusPending, target: domain.LeadStatusInactive, want: applyTransition},
		{name: "employee closes", role: domain.RoleEmployee, current: domain.LeadStatusInProgress, target: domain.LeadStatusClosed, want: applyTransition},
		{name: "closed is terminal", role: domain.RoleOwner, current: domain.LeadStatusClosed, target: domain.LeadStatusActive, wantCode: apperrors.CodeConflict},
		{name: "unknown target", role: domain.RoleOwner, current: domain.LeadStatusPending, target: "won", wantCode: apperrors.CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decideTransition(tt.role, tt.current, tt.target)
			if tt.wantCode != "" {
				assert.True(t, apperrors.HasCode(err, tt.wantCode), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCreateLeadValidation(t *testing.T) {
	ctx := context.Background()
	w := newWorld()
	h := newHierarchy(w)

	_, err := w.leadSvc.CreateLead(ctx, h.owner, CreateLeadInput{Name: "x", Source: domain.SourceCall})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	_, err = w.leadSvc.CreateLead(ctx, h.owner, CreateLeadInput{
		Name: "x", Email: "x@example.com", Phone: "1", BranchID: w.defaultBranch.ID, Source: "billboard",
	})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	foreign := &domain.Branch{OrganizationID: "another-org", Name: "Elsewhere"}
	require.NoError(t, w.branches.Create(ctx, foreign))
	_, err = w.leadSvc.CreateLead(ctx, h.owner, CreateLeadInput{
		Name: "x", Email: "x@example.com", Phone: "1", BranchID: foreign.ID, Source: domain.SourceCall,
	})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
}

func TestCreateLeadAutoAssignsAndStartsPending(t *testing.T) {
	w := newWorld()
	h := newHierarchy(w)

	lead, err := w.leadSvc.CreateLead(context.Background(), h.owner, CreateLeadInput{
		Name:     "Jane Roe",
		Email:    "jane@example.com",
		Phone:    "+1 555 0100",
		BranchID: w.defaultBranch.ID,
		Source:   domain.SourceWebsite,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.LeadStatusPending, lead.Status)
	assert.Equal(t, domain.ApprovalPending, lead.Approval)
	assert.Equal(t, h.owner.ID, lead.History.CreatedBy)
	require.NotNil(t, lead.AssignedTo)
	assert.Equal(t, h.employee.ID, *lead.AssignedTo)
	assert.Equal(t, 1, w.recordsTo()[h.employee.ID])
}

func TestEmployeeInactiveRequestNeedsApproval(t *testing.T) {
	ctx := context.Background()
	w := newWorld()
	h := newHierarchy(w)
	lead := w.leadFor(t, h.owner, h.employee)

	result, err := w.leadSvc.ChangeStatus(ctx, h.employee.ID, lead.ID, domain.LeadStatusInactive, "no budget")
	require.NoError(t, err)
	assert.False(t, result.Applied)

	stored, err := w.leads.GetByID(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LeadStatusPending, stored.Status)
	assert.Equal(t, domain.ApprovalPending, stored.Approval)
	assert.True(t, stored.InactiveRequested)
	assert.Nil(t, stored.History.UpdatedBy)

	records := w.notifications.all()
	require.Len(t, records, 1)
	assert.Equal(t, h.employee.ID, records[0].From)
	assert.Equal(t, h.manager.ID, records[0].To)
	assert.Equal(t, []string{"ExponentPushToken[manager]"}, w.notifier.tokens())
}

func TestManagerInactiveAppliesImmediately(t *testing.T) {
	ctx := context.Background()
	w := newWorld()
	h := newHierarchy(w)
	lead := w.leadFor(t, h.owner, h.employee)
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	w.leadSvc.now = func() time.Time { return fixed }

	result, err := w.leadSvc.ChangeStatus(ctx, h.manager.ID, lead.ID, domain.LeadStatusInactive, "")
	require.NoError(t, err)
	assert.True(t, result.Applied)

	stored, err := w.leads.GetByID(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LeadStatusInactive, stored.Status)
	require.NotNil(t, stored.History.UpdatedBy)
	assert.Equal(t, h.manager.ID, *stored.History.UpdatedBy)
	require.NotNil(t, stored.History.UpdatedAt)
	assert.Equal(t, fixed, *stored.History.UpdatedAt)
	assert.Equal(t, domain.DefaultTransitionReason, stored.History.Reason)

	counts := w.recordsTo()
	assert.Equal(t, 1, counts[h.employee.ID])
	assert.Equal(t, 1, counts[h.owner.ID])
	assert.Len(t, counts, 2)
}

func TestActiveTransitionCreatesClientOnce(t *testing.T) {
	ctx := context.Background()
	w := newWorld()
	h := newHierarchy(w)
	lead := w.leadFor(t, h.owner, h.employee)

	first, err := w.leadSvc.ChangeStatus(ctx, h.employee.ID, lead.ID, domain.LeadStatusActive, "signed")
	require.NoError(t, err)
	assert.True(t, first.Applied)
	assert.True(t, first.ClientCreated)
	require.NotNil(t, first.Client)
	assert.Equal(t, lead.Name, first.Client.Name)
	assert.Equal(t, domain.ClientStatusActive, first.Client.Status)
	require.NotNil(t, first.Client.BranchID)
	assert.Equal(t, lead.BranchID, *first.Client.BranchID)

	second, err := w.leadSvc.ChangeStatus(ctx, h.employee.ID, lead.ID, domain.LeadStatusActive, "again")
	require.NoError(t, err)
	assert.False(t, second.ClientCreated)
	assert.Equal(t, first.Client.ID, second.Client.ID)

	n, err := w.clients.Count(ctx, clientFilterForOrg(w.org.ID))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestEmployeeActivationNotifiesManager(t *testing.T) {
	w := newWorld()
	h := newHierarchy(w)
	lead := w.leadFor(t, h.owner, h.employee)

	result, err := w.leadSvc.ChangeStatus(context.Background(), h.employee.ID, lead.ID, domain.LeadStatusActive, "")
	require.NoError(t, err)
	require.True(t, result.ClientCreated)
	require.NotNil(t, result.Client.AssignedTo)
	assert.Equal(t, h.employee.ID, *result.Client.AssignedTo)

	leadRecords := w.recordsOfType(domain.NotificationTypeLead)
	require.Len(t, leadRecords, 1)
	assert.Equal(t, h.employee.ID, leadRecords[0].From)
	assert.Equal(t, h.manager.ID, leadRecords[0].To)

	// the new client landed on the actor, so the manager is the sender
	clientRecords := w.recordsOfType(domain.NotificationTypeClient)
	require.Len(t, clientRecords, 1)
	assert.Equal(t, h.manager.ID, clientRecords[0].From)
	assert.Equal(t, h.employee.ID, clientRecords[0].To)

	assert.Equal(t, []string{
		"ExponentPushToken[employee]",
		"ExponentPushToken[manager]",
		"ExponentPushToken[manager]",
		"ExponentPushToken[owner]",
	}, w.notifier.tokens())
}

func TestOwnerActivationNotifiesClientAssignee(t *testing.T) {
	ctx := context.Background()
	w := newWorld()
	h := newHierarchy(w)
	lead := w.leadFor(t, h.owner, h.employee)

	result, err := w.leadSvc.ChangeStatus(ctx, h.owner.ID, lead.ID, domain.LeadStatusActive, "won")
	require.NoError(t, err)
	require.True(t, result.ClientCreated)
	require.NotNil(t, result.Client.AssignedTo)
	assignee := *result.Client.AssignedTo

	clientRecords := w.recordsOfType(domain.NotificationTypeClient)
	require.Len(t, clientRecords, 1)
	assert.Equal(t, h.owner.ID, clientRecords[0].From)
	assert.Equal(t, assignee, clientRecords[0].To)

	// an existing client is reused without a second client notification
	w.resetOutbox()
	again, err := w.leadSvc.ChangeStatus(ctx, h.owner.ID, lead.ID, domain.LeadStatusActive, "")
	require.NoError(t, err)
	assert.False(t, again.ClientCreated)
	assert.Empty(t, w.recordsOfType(domain.NotificationTypeClient))
}

func TestActivationRollsBackWhenClientCreationFails(t *testing.T) {
	ctx := context.Background()
	w := newWorld()
	h := newHierarchy(w)
	lead := w.leadFor(t, h.owner, h.employee)
	w.clients.createErr = errors.New("insert client: connection reset")

	_, err := w.leadSvc.ChangeStatus(ctx, h.employee.ID, lead.ID, domain.LeadStatusActive, "signed")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInternal))

	stored, err := w.leads.GetByID(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LeadStatusPending, stored.Status)
	assert.Nil(t, stored.History.UpdatedAt)
	assert.Empty(t, w.notifications.all())

	n, err := w.clients.Count(ctx, clientFilterForOrg(w.org.ID))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestClosedLeadRejectsChanges(t *testing.T) {
	ctx := context.Background()
	w := newWorld()
	h := newHierarchy(w)
	lead := w.leadFor(t, h.owner, h.employee)

	_, err := w.leadSvc.ChangeStatus(ctx, h.employee.ID, lead.ID, domain.LeadStatusClosed, "lost")
	require.NoError(t, err)

	_, err = w.leadSvc.ChangeStatus(ctx, h.owner.ID, lead.ID, domain.LeadStatusActive, "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))

	_, err = w.leadSvc.ReviewInactiveRequest(ctx, h.manager, lead.ID, true, "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))
}

func TestChangeStatusNotFound(t *testing.T) {
	ctx := context.Background()
	w := newWorld()
	h := newHierarchy(w)
	lead := w.leadFor(t, h.owner, h.employee)

	_, err := w.leadSvc.ChangeStatus(ctx, h.owner.ID, "missing", domain.LeadStatusActive, "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	_, err = w.leadSvc.ChangeStatus(ctx, "ghost", lead.ID, domain.LeadStatusActive, "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestChangeStatusOutsideVisibility(t *testing.T) {
	w := newWorld()
	h := newHierarchy(w)
	lead := w.leadFor(t, h.owner, h.employee)

	_, err := w.leadSvc.ChangeStatus(context.Background(), h.peer.ID, lead.ID, domain.LeadStatusActive, "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
}

func TestReviewInactiveRequest(t *testing.T) {
	ctx := context.Background()

	t.Run("approve", func(t *testing.T) {
		w := newWorld()
		h := newHierarchy(w)
		lead := w.leadFor(t, h.owner, h.employee)
		_, err := w.leadSvc.ChangeStatus(ctx, h.employee.ID, lead.ID, domain.LeadStatusInactive, "no budget")
		require.NoError(t, err)
		w.resetOutbox()

		reviewed, err := w.leadSvc.ReviewInactiveRequest(ctx, h.manager, lead.ID, true, "agreed")
		require.NoError(t, err)
		assert.Equal(t, domain.LeadStatusInactive, reviewed.Status)
		assert.Equal(t, domain.ApprovalApproved, reviewed.Approval)
		assert.False(t, reviewed.InactiveRequested)
		require.NotNil(t, reviewed.History.UpdatedBy)
		assert.Equal(t, h.manager.ID, *reviewed.History.UpdatedBy)
		assert.Equal(t, 1, w.recordsTo()[h.employee.ID])
	})

	t.Run("reject", func(t *testing.T) {
		w := newWorld()
		h := newHierarchy(w)
		lead := w.leadFor(t, h.owner, h.employee)
		_, err := w.leadSvc.ChangeStatus(ctx, h.employee.ID, lead.ID, domain.LeadStatusInactive, "no budget")
		require.NoError(t, err)
		w.resetOutbox()

		reviewed, err := w.leadSvc.ReviewInactiveRequest(ctx, h.manager, lead.ID, false, "keep trying")
		require.NoError(t, err)
		assert.Equal(t, domain.LeadStatusPending, reviewed.Status)
		assert.Equal(t, domain.ApprovalRejected, reviewed.Approval)
		assert.False(t, reviewed.InactiveRequested)

		_, err = w.leadSvc.ReviewInactiveRequest(ctx, h.manager, lead.ID, true, "")
		assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))

		records := w.notifications.all()
		require.Len(t, records, 1)
		assert.Equal(t, h.manager.ID, records[0].From)
		assert.Equal(t, h.employee.ID, records[0].To)
	})

	t.Run("nothing to review", func(t *testing.T) {
		w := newWorld()
		h := newHierarchy(w)
		lead := w.leadFor(t, h.owner, h.employee)
		_, err := w.leadSvc.ChangeStatus(ctx, h.manager.ID, lead.ID, domain.LeadStatusInProgress, "")
		require.NoError(t, err)

		_, err = w.leadSvc.ReviewInactiveRequest(ctx, h.manager, lead.ID, true, "")
		assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))

		stored, err := w.leads.GetByID(ctx, lead.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.LeadStatusInProgress, stored.Status)
	})

	t.Run("employees cannot review", func(t *testing.T) {
		w := newWorld()
		h := newHierarchy(w)
		lead := w.leadFor(t, h.owner, h.employee)

		_, err := w.leadSvc.ReviewInactiveRequest(ctx, h.employee, lead.ID, true, "")
		assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))
	})
}

func TestListLeadsScopedByRole(t *testing.T) {
	ctx := context.Background()
	w := newWorld()
	h := newHierarchy(w)
	w.leadFor(t, h.owner, h.employee)
	w.leadFor(t, h.owner, h.peer)

	all, err := w.leadSvc.ListLeads(ctx, h.owner, nil, 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	mine, err := w.leadSvc.ListLeads(ctx, h.manager, nil, 0, 0)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, h.employee.ID, *mine[0].AssignedTo)

	own, err := w.leadSvc.ListLeads(ctx, h.peer, nil, 0, 0)
	require.NoError(t, err)
	assert.Len(t, own, 1)
}

func TestDeleteLeadRequiresAdmin(t *testing.T) {
	ctx := context.Background()
	w := newWorld()
	h := newHierarchy(w)
	lead := w.leadFor(t, h.owner, h.employee)

	err := w.leadSvc.DeleteLead(ctx, h.employee, lead.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	require.NoError(t, w.leadSvc.DeleteLead(ctx, h.manager, lead.ID))
	_, err = w.leadSvc.GetLead(ctx, h.owner, lead.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}
