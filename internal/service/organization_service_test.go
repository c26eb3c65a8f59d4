package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elegantflow/crm-service/internal/domain"
	apperrors "github.com/elegantflow/crm-service/pkg/util/errorutil"
)

func TestNewBranches(t *testing.T) {
	existing := []domain.Branch{{Name: "HQ"}}
	got := newBranches(existing, []BranchInput{
		{Name: "hq"},
		{Name: " Harbor ", Location: "Pier 4"},
		{Name: "HARBOR"},
		{Name: ""},
		{Name: "Uptown"},
	})

	require.Len(t, got, 2)
	assert.Equal(t, "Harbor", got[0].Name)
	assert.Equal(t, "Pier 4", got[0].Location)
	assert.Equal(t, "Uptown", got[1].Name)
}

func TestOrganizationUpdate(t *testing.T) {
	ctx := context.Background()
	w := newWorld()
	h := newHierarchy(w)

	_, err := w.orgSvc.Update(ctx, h.manager, UpdateOrganizationInput{Industry: "Retail"})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	view, err := w.orgSvc.Update(ctx, h.owner, UpdateOrganizationInput{
		Industry: "Retail",
		Branches: []BranchInput{{Name: "hq"}, {Name: "Harbor"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Acme", view.Organization.Name)
	assert.Equal(t, "Retail", view.Organization.Industry)
	assert.Len(t, view.Branches, 2)

	mine, err := w.orgSvc.GetByOwner(ctx, h.owner.ID)
	require.NoError(t, err)
	assert.Equal(t, w.org.ID, mine.Organization.ID)

	_, err = w.orgSvc.GetByOwner(ctx, h.manager.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestDeleteBranch(t *testing.T) {
	ctx := context.Background()
	w := newWorld()
	h := newHierarchy(w)
	harbor := w.addBranch("Harbor")

	err := w.orgSvc.DeleteBranch(ctx, h.manager, harbor.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	require.NoError(t, w.orgSvc.DeleteBranch(ctx, h.owner, harbor.ID))
	err = w.orgSvc.DeleteBranch(ctx, h.owner, harbor.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	branches, err := w.orgSvc.ListBranches(ctx, h.employee)
	require.NoError(t, err)
	assert.Len(t, branches, 1)
}

func TestTeamQueries(t *testing.T) {
	ctx := context.Background()
	w := newWorld()
	h := newHierarchy(w)

	managers, err := w.teamSvc.ListManagers(ctx, h.employee)
	require.NoError(t, err)
	require.Len(t, managers, 1)
	assert.Equal(t, h.manager.ID, managers[0].ID)

	ownerTeam, err := w.teamSvc.MyTeam(ctx, h.owner)
	require.NoError(t, err)
	assert.Len(t, ownerTeam, 4)

	managerTeam, err := w.teamSvc.MyTeam(ctx, h.manager)
	require.NoError(t, err)
	require.Len(t, managerTeam, 1)
	assert.Equal(t, h.employee.ID, managerTeam[0].ID)

	employeeTeam, err := w.teamSvc.MyTeam(ctx, h.employee)
	require.NoError(t, err)
	require.Len(t, employeeTeam, 1)
	assert.Equal(t, h.employee.ID, employeeTeam[0].ID)
}
