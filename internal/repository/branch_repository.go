package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/elegantflow/crm-service/internal/domain"
)

// BranchRepository persists organization branches.
type BranchRepository interface {
	Create(ctx context.Context, branch *domain.Branch) error
	GetByID(ctx context.Context, id string) (*domain.Branch, error)
	ListByOrganization(ctx context.Context, orgID string) ([]domain.Branch, error)
	Delete(ctx context.Context, orgID, id string) error
}

type branchRepository struct {
	pool *pgxpool.Pool
}

// NewBranchRepository instantiates the repository.
func NewBranchRepository(pool *pgxpool.Pool) BranchRepository {
	return &branchRepository{pool: pool}
}

func (r *branchRepository) Create(ctx context.Context, branch *domain.Branch) error {
	const query = `
        INSERT INTO branches (organization_id, name, location, contact, email, manager_id)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		branch.OrganizationID,
		branch.Name,
		branch.Location,
		branch.Contact,
		branch.Email,
		branch.ManagerID,
	).Scan(&branch.ID, &branch.CreatedAt)
}

func (r *branchRepository) GetByID(ctx context.Context, id string) (*domain.Branch, error) {
	const query = `
        SELECT id, organization_id, name, location, contact, email, manager_id, created_at
        FROM branches WHERE id=$1`
	return scanBranch(r.pool.QueryRow(ctx, query, id))
}

func (r *branchRepository) ListByOrganization(ctx context.Context, orgID string) ([]domain.Branch, error) {
	const query = `
        SELECT id, organization_id, name, location, contact, email, manager_id, created_at
        FROM branches WHERE organization_id=$1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Branch
	for rows.Next() {
		branch, err := scanBranch(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *branch)
	}
	return result, rows.Err()
}

func (r *branchRepository) Delete(ctx context.Context, orgID, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM branches WHERE id=$1 AND organization_id=$2`, id, orgID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanBranch(row pgx.Row) (*domain.Branch, error) {
	var branch domain.Branch
	if err := row.Scan(
		&branch.ID,
		&branch.OrganizationID,
		&branch.Name,
		&branch.Location,
		&branch.Contact,
		&branch.Email,
		&branch.ManagerID,
		&branch.CreatedAt,
	); err != nil {
		return nil, noRowsOnMalformedID(err)
	}
	return &branch, nil
}
