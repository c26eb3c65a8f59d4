package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/elegantflow/crm-service/internal/domain"
)

// ErrOwnerAlreadySet is returned when an organization already has its owner.
var ErrOwnerAlreadySet = errors.New("organization owner already set")

// OrganizationRepository persists organizations and their explicit owner relation.
type OrganizationRepository interface {
	Create(ctx context.Context, org *domain.Organization) error
	Update(ctx context.Context, org *domain.Organization) error
	GetByID(ctx context.Context, id string) (*domain.Organization, error)
	GetByName(ctx context.Context, name string) (*domain.Organization, error)
	GetByOwner(ctx context.Context, ownerID string) (*domain.Organization, error)
	SetOwner(ctx context.Context, orgID, ownerID string) error
	List(ctx context.Context) ([]domain.Organization, error)
}

type organizationRepository struct {
	pool *pgxpool.Pool
}

// NewOrganizationRepository instantiates the repository.
func NewOrganizationRepository(pool *pgxpool.Pool) OrganizationRepository {
	return &organizationRepository{pool: pool}
}

const organizationColumns = `id, name, industry, website, logo, owner_id, created_at, updated_at`

func (r *organizationRepository) Create(ctx context.Context, org *domain.Organization) error {
	const query = `
        INSERT INTO organizations (name, industry, website, logo, owner_id)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		org.Name,
		org.Industry,
		org.Website,
		org.Logo,
		org.OwnerID,
	).Scan(&org.ID, &org.CreatedAt, &org.UpdatedAt)
}

func (r *organizationRepository) Update(ctx context.Context, org *domain.Organization) error {
	const query = `
        UPDATE organizations SET name=$1, industry=$2, website=$3, logo=$4, updated_at=NOW()
        WHERE id=$5
        RETURNING updated_at`
	return r.pool.QueryRow(ctx, query,
		org.Name,
		org.Industry,
		org.Website,
		org.Logo,
		org.ID,
	).Scan(&org.UpdatedAt)
}

func (r *organizationRepository) GetByID(ctx context.Context, id string) (*domain.Organization, error) {
	return r.fetchSingle(ctx, `SELECT `+organizationColumns+` FROM organizations WHERE id=$1`, id)
}

func (r *organizationRepository) GetByName(ctx context.Context, name string) (*domain.Organization, error) {
	return r.fetchSingle(ctx, `SELECT `+organizationColumns+` FROM organizations WHERE LOWER(name)=LOWER($1)`, name)
}

func (r *organizationRepository) GetByOwner(ctx context.Context, ownerID string) (*domain.Organization, error) {
	return r.fetchSingle(ctx, `SELECT `+organizationColumns+` FROM organizations WHERE owner_id=$1`, ownerID)
}

// SetOwner binds the owner once; a second call for the same organization fails.
func (r *organizationRepository) SetOwner(ctx context.Context, orgID, ownerID string) error {
	cmd, err := r.pool.Exec(ctx,
		`UPDATE organizations SET owner_id=$2, updated_at=NOW() WHERE id=$1 AND owner_id IS NULL`,
		orgID, ownerID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrOwnerAlreadySet
	}
	return nil
}

func (r *organizationRepository) List(ctx context.Context) ([]domain.Organization, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+organizationColumns+` FROM organizations ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Organization
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *org)
	}
	return result, rows.Err()
}

func (r *organizationRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Organization, error) {
	return scanOrganization(r.pool.QueryRow(ctx, query, arg))
}

func scanOrganization(row pgx.Row) (*domain.Organization, error) {
	var org domain.Organization
	if err := row.Scan(
		&org.ID,
		&org.Name,
		&org.Industry,
		&org.Website,
		&org.Logo,
		&org.OwnerID,
		&org.CreatedAt,
		&org.UpdatedAt,
	); err != nil {
		return nil, noRowsOnMalformedID(err)
	}
	return &org, nil
}
