package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/elegantflow/crm-service/internal/domain"
)

// UserRepository defines persistence access for organization users.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	List(ctx context.Context, filter UserFilter) ([]domain.User, error)
	AddPushToken(ctx context.Context, id, token string) error
	TouchLogin(ctx context.Context, id string) error
}

// UserFilter narrows user listings. Results are ordered by creation time, then id.
type UserFilter struct {
	OrganizationID *string
	BranchID       *string
	ParentID       *string
	Roles          []domain.Role
	Status         *domain.UserStatus
	IDs            []string
	Limit          int
	Offset         int
}

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

const userColumns = `id, first_name, last_name, user_name, email, password_hash, organization_id, branch_id,
        parent_id, role, status, job_title, department, push_tokens, profile, settings,
        created_at, updated_at, last_logged_in`

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (first_name, last_name, user_name, email, password_hash, organization_id, branch_id,
            parent_id, role, status, job_title, department, profile, settings)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
        RETURNING id, push_tokens, created_at, updated_at`

	return r.pool.QueryRow(ctx, query,
		user.FirstName,
		user.LastName,
		user.UserName,
		user.Email,
		user.PasswordHash,
		user.OrganizationID,
		user.BranchID,
		user.ParentID,
		user.Role,
		user.Status,
		user.JobTitle,
		user.Department,
		user.Profile,
		user.Settings,
	).Scan(&user.ID, &user.PushTokens, &user.CreatedAt, &user.UpdatedAt)
}

func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	const query = `
        UPDATE users SET first_name=$1, last_name=$2, user_name=$3, email=$4, password_hash=$5, branch_id=$6,
            parent_id=$7, role=$8, status=$9, job_title=$10, department=$11, profile=$12, settings=$13, updated_at=NOW()
        WHERE id=$14`

	cmd, err := r.pool.Exec(ctx, query,
		user.FirstName,
		user.LastName,
		user.UserName,
		user.Email,
		user.PasswordHash,
		user.BranchID,
		user.ParentID,
		user.Role,
		user.Status,
		user.JobTitle,
		user.Department,
		user.Profile,
		user.Settings,
		user.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id=$1`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email)=LOWER($1)`
	return scanUser(r.pool.QueryRow(ctx, query, email))
}

func (r *userRepository) List(ctx context.Context, filter UserFilter) ([]domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users`
	args := []any{}
	clauses := []string{}

	if filter.OrganizationID != nil {
		args = append(args, *filter.OrganizationID)
		clauses = append(clauses, fmt.Sprintf("organization_id=$%d", len(args)))
	}
	if filter.BranchID != nil {
		args = append(args, *filter.BranchID)
		clauses = append(clauses, fmt.Sprintf("branch_id=$%d", len(args)))
	}
	if filter.ParentID != nil {
		args = append(args, *filter.ParentID)
		clauses = append(clauses, fmt.Sprintf("parent_id=$%d", len(args)))
	}
	if len(filter.Roles) > 0 {
		roles := make([]string, len(filter.Roles))
		for i, role := range filter.Roles {
			roles[i] = string(role)
		}
		args = append(args, roles)
		clauses = append(clauses, fmt.Sprintf("role = ANY($%d)", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		clauses = append(clauses, fmt.Sprintf("status=$%d", len(args)))
	}
	if len(filter.IDs) > 0 {
		args = append(args, filter.IDs)
		clauses = append(clauses, fmt.Sprintf("id = ANY($%d::uuid[])", len(args)))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at ASC, id ASC"
	query += pageClause(filter.Limit, filter.Offset, 1000)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *user)
	}
	return result, rows.Err()
}

// AddPushToken appends token unless already present, in a single statement.
func (r *userRepository) AddPushToken(ctx context.Context, id, token string) error {
	const query = `
        UPDATE users SET push_tokens = CASE
                WHEN $2 = ANY(push_tokens) THEN push_tokens
                ELSE array_append(push_tokens, $2)
            END
        WHERE id=$1`
	cmd, err := r.pool.Exec(ctx, query, id, token)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *userRepository) TouchLogin(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET last_logged_in=NOW() WHERE id=$1`, id)
	return err
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(
		&user.ID,
		&user.FirstName,
		&user.LastName,
		&user.UserName,
		&user.Email,
		&user.PasswordHash,
		&user.OrganizationID,
		&user.BranchID,
		&user.ParentID,
		&user.Role,
		&user.Status,
		&user.JobTitle,
		&user.Department,
		&user.PushTokens,
		&user.Profile,
		&user.Settings,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.LastLoggedIn,
	); err != nil {
		return nil, noRowsOnMalformedID(err)
	}
	return &user, nil
}
