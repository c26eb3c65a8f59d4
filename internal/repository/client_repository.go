package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/elegantflow/crm-service/internal/domain"
)

// ClientFilter narrows client listings and counts.
type ClientFilter struct {
	OrganizationID *string
	AssigneeID     *string
	AssigneeIDs    []string
	Status         *domain.ClientStatus
	NewestFirst    bool
	Limit          int
	Offset         int
}

// ClientRepository persists clients and their feedback log.
type ClientRepository interface {
	Create(ctx context.Context, client *domain.Client) error
	Update(ctx context.Context, client *domain.Client) error
	GetByID(ctx context.Context, id string) (*domain.Client, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter ClientFilter) ([]domain.Client, error)
	Count(ctx context.Context, filter ClientFilter) (int, error)
	FindByIdentity(ctx context.Context, orgID, name, email, phone string) (*domain.Client, error)

	AppendFeedback(ctx context.Context, feedback *domain.Feedback) error
	UpdateFeedback(ctx context.Context, feedback *domain.Feedback) error
	DeleteFeedback(ctx context.Context, clientID, feedbackID string) error
	ListFeedback(ctx context.Context, clientID string) ([]domain.Feedback, error)
}

type clientRepository struct {
	pool *pgxpool.Pool
}

// NewClientRepository instantiates the repository.
func NewClientRepository(pool *pgxpool.Pool) ClientRepository {
	return &clientRepository{pool: pool}
}

const clientColumns = `id, name, email, phone, address, client_type, status, industry, notes, organization_id,
        branch_id, assigned_to, created_by, updated_by, created_at, updated_at`

func (r *clientRepository) Create(ctx context.Context, client *domain.Client) error {
	const query = `
        INSERT INTO clients (name, email, phone, address, client_type, status, industry, notes, organization_id,
            branch_id, assigned_to, created_by, updated_by)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		client.Name,
		client.Email,
		client.Phone,
		client.Address,
		client.Type,
		client.Status,
		client.Industry,
		client.Notes,
		client.OrganizationID,
		client.BranchID,
		client.AssignedTo,
		client.CreatedBy,
		client.UpdatedBy,
	).Scan(&client.ID, &client.CreatedAt, &client.UpdatedAt)
}

func (r *clientRepository) Update(ctx context.Context, client *domain.Client) error {
	const query = `
        UPDATE clients SET name=$1, email=$2, phone=$3, address=$4, client_type=$5, status=$6, industry=$7,
            notes=$8, branch_id=$9, assigned_to=$10, updated_by=$11, updated_at=NOW()
        WHERE id=$12
        RETURNING updated_at`
	return r.pool.QueryRow(ctx, query,
		client.Name,
		client.Email,
		client.Phone,
		client.Address,
		client.Type,
		client.Status,
		client.Industry,
		client.Notes,
		client.BranchID,
		client.AssignedTo,
		client.UpdatedBy,
		client.ID,
	).Scan(&client.UpdatedAt)
}

// GetByID loads the client with its feedback log and project references.
func (r *clientRepository) GetByID(ctx context.Context, id string) (*domain.Client, error) {
	client, err := scanClient(r.pool.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE id=$1`, id))
	if err != nil {
		return nil, err
	}
	feedback, err := r.ListFeedback(ctx, id)
	if err != nil {
		return nil, err
	}
	client.Feedback = feedback

	rows, err := r.pool.Query(ctx, `SELECT id FROM projects WHERE client_id=$1 ORDER BY created_at ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var projectID string
		if err := rows.Scan(&projectID); err != nil {
			return nil, err
		}
		client.ProjectIDs = append(client.ProjectIDs, projectID)
	}
	return client, rows.Err()
}

func (r *clientRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM clients WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *clientRepository) List(ctx context.Context, filter ClientFilter) ([]domain.Client, error) {
	where, args := clientWhere(filter)
	order := ` ORDER BY created_at ASC, id ASC`
	if filter.NewestFirst {
		order = ` ORDER BY created_at DESC, id DESC`
	}
	query := `SELECT ` + clientColumns + ` FROM clients` + where + order + pageClause(filter.Limit, filter.Offset, 100)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Client
	for rows.Next() {
		client, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *client)
	}
	return result, rows.Err()
}

func (r *clientRepository) Count(ctx context.Context, filter ClientFilter) (int, error) {
	where, args := clientWhere(filter)
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM clients`+where, args...).Scan(&count)
	return count, err
}

func (r *clientRepository) FindByIdentity(ctx context.Context, orgID, name, email, phone string) (*domain.Client, error) {
	const query = `SELECT ` + clientColumns + ` FROM clients
        WHERE organization_id=$1 AND name=$2 AND email=$3 AND phone=$4
        ORDER BY created_at ASC LIMIT 1`
	return scanClient(r.pool.QueryRow(ctx, query, orgID, name, email, phone))
}

// AppendFeedback inserts a new entry; the caller assigns the stable ID.
func (r *clientRepository) AppendFeedback(ctx context.Context, feedback *domain.Feedback) error {
	const query = `
        INSERT INTO client_feedback (id, client_id, body, author_id, seen, edited)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		feedback.ID,
		feedback.ClientID,
		feedback.Text,
		feedback.AuthorID,
		feedback.Seen,
		feedback.Edited,
	).Scan(&feedback.CreatedAt, &feedback.UpdatedAt)
}

func (r *clientRepository) UpdateFeedback(ctx context.Context, feedback *domain.Feedback) error {
	const query = `
        UPDATE client_feedback SET body=$1, seen=$2, edited=$3, updated_at=NOW()
        WHERE id=$4 AND client_id=$5
        RETURNING updated_at`
	return r.pool.QueryRow(ctx, query,
		feedback.Text,
		feedback.Seen,
		feedback.Edited,
		feedback.ID,
		feedback.ClientID,
	).Scan(&feedback.UpdatedAt)
}

func (r *clientRepository) DeleteFeedback(ctx context.Context, clientID, feedbackID string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM client_feedback WHERE id=$1 AND client_id=$2`, feedbackID, clientID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *clientRepository) ListFeedback(ctx context.Context, clientID string) ([]domain.Feedback, error) {
	const query = `
        SELECT id, client_id, body, author_id, seen, edited, created_at, updated_at
        FROM client_feedback WHERE client_id=$1 ORDER BY seq ASC`
	rows, err := r.pool.Query(ctx, query, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Feedback
	for rows.Next() {
		var fb domain.Feedback
		if err := rows.Scan(
			&fb.ID,
			&fb.ClientID,
			&fb.Text,
			&fb.AuthorID,
			&fb.Seen,
			&fb.Edited,
			&fb.CreatedAt,
			&fb.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, fb)
	}
	return result, rows.Err()
}

func clientWhere(filter ClientFilter) (string, []any) {
	args := []any{}
	clauses := []string{}

	if filter.OrganizationID != nil {
		args = append(args, *filter.OrganizationID)
		clauses = append(clauses, fmt.Sprintf("organization_id=$%d", len(args)))
	}
	if filter.AssigneeID != nil {
		args = append(args, *filter.AssigneeID)
		clauses = append(clauses, fmt.Sprintf("assigned_to=$%d", len(args)))
	}
	if filter.AssigneeIDs != nil {
		args = append(args, filter.AssigneeIDs)
		clauses = append(clauses, fmt.Sprintf("assigned_to = ANY($%d::uuid[])", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		clauses = append(clauses, fmt.Sprintf("status=$%d", len(args)))
	}
	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func scanClient(row pgx.Row) (*domain.Client, error) {
	var client domain.Client
	if err := row.Scan(
		&client.ID,
		&client.Name,
		&client.Email,
		&client.Phone,
		&client.Address,
		&client.Type,
		&client.Status,
		&client.Industry,
		&client.Notes,
		&client.OrganizationID,
		&client.BranchID,
		&client.AssignedTo,
		&client.CreatedBy,
		&client.UpdatedBy,
		&client.CreatedAt,
		&client.UpdatedAt,
	); err != nil {
		return nil, noRowsOnMalformedID(err)
	}
	return &client, nil
}
