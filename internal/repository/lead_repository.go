package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/elegantflow/crm-service/internal/domain"
)

// LeadFilter narrows lead listings and counts.
type LeadFilter struct {
	OrganizationID *string
	AssigneeID     *string
	AssigneeIDs    []string
	Statuses       []domain.LeadStatus
	// OpenOnly keeps leads that are neither archived nor closed.
	OpenOnly bool
	Limit    int
	Offset   int
}

// LeadRepository persists leads with their embedded history.
type LeadRepository interface {
	Create(ctx context.Context, lead *domain.Lead) error
	Update(ctx context.Context, lead *domain.Lead) error
	GetByID(ctx context.Context, id string) (*domain.Lead, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter LeadFilter) ([]domain.Lead, error)
	Count(ctx context.Context, filter LeadFilter) (int, error)
}

type leadRepository struct {
	pool *pgxpool.Pool
}

// NewLeadRepository instantiates the repository.
func NewLeadRepository(pool *pgxpool.Pool) LeadRepository {
	return &leadRepository{pool: pool}
}

const leadColumns = `id, name, lead_type, email, phone, address, organization_id, branch_id, source, assigned_to,
        approval, status, notes, history_created_at, history_created_by, history_updated_at, history_updated_by,
        history_reason, scheduled_followup_date, is_archived, inactive_requested`

func (r *leadRepository) Create(ctx context.Context, lead *domain.Lead) error {
	const query = `
        INSERT INTO leads (name, lead_type, email, phone, address, organization_id, branch_id, source, assigned_to,
            approval, status, notes, history_created_by, scheduled_followup_date)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
        RETURNING id, history_created_at`
	return r.pool.QueryRow(ctx, query,
		lead.Name,
		lead.Type,
		lead.Email,
		lead.Phone,
		lead.Address,
		lead.OrganizationID,
		lead.BranchID,
		lead.Source,
		lead.AssignedTo,
		lead.Approval,
		lead.Status,
		lead.Notes,
		lead.History.CreatedBy,
		lead.ScheduledFollowupDate,
	).Scan(&lead.ID, &lead.History.CreatedAt)
}

func (r *leadRepository) Update(ctx context.Context, lead *domain.Lead) error {
	const query = `
        UPDATE leads SET name=$1, lead_type=$2, email=$3, phone=$4, address=$5, branch_id=$6, source=$7,
            assigned_to=$8, approval=$9, status=$10, notes=$11, history_updated_at=$12, history_updated_by=$13,
            history_reason=$14, scheduled_followup_date=$15, is_archived=$16, inactive_requested=$17
        WHERE id=$18`
	cmd, err := r.pool.Exec(ctx, query,
		lead.Name,
		lead.Type,
		lead.Email,
		lead.Phone,
		lead.Address,
		lead.BranchID,
		lead.Source,
		lead.AssignedTo,
		lead.Approval,
		lead.Status,
		lead.Notes,
		lead.History.UpdatedAt,
		lead.History.UpdatedBy,
		lead.History.Reason,
		lead.ScheduledFollowupDate,
		lead.IsArchived,
		lead.InactiveRequested,
		lead.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *leadRepository) GetByID(ctx context.Context, id string) (*domain.Lead, error) {
	return scanLead(r.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id=$1`, id))
}

func (r *leadRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM leads WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *leadRepository) List(ctx context.Context, filter LeadFilter) ([]domain.Lead, error) {
	where, args := leadWhere(filter)
	query := `SELECT ` + leadColumns + ` FROM leads` + where +
		` ORDER BY history_created_at DESC` + pageClause(filter.Limit, filter.Offset, 100)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *lead)
	}
	return result, rows.Err()
}

func (r *leadRepository) Count(ctx context.Context, filter LeadFilter) (int, error) {
	where, args := leadWhere(filter)
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM leads`+where, args...).Scan(&count)
	return count, err
}

func leadWhere(filter LeadFilter) (string, []any) {
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
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			statuses[i] = string(status)
		}
		args = append(args, statuses)
		clauses = append(clauses, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if filter.OpenOnly {
		clauses = append(clauses, "NOT is_archived", "status <> 'closed'")
	}
	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func scanLead(row pgx.Row) (*domain.Lead, error) {
	var lead domain.Lead
	if err := row.Scan(
		&lead.ID,
		&lead.Name,
		&lead.Type,
		&lead.Email,
		&lead.Phone,
		&lead.Address,
		&lead.OrganizationID,
		&lead.BranchID,
		&lead.Source,
		&lead.AssignedTo,
		&lead.Approval,
		&lead.Status,
		&lead.Notes,
		&lead.History.CreatedAt,
		&lead.History.CreatedBy,
		&lead.History.UpdatedAt,
		&lead.History.UpdatedBy,
		&lead.History.Reason,
		&lead.ScheduledFollowupDate,
		&lead.IsArchived,
		&lead.InactiveRequested,
	); err != nil {
		return nil, noRowsOnMalformedID(err)
	}
	return &lead, nil
}
