package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// TicketPatch carries the mutable ticket attributes. Status and
// Priority, when set, already hold ciphertext.
type TicketPatch struct {
	Status         *string
	Priority       *string
	AssignedUserID *int64
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id int64) (*domain.Ticket, error)
	ListByRequester(ctx context.Context, userID int64, limit, offset int) ([]domain.Ticket, error)
	ListOpenOrUnassigned(ctx context.Context, encryptedOpenStatus string, limit, offset int) ([]domain.Ticket, error)
	Patch(ctx context.Context, id int64, patch TicketPatch) error
	Assign(ctx context.Context, id, technicianID int64) error
	TouchUpdated(ctx context.Context, id int64) error
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, user_id, assigned_user_id, subject, category_id, description, priority, status, created_at, updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (user_id, assigned_user_id, subject, category_id, description, priority, status)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id, created_at, updated_at`

	return r.pool.QueryRow(ctx, query,
		ticket.UserID,
		ticket.AssignedUserID,
		ticket.Subject,
		ticket.CategoryID,
		ticket.Description,
		ticket.Priority,
		ticket.Status,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	const query = `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	var ticket domain.Ticket
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&ticket.ID,
		&ticket.UserID,
		&ticket.AssignedUserID,
		&ticket.Subject,
		&ticket.CategoryID,
		&ticket.Description,
		&ticket.Priority,
		&ticket.Status,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) ListByRequester(ctx context.Context, userID int64, limit, offset int) ([]domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE user_id=$1 ORDER BY updated_at DESC LIMIT %d OFFSET %d`,
		ticketColumns, clampLimit(limit), clampOffset(offset))
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

// ListOpenOrUnassigned is the technician work queue. The status
// predicate compares ciphertext directly: the field cipher is
// deterministic on purpose, so this equality is equality on the
// plaintext status. Changing the cipher to randomized IVs would
// silently break this query.
func (r *ticketRepository) ListOpenOrUnassigned(ctx context.Context, encryptedOpenStatus string, limit, offset int) ([]domain.Ticket, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM tickets
        WHERE status=$1 OR assigned_user_id IS NULL
        ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		ticketColumns, clampLimit(limit), clampOffset(offset))
	rows, err := r.pool.Query(ctx, query, encryptedOpenStatus)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) Patch(ctx context.Context, id int64, patch TicketPatch) error {
	sets := []string{"updated_at=NOW()"}
	args := []any{id}

	if patch.Status != nil {
		args = append(args, *patch.Status)
		sets = append(sets, fmt.Sprintf("status=$%d", len(args)))
	}
	if patch.Priority != nil {
		args = append(args, *patch.Priority)
		sets = append(sets, fmt.Sprintf("priority=$%d", len(args)))
	}
	if patch.AssignedUserID != nil {
		args = append(args, *patch.AssignedUserID)
		sets = append(sets, fmt.Sprintf("assigned_user_id=$%d", len(args)))
	}

	query := fmt.Sprintf(`UPDATE tickets SET %s WHERE id=$1`, strings.Join(sets, ", "))
	cmd, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) Assign(ctx context.Context, id, technicianID int64) error {
	const query = `UPDATE tickets SET assigned_user_id=$2, updated_at=NOW() WHERE id=$1`
	cmd, err := r.pool.Exec(ctx, query, id, technicianID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) TouchUpdated(ctx context.Context, id int64) error {
	const query = `UPDATE tickets SET updated_at=NOW() WHERE id=$1`
	_, err := r.pool.Exec(ctx, query, id)
	return err
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(
			&ticket.ID,
			&ticket.UserID,
			&ticket.AssignedUserID,
			&ticket.Subject,
			&ticket.CategoryID,
			&ticket.Description,
			&ticket.Priority,
			&ticket.Status,
			&ticket.CreatedAt,
			&ticket.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	return limit
}

func clampOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
