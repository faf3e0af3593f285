package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// TicketMessageRepository handles the append-only conversation thread.
type TicketMessageRepository interface {
	Create(ctx context.Context, message *domain.TicketMessage) error
	GetByID(ctx context.Context, id int64) (*domain.TicketMessage, error)
	ListByTicket(ctx context.Context, ticketID int64) ([]domain.TicketMessage, error)
}

type ticketMessageRepository struct {
	pool *pgxpool.Pool
}

// NewTicketMessageRepository instantiates repository.
func NewTicketMessageRepository(pool *pgxpool.Pool) TicketMessageRepository {
	return &ticketMessageRepository{pool: pool}
}

func (r *ticketMessageRepository) Create(ctx context.Context, message *domain.TicketMessage) error {
	const query = `
        INSERT INTO ticket_messages (ticket_id, sender_user_id, message_text, is_internal)
        VALUES ($1, $2, $3, $4)
        RETURNING id, created_at`

	return r.pool.QueryRow(ctx, query,
		message.TicketID,
		message.SenderUserID,
		message.Body,
		message.IsInternal,
	).Scan(&message.ID, &message.CreatedAt)
}

func (r *ticketMessageRepository) GetByID(ctx context.Context, id int64) (*domain.TicketMessage, error) {
	const query = `
        SELECT id, ticket_id, sender_user_id, message_text, is_internal, created_at
        FROM ticket_messages WHERE id=$1`

	var message domain.TicketMessage
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&message.ID,
		&message.TicketID,
		&message.SenderUserID,
		&message.Body,
		&message.IsInternal,
		&message.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &message, nil
}

func (r *ticketMessageRepository) ListByTicket(ctx context.Context, ticketID int64) ([]domain.TicketMessage, error) {
	const query = `
        SELECT id, ticket_id, sender_user_id, message_text, is_internal, created_at
        FROM ticket_messages WHERE ticket_id=$1 ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketMessage
	for rows.Next() {
		var message domain.TicketMessage
		if err := rows.Scan(
			&message.ID,
			&message.TicketID,
			&message.SenderUserID,
			&message.Body,
			&message.IsInternal,
			&message.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, message)
	}
	return result, rows.Err()
}
