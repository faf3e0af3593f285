package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// AttachmentRepository stores file metadata for tickets and for
// individual thread messages. File names and paths arrive encrypted.
type AttachmentRepository interface {
	CreateForTicket(ctx context.Context, attachment *domain.TicketAttachment) error
	ListByTicket(ctx context.Context, ticketID int64) ([]domain.TicketAttachment, error)
	CreateForMessage(ctx context.Context, attachment *domain.MessageAttachment) error
	ListByMessages(ctx context.Context, messageIDs []int64) (map[int64][]domain.MessageAttachment, error)
}

type attachmentRepository struct {
	pool *pgxpool.Pool
}

// NewAttachmentRepository instantiates repository.
func NewAttachmentRepository(pool *pgxpool.Pool) AttachmentRepository {
	return &attachmentRepository{pool: pool}
}

func (r *attachmentRepository) CreateForTicket(ctx context.Context, attachment *domain.TicketAttachment) error {
	const query = `
        INSERT INTO ticket_attachments (ticket_id, file_name, file_path)
        VALUES ($1, $2, $3)
        RETURNING id, created_at`

	return r.pool.QueryRow(ctx, query,
		attachment.TicketID,
		attachment.FileName,
		attachment.FilePath,
	).Scan(&attachment.ID, &attachment.UploadedAt)
}

func (r *attachmentRepository) ListByTicket(ctx context.Context, ticketID int64) ([]domain.TicketAttachment, error) {
	const query = `
        SELECT id, ticket_id, file_name, file_path, created_at
        FROM ticket_attachments WHERE ticket_id=$1 ORDER BY id ASC`

	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketAttachment
	for rows.Next() {
		var attachment domain.TicketAttachment
		if err := rows.Scan(
			&attachment.ID,
			&attachment.TicketID,
			&attachment.FileName,
			&attachment.FilePath,
			&attachment.UploadedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, attachment)
	}
	return result, rows.Err()
}

func (r *attachmentRepository) CreateForMessage(ctx context.Context, attachment *domain.MessageAttachment) error {
	const query = `
        INSERT INTO message_attachments (message_id, file_name, file_path)
        VALUES ($1, $2, $3)
        RETURNING id, uploaded_at`

	return r.pool.QueryRow(ctx, query,
		attachment.MessageID,
		attachment.FileName,
		attachment.FilePath,
	).Scan(&attachment.ID, &attachment.UploadedAt)
}

func (r *attachmentRepository) ListByMessages(ctx context.Context, messageIDs []int64) (map[int64][]domain.MessageAttachment, error) {
	result := make(map[int64][]domain.MessageAttachment)
	if len(messageIDs) == 0 {
		return result, nil
	}

	const query = `
        SELECT id, message_id, file_name, file_path, uploaded_at
        FROM message_attachments WHERE message_id = ANY($1) ORDER BY id ASC`

	rows, err := r.pool.Query(ctx, query, messageIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var attachment domain.MessageAttachment
		if err := rows.Scan(
			&attachment.ID,
			&attachment.MessageID,
			&attachment.FileName,
			&attachment.FilePath,
			&attachment.UploadedAt,
		); err != nil {
			return nil, err
		}
		result[attachment.MessageID] = append(result[attachment.MessageID], attachment)
	}
	return result, rows.Err()
}
