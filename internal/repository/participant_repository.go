package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Participant is a CC'd or following user joined with their (still
// encrypted) identity fields for display.
type Participant struct {
	UserID  int64
	Name    string
	Surname string
	Email   string
}

// ParticipantRepository manages the ticket_cc and ticket_followers
// pair tables. Adds are upserts so repeating one is a no-op; the
// ON CONFLICT clause keeps that atomic in the store.
type ParticipantRepository interface {
	AddCC(ctx context.Context, ticketID, userID int64) error
	RemoveCC(ctx context.Context, ticketID, userID int64) error
	ListCC(ctx context.Context, ticketID int64) ([]Participant, error)
	AddFollower(ctx context.Context, ticketID, userID int64) error
	RemoveFollower(ctx context.Context, ticketID, userID int64) error
	ListFollowers(ctx context.Context, ticketID int64) ([]Participant, error)
}

type participantRepository struct {
	pool *pgxpool.Pool
}

// NewParticipantRepository instantiates repository.
func NewParticipantRepository(pool *pgxpool.Pool) ParticipantRepository {
	return &participantRepository{pool: pool}
}

func (r *participantRepository) AddCC(ctx context.Context, ticketID, userID int64) error {
	return r.add(ctx, "ticket_cc", ticketID, userID)
}

func (r *participantRepository) RemoveCC(ctx context.Context, ticketID, userID int64) error {
	return r.remove(ctx, "ticket_cc", ticketID, userID)
}

func (r *participantRepository) ListCC(ctx context.Context, ticketID int64) ([]Participant, error) {
	return r.list(ctx, "ticket_cc", ticketID)
}

func (r *participantRepository) AddFollower(ctx context.Context, ticketID, userID int64) error {
	return r.add(ctx, "ticket_followers", ticketID, userID)
}

func (r *participantRepository) RemoveFollower(ctx context.Context, ticketID, userID int64) error {
	return r.remove(ctx, "ticket_followers", ticketID, userID)
}

func (r *participantRepository) ListFollowers(ctx context.Context, ticketID int64) ([]Participant, error) {
	return r.list(ctx, "ticket_followers", ticketID)
}

func (r *participantRepository) add(ctx context.Context, table string, ticketID, userID int64) error {
	query := fmt.Sprintf(`
        INSERT INTO %s (ticket_id, user_id) VALUES ($1, $2)
        ON CONFLICT (ticket_id, user_id) DO NOTHING`, table)
	_, err := r.pool.Exec(ctx, query, ticketID, userID)
	return err
}

func (r *participantRepository) remove(ctx context.Context, table string, ticketID, userID int64) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE ticket_id=$1 AND user_id=$2`, table)
	_, err := r.pool.Exec(ctx, query, ticketID, userID)
	return err
}

func (r *participantRepository) list(ctx context.Context, table string, ticketID int64) ([]Participant, error) {
	query := fmt.Sprintf(`
        SELECT p.user_id, u.name, u.surname, u.email
        FROM %s p JOIN users u ON u.id = p.user_id
        WHERE p.ticket_id=$1 ORDER BY p.created_at ASC`, table)

	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Participant
	for rows.Next() {
		var p Participant
		if err := rows.Scan(&p.UserID, &p.Name, &p.Surname, &p.Email); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}
