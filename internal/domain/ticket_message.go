package domain

import "time"

// TicketMessage is one entry of a ticket's conversation thread.
// Body holds ciphertext as persisted. Messages are append-only.
type TicketMessage struct {
	ID           int64
	TicketID     int64
	SenderUserID int64
	Body         string
	IsInternal   bool
	CreatedAt    time.Time
}
