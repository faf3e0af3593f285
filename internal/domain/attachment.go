package domain

import "time"

// TicketAttachment is a file uploaded with the ticket itself.
// FileName and FilePath hold ciphertext as persisted.
type TicketAttachment struct {
	ID         int64
	TicketID   int64
	FileName   string
	FilePath   string
	UploadedAt time.Time
}

// MessageAttachment is a file attached to a single thread message.
type MessageAttachment struct {
	ID         int64
	MessageID  int64
	FileName   string
	FilePath   string
	UploadedAt time.Time
}
