package dto

// PatchTicketRequest carries optional ticket mutations.
type PatchTicketRequest struct {
	Status         *string `json:"status"`
	Priority       *string `json:"priority"`
	AssignedUserID *int64  `json:"assigned_user_id"`
}

// AssignTicketRequest names the technician to put on the ticket.
type AssignTicketRequest struct {
	TechnicianID int64 `json:"technician_id"`
}

// MessageRequest appends a thread entry.
type MessageRequest struct {
	Body       string `json:"body"`
	IsInternal bool   `json:"is_internal"`
}

// ParticipantRequest subscribes a user as CC or follower.
type ParticipantRequest struct {
	UserID int64 `json:"user_id"`
}
