package events

import "time"

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventUserRegistered         EventType = "user_registered"
	EventTicketReceived         EventType = "ticket_received"
	EventPasswordResetRequested EventType = "password_reset_requested"
	EventOTPIssued              EventType = "otp_issued"
)

// Recipient identifies who a notification-bearing event concerns.
// Email and FullName are plaintext; events never carry ciphertext.
type Recipient struct {
	UserID   int64  `json:"user_id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

// Event represents a domain event emitted by services.
type Event struct {
	Type      EventType   `json:"type"`
	Recipient Recipient   `json:"recipient"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// UserRegisteredPayload payload.
type UserRegisteredPayload struct {
	ExternalID int64 `json:"external_id,omitempty"`
}

// TicketReceivedPayload payload. Reference is the provider key when the
// mirror succeeded, otherwise the local ticket id rendered as text.
type TicketReceivedPayload struct {
	TicketID  int64  `json:"ticket_id"`
	Reference string `json:"reference"`
	Subject   string `json:"subject"`
	Mirrored  bool   `json:"mirrored"`
}

// PasswordResetRequestedPayload payload.
type PasswordResetRequestedPayload struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// OTPIssuedPayload payload.
type OTPIssuedPayload struct {
	Code string `json:"code"`
	TTL  int    `json:"ttl_seconds"`
}
