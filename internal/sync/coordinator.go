package sync

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/provider"
)

// TicketAPI is the slice of the provider client the coordinator uses.
type TicketAPI interface {
	Enabled() bool
	CreateTicket(ctx context.Context, in provider.TicketInput) (string, error)
	ListCustomerTickets(ctx context.Context, customerID int64) ([]provider.Ticket, error)
}

// LocalTicket carries the plaintext content of a locally committed ticket.
type LocalTicket struct {
	ID          int64
	Subject     string
	Description string
}

// Contact is the requester identity forwarded to the provider and
// notified about the ticket.
type Contact struct {
	UserID   int64
	Email    string
	Phone    string
	FullName string
}

// SyncResult reports the mirror outcome. The local record is
// authoritative either way; Mirrored only says whether the provider has
// a copy, and ExternalKey is its reference when it does.
type SyncResult struct {
	Mirrored    bool
	ExternalKey string
}

// RemoteTicket is one row of the provider-sourced listing, mapped to
// the local vocabulary and presentation date format.
type RemoteTicket struct {
	Key       string `json:"key"`
	Subject   string `json:"subject"`
	Status    string `json:"status"`
	Priority  string `json:"priority"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

const listDateFormat = "02.01.2006"

// Coordinator mirrors committed tickets to the provider and sources the
// live "my requests" listing from it.
type Coordinator struct {
	api        TicketAPI
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewCoordinator builds a coordinator.
func NewCoordinator(api TicketAPI, dispatcher events.Dispatcher, logger *zap.Logger) *Coordinator {
	return &Coordinator{api: api, dispatcher: dispatcher, logger: logger}
}

// Sync mirrors a ticket that already exists locally. Mirror failures
// never bubble up. Whatever the outcome, a ticket-received event is
// published so the requester gets their confirmation email, referencing
// the provider key when available and the local id otherwise.
func (c *Coordinator) Sync(ctx context.Context, ticket LocalTicket, contact Contact) SyncResult {
	result := SyncResult{}

	if c.api.Enabled() {
		body := ticket.Description
		if strings.TrimSpace(body) == "" {
			body = ticket.Subject
		}
		key, err := c.api.CreateTicket(ctx, provider.TicketInput{
			Subject: ticket.Subject,
			Body:    body,
			Email:   contact.Email,
			Phone:   contact.Phone,
		})
		if err != nil {
			c.logger.Warn("ticket mirror failed, keeping local record only",
				zap.Int64("ticket_id", ticket.ID),
				zap.Error(err))
		} else {
			result.Mirrored = true
			result.ExternalKey = key
		}
	}

	reference := result.ExternalKey
	if reference == "" {
		reference = strconv.FormatInt(ticket.ID, 10)
	}
	_ = c.dispatcher.Publish(ctx, events.Event{
		Type: events.EventTicketReceived,
		Recipient: events.Recipient{
			UserID:   contact.UserID,
			Email:    contact.Email,
			FullName: contact.FullName,
		},
		Timestamp: time.Now().UTC(),
		Payload: events.TicketReceivedPayload{
			TicketID:  ticket.ID,
			Reference: reference,
			Subject:   ticket.Subject,
			Mirrored:  result.Mirrored,
		},
	})

	return result
}

// ListProviderTickets returns one page of the requester's live tickets
// straight from the provider. The provider caps the list at roughly a
// hundred open tickets and offers no server-side paging on this path,
// so paging happens here after mapping.
func (c *Coordinator) ListProviderTickets(ctx context.Context, externalID int64, page, perPage int) ([]RemoteTicket, int, error) {
	if externalID == 0 || !c.api.Enabled() {
		return []RemoteTicket{}, 0, nil
	}

	raw, err := c.api.ListCustomerTickets(ctx, externalID)
	if err != nil {
		return nil, 0, err
	}

	mapped := make([]RemoteTicket, 0, len(raw))
	for _, t := range raw {
		mapped = append(mapped, mapRemoteTicket(t))
	}

	total := len(mapped)
	start, end := pageBounds(total, page, perPage)
	return mapped[start:end], total, nil
}

func mapRemoteTicket(t provider.Ticket) RemoteTicket {
	subject := t.Field("ts.subject")
	if subject == "" {
		subject = t.Subject
	}
	return RemoteTicket{
		Key:       t.Key,
		Subject:   subject,
		Status:    strings.ToUpper(t.Field("ts.status")),
		Priority:  strings.ToUpper(t.Field("ts.priority")),
		CreatedAt: formatListDate(t.CreatedTime()),
		UpdatedAt: formatListDate(t.UpdatedTime()),
	}
}

func formatListDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(listDateFormat)
}

func pageBounds(total, page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	start := (page - 1) * perPage
	if start > total {
		start = total
	}
	end := start + perPage
	if end > total {
		end = total
	}
	return start, end
}
