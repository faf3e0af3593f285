package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/mail"
)

// NotificationService turns domain events into transactional email.
// Every send is best-effort; a failed email never fails the operation
// that published the event.
type NotificationService struct {
	dispatcher events.Dispatcher
	mailer     *mail.Mailer
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, mailer *mail.Mailer, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		mailer:     mailer,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventUserRegistered, n.handleUserRegistered)
	n.dispatcher.Subscribe(events.EventTicketReceived, n.handleTicketReceived)
	n.dispatcher.Subscribe(events.EventPasswordResetRequested, n.handlePasswordResetRequested)
	n.dispatcher.Subscribe(events.EventOTPIssued, n.handleOTPIssued)
}

func (n *NotificationService) handleUserRegistered(_ context.Context, event events.Event) error {
	n.logger.Info("UserRegistered", zap.Int64("user_id", event.Recipient.UserID))
	n.mailer.SendWelcome(event.Recipient.Email, event.Recipient.FullName)
	return nil
}

func (n *NotificationService) handleTicketReceived(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketReceivedPayload)
	if !ok {
		return nil
	}
	n.logger.Info("TicketReceived",
		zap.Int64("ticket_id", payload.TicketID),
		zap.String("reference", payload.Reference),
		zap.Bool("mirrored", payload.Mirrored))
	n.mailer.SendTicketReceived(event.Recipient.Email, event.Recipient.FullName, payload.Reference, payload.Subject)
	return nil
}

func (n *NotificationService) handlePasswordResetRequested(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.PasswordResetRequestedPayload)
	if !ok {
		return nil
	}
	ttlMinutes := int(payload.ExpiresAt.Sub(event.Timestamp).Minutes())
	n.mailer.SendPasswordReset(event.Recipient.Email, event.Recipient.FullName, payload.Token, ttlMinutes)
	return nil
}

func (n *NotificationService) handleOTPIssued(_ context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.OTPIssuedPayload)
	if !ok {
		return nil
	}
	n.mailer.SendOneTimeCode(event.Recipient.Email, event.Recipient.FullName, payload.Code, payload.TTL)
	return nil
}
