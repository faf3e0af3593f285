package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/crypto"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/storage"
	syncpkg "github.com/spec-kit/helpdesk-service/internal/sync"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

// TicketMirror is the coordinator surface the ticket service uses.
type TicketMirror interface {
	Sync(ctx context.Context, ticket syncpkg.LocalTicket, contact syncpkg.Contact) syncpkg.SyncResult
	ListProviderTickets(ctx context.Context, externalID int64, page, perPage int) ([]syncpkg.RemoteTicket, int, error)
}

// Upload is one incoming attachment.
type Upload struct {
	Name   string
	Reader io.Reader
}

// CreateTicketInput carries the plaintext ticket form.
type CreateTicketInput struct {
	Subject     string
	Description string
	Priority    string
	CategoryID  int64
	Files       []Upload
}

// CreateTicketResult reports the local id and the mirror outcome.
type CreateTicketResult struct {
	TicketID    int64  `json:"ticket_id"`
	Mirrored    bool   `json:"mirrored"`
	ExternalKey string `json:"external_key,omitempty"`
}

// PatchTicketInput carries optional mutations.
type PatchTicketInput struct {
	Status         *string
	Priority       *string
	AssignedUserID *int64
}

// PersonView is a decrypted user reference for display.
type PersonView struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Surname string `json:"surname"`
	Email   string `json:"email"`
}

// AttachmentView is a decrypted attachment reference.
type AttachmentView struct {
	ID         int64     `json:"id"`
	FileName   string    `json:"file_name"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// MessageView is one decrypted thread entry.
type MessageView struct {
	ID          int64            `json:"id"`
	SenderID    int64            `json:"sender_id"`
	Body        string           `json:"body"`
	IsInternal  bool             `json:"is_internal"`
	CreatedAt   time.Time        `json:"created_at"`
	Attachments []AttachmentView `json:"attachments"`
}

// TicketView is a decrypted ticket row.
type TicketView struct {
	ID             int64     `json:"id"`
	Subject        string    `json:"subject"`
	Description    string    `json:"description"`
	Status         string    `json:"status"`
	Priority       string    `json:"priority"`
	CategoryID     int64     `json:"category_id"`
	RequesterID    int64     `json:"requester_id"`
	AssignedUserID *int64    `json:"assigned_user_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TicketDetailView is the full decrypted aggregate.
type TicketDetailView struct {
	TicketView
	CategoryName string           `json:"category_name"`
	Requester    PersonView       `json:"requester"`
	Assignee     *PersonView      `json:"assignee,omitempty"`
	Attachments  []AttachmentView `json:"attachments"`
	Messages     []MessageView    `json:"messages"`
	CC           []PersonView     `json:"cc"`
	Followers    []PersonView     `json:"followers"`
}

// TicketService owns the ticket lifecycle.
type TicketService struct {
	tickets      repository.TicketRepository
	messages     repository.TicketMessageRepository
	attachments  repository.AttachmentRepository
	participants repository.ParticipantRepository
	users        repository.UserRepository
	categories   repository.CategoryRepository
	cipher       *crypto.FieldCipher
	mirror       TicketMirror
	resolver     ExternalResolver
	store        *storage.Store
	metrics      *observability.Metrics
	logger       *zap.Logger
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo      repository.TicketRepository
	MessageRepo     repository.TicketMessageRepository
	AttachmentRepo  repository.AttachmentRepository
	ParticipantRepo repository.ParticipantRepository
	UserRepo        repository.UserRepository
	CategoryRepo    repository.CategoryRepository
	Cipher          *crypto.FieldCipher
	Mirror          TicketMirror
	Resolver        ExternalResolver
	Store           *storage.Store
	Metrics         *observability.Metrics
	Logger          *zap.Logger
}

// NewTicketService builds the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:      deps.TicketRepo,
		messages:     deps.MessageRepo,
		attachments:  deps.AttachmentRepo,
		participants: deps.ParticipantRepo,
		users:        deps.UserRepo,
		categories:   deps.CategoryRepo,
		cipher:       deps.Cipher,
		mirror:       deps.Mirror,
		resolver:     deps.Resolver,
		store:        deps.Store,
		metrics:      deps.Metrics,
		logger:       deps.Logger,
	}
}

// Create records the ticket locally, stores its attachments and then
// mirrors it to the provider. The local insert is the source of truth;
// a failed mirror only shows up in the result flags.
func (s *TicketService) Create(ctx context.Context, caller *auth.Principal, in CreateTicketInput) (*CreateTicketResult, error) {
	if err := s.validateCreate(ctx, &in); err != nil {
		return nil, err
	}

	ticket := &domain.Ticket{
		UserID:      caller.UserID,
		Subject:     s.cipher.Encrypt(strings.TrimSpace(in.Subject)),
		Description: s.cipher.Encrypt(strings.TrimSpace(in.Description)),
		Priority:    s.cipher.Encrypt(in.Priority),
		Status:      s.cipher.Encrypt(string(domain.TicketStatusOpen)),
		CategoryID:  in.CategoryID,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	for _, file := range in.Files {
		saved, err := s.store.Save(file.Reader, file.Name)
		if err != nil {
			s.logger.Warn("attachment not stored",
				zap.Int64("ticket_id", ticket.ID),
				zap.Error(err))
			continue
		}
		attachment := &domain.TicketAttachment{
			TicketID: ticket.ID,
			FileName: s.cipher.Encrypt(saved.Name),
			FilePath: s.cipher.Encrypt(saved.Path),
		}
		if err := s.attachments.CreateForTicket(ctx, attachment); err != nil {
			s.logger.Warn("attachment metadata not persisted",
				zap.Int64("ticket_id", ticket.ID),
				zap.Error(err))
		}
	}

	phone := s.callerPhone(ctx, caller.UserID)
	result := s.mirror.Sync(ctx, syncpkg.LocalTicket{
		ID:          ticket.ID,
		Subject:     strings.TrimSpace(in.Subject),
		Description: strings.TrimSpace(in.Description),
	}, syncpkg.Contact{
		UserID:   caller.UserID,
		Email:    caller.Email,
		Phone:    phone,
		FullName: caller.Name + " " + caller.Surname,
	})
	s.metrics.RecordMirror(result.Mirrored)

	return &CreateTicketResult{
		TicketID:    ticket.ID,
		Mirrored:    result.Mirrored,
		ExternalKey: result.ExternalKey,
	}, nil
}

// Detail assembles the full decrypted aggregate for one ticket.
func (s *TicketService) Detail(ctx context.Context, ticketID int64) (*TicketDetailView, error) {
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	view := &TicketDetailView{TicketView: s.ticketView(ticket)}

	if category, err := s.categories.GetByID(ctx, ticket.CategoryID); err == nil {
		view.CategoryName = category.Name
	}
	if requester, err := s.users.GetByID(ctx, ticket.UserID); err == nil {
		view.Requester = s.personView(requester)
	}
	if ticket.AssignedUserID != nil {
		if assignee, err := s.users.GetByID(ctx, *ticket.AssignedUserID); err == nil {
			p := s.personView(assignee)
			view.Assignee = &p
		}
	}

	attachments, err := s.attachments.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	view.Attachments = make([]AttachmentView, 0, len(attachments))
	for _, a := range attachments {
		view.Attachments = append(view.Attachments, AttachmentView{
			ID:         a.ID,
			FileName:   s.cipher.DecryptLenient(a.FileName),
			UploadedAt: a.UploadedAt,
		})
	}

	view.Messages, err = s.messageViews(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	view.CC, err = s.participantViews(ctx, s.participants.ListCC, ticketID)
	if err != nil {
		return nil, err
	}
	view.Followers, err = s.participantViews(ctx, s.participants.ListFollowers, ticketID)
	if err != nil {
		return nil, err
	}

	return view, nil
}

// MyRequests lists the caller's tickets straight from the provider.
// The external id from the token claims is preferred; without one the
// resolver gets a chance using the stored account.
func (s *TicketService) MyRequests(ctx context.Context, caller *auth.Principal, page, perPage int) ([]syncpkg.RemoteTicket, int, error) {
	externalID := caller.ExternalID
	if externalID == 0 {
		if user, err := s.users.GetByID(ctx, caller.UserID); err == nil {
			externalID = s.resolver.Resolve(ctx, syncpkg.Account{
				UserID:     user.ID,
				ExternalID: user.ExternalID,
				Email:      s.cipher.DecryptLenient(user.Email),
				Phone:      s.cipher.DecryptLenient(user.Phone),
				Name:       s.cipher.DecryptLenient(user.Name),
				Surname:    s.cipher.DecryptLenient(user.Surname),
			})
		}
	}

	tickets, total, err := s.mirror.ListProviderTickets(ctx, externalID, page, perPage)
	if err != nil {
		return nil, 0, apperrors.NewInternalError(err)
	}
	return tickets, total, nil
}

// Patch updates status, priority and assignment in one round trip.
func (s *TicketService) Patch(ctx context.Context, ticketID int64, in PatchTicketInput) error {
	if in.Status == nil && in.Priority == nil && in.AssignedUserID == nil {
		return apperrors.NewValidationError("nothing to update", nil)
	}

	patch := repository.TicketPatch{AssignedUserID: in.AssignedUserID}
	if in.Status != nil {
		status := strings.ToUpper(strings.TrimSpace(*in.Status))
		if !validStatus(status) {
			return apperrors.NewValidationError("unknown status", map[string]any{"status": status})
		}
		enc := s.cipher.Encrypt(status)
		patch.Status = &enc
	}
	if in.Priority != nil {
		priority := strings.ToUpper(strings.TrimSpace(*in.Priority))
		if !validPriority(priority) {
			return apperrors.NewValidationError("unknown priority", map[string]any{"priority": priority})
		}
		enc := s.cipher.Encrypt(priority)
		patch.Priority = &enc
	}
	if in.AssignedUserID != nil {
		if _, err := s.getUser(ctx, *in.AssignedUserID); err != nil {
			return err
		}
	}

	if err := s.tickets.Patch(ctx, ticketID, patch); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("ticket", map[string]any{"id": ticketID})
		}
		return apperrors.NewInternalError(err)
	}
	return nil
}

// Assign puts the ticket on the requested technician's queue. The
// technician id comes from the request body, not from the caller.
func (s *TicketService) Assign(ctx context.Context, ticketID, technicianID int64) error {
	if _, err := s.getUser(ctx, technicianID); err != nil {
		return err
	}
	if err := s.tickets.Assign(ctx, ticketID, technicianID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewNotFound("ticket", map[string]any{"id": ticketID})
		}
		return apperrors.NewInternalError(err)
	}
	return nil
}

// AddMessage appends a thread entry and bumps the ticket's clock.
func (s *TicketService) AddMessage(ctx context.Context, ticketID, senderID int64, body string, isInternal bool) (*MessageView, error) {
	if strings.TrimSpace(body) == "" {
		return nil, apperrors.NewValidationError("message body is required", nil)
	}
	if _, err := s.getTicket(ctx, ticketID); err != nil {
		return nil, err
	}

	message := &domain.TicketMessage{
		TicketID:     ticketID,
		SenderUserID: senderID,
		Body:         s.cipher.Encrypt(strings.TrimSpace(body)),
		IsInternal:   isInternal,
	}
	if err := s.messages.Create(ctx, message); err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if err := s.tickets.TouchUpdated(ctx, ticketID); err != nil {
		s.logger.Warn("could not bump ticket timestamp",
			zap.Int64("ticket_id", ticketID),
			zap.Error(err))
	}

	return &MessageView{
		ID:          message.ID,
		SenderID:    senderID,
		Body:        strings.TrimSpace(body),
		IsInternal:  isInternal,
		CreatedAt:   message.CreatedAt,
		Attachments: []AttachmentView{},
	}, nil
}

// UploadMessageAttachment stores a file against an existing message.
func (s *TicketService) UploadMessageAttachment(ctx context.Context, messageID int64, file Upload) (*AttachmentView, error) {
	if _, err := s.messages.GetByID(ctx, messageID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("message", map[string]any{"id": messageID})
		}
		return nil, apperrors.NewInternalError(err)
	}

	saved, err := s.store.Save(file.Reader, file.Name)
	if err != nil {
		return nil, err
	}
	attachment := &domain.MessageAttachment{
		MessageID: messageID,
		FileName:  s.cipher.Encrypt(saved.Name),
		FilePath:  s.cipher.Encrypt(saved.Path),
	}
	if err := s.attachments.CreateForMessage(ctx, attachment); err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	return &AttachmentView{
		ID:         attachment.ID,
		FileName:   saved.Name,
		UploadedAt: attachment.UploadedAt,
	}, nil
}

// AddCC subscribes a user as carbon copy. Repeats are no-ops.
func (s *TicketService) AddCC(ctx context.Context, ticketID, userID int64) error {
	return s.addParticipant(ctx, ticketID, userID, s.participants.AddCC)
}

// RemoveCC drops a carbon-copy subscription.
func (s *TicketService) RemoveCC(ctx context.Context, ticketID, userID int64) error {
	return s.removeParticipant(ctx, ticketID, userID, s.participants.RemoveCC)
}

// AddFollower subscribes a follower. Repeats are no-ops.
func (s *TicketService) AddFollower(ctx context.Context, ticketID, userID int64) error {
	return s.addParticipant(ctx, ticketID, userID, s.participants.AddFollower)
}

// RemoveFollower drops a follower subscription.
func (s *TicketService) RemoveFollower(ctx context.Context, ticketID, userID int64) error {
	return s.removeParticipant(ctx, ticketID, userID, s.participants.RemoveFollower)
}

// ListOpenOrUnassigned is the technician queue: every ticket that is
// still open or has nobody assigned.
func (s *TicketService) ListOpenOrUnassigned(ctx context.Context, limit, offset int) ([]TicketView, error) {
	encOpen := s.cipher.Encrypt(string(domain.TicketStatusOpen))
	tickets, err := s.tickets.ListOpenOrUnassigned(ctx, encOpen, limit, offset)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	views := make([]TicketView, 0, len(tickets))
	for _, t := range tickets {
		views = append(views, s.ticketView(&t))
	}
	return views, nil
}

func (s *TicketService) validateCreate(ctx context.Context, in *CreateTicketInput) error {
	details := map[string]any{}
	if strings.TrimSpace(in.Subject) == "" {
		details["subject"] = "required"
	}

	in.Priority = strings.ToUpper(strings.TrimSpace(in.Priority))
	if in.Priority == "" {
		in.Priority = string(domain.TicketPriorityMedium)
	}
	if !validPriority(in.Priority) {
		details["priority"] = "unknown priority"
	}

	for _, file := range in.Files {
		if !s.store.Allowed(file.Name) {
			details["files"] = "file type not allowed: " + file.Name
			break
		}
	}

	if len(details) > 0 {
		return apperrors.NewValidationError("ticket payload invalid", details)
	}

	category, err := s.categories.GetByID(ctx, in.CategoryID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewValidationError("unknown category", map[string]any{"category_id": in.CategoryID})
		}
		return apperrors.NewInternalError(err)
	}
	if !category.IsActive {
		return apperrors.NewValidationError("category is not active", map[string]any{"category_id": in.CategoryID})
	}
	return nil
}

func (s *TicketService) addParticipant(ctx context.Context, ticketID, userID int64, add func(context.Context, int64, int64) error) error {
	if _, err := s.getTicket(ctx, ticketID); err != nil {
		return err
	}
	if _, err := s.getUser(ctx, userID); err != nil {
		return err
	}
	if err := add(ctx, ticketID, userID); err != nil {
		return apperrors.NewInternalError(err)
	}
	return nil
}

func (s *TicketService) removeParticipant(ctx context.Context, ticketID, userID int64, remove func(context.Context, int64, int64) error) error {
	if _, err := s.getTicket(ctx, ticketID); err != nil {
		return err
	}
	if err := remove(ctx, ticketID, userID); err != nil {
		return apperrors.NewInternalError(err)
	}
	return nil
}

func (s *TicketService) participantViews(ctx context.Context, list func(context.Context, int64) ([]repository.Participant, error), ticketID int64) ([]PersonView, error) {
	participants, err := list(ctx, ticketID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	views := make([]PersonView, 0, len(participants))
	for _, p := range participants {
		views = append(views, PersonView{
			ID:      p.UserID,
			Name:    s.cipher.DecryptLenient(p.Name),
			Surname: s.cipher.DecryptLenient(p.Surname),
			Email:   s.cipher.DecryptLenient(p.Email),
		})
	}
	return views, nil
}

func (s *TicketService) messageViews(ctx context.Context, ticketID int64) ([]MessageView, error) {
	messages, err := s.messages.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	ids := make([]int64, 0, len(messages))
	for _, m := range messages {
		ids = append(ids, m.ID)
	}
	attachmentsByMessage, err := s.attachments.ListByMessages(ctx, ids)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	views := make([]MessageView, 0, len(messages))
	for _, m := range messages {
		view := MessageView{
			ID:          m.ID,
			SenderID:    m.SenderUserID,
			Body:        s.cipher.DecryptLenient(m.Body),
			IsInternal:  m.IsInternal,
			CreatedAt:   m.CreatedAt,
			Attachments: []AttachmentView{},
		}
		for _, a := range attachmentsByMessage[m.ID] {
			view.Attachments = append(view.Attachments, AttachmentView{
				ID:         a.ID,
				FileName:   s.cipher.DecryptLenient(a.FileName),
				UploadedAt: a.UploadedAt,
			})
		}
		views = append(views, view)
	}
	return views, nil
}

func (s *TicketService) getTicket(ctx context.Context, id int64) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"id": id})
		}
		return nil, apperrors.NewInternalError(err)
	}
	return ticket, nil
}

func (s *TicketService) getUser(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("user", map[string]any{"id": id})
		}
		return nil, apperrors.NewInternalError(err)
	}
	return user, nil
}

func (s *TicketService) callerPhone(ctx context.Context, userID int64) string {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return ""
	}
	return s.cipher.DecryptLenient(user.Phone)
}

func (s *TicketService) ticketView(t *domain.Ticket) TicketView {
	return TicketView{
		ID:             t.ID,
		Subject:        s.cipher.DecryptLenient(t.Subject),
		Description:    s.cipher.DecryptLenient(t.Description),
		Status:         s.cipher.DecryptLenient(t.Status),
		Priority:       s.cipher.DecryptLenient(t.Priority),
		CategoryID:     t.CategoryID,
		RequesterID:    t.UserID,
		AssignedUserID: t.AssignedUserID,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
}

func (s *TicketService) personView(u *domain.User) PersonView {
	return PersonView{
		ID:      u.ID,
		Name:    s.cipher.DecryptLenient(u.Name),
		Surname: s.cipher.DecryptLenient(u.Surname),
		Email:   s.cipher.DecryptLenient(u.Email),
	}
}

func validStatus(status string) bool {
	switch domain.TicketStatus(status) {
	case domain.TicketStatusOpen, domain.TicketStatusInProgress,
		domain.TicketStatusResolved, domain.TicketStatusClosed:
		return true
	}
	return false
}

func validPriority(priority string) bool {
	switch domain.TicketPriority(priority) {
	case domain.TicketPriorityLow, domain.TicketPriorityMedium,
		domain.TicketPriorityHigh, domain.TicketPriorityUrgent:
		return true
	}
	return false
}
