package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/crypto"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/storage"
	syncpkg "github.com/spec-kit/helpdesk-service/internal/sync"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

type fakeTicketRepo struct {
	nextID  int64
	tickets map[int64]*domain.Ticket
	touched []int64
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{tickets: map[int64]*domain.Ticket{}}
}

func (f *fakeTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	f.nextID++
	ticket.ID = f.nextID
	ticket.CreatedAt = time.Now()
	ticket.UpdatedAt = ticket.CreatedAt
	clone := *ticket
	f.tickets[ticket.ID] = &clone
	return nil
}

func (f *fakeTicketRepo) GetByID(_ context.Context, id int64) (*domain.Ticket, error) {
	ticket, ok := f.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *ticket
	return &clone, nil
}

func (f *fakeTicketRepo) ListByRequester(_ context.Context, userID int64, _, _ int) ([]domain.Ticket, error) {
	var out []domain.Ticket
	for _, t := range f.tickets {
		if t.UserID == userID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeTicketRepo) ListOpenOrUnassigned(_ context.Context, encryptedOpenStatus string, _, _ int) ([]domain.Ticket, error) {
	var out []domain.Ticket
	for _, t := range f.tickets {
		if t.Status == encryptedOpenStatus || t.AssignedUserID == nil {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeTicketRepo) Patch(_ context.Context, id int64, patch repository.TicketPatch) error {
	ticket, ok := f.tickets[id]
	if !ok {
		return pgx.ErrNoRows
	}
	if patch.Status != nil {
		ticket.Status = *patch.Status
	}
	if patch.Priority != nil {
		ticket.Priority = *patch.Priority
	}
	if patch.AssignedUserID != nil {
		ticket.AssignedUserID = patch.AssignedUserID
	}
	ticket.UpdatedAt = time.Now()
	return nil
}

func (f *fakeTicketRepo) Assign(_ context.Context, id, technicianID int64) error {
	ticket, ok := f.tickets[id]
	if !ok {
		return pgx.ErrNoRows
	}
	ticket.AssignedUserID = &technicianID
	ticket.UpdatedAt = time.Now()
	return nil
}

func (f *fakeTicketRepo) TouchUpdated(_ context.Context, id int64) error {
	f.touched = append(f.touched, id)
	if ticket, ok := f.tickets[id]; ok {
		ticket.UpdatedAt = time.Now()
	}
	return nil
}

type fakeMessageRepo struct {
	nextID   int64
	messages map[int64]*domain.TicketMessage
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{messages: map[int64]*domain.TicketMessage{}}
}

func (f *fakeMessageRepo) Create(_ context.Context, message *domain.TicketMessage) error {
	f.nextID++
	message.ID = f.nextID
	message.CreatedAt = time.Now()
	clone := *message
	f.messages[message.ID] = &clone
	return nil
}

func (f *fakeMessageRepo) GetByID(_ context.Context, id int64) (*domain.TicketMessage, error) {
	message, ok := f.messages[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *message
	return &clone, nil
}

func (f *fakeMessageRepo) ListByTicket(_ context.Context, ticketID int64) ([]domain.TicketMessage, error) {
	var out []domain.TicketMessage
	for i := int64(1); i <= f.nextID; i++ {
		if m, ok := f.messages[i]; ok && m.TicketID == ticketID {
			out = append(out, *m)
		}
	}
	return out, nil
}

type fakeAttachmentRepo struct {
	nextID      int64
	forTickets  map[int64][]domain.TicketAttachment
	forMessages map[int64][]domain.MessageAttachment
}

func newFakeAttachmentRepo() *fakeAttachmentRepo {
	return &fakeAttachmentRepo{
		forTickets:  map[int64][]domain.TicketAttachment{},
		forMessages: map[int64][]domain.MessageAttachment{},
	}
}

func (f *fakeAttachmentRepo) CreateForTicket(_ context.Context, a *domain.TicketAttachment) error {
	f.nextID++
	a.ID = f.nextID
	a.UploadedAt = time.Now()
	f.forTickets[a.TicketID] = append(f.forTickets[a.TicketID], *a)
	return nil
}

func (f *fakeAttachmentRepo) ListByTicket(_ context.Context, ticketID int64) ([]domain.TicketAttachment, error) {
	return f.forTickets[ticketID], nil
}

func (f *fakeAttachmentRepo) CreateForMessage(_ context.Context, a *domain.MessageAttachment) error {
	f.nextID++
	a.ID = f.nextID
	a.UploadedAt = time.Now()
	f.forMessages[a.MessageID] = append(f.forMessages[a.MessageID], *a)
	return nil
}

func (f *fakeAttachmentRepo) ListByMessages(_ context.Context, messageIDs []int64) (map[int64][]domain.MessageAttachment, error) {
	out := map[int64][]domain.MessageAttachment{}
	for _, id := range messageIDs {
		if rows, ok := f.forMessages[id]; ok {
			out[id] = rows
		}
	}
	return out, nil
}

type pair struct{ ticketID, userID int64 }

type fakeParticipantRepo struct {
	users *fakeUserRepo
	cc    map[pair]bool
	fol   map[pair]bool
}

func newFakeParticipantRepo(users *fakeUserRepo) *fakeParticipantRepo {
	return &fakeParticipantRepo{users: users, cc: map[pair]bool{}, fol: map[pair]bool{}}
}

func (f *fakeParticipantRepo) AddCC(_ context.Context, ticketID, userID int64) error {
	f.cc[pair{ticketID, userID}] = true
	return nil
}

func (f *fakeParticipantRepo) RemoveCC(_ context.Context, ticketID, userID int64) error {
	delete(f.cc, pair{ticketID, userID})
	return nil
}

func (f *fakeParticipantRepo) ListCC(ctx context.Context, ticketID int64) ([]repository.Participant, error) {
	return f.list(ctx, f.cc, ticketID)
}

func (f *fakeParticipantRepo) AddFollower(_ context.Context, ticketID, userID int64) error {
	f.fol[pair{ticketID, userID}] = true
	return nil
}

func (f *fakeParticipantRepo) RemoveFollower(_ context.Context, ticketID, userID int64) error {
	delete(f.fol, pair{ticketID, userID})
	return nil
}

func (f *fakeParticipantRepo) ListFollowers(ctx context.Context, ticketID int64) ([]repository.Participant, error) {
	return f.list(ctx, f.fol, ticketID)
}

func (f *fakeParticipantRepo) list(ctx context.Context, set map[pair]bool, ticketID int64) ([]repository.Participant, error) {
	var out []repository.Participant
	for p := range set {
		if p.ticketID != ticketID {
			continue
		}
		user, err := f.users.GetByID(ctx, p.userID)
		if err != nil {
			continue
		}
		out = append(out, repository.Participant{
			UserID:  user.ID,
			Name:    user.Name,
			Surname: user.Surname,
			Email:   user.Email,
		})
	}
	return out, nil
}

type fakeCategoryRepo struct {
	nextID     int64
	categories map[int64]*domain.Category
}

func newFakeCategoryRepo() *fakeCategoryRepo {
	return &fakeCategoryRepo{categories: map[int64]*domain.Category{}}
}

func (f *fakeCategoryRepo) Create(_ context.Context, c *domain.Category) error {
	f.nextID++
	c.ID = f.nextID
	c.CreatedAt = time.Now()
	clone := *c
	f.categories[c.ID] = &clone
	return nil
}

func (f *fakeCategoryRepo) GetByID(_ context.Context, id int64) (*domain.Category, error) {
	c, ok := f.categories[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *c
	return &clone, nil
}

func (f *fakeCategoryRepo) List(_ context.Context) ([]domain.Category, error) {
	var out []domain.Category
	for _, c := range f.categories {
		out = append(out, *c)
	}
	return out, nil
}

func (f *fakeCategoryRepo) ListActive(_ context.Context) ([]domain.Category, error) {
	var out []domain.Category
	for _, c := range f.categories {
		if c.IsActive {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeCategoryRepo) Update(_ context.Context, c *domain.Category) error {
	stored, ok := f.categories[c.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	stored.Name = c.Name
	stored.IsActive = c.IsActive
	return nil
}

func (f *fakeCategoryRepo) Deactivate(_ context.Context, id int64) error {
	c, ok := f.categories[id]
	if !ok {
		return pgx.ErrNoRows
	}
	c.IsActive = false
	return nil
}

type stubMirror struct {
	result      syncpkg.SyncResult
	syncCalls   int
	lastTicket  syncpkg.LocalTicket
	lastContact syncpkg.Contact

	remote  []syncpkg.RemoteTicket
	total   int
	listErr error
	lastExt int64
}

func (m *stubMirror) Sync(_ context.Context, ticket syncpkg.LocalTicket, contact syncpkg.Contact) syncpkg.SyncResult {
	m.syncCalls++
	m.lastTicket = ticket
	m.lastContact = contact
	return m.result
}

func (m *stubMirror) ListProviderTickets(_ context.Context, externalID int64, _, _ int) ([]syncpkg.RemoteTicket, int, error) {
	m.lastExt = externalID
	if m.listErr != nil {
		return nil, 0, m.listErr
	}
	return m.remote, m.total, nil
}

type ticketFixture struct {
	svc      *TicketService
	tickets  *fakeTicketRepo
	messages *fakeMessageRepo
	attach   *fakeAttachmentRepo
	parts    *fakeParticipantRepo
	users    *fakeUserRepo
	cats     *fakeCategoryRepo
	mirror   *stubMirror
	resolver *stubResolver
	cipher   *crypto.FieldCipher
}

func newTicketFixture(t *testing.T) *ticketFixture {
	t.Helper()
	cipher, err := crypto.NewFieldCipher([]byte(testAESKey), []byte(testAESIV))
	require.NoError(t, err)

	users := newFakeUserRepo()
	fx := &ticketFixture{
		tickets:  newFakeTicketRepo(),
		messages: newFakeMessageRepo(),
		attach:   newFakeAttachmentRepo(),
		parts:    newFakeParticipantRepo(users),
		users:    users,
		cats:     newFakeCategoryRepo(),
		mirror:   &stubMirror{},
		resolver: &stubResolver{},
		cipher:   cipher,
	}
	fx.svc = NewTicketService(TicketDependencies{
		TicketRepo:      fx.tickets,
		MessageRepo:     fx.messages,
		AttachmentRepo:  fx.attach,
		ParticipantRepo: fx.parts,
		UserRepo:        fx.users,
		CategoryRepo:    fx.cats,
		Cipher:          cipher,
		Mirror:          fx.mirror,
		Resolver:        fx.resolver,
		Store: storage.NewStore(config.UploadConfig{
			Dir:         t.TempDir(),
			AllowedExts: []string{"png", "jpg", "jpeg", "pdf", "docx", "xlsx"},
		}),
		Metrics: observability.NewMetrics(),
		Logger:  zap.NewNop(),
	})
	return fx
}

func (fx *ticketFixture) seedUser(t *testing.T, name, surname, email string) *domain.User {
	t.Helper()
	user := &domain.User{
		Name:     fx.cipher.Encrypt(name),
		Surname:  fx.cipher.Encrypt(surname),
		Phone:    fx.cipher.Encrypt("05551234567"),
		Email:    fx.cipher.Encrypt(email),
		Password: fx.cipher.Encrypt("irrelevant"),
		Role:     fx.cipher.Encrypt("CUSTOMER"),
		IsActive: true,
	}
	require.NoError(t, fx.users.Create(context.Background(), user))
	return user
}

func (fx *ticketFixture) seedCategory(t *testing.T, name string, active bool) *domain.Category {
	t.Helper()
	category := &domain.Category{Name: name, IsActive: active}
	require.NoError(t, fx.cats.Create(context.Background(), category))
	return category
}

func principalFor(user *domain.User, fx *ticketFixture) *auth.Principal {
	return &auth.Principal{
		UserID:     user.ID,
		Name:       fx.cipher.DecryptLenient(user.Name),
		Surname:    fx.cipher.DecryptLenient(user.Surname),
		Email:      fx.cipher.DecryptLenient(user.Email),
		ExternalID: user.ExternalID,
	}
}

func TestTicketService_CreateEncryptsAndMirrors(t *testing.T) {
	fx := newTicketFixture(t)
	user := fx.seedUser(t, "Ali", "Veli", "ali@example.com")
	category := fx.seedCategory(t, "Hardware", true)
	fx.mirror.result = syncpkg.SyncResult{Mirrored: true, ExternalKey: "TICKET-5"}

	result, err := fx.svc.Create(context.Background(), principalFor(user, fx), CreateTicketInput{
		Subject:     "Printer down",
		Description: "No toner",
		Priority:    "high",
		CategoryID:  category.ID,
		Files: []Upload{
			{Name: "photo.png", Reader: strings.NewReader("img")},
		},
	})
	require.NoError(t, err)
	assert.True(t, result.Mirrored)
	assert.Equal(t, "TICKET-5", result.ExternalKey)

	stored := fx.tickets.tickets[result.TicketID]
	assert.NotEqual(t, "Printer down", stored.Subject)
	subject, err := fx.cipher.Decrypt(stored.Subject)
	require.NoError(t, err)
	assert.Equal(t, "Printer down", subject)
	status, err := fx.cipher.Decrypt(stored.Status)
	require.NoError(t, err)
	assert.Equal(t, "OPEN", status)
	priority, err := fx.cipher.Decrypt(stored.Priority)
	require.NoError(t, err)
	assert.Equal(t, "HIGH", priority)

	assert.Equal(t, 1, fx.mirror.syncCalls)
	assert.Equal(t, "Printer down", fx.mirror.lastTicket.Subject)
	assert.Equal(t, "ali@example.com", fx.mirror.lastContact.Email)
	assert.Equal(t, "05551234567", fx.mirror.lastContact.Phone)

	attachments := fx.attach.forTickets[result.TicketID]
	require.Len(t, attachments, 1)
	fileName, err := fx.cipher.Decrypt(attachments[0].FileName)
	require.NoError(t, err)
	assert.Equal(t, "photo.png", fileName)
}

func TestTicketService_CreateMirrorFailureKeepsLocalRecord(t *testing.T) {
	fx := newTicketFixture(t)
	user := fx.seedUser(t, "Ali", "Veli", "ali@example.com")
	category := fx.seedCategory(t, "Hardware", true)
	fx.mirror.result = syncpkg.SyncResult{}

	result, err := fx.svc.Create(context.Background(), principalFor(user, fx), CreateTicketInput{
		Subject:    "Printer down",
		CategoryID: category.ID,
	})
	require.NoError(t, err)
	assert.False(t, result.Mirrored)
	assert.NotZero(t, result.TicketID)
	assert.Contains(t, fx.tickets.tickets, result.TicketID)
}

func TestTicketService_CreateValidation(t *testing.T) {
	fx := newTicketFixture(t)
	user := fx.seedUser(t, "Ali", "Veli", "ali@example.com")
	active := fx.seedCategory(t, "Hardware", true)
	inactive := fx.seedCategory(t, "Legacy", false)
	principal := principalFor(user, fx)

	cases := []struct {
		name  string
		input CreateTicketInput
	}{
		{"missing subject", CreateTicketInput{CategoryID: active.ID}},
		{"unknown priority", CreateTicketInput{Subject: "s", Priority: "WHENEVER", CategoryID: active.ID}},
		{"unknown category", CreateTicketInput{Subject: "s", CategoryID: 999}},
		{"inactive category", CreateTicketInput{Subject: "s", CategoryID: inactive.ID}},
		{"disallowed file", CreateTicketInput{Subject: "s", CategoryID: active.ID,
			Files: []Upload{{Name: "virus.exe", Reader: strings.NewReader("x")}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := fx.svc.Create(context.Background(), principal, tc.input)
			require.Error(t, err)
			var domainErr *apperrors.DomainError
			require.ErrorAs(t, err, &domainErr)
			assert.Equal(t, "VALIDATION_FAILED", domainErr.Code)
		})
	}
	assert.Zero(t, fx.mirror.syncCalls)
}

func TestTicketService_DetailDecryptsAggregate(t *testing.T) {
	fx := newTicketFixture(t)
	requester := fx.seedUser(t, "Ali", "Veli", "ali@example.com")
	tech := fx.seedUser(t, "Ayşe", "Demir", "ayse@example.com")
	cc := fx.seedUser(t, "Can", "Kaya", "can@example.com")
	category := fx.seedCategory(t, "Hardware", true)

	result, err := fx.svc.Create(context.Background(), principalFor(requester, fx), CreateTicketInput{
		Subject:     "Printer down",
		Description: "No toner",
		CategoryID:  category.ID,
	})
	require.NoError(t, err)

	require.NoError(t, fx.svc.Assign(context.Background(), result.TicketID, tech.ID))
	require.NoError(t, fx.svc.AddCC(context.Background(), result.TicketID, cc.ID))
	_, err = fx.svc.AddMessage(context.Background(), result.TicketID, tech.ID, "On it", true)
	require.NoError(t, err)

	detail, err := fx.svc.Detail(context.Background(), result.TicketID)
	require.NoError(t, err)
	assert.Equal(t, "Printer down", detail.Subject)
	assert.Equal(t, "No toner", detail.Description)
	assert.Equal(t, "OPEN", detail.Status)
	assert.Equal(t, "Hardware", detail.CategoryName)
	assert.Equal(t, "Ali", detail.Requester.Name)
	require.NotNil(t, detail.Assignee)
	assert.Equal(t, "Ayşe", detail.Assignee.Name)
	require.Len(t, detail.CC, 1)
	assert.Equal(t, "can@example.com", detail.CC[0].Email)
	require.Len(t, detail.Messages, 1)
	assert.Equal(t, "On it", detail.Messages[0].Body)
	assert.True(t, detail.Messages[0].IsInternal)
}

func TestTicketService_DetailToleratesForeignCiphertext(t *testing.T) {
	fx := newTicketFixture(t)
	requester := fx.seedUser(t, "Ali", "Veli", "ali@example.com")
	category := fx.seedCategory(t, "Hardware", true)

	result, err := fx.svc.Create(context.Background(), principalFor(requester, fx), CreateTicketInput{
		Subject:    "Printer down",
		CategoryID: category.ID,
	})
	require.NoError(t, err)

	fx.tickets.tickets[result.TicketID].Subject = "legacy-plaintext-subject"

	detail, err := fx.svc.Detail(context.Background(), result.TicketID)
	require.NoError(t, err)
	assert.Equal(t, "legacy-plaintext-subject", detail.Subject)
}

func TestTicketService_DetailNotFound(t *testing.T) {
	fx := newTicketFixture(t)

	_, err := fx.svc.Detail(context.Background(), 42)
	require.Error(t, err)
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "NOT_FOUND", domainErr.Code)
}

func TestTicketService_MyRequestsUsesClaimExternalID(t *testing.T) {
	fx := newTicketFixture(t)
	user := fx.seedUser(t, "Ali", "Veli", "ali@example.com")
	fx.mirror.remote = []syncpkg.RemoteTicket{{Key: "TICKET-1", Subject: "Broken screen"}}
	fx.mirror.total = 1

	principal := principalFor(user, fx)
	principal.ExternalID = 77

	tickets, total, err := fx.svc.MyRequests(context.Background(), principal, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, tickets, 1)
	assert.Equal(t, int64(77), fx.mirror.lastExt)
	assert.Zero(t, fx.resolver.calls)
}

func TestTicketService_MyRequestsResolvesWhenClaimMissing(t *testing.T) {
	fx := newTicketFixture(t)
	user := fx.seedUser(t, "Ali", "Veli", "ali@example.com")
	fx.resolver.id = 88

	_, _, err := fx.svc.MyRequests(context.Background(), principalFor(user, fx), 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, fx.resolver.calls)
	assert.Equal(t, "ali@example.com", fx.resolver.last.Email)
	assert.Equal(t, int64(88), fx.mirror.lastExt)
}

func TestTicketService_PatchReencryptsStatus(t *testing.T) {
	fx := newTicketFixture(t)
	user := fx.seedUser(t, "Ali", "Veli", "ali@example.com")
	category := fx.seedCategory(t, "Hardware", true)
	result, err := fx.svc.Create(context.Background(), principalFor(user, fx), CreateTicketInput{
		Subject:    "Printer down",
		CategoryID: category.ID,
	})
	require.NoError(t, err)

	status := "resolved"
	require.NoError(t, fx.svc.Patch(context.Background(), result.TicketID, PatchTicketInput{Status: &status}))

	stored, err := fx.cipher.Decrypt(fx.tickets.tickets[result.TicketID].Status)
	require.NoError(t, err)
	assert.Equal(t, "RESOLVED", stored)

	bad := "SHREDDED"
	err = fx.svc.Patch(context.Background(), result.TicketID, PatchTicketInput{Status: &bad})
	require.Error(t, err)
}

func TestTicketService_AssignSetsRequestedTechnician(t *testing.T) {
	fx := newTicketFixture(t)
	requester := fx.seedUser(t, "Ali", "Veli", "ali@example.com")
	tech := fx.seedUser(t, "Ayşe", "Demir", "ayse@example.com")
	category := fx.seedCategory(t, "Hardware", true)
	result, err := fx.svc.Create(context.Background(), principalFor(requester, fx), CreateTicketInput{
		Subject:    "Printer down",
		CategoryID: category.ID,
	})
	require.NoError(t, err)

	require.NoError(t, fx.svc.Assign(context.Background(), result.TicketID, tech.ID))

	stored := fx.tickets.tickets[result.TicketID]
	require.NotNil(t, stored.AssignedUserID)
	assert.Equal(t, tech.ID, *stored.AssignedUserID)

	err = fx.svc.Assign(context.Background(), result.TicketID, 999)
	require.Error(t, err)
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "NOT_FOUND", domainErr.Code)
}

func TestTicketService_AddMessageBumpsTicket(t *testing.T) {
	fx := newTicketFixture(t)
	user := fx.seedUser(t, "Ali", "Veli", "ali@example.com")
	category := fx.seedCategory(t, "Hardware", true)
	result, err := fx.svc.Create(context.Background(), principalFor(user, fx), CreateTicketInput{
		Subject:    "Printer down",
		CategoryID: category.ID,
	})
	require.NoError(t, err)

	message, err := fx.svc.AddMessage(context.Background(), result.TicketID, user.ID, "any update?", false)
	require.NoError(t, err)
	assert.Equal(t, "any update?", message.Body)
	assert.Contains(t, fx.tickets.touched, result.TicketID)

	stored := fx.messages.messages[message.ID]
	body, err := fx.cipher.Decrypt(stored.Body)
	require.NoError(t, err)
	assert.Equal(t, "any update?", body)

	_, err = fx.svc.AddMessage(context.Background(), result.TicketID, user.ID, "  ", false)
	require.Error(t, err)
}

func TestTicketService_ParticipantsAreIdempotent(t *testing.T) {
	fx := newTicketFixture(t)
	user := fx.seedUser(t, "Ali", "Veli", "ali@example.com")
	other := fx.seedUser(t, "Can", "Kaya", "can@example.com")
	category := fx.seedCategory(t, "Hardware", true)
	result, err := fx.svc.Create(context.Background(), principalFor(user, fx), CreateTicketInput{
		Subject:    "Printer down",
		CategoryID: category.ID,
	})
	require.NoError(t, err)

	require.NoError(t, fx.svc.AddFollower(context.Background(), result.TicketID, other.ID))
	require.NoError(t, fx.svc.AddFollower(context.Background(), result.TicketID, other.ID))

	detail, err := fx.svc.Detail(context.Background(), result.TicketID)
	require.NoError(t, err)
	assert.Len(t, detail.Followers, 1)

	require.NoError(t, fx.svc.RemoveFollower(context.Background(), result.TicketID, other.ID))
	detail, err = fx.svc.Detail(context.Background(), result.TicketID)
	require.NoError(t, err)
	assert.Empty(t, detail.Followers)

	err = fx.svc.AddCC(context.Background(), result.TicketID, 999)
	require.Error(t, err)
}

func TestTicketService_ListOpenOrUnassignedUsesEncryptedPredicate(t *testing.T) {
	fx := newTicketFixture(t)
	user := fx.seedUser(t, "Ali", "Veli", "ali@example.com")
	tech := fx.seedUser(t, "Ayşe", "Demir", "ayse@example.com")
	category := fx.seedCategory(t, "Hardware", true)
	principal := principalFor(user, fx)

	first, err := fx.svc.Create(context.Background(), principal, CreateTicketInput{
		Subject: "open one", CategoryID: category.ID,
	})
	require.NoError(t, err)
	second, err := fx.svc.Create(context.Background(), principal, CreateTicketInput{
		Subject: "closed but unassigned", CategoryID: category.ID,
	})
	require.NoError(t, err)
	third, err := fx.svc.Create(context.Background(), principal, CreateTicketInput{
		Subject: "closed and assigned", CategoryID: category.ID,
	})
	require.NoError(t, err)

	closed := "CLOSED"
	require.NoError(t, fx.svc.Patch(context.Background(), second.TicketID, PatchTicketInput{Status: &closed}))
	require.NoError(t, fx.svc.Patch(context.Background(), third.TicketID, PatchTicketInput{Status: &closed}))
	require.NoError(t, fx.svc.Assign(context.Background(), third.TicketID, tech.ID))

	views, err := fx.svc.ListOpenOrUnassigned(context.Background(), 50, 0)
	require.NoError(t, err)

	ids := map[int64]string{}
	for _, v := range views {
		ids[v.ID] = v.Status
	}
	assert.Contains(t, ids, first.TicketID)
	assert.Contains(t, ids, second.TicketID)
	assert.NotContains(t, ids, third.TicketID)
	assert.Equal(t, "OPEN", ids[first.TicketID])
}

func TestTicketService_UploadMessageAttachment(t *testing.T) {
	fx := newTicketFixture(t)
	user := fx.seedUser(t, "Ali", "Veli", "ali@example.com")
	category := fx.seedCategory(t, "Hardware", true)
	result, err := fx.svc.Create(context.Background(), principalFor(user, fx), CreateTicketInput{
		Subject:    "Printer down",
		CategoryID: category.ID,
	})
	require.NoError(t, err)
	message, err := fx.svc.AddMessage(context.Background(), result.TicketID, user.ID, "see attached", false)
	require.NoError(t, err)

	attachment, err := fx.svc.UploadMessageAttachment(context.Background(), message.ID, Upload{
		Name:   "scan.pdf",
		Reader: strings.NewReader("pdf-bytes"),
	})
	require.NoError(t, err)
	assert.Equal(t, "scan.pdf", attachment.FileName)

	rows := fx.attach.forMessages[message.ID]
	require.Len(t, rows, 1)

	_, err = fx.svc.UploadMessageAttachment(context.Background(), 999, Upload{
		Name:   "scan.pdf",
		Reader: strings.NewReader("pdf-bytes"),
	})
	require.Error(t, err)

	_, err = fx.svc.UploadMessageAttachment(context.Background(), message.ID, Upload{
		Name:   "tool.exe",
		Reader: strings.NewReader("bin"),
	})
	require.Error(t, err)
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "VALIDATION_FAILED", domainErr.Code)
}
