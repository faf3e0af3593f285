package service

import (
	"context"
	"errors"
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
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/persistence"
	syncpkg "github.com/spec-kit/helpdesk-service/internal/sync"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

const (
	testAESKey = "0123456789abcdef0123456789abcdef"
	testAESIV  = "fedcba9876543210"
)

type fakeUserRepo struct {
	nextID int64
	users  map[int64]*domain.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[int64]*domain.User{}}
}

func (f *fakeUserRepo) Create(_ context.Context, user *domain.User) error {
	f.nextID++
	user.ID = f.nextID
	user.CreatedAt = time.Now()
	clone := *user
	f.users[user.ID] = &clone
	return nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id int64) (*domain.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *user
	return &clone, nil
}

func (f *fakeUserRepo) GetActiveByEmail(_ context.Context, encryptedEmail string) (*domain.User, error) {
	for _, user := range f.users {
		if user.Email == encryptedEmail && user.IsActive {
			clone := *user
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeUserRepo) ExistsActiveEmail(ctx context.Context, encryptedEmail string) (bool, error) {
	_, err := f.GetActiveByEmail(ctx, encryptedEmail)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func (f *fakeUserRepo) SetExternalID(_ context.Context, userID, externalID int64) error {
	user, ok := f.users[userID]
	if !ok {
		return pgx.ErrNoRows
	}
	user.ExternalID = externalID
	return nil
}

func (f *fakeUserRepo) UpdatePassword(_ context.Context, userID int64, encryptedHash string) error {
	user, ok := f.users[userID]
	if !ok {
		return pgx.ErrNoRows
	}
	user.Password = encryptedHash
	return nil
}

func (f *fakeUserRepo) Deactivate(_ context.Context, userID int64) error {
	user, ok := f.users[userID]
	if !ok {
		return pgx.ErrNoRows
	}
	user.IsActive = false
	return nil
}

type fakeResetRepo struct {
	nextID int64
	resets map[string]*domain.PasswordReset
}

func newFakeResetRepo() *fakeResetRepo {
	return &fakeResetRepo{resets: map[string]*domain.PasswordReset{}}
}

func (f *fakeResetRepo) Create(_ context.Context, reset *domain.PasswordReset) error {
	f.nextID++
	reset.ID = f.nextID
	reset.CreatedAt = time.Now()
	clone := *reset
	f.resets[reset.Token] = &clone
	return nil
}

func (f *fakeResetRepo) GetValidByToken(_ context.Context, token string) (*domain.PasswordReset, error) {
	reset, ok := f.resets[token]
	if !ok || reset.UsedAt != nil || time.Now().After(reset.ExpiresAt) {
		return nil, pgx.ErrNoRows
	}
	clone := *reset
	return &clone, nil
}

func (f *fakeResetRepo) MarkUsed(_ context.Context, id int64) error {
	for _, reset := range f.resets {
		if reset.ID == id && reset.UsedAt == nil {
			now := time.Now()
			reset.UsedAt = &now
			return nil
		}
	}
	return pgx.ErrNoRows
}

type stubResolver struct {
	id    int64
	calls int
	last  syncpkg.Account
}

func (s *stubResolver) Resolve(_ context.Context, acc syncpkg.Account) int64 {
	s.calls++
	s.last = acc
	if acc.ExternalID != 0 {
		return acc.ExternalID
	}
	return s.id
}

type fakeCodeStore struct {
	codes map[int64]string
}

func newFakeCodeStore() *fakeCodeStore {
	return &fakeCodeStore{codes: map[int64]string{}}
}

func (f *fakeCodeStore) StoreOneTimeCode(_ context.Context, userID int64, code string, _ time.Duration) error {
	f.codes[userID] = code
	return nil
}

func (f *fakeCodeStore) ConsumeOneTimeCode(_ context.Context, userID int64, code string) error {
	stored, ok := f.codes[userID]
	if !ok || stored != code {
		return persistence.ErrCodeNotFound
	}
	delete(f.codes, userID)
	return nil
}

type captureDispatcher struct {
	published []events.Event
}

func (d *captureDispatcher) Publish(_ context.Context, e events.Event) error {
	d.published = append(d.published, e)
	return nil
}

func (d *captureDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *captureDispatcher) byType(t events.EventType) []events.Event {
	var out []events.Event
	for _, e := range d.published {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type authFixture struct {
	svc        *AuthService
	users      *fakeUserRepo
	resets     *fakeResetRepo
	resolver   *stubResolver
	codes      *fakeCodeStore
	dispatcher *captureDispatcher
	cipher     *crypto.FieldCipher
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	cipher, err := crypto.NewFieldCipher([]byte(testAESKey), []byte(testAESIV))
	require.NoError(t, err)

	fx := &authFixture{
		users:      newFakeUserRepo(),
		resets:     newFakeResetRepo(),
		resolver:   &stubResolver{},
		codes:      newFakeCodeStore(),
		dispatcher: &captureDispatcher{},
		cipher:     cipher,
	}
	fx.svc = NewAuthService(config.AuthConfig{
		JWTSecret:               "test-secret",
		BcryptCost:              4,
		PasswordResetTTLMinutes: 30,
		OTPTTLSeconds:           300,
	}, AuthDependencies{
		UserRepo:          fx.users,
		PasswordResetRepo: fx.resets,
		Cipher:            cipher,
		Verifier:          auth.NewCredentialVerifier(cipher, 4),
		Tokens:            auth.NewTokenManager("test-secret"),
		Resolver:          fx.resolver,
		Codes:             fx.codes,
		Dispatcher:        fx.dispatcher,
		Logger:            zap.NewNop(),
	})
	return fx
}

func registerInput() RegisterInput {
	return RegisterInput{
		Name:     "Ali",
		Surname:  "Veli",
		Phone:    "05551234567",
		Email:    "ali@example.com",
		Password: "s3cret!",
	}
}

func TestAuthService_RegisterEncryptsEverything(t *testing.T) {
	fx := newAuthFixture(t)
	fx.resolver.id = 77

	account, err := fx.svc.Register(context.Background(), registerInput())
	require.NoError(t, err)
	assert.Equal(t, "Ali", account.Name)
	assert.Equal(t, "ali@example.com", account.Email)
	assert.Equal(t, "CUSTOMER", account.Role)
	assert.Equal(t, int64(77), account.ExternalID)

	stored := fx.users.users[account.ID]
	assert.NotEqual(t, "Ali", stored.Name)
	assert.NotEqual(t, "ali@example.com", stored.Email)
	name, err := fx.cipher.Decrypt(stored.Name)
	require.NoError(t, err)
	assert.Equal(t, "Ali", name)

	sealedHash, err := fx.cipher.Decrypt(stored.Password)
	require.NoError(t, err)
	assert.Contains(t, sealedHash, "$2a$")

	registered := fx.dispatcher.byType(events.EventUserRegistered)
	require.Len(t, registered, 1)
	assert.Equal(t, "ali@example.com", registered[0].Recipient.Email)
}

func TestAuthService_RegisterDuplicateEmail(t *testing.T) {
	fx := newAuthFixture(t)

	_, err := fx.svc.Register(context.Background(), registerInput())
	require.NoError(t, err)

	_, err = fx.svc.Register(context.Background(), registerInput())
	require.Error(t, err)
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "CONFLICT", domainErr.Code)
}

func TestAuthService_RegisterValidation(t *testing.T) {
	fx := newAuthFixture(t)

	_, err := fx.svc.Register(context.Background(), RegisterInput{Email: "not-an-email", Password: "x"})
	require.Error(t, err)
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "VALIDATION_FAILED", domainErr.Code)
}

func TestAuthService_LoginRoundtrip(t *testing.T) {
	fx := newAuthFixture(t)
	_, err := fx.svc.Register(context.Background(), registerInput())
	require.NoError(t, err)

	account, session, err := fx.svc.Login(context.Background(), "ali@example.com", "s3cret!", false)
	require.NoError(t, err)
	assert.Equal(t, "Ali", account.Name)
	assert.NotEmpty(t, session.Token)
	assert.WithinDuration(t, time.Now().Add(8*time.Hour), session.ExpiresAt, 5*time.Second)

	_, remembered, err := fx.svc.Login(context.Background(), "ali@example.com", "s3cret!", true)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), remembered.ExpiresAt, 5*time.Second)
}

func TestAuthService_LoginRejectsBadCredentials(t *testing.T) {
	fx := newAuthFixture(t)
	_, err := fx.svc.Register(context.Background(), registerInput())
	require.NoError(t, err)

	_, _, err = fx.svc.Login(context.Background(), "ali@example.com", "wrong", false)
	assertUnauthorized(t, err)

	_, _, err = fx.svc.Login(context.Background(), "nobody@example.com", "s3cret!", false)
	assertUnauthorized(t, err)
}

func TestAuthService_LoginTreatsCorruptStoredPasswordAsInvalid(t *testing.T) {
	fx := newAuthFixture(t)
	account, err := fx.svc.Register(context.Background(), registerInput())
	require.NoError(t, err)

	fx.users.users[account.ID].Password = "not-a-cipher-token"

	_, _, err = fx.svc.Login(context.Background(), "ali@example.com", "s3cret!", false)
	assertUnauthorized(t, err)
}

func TestAuthService_LoginResolvesExternalID(t *testing.T) {
	fx := newAuthFixture(t)
	fx.resolver.id = 0
	_, err := fx.svc.Register(context.Background(), registerInput())
	require.NoError(t, err)

	fx.resolver.id = 99
	account, _, err := fx.svc.Login(context.Background(), "ali@example.com", "s3cret!", false)
	require.NoError(t, err)
	assert.Equal(t, int64(99), account.ExternalID)
	assert.Equal(t, "ali@example.com", fx.resolver.last.Email)
}

func TestAuthService_PasswordResetFlow(t *testing.T) {
	fx := newAuthFixture(t)
	_, err := fx.svc.Register(context.Background(), registerInput())
	require.NoError(t, err)

	require.NoError(t, fx.svc.RequestPasswordReset(context.Background(), "ali@example.com"))
	issued := fx.dispatcher.byType(events.EventPasswordResetRequested)
	require.Len(t, issued, 1)
	token := issued[0].Payload.(events.PasswordResetRequestedPayload).Token
	require.NotEmpty(t, token)

	require.NoError(t, fx.svc.ConfirmPasswordReset(context.Background(), token, "newpass1"))

	_, _, err = fx.svc.Login(context.Background(), "ali@example.com", "s3cret!", false)
	assertUnauthorized(t, err)
	_, _, err = fx.svc.Login(context.Background(), "ali@example.com", "newpass1", false)
	require.NoError(t, err)

	err = fx.svc.ConfirmPasswordReset(context.Background(), token, "another1")
	require.Error(t, err)
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "VALIDATION_FAILED", domainErr.Code)
}

func TestAuthService_PasswordResetUnknownEmailIsSilent(t *testing.T) {
	fx := newAuthFixture(t)

	require.NoError(t, fx.svc.RequestPasswordReset(context.Background(), "ghost@example.com"))
	assert.Empty(t, fx.dispatcher.byType(events.EventPasswordResetRequested))
}

func TestAuthService_OneTimeCodeFlow(t *testing.T) {
	fx := newAuthFixture(t)
	account, err := fx.svc.Register(context.Background(), registerInput())
	require.NoError(t, err)

	require.NoError(t, fx.svc.RequestOneTimeCode(context.Background(), "ali@example.com"))
	issued := fx.dispatcher.byType(events.EventOTPIssued)
	require.Len(t, issued, 1)
	code := issued[0].Payload.(events.OTPIssuedPayload).Code
	require.Len(t, code, 6)
	assert.Equal(t, code, fx.codes.codes[account.ID])

	_, session, err := fx.svc.VerifyOneTimeCode(context.Background(), "ali@example.com", code)
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)

	_, _, err = fx.svc.VerifyOneTimeCode(context.Background(), "ali@example.com", code)
	assertUnauthorized(t, err)
}

func TestAuthService_OneTimeCodeWrongCode(t *testing.T) {
	fx := newAuthFixture(t)
	_, err := fx.svc.Register(context.Background(), registerInput())
	require.NoError(t, err)

	require.NoError(t, fx.svc.RequestOneTimeCode(context.Background(), "ali@example.com"))
	_, _, err = fx.svc.VerifyOneTimeCode(context.Background(), "ali@example.com", "wrong-code")
	assertUnauthorized(t, err)
}

func assertUnauthorized(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "UNAUTHORIZED", domainErr.Code)
}
