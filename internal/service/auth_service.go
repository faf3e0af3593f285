package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/crypto"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/persistence"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	syncpkg "github.com/spec-kit/helpdesk-service/internal/sync"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util"
)

// ExternalResolver maps local accounts to provider customer ids.
type ExternalResolver interface {
	Resolve(ctx context.Context, acc syncpkg.Account) int64
}

// OneTimeCodeStore keeps login OTP codes with expiry.
type OneTimeCodeStore interface {
	StoreOneTimeCode(ctx context.Context, userID int64, code string, ttl time.Duration) error
	ConsumeOneTimeCode(ctx context.Context, userID int64, code string) error
}

// RegisterInput carries the plaintext registration form.
type RegisterInput struct {
	Name     string
	Surname  string
	Phone    string
	Email    string
	Password string
}

// AccountView is the decrypted, outward representation of a user.
type AccountView struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Surname    string `json:"surname"`
	Phone      string `json:"phone"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	ExternalID int64  `json:"external_id,omitempty"`
}

// Session is an issued identity token plus its expiry.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AuthService coordinates registration, login and credential recovery.
type AuthService struct {
	users      repository.UserRepository
	resets     repository.PasswordResetRepository
	cipher     *crypto.FieldCipher
	verifier   *auth.CredentialVerifier
	tokens     *auth.TokenManager
	resolver   ExternalResolver
	codes      OneTimeCodeStore
	dispatcher events.Dispatcher
	logger     *zap.Logger
	resetTTL   time.Duration
	otpTTL     time.Duration
}

// AuthDependencies bundles collaborators for the auth service.
type AuthDependencies struct {
	UserRepo          repository.UserRepository
	PasswordResetRepo repository.PasswordResetRepository
	Cipher            *crypto.FieldCipher
	Verifier          *auth.CredentialVerifier
	Tokens            *auth.TokenManager
	Resolver          ExternalResolver
	Codes             OneTimeCodeStore
	Dispatcher        events.Dispatcher
	Logger            *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	return &AuthService{
		users:      deps.UserRepo,
		resets:     deps.PasswordResetRepo,
		cipher:     deps.Cipher,
		verifier:   deps.Verifier,
		tokens:     deps.Tokens,
		resolver:   deps.Resolver,
		codes:      deps.Codes,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		resetTTL:   time.Duration(cfg.PasswordResetTTLMinutes) * time.Minute,
		otpTTL:     time.Duration(cfg.OTPTTLSeconds) * time.Second,
	}
}

// Register creates an account. Every personal field is stored
// encrypted, the password as the sealed bcrypt hash. Attaching the
// provider customer id is best-effort; registration succeeds locally
// regardless.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AccountView, error) {
	if err := validateRegistration(in); err != nil {
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(in.Email))
	encEmail := s.cipher.Encrypt(email)

	exists, err := s.users.ExistsActiveEmail(ctx, encEmail)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if exists {
		return nil, apperrors.NewConflict("email already registered", nil)
	}

	sealed, err := s.verifier.HashAndSeal(in.Password)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	user := &domain.User{
		Name:     s.cipher.Encrypt(strings.TrimSpace(in.Name)),
		Surname:  s.cipher.Encrypt(strings.TrimSpace(in.Surname)),
		Phone:    s.cipher.Encrypt(strings.TrimSpace(in.Phone)),
		Email:    encEmail,
		Password: sealed,
		Role:     s.cipher.Encrypt(string(domain.RoleCustomer)),
		IsActive: true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	externalID := s.resolver.Resolve(ctx, syncpkg.Account{
		UserID:  user.ID,
		Email:   email,
		Phone:   strings.TrimSpace(in.Phone),
		Name:    in.Name,
		Surname: in.Surname,
	})

	view := s.accountView(user)
	view.ExternalID = externalID

	_ = s.dispatcher.Publish(ctx, events.Event{
		Type: events.EventUserRegistered,
		Recipient: events.Recipient{
			UserID:   user.ID,
			Email:    email,
			FullName: view.Name + " " + view.Surname,
		},
		Timestamp: time.Now().UTC(),
		Payload:   events.UserRegisteredPayload{ExternalID: externalID},
	})

	return view, nil
}

// Login authenticates by email and password. Lookup misses, inactive
// accounts and undecryptable stored credentials all collapse into the
// same generic rejection.
func (s *AuthService) Login(ctx context.Context, email, password string, remember bool) (*AccountView, *Session, error) {
	user, err := s.findActiveByEmail(ctx, email)
	if err != nil {
		return nil, nil, err
	}
	if !s.verifier.Verify(password, user.Password) {
		return nil, nil, apperrors.NewUnauthorized("invalid credentials")
	}

	view := s.accountView(user)
	view.ExternalID = s.resolver.Resolve(ctx, syncpkg.Account{
		UserID:     user.ID,
		ExternalID: user.ExternalID,
		Email:      view.Email,
		Phone:      view.Phone,
		Name:       view.Name,
		Surname:    view.Surname,
	})

	session, err := s.issueSession(view, remember)
	if err != nil {
		return nil, nil, err
	}
	return view, session, nil
}

// RequestPasswordReset issues a single-use token and emails it. An
// unknown email is acknowledged the same way as a known one.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := s.findActiveByEmail(ctx, email)
	if err != nil {
		var domainErr *apperrors.DomainError
		if errors.As(err, &domainErr) && domainErr.Code == "UNAUTHORIZED" {
			return nil
		}
		return err
	}

	reset := &domain.PasswordReset{
		UserID:    user.ID,
		Token:     uuid.NewString(),
		ExpiresAt: time.Now().Add(s.resetTTL),
	}
	if err := s.resets.Create(ctx, reset); err != nil {
		return apperrors.NewInternalError(err)
	}

	view := s.accountView(user)
	_ = s.dispatcher.Publish(ctx, events.Event{
		Type: events.EventPasswordResetRequested,
		Recipient: events.Recipient{
			UserID:   user.ID,
			Email:    view.Email,
			FullName: view.Name + " " + view.Surname,
		},
		Timestamp: time.Now().UTC(),
		Payload: events.PasswordResetRequestedPayload{
			Token:     reset.Token,
			ExpiresAt: reset.ExpiresAt,
		},
	})
	return nil
}

// ConfirmPasswordReset redeems a reset token. Tokens are single-use
// and expire server-side.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	if len(newPassword) < 6 {
		return apperrors.NewValidationError("password must be at least 6 characters", nil)
	}

	reset, err := s.resets.GetValidByToken(ctx, token)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewValidationError("reset token is invalid or expired", nil)
		}
		return apperrors.NewInternalError(err)
	}

	sealed, err := s.verifier.HashAndSeal(newPassword)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	if err := s.users.UpdatePassword(ctx, reset.UserID, sealed); err != nil {
		return apperrors.NewInternalError(err)
	}
	if err := s.resets.MarkUsed(ctx, reset.ID); err != nil {
		return apperrors.NewInternalError(err)
	}
	return nil
}

// RequestOneTimeCode issues a short-lived numeric login code.
func (s *AuthService) RequestOneTimeCode(ctx context.Context, email string) error {
	user, err := s.findActiveByEmail(ctx, email)
	if err != nil {
		return err
	}

	code, err := generateNumericCode(6)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	if err := s.codes.StoreOneTimeCode(ctx, user.ID, code, s.otpTTL); err != nil {
		return apperrors.NewInternalError(err)
	}

	view := s.accountView(user)
	_ = s.dispatcher.Publish(ctx, events.Event{
		Type: events.EventOTPIssued,
		Recipient: events.Recipient{
			UserID:   user.ID,
			Email:    view.Email,
			FullName: view.Name + " " + view.Surname,
		},
		Timestamp: time.Now().UTC(),
		Payload: events.OTPIssuedPayload{
			Code: code,
			TTL:  int(s.otpTTL.Seconds()),
		},
	})
	return nil
}

// VerifyOneTimeCode redeems an OTP and issues a normal session.
func (s *AuthService) VerifyOneTimeCode(ctx context.Context, email, code string) (*AccountView, *Session, error) {
	user, err := s.findActiveByEmail(ctx, email)
	if err != nil {
		return nil, nil, err
	}

	if err := s.codes.ConsumeOneTimeCode(ctx, user.ID, code); err != nil {
		if errors.Is(err, persistence.ErrCodeNotFound) {
			return nil, nil, apperrors.NewUnauthorized("invalid or expired code")
		}
		return nil, nil, apperrors.NewInternalError(err)
	}

	view := s.accountView(user)
	view.ExternalID = user.ExternalID
	session, err := s.issueSession(view, false)
	if err != nil {
		return nil, nil, err
	}
	return view, session, nil
}

func (s *AuthService) findActiveByEmail(ctx context.Context, email string) (*domain.User, error) {
	encEmail := s.cipher.Encrypt(strings.ToLower(strings.TrimSpace(email)))
	user, err := s.users.GetActiveByEmail(ctx, encEmail)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, apperrors.NewInternalError(err)
	}
	return user, nil
}

func (s *AuthService) issueSession(view *AccountView, remember bool) (*Session, error) {
	token, exp, err := s.tokens.Issue(auth.Claims{
		UserID:     view.ID,
		Name:       view.Name,
		Surname:    view.Surname,
		Email:      view.Email,
		Role:       view.Role,
		ExternalID: view.ExternalID,
	}, remember)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &Session{Token: token, ExpiresAt: exp}, nil
}

// accountView decrypts stored fields for presentation. Undecryptable
// values pass through raw rather than failing the request.
func (s *AuthService) accountView(user *domain.User) *AccountView {
	return &AccountView{
		ID:         user.ID,
		Name:       s.cipher.DecryptLenient(user.Name),
		Surname:    s.cipher.DecryptLenient(user.Surname),
		Phone:      s.cipher.DecryptLenient(user.Phone),
		Email:      s.cipher.DecryptLenient(user.Email),
		Role:       s.cipher.DecryptLenient(user.Role),
		ExternalID: user.ExternalID,
	}
}

func validateRegistration(in RegisterInput) error {
	details := map[string]any{}
	if strings.TrimSpace(in.Name) == "" {
		details["name"] = "required"
	}
	if strings.TrimSpace(in.Surname) == "" {
		details["surname"] = "required"
	}
	if !strings.Contains(in.Email, "@") {
		details["email"] = "must be a valid email address"
	}
	if len(in.Password) < 6 {
		details["password"] = "must be at least 6 characters"
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("registration payload invalid", details)
	}
	return nil
}

func generateNumericCode(digits int) (string, error) {
	max := big.NewInt(1)
	for i := 0; i < digits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", digits, n), nil
}
