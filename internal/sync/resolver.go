package sync

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/provider"
)

// CustomerAPI is the slice of the provider client the resolver uses.
type CustomerAPI interface {
	Enabled() bool
	CreateCustomer(ctx context.Context, in provider.CustomerInput) (*provider.Customer, error)
	SearchCustomerByEmail(ctx context.Context, email string) (*provider.Customer, error)
}

// ExternalIDStore persists a resolved provider id onto the local user row.
type ExternalIDStore interface {
	SetExternalID(ctx context.Context, userID, externalID int64) error
}

// Account carries the plaintext identity of a local user being resolved.
// ExternalID is the cached provider id, zero when unknown.
type Account struct {
	UserID     int64
	ExternalID int64
	Email      string
	Phone      string
	Name       string
	Surname    string
}

// CustomerResolver maps local accounts to provider customer ids.
// Resolution is best-effort: any provider failure degrades to the
// unresolved id (0) so callers can carry on with local data.
type CustomerResolver struct {
	api    CustomerAPI
	store  ExternalIDStore
	logger *zap.Logger
}

// NewCustomerResolver builds a resolver.
func NewCustomerResolver(api CustomerAPI, store ExternalIDStore, logger *zap.Logger) *CustomerResolver {
	return &CustomerResolver{api: api, store: store, logger: logger}
}

// Resolve returns the provider customer id for the account, 0 when it
// cannot be determined. A cached id short-circuits without any network
// call. Otherwise it tries to create the customer; the provider rejects
// duplicates, so on failure it falls back to searching by email. Any id
// obtained is persisted onto the user row before returning.
func (r *CustomerResolver) Resolve(ctx context.Context, acc Account) int64 {
	if acc.ExternalID != 0 {
		return acc.ExternalID
	}
	if !r.api.Enabled() {
		return 0
	}

	id := r.create(ctx, acc)
	if id == 0 {
		id = r.search(ctx, acc.Email)
	}
	if id == 0 {
		return 0
	}

	if err := r.store.SetExternalID(ctx, acc.UserID, id); err != nil {
		r.logger.Warn("could not persist external customer id",
			zap.Int64("user_id", acc.UserID),
			zap.Int64("external_id", id),
			zap.Error(err))
	}
	return id
}

func (r *CustomerResolver) create(ctx context.Context, acc Account) int64 {
	customer, err := r.api.CreateCustomer(ctx, provider.CustomerInput{
		Email:    acc.Email,
		Phone:    acc.Phone,
		FullName: provider.SanitizeFullName(acc.Name, acc.Surname),
		Tags:     []string{"helpdesk", "customer"},
	})
	if err != nil {
		r.logger.Info("provider customer creation failed, falling back to search",
			zap.Int64("user_id", acc.UserID),
			zap.Error(err))
		return 0
	}
	return customer.ID
}

func (r *CustomerResolver) search(ctx context.Context, email string) int64 {
	customer, err := r.api.SearchCustomerByEmail(ctx, email)
	if err != nil {
		r.logger.Warn("provider customer search failed", zap.Error(err))
		return 0
	}
	if customer == nil {
		return 0
	}
	return customer.ID
}
