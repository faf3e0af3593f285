package sync

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/provider"
)

type fakeCustomerAPI struct {
	enabled     bool
	createID    int64
	createErr   error
	createCalls int
	lastInput   provider.CustomerInput

	searchID    int64
	searchErr   error
	searchCalls int
}

func (f *fakeCustomerAPI) Enabled() bool { return f.enabled }

func (f *fakeCustomerAPI) CreateCustomer(_ context.Context, in provider.CustomerInput) (*provider.Customer, error) {
	f.createCalls++
	f.lastInput = in
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &provider.Customer{ID: f.createID, Email: in.Email}, nil
}

func (f *fakeCustomerAPI) SearchCustomerByEmail(_ context.Context, email string) (*provider.Customer, error) {
	f.searchCalls++
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if f.searchID == 0 {
		return nil, nil
	}
	return &provider.Customer{ID: f.searchID, Email: email}, nil
}

type fakeIDStore struct {
	calls   int
	userID  int64
	saved   int64
	saveErr error
}

func (f *fakeIDStore) SetExternalID(_ context.Context, userID, externalID int64) error {
	f.calls++
	f.userID = userID
	f.saved = externalID
	return f.saveErr
}

func TestResolver_CachedIDShortCircuits(t *testing.T) {
	api := &fakeCustomerAPI{enabled: true, createID: 77}
	store := &fakeIDStore{}
	r := NewCustomerResolver(api, store, zap.NewNop())

	id := r.Resolve(context.Background(), Account{UserID: 5, ExternalID: 42})

	assert.Equal(t, int64(42), id)
	assert.Zero(t, api.createCalls)
	assert.Zero(t, api.searchCalls)
	assert.Zero(t, store.calls)
}

func TestResolver_CreatesAndPersists(t *testing.T) {
	api := &fakeCustomerAPI{enabled: true, createID: 77}
	store := &fakeIDStore{}
	r := NewCustomerResolver(api, store, zap.NewNop())

	id := r.Resolve(context.Background(), Account{
		UserID: 5, Email: "a@b.com", Phone: "05551234567", Name: "Ali1", Surname: "Veli!",
	})

	assert.Equal(t, int64(77), id)
	assert.Equal(t, 1, store.calls)
	assert.Equal(t, int64(5), store.userID)
	assert.Equal(t, int64(77), store.saved)
	assert.Equal(t, "Ali Veli", api.lastInput.FullName)
	assert.Zero(t, api.searchCalls)
}

func TestResolver_FallsBackToSearchOnDuplicate(t *testing.T) {
	api := &fakeCustomerAPI{enabled: true, createErr: errors.New("422 TAKEN"), searchID: 99}
	store := &fakeIDStore{}
	r := NewCustomerResolver(api, store, zap.NewNop())

	id := r.Resolve(context.Background(), Account{UserID: 5, Email: "a@b.com"})

	assert.Equal(t, int64(99), id)
	assert.Equal(t, 1, api.createCalls)
	assert.Equal(t, 1, api.searchCalls)
	assert.Equal(t, int64(99), store.saved)
}

func TestResolver_DegradesToUnresolved(t *testing.T) {
	api := &fakeCustomerAPI{enabled: true, createErr: errors.New("down"), searchErr: errors.New("down")}
	store := &fakeIDStore{}
	r := NewCustomerResolver(api, store, zap.NewNop())

	id := r.Resolve(context.Background(), Account{UserID: 5, Email: "a@b.com"})

	assert.Zero(t, id)
	assert.Zero(t, store.calls)
}

func TestResolver_SearchMissReturnsUnresolved(t *testing.T) {
	api := &fakeCustomerAPI{enabled: true, createErr: errors.New("down"), searchID: 0}
	store := &fakeIDStore{}
	r := NewCustomerResolver(api, store, zap.NewNop())

	assert.Zero(t, r.Resolve(context.Background(), Account{UserID: 5, Email: "a@b.com"}))
	assert.Zero(t, store.calls)
}

func TestResolver_DisabledProviderSkipsNetwork(t *testing.T) {
	api := &fakeCustomerAPI{enabled: false, createID: 77}
	store := &fakeIDStore{}
	r := NewCustomerResolver(api, store, zap.NewNop())

	assert.Zero(t, r.Resolve(context.Background(), Account{UserID: 5, Email: "a@b.com"}))
	assert.Zero(t, api.createCalls)
}

func TestResolver_PersistFailureStillReturnsID(t *testing.T) {
	api := &fakeCustomerAPI{enabled: true, createID: 77}
	store := &fakeIDStore{saveErr: errors.New("db down")}
	r := NewCustomerResolver(api, store, zap.NewNop())

	assert.Equal(t, int64(77), r.Resolve(context.Background(), Account{UserID: 5, Email: "a@b.com"}))
}
