package auth

import (
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/helpdesk-service/internal/crypto"
)

// CredentialVerifier hashes and checks passwords. The bcrypt hash string is
// itself run through the field cipher before storage, so the stored form is
// Encrypt(Hash(password)).
type CredentialVerifier struct {
	cipher *crypto.FieldCipher
	cost   int
}

// NewCredentialVerifier builds a verifier with the configured bcrypt cost.
func NewCredentialVerifier(cipher *crypto.FieldCipher, cost int) *CredentialVerifier {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &CredentialVerifier{cipher: cipher, cost: cost}
}

// HashAndSeal returns the storage form of a password.
func (v *CredentialVerifier) HashAndSeal(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), v.cost)
	if err != nil {
		return "", err
	}
	return v.cipher.Encrypt(string(hashed)), nil
}

// Verify checks password against the sealed value from storage. A decrypt
// failure counts as invalid credentials, never a server error.
func (v *CredentialVerifier) Verify(password, sealed string) bool {
	hashed, err := v.cipher.Decrypt(sealed)
	if err != nil {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(password)) == nil
}
