package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"errors"
	"fmt"
)

// ErrIntegrity is returned when a ciphertext token is malformed, wrongly
// padded, or was produced with different key material (double-encrypted or
// foreign data). Callers treat it as recoverable and fall back to the raw
// value instead of failing the request.
var ErrIntegrity = errors.New("field cipher: integrity error")

// FieldCipher encrypts string fields before they touch storage.
//
// It is deliberately deterministic: AES-256-CBC with one process-wide key
// and one fixed IV shared by all calls, so identical plaintexts always
// produce identical tokens. That lets ciphertext be used directly in SQL
// equality predicates ("find user by encrypted email") at the cost of
// leaking repetition patterns. Do not harden this to a randomized mode
// without redesigning every encrypted-equality query.
type FieldCipher struct {
	block cipher.Block
	iv    []byte
}

// NewFieldCipher builds a cipher from a 32-byte key and a 16-byte IV.
func NewFieldCipher(key, iv []byte) (*FieldCipher, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("field cipher: key must be 32 bytes, got %d", len(key))
	}
	if len(iv) != aes.BlockSize {
		return nil, fmt.Errorf("field cipher: iv must be %d bytes, got %d", aes.BlockSize, len(iv))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return &FieldCipher{block: block, iv: iv}, nil
}

// Encrypt returns the base64 token for plaintext. Same input, same output.
func (c *FieldCipher) Encrypt(plaintext string) string {
	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(c.block, c.iv).CryptBlocks(out, padded)
	return base64.StdEncoding.EncodeToString(out)
}

// Decrypt reverses Encrypt. Any structural problem with the token maps to
// ErrIntegrity.
func (c *FieldCipher) Decrypt(token string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrIntegrity, err)
	}
	if len(raw) == 0 || len(raw)%aes.BlockSize != 0 {
		return "", fmt.Errorf("%w: ciphertext length %d not block aligned", ErrIntegrity, len(raw))
	}
	out := make([]byte, len(raw))
	cipher.NewCBCDecrypter(c.block, c.iv).CryptBlocks(out, raw)
	unpadded, err := pkcs7Unpad(out, aes.BlockSize)
	if err != nil {
		return "", err
	}
	return string(unpadded), nil
}

// DecryptLenient returns the plaintext when the token decrypts cleanly and
// the raw input otherwise. Listing endpoints use it so legacy/unencrypted
// rows degrade instead of aborting the response.
func (c *FieldCipher) DecryptLenient(token string) string {
	plain, err := c.Decrypt(token)
	if err != nil {
		return token
	}
	return plain
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(padLen)}, padLen)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("%w: invalid padded length", ErrIntegrity)
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > blockSize {
		return nil, fmt.Errorf("%w: invalid padding byte", ErrIntegrity)
	}
	for _, b := range data[len(data)-padLen:] {
		if int(b) != padLen {
			return nil, fmt.Errorf("%w: corrupt padding", ErrIntegrity)
		}
	}
	return data[:len(data)-padLen], nil
}
