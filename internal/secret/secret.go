// Package secret implements the encryption behind encrypted variable
// values, whether they sit in the project file's encrypted option or in
// the state file's variables section. Values are sealed with a key
// derived from the master password, so neither file holds them in the
// clear.
package secret

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"
)

// MasterPasswordVar names the environment variable holding the password
// that encrypted values are sealed under.
const MasterPasswordVar = "PREFLIGHT_MASTER_PASSWORD"

const (
	saltSize  = 16
	nonceSize = 24
	keySize   = 32

	scryptN = 32768
	scryptR = 8
	scryptP = 1
)

var (
	// ErrMalformed indicates the ciphertext is not a value this package
	// produced.
	ErrMalformed = errors.New("malformed encrypted value")
	// ErrWrongPassword indicates the ciphertext did not open with the
	// derived key.
	ErrWrongPassword = errors.New("wrong master password")
)

// Encrypt seals plaintext under password and returns a self-contained
// base64 token carrying the salt and nonce alongside the box.
func Encrypt(plaintext, password string) (string, error) {
	var salt [saltSize]byte
	if _, err := io.ReadFull(rand.Reader, salt[:]); err != nil {
		return "", err
	}
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", err
	}

	key, err := deriveKey(password, salt[:])
	if err != nil {
		return "", err
	}

	sealed := secretbox.Seal(nil, []byte(plaintext), &nonce, key)

	raw := make([]byte, 0, saltSize+nonceSize+len(sealed))
	raw = append(raw, salt[:]...)
	raw = append(raw, nonce[:]...)
	raw = append(raw, sealed...)
	return base64.StdEncoding.EncodeToString(raw), nil
}

// Decrypt opens a token produced by Encrypt.
func Decrypt(encoded, password string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrMalformed
	}
	if len(raw) < saltSize+nonceSize+secretbox.Overhead {
		return "", ErrMalformed
	}

	var nonce [nonceSize]byte
	copy(nonce[:], raw[saltSize:saltSize+nonceSize])

	key, err := deriveKey(password, raw[:saltSize])
	if err != nil {
		return "", err
	}

	plaintext, ok := secretbox.Open(nil, raw[saltSize+nonceSize:], &nonce, key)
	if !ok {
		return "", ErrWrongPassword
	}
	return string(plaintext), nil
}

func deriveKey(password string, salt []byte) (*[keySize]byte, error) {
	derived, err := scrypt.Key([]byte(password), salt, scryptN, scryptR, scryptP, keySize)
	if err != nil {
		return nil, err
	}
	var key [keySize]byte
	copy(key[:], derived)
	return &key, nil
}

// WrapStored marks an encrypted token for storage next to plaintext
// values, ENC[...] in the sops tradition.
func WrapStored(token string) string {
	return "ENC[" + token + "]"
}

// UnwrapStored extracts the token from a marked stored value. The second
// return is false for plaintext values.
func UnwrapStored(value string) (string, bool) {
	if strings.HasPrefix(value, "ENC[") && strings.HasSuffix(value, "]") {
		return value[len("ENC[") : len(value)-1], true
	}
	return value, false
}
