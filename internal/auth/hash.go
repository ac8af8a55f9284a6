package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	argonTime    = 1
	argonMemory  = 64 * 1024 // 64 MB
	argonThreads = 4
	argonKeyLen  = 32
	saltLen      = 16
)

// HashPassword hashes a password using Argon2id. The result is
// "<base64 salt>$<base64 hash>".
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("auth: generate salt: %w", err)
	}

	hash := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	return base64.StdEncoding.EncodeToString(salt) + "$" + base64.StdEncoding.EncodeToString(hash), nil
}

// DummyVerify performs an Argon2id hash with the same cost parameters as real
// verification, so a wrong username takes as long as a wrong password.
func DummyVerify() {
	argon2.IDKey([]byte("dummy"), make([]byte, saltLen), argonTime, argonMemory, argonThreads, argonKeyLen)
}

// VerifyPassword checks a password against an Argon2id hash.
func VerifyPassword(password, encoded string) (bool, error) {
	saltB64, hashB64, ok := strings.Cut(encoded, "$")
	if !ok {
		return false, fmt.Errorf("auth: invalid hash format")
	}

	salt, err := base64.StdEncoding.DecodeString(saltB64)
	if err != nil {
		return false, fmt.Errorf("auth: decode salt: %w", err)
	}
	expected, err := base64.StdEncoding.DecodeString(hashB64)
	if err != nil {
		return false, fmt.Errorf("auth: decode hash: %w", err)
	}

	computed := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	return subtle.ConstantTimeCompare(expected, computed) == 1, nil
}

// Admin is the configured admin account.
type Admin struct {
	Username     string
	PasswordHash string
}

// Verify reports whether username and password match the account. An
// account without a hash accepts no one.
func (a Admin) Verify(username, password string) bool {
	if a.PasswordHash == "" || subtle.ConstantTimeCompare([]byte(username), []byte(a.Username)) != 1 {
		DummyVerify()
		return false
	}
	ok, err := VerifyPassword(password, a.PasswordHash)
	return err == nil && ok
}
