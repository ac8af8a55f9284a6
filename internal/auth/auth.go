// Package auth authenticates the admin console.
//
// The single admin account is configured by username and Argon2id password
// hash. Successful logins receive an Ed25519 (EdDSA) signed JWT. Keys can be
// loaded from PEM files or auto-generated for development.
package auth

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	issuer    = "vitrine"
	audience  = "vitrine-admin"
	RoleAdmin = "admin"
)

// Claims extends jwt.RegisteredClaims with the admin role.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// JWTManager handles JWT creation and validation using Ed25519.
type JWTManager struct {
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
	expiration time.Duration
}

// NewJWTManager creates a JWTManager from PEM key files.
// If paths are empty, generates an ephemeral key pair (for development);
// sessions then do not survive a restart.
func NewJWTManager(privateKeyPath, publicKeyPath string, expiration time.Duration) (*JWTManager, error) {
	if privateKeyPath == "" || publicKeyPath == "" {
		slog.Warn("auth: no JWT key files configured, generating ephemeral key pair (not for production)")
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("auth: generate key pair: %w", err)
		}
		return &JWTManager{privateKey: priv, publicKey: pub, expiration: expiration}, nil
	}

	edPriv, err := loadPrivateKey(privateKeyPath)
	if err != nil {
		return nil, err
	}
	edPub, err := loadPublicKey(publicKeyPath)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(edPriv.Public().(ed25519.PublicKey), edPub) {
		return nil, fmt.Errorf("auth: public key does not match private key")
	}
	return &JWTManager{privateKey: edPriv, publicKey: edPub, expiration: expiration}, nil
}

func readPEM(path, what string) ([]byte, error) {
	raw, err := os.ReadFile(path) //nolint:gosec // paths come from validated config, not user input
	if err != nil {
		return nil, fmt.Errorf("auth: read %s key: %w", what, err)
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("auth: decode %s key PEM", what)
	}
	return block.Bytes, nil
}

func loadPrivateKey(path string) (ed25519.PrivateKey, error) {
	der, err := readPEM(path, "private")
	if err != nil {
		return nil, err
	}
	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("auth: parse private key: %w", err)
	}
	ed, ok := key.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("auth: private key is not Ed25519")
	}
	return ed, nil
}

func loadPublicKey(path string) (ed25519.PublicKey, error) {
	der, err := readPEM(path, "public")
	if err != nil {
		return nil, err
	}
	key, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("auth: parse public key: %w", err)
	}
	ed, ok := key.(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("auth: public key is not Ed25519")
	}
	return ed, nil
}

// IssueToken creates a signed admin session token for username.
func (m *JWTManager) IssueToken(username string) (string, time.Time, error) {
	now := time.Now().UTC()
	exp := now.Add(m.expiration)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
		Role: RoleAdmin,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	signed, err := token.SignedString(m.privateKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, exp, nil
}

// ValidateToken parses and validates an admin session token.
func (m *JWTManager) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&Claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodEd25519); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return m.publicKey, nil
		},
		jwt.WithAudience(audience),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("auth: validate token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("auth: invalid token claims")
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("auth: token has no subject")
	}
	if claims.Role != RoleAdmin {
		return nil, fmt.Errorf("auth: invalid role: %q", claims.Role)
	}
	return claims, nil
}
