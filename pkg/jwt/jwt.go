// Package jwt issues and checks the HS256 session tokens of the booking API.
// Access and refresh tokens are signed with separate keys, so a leaked
// refresh key cannot mint access tokens.
package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "tripmate-booking"

type TokenType string

const (
	AccessToken  TokenType = "access"
	RefreshToken TokenType = "refresh"
)

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrWrongTokenType = errors.New("wrong token type")
	ErrNoExpiry       = errors.New("token has no expiry")
)

// Claims carried by every booking session token
type Claims struct {
	UserID    uuid.UUID `json:"user_id"`
	Email     string    `json:"email"`
	Roles     []string  `json:"roles"`
	TokenType TokenType `json:"token_type"`
	jwt.RegisteredClaims
}

// keyring signs and verifies one kind of token
type keyring struct {
	kind   TokenType
	secret []byte
	ttl    time.Duration
}

func (k keyring) sign(userID uuid.UUID, email string, roles []string) (string, time.Time, error) {
	issuedAt := time.Now()
	expiresAt := issuedAt.Add(k.ttl)

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:    userID,
		Email:     email,
		Roles:     roles,
		TokenType: k.kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}).SignedString(k.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign %s token: %w", k.kind, err)
	}
	return signed, expiresAt, nil
}

func (k keyring) verify(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return k.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.TokenType != k.kind {
		return nil, fmt.Errorf("%w: want %s, got %q", ErrWrongTokenType, k.kind, claims.TokenType)
	}
	return claims, nil
}

// Service holds the keys for both token kinds
type Service struct {
	access  keyring
	refresh keyring
}

func NewService(accessSecret, refreshSecret string, accessExpiry, refreshExpiry time.Duration) *Service {
	return &Service{
		access:  keyring{kind: AccessToken, secret: []byte(accessSecret), ttl: accessExpiry},
		refresh: keyring{kind: RefreshToken, secret: []byte(refreshSecret), ttl: refreshExpiry},
	}
}

// GenerateAccessToken returns a signed access token and its expiry
func (s *Service) GenerateAccessToken(userID uuid.UUID, email string, roles []string) (string, time.Time, error) {
	return s.access.sign(userID, email, roles)
}

// GenerateRefreshToken returns a signed refresh token. Refresh tokens carry
// no roles; they are re-read from the user record on refresh.
func (s *Service) GenerateRefreshToken(userID uuid.UUID, email string) (string, error) {
	signed, _, err := s.refresh.sign(userID, email, nil)
	return signed, err
}

func (s *Service) ValidateAccessToken(raw string) (*Claims, error) {
	return s.access.verify(raw)
}

func (s *Service) ValidateRefreshToken(raw string) (*Claims, error) {
	return s.refresh.verify(raw)
}

// IsTokenExpired reports whether an access token signed with our key failed
// validation only because it expired. Forged or malformed tokens are not
// "expired", they are invalid.
func (s *Service) IsTokenExpired(raw string) bool {
	_, err := s.access.verify(raw)
	return errors.Is(err, jwt.ErrTokenExpired)
}

// ParseUnverified decodes claims without checking the signature. Only for
// clients reading the expiry of a token they were handed.
func ParseUnverified(raw string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	return claims, nil
}

func ExpiryOf(raw string) (time.Time, error) {
	claims, err := ParseUnverified(raw)
	if err != nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, ErrNoExpiry
	}
	return claims.ExpiresAt.Time, nil
}

// IsExpired is the client-side check: anything unreadable or without an
// expiry counts as expired and forces a new sign-in.
func IsExpired(raw string) bool {
	expiry, err := ExpiryOf(raw)
	return err != nil || !expiry.After(time.Now())
}
