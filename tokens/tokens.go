// Package tokens issues and verifies the HMAC-signed JWTs used for bearer
// authentication and for email-change confirmation links.
package tokens

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"restaurant-review-api/models"

	"github.com/golang-jwt/jwt/v5"
)

const (
	audienceAccess      = "access"
	audienceEmailChange = "email-change"
)

var ErrInvalid = errors.New("invalid or expired token")

// AccessClaims identify the caller. Role is re-read from the store on every
// request, so IsAdmin here is informational for clients.
type AccessClaims struct {
	UserID  uint `json:"userId"`
	IsAdmin bool `json:"isAdmin"`
	jwt.RegisteredClaims
}

type EmailChangeClaims struct {
	UserID   uint   `json:"userId"`
	NewEmail string `json:"newEmail"`
	jwt.RegisteredClaims
}

type Manager struct {
	secret   []byte
	ttl      time.Duration
	emailTTL time.Duration
	now      func() time.Time
}

func NewManager(secret string, ttl, emailTTL time.Duration) *Manager {
	return &Manager{
		secret:   []byte(secret),
		ttl:      ttl,
		emailTTL: emailTTL,
		now:      time.Now,
	}
}

// WithClock replaces the time source; used by tests to age tokens.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	cp := *m
	cp.now = now
	return &cp
}

// IssueAccess creates a signed bearer token for user.
func (m *Manager) IssueAccess(user *models.User) (string, error) {
	claims := AccessClaims{
		UserID:           user.ID,
		IsAdmin:          user.IsAdmin,
		RegisteredClaims: m.registered(user.ID, audienceAccess, m.ttl),
	}
	return m.sign(claims)
}

// ParseAccess verifies signature, audience and expiry of a bearer token.
func (m *Manager) ParseAccess(raw string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := m.parse(raw, claims, audienceAccess); err != nil {
		return nil, err
	}
	return claims, nil
}

// IssueEmailChange creates the token mailed to a user's new address.
func (m *Manager) IssueEmailChange(userID uint, newEmail string) (string, error) {
	claims := EmailChangeClaims{
		UserID:           userID,
		NewEmail:         newEmail,
		RegisteredClaims: m.registered(userID, audienceEmailChange, m.emailTTL),
	}
	return m.sign(claims)
}

func (m *Manager) ParseEmailChange(raw string) (*EmailChangeClaims, error) {
	claims := &EmailChangeClaims{}
	if err := m.parse(raw, claims, audienceEmailChange); err != nil {
		return nil, err
	}
	if claims.NewEmail == "" {
		return nil, ErrInvalid
	}
	return claims, nil
}

func (m *Manager) registered(userID uint, audience string, ttl time.Duration) jwt.RegisteredClaims {
	now := m.now()
	return jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(uint64(userID), 10),
		Audience:  jwt.ClaimStrings{audience},
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
	}
}

func (m *Manager) sign(claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (m *Manager) parse(raw string, claims jwt.Claims, audience string) error {
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !token.Valid {
		return ErrInvalid
	}
	return nil
}
