package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const sessionIssuer = "todo-sync"

var ErrInvalidToken = errors.New("invalid or expired token")

// SessionClaims are carried by the session tokens handed to clients.
type SessionClaims struct {
	IdentityID string `json:"identity_id"`
	jwt.RegisteredClaims
}

type SessionOutput struct {
	Token      string `json:"token"`
	TokenType  string `json:"token_type"`
	ExpiresIn  int    `json:"expires_in"`
	SessionID  string `json:"session_id"`
	IdentityID string `json:"identity_id"`
}

// SessionService issues and verifies HS256 tokens for anonymous sessions.
type SessionService struct {
	identity SessionEstablisher
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
}

func NewSessionService(identity SessionEstablisher, secret string, ttl time.Duration) *SessionService {
	return &SessionService{
		identity: identity,
		secret:   []byte(secret),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Start issues a token for a new anonymous session bound to the backend
// identity.
func (s *SessionService) Start(ctx context.Context) (SessionOutput, error) {
	identityID, err := s.identity.Establish(ctx)
	if err != nil {
		return SessionOutput{}, fmt.Errorf("failed to establish session: %w", err)
	}

	now := s.now()
	sessionID := uuid.NewString()
	claims := SessionClaims{
		IdentityID: identityID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sessionID,
			Issuer:    sessionIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return SessionOutput{}, fmt.Errorf("failed to sign token: %w", err)
	}

	return SessionOutput{
		Token:      signed,
		TokenType:  "Bearer",
		ExpiresIn:  int(s.ttl.Seconds()),
		SessionID:  sessionID,
		IdentityID: identityID,
	}, nil
}

// Verify parses a token and returns its session id.
func (s *SessionService) Verify(token string) (string, error) {
	var claims SessionClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(sessionIssuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: subject missing", ErrInvalidToken)
	}
	return claims.Subject, nil
}
