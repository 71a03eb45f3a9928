package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/and161185/cruise-docsync/internal/errs"
	"github.com/and161185/cruise-docsync/internal/model"
)

const tokenIssuer = "docsync"

// TokenService issues and verifies operator tokens for the trigger RPC.
type TokenService interface {
	// Issue signs a token for operator.
	Issue(operator string) (model.Token, error)
	// Verify checks signature and validity and returns the operator name.
	Verify(token string) (string, error)
}

type TokenServiceImpl struct {
	signKey []byte
	ttl     time.Duration
	now     func() time.Time
}

// NewTokenService constructs TokenService. ttl <= 0 defaults to 24h.
func NewTokenService(signKey []byte, ttl time.Duration) *TokenServiceImpl {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenServiceImpl{signKey: signKey, ttl: ttl, now: time.Now}
}

// Issue creates a signed HS256 JWT with the operator as subject.
func (s *TokenServiceImpl) Issue(operator string) (model.Token, error) {
	operator = strings.TrimSpace(operator)
	if operator == "" {
		return model.Token{}, errors.New("validation: empty operator")
	}
	if len(s.signKey) == 0 {
		return model.Token{}, &errs.ConfigurationError{Key: "DOCSYNC_JWT_KEY"}
	}
	jti, err := uuid.NewV4()
	if err != nil {
		return model.Token{}, err
	}
	now := s.now()
	exp := now.Add(s.ttl)
	claims := jwt.RegisteredClaims{
		ID:        jti.String(),
		Issuer:    tokenIssuer,
		Subject:   operator,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signKey)
	if err != nil {
		return model.Token{}, err
	}
	return model.Token{AccessToken: signed, Operator: operator, ExpiresAt: exp}, nil
}

// Verify parses an HS256 token and returns its subject. Every failure wraps errs.ErrUnauthorized.
func (s *TokenServiceImpl) Verify(token string) (string, error) {
	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return s.signKey, nil
	},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithLeeway(30*time.Second),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return "", fmt.Errorf("invalid token: %w", errs.ErrUnauthorized)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("empty subject: %w", errs.ErrUnauthorized)
	}
	return claims.Subject, nil
}
