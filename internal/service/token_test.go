package service

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/and161185/cruise-docsync/internal/errs"
)

func TestToken_IssueVerify(t *testing.T) {
	t.Parallel()
	s := NewTokenService([]byte("secret"), time.Hour)

	tok, err := s.Issue(" ops-alice ")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if tok.Operator != "ops-alice" || tok.AccessToken == "" {
		t.Fatalf("bad token: %+v", tok)
	}
	if !tok.ExpiresAt.After(time.Now()) {
		t.Fatalf("already expired: %v", tok.ExpiresAt)
	}

	op, err := s.Verify(tok.AccessToken)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if op != "ops-alice" {
		t.Fatalf("operator = %q", op)
	}
}

func TestToken_IssueValidation(t *testing.T) {
	t.Parallel()
	if _, err := NewTokenService([]byte("k"), 0).Issue(""); err == nil {
		t.Fatalf("want error on empty operator")
	}
	if _, err := NewTokenService(nil, 0).Issue("x"); !errors.Is(err, errs.ErrMissingConfig) {
		t.Fatalf("want ErrMissingConfig, got %v", err)
	}
}

func TestToken_VerifyRejects(t *testing.T) {
	t.Parallel()
	s := NewTokenService([]byte("secret"), time.Minute)
	other := NewTokenService([]byte("other"), time.Minute)

	foreign, _ := other.Issue("x")
	if _, err := s.Verify(foreign.AccessToken); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized for wrong key, got %v", err)
	}

	if _, err := s.Verify("not-a-jwt"); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized for garbage, got %v", err)
	}

	past := NewTokenService([]byte("secret"), time.Minute)
	past.now = func() time.Time { return time.Now().Add(-time.Hour) }
	old, _ := past.Issue("x")
	if _, err := s.Verify(old.AccessToken); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized for expired, got %v", err)
	}

	none := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{Subject: "x", Issuer: tokenIssuer})
	signed, _ := none.SignedString([]byte("secret"))
	if _, err := s.Verify(signed); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized for HS512, got %v", err)
	}
}

func TestKeyedMutex_Frees(t *testing.T) {
	t.Parallel()
	k := newKeyedMutex()
	u1 := k.Lock(1)
	u2 := k.Lock(2)
	if k.size() != 2 {
		t.Fatalf("size = %d", k.size())
	}
	u1()
	u2()
	if k.size() != 0 {
		t.Fatalf("size = %d after unlock", k.size())
	}
}
