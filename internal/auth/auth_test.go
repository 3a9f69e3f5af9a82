package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"seekite/internal/session"
)

func TestPINHashing(t *testing.T) {
	s := New("secret", time.Hour, nil)
	hash, err := s.HashPIN("1234")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !s.CheckPIN(hash, "1234") {
		t.Fatal("expected PIN to match")
	}
	if s.CheckPIN(hash, "4321") {
		t.Fatal("wrong PIN matched")
	}
}

func TestIssueAndResolve(t *testing.T) {
	ctx := context.Background()
	s := New("secret", time.Hour, session.NewMemoryRevoker())
	token, err := s.IssueToken(Caller{MemberID: "m1", Name: "Grace", IsLeader: true})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, err := s.ResolveCaller(ctx, token)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got := claims.Caller(); got != (Caller{MemberID: "m1", Name: "Grace", IsLeader: true}) {
		t.Fatalf("unexpected caller: %+v", got)
	}
	if claims.ID == "" {
		t.Fatal("expected a token id")
	}
}

func TestResolveRejects(t *testing.T) {
	ctx := context.Background()
	s := New("secret", time.Hour, nil)
	other := New("other-secret", time.Hour, nil)
	foreign, _ := other.IssueToken(Caller{MemberID: "m1", Name: "Grace"})

	expired := New("secret", time.Hour, nil)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	stale, _ := expired.IssueToken(Caller{MemberID: "m1", Name: "Grace"})

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{MemberID: "m1"})
	unsigned, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)

	for name, token := range map[string]string{
		"empty":    "",
		"garbage":  "not.a.token",
		"foreign":  foreign,
		"expired":  stale,
		"unsigned": unsigned,
	} {
		if _, err := s.ResolveCaller(ctx, token); !errors.Is(err, ErrUnauthenticated) {
			t.Errorf("%s: expected ErrUnauthenticated, got %v", name, err)
		}
	}
}

func TestRevoke(t *testing.T) {
	ctx := context.Background()
	s := New("secret", time.Hour, session.NewMemoryRevoker())
	token, _ := s.IssueToken(Caller{MemberID: "m1", Name: "Grace"})
	claims, err := s.ResolveCaller(ctx, token)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if err := s.Revoke(ctx, claims); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := s.ResolveCaller(ctx, token); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected revoked token to be rejected, got %v", err)
	}

	fresh, _ := s.IssueToken(Caller{MemberID: "m1", Name: "Grace"})
	if _, err := s.ResolveCaller(ctx, fresh); err != nil {
		t.Fatalf("new token should still work: %v", err)
	}
}
