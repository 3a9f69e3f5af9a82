package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"seekite/internal/session"
)

var ErrUnauthenticated = errors.New("unauthenticated")

// Caller is the identity resolved from a session token.
type Caller struct {
	MemberID string `json:"member_id"`
	Name     string `json:"name"`
	IsLeader bool   `json:"is_leader"`
}

type Claims struct {
	MemberID string `json:"member_id"`
	Name     string `json:"name"`
	IsLeader bool   `json:"is_leader"`
	jwt.RegisteredClaims
}

func (c *Claims) Caller() Caller {
	return Caller{MemberID: c.MemberID, Name: c.Name, IsLeader: c.IsLeader}
}

type Service struct {
	secret  []byte
	ttl     time.Duration
	revoker session.Revoker
	now     func() time.Time
}

// New builds the provider. The secret comes from configuration; rotating it
// invalidates every issued token.
func New(secret string, ttl time.Duration, revoker session.Revoker) *Service {
	if revoker == nil {
		revoker = session.NewMemoryRevoker()
	}
	return &Service{secret: []byte(secret), ttl: ttl, revoker: revoker, now: time.Now}
}

func (s *Service) TTL() time.Duration {
	return s.ttl
}

func (s *Service) HashPIN(pin string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	return string(b), err
}

func (s *Service) CheckPIN(hash, pin string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin)) == nil
}

func (s *Service) IssueToken(c Caller) (string, error) {
	now := s.now()
	claims := Claims{
		MemberID: c.MemberID,
		Name:     c.Name,
		IsLeader: c.IsLeader,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   c.MemberID,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *Service) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.MemberID == "" {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// ResolveCaller validates the token and checks it has not been revoked.
// Every failure is reported as ErrUnauthenticated except a revoker outage.
func (s *Service) ResolveCaller(ctx context.Context, tokenStr string) (*Claims, error) {
	if tokenStr == "" {
		return nil, ErrUnauthenticated
	}
	claims, err := s.ValidateToken(tokenStr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if claims.ID != "" {
		revoked, err := s.revoker.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, fmt.Errorf("check revocation: %w", err)
		}
		if revoked {
			return nil, fmt.Errorf("%w: token revoked", ErrUnauthenticated)
		}
	}
	return claims, nil
}

// Revoke blocks the token until it would have expired.
func (s *Service) Revoke(ctx context.Context, claims *Claims) error {
	if claims == nil || claims.ID == "" || claims.ExpiresAt == nil {
		return nil
	}
	return s.revoker.Revoke(ctx, claims.ID, claims.ExpiresAt.Time.Sub(s.now()))
}
