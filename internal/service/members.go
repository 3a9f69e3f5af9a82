package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"seekite/internal/auth"
	"seekite/internal/db"
)

const (
	DefaultColor  = "#E8D5C4"
	maxNameLength = 50
)

var (
	validPIN   = regexp.MustCompile(`^[0-9]{4}$`)
	validColor = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)
)

// Session is a member together with a freshly issued token.
type Session struct {
	Member *db.Member `json:"member"`
	Token  string     `json:"token"`
}

func (s *Service) Signup(ctx context.Context, name, pin, color string) (*Session, error) {
	name = strings.TrimSpace(name)
	if name == "" || pin == "" {
		return nil, validationError("name and PIN are required")
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return nil, validationError("name must be at most 50 characters")
	}
	if !validPIN.MatchString(pin) {
		return nil, validationError("PIN must be exactly 4 digits")
	}
	color = strings.TrimSpace(color)
	if color == "" {
		color = DefaultColor
	}
	if !validColor.MatchString(color) {
		return nil, validationError("color must look like #RRGGBB")
	}

	hash, err := s.creds.HashPIN(pin)
	if err != nil {
		return nil, storageFailure("hash pin", err)
	}
	m, err := s.store.CreateMember(ctx, name, hash, color)
	if err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			return nil, domainError(KindConflict, "name is already taken")
		}
		return nil, storageFailure("create member", err)
	}
	s.log.InfoContext(ctx, "member signed up", "member_id", m.ID, "leader", m.IsLeader)
	return s.issue(m)
}

// Login checks the PIN. Unknown names and wrong PINs are indistinguishable.
func (s *Service) Login(ctx context.Context, name, pin string) (*Session, error) {
	name = strings.TrimSpace(name)
	if name == "" || pin == "" {
		return nil, validationError("name and PIN are required")
	}
	m, err := s.store.GetMemberByName(ctx, name)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, domainError(KindUnauthenticated, "invalid name or PIN")
		}
		return nil, storageFailure("get member", err)
	}
	if !s.creds.CheckPIN(m.PINHash, pin) {
		return nil, domainError(KindUnauthenticated, "invalid name or PIN")
	}
	return s.issue(m)
}

func (s *Service) issue(m *db.Member) (*Session, error) {
	token, err := s.creds.IssueToken(auth.Caller{MemberID: m.ID, Name: m.Name, IsLeader: m.IsLeader})
	if err != nil {
		return nil, storageFailure("issue token", err)
	}
	return &Session{Member: m, Token: token}, nil
}

// CheckName reports whether a name is taken. It needs no caller.
func (s *Service) CheckName(ctx context.Context, name string) (bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return false, validationError("name is required")
	}
	exists, err := s.store.MemberNameExists(ctx, name)
	if err != nil {
		return false, storageFailure("check name", err)
	}
	return exists, nil
}

func (s *Service) Me(ctx context.Context, caller auth.Caller) (*db.Member, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	m, err := s.store.GetMemberByID(ctx, caller.MemberID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, memberGone()
		}
		return nil, storageFailure("get member", err)
	}
	return m, nil
}

func (s *Service) ListMembers(ctx context.Context, caller auth.Caller) ([]db.Member, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	members, err := s.store.ListMembers(ctx)
	if err != nil {
		return nil, storageFailure("list members", err)
	}
	return members, nil
}

// Withdraw deletes the caller with their messages, reactions and read
// statuses. Topics they created remain without a creator.
func (s *Service) Withdraw(ctx context.Context, caller auth.Caller) error {
	if err := requireCaller(caller); err != nil {
		return err
	}
	if err := s.store.DeleteMember(ctx, caller.MemberID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return memberGone()
		}
		return storageFailure("delete member", err)
	}
	s.log.InfoContext(ctx, "member withdrew", "member_id", caller.MemberID)
	return nil
}
