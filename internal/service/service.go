// Package service holds the topic, message, reaction, read-tracking and
// member operations. It knows nothing about HTTP.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"seekite/internal/auth"
	"seekite/internal/db"
)

// Store is the persistence the service needs. *db.DB implements it.
type Store interface {
	CreateMember(ctx context.Context, name, pinHash, color string) (*db.Member, error)
	GetMemberByID(ctx context.Context, id string) (*db.Member, error)
	GetMemberByName(ctx context.Context, name string) (*db.Member, error)
	MemberNameExists(ctx context.Context, name string) (bool, error)
	ListMembers(ctx context.Context) ([]db.Member, error)
	DeleteMember(ctx context.Context, id string) error

	CreateTopic(ctx context.Context, in db.NewTopic) (*db.Topic, error)
	GetTopic(ctx context.Context, id string) (*db.Topic, error)
	DeleteTopic(ctx context.Context, id string) error
	ListTopics(ctx context.Context, memberID string) ([]db.TopicSummary, error)

	CreateMessage(ctx context.Context, topicID, memberID, content string, replyToID *string) (*db.Message, error)
	GetMessage(ctx context.Context, id string) (*db.Message, error)
	ListMessages(ctx context.Context, topicID string) ([]db.MessageView, error)

	ToggleReaction(ctx context.Context, messageID, memberID string, t db.ReactionType) (*db.ToggleResult, error)

	MarkRead(ctx context.Context, topicID, memberID string) (time.Time, error)
	UnreadCount(ctx context.Context, topicID, memberID string) (int, error)
}

// Credentials hashes PINs and issues session tokens. *auth.Service
// implements it.
type Credentials interface {
	HashPIN(pin string) (string, error)
	CheckPIN(hash, pin string) bool
	IssueToken(c auth.Caller) (string, error)
}

type Options struct {
	// LeaderOnlyTopics restricts topic create and delete to leaders.
	LeaderOnlyTopics bool
	Logger           *slog.Logger
}

type Service struct {
	store            Store
	creds            Credentials
	leaderOnlyTopics bool
	log              *slog.Logger
}

func New(store Store, creds Credentials, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:            store,
		creds:            creds,
		leaderOnlyTopics: opts.LeaderOnlyTopics,
		log:              logger,
	}
}

func requireCaller(c auth.Caller) error {
	if c.MemberID == "" {
		return domainError(KindUnauthenticated, "unauthorized")
	}
	return nil
}

func memberGone() *DomainError {
	return domainError(KindUnauthenticated, "member no longer exists")
}

// MemberExists reports whether the member behind a token is still there.
// Withdrawn members keep valid-looking tokens until they expire.
func (s *Service) MemberExists(ctx context.Context, memberID string) (bool, error) {
	_, err := s.store.GetMemberByID(ctx, memberID)
	if errors.Is(err, db.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, storageFailure("get member", err)
	}
	return true, nil
}

// missing explains a foreign-key miss on a write that references both the
// caller and another row. If the caller is gone the write was
// unauthenticated; otherwise the other row is what is missing.
func (s *Service) missing(ctx context.Context, caller auth.Caller, notFoundMsg string) error {
	exists, err := s.MemberExists(ctx, caller.MemberID)
	if err != nil {
		return err
	}
	if !exists {
		return memberGone()
	}
	return notFound(notFoundMsg)
}
