package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"seekite/internal/auth"
	"seekite/internal/db"
)

const maxContentLength = 4000

// ListMessages returns the topic's messages oldest first. An unknown topic
// simply has no messages.
func (s *Service) ListMessages(ctx context.Context, caller auth.Caller, topicID string) ([]db.MessageView, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	msgs, err := s.store.ListMessages(ctx, topicID)
	if err != nil {
		return nil, storageFailure("list messages", err)
	}
	return msgs, nil
}

// PostMessage creates a message, optionally replying to another message in
// the same topic. The result carries the author and no reactions; ReplyTo is
// left for the client to fill from the list it already holds.
func (s *Service) PostMessage(ctx context.Context, caller auth.Caller, topicID, content string, replyToID *string) (*db.MessageView, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, validationError("content is required")
	}
	if utf8.RuneCountInString(content) > maxContentLength {
		return nil, validationError("message too long")
	}
	if _, err := s.getTopic(ctx, topicID); err != nil {
		return nil, err
	}
	if replyToID != nil && *replyToID == "" {
		replyToID = nil
	}
	if replyToID != nil {
		target, err := s.store.GetMessage(ctx, *replyToID)
		if err != nil {
			if errors.Is(err, db.ErrNotFound) {
				return nil, notFound("reply target not found")
			}
			return nil, storageFailure("get reply target", err)
		}
		if target.TopicID != topicID {
			return nil, validationError("reply target belongs to another topic")
		}
	}

	author, err := s.store.GetMemberByID(ctx, caller.MemberID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, memberGone()
		}
		return nil, storageFailure("get author", err)
	}

	m, err := s.store.CreateMessage(ctx, topicID, author.ID, content, replyToID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, s.missing(ctx, caller, "topic not found")
		}
		return nil, storageFailure("create message", err)
	}
	return &db.MessageView{
		Message:     *m,
		MemberName:  author.Name,
		MemberColor: author.Color,
		Reactions:   []db.Reaction{},
	}, nil
}
