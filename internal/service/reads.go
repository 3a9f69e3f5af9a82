package service

import (
	"context"
	"errors"

	"seekite/internal/auth"
	"seekite/internal/db"
)

// MarkRead sets the caller's watermark for the topic to now.
func (s *Service) MarkRead(ctx context.Context, caller auth.Caller, topicID string) error {
	if err := requireCaller(caller); err != nil {
		return err
	}
	if _, err := s.getTopic(ctx, topicID); err != nil {
		return err
	}
	if _, err := s.store.MarkRead(ctx, topicID, caller.MemberID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return s.missing(ctx, caller, "topic not found")
		}
		return storageFailure("mark read", err)
	}
	return nil
}

func (s *Service) UnreadCount(ctx context.Context, caller auth.Caller, topicID string) (int, error) {
	if err := requireCaller(caller); err != nil {
		return 0, err
	}
	if _, err := s.getTopic(ctx, topicID); err != nil {
		return 0, err
	}
	n, err := s.store.UnreadCount(ctx, topicID, caller.MemberID)
	if err != nil {
		return 0, storageFailure("unread count", err)
	}
	return n, nil
}
