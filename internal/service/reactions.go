package service

import (
	"context"
	"errors"

	"seekite/internal/auth"
	"seekite/internal/db"
)

// ToggleReaction adds the caller's reaction of the given type, or removes it
// if already present. A uniqueness conflict means a concurrent toggle won the
// insert; the toggle is retried once, which then removes it.
func (s *Service) ToggleReaction(ctx context.Context, caller auth.Caller, messageID, reactionType string) (*db.ToggleResult, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	t, err := db.ParseReactionType(reactionType)
	if err != nil {
		return nil, validationError("type must be one of heart, amen, pray")
	}

	res, err := s.store.ToggleReaction(ctx, messageID, caller.MemberID, t)
	if errors.Is(err, db.ErrDuplicate) {
		s.log.DebugContext(ctx, "toggle reaction lost race, retrying",
			"message_id", messageID, "member_id", caller.MemberID, "type", t)
		res, err = s.store.ToggleReaction(ctx, messageID, caller.MemberID, t)
	}
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, s.missing(ctx, caller, "message not found")
		}
		return nil, storageFailure("toggle reaction", err)
	}
	if res.Reaction != nil && res.Reaction.MemberName == "" {
		res.Reaction.MemberName = caller.Name
	}
	return res, nil
}
