package db

import (
	"context"
	"database/sql"
	"fmt"
)

// ToggleReaction removes the member's reaction of type t on the message if
// it exists and adds it otherwise. Both steps run in one transaction; the
// unique constraint turns a lost race into ErrDuplicate.
func (d *DB) ToggleReaction(ctx context.Context, messageID, memberID string, t ReactionType) (*ToggleResult, error) {
	var result *ToggleResult
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, d.rebind(`SELECT COUNT(*) FROM messages WHERE id = ?`), messageID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check message: %w", err)
		}
		if exists == 0 {
			return fmt.Errorf("toggle reaction: %w", ErrNotFound)
		}

		res, err := tx.ExecContext(ctx, d.rebind(`
			DELETE FROM reactions WHERE message_id = ? AND member_id = ? AND type = ?`),
			messageID, memberID, string(t))
		if err != nil {
			return fmt.Errorf("delete reaction: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete reaction rows: %w", err)
		}
		if affected > 0 {
			result = &ToggleResult{Action: ActionRemoved, Type: t}
			return nil
		}

		r := &Reaction{
			ID:        NewID(),
			MessageID: messageID,
			MemberID:  memberID,
			Type:      t,
			CreatedAt: d.clock.Now(),
		}
		if _, err := tx.ExecContext(ctx, d.rebind(`
			INSERT INTO reactions (id, message_id, member_id, type, created_at)
			VALUES (?, ?, ?, ?, ?)`),
			r.ID, r.MessageID, r.MemberID, string(r.Type), d.ts(r.CreatedAt)); err != nil {
			return fmt.Errorf("insert reaction: %w", translate(err))
		}
		result = &ToggleResult{Action: ActionAdded, Type: t, Reaction: r}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CountReactions reports live reactions of type t by the member on the message.
func (d *DB) CountReactions(ctx context.Context, messageID, memberID string, t ReactionType) (int, error) {
	var n int
	err := d.QueryRowContext(ctx, d.rebind(`
		SELECT COUNT(*) FROM reactions WHERE message_id = ? AND member_id = ? AND type = ?`),
		messageID, memberID, string(t)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count reactions: %w", err)
	}
	return n, nil
}
