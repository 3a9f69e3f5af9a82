package db

import (
	"context"
	"fmt"
	"time"
)

// MarkRead moves the member's watermark for the topic to now.
func (d *DB) MarkRead(ctx context.Context, topicID, memberID string) (time.Time, error) {
	now := d.clock.Now()
	_, err := d.ExecContext(ctx, d.rebind(`
		INSERT INTO read_status (topic_id, member_id, last_read_at)
		VALUES (?, ?, ?)
		ON CONFLICT (topic_id, member_id) DO UPDATE SET last_read_at = excluded.last_read_at`),
		topicID, memberID, d.ts(now))
	if err != nil {
		return time.Time{}, fmt.Errorf("mark read: %w", translate(err))
	}
	return now, nil
}

func (d *DB) UnreadCount(ctx context.Context, topicID, memberID string) (int, error) {
	var n int
	err := d.QueryRowContext(ctx, d.rebind(`
		SELECT COUNT(*)
		FROM messages m
		LEFT JOIN read_status rs ON rs.topic_id = m.topic_id AND rs.member_id = ?
		WHERE m.topic_id = ?
		  AND (rs.last_read_at IS NULL OR m.created_at > rs.last_read_at)`),
		memberID, topicID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("unread count: %w", err)
	}
	return n, nil
}
