package db

import (
	"context"
	"database/sql"
	"fmt"
)

func (d *DB) CreateMessage(ctx context.Context, topicID, memberID, content string, replyToID *string) (*Message, error) {
	m := &Message{
		ID:        NewID(),
		TopicID:   topicID,
		MemberID:  memberID,
		Content:   content,
		ReplyToID: replyToID,
		CreatedAt: d.clock.Now(),
	}
	_, err := d.ExecContext(ctx, d.rebind(`
		INSERT INTO messages (id, topic_id, member_id, content, reply_to_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`),
		m.ID, m.TopicID, m.MemberID, m.Content, m.ReplyToID, d.ts(m.CreatedAt))
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", translate(err))
	}
	return m, nil
}

func (d *DB) GetMessage(ctx context.Context, id string) (*Message, error) {
	var (
		m       Message
		replyTo sql.NullString
	)
	err := d.QueryRowContext(ctx, d.rebind(`
		SELECT id, topic_id, member_id, content, reply_to_id, created_at
		FROM messages WHERE id = ?`), id).
		Scan(&m.ID, &m.TopicID, &m.MemberID, &m.Content, &replyTo, scanTime(&m.CreatedAt))
	if err != nil {
		return nil, fmt.Errorf("get message: %w", translate(err))
	}
	m.ReplyToID = nullString(replyTo)
	return &m, nil
}

// ListMessages returns a topic's messages oldest first, joined with author
// identity, reactions and a reply snapshot. Replies are resolved only against
// the returned set; a reply whose target is gone has no ReplyTo.
func (d *DB) ListMessages(ctx context.Context, topicID string) ([]MessageView, error) {
	rows, err := d.QueryContext(ctx, d.rebind(`
		SELECT m.id, m.topic_id, m.member_id, m.content, m.reply_to_id, m.created_at,
		       mb.name, mb.color
		FROM messages m
		JOIN members mb ON mb.id = m.member_id
		WHERE m.topic_id = ?
		ORDER BY m.created_at ASC, m.id ASC`), topicID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	msgs := []MessageView{}
	for rows.Next() {
		var (
			v       MessageView
			replyTo sql.NullString
		)
		if err := rows.Scan(&v.ID, &v.TopicID, &v.MemberID, &v.Content, &replyTo, scanTime(&v.CreatedAt),
			&v.MemberName, &v.MemberColor); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		v.ReplyToID = nullString(replyTo)
		v.Reactions = []Reaction{}
		msgs = append(msgs, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	rows.Close()

	reactions, err := d.topicReactions(ctx, topicID)
	if err != nil {
		return nil, err
	}

	index := make(map[string]int, len(msgs))
	for i := range msgs {
		index[msgs[i].ID] = i
	}
	for _, r := range reactions {
		if i, ok := index[r.MessageID]; ok {
			msgs[i].Reactions = append(msgs[i].Reactions, r)
		}
	}
	for i := range msgs {
		if msgs[i].ReplyToID == nil {
			continue
		}
		j, ok := index[*msgs[i].ReplyToID]
		if !ok {
			continue
		}
		target := msgs[j]
		msgs[i].ReplyTo = &ReplyRef{
			ID:          target.ID,
			Content:     target.Content,
			MemberName:  target.MemberName,
			MemberColor: target.MemberColor,
			CreatedAt:   target.CreatedAt,
		}
	}
	return msgs, nil
}

func (d *DB) topicReactions(ctx context.Context, topicID string) ([]Reaction, error) {
	rows, err := d.QueryContext(ctx, d.rebind(`
		SELECT r.id, r.message_id, r.member_id, mb.name, r.type, r.created_at
		FROM reactions r
		JOIN messages m ON m.id = r.message_id
		JOIN members mb ON mb.id = r.member_id
		WHERE m.topic_id = ?
		ORDER BY r.created_at ASC, r.id ASC`), topicID)
	if err != nil {
		return nil, fmt.Errorf("list reactions: %w", err)
	}
	defer rows.Close()

	var out []Reaction
	for rows.Next() {
		var r Reaction
		if err := rows.Scan(&r.ID, &r.MessageID, &r.MemberID, &r.MemberName, &r.Type, scanTime(&r.CreatedAt)); err != nil {
			return nil, fmt.Errorf("scan reaction: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
