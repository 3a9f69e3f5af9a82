package db

import (
	"context"
	"database/sql"
	"fmt"
)

func (d *DB) CreateTopic(ctx context.Context, in NewTopic) (*Topic, error) {
	createdBy := in.CreatedBy
	t := &Topic{
		ID:          NewID(),
		Title:       in.Title,
		BibleRef:    in.BibleRef,
		BibleText:   in.BibleText,
		Question:    in.Question,
		WorshipDate: in.WorshipDate,
		CreatedBy:   &createdBy,
		CreatedAt:   d.clock.Now(),
	}
	_, err := d.ExecContext(ctx, d.rebind(`
		INSERT INTO topics (id, title, bible_ref, bible_text, question, worship_date, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		t.ID, t.Title, t.BibleRef, t.BibleText, t.Question, t.WorshipDate, t.CreatedBy, d.ts(t.CreatedAt))
	if err != nil {
		return nil, fmt.Errorf("insert topic: %w", translate(err))
	}
	return t, nil
}

func (d *DB) GetTopic(ctx context.Context, id string) (*Topic, error) {
	var (
		t           Topic
		question    sql.NullString
		createdBy   sql.NullString
		creatorName sql.NullString
	)
	err := d.QueryRowContext(ctx, d.rebind(`
		SELECT t.id, t.title, t.bible_ref, t.bible_text, t.question, t.worship_date,
		       t.created_by, c.name, t.created_at
		FROM topics t
		LEFT JOIN members c ON c.id = t.created_by
		WHERE t.id = ?`), id).
		Scan(&t.ID, &t.Title, &t.BibleRef, &t.BibleText, &question, &t.WorshipDate,
			&createdBy, &creatorName, scanTime(&t.CreatedAt))
	if err != nil {
		return nil, fmt.Errorf("get topic: %w", translate(err))
	}
	t.Question = nullString(question)
	t.CreatedBy = nullString(createdBy)
	t.CreatorName = creatorName.String
	return &t, nil
}

// DeleteTopic hard-deletes a topic. Messages, their reactions and read
// statuses go with it through the foreign keys.
func (d *DB) DeleteTopic(ctx context.Context, id string) error {
	res, err := d.ExecContext(ctx, d.rebind(`DELETE FROM topics WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete topic: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete topic: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("delete topic: %w", ErrNotFound)
	}
	return nil
}

// ListTopics returns every topic, newest worship date first, with message
// and unread counts for memberID. A missing read status counts every
// message as unread.
func (d *DB) ListTopics(ctx context.Context, memberID string) ([]TopicSummary, error) {
	rows, err := d.QueryContext(ctx, d.rebind(`
		SELECT t.id, t.title, t.bible_ref, t.bible_text, t.question, t.worship_date,
		       t.created_by, c.name, t.created_at,
		       COUNT(m.id),
		       COUNT(CASE WHEN rs.last_read_at IS NULL OR m.created_at > rs.last_read_at THEN m.id END)
		FROM topics t
		LEFT JOIN members c ON c.id = t.created_by
		LEFT JOIN messages m ON m.topic_id = t.id
		LEFT JOIN read_status rs ON rs.topic_id = t.id AND rs.member_id = ?
		GROUP BY t.id, t.title, t.bible_ref, t.bible_text, t.question, t.worship_date,
		         t.created_by, c.name, t.created_at
		ORDER BY t.worship_date DESC, t.created_at DESC`), memberID)
	if err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	defer rows.Close()

	topics := []TopicSummary{}
	for rows.Next() {
		var (
			s           TopicSummary
			question    sql.NullString
			createdBy   sql.NullString
			creatorName sql.NullString
		)
		if err := rows.Scan(&s.ID, &s.Title, &s.BibleRef, &s.BibleText, &question, &s.WorshipDate,
			&createdBy, &creatorName, scanTime(&s.CreatedAt), &s.MessageCount, &s.UnreadCount); err != nil {
			return nil, fmt.Errorf("scan topic: %w", err)
		}
		s.Question = nullString(question)
		s.CreatedBy = nullString(createdBy)
		s.CreatorName = creatorName.String
		topics = append(topics, s)
	}
	return topics, rows.Err()
}
