package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"seekite/internal/auth"
	"seekite/internal/db"
)

const worshipDateLayout = "2006-01-02"

type TopicInput struct {
	Title       string `json:"title"`
	BibleRef    string `json:"bible_ref"`
	BibleText   string `json:"bible_text"`
	Question    string `json:"question"`
	WorshipDate string `json:"worship_date"`
}

func (in TopicInput) validate() (db.NewTopic, error) {
	out := db.NewTopic{
		Title:       strings.TrimSpace(in.Title),
		BibleRef:    strings.TrimSpace(in.BibleRef),
		BibleText:   strings.TrimSpace(in.BibleText),
		WorshipDate: strings.TrimSpace(in.WorshipDate),
	}
	if out.Title == "" || out.BibleRef == "" || out.BibleText == "" || out.WorshipDate == "" {
		return out, validationError("title, bible_ref, bible_text and worship_date are required")
	}
	if utf8.RuneCountInString(out.Title) > 200 {
		return out, validationError("title must be at most 200 characters")
	}
	if utf8.RuneCountInString(out.BibleRef) > 100 {
		return out, validationError("bible_ref must be at most 100 characters")
	}
	if _, err := time.Parse(worshipDateLayout, out.WorshipDate); err != nil {
		return out, validationError("worship_date must be YYYY-MM-DD")
	}
	if q := strings.TrimSpace(in.Question); q != "" {
		out.Question = &q
	}
	return out, nil
}

// ListTopics returns every topic with the caller's unread counts.
func (s *Service) ListTopics(ctx context.Context, caller auth.Caller) ([]db.TopicSummary, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	topics, err := s.store.ListTopics(ctx, caller.MemberID)
	if err != nil {
		return nil, storageFailure("list topics", err)
	}
	return topics, nil
}

func (s *Service) GetTopic(ctx context.Context, caller auth.Caller, topicID string) (*db.Topic, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	return s.getTopic(ctx, topicID)
}

func (s *Service) getTopic(ctx context.Context, topicID string) (*db.Topic, error) {
	t, err := s.store.GetTopic(ctx, topicID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, notFound("topic not found")
		}
		return nil, storageFailure("get topic", err)
	}
	return t, nil
}

func (s *Service) CreateTopic(ctx context.Context, caller auth.Caller, in TopicInput) (*db.Topic, error) {
	if err := s.requireTopicManager(caller); err != nil {
		return nil, err
	}
	nt, err := in.validate()
	if err != nil {
		return nil, err
	}
	nt.CreatedBy = caller.MemberID
	t, err := s.store.CreateTopic(ctx, nt)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, memberGone()
		}
		return nil, storageFailure("create topic", err)
	}
	t.CreatorName = caller.Name
	return t, nil
}

func (s *Service) DeleteTopic(ctx context.Context, caller auth.Caller, topicID string) error {
	if err := s.requireTopicManager(caller); err != nil {
		return err
	}
	if err := s.store.DeleteTopic(ctx, topicID); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return notFound("topic not found")
		}
		return storageFailure("delete topic", err)
	}
	s.log.InfoContext(ctx, "topic deleted", "topic_id", topicID, "member_id", caller.MemberID)
	return nil
}

func (s *Service) requireTopicManager(caller auth.Caller) error {
	if err := requireCaller(caller); err != nil {
		return err
	}
	if s.leaderOnlyTopics && !caller.IsLeader {
		return domainError(KindForbidden, "only leaders can manage topics")
	}
	return nil
}
