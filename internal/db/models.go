package db

import (
	"fmt"
	"time"
)

// ReactionType is the closed set of reactions a member can leave.
type ReactionType string

const (
	ReactionHeart ReactionType = "heart"
	ReactionAmen  ReactionType = "amen"
	ReactionPray  ReactionType = "pray"
)

// ReactionTypes lists every valid type in display order.
var ReactionTypes = []ReactionType{ReactionHeart, ReactionAmen, ReactionPray}

// ParseReactionType rejects anything outside ReactionTypes.
func ParseReactionType(s string) (ReactionType, error) {
	for _, t := range ReactionTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("invalid reaction type %q", s)
}

// Toggle outcomes.
const (
	ActionAdded   = "added"
	ActionRemoved = "removed"
)

// --- Models ---

type Member struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	PINHash   string    `json:"-"`
	Color     string    `json:"color"`
	IsLeader  bool      `json:"is_leader"`
	CreatedAt time.Time `json:"created_at"`
}

type Topic struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	BibleRef    string    `json:"bible_ref"`
	BibleText   string    `json:"bible_text"`
	Question    *string   `json:"question"`
	WorshipDate string    `json:"worship_date"`
	CreatedBy   *string   `json:"created_by"`
	CreatorName string    `json:"creator_name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewTopic carries the validated fields for CreateTopic.
type NewTopic struct {
	Title       string
	BibleRef    string
	BibleText   string
	Question    *string
	WorshipDate string
	CreatedBy   string
}

type TopicSummary struct {
	Topic
	MessageCount int `json:"message_count"`
	UnreadCount  int `json:"unread_count"`
}

type Message struct {
	ID        string    `json:"id"`
	TopicID   string    `json:"topic_id"`
	MemberID  string    `json:"member_id"`
	Content   string    `json:"content"`
	ReplyToID *string   `json:"reply_to_id"`
	CreatedAt time.Time `json:"created_at"`
}

type Reaction struct {
	ID         string       `json:"id"`
	MessageID  string       `json:"message_id"`
	MemberID   string       `json:"member_id"`
	MemberName string       `json:"member_name,omitempty"`
	Type       ReactionType `json:"type"`
	CreatedAt  time.Time    `json:"created_at"`
}

// ReplyRef is the one-level snapshot of the message being replied to.
type ReplyRef struct {
	ID          string    `json:"id"`
	Content     string    `json:"content"`
	MemberName  string    `json:"member_name"`
	MemberColor string    `json:"member_color"`
	CreatedAt   time.Time `json:"created_at"`
}

// MessageView is a message joined with its author, reactions and reply.
type MessageView struct {
	Message
	MemberName  string     `json:"member_name"`
	MemberColor string     `json:"member_color"`
	Reactions   []Reaction `json:"reactions"`
	ReplyTo     *ReplyRef  `json:"reply_to,omitempty"`
}

type ToggleResult struct {
	Action   string       `json:"action"`
	Type     ReactionType `json:"type"`
	Reaction *Reaction    `json:"reaction,omitempty"`
}
