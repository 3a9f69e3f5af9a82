package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"seekite/internal/auth"
	"seekite/internal/db"
	"seekite/internal/logging"
)

type fakeStore struct {
	getTopicFn       func(context.Context, string) (*db.Topic, error)
	getMessageFn     func(context.Context, string) (*db.Message, error)
	getMemberByIDFn  func(context.Context, string) (*db.Member, error)
	createMemberFn   func(context.Context, string, string, string) (*db.Member, error)
	createMessageFn  func(context.Context, string, string, string, *string) (*db.Message, error)
	toggleReactionFn func(context.Context, string, string, db.ReactionType) (*db.ToggleResult, error)
	markReadFn       func(context.Context, string, string) (time.Time, error)
}

func (f *fakeStore) CreateMember(ctx context.Context, name, hash, color string) (*db.Member, error) {
	if f.createMemberFn != nil {
		return f.createMemberFn(ctx, name, hash, color)
	}
	return &db.Member{ID: "m-new", Name: name, PINHash: hash, Color: color}, nil
}
func (f *fakeStore) GetMemberByID(ctx context.Context, id string) (*db.Member, error) {
	if f.getMemberByIDFn != nil {
		return f.getMemberByIDFn(ctx, id)
	}
	return &db.Member{ID: id, Name: "Grace", Color: DefaultColor}, nil
}
func (f *fakeStore) GetMemberByName(context.Context, string) (*db.Member, error) {
	return nil, db.ErrNotFound
}
func (f *fakeStore) MemberNameExists(context.Context, string) (bool, error) { return false, nil }
func (f *fakeStore) ListMembers(context.Context) ([]db.Member, error)     { return nil, nil }
func (f *fakeStore) DeleteMember(context.Context, string) error           { return nil }
func (f *fakeStore) CreateTopic(_ context.Context, in db.NewTopic) (*db.Topic, error) {
	return &db.Topic{ID: "t-new", Title: in.Title, Question: in.Question, WorshipDate: in.WorshipDate}, nil
}
func (f *fakeStore) GetTopic(ctx context.Context, id string) (*db.Topic, error) {
	if f.getTopicFn != nil {
		return f.getTopicFn(ctx, id)
	}
	return &db.Topic{ID: id}, nil
}
func (f *fakeStore) DeleteTopic(context.Context, string) error { return nil }
func (f *fakeStore) ListTopics(context.Context, string) ([]db.TopicSummary, error) {
	return nil, nil
}
func (f *fakeStore) CreateMessage(ctx context.Context, topicID, memberID, content string, replyToID *string) (*db.Message, error) {
	if f.createMessageFn != nil {
		return f.createMessageFn(ctx, topicID, memberID, content, replyToID)
	}
	return &db.Message{ID: "msg-new", TopicID: topicID, MemberID: memberID, Content: content, ReplyToID: replyToID}, nil
}
func (f *fakeStore) GetMessage(ctx context.Context, id string) (*db.Message, error) {
	if f.getMessageFn != nil {
		return f.getMessageFn(ctx, id)
	}
	return nil, db.ErrNotFound
}
func (f *fakeStore) ListMessages(context.Context, string) ([]db.MessageView, error) {
	return []db.MessageView{}, nil
}
func (f *fakeStore) ToggleReaction(ctx context.Context, messageID, memberID string, t db.ReactionType) (*db.ToggleResult, error) {
	if f.toggleReactionFn != nil {
		return f.toggleReactionFn(ctx, messageID, memberID, t)
	}
	return &db.ToggleResult{Action: db.ActionAdded, Type: t, Reaction: &db.Reaction{Type: t}}, nil
}
func (f *fakeStore) MarkRead(ctx context.Context, topicID, memberID string) (time.Time, error) {
	if f.markReadFn != nil {
		return f.markReadFn(ctx, topicID, memberID)
	}
	return time.Now(), nil
}
func (f *fakeStore) UnreadCount(context.Context, string, string) (int, error) { return 0, nil }

var grace = auth.Caller{MemberID: "m-grace", Name: "Grace", IsLeader: true}

func newTestService(store Store, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	return New(store, auth.New("test-secret", time.Hour, nil), opts)
}

func assertKind(t *testing.T, err error, want *DomainError) {
	t.Helper()
	if !errors.Is(err, want) {
		t.Fatalf("expected %s, got %v", want.Kind, err)
	}
}

func TestToggleReactionRetriesOnceAfterConflict(t *testing.T) {
	calls := 0
	fs := &fakeStore{
		toggleReactionFn: func(_ context.Context, _, _ string, rt db.ReactionType) (*db.ToggleResult, error) {
			calls++
			if calls == 1 {
				return nil, fmt.Errorf("insert reaction: %w", db.ErrDuplicate)
			}
			return &db.ToggleResult{Action: db.ActionRemoved, Type: rt}, nil
		},
	}
	svc := newTestService(fs, Options{})

	res, err := svc.ToggleReaction(context.Background(), grace, "msg-1", "amen")
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected exactly one retry, got %d calls", calls)
	}
	if res.Action != db.ActionRemoved {
		t.Fatalf("expected removed after retry, got %s", res.Action)
	}
}

func TestToggleReactionGivesUpAfterSecondConflict(t *testing.T) {
	calls := 0
	fs := &fakeStore{
		toggleReactionFn: func(context.Context, string, string, db.ReactionType) (*db.ToggleResult, error) {
			calls++
			return nil, db.ErrDuplicate
		},
	}
	_, err := newTestService(fs, Options{}).ToggleReaction(context.Background(), grace, "msg-1", "heart")
	assertKind(t, err, ErrStorage)
	if calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
}

func TestToggleReactionValidation(t *testing.T) {
	fs := &fakeStore{
		toggleReactionFn: func(context.Context, string, string, db.ReactionType) (*db.ToggleResult, error) {
			t.Fatal("store must not be called for invalid types")
			return nil, nil
		},
	}
	svc := newTestService(fs, Options{})
	for _, typ := range []string{"", "like", "Heart"} {
		_, err := svc.ToggleReaction(context.Background(), grace, "msg-1", typ)
		assertKind(t, err, ErrValidation)
	}
}

func TestToggleReactionMissingMessage(t *testing.T) {
	fs := &fakeStore{
		toggleReactionFn: func(context.Context, string, string, db.ReactionType) (*db.ToggleResult, error) {
			return nil, fmt.Errorf("toggle reaction: %w", db.ErrNotFound)
		},
	}
	_, err := newTestService(fs, Options{}).ToggleReaction(context.Background(), grace, "gone", "pray")
	assertKind(t, err, ErrNotFound)
}

func TestToggleReactionByRemovedMember(t *testing.T) {
	fs := &fakeStore{
		toggleReactionFn: func(context.Context, string, string, db.ReactionType) (*db.ToggleResult, error) {
			return nil, fmt.Errorf("insert reaction: %w", db.ErrNotFound)
		},
		getMemberByIDFn: func(context.Context, string) (*db.Member, error) { return nil, db.ErrNotFound },
	}
	_, err := newTestService(fs, Options{}).ToggleReaction(context.Background(), grace, "msg-1", "amen")
	assertKind(t, err, ErrUnauthenticated)
}

func TestUnauthenticatedCaller(t *testing.T) {
	svc := newTestService(&fakeStore{}, Options{})
	ctx := context.Background()
	nobody := auth.Caller{}

	_, err := svc.ListTopics(ctx, nobody)
	assertKind(t, err, ErrUnauthenticated)
	_, err = svc.PostMessage(ctx, nobody, "t1", "hi", nil)
	assertKind(t, err, ErrUnauthenticated)
	_, err = svc.ToggleReaction(ctx, nobody, "m1", "heart")
	assertKind(t, err, ErrUnauthenticated)
	assertKind(t, svc.MarkRead(ctx, nobody, "t1"), ErrUnauthenticated)
	assertKind(t, svc.DeleteTopic(ctx, nobody, "t1"), ErrUnauthenticated)
}

func TestPostMessageValidation(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(&fakeStore{}, Options{})

	_, err := svc.PostMessage(ctx, grace, "t1", "   \n\t", nil)
	assertKind(t, err, ErrValidation)

	long := make([]byte, maxContentLength+1)
	for i := range long {
		long[i] = 'a'
	}
	_, err = svc.PostMessage(ctx, grace, "t1", string(long), nil)
	assertKind(t, err, ErrValidation)
}

func TestPostMessageMissingTopic(t *testing.T) {
	fs := &fakeStore{
		getTopicFn: func(context.Context, string) (*db.Topic, error) { return nil, db.ErrNotFound },
	}
	_, err := newTestService(fs, Options{}).PostMessage(context.Background(), grace, "t-gone", "hello", nil)
	assertKind(t, err, ErrNotFound)
}

func TestPostMessageReplyChecks(t *testing.T) {
	ctx := context.Background()
	fs := &fakeStore{
		getMessageFn: func(_ context.Context, id string) (*db.Message, error) {
			if id == "elsewhere" {
				return &db.Message{ID: id, TopicID: "t-other"}, nil
			}
			return nil, db.ErrNotFound
		},
	}
	svc := newTestService(fs, Options{})

	missing := "missing"
	_, err := svc.PostMessage(ctx, grace, "t1", "hi", &missing)
	assertKind(t, err, ErrNotFound)

	elsewhere := "elsewhere"
	_, err = svc.PostMessage(ctx, grace, "t1", "hi", &elsewhere)
	assertKind(t, err, ErrValidation)

	empty := ""
	v, err := svc.PostMessage(ctx, grace, "t1", "  hi  ", &empty)
	if err != nil {
		t.Fatalf("empty reply id should be ignored: %v", err)
	}
	if v.ReplyToID != nil || v.Content != "hi" {
		t.Fatalf("unexpected view: %+v", v)
	}
	if v.Reactions == nil || len(v.Reactions) != 0 {
		t.Fatalf("expected empty reaction list, got %v", v.Reactions)
	}
	if v.MemberName != "Grace" {
		t.Fatalf("expected author name, got %q", v.MemberName)
	}
}

func TestCreateTopicValidation(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(&fakeStore{}, Options{})
	valid := TopicInput{Title: "Week 6", BibleRef: "John 3:16", BibleText: "For God so loved", WorshipDate: "2024-02-09"}

	cases := map[string]func(in *TopicInput){
		"missing title": func(in *TopicInput) { in.Title = "  " },
		"missing ref":   func(in *TopicInput) { in.BibleRef = "" },
		"missing text":  func(in *TopicInput) { in.BibleText = "" },
		"missing date":  func(in *TopicInput) { in.WorshipDate = "" },
		"bad date":      func(in *TopicInput) { in.WorshipDate = "Feb 9" },
	}
	for name, mutate := range cases {
		in := valid
		mutate(&in)
		if _, err := svc.CreateTopic(ctx, grace, in); !errors.Is(err, ErrValidation) {
			t.Errorf("%s: expected validation error, got %v", name, err)
		}
	}

	topic, err := svc.CreateTopic(ctx, grace, valid)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if topic.Question != nil {
		t.Fatalf("empty question should be stored as null, got %q", *topic.Question)
	}
}

func TestLeaderOnlyTopics(t *testing.T) {
	ctx := context.Background()
	member := auth.Caller{MemberID: "m-joon", Name: "Joon"}
	in := TopicInput{Title: "Week 6", BibleRef: "John 3:16", BibleText: "...", WorshipDate: "2024-02-09"}

	open := newTestService(&fakeStore{}, Options{})
	if _, err := open.CreateTopic(ctx, member, in); err != nil {
		t.Fatalf("default policy lets any member create topics: %v", err)
	}

	strict := newTestService(&fakeStore{}, Options{LeaderOnlyTopics: true})
	_, err := strict.CreateTopic(ctx, member, in)
	assertKind(t, err, ErrForbidden)
	assertKind(t, strict.DeleteTopic(ctx, member, "t1"), ErrForbidden)
	if _, err := strict.CreateTopic(ctx, grace, in); err != nil {
		t.Fatalf("leader should create topics: %v", err)
	}
}

func TestSignupValidation(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(&fakeStore{}, Options{})
	cases := []struct{ name, pin, color string }{
		{"", "1234", ""},
		{"Grace", "", ""},
		{"Grace", "123", ""},
		{"Grace", "12345", ""},
		{"Grace", "abcd", ""},
		{"Grace", "1234", "red"},
		{string(make([]rune, 51)), "1234", ""},
	}
	for _, c := range cases {
		if _, err := svc.Signup(ctx, c.name, c.pin, c.color); !errors.Is(err, ErrValidation) {
			t.Errorf("signup(%q, %q, %q): expected validation error, got %v", c.name, c.pin, c.color, err)
		}
	}
}

func TestSignupDuplicateName(t *testing.T) {
	fs := &fakeStore{
		createMemberFn: func(context.Context, string, string, string) (*db.Member, error) {
			return nil, fmt.Errorf("insert member: %w", db.ErrDuplicate)
		},
	}
	_, err := newTestService(fs, Options{}).Signup(context.Background(), "Grace", "1234", "")
	assertKind(t, err, ErrConflict)
}

func TestStorageFailureIsOpaque(t *testing.T) {
	boom := errors.New("disk on fire")
	fs := &fakeStore{
		markReadFn: func(context.Context, string, string) (time.Time, error) { return time.Time{}, boom },
	}
	err := newTestService(fs, Options{}).MarkRead(context.Background(), grace, "t1")
	assertKind(t, err, ErrStorage)
	if !errors.Is(err, boom) {
		t.Fatal("cause should stay reachable for logging")
	}
	if de := AsDomainError(err); de.Message != "storage failure" {
		t.Fatalf("message should not leak the cause, got %q", de.Message)
	}
}

// --- Against a real store ---

func newSQLiteService(t *testing.T) *Service {
	t.Helper()
	store, err := db.Open(context.Background(), db.DriverSQLite, filepath.Join(t.TempDir(), "seekite.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return newTestService(store, Options{})
}

func callerOf(s *Session) auth.Caller {
	return auth.Caller{MemberID: s.Member.ID, Name: s.Member.Name, IsLeader: s.Member.IsLeader}
}

func TestGraceAndJoonScenario(t *testing.T) {
	ctx := context.Background()
	svc := newSQLiteService(t)

	gs, err := svc.Signup(ctx, "Grace", "1234", "")
	if err != nil {
		t.Fatalf("signup grace: %v", err)
	}
	js, err := svc.Signup(ctx, "Joon", "5678", "#A0B0C0")
	if err != nil {
		t.Fatalf("signup joon: %v", err)
	}
	if !gs.Member.IsLeader || js.Member.IsLeader {
		t.Fatal("only the first member leads")
	}
	g, j := callerOf(gs), callerOf(js)

	topic, err := svc.CreateTopic(ctx, g, TopicInput{
		Title: "Week 6", BibleRef: "John 3:16", BibleText: "...", WorshipDate: "2024-02-09",
	})
	if err != nil {
		t.Fatalf("create topic: %v", err)
	}
	msg, err := svc.PostMessage(ctx, j, topic.ID, "Amazing grace", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}

	topics, err := svc.ListTopics(ctx, g)
	if err != nil {
		t.Fatalf("list topics: %v", err)
	}
	if len(topics) != 1 || topics[0].MessageCount != 1 || topics[0].UnreadCount != 1 {
		t.Fatalf("expected 1 message, 1 unread, got %+v", topics)
	}

	if err := svc.MarkRead(ctx, g, topic.ID); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	topics, _ = svc.ListTopics(ctx, g)
	if topics[0].UnreadCount != 0 {
		t.Fatalf("expected 0 unread after mark read, got %d", topics[0].UnreadCount)
	}

	added, err := svc.ToggleReaction(ctx, g, msg.ID, "heart")
	if err != nil || added.Action != db.ActionAdded {
		t.Fatalf("expected added, got %+v %v", added, err)
	}
	if added.Reaction.MemberName != "Grace" {
		t.Fatalf("expected reactor name, got %q", added.Reaction.MemberName)
	}
	removed, err := svc.ToggleReaction(ctx, g, msg.ID, "heart")
	if err != nil || removed.Action != db.ActionRemoved {
		t.Fatalf("expected removed, got %+v %v", removed, err)
	}
}

func TestLoginAndWithdraw(t *testing.T) {
	ctx := context.Background()
	svc := newSQLiteService(t)

	if _, err := svc.Signup(ctx, "Grace", "1234", ""); err != nil {
		t.Fatalf("signup: %v", err)
	}
	if _, err := svc.Signup(ctx, "Grace", "9999", ""); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if _, err := svc.Login(ctx, "Grace", "0000"); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("wrong PIN should be unauthenticated, got %v", err)
	}
	if _, err := svc.Login(ctx, "Nobody", "1234"); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("unknown name should be unauthenticated, got %v", err)
	}
	sess, err := svc.Login(ctx, " Grace ", "1234")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if sess.Token == "" {
		t.Fatal("expected token")
	}

	exists, err := svc.CheckName(ctx, "Grace")
	if err != nil || !exists {
		t.Fatalf("expected Grace to exist: %v %v", exists, err)
	}

	g := callerOf(sess)
	if err := svc.Withdraw(ctx, g); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if exists, _ := svc.CheckName(ctx, "Grace"); exists {
		t.Fatal("name should be free after withdrawal")
	}
	if _, err := svc.Me(ctx, g); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated after withdrawal, got %v", err)
	}
	if err := svc.Withdraw(ctx, g); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("second withdrawal should be unauthenticated, got %v", err)
	}
}

// A withdrawn member's other tokens still parse. Writes made with them must
// fail as unauthenticated, not blame the topic or message they reference.
func TestWithdrawnMemberIsUnauthenticated(t *testing.T) {
	ctx := context.Background()
	svc := newSQLiteService(t)

	gs, _ := svc.Signup(ctx, "Grace", "1234", "")
	js, _ := svc.Signup(ctx, "Joon", "5678", "")
	g, j := callerOf(gs), callerOf(js)
	topic, err := svc.CreateTopic(ctx, g, TopicInput{
		Title: "Week 6", BibleRef: "John 3:16", BibleText: "...", WorshipDate: "2024-02-09",
	})
	if err != nil {
		t.Fatalf("create topic: %v", err)
	}
	msg, err := svc.PostMessage(ctx, g, topic.ID, "Amazing grace", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if err := svc.Withdraw(ctx, j); err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	if exists, err := svc.MemberExists(ctx, j.MemberID); err != nil || exists {
		t.Fatalf("MemberExists = %v, %v", exists, err)
	}
	_, err = svc.ToggleReaction(ctx, j, msg.ID, "heart")
	assertKind(t, err, ErrUnauthenticated)
	assertKind(t, svc.MarkRead(ctx, j, topic.ID), ErrUnauthenticated)
	_, err = svc.PostMessage(ctx, j, topic.ID, "still here?", nil)
	assertKind(t, err, ErrUnauthenticated)
	_, err = svc.CreateTopic(ctx, j, TopicInput{
		Title: "Week 7", BibleRef: "Psalm 23", BibleText: "...", WorshipDate: "2024-02-16",
	})
	assertKind(t, err, ErrUnauthenticated)

	// Grace is unaffected and still gets not-found for a missing message.
	_, err = svc.ToggleReaction(ctx, g, "no-such-message", "heart")
	assertKind(t, err, ErrNotFound)
}
