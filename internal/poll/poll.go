// Package poll keeps a client's copy of a topic's messages fresh by
// re-fetching on an interval.
package poll

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"seekite/internal/db"
)

const (
	DefaultInterval = 3 * time.Second
	defaultTimeout  = 10 * time.Second
)

// Lister fetches the current message list for a topic.
type Lister interface {
	ListMessages(ctx context.Context, topicID string) ([]db.MessageView, error)
}

// HasChanges is the cheap change test between the held list and a fresh
// poll: the count differs, the last id differs, or the total number of
// reactions differs. Edits with the same shape go unnoticed.
func HasChanges(prev, next []db.MessageView) bool {
	if len(prev) != len(next) {
		return true
	}
	if len(next) == 0 {
		return false
	}
	if prev[len(prev)-1].ID != next[len(next)-1].ID {
		return true
	}
	return totalReactions(prev) != totalReactions(next)
}

func totalReactions(msgs []db.MessageView) int {
	n := 0
	for _, m := range msgs {
		n += len(m.Reactions)
	}
	return n
}

type Option func(*Poller)

func WithInterval(d time.Duration) Option {
	return func(p *Poller) { p.interval = d }
}

// WithTimeout bounds each poll request.
func WithTimeout(d time.Duration) Option {
	return func(p *Poller) { p.timeout = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Poller) { p.log = l }
}

// OnChange is called with the new list whenever a poll replaces it.
func OnChange(fn func([]db.MessageView)) Option {
	return func(p *Poller) { p.onChange = fn }
}

// Poller polls one topic. Pause and Resume track whether the view is in the
// foreground; cancelling the context passed to Run tears it down.
type Poller struct {
	lister   Lister
	topicID  string
	interval time.Duration
	timeout  time.Duration
	onChange func([]db.MessageView)
	log      *slog.Logger

	mu     sync.Mutex
	held   []db.MessageView
	loaded bool
	paused bool
	wake   chan struct{}
}

func New(lister Lister, topicID string, opts ...Option) *Poller {
	p := &Poller{
		lister:   lister,
		topicID:  topicID,
		interval: DefaultInterval,
		timeout:  defaultTimeout,
		log:      slog.Default(),
		wake:     make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Messages returns the held list.
func (p *Poller) Messages() []db.MessageView {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]db.MessageView, len(p.held))
	copy(out, p.held)
	return out
}

// Pause stops polling until Resume.
func (p *Poller) Pause() {
	p.mu.Lock()
	p.paused = true
	p.mu.Unlock()
}

// Resume restarts polling and polls right away.
func (p *Poller) Resume() {
	p.mu.Lock()
	wasPaused := p.paused
	p.paused = false
	p.mu.Unlock()
	if wasPaused {
		select {
		case p.wake <- struct{}{}:
		default:
		}
	}
}

func (p *Poller) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

// Run polls until ctx is cancelled. It always returns nil; failed polls are
// logged at debug level and retried on the next tick.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	if !p.Paused() {
		p.tick(ctx)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if p.Paused() {
				continue
			}
			p.tick(ctx)
		case <-p.wake:
			// A Resume followed by Pause can leave a stale wake behind.
			if p.Paused() {
				continue
			}
			p.tick(ctx)
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	if _, err := p.PollOnce(ctx); err != nil && ctx.Err() == nil {
		p.log.DebugContext(ctx, "poll failed", "topic_id", p.topicID, "err", err)
	}
}

// PollOnce fetches the list and replaces the held copy if it changed. The
// first successful poll is always accepted.
func (p *Poller) PollOnce(ctx context.Context) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	next, err := p.lister.ListMessages(ctx, p.topicID)
	if err != nil {
		return false, err
	}

	p.mu.Lock()
	if p.loaded && !HasChanges(p.held, next) {
		p.mu.Unlock()
		return false, nil
	}
	p.held = next
	p.loaded = true
	onChange := p.onChange
	p.mu.Unlock()

	if onChange != nil {
		onChange(next)
	}
	return true, nil
}
