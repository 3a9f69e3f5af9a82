// Command seekite-watch follows one topic from the terminal, printing new
// messages and reaction totals as the server reports them.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"seekite/internal/client"
	"seekite/internal/config"
	"seekite/internal/db"
	"seekite/internal/logging"
	"seekite/internal/poll"
)

func main() {
	server := flag.String("server", "http://localhost:8080", "seekite server URL")
	name := flag.String("name", "", "member name")
	pin := flag.String("pin", "", "4-digit PIN (or SEEKITE_PIN)")
	topic := flag.String("topic", "", "topic ID to follow; empty lists topics and exits")
	interval := flag.Duration("interval", poll.DefaultInterval, "poll interval")
	markRead := flag.Bool("mark-read", false, "advance the read watermark after each change")
	level := flag.String("log-level", "warn", "log level")
	flag.Parse()

	config.LoadDotenv(".env")
	logger := logging.InitLogger(*level)

	if *pin == "" {
		*pin = os.Getenv("SEEKITE_PIN")
	}
	if *name == "" || *pin == "" {
		fmt.Fprintln(os.Stderr, "usage: seekite-watch -name NAME -pin PIN [-topic ID]")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := client.New(*server, nil)
	loginCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	me, err := c.Login(loginCtx, *name, *pin)
	cancel()
	if err != nil {
		logger.Error("login failed", "err", err)
		os.Exit(1)
	}

	if *topic == "" {
		if err := printTopics(ctx, os.Stdout, c); err != nil {
			logger.Error("list topics failed", "err", err)
			os.Exit(1)
		}
		return
	}

	w := &watcher{out: os.Stdout, seen: make(map[string]bool)}
	p := poll.New(c, *topic,
		poll.WithInterval(*interval),
		poll.WithLogger(logger),
		poll.OnChange(func(msgs []db.MessageView) {
			w.render(msgs)
			if *markRead {
				if err := c.MarkRead(ctx, *topic); err != nil {
					logger.Warn("mark read failed", "topic_id", *topic, "err", err)
				}
			}
		}))

	logger.Info("watching", "member", me.Name, "topic_id", *topic, "interval", *interval)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.Run(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		logoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.Logout(logoutCtx); err != nil {
			logger.Debug("logout failed", "err", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		logger.Error("watch stopped", "err", err)
		os.Exit(1)
	}
}

func printTopics(ctx context.Context, out io.Writer, c *client.Client) error {
	topics, err := c.ListTopics(ctx)
	if err != nil {
		return err
	}
	for _, t := range topics {
		fmt.Fprintf(out, "%s  %s  %-30s %s (%d messages, %d unread)\n",
			t.ID, t.WorshipDate, t.Title, t.BibleRef, t.MessageCount, t.UnreadCount)
	}
	return nil
}

type watcher struct {
	out       io.Writer
	seen      map[string]bool
	reactions int
}

// render prints messages not printed before and a line when the reaction
// total moves.
func (w *watcher) render(msgs []db.MessageView) {
	total := 0
	for _, m := range msgs {
		total += len(m.Reactions)
		if w.seen[m.ID] {
			continue
		}
		w.seen[m.ID] = true

		prefix := ""
		if m.ReplyTo != nil {
			prefix = fmt.Sprintf("  ↳ re %s: %q\n  ", m.ReplyTo.MemberName, truncate(m.ReplyTo.Content, 40))
		}
		fmt.Fprintf(w.out, "%s[%s] %s: %s\n", prefix, m.CreatedAt.Local().Format("15:04"), m.MemberName, m.Content)
	}
	if total != w.reactions {
		fmt.Fprintf(w.out, "  (%d reactions)\n", total)
		w.reactions = total
	}
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
