package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/umar/donaty-chat/internal/auth"
	"github.com/umar/donaty-chat/internal/chat"
	"github.com/umar/donaty-chat/internal/config"
	"github.com/umar/donaty-chat/internal/history"
	"github.com/umar/donaty-chat/internal/models"
	"github.com/umar/donaty-chat/internal/transport"
)

type openArgs struct {
	RoomID string
	Token  string
	Role   models.Role
}

func roleOf(s string) models.Role {
	return models.Role(strings.ToLower(strings.TrimSpace(s)))
}

func openRoom(ctx context.Context, cfg *config.Config, store auth.Store, args openArgs, stdin io.Reader, stdout io.Writer) error {
	wsURL, err := cfg.WebsocketURL()
	if err != nil {
		return err
	}

	p := newPrinter(stdout)
	sess, err := chat.Open(ctx, chat.Options{
		RoomID:      args.RoomID,
		Token:       args.Token,
		Role:        args.Role,
		Credentials: auth.NewStoreResolver(store),
		Dialer: &transport.WSDialer{
			URL:       wsURL,
			Dialer:    &websocket.Dialer{HandshakeTimeout: cfg.Backend.DialTimeout},
			EmitRate:  cfg.Chat.EmitRate,
			EmitBurst: cfg.Chat.EmitBurst,
		},
		History:     history.NewClient(cfg.APIBase(), &http.Client{Timeout: cfg.Backend.HistoryTimeout}),
		Hooks:       p.hooks(),
		TypingTTL:   cfg.Chat.TypingTTL,
		DedupWindow: cfg.Chat.DedupWindow,
	})
	if err != nil {
		return err
	}
	defer func() {
		sess.Close()
		<-sess.Done()
	}()

	lines := make(chan string)
	stopped := make(chan struct{})
	defer close(stopped)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(stdin)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-stopped:
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sess.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := handleLine(ctx, sess, line); quit {
				return nil
			}
		}
	}
}

func handleLine(ctx context.Context, sess *chat.Session, line string) bool {
	switch strings.TrimSpace(line) {
	case "":
		return false
	case "/quit":
		return true
	case "/reload":
		if err := sess.Reload(ctx); err != nil {
			slog.Debug("reload failed", "error", err)
		}
		return false
	}
	if err := sess.NotifyTyping(); err != nil {
		slog.Debug("typing notify failed", "error", err)
	}
	// Rejections are reported through the notice hook.
	if err := sess.SendMessage(line); err != nil && !errors.Is(err, chat.ErrSendRejectedNotConnected) {
		slog.Debug("send failed", "error", err)
	}
	return false
}

// printer renders session changes as plain lines. Hooks run on the session
// loop; the mutex guards against output interleaving with the main goroutine.
type printer struct {
	mu     sync.Mutex
	out    io.Writer
	seen   map[string]bool
	state  chat.State
	typing string
}

func newPrinter(out io.Writer) *printer {
	return &printer{out: out, seen: make(map[string]bool)}
}

func (p *printer) hooks() chat.Hooks {
	return chat.Hooks{
		OnNotice: p.notice,
		OnChange: p.change,
	}
}

func (p *printer) notice(n chat.Notice) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "! %s\n", n.Message())
}

func (p *printer) change(snap chat.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if snap.State != p.state {
		p.state = snap.State
		fmt.Fprintf(p.out, "-- %s (%s)\n", strings.ToLower(snap.State.String()), snap.RoomID)
	}
	for _, m := range snap.Transcript {
		if p.seen[m.Key()] {
			continue
		}
		p.seen[m.Key()] = true
		fmt.Fprintln(p.out, formatMessage(m))
	}

	name := ""
	if snap.Typing != nil {
		name = snap.Typing.DisplayName
	}
	if name != p.typing {
		p.typing = name
		if name != "" {
			fmt.Fprintf(p.out, "   %s está escribiendo...\n", name)
		}
	}
}

func formatMessage(m models.Message) string {
	ts := ""
	if !m.CreatedAt.IsZero() {
		ts = m.CreatedAt.Local().Format("15:04") + " "
	}
	return fmt.Sprintf("%s[%s] %s: %s", ts, m.RoleLabel(), m.SenderDisplayName(), m.Text)
}
