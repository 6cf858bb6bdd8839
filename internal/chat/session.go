// Package chat keeps the live transcript of one donation chat room.
//
// A Session loads the room's history over REST, opens a live connection,
// and merges pushed events into an append-only transcript. All state is
// owned by a single loop goroutine; user actions, transport events, history
// results and timer expiries are handled one at a time in arrival order.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/umar/donaty-chat/internal/auth"
	"github.com/umar/donaty-chat/internal/logging"
	"github.com/umar/donaty-chat/internal/models"
	"github.com/umar/donaty-chat/internal/transport"
)

// DefaultDedupWindow is the number of trailing entries a live message is
// checked against before it is appended.
const DefaultDedupWindow = 50

type State int

const (
	StateUninitialized State = iota
	StateConnecting
	StateJoined
	StateDisconnected
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "Uninitialized"
	case StateConnecting:
		return "Connecting"
	case StateJoined:
		return "Joined"
	case StateDisconnected:
		return "Disconnected"
	case StateFailed:
		return "Failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal reports whether a new session is needed to chat again.
func (s State) Terminal() bool {
	return s == StateDisconnected || s == StateFailed
}

type HistoryFetcher interface {
	Fetch(ctx context.Context, roomID, token string) ([]models.Message, error)
}

// Hooks connect a session to its hosting view. They run on the session loop
// and must not call back into the session.
type Hooks struct {
	OnNotice func(Notice)
	OnScroll func()
	OnChange func(Snapshot)
}

type Options struct {
	RoomID string
	// Token overrides Credentials when set.
	Token string
	// Role is sent as a handshake hint and selects the credential slot.
	Role        models.Role
	Credentials auth.Resolver

	Dialer  transport.Dialer
	History HistoryFetcher
	Hooks   Hooks

	Clock     Clock
	TypingTTL time.Duration
	// DedupWindow of 0 disables de-duplication of live messages.
	DedupWindow int

	Logger *slog.Logger
}

type Snapshot struct {
	RoomID     string
	State      State
	Transcript []models.Message
	Typing     *TypingIndicator
}

type Session struct {
	roomID    string
	token     string
	role      models.Role
	dialer    transport.Dialer
	history   HistoryFetcher
	hooks     Hooks
	clock     Clock
	typingTTL time.Duration
	logger    *slog.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	inbox     chan interface{}
	done      chan struct{}

	// Owned by the loop goroutine.
	state          State
	transcript     *Transcript
	typing         typingState
	historyLoaded  bool
	early          []models.Message
	// historySeq numbers history fetches in issue order; historyApplied is
	// the newest one whose result replaced the transcript.
	historySeq     uint64
	historyApplied uint64
	conn           transport.Conn
	connReleased   bool
	eventsClosed   bool
	dialPending    bool
	disposed       bool
}

type historyResult struct {
	seq     uint64
	initial bool
	msgs    []models.Message
	err     error
}

type dialResult struct {
	conn transport.Conn
	err  error
}

type typingExpired struct {
	gen uint64
}

type command struct {
	fn   func()
	done chan struct{}
}

// Open validates the room and credentials and starts the session. With no
// room id or token it returns ErrAuthenticationMissing without dialing.
// Cancelling ctx disposes the session like Close.
func Open(ctx context.Context, opts Options) (*Session, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.RoomID == "" {
		return nil, ErrAuthenticationMissing
	}
	if opts.Dialer == nil {
		return nil, errors.New("chat: dialer is required")
	}

	token, role := opts.Token, opts.Role
	if token == "" && opts.Credentials != nil {
		creds, err := opts.Credentials.Resolve(ctx, opts.Role)
		if err != nil && !errors.Is(err, auth.ErrNoToken) {
			logger.Warn("credential lookup failed", logging.KeyRoomID, opts.RoomID, "error", err)
		}
		token = creds.Token
		if role == "" {
			role = creds.Role
		}
	}
	if token == "" {
		return nil, ErrAuthenticationMissing
	}

	clock := opts.Clock
	if clock == nil {
		clock = realClock{}
	}
	if _, err := auth.InspectToken(token, clock.Now()); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAuthenticationMissing, err)
	}

	ttl := opts.TypingTTL
	if ttl <= 0 {
		ttl = DefaultTypingTTL
	}

	sctx, cancel := context.WithCancel(ctx)
	s := &Session{
		roomID:     opts.RoomID,
		token:      token,
		role:       role,
		dialer:     opts.Dialer,
		history:    opts.History,
		hooks:      opts.Hooks,
		clock:      clock,
		typingTTL:  ttl,
		logger:     logging.ForSession(logger, logging.NewSessionID(), opts.RoomID),
		ctx:        sctx,
		cancel:     cancel,
		inbox:      make(chan interface{}),
		done:       make(chan struct{}),
		state:      StateConnecting,
		transcript: NewTranscript(opts.DedupWindow),
	}

	if s.history != nil {
		s.historySeq = 1
		go s.loadHistory()
	} else {
		s.historyLoaded = true
	}
	s.dialPending = true
	go s.dial()
	go s.run()

	s.logger.Info("chat session opened", logging.KeyRole, string(role))
	return s, nil
}

func (s *Session) RoomID() string { return s.roomID }

// Done is closed once the session is disposed and its connection released.
func (s *Session) Done() <-chan struct{} { return s.done }

// Close disposes the session: leaveRoom is sent best-effort and the
// connection is closed, immediately or once an in-flight dial resolves.
// Close never blocks and is safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(s.cancel)
	return nil
}

func (s *Session) Snapshot() Snapshot {
	var snap Snapshot
	if err := s.exec(func() { snap = s.snapshot() }); err != nil {
		// The loop has exited; its state is final.
		return s.snapshot()
	}
	return snap
}

func (s *Session) State() State {
	return s.Snapshot().State
}

// SendMessage sends trimmed text to the room. Blank text is ignored. The
// message reaches the transcript only when the server echoes it back.
func (s *Session) SendMessage(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	var err error
	if xerr := s.exec(func() { err = s.send(text) }); xerr != nil {
		return xerr
	}
	return err
}

// NotifyTyping tells the room the user is typing. It is dropped unless the
// session is joined.
func (s *Session) NotifyTyping() error {
	var err error
	if xerr := s.exec(func() {
		if s.disposed || s.state != StateJoined || s.connReleased {
			return
		}
		err = s.conn.Emit(transport.TypeTyping, transport.RoomPayload{RoomID: s.roomID})
	}); xerr != nil {
		return xerr
	}
	return err
}

// Reload fetches the history again and replaces the transcript with it. A
// result that arrives after a newer fetch was applied is dropped.
func (s *Session) Reload(ctx context.Context) error {
	if s.history == nil {
		return nil
	}
	var seq uint64
	if err := s.exec(func() {
		s.historySeq++
		seq = s.historySeq
	}); err != nil {
		return err
	}
	msgs, err := s.history.Fetch(ctx, s.roomID, s.token)
	if xerr := s.exec(func() { s.applyHistory(historyResult{seq: seq, msgs: msgs, err: err}) }); xerr != nil {
		return xerr
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrHistoryLoadFailed, err)
	}
	return nil
}

func (s *Session) loadHistory() {
	msgs, err := s.history.Fetch(s.ctx, s.roomID, s.token)
	s.post(historyResult{seq: 1, initial: true, msgs: msgs, err: err})
}

func (s *Session) dial() {
	conn, err := s.dialer.Dial(s.ctx, transport.Handshake{Token: s.token, Role: string(s.role)})
	// The loop waits for this result while dialPending, so post cannot fail.
	s.post(dialResult{conn: conn, err: err})
}

func (s *Session) post(v interface{}) bool {
	select {
	case s.inbox <- v:
		return true
	case <-s.done:
		return false
	}
}

func (s *Session) exec(fn func()) error {
	c := command{fn: fn, done: make(chan struct{})}
	if !s.post(c) {
		return ErrSessionClosed
	}
	<-c.done
	return nil
}

func (s *Session) run() {
	defer close(s.done)
	for {
		if s.disposed && !s.dialPending {
			return
		}

		var events <-chan transport.Event
		if s.conn != nil && !s.disposed && !s.eventsClosed {
			events = s.conn.Events()
		}
		var ctxDone <-chan struct{}
		if !s.disposed {
			ctxDone = s.ctx.Done()
		}

		select {
		case in := <-s.inbox:
			switch v := in.(type) {
			case historyResult:
				s.applyHistory(v)
			case dialResult:
				s.applyDial(v)
			case typingExpired:
				if !s.disposed && s.typing.expire(v.gen) {
					s.changed()
				}
			case command:
				v.fn()
				close(v.done)
			}
		case ev, ok := <-events:
			if !ok {
				s.handleDisconnect()
				continue
			}
			s.handleEvent(ev)
		case <-ctxDone:
			s.teardown()
		}
	}
}

// applyHistory replaces the transcript with r unless a fetch issued later
// has already been applied. Failures leave the transcript alone.
func (s *Session) applyHistory(r historyResult) {
	if s.disposed {
		return
	}
	if r.err != nil {
		if errors.Is(r.err, context.Canceled) {
			return
		}
		if r.initial {
			s.finishInitialLoad()
		}
		s.notify(fmt.Errorf("%w: %w", ErrHistoryLoadFailed, r.err))
		return
	}
	if r.seq <= s.historyApplied {
		s.logger.Debug("ignoring superseded history", "seq", r.seq, "applied", s.historyApplied)
		if r.initial {
			s.finishInitialLoad()
		}
		return
	}

	s.historyApplied = r.seq
	s.transcript.Replace(r.msgs)
	if !s.historyLoaded {
		// Live messages that beat the first load are kept unless the
		// history already has them.
		for _, m := range s.early {
			if !s.transcript.Contains(m.Key()) {
				s.transcript.Append(m)
			}
		}
		if r.initial {
			s.finishInitialLoad()
		}
	}
	s.logger.Debug("history loaded", "seq", r.seq, "count", len(r.msgs))
	s.scroll()
	s.changed()
}

// finishInitialLoad stops buffering live messages for the startup merge.
func (s *Session) finishInitialLoad() {
	s.historyLoaded = true
	s.early = nil
}

func (s *Session) applyDial(r dialResult) {
	s.dialPending = false
	if r.err != nil {
		if s.disposed {
			return
		}
		s.logger.Error("chat connect failed", "error", r.err)
		s.setState(StateFailed)
		s.notify(fmt.Errorf("%w: %w", ErrConnectFailed, r.err))
		return
	}
	s.conn = r.conn
	if s.disposed {
		s.releaseConn(true)
	}
}

func (s *Session) handleEvent(ev transport.Event) {
	switch ev.Type {
	case transport.TypeConnect:
		if s.state != StateConnecting {
			return
		}
		s.setState(StateJoined)
		if err := s.conn.Emit(transport.TypeJoinRoom, transport.RoomPayload{RoomID: s.roomID}); err != nil {
			s.logger.Warn("joinRoom emit failed", "error", err)
		}

	case transport.TypeConnectError:
		var p transport.ErrorPayload
		_ = ev.Decode(&p)
		msg := p.Msg
		if msg == "" {
			msg = "connection refused"
		}
		s.setState(StateFailed)
		s.notify(fmt.Errorf("%w: %s", ErrConnectFailed, msg))
		s.releaseConn(false)

	case transport.TypeJoinedRoom:
		s.logger.Debug("joined room")

	case transport.TypeMessage:
		var m models.Message
		if err := ev.Decode(&m); err != nil {
			s.logger.Warn("dropping undecodable message", "error", err)
			return
		}
		if !s.historyLoaded {
			s.early = append(s.early, m)
		}
		if s.transcript.Append(m) {
			s.scroll()
			s.changed()
		}

	case transport.TypeTyping:
		var p transport.TypingPayload
		if err := ev.Decode(&p); err != nil {
			s.logger.Debug("bad typing payload", "error", err)
		}
		gen := s.typing.show(p.User.DisplayName(), s.clock.Now(), s.typingTTL)
		s.typing.timer = s.clock.AfterFunc(s.typingTTL, func() {
			s.post(typingExpired{gen: gen})
		})
		s.changed()

	case transport.TypeError:
		var p transport.ErrorPayload
		_ = ev.Decode(&p)
		msg := p.Msg
		if msg == "" {
			msg = "Error en chat"
		}
		s.notify(fmt.Errorf("%w: %s", ErrTransport, msg))

	default:
		s.logger.Debug("ignoring event", "type", ev.Type)
	}
}

func (s *Session) handleDisconnect() {
	s.eventsClosed = true
	switch s.state {
	case StateConnecting, StateJoined:
		s.logger.Warn("chat disconnected")
		s.setState(StateDisconnected)
		s.notify(ErrTransportDisconnected)
	}
	s.releaseConn(false)
}

func (s *Session) send(text string) error {
	if s.disposed {
		return ErrSessionClosed
	}
	if s.state != StateJoined || s.connReleased {
		s.notify(ErrSendRejectedNotConnected)
		return ErrSendRejectedNotConnected
	}
	if err := s.conn.Emit(transport.TypeMessage, transport.SendMessagePayload{RoomID: s.roomID, Text: text}); err != nil {
		err = fmt.Errorf("chat: send: %w", err)
		s.notify(err)
		return err
	}
	return nil
}

func (s *Session) teardown() {
	if s.disposed {
		return
	}
	s.disposed = true
	s.typing.stop()
	s.releaseConn(true)
	s.logger.Info("chat session closed", "state", s.state.String(), "messages", s.transcript.Len())
}

// releaseConn closes the connection once. leave sends a best-effort
// leaveRoom first.
func (s *Session) releaseConn(leave bool) {
	if s.conn == nil || s.connReleased {
		return
	}
	s.connReleased = true
	if leave {
		if err := s.conn.Emit(transport.TypeLeaveRoom, transport.RoomPayload{RoomID: s.roomID}); err != nil {
			s.logger.Debug("leaveRoom emit failed", "error", err)
		}
	}
	if err := s.conn.Close(); err != nil {
		s.logger.Debug("close failed", "error", err)
	}
}

func (s *Session) setState(st State) {
	if s.state == st {
		return
	}
	s.logger.Info("chat state changed", "from", s.state.String(), "to", st.String())
	s.state = st
	s.changed()
}

func (s *Session) snapshot() Snapshot {
	return Snapshot{
		RoomID:     s.roomID,
		State:      s.state,
		Transcript: s.transcript.Messages(),
		Typing:     s.typing.snapshot(),
	}
}

func (s *Session) notify(err error) {
	s.logger.Warn("chat notice", "error", err)
	if s.hooks.OnNotice != nil {
		s.hooks.OnNotice(Notice{Err: err})
	}
}

func (s *Session) scroll() {
	if s.hooks.OnScroll != nil {
		s.hooks.OnScroll()
	}
}

func (s *Session) changed() {
	if s.hooks.OnChange != nil {
		s.hooks.OnChange(s.snapshot())
	}
}
