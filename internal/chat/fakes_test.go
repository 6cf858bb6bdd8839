package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/umar/donaty-chat/internal/models"
	"github.com/umar/donaty-chat/internal/transport"
)

const waitTimeout = 2 * time.Second

type emitted struct {
	Type    string
	Payload interface{}
}

type fakeConn struct {
	events chan transport.Event

	mu      sync.Mutex
	emitted []emitted
	closes  int
}

func newFakeConn() *fakeConn {
	return &fakeConn{events: make(chan transport.Event)}
}

func (c *fakeConn) Emit(eventType string, payload interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.emitted = append(c.emitted, emitted{Type: eventType, Payload: payload})
	return nil
}

func (c *fakeConn) Events() <-chan transport.Event { return c.events }

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
	return nil
}

func (c *fakeConn) emittedOf(eventType string) []emitted {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []emitted
	for _, e := range c.emitted {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

func (c *fakeConn) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

// deliver hands ev to the session loop. The channel is unbuffered, so when
// deliver returns the loop has taken the event and handles it before any
// later call.
func (c *fakeConn) deliver(t *testing.T, eventType string, payload interface{}) {
	t.Helper()
	if !c.tryDeliver(eventType, payload, waitTimeout) {
		t.Fatalf("event %q was not consumed", eventType)
	}
}

func (c *fakeConn) tryDeliver(eventType string, payload interface{}, wait time.Duration) bool {
	ev := transport.Event{Type: eventType}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			panic(err)
		}
		ev.Payload = data
	}
	select {
	case c.events <- ev:
		return true
	case <-time.After(wait):
		return false
	}
}

func (c *fakeConn) drop() { close(c.events) }

type fakeDialer struct {
	conn *fakeConn
	err  error
	// gate, when set, holds Dial until it is closed.
	gate chan struct{}

	mu         sync.Mutex
	handshakes []transport.Handshake
}

func (d *fakeDialer) Dial(_ context.Context, hs transport.Handshake) (transport.Conn, error) {
	d.mu.Lock()
	d.handshakes = append(d.handshakes, hs)
	d.mu.Unlock()
	if d.gate != nil {
		<-d.gate
	}
	if d.err != nil {
		return nil, d.err
	}
	return d.conn, nil
}

func (d *fakeDialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.handshakes)
}

type historyReply struct {
	msgs []models.Message
	err  error
	gate chan struct{}
}

// fakeHistory answers call n with replies[n-1] when set, else with msgs/err.
type fakeHistory struct {
	msgs    []models.Message
	err     error
	gate    chan struct{}
	replies []historyReply

	mu    sync.Mutex
	calls int
	token string
}

func (h *fakeHistory) Fetch(_ context.Context, _ string, token string) ([]models.Message, error) {
	h.mu.Lock()
	h.calls++
	h.token = token
	reply := historyReply{msgs: h.msgs, err: h.err, gate: h.gate}
	if h.calls <= len(h.replies) {
		reply = h.replies[h.calls-1]
	}
	h.mu.Unlock()
	if reply.gate != nil {
		<-reply.gate
	}
	if reply.err != nil {
		return nil, reply.err
	}
	return append([]models.Message(nil), reply.msgs...), nil
}

func (h *fakeHistory) callCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

// logBuffer collects log output written from the session loop.
type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *logBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// Advance moves time forward and runs due timers in order on the caller's
// goroutine.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.f()
	}
}

type noticeLog struct {
	mu      sync.Mutex
	notices []Notice
}

func (l *noticeLog) add(n Notice) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.notices = append(l.notices, n)
}

func (l *noticeLog) all() []Notice {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Notice(nil), l.notices...)
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
