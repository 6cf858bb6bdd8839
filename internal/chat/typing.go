package chat

import "time"

// DefaultTypingTTL is how long a typing indicator stays visible.
const DefaultTypingTTL = 1200 * time.Millisecond

type TypingIndicator struct {
	DisplayName string
	ExpiresAt   time.Time
}

// typingState holds the visible indicator and the pending clear. gen is the
// cancellation token: a clear only applies if no newer typing event arrived.
type typingState struct {
	current *TypingIndicator
	timer   Timer
	gen     uint64
}

// show replaces the indicator and returns the token its clear must carry.
func (t *typingState) show(name string, now time.Time, ttl time.Duration) uint64 {
	t.stop()
	t.gen++
	t.current = &TypingIndicator{DisplayName: name, ExpiresAt: now.Add(ttl)}
	return t.gen
}

// expire clears the indicator if gen is still the latest token.
func (t *typingState) expire(gen uint64) bool {
	if gen != t.gen || t.current == nil {
		return false
	}
	t.current = nil
	t.timer = nil
	return true
}

func (t *typingState) stop() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

func (t *typingState) snapshot() *TypingIndicator {
	if t.current == nil {
		return nil
	}
	c := *t.current
	return &c
}
