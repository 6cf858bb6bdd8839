package chattest

import (
	"sync"
	"time"

	"github.com/umar/donaty-chat/internal/models"
)

// messageStore keeps each room's messages in creation order. Timestamps
// never go backwards within the store.
type messageStore struct {
	mu    sync.Mutex
	rooms map[string][]models.Message
	last  time.Time
	now   func() time.Time
}

func newMessageStore(now func() time.Time) *messageStore {
	if now == nil {
		now = time.Now
	}
	return &messageStore{rooms: make(map[string][]models.Message), now: now}
}

func (s *messageStore) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.now().UTC().Truncate(time.Millisecond)
	if t.Before(s.last) {
		t = s.last
	}
	s.last = t
	return t
}

func (s *messageStore) Append(msgs ...models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range msgs {
		s.rooms[m.RoomID] = append(s.rooms[m.RoomID], m)
	}
}

func (s *messageStore) List(roomID string) []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Message{}, s.rooms[roomID]...)
}
