package chat

import "github.com/umar/donaty-chat/internal/models"

// Transcript is the ordered message list of one room. Entries are kept in
// arrival order; nothing is ever reordered or removed except by Replace.
type Transcript struct {
	messages []models.Message
	// dedupWindow is how many trailing entries Append checks for a duplicate.
	dedupWindow int
}

func NewTranscript(dedupWindow int) *Transcript {
	return &Transcript{dedupWindow: dedupWindow}
}

// Replace overwrites the transcript with a history load.
func (t *Transcript) Replace(msgs []models.Message) {
	t.messages = append(make([]models.Message, 0, len(msgs)), msgs...)
}

// Append adds m at the end unless it repeats one of the last dedupWindow
// entries. It reports whether m was added.
func (t *Transcript) Append(m models.Message) bool {
	if t.dedupWindow > 0 {
		key := m.Key()
		start := len(t.messages) - t.dedupWindow
		if start < 0 {
			start = 0
		}
		for i := len(t.messages) - 1; i >= start; i-- {
			if t.messages[i].Key() == key {
				return false
			}
		}
	}
	t.messages = append(t.messages, m)
	return true
}

func (t *Transcript) Contains(key string) bool {
	for i := range t.messages {
		if t.messages[i].Key() == key {
			return true
		}
	}
	return false
}

func (t *Transcript) Len() int { return len(t.messages) }

func (t *Transcript) Messages() []models.Message {
	return append([]models.Message(nil), t.messages...)
}
