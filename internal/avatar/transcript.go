package avatar

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser   Role = "user"
	RoleAvatar Role = "avatar"
)

// TranscriptEntry is one line of the conversation. Entries are never mutated
// or removed once appended.
type TranscriptEntry struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Transcript is the append-only conversation log for one session.
type Transcript struct {
	mu      sync.RWMutex
	entries []TranscriptEntry
}

func NewTranscript() *Transcript { return &Transcript{} }

func (t *Transcript) append(role Role, text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, TranscriptEntry{
		ID:        uuid.NewString(),
		Role:      role,
		Text:      text,
		Timestamp: time.Now().UTC(),
	})
}

// Entries returns a copy of the log in insertion order.
func (t *Transcript) Entries() []TranscriptEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]TranscriptEntry(nil), t.entries...)
}

func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}
