package events

import (
	"context"
	"sync"
)

// InMemoryStore is a simple in-process event store for local/dev use,
// pre-seeded with the launch-party record.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]Event
}

func NewInMemoryStore() *InMemoryStore {
	s := &InMemoryStore{records: make(map[string]Event)}
	seed := SeedEvent()
	s.records[seed.ID] = seed
	return s
}

func (s *InMemoryStore) Get(_ context.Context, id string) (Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ev, ok := s.records[id]
	if !ok {
		return Event{}, ErrNotFound
	}
	return cloneEvent(ev), nil
}

func (s *InMemoryStore) Update(_ context.Context, id string, patch Patch) (Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.records[id]
	if !ok {
		return Event{}, ErrNotFound
	}
	patch.apply(&ev)
	s.records[id] = ev
	return cloneEvent(ev), nil
}

func (s *InMemoryStore) Close() error { return nil }

func cloneEvent(ev Event) Event {
	ev.Highlights = append([]string(nil), ev.Highlights...)
	ev.KnowledgeFiles = append([]string(nil), ev.KnowledgeFiles...)
	ev.Attendees.Avatars = append([]string(nil), ev.Attendees.Avatars...)
	return ev
}

// SeedEvent is the default record served until an organizer edits it.
func SeedEvent() Event {
	return Event{
		ID:       "1",
		Title:    "zerohouse launch party.",
		Subtitle: "founders world launch party.",
		Date:     "Saturday, December 30",
		Time:     "2:00 PM - 5:00 PM",
		Location: "zerohouse - to be announced",
		Host: Host{
			Name:   "Sam Kim",
			Avatar: "https://api.dicebear.com/7.x/avataaars/svg?seed=Sam",
		},
		Attendees: Attendees{
			Count: 78,
			Avatars: []string{
				"https://api.dicebear.com/7.x/avataaars/svg?seed=1",
				"https://api.dicebear.com/7.x/avataaars/svg?seed=2",
				"https://api.dicebear.com/7.x/avataaars/svg?seed=3",
			},
		},
		Description: "zerohouse is launching korea's first real silicon valley style founders space right in the heart of seoul.",
		Highlights: []string{
			"san francisco trip.",
			"english only culture.",
			"online / offline 1 on 1 memberships.",
			"home for top ambitious founders",
		},
		AvatarURL:  "https://share.heygen.com/embeds/example",
		CoverImage: "linear-gradient(135deg, #a855f7 0%, #ec4899 50%, #8b5cf6 100%)",
	}
}
