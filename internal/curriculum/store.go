package curriculum

import (
	"fmt"
	"sync"
)

// EventKind discriminates store change notifications.
type EventKind int

const (
	// EventCurriculumReplaced fires when a new curriculum is installed.
	EventCurriculumReplaced EventKind = iota
	// EventTopicSelected fires when the active topic changes.
	EventTopicSelected
)

// Event describes one store change.
type Event struct {
	Kind       EventKind
	TopicIndex int
}

// Store holds the selected curriculum and active topic and notifies
// subscribers of changes. Notification is an explicit publish/subscribe
// channel per watcher rather than a reactive stream; slow watchers drop
// events instead of blocking mutations.
type Store struct {
	mu         sync.RWMutex
	curriculum *Curriculum
	topicIndex int
	hasTopic   bool
	watchers   map[int]chan Event
	nextWatch  int
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{watchers: make(map[int]chan Event)}
}

// SetCurriculum installs a curriculum and clears the topic selection.
func (s *Store) SetCurriculum(c *Curriculum) {
	s.mu.Lock()
	s.curriculum = c
	s.topicIndex = 0
	s.hasTopic = false
	s.mu.Unlock()
	s.notify(Event{Kind: EventCurriculumReplaced})
}

// SelectTopic makes the topic at index current. Out-of-range indices are
// clamped into the valid range; selecting on an empty curriculum is an
// error.
func (s *Store) SelectTopic(index int) error {
	s.mu.Lock()
	if s.curriculum == nil || len(s.curriculum.Topics) == 0 {
		s.mu.Unlock()
		return fmt.Errorf("no curriculum loaded")
	}
	if index < 0 {
		index = 0
	}
	if index >= len(s.curriculum.Topics) {
		index = len(s.curriculum.Topics) - 1
	}
	s.topicIndex = index
	s.hasTopic = true
	s.mu.Unlock()
	s.notify(Event{Kind: EventTopicSelected, TopicIndex: index})
	return nil
}

// Curriculum returns the selected curriculum, or nil.
func (s *Store) Curriculum() *Curriculum {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.curriculum
}

// CurrentTopic returns the active topic, its index, and whether a topic
// is selected.
func (s *Store) CurrentTopic() (*Topic, int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.hasTopic || s.curriculum == nil {
		return nil, 0, false
	}
	return s.curriculum.TopicAt(s.topicIndex), s.topicIndex, true
}

// Watch subscribes to store changes. The returned cancel function must
// be called to release the subscription.
func (s *Store) Watch() (<-chan Event, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextWatch
	s.nextWatch++
	ch := make(chan Event, 8)
	s.watchers[id] = ch
	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if existing, ok := s.watchers[id]; ok {
			delete(s.watchers, id)
			close(existing)
		}
	}
	return ch, cancel
}

func (s *Store) notify(ev Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.watchers {
		select {
		case ch <- ev:
		default:
			// Watcher is behind; drop rather than block mutations.
		}
	}
}

var _ Provider = (*Store)(nil)
