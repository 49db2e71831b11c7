package requestlog

// EventType describes what changed in the log.
type EventType string

const (
	EventInserted EventType = "inserted"
	EventUpdated  EventType = "updated"
	EventCleared  EventType = "cleared"
	EventTrimmed  EventType = "trimmed"
	EventLoaded   EventType = "loaded"
)

// Event is a "records changed" notification.
type Event struct {
	Type EventType `json:"type"`
	// ID is set for inserted and updated events.
	ID string `json:"id,omitempty"`
	// Count is the number of records in the log after the change.
	Count int `json:"count"`
}

// Subscriber receives change events. Slow subscribers miss events rather
// than block the store.
type Subscriber chan Event

const subscriberBuffer = 100

// Subscribe registers a subscriber to receive change events.
// Returns a channel that will receive events and an unsubscribe function.
func (s *Store) Subscribe() (Subscriber, func()) {
	ch := make(Subscriber, subscriberBuffer)

	s.subMu.Lock()
	if s.subscribers == nil {
		s.subMu.Unlock()
		close(ch)
		return ch, func() {}
	}
	s.subscribers[ch] = struct{}{}
	s.subMu.Unlock()

	unsubscribe := func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if _, ok := s.subscribers[ch]; !ok {
			return
		}
		delete(s.subscribers, ch)
		close(ch)
	}
	return ch, unsubscribe
}

func (s *Store) notify(ev Event) {
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	for sub := range s.subscribers {
		select {
		case sub <- ev:
		default:
			// Drop if subscriber is slow
		}
	}
}
