package storage

import "time"

// EventType identifies a storage change.
type EventType string

const (
	EventOperationRecorded EventType = "operation.recorded"
	EventNoteAdded         EventType = "note.added"
	EventSummarySaved      EventType = "summary.saved"
)

// Event describes a change inside the storage layer that other
// subsystems can react to.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id,omitempty"`
	EntityID  string    `json:"entity_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Observer reacts to storage events.
type Observer interface {
	HandleStorageEvent(Event)
}

// ObserverFunc turns a function into an Observer.
type ObserverFunc func(Event)

// HandleStorageEvent implements Observer.
func (f ObserverFunc) HandleStorageEvent(e Event) { f(e) }

// AddObserver registers an observer for subsequent events.
func (s *Store) AddObserver(o Observer) {
	s.observerMu.Lock()
	s.observers = append(s.observers, o)
	s.observerMu.Unlock()
}

func (s *Store) emit(eventType EventType, sessionID, entityID string) {
	s.observerMu.RLock()
	observers := make([]Observer, len(s.observers))
	copy(observers, s.observers)
	s.observerMu.RUnlock()

	e := Event{Type: eventType, SessionID: sessionID, EntityID: entityID, Timestamp: time.Now()}
	for _, o := range observers {
		o.HandleStorageEvent(e)
	}
}
