package exits

import (
	"sync"
	"time"

	"github.com/Taamir-Ransome/grodt/src/service/interfaces"
	"github.com/Taamir-Ransome/grodt/src/sources/mongodb/models"
	"go.uber.org/zap"
)

// Event kinds emitted over the bracket lifetime. Exactly one of the three
// terminal kinds is emitted per bracket.
const (
	EventBracketCreated   = "bracket_created"
	EventBracketCompleted = "bracket_completed"
	EventBracketCancelled = "bracket_cancelled"
	EventBracketError     = "bracket_error"
)

// A BracketEvent carries a snapshot of the bracket at emission time, so
// observers never race the coordinator for the live document.
type BracketEvent struct {
	Kind    string
	Bracket models.MongoBracket
	At      time.Time
}

// An Observer receives bracket lifecycle events. Handlers run synchronously
// on the emitting goroutine, so they should be quick.
type Observer func(event BracketEvent)

// An EventDispatcher fans bracket events out to registered observers. A
// panicking observer is logged and does not stop delivery to the rest.
type EventDispatcher struct {
	mux       sync.RWMutex
	observers map[string][]Observer
	Statsd    interfaces.IStatsClient
	Log       interfaces.ILogger
}

func NewEventDispatcher(statsd interfaces.IStatsClient, log interfaces.ILogger) *EventDispatcher {
	return &EventDispatcher{
		observers: map[string][]Observer{},
		Statsd:    statsd,
		Log:       log,
	}
}

// Subscribe registers an observer for one event kind.
func (ed *EventDispatcher) Subscribe(kind string, observer Observer) {
	ed.mux.Lock()
	defer ed.mux.Unlock()
	ed.observers[kind] = append(ed.observers[kind], observer)
}

// SubscribeAll registers an observer for every bracket event kind.
func (ed *EventDispatcher) SubscribeAll(observer Observer) {
	for _, kind := range []string{EventBracketCreated, EventBracketCompleted, EventBracketCancelled, EventBracketError} {
		ed.Subscribe(kind, observer)
	}
}

// Emit delivers an event snapshot of the bracket to every observer of the
// kind given.
func (ed *EventDispatcher) Emit(kind string, bracket *models.MongoBracket) {
	event := BracketEvent{
		Kind:    kind,
		Bracket: *bracket,
		At:      time.Now().UTC(),
	}

	ed.mux.RLock()
	observers := make([]Observer, len(ed.observers[kind]))
	copy(observers, ed.observers[kind])
	ed.mux.RUnlock()

	ed.Statsd.Inc("events." + kind)
	for _, observer := range observers {
		ed.deliver(observer, event)
	}
}

func (ed *EventDispatcher) deliver(observer Observer, event BracketEvent) {
	defer func() {
		if r := recover(); r != nil {
			ed.Statsd.Inc("events.observer_panic")
			ed.Log.Error("observer panicked",
				zap.String("kind", event.Kind),
				zap.Any("panic", r),
			)
		}
	}()
	observer(event)
}
