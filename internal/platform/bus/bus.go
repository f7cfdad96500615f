// Package bus provides the typed command/event bus the orchestrator uses
// to announce state transitions. Handlers are invoked synchronously in
// subscription order; there is no parallel dispatch.
package bus

import "sync"

type Topic string

const (
	// TopicComputeCompleted is published after a validated computation has
	// populated the result store, appended to the audit ledger, and pushed
	// a history entry. Payload: calculator.ComputeEvent.
	TopicComputeCompleted Topic = "compute.completed"
	// TopicPanelVisibility is published on every Hidden/Visible transition
	// of a results panel. Payload: calculator.PanelEvent.
	TopicPanelVisibility Topic = "panel.visibility"
	// TopicFormReset is published when a form reset clears the result
	// store, annotations, and unit toggles. Payload: the calculator name.
	TopicFormReset Topic = "form.reset"
)

type Handler func(payload interface{})

type Bus struct {
	mu       sync.RWMutex
	handlers map[Topic][]Handler
}

func New() *Bus {
	return &Bus{handlers: make(map[Topic][]Handler)}
}

// Subscribe registers a handler for a topic. Not safe to call from within
// a handler for the same topic.
func (b *Bus) Subscribe(t Topic, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[t] = append(b.handlers[t], h)
}

// Publish dispatches payload to every handler subscribed to t, in order,
// on the caller's goroutine.
func (b *Bus) Publish(t Topic, payload interface{}) {
	b.mu.RLock()
	hs := b.handlers[t]
	b.mu.RUnlock()
	for _, h := range hs {
		h(payload)
	}
}
