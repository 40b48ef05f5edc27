package mesh

import (
	"sync"

	"github.com/seu-repo/pdv-core/internal/domain"
)

// Handler receives one mesh envelope. Handlers run on the connection's
// read loop, so they must not block.
type Handler func(env domain.Envelope)

// Registry is the event subscription table of a mesh client. Components
// register handlers per message type and must remove them on teardown.
type Registry struct {
	mu    sync.RWMutex
	next  int
	subs  map[string]map[int]Handler
	types map[int]string
}

func NewRegistry() *Registry {
	return &Registry{
		subs:  make(map[string]map[int]Handler),
		types: make(map[int]string),
	}
}

// On registers a handler for a message type and returns a subscription id
// for Off.
func (r *Registry) On(messageType string, h Handler) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.next++
	id := r.next
	if r.subs[messageType] == nil {
		r.subs[messageType] = make(map[int]Handler)
	}
	r.subs[messageType][id] = h
	r.types[id] = messageType
	return id
}

// Off removes a subscription. Unknown ids are a no-op.
func (r *Registry) Off(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	messageType, ok := r.types[id]
	if !ok {
		return
	}
	delete(r.types, id)
	delete(r.subs[messageType], id)
	if len(r.subs[messageType]) == 0 {
		delete(r.subs, messageType)
	}
}

// Dispatch delivers the envelope to every handler of its message type.
func (r *Registry) Dispatch(env domain.Envelope) {
	r.mu.RLock()
	handlers := make([]Handler, 0, len(r.subs[env.MessageType]))
	for _, h := range r.subs[env.MessageType] {
		handlers = append(handlers, h)
	}
	r.mu.RUnlock()

	for _, h := range handlers {
		h(env)
	}
}
