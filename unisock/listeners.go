package unisock

import "sync"

// listenerTable holds at most one listener per event kind. Each
// socket owns its table exclusively.
type listenerTable struct {
	mu    sync.RWMutex
	slots map[EventKind]Listener
}

func newListenerTable() *listenerTable {
	return &listenerTable{slots: make(map[EventKind]Listener)}
}

// set installs fn for kind, replacing any previous listener.
func (t *listenerTable) set(kind EventKind, fn Listener) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.slots[kind] = fn
}

func (t *listenerTable) get(kind EventKind) Listener {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.slots[kind]
}

// fire delivers ev to the listener for its kind, if one is
// registered.
func (t *listenerTable) fire(ev Event) {
	if fn := t.get(ev.Kind); fn != nil {
		fn(ev)
	}
}
