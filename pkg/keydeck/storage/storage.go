// Package storage provides the persistence backends for keydeck state.
//
// A Backend is a small durable key/value space: each logical collection
// (the API key list, the feature flags) is one serialized JSON value under
// a dedicated key. Backends also carry a change-notification channel so
// that several consumers sharing one backend observe each other's writes,
// the way multiple browser tabs observe a shared storage medium. A write
// never notifies its own originating subscription.
package storage

import "sync"

// ChangeFunc is called when a key's value is changed by another writer.
// A nil value means the key was removed entirely.
type ChangeFunc func(key string, value *string)

// Backend is the durable store interface. Implementations must deliver
// change notifications synchronously from Write/Delete to every
// subscription registered for the written key, except the origin
// subscription (if any). Failed writes deliver no notification.
type Backend interface {
	// Read returns the value under key, with ok=false when absent.
	Read(key string) (value string, ok bool, err error)

	// Write stores value under key. origin, when non-nil, identifies the
	// writer's own subscription, which is skipped during notification.
	Write(key, value string, origin *Subscription) error

	// Delete removes key entirely. Removal of an absent key is not an
	// error. origin semantics match Write.
	Delete(key string, origin *Subscription) error

	// Subscribe registers fn for changes to key. Cancel the returned
	// subscription when done.
	Subscribe(key string, fn ChangeFunc) *Subscription
}

// Subscription represents one registered change listener.
type Subscription struct {
	hub *hub
	key string
	id  uint64
	fn  ChangeFunc
}

// Cancel unregisters the subscription. Safe to call more than once.
func (s *Subscription) Cancel() {
	if s == nil || s.hub == nil {
		return
	}
	s.hub.cancel(s)
}

// hub fans change notifications out to subscriptions, keyed by storage key.
type hub struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[string]map[uint64]*Subscription
}

func newHub() *hub {
	return &hub{subs: make(map[string]map[uint64]*Subscription)}
}

func (h *hub) subscribe(key string, fn ChangeFunc) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	sub := &Subscription{hub: h, key: key, id: h.nextID, fn: fn}
	if h.subs[key] == nil {
		h.subs[key] = make(map[uint64]*Subscription)
	}
	h.subs[key][sub.id] = sub
	return sub
}

func (h *hub) cancel(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if m, ok := h.subs[sub.key]; ok {
		delete(m, sub.id)
		if len(m) == 0 {
			delete(h.subs, sub.key)
		}
	}
}

// broadcast invokes every listener for key except origin. Listeners run
// outside the hub lock so they may subscribe or cancel reentrantly.
func (h *hub) broadcast(key string, value *string, origin *Subscription) {
	h.mu.Lock()
	targets := make([]*Subscription, 0, len(h.subs[key]))
	for _, sub := range h.subs[key] {
		if sub != origin {
			targets = append(targets, sub)
		}
	}
	h.mu.Unlock()

	for _, sub := range targets {
		sub.fn(key, value)
	}
}
