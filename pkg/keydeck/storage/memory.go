package storage

import "sync"

// Memory is an in-process Backend. It backs demo runs without a database
// file and substitutes for SQLite in tests. FailWrites makes mutating
// calls fail, for exercising persistence-failure handling.
type Memory struct {
	hub *hub

	mu       sync.Mutex
	values   map[string]string
	writeErr error
}

// NewMemory creates an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{
		hub:    newHub(),
		values: make(map[string]string),
	}
}

// FailWrites makes subsequent Write and Delete calls return err.
// Pass nil to restore normal behavior.
func (m *Memory) FailWrites(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErr = err
}

// Read returns the value under key.
func (m *Memory) Read(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

// Write stores value under key and notifies other subscribers.
func (m *Memory) Write(key, value string, origin *Subscription) error {
	m.mu.Lock()
	if m.writeErr != nil {
		err := m.writeErr
		m.mu.Unlock()
		return err
	}
	m.values[key] = value
	m.mu.Unlock()

	m.hub.broadcast(key, &value, origin)
	return nil
}

// Delete removes key and notifies other subscribers with a nil value.
func (m *Memory) Delete(key string, origin *Subscription) error {
	m.mu.Lock()
	if m.writeErr != nil {
		err := m.writeErr
		m.mu.Unlock()
		return err
	}
	_, existed := m.values[key]
	delete(m.values, key)
	m.mu.Unlock()

	if existed {
		m.hub.broadcast(key, nil, origin)
	}
	return nil
}

// Subscribe registers fn for changes to key.
func (m *Memory) Subscribe(key string, fn ChangeFunc) *Subscription {
	return m.hub.subscribe(key, fn)
}
