// Package keystore owns the durable collection of demo API key records.
//
// The Store keeps its in-memory view in lockstep with one serialized JSON
// array under a dedicated backend key. Mutations persist first and commit
// to memory only on success, so reported state never diverges from what
// was actually written. External writes to the same backend key (another
// Store instance sharing the backend) are observed through the backend's
// change notifications and adopted wholesale: last writer wins, no merge.
package keystore

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/keydeck/keydeck/pkg/keydeck/models"
	"github.com/keydeck/keydeck/pkg/keydeck/storage"
)

// StorageKey is the backend key the collection is persisted under. The
// store subscribes only to changes of this key.
const StorageKey = "keydeck.apiKeys"

var (
	// ErrInvalidName rejects a name that is empty after trimming.
	ErrInvalidName = errors.New("key name must not be empty")
	// ErrInvalidEnvironment rejects an unknown environment tag.
	ErrInvalidEnvironment = errors.New("unknown environment")
)

// Store is the sole owner of the key-record collection. It is safe for
// concurrent use.
type Store struct {
	backend storage.Backend
	log     *slog.Logger
	sub     *storage.Subscription

	mu      sync.Mutex
	records []models.KeyRecord
}

// New creates a Store over backend and subscribes it to external changes
// of the collection key. Call Initialize before serving reads, and Close
// when done. A nil logger falls back to slog.Default().
func New(backend storage.Backend, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	s := &Store{backend: backend, log: log}
	s.sub = backend.Subscribe(StorageKey, s.onExternalChange)
	return s
}

// Close unregisters the store's change listener.
func (s *Store) Close() {
	s.sub.Cancel()
}

// Initialize loads the persisted collection, seeding it from seed when no
// usable collection exists yet. Seeding happens only when the backend key
// is absent or unparsable: a present, valid collection — including an
// intentionally emptied one — is loaded as-is and never reseeded.
func (s *Store) Initialize(seed []models.KeyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, ok, err := s.backend.Read(StorageKey)
	if err != nil {
		return fmt.Errorf("read key collection: %w", err)
	}
	if ok {
		records, derr := decodeCollection(raw)
		if derr == nil {
			s.records = records
			return nil
		}
		s.log.Warn("persisted key collection is malformed, reinitializing", "error", derr)
	}

	records := append([]models.KeyRecord(nil), seed...)
	if err := s.persist(records); err != nil {
		return err
	}
	s.records = records
	if len(records) > 0 {
		s.log.Info("seeded key collection", "count", len(records))
	}
	return nil
}

// List returns all records ordered by creation time, newest first.
// Records with equal timestamps keep their insertion order.
func (s *Store) List() []models.KeyRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := append([]models.KeyRecord(nil), s.records...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Create generates and persists a new key record. It returns the record
// with the unmasked secret; listings only ever expose the masked form.
func (s *Store) Create(name string, env models.Environment) (*models.KeyRecord, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidName
	}
	if !env.Valid() {
		return nil, ErrInvalidEnvironment
	}

	rec := models.KeyRecord{
		ID:          uuid.NewString(),
		Name:        name,
		Key:         newSecret(env),
		Environment: env,
		CreatedAt:   time.Now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := append(append([]models.KeyRecord(nil), s.records...), rec)
	if err := s.persist(next); err != nil {
		return nil, err
	}
	s.records = next

	s.log.Info("created api key", "id", rec.ID, "environment", rec.Environment, "key", Mask(rec.Key))
	return &rec, nil
}

// Revoke marks the record revoked. Revoking an already-revoked record is
// a successful no-op. Returns false when no record matches id.
func (s *Store) Revoke(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return false, nil
	}

	next := append([]models.KeyRecord(nil), s.records...)
	next[i].Revoked = true
	if err := s.persist(next); err != nil {
		return false, err
	}
	s.records = next

	s.log.Info("revoked api key", "id", id)
	return true, nil
}

// Regenerate replaces the record's secret with a fresh one for its
// existing environment, moves createdAt to now, and reactivates the
// record. Returns the updated record with the unmasked secret, or
// found=false when no record matches id.
func (s *Store) Regenerate(id string) (*models.KeyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return nil, false, nil
	}

	next := append([]models.KeyRecord(nil), s.records...)
	next[i].Key = newSecret(next[i].Environment)
	next[i].CreatedAt = time.Now().UTC()
	next[i].Revoked = false
	if err := s.persist(next); err != nil {
		return nil, false, err
	}
	s.records = next

	rec := next[i]
	s.log.Info("regenerated api key", "id", id, "key", Mask(rec.Key))
	return &rec, true, nil
}

// Delete removes the record entirely. Returns false when no record
// matches id. Removal is unconditional at this layer: the
// revoked-before-delete policy belongs to the calling layer (see the keys
// HTTP handlers), not the store.
func (s *Store) Delete(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return false, nil
	}

	next := append([]models.KeyRecord(nil), s.records[:i]...)
	next = append(next, s.records[i+1:]...)
	if err := s.persist(next); err != nil {
		return false, err
	}
	s.records = next

	s.log.Info("deleted api key", "id", id)
	return true, nil
}

// indexOf returns the position of id in s.records, or -1. Callers hold s.mu.
func (s *Store) indexOf(id string) int {
	for i := range s.records {
		if s.records[i].ID == id {
			return i
		}
	}
	return -1
}

// persist writes records to the backend without touching s.records.
// Callers commit to memory only after it succeeds, and hold s.mu.
func (s *Store) persist(records []models.KeyRecord) error {
	if records == nil {
		records = []models.KeyRecord{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode key collection: %w", err)
	}
	if err := s.backend.Write(StorageKey, string(data), s.sub); err != nil {
		return fmt.Errorf("persist key collection: %w", err)
	}
	return nil
}

// onExternalChange adopts a write made by another store instance sharing
// the backend. The external state replaces the in-memory view entirely;
// removal of the whole key and malformed values both degrade to an empty
// collection instead of erroring.
func (s *Store) onExternalChange(_ string, value *string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if value == nil {
		s.records = nil
		s.log.Info("key collection removed externally, resetting")
		return
	}
	records, err := decodeCollection(*value)
	if err != nil {
		s.records = nil
		s.log.Warn("external key collection is malformed, treating as empty", "error", err)
		return
	}
	s.records = records
}

func decodeCollection(raw string) ([]models.KeyRecord, error) {
	var records []models.KeyRecord
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		return nil, err
	}
	return records, nil
}

// newSecret builds <envPrefix><32 chars>: a cryptographically random UUID
// with separators stripped, which is exactly 32 hex characters.
func newSecret(env models.Environment) string {
	token := strings.ReplaceAll(uuid.NewString(), "-", "")
	return env.SecretPrefix() + token
}
