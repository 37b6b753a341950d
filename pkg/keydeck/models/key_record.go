package models

import "time"

// KeyRecord is the persisted representation of one demo API key. The JSON
// field names match the persisted collection format: the secret is stored
// under "key", and timestamps serialize as RFC 3339.
type KeyRecord struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Key         string      `json:"key"`
	Environment Environment `json:"environment"`
	CreatedAt   time.Time   `json:"createdAt"`
	Revoked     bool        `json:"revoked"`
}

// SeedDocument is the shape of the external seed data source. It is read
// once to populate an empty store and never written back.
type SeedDocument struct {
	Keys []KeyRecord `json:"keys"`
}
