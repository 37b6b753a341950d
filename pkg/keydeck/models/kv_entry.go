package models

// KVEntry is a single persisted key/value pair in the SQLite storage
// backend. The key store's whole collection is one JSON value under a
// dedicated key, mirroring how the demo persists state.
type KVEntry struct {
	K string `gorm:"primaryKey;column:k"`
	V string `gorm:"column:v;not null"`
}

// TableName keeps the table name short and explicit.
func (KVEntry) TableName() string {
	return "kv_entries"
}
