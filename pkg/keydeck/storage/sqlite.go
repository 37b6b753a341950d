package storage

import (
	"errors"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/keydeck/keydeck/pkg/keydeck/models"
)

// SQLite is the durable Backend, a single kv_entries table in a SQLite
// database. For now, uses SQLite via GORM; the driver can be swapped
// without touching callers.
type SQLite struct {
	db  *gorm.DB
	hub *hub
}

// NewSQLite opens (or creates) the database at path and migrates the KV
// table. An empty path opens an in-memory database.
func NewSQLite(path string) (*SQLite, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open storage database: %w", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate storage database: %w", err)
	}
	return &SQLite{db: db, hub: newHub()}, nil
}

// Read returns the value under key.
func (s *SQLite) Read(key string) (string, bool, error) {
	var entry models.KVEntry
	err := s.db.First(&entry, "k = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read %q: %w", key, err)
	}
	return entry.V, true, nil
}

// Write upserts value under key and notifies other subscribers.
func (s *SQLite) Write(key, value string, origin *Subscription) error {
	entry := models.KVEntry{K: key, V: value}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "k"}},
		DoUpdates: clause.AssignmentColumns([]string{"v"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("write %q: %w", key, err)
	}
	s.hub.broadcast(key, &value, origin)
	return nil
}

// Delete removes key and notifies other subscribers with a nil value.
func (s *SQLite) Delete(key string, origin *Subscription) error {
	res := s.db.Delete(&models.KVEntry{}, "k = ?", key)
	if res.Error != nil {
		return fmt.Errorf("delete %q: %w", key, res.Error)
	}
	if res.RowsAffected > 0 {
		s.hub.broadcast(key, nil, origin)
	}
	return nil
}

// Subscribe registers fn for changes to key.
func (s *SQLite) Subscribe(key string, fn ChangeFunc) *Subscription {
	return s.hub.subscribe(key, fn)
}

// Close releases the underlying database connection.
func (s *SQLite) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
