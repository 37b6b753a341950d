// Package seed loads the external seed document used to populate an
// empty key collection on first run. The document is read-only input: it
// is parsed once at bootstrap and never written back.
package seed

import (
	"encoding/json"
	"log/slog"
	"os"
	"strings"

	"github.com/keydeck/keydeck/pkg/keydeck/models"
)

// Load reads the seed document at path and returns its usable records.
// A missing or malformed document degrades to no seed rather than
// failing: the console just starts empty. Records that would violate the
// store's invariants (blank id or name, unknown environment, secret
// without the environment's prefix, duplicate id) are skipped.
func Load(path string, log *slog.Logger) []models.KeyRecord {
	if log == nil {
		log = slog.Default()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn("seed document unreadable, starting empty", "path", path, "error", err)
		}
		return nil
	}

	var doc models.SeedDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		log.Warn("seed document is malformed, starting empty", "path", path, "error", err)
		return nil
	}

	seen := make(map[string]bool)
	records := make([]models.KeyRecord, 0, len(doc.Keys))
	for i, rec := range doc.Keys {
		if reason := validate(rec, seen); reason != "" {
			log.Warn("skipping seed record", "index", i, "reason", reason)
			continue
		}
		seen[rec.ID] = true
		rec.Name = strings.TrimSpace(rec.Name)
		records = append(records, rec)
	}
	return records
}

func validate(rec models.KeyRecord, seen map[string]bool) string {
	switch {
	case rec.ID == "":
		return "blank id"
	case seen[rec.ID]:
		return "duplicate id"
	case strings.TrimSpace(rec.Name) == "":
		return "blank name"
	case !rec.Environment.Valid():
		return "unknown environment"
	case !strings.HasPrefix(rec.Key, rec.Environment.SecretPrefix()):
		return "secret prefix does not match environment"
	}
	return ""
}
