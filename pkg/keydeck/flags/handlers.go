// Package flags manages the console's demo feature toggles. The flag set
// is persisted in the shared storage backend under its own key, separate
// from the key collection; a missing or malformed persisted set falls
// back to the defaults.
package flags

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/keydeck/keydeck/pkg/keydeck/models"
	"github.com/keydeck/keydeck/pkg/keydeck/storage"
)

// StorageKey is the backend key the flag set is persisted under.
const StorageKey = "keydeck.flags"

// Defaults enumerates the known flags and their initial values.
var Defaults = models.FlagSet{
	"usage_charts":    true,
	"production_keys": true,
	"live_refresh":    true,
}

// Handler handles feature flag requests
type Handler struct {
	backend storage.Backend
	log     *slog.Logger
}

// NewHandler creates a new flags handler
func NewHandler(backend storage.Backend, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{backend: backend, log: log}
}

// SetFlagRequest represents a request to toggle one flag
type SetFlagRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

// load returns the persisted flag set with defaults applied. Unknown
// persisted entries are dropped; missing or malformed state degrades to
// the defaults.
func (h *Handler) load() models.FlagSet {
	set := make(models.FlagSet, len(Defaults))
	for name, enabled := range Defaults {
		set[name] = enabled
	}

	raw, ok, err := h.backend.Read(StorageKey)
	if err != nil {
		h.log.Warn("failed to read feature flags, using defaults", "error", err)
		return set
	}
	if !ok {
		return set
	}

	var stored models.FlagSet
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		h.log.Warn("persisted feature flags are malformed, using defaults", "error", err)
		return set
	}
	for name, enabled := range stored {
		if _, known := Defaults[name]; known {
			set[name] = enabled
		}
	}
	return set
}

// GetFlags returns the current flag set
func (h *Handler) GetFlags(c *gin.Context) {
	c.JSON(http.StatusOK, h.load())
}

// SetFlag toggles one known flag
func (h *Handler) SetFlag(c *gin.Context) {
	name := c.Param("name")
	if _, known := Defaults[name]; !known {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown feature flag"})
		return
	}

	var req SetFlagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	set := h.load()
	set[name] = *req.Enabled

	data, err := json.Marshal(set)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save feature flags"})
		return
	}
	if err := h.backend.Write(StorageKey, string(data), nil); err != nil {
		h.log.Error("failed to persist feature flags", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save feature flags"})
		return
	}

	c.JSON(http.StatusOK, set)
}

// RegisterRoutes registers flag routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/flags", h.GetFlags)
	rg.PUT("/flags/:name", h.SetFlag)
}
