// Package keys exposes the key store over HTTP. This is the calling
// layer in front of the store, and it is where the revoke-before-delete
// policy lives: the store's Delete is deliberately unconditional, so a
// key must be revoked here before the console will delete it.
package keys

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/keydeck/keydeck/pkg/keydeck/keystore"
	"github.com/keydeck/keydeck/pkg/keydeck/models"
)

// Handler handles API key requests
type Handler struct {
	store *keystore.Store
}

// NewHandler creates a new keys handler
func NewHandler(store *keystore.Store) *Handler {
	return &Handler{store: store}
}

// KeyResponse represents a key in listings, with the secret masked
type KeyResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Key         string    `json:"key"`
	Environment string    `json:"environment"`
	CreatedAt   time.Time `json:"created_at"`
	Revoked     bool      `json:"revoked"`
}

// CreateKeyRequest represents a request to create a key
type CreateKeyRequest struct {
	Name        string `json:"name"`
	Environment string `json:"environment"`
}

// SecretKeyResponse includes the unmasked secret (only shown once, on
// create and regenerate)
type SecretKeyResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Key         string    `json:"key"`
	Environment string    `json:"environment"`
	CreatedAt   time.Time `json:"created_at"`
	Revoked     bool      `json:"revoked"`
}

func maskedResponse(rec models.KeyRecord) KeyResponse {
	return KeyResponse{
		ID:          rec.ID,
		Name:        rec.Name,
		Key:         keystore.Mask(rec.Key),
		Environment: string(rec.Environment),
		CreatedAt:   rec.CreatedAt,
		Revoked:     rec.Revoked,
	}
}

func secretResponse(rec models.KeyRecord) SecretKeyResponse {
	return SecretKeyResponse{
		ID:          rec.ID,
		Name:        rec.Name,
		Key:         rec.Key,
		Environment: string(rec.Environment),
		CreatedAt:   rec.CreatedAt,
		Revoked:     rec.Revoked,
	}
}

// List returns all keys, newest first, with masked secrets
func (h *Handler) List(c *gin.Context) {
	records := h.store.List()

	responses := make([]KeyResponse, len(records))
	for i, rec := range records {
		responses[i] = maskedResponse(rec)
	}

	c.JSON(http.StatusOK, responses)
}

// Create creates a new key and returns it with the unmasked secret -
// this is the only listing that will ever include it
func (h *Handler) Create(c *gin.Context) {
	var req CreateKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	rec, err := h.store.Create(req.Name, models.Environment(req.Environment))
	if err != nil {
		if errors.Is(err, keystore.ErrInvalidName) || errors.Is(err, keystore.ErrInvalidEnvironment) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create API key"})
		return
	}

	c.JSON(http.StatusCreated, secretResponse(*rec))
}

// Revoke marks a key revoked
func (h *Handler) Revoke(c *gin.Context) {
	ok, err := h.store.Revoke(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to revoke API key"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "API key not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"revoked": true})
}

// Regenerate replaces a key's secret and reactivates it, returning the
// new secret unmasked
func (h *Handler) Regenerate(c *gin.Context) {
	rec, found, err := h.store.Regenerate(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to regenerate API key"})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "API key not found"})
		return
	}

	c.JSON(http.StatusOK, secretResponse(*rec))
}

// Delete removes a key. The console only deletes revoked keys; deleting
// an active key is rejected here, not in the store
func (h *Handler) Delete(c *gin.Context) {
	id := c.Param("id")

	var target *models.KeyRecord
	for _, rec := range h.store.List() {
		if rec.ID == id {
			r := rec
			target = &r
			break
		}
	}
	if target == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "API key not found"})
		return
	}
	if !target.Revoked {
		c.JSON(http.StatusConflict, gin.H{"error": "API key must be revoked before deletion"})
		return
	}

	ok, err := h.store.Delete(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete API key"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "API key not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "API key deleted"})
}

// RegisterRoutes registers key routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/keys", h.List)
	rg.POST("/keys", h.Create)
	rg.POST("/keys/:id/revoke", h.Revoke)
	rg.POST("/keys/:id/regenerate", h.Regenerate)
	rg.DELETE("/keys/:id", h.Delete)
}
