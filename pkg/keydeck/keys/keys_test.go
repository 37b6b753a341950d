package keys

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/keydeck/keydeck/pkg/keydeck/keystore"
	"github.com/keydeck/keydeck/pkg/keydeck/storage"
)

var errDiskFull = errors.New("disk full")

func setupTestStore(t *testing.T) (*keystore.Store, *storage.Memory) {
	backend := storage.NewMemory()
	store := keystore.New(backend, nil)
	t.Cleanup(store.Close)
	if err := store.Initialize(nil); err != nil {
		t.Fatalf("Failed to initialize store: %v", err)
	}
	return store, backend
}

func setupTestRouter(store *keystore.Store) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := NewHandler(store)

	api := r.Group("/api")
	handler.RegisterRoutes(api)

	return r
}

func createKey(t *testing.T, router *gin.Engine, name, environment string) SecretKeyResponse {
	t.Helper()
	body, _ := json.Marshal(CreateKeyRequest{Name: name, Environment: environment})
	req, _ := http.NewRequest("POST", "/api/keys", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}

	var response SecretKeyResponse
	json.Unmarshal(resp.Body.Bytes(), &response)
	return response
}

func TestCreateKey(t *testing.T) {
	store, _ := setupTestStore(t)
	router := setupTestRouter(store)

	response := createKey(t, router, "Local Dev Key", "test")

	if response.ID == "" {
		t.Error("Expected key ID to be set")
	}

	pattern := regexp.MustCompile(`^sk_test_[0-9a-f]{32}$`)
	if !pattern.MatchString(response.Key) {
		t.Errorf("Expected unmasked test secret, got %q", response.Key)
	}

	if response.Name != "Local Dev Key" {
		t.Errorf("Expected name 'Local Dev Key', got '%s'", response.Name)
	}

	if response.Revoked {
		t.Error("New key should not be revoked")
	}
}

func TestCreateKeyInvalidName(t *testing.T) {
	store, _ := setupTestStore(t)
	router := setupTestRouter(store)

	body, _ := json.Marshal(CreateKeyRequest{Name: "   ", Environment: "test"})
	req, _ := http.NewRequest("POST", "/api/keys", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestCreateKeyInvalidEnvironment(t *testing.T) {
	store, _ := setupTestStore(t)
	router := setupTestRouter(store)

	body, _ := json.Marshal(CreateKeyRequest{Name: "Key", Environment: "staging"})
	req, _ := http.NewRequest("POST", "/api/keys", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()

	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestListKeysMasksSecrets(t *testing.T) {
	store, _ := setupTestStore(t)
	router := setupTestRouter(store)

	created := createKey(t, router, "Key One", "test")

	req, _ := http.NewRequest("GET", "/api/keys", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var response []KeyResponse
	json.Unmarshal(resp.Body.Bytes(), &response)

	if len(response) != 1 {
		t.Fatalf("Expected 1 key, got %d", len(response))
	}

	if response[0].Key == created.Key {
		t.Error("Listing must not contain the unmasked secret")
	}

	want := keystore.Mask(created.Key)
	if response[0].Key != want {
		t.Errorf("Expected masked key %q, got %q", want, response[0].Key)
	}
}

func TestRevokeKey(t *testing.T) {
	store, _ := setupTestStore(t)
	router := setupTestRouter(store)
	created := createKey(t, router, "Key", "test")

	req, _ := http.NewRequest("POST", "/api/keys/"+created.ID+"/revoke", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	records := store.List()
	if len(records) != 1 || !records[0].Revoked {
		t.Error("Key should be revoked in the store")
	}
}

func TestRevokeKeyNotFound(t *testing.T) {
	store, _ := setupTestStore(t)
	router := setupTestRouter(store)

	req, _ := http.NewRequest("POST", "/api/keys/unknown/revoke", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", resp.Code)
	}
}

func TestRegenerateKey(t *testing.T) {
	store, _ := setupTestStore(t)
	router := setupTestRouter(store)
	created := createKey(t, router, "Key", "production")

	// Revoke first; regeneration must reactivate.
	revokeReq, _ := http.NewRequest("POST", "/api/keys/"+created.ID+"/revoke", nil)
	router.ServeHTTP(httptest.NewRecorder(), revokeReq)

	req, _ := http.NewRequest("POST", "/api/keys/"+created.ID+"/regenerate", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var response SecretKeyResponse
	json.Unmarshal(resp.Body.Bytes(), &response)

	if response.Key == created.Key {
		t.Error("Regeneration should produce a fresh secret")
	}
	if response.Environment != "production" {
		t.Errorf("Environment must not change, got %s", response.Environment)
	}
	if response.Revoked {
		t.Error("Regenerated key should be active")
	}
}

func TestRegenerateKeyNotFound(t *testing.T) {
	store, _ := setupTestStore(t)
	router := setupTestRouter(store)

	req, _ := http.NewRequest("POST", "/api/keys/unknown/regenerate", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", resp.Code)
	}
}

func TestDeleteRequiresRevocation(t *testing.T) {
	store, _ := setupTestStore(t)
	router := setupTestRouter(store)
	created := createKey(t, router, "Key", "test")

	// Active key: delete is rejected with 409.
	req, _ := http.NewRequest("DELETE", "/api/keys/"+created.ID, nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusConflict {
		t.Fatalf("Expected status 409, got %d: %s", resp.Code, resp.Body.String())
	}

	if len(store.List()) != 1 {
		t.Fatal("Key should still exist after rejected delete")
	}

	// Revoke, then delete succeeds.
	revokeReq, _ := http.NewRequest("POST", "/api/keys/"+created.ID+"/revoke", nil)
	router.ServeHTTP(httptest.NewRecorder(), revokeReq)

	req, _ = http.NewRequest("DELETE", "/api/keys/"+created.ID, nil)
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	if len(store.List()) != 0 {
		t.Error("Key should be gone after delete")
	}
}

func TestDeleteKeyNotFound(t *testing.T) {
	store, _ := setupTestStore(t)
	router := setupTestRouter(store)

	req, _ := http.NewRequest("DELETE", "/api/keys/unknown", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", resp.Code)
	}
}

func TestCreateKeyPersistenceFailure(t *testing.T) {
	store, backend := setupTestStore(t)
	router := setupTestRouter(store)

	backend.FailWrites(errDiskFull)

	body, _ := json.Marshal(CreateKeyRequest{Name: "Key", Environment: "test"})
	req, _ := http.NewRequest("POST", "/api/keys", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d: %s", resp.Code, resp.Body.String())
	}

	if len(store.List()) != 0 {
		t.Error("Failed create must not leave a record behind")
	}
}
