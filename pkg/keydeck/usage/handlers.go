// Package usage serves the precomputed usage analytics datasets. The
// datasets are flat JSON files generated offline and dropped into a data
// directory; this layer only lists and streams them. They may reference
// key ids, but are never validated against the live key collection.
package usage

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
)

// datasetName keeps lookups inside the data directory.
var datasetName = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*$`)

// Handler handles usage analytics requests
type Handler struct {
	dir string
	log *slog.Logger
}

// NewHandler creates a new usage handler serving datasets from dir
func NewHandler(dir string, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{dir: dir, log: log}
}

// DatasetInfo describes one available dataset
type DatasetInfo struct {
	Name      string `json:"name"`
	SizeBytes int64  `json:"size_bytes"`
}

// List returns the available datasets
func (h *Handler) List(c *gin.Context) {
	entries, err := os.ReadDir(h.dir)
	if err != nil {
		// A missing data directory just means no datasets were generated.
		if os.IsNotExist(err) {
			c.JSON(http.StatusOK, []DatasetInfo{})
			return
		}
		h.log.Error("failed to read usage data directory", "dir", h.dir, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list datasets"})
		return
	}

	datasets := []DatasetInfo{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ".json")
		if !datasetName.MatchString(name) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		datasets = append(datasets, DatasetInfo{Name: name, SizeBytes: info.Size()})
	}
	sort.Slice(datasets, func(i, j int) bool { return datasets[i].Name < datasets[j].Name })

	c.JSON(http.StatusOK, datasets)
}

// Get returns one dataset's JSON content
func (h *Handler) Get(c *gin.Context) {
	name := c.Param("name")
	if !datasetName.MatchString(name) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid dataset name"})
		return
	}

	data, err := os.ReadFile(filepath.Join(h.dir, name+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Dataset not found"})
			return
		}
		h.log.Error("failed to read dataset", "name", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read dataset"})
		return
	}

	if !json.Valid(data) {
		h.log.Warn("dataset is not valid JSON", "name", name)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Dataset is malformed"})
		return
	}

	// The client may have gone away while we read; don't bother writing.
	if c.Request.Context().Err() != nil {
		c.Abort()
		return
	}

	c.Data(http.StatusOK, "application/json", data)
}

// RegisterRoutes registers usage routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/usage", h.List)
	rg.GET("/usage/:name", h.Get)
}
