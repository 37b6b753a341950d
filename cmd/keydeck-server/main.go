package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/keydeck/keydeck/pkg/keydeck/config"
	"github.com/keydeck/keydeck/pkg/keydeck/flags"
	"github.com/keydeck/keydeck/pkg/keydeck/keys"
	"github.com/keydeck/keydeck/pkg/keydeck/keystore"
	"github.com/keydeck/keydeck/pkg/keydeck/seed"
	"github.com/keydeck/keydeck/pkg/keydeck/storage"
	"github.com/keydeck/keydeck/pkg/keydeck/usage"
)

func main() {
	configFile := flag.String("config", "", "path to config file (default: keydeck.yaml in the working directory)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.Log.Level)
	slog.SetDefault(log)

	// Pick the storage backend: a SQLite file for durable demo state, or
	// in-memory when no path is configured.
	var backend storage.Backend
	if cfg.Storage.Path == "" {
		log.Info("using in-memory storage, state is lost on restart")
		backend = storage.NewMemory()
	} else {
		sqliteBackend, err := storage.NewSQLite(cfg.Storage.Path)
		if err != nil {
			log.Error("failed to open storage", "path", cfg.Storage.Path, "error", err)
			os.Exit(1)
		}
		defer sqliteBackend.Close()
		backend = sqliteBackend
		log.Info("opened storage", "path", cfg.Storage.Path)
	}

	// Seeding is explicit: the store only falls back to the seed document
	// when no persisted collection exists yet.
	store := keystore.New(backend, log)
	defer store.Close()

	seedRecords := seed.Load(cfg.Seed.Path, log)
	if err := store.Initialize(seedRecords); err != nil {
		log.Error("failed to initialize key store", "error", err)
		os.Exit(1)
	}
	log.Info("key store ready", "keys", len(store.List()))

	// Set up Gin router
	r := gin.Default()

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})

	// API routes
	api := r.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{
				"status":  "ok",
				"service": "keydeck",
			})
		})

		// Key management routes
		keysHandler := keys.NewHandler(store)
		keysHandler.RegisterRoutes(api)

		// Usage analytics routes (precomputed flat files)
		usageHandler := usage.NewHandler(cfg.Usage.Dir, log)
		usageHandler.RegisterRoutes(api)

		// Feature flag routes
		flagsHandler := flags.NewHandler(backend, log)
		flagsHandler.RegisterRoutes(api)
	}

	log.Info("starting server", "addr", cfg.Server.Addr)
	if err := r.Run(cfg.Server.Addr); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
