package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"heritage-gallery-backend/docs"
	"heritage-gallery-backend/internal/assistant"
	"heritage-gallery-backend/internal/config"
	"heritage-gallery-backend/internal/gallery"
	"heritage-gallery-backend/internal/handlers"
	"heritage-gallery-backend/internal/restoration"
	"heritage-gallery-backend/internal/services"
	"heritage-gallery-backend/internal/sessions"
	"heritage-gallery-backend/internal/sqlite"
	"heritage-gallery-backend/internal/supabase"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	configureSwagger(cfg.BaseURL)

	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	bus := gallery.NewBus()
	processing := sessions.NewProcessingRepository(store)
	scifi := sessions.NewSciFiRepository(store)

	var images services.ImageStore
	if cfg.StorageEnabled() {
		storageClient, err := supabase.NewStorageClient(cfg.SupabaseURL, cfg.StorageKey(), cfg.SupabaseStorageBucket)
		if err != nil {
			slog.Warn("storage client unavailable, uploads disabled", "error", err)
		} else {
			images = storageClient
		}
	} else {
		slog.Warn("SUPABASE_URL not set, uploads disabled")
	}

	var restorer services.Restorer
	if cfg.RestorationAPIBaseURL != "" {
		client := restoration.NewClient(cfg.RestorationAPIBaseURL)
		if cfg.AllowPrivateImageHosts {
			slog.Warn("image fetches may reach private addresses")
			client.AllowPrivateNetworks()
		}
		restorer = client
	} else {
		slog.Warn("RESTORATION_API_BASE_URL not set, image processing disabled")
	}

	var replier services.Replier
	if cfg.GeminiAPIKey != "" {
		gemini, err := assistant.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			slog.Warn("gemini client unavailable, session chat disabled", "error", err)
		} else {
			defer gemini.Close()
			replier = gemini
		}
	} else {
		slog.Warn("GEMINI_API_KEY not set, session chat disabled")
	}

	sessionService := services.NewSessionService(processing, scifi, bus, images)
	galleryService := services.NewGalleryService(processing, scifi)
	hub := gallery.NewHub(bus, galleryService, gallery.Options{
		VisibilityThreshold: cfg.GalleryVisibilityThreshold,
		Period:              cfg.GalleryPollInterval,
	})

	router := handlers.NewRouter(cfg, handlers.Handlers{
		Sessions: handlers.NewSessionsHandler(
			sessionService,
			services.NewChatService(sessionService, replier),
			services.NewProcessingService(sessionService, restorer, images),
		),
		Images:  handlers.NewImagesHandler(images),
		Gallery: handlers.NewGalleryHandler(galleryService, sessionService, hub),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.ChangeFeedEnabled() {
		feed, err := supabase.NewChangeFeed(cfg.DatabaseURL, bus)
		if err != nil {
			slog.Warn("change feed unavailable, relying on periodic refresh", "error", err)
		} else {
			g.Go(func() error {
				return feed.Run(gctx)
			})
		}
	}

	g.Go(func() error {
		slog.Info("server starting",
			"port", cfg.Port,
			"store", cfg.StoreDriver,
			"environment", cfg.Environment,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down", "open_views", hub.Len())

		// Closing the views ends their event streams so Shutdown can drain.
		hub.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// openStore opens the session document store selected by STORE_DRIVER and
// applies the Postgres migrations where they apply.
func openStore(cfg *config.Config) (sessions.DocumentStore, func(), error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		if err := migrateUp(cfg.DatabaseURL); err != nil {
			return nil, nil, err
		}
		client, err := supabase.NewDatabaseClient(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return client, closer("postgres", client.Close), nil

	case config.DriverSupabase:
		if cfg.DatabaseURL != "" {
			if err := migrateUp(cfg.DatabaseURL); err != nil {
				return nil, nil, err
			}
		} else {
			slog.Warn("DATABASE_URL not set, migrations skipped; the session tables and functions must already exist")
		}
		rest, err := supabase.NewRestStore(cfg.SupabaseURL, cfg.StorageKey())
		if err != nil {
			return nil, nil, fmt.Errorf("create supabase client: %w", err)
		}
		return rest, func() {}, nil

	case config.DriverSQLite:
		store, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, closer("sqlite", store.Close), nil

	case config.DriverMemory:
		slog.Warn("using in-memory session store, data is lost on restart")
		return sessions.NewMemoryStore(), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
}

func migrateUp(databaseURL string) error {
	m, err := openMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()
	return m.Up()
}

func closer(name string, fn func() error) func() {
	return func() {
		if err := fn(); err != nil {
			slog.Warn("failed to close store", "store", name, "error", err)
		}
	}
}

// configureSwagger points the Swagger UI at the public host.
func configureSwagger(baseURL string) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return
	}
	docs.SwaggerInfo.Host = u.Host
	if u.Scheme == "https" {
		docs.SwaggerInfo.Schemes = []string{"https", "http"}
	} else {
		docs.SwaggerInfo.Schemes = []string{"http", "https"}
	}
}
