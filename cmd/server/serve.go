package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"notes-api/internal/database"
	"notes-api/internal/repository"
	"notes-api/internal/server"
	"notes-api/pkg/auth"
	"notes-api/pkg/cache"
	"notes-api/pkg/email"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	Long:  `Connect to the database, apply pending migrations and serve the API until SIGINT or SIGTERM.`,
	RunE:  startServer,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	// serving is what the bare binary does
	rootCmd.RunE = startServer
}

func startServer(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close() //nolint: errcheck

	if err := database.Migrate(db, cfg.DBDriver); err != nil {
		return err
	}

	store, err := cache.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close() //nolint: errcheck

	var noteCache *cache.NoteCache
	if cfg.CacheEnabled {
		noteCache = cache.NewNoteCache(store, cfg.CacheTTL)
	}

	router := server.NewRouter(ctx, server.Deps{
		Config:      cfg,
		DB:          db,
		Cache:       store,
		Users:       repository.NewUserRepository(db),
		Notes:       repository.NewNoteRepository(db),
		JWT:         auth.NewJWTManager(cfg),
		Revocations: cache.NewRevocationList(store),
		NoteCache:   noteCache,
		Mailer:      email.NewEmailService(cfg),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Server starting", "port", cfg.ServerPort, "env", cfg.AppEnv, "db", cfg.DBDriver, "cache", cfg.CacheType)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("Server stopped")
	return nil
}
