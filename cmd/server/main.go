package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/inamate/diagram/internal/auth"
	"github.com/inamate/diagram/internal/config"
	"github.com/inamate/diagram/internal/db"
	"github.com/inamate/diagram/internal/engine"
	mw "github.com/inamate/diagram/internal/middleware"
	"github.com/inamate/diagram/internal/session"
	"github.com/inamate/diagram/internal/store"
	"github.com/inamate/diagram/internal/typeid"
	"github.com/inamate/diagram/internal/workspace"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Level()})))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, closeStore, err := openStore(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("open store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	authService := auth.NewService(st, cfg.JWTSecret)
	authHandler := auth.NewHandler(authService)

	workspaceService := workspace.NewService(st)
	workspaceHandler := workspace.NewHandler(workspaceService)

	// Hub loads and saves through the snapshot table.
	loadDiagram := func(ctx context.Context, diagramID string) ([]byte, error) {
		snap, err := st.GetLatestSnapshot(ctx, diagramID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return snap.Data, nil
	}
	saveDiagram := func(ctx context.Context, diagramID string, data []byte) error {
		if _, err := st.CreateSnapshot(ctx, typeid.NewSnapshotID(), diagramID, data); err != nil {
			return fmt.Errorf("create snapshot: %w", err)
		}
		return nil
	}

	hub := session.NewHub(session.Options{
		Engine: engine.Options{
			HistoryLimit:  cfg.HistoryLimit,
			RoutingMargin: cfg.RoutingMargin,
			Logger:        slog.Default(),
		},
		SaveInterval: cfg.SaveInterval,
		Load:         loadDiagram,
		Save:         saveDiagram,
	})
	go hub.Run()

	r := mux.NewRouter()

	// Global middleware
	r.Use(mw.Recovery)
	r.Use(mw.Logger)
	r.Use(mw.CORS(cfg.Origins()))

	// Auth routes (public)
	r.HandleFunc("/auth/register", authHandler.Register).Methods("POST", "OPTIONS")
	r.HandleFunc("/auth/login", authHandler.Login).Methods("POST", "OPTIONS")

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// Protected API routes
	api := r.PathPrefix("/api").Subrouter()
	api.Use(authService.AuthMiddleware)
	api.HandleFunc("/me", authHandler.Me).Methods("GET")
	workspaceHandler.Routes(api)

	r.HandleFunc("/ws/diagram/{diagramId}", func(w http.ResponseWriter, r *http.Request) {
		handleWebSocket(w, r, hub, authService, workspaceService, cfg.OriginPatterns())
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down server")

		// Stop hub first to save all dirty diagrams
		hub.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("server starting", "addr", addr, "persistent", cfg.DatabaseURL != "")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

// openStore connects to Postgres when a URL is configured and falls back to
// in-memory storage otherwise.
func openStore(ctx context.Context, databaseURL string) (store.Store, func(), error) {
	if databaseURL == "" {
		slog.Warn("DATABASE_URL not set, diagrams are kept in memory")
		return store.NewMemory(), func() {}, nil
	}

	pool, err := db.NewPool(ctx, databaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return store.NewPostgres(pool), pool.Close, nil
}

func handleWebSocket(w http.ResponseWriter, r *http.Request, hub *session.Hub, authSvc *auth.Service, workspaceSvc *workspace.Service, originPatterns []string) {
	diagramID := mux.Vars(r)["diagramId"]

	token, err := auth.TokenFromRequest(r, true)
	if err != nil {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}
	userID, err := authSvc.ValidateToken(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	if err := workspaceSvc.CheckMembership(r.Context(), diagramID, userID); err != nil {
		http.Error(w, "not a diagram member", http.StatusForbidden)
		return
	}

	user, err := authSvc.GetUser(r.Context(), userID)
	if err != nil {
		http.Error(w, "user not found", http.StatusInternalServerError)
		return
	}

	hub.ServeWS(w, r, diagramID, userID, user.DisplayName, originPatterns)
}
