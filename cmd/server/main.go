package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/rahulm/quickserve/config"
	"github.com/rahulm/quickserve/internal/handler"
	"github.com/rahulm/quickserve/internal/middleware"
	"github.com/rahulm/quickserve/internal/notify"
	"github.com/rahulm/quickserve/internal/repository"
	"github.com/rahulm/quickserve/internal/service"
	"github.com/rahulm/quickserve/internal/ws"
	"github.com/rahulm/quickserve/pkg/cache"
	"github.com/rahulm/quickserve/pkg/db"
	"github.com/rahulm/quickserve/pkg/geocode"
)

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	// ── Load configuration ──────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	ctx := context.Background()

	// ── Connect to PostgreSQL ───────────────────────────
	pgPool, err := db.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to PostgreSQL")
	}
	defer pgPool.Close()
	log.Info().Msg("PostgreSQL connected")

	// ── Connect to Redis ────────────────────────────────
	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer redisClient.Close()
	log.Info().Msg("Redis connected")

	// ── Initialize layers ───────────────────────────────
	bookingRepo := repository.NewBookingRepository(pgPool)
	offerRepo := repository.NewOfferRepository(pgPool)
	providerRepo := repository.NewProviderRepository(pgPool)
	catalogRepo := repository.NewCatalogRepository(pgPool)
	deviceRepo := repository.NewDeviceRepository(pgPool)
	adminRepo := repository.NewAdminRepository(pgPool)

	nominatim := geocode.NewNominatimClient(cfg.Geocode)
	geocoder := geocode.NewCachedGeocoder(nominatim, redisClient, cfg.Geocode.CacheTTL)

	var notifier notify.Notifier = notify.NopNotifier{}
	if cfg.Push.CredentialsFile != "" {
		fcm, err := notify.NewFCMNotifier(ctx, cfg.Push.CredentialsFile, deviceRepo, providerRepo, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to init FCM notifier")
		}
		notifier = fcm
		log.Info().Msg("FCM notifier enabled")
	} else {
		log.Warn().Msg("FCM credentials not configured, push notifications disabled")
	}

	hub := ws.NewHub(log)

	selector := service.NewSelector(providerRepo, cfg.Dispatch, log)
	dispatcher := service.NewDispatcher(selector, offerRepo, bookingRepo, notifier, hub, cfg.Dispatch, log)
	arbiter := service.NewArbiter(providerRepo, offerRepo, hub, log)
	sweeper := service.NewSweeper(offerRepo, dispatcher, notifier, cfg.Dispatch, log)
	bookingSvc := service.NewBookingService(bookingRepo, catalogRepo, geocoder, dispatcher, hub, log)
	providerSvc := service.NewProviderService(providerRepo, geocoder, log)

	bookingHandler := handler.NewBookingHandler(bookingSvc, log)
	assignmentHandler := handler.NewAssignmentHandler(arbiter, log)
	providerHandler := handler.NewProviderHandler(providerSvc, providerRepo, bookingRepo, log)
	catalogHandler := handler.NewCatalogHandler(catalogRepo, log)
	deviceHandler := handler.NewDeviceHandler(deviceRepo, log)
	locationHandler := handler.NewLocationHandler(nominatim, log)
	adminHandler := handler.NewAdminHandler(adminRepo, bookingRepo, providerRepo, bookingSvc, log)

	// ── Background sweeps ───────────────────────────────
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.Dispatch.SweepSchedule, func() {
		sweepCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		sweeper.RunOnce(sweepCtx)
	}); err != nil {
		log.Fatal().Err(err).Str("schedule", cfg.Dispatch.SweepSchedule).Msg("invalid sweep schedule")
	}
	if _, err := scheduler.AddFunc(cfg.Dispatch.ScheduledSweepSchedule, func() {
		sweepCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		sweeper.RunScheduled(sweepCtx)
	}); err != nil {
		log.Fatal().Err(err).Str("schedule", cfg.Dispatch.ScheduledSweepSchedule).Msg("invalid scheduled sweep schedule")
	}
	scheduler.Start()
	defer scheduler.Stop()

	// ── Setup router ────────────────────────────────────
	router := mux.NewRouter()
	router.Use(middleware.RequestLogger(log), middleware.Recoverer(log))

	router.HandleFunc("/health", healthHandler(pgPool, redisClient)).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	// API v1 routes. Everything below requires a valid JWT.
	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.Auth(cfg.Auth.JWTSecret))

	// Catalog (reads)
	api.HandleFunc("/categories", catalogHandler.ListCategories).Methods(http.MethodGet)
	api.HandleFunc("/services", catalogHandler.ListServices).Methods(http.MethodGet)
	api.HandleFunc("/services/{id}", catalogHandler.GetService).Methods(http.MethodGet)

	// Bookings (customer side)
	api.HandleFunc("/bookings", bookingHandler.Create).Methods(http.MethodPost)
	api.HandleFunc("/bookings", bookingHandler.List).Methods(http.MethodGet)
	api.HandleFunc("/bookings/{id}", bookingHandler.Get).Methods(http.MethodGet)
	api.HandleFunc("/bookings/{id}", bookingHandler.Cancel).Methods(http.MethodDelete)
	api.HandleFunc("/bookings/{id}/status", bookingHandler.UpdateStatus).Methods(http.MethodPatch)
	api.HandleFunc("/bookings/{id}/rating", bookingHandler.Rate).Methods(http.MethodPost)

	// Assignments (provider side of the offer queue)
	api.HandleFunc("/assignments/pending", assignmentHandler.ListPending).Methods(http.MethodGet)
	api.HandleFunc("/assignments/{id}/accept", assignmentHandler.Accept).Methods(http.MethodPost)
	api.HandleFunc("/assignments/{id}/decline", assignmentHandler.Decline).Methods(http.MethodPost)

	// Providers
	api.HandleFunc("/providers", providerHandler.Register).Methods(http.MethodPost)
	api.HandleFunc("/providers", providerHandler.List).Methods(http.MethodGet)
	api.HandleFunc("/providers/me", providerHandler.GetMe).Methods(http.MethodGet)
	api.HandleFunc("/providers/me", providerHandler.UpdateMe).Methods(http.MethodPatch)
	api.HandleFunc("/providers/me/bookings", providerHandler.MyBookings).Methods(http.MethodGet)
	api.HandleFunc("/providers/me/services", providerHandler.ListMyServices).Methods(http.MethodGet)
	api.HandleFunc("/providers/me/services", providerHandler.AddMyService).Methods(http.MethodPost)
	api.HandleFunc("/providers/me/services/{id}", providerHandler.UpdateMyService).Methods(http.MethodPatch)
	api.HandleFunc("/providers/me/services/{id}", providerHandler.RemoveMyService).Methods(http.MethodDelete)
	api.HandleFunc("/providers/{id}", providerHandler.Get).Methods(http.MethodGet)

	// Devices and location search
	api.HandleFunc("/devices", deviceHandler.Register).Methods(http.MethodPost)
	api.HandleFunc("/location/search", locationHandler.Search).Methods(http.MethodGet)

	// Admin dashboard
	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(middleware.RequireAdmin)
	admin.HandleFunc("/stats", adminHandler.Stats).Methods(http.MethodGet)
	admin.HandleFunc("/users", adminHandler.ListUsers).Methods(http.MethodGet)
	admin.HandleFunc("/bookings", adminHandler.ListBookings).Methods(http.MethodGet)
	admin.HandleFunc("/bookings/{id}/status", adminHandler.UpdateBookingStatus).Methods(http.MethodPatch)
	admin.HandleFunc("/providers", adminHandler.ListProviders).Methods(http.MethodGet)
	admin.HandleFunc("/categories", catalogHandler.CreateCategory).Methods(http.MethodPost)
	admin.HandleFunc("/services", catalogHandler.CreateService).Methods(http.MethodPost)
	admin.HandleFunc("/services/{id}", catalogHandler.UpdateService).Methods(http.MethodPut)
	admin.HandleFunc("/services/{id}", catalogHandler.DeleteService).Methods(http.MethodDelete)

	// WebSocket endpoints. Auth reads the token query parameter here since
	// browser WebSocket clients cannot set headers.
	wsRouter := router.PathPrefix("/ws").Subrouter()
	wsRouter.Use(middleware.Auth(cfg.Auth.JWTSecret))
	wsRouter.HandleFunc("/admin", func(w http.ResponseWriter, r *http.Request) {
		if !middleware.IsAdmin(r.Context()) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		hub.HandleAdmin(w, r)
	}).Methods(http.MethodGet)
	wsRouter.HandleFunc("", hub.HandleUser).Methods(http.MethodGet)

	// Wrap with CORS so browser clients can call the API.
	root := middleware.CORS(router)

	// ── Start HTTP server ───────────────────────────────
	srv := &http.Server{
		Addr:         cfg.Server.ServerAddr(),
		Handler:      root,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start in a goroutine so we can listen for shutdown signals.
	go func() {
		log.Info().Str("addr", cfg.Server.ServerAddr()).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// ── Graceful shutdown ───────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

// HealthResponse represents the /health endpoint response.
type HealthResponse struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
}

// healthHandler returns an HTTP handler that checks PG and Redis connectivity.
func healthHandler(pgPool *pgxpool.Pool, redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{
			Status:   "ok",
			Services: make(map[string]string),
		}

		if err := db.HealthCheck(r.Context(), pgPool); err != nil {
			resp.Status = "degraded"
			resp.Services["postgres"] = "unhealthy: " + err.Error()
		} else {
			resp.Services["postgres"] = "healthy"
		}

		if err := cache.HealthCheck(r.Context(), redisClient); err != nil {
			resp.Status = "degraded"
			resp.Services["redis"] = "unhealthy: " + err.Error()
		} else {
			resp.Services["redis"] = "healthy"
		}

		w.Header().Set("Content-Type", "application/json")
		if resp.Status != "ok" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(resp)
	}
}
