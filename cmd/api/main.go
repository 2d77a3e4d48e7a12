// ==============================================================================
// API SERVER - cmd/api/main.go
// ==============================================================================
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"tracknow/internal/catalog"
	"tracknow/internal/handler"
	"tracknow/internal/kyc"
	"tracknow/internal/middleware"
	"tracknow/internal/notification"
	"tracknow/internal/repository/postgres"
	"tracknow/internal/settlement"
	"tracknow/internal/storage"
	"tracknow/pkg/cache"
	"tracknow/pkg/config"
	"tracknow/pkg/logger"
	"tracknow/pkg/mailer"
	"tracknow/pkg/validator"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.New("tracknow-api")

	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatal("failed to connect to database", map[string]interface{}{
			"error": err.Error(),
		})
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	redisCache, err := cache.NewRedisCache(cfg.Redis.URL, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Warn("redis unavailable, rate caching disabled", map[string]interface{}{
			"error": err.Error(),
		})
		redisCache = nil
	} else {
		defer redisCache.Close()
	}

	// Repositories
	queryTimeout := cfg.Database.QueryTimeout
	saleRepo := postgres.NewSaleRepository(db, queryTimeout)
	commissionRepo := postgres.NewCommissionRepository(db, queryTimeout)
	kycRepo := postgres.NewKYCRepository(db, queryTimeout)
	documentRepo := postgres.NewDocumentRepository(db, queryTimeout)
	userRepo := postgres.NewUserRepository(db, queryTimeout)

	// Collaborators
	v := validator.New()
	rateSource := catalog.NewService(db, redisCache, cfg.Commission.RateCacheTTL, queryTimeout,
		log.With(map[string]interface{}{"component": "catalog"}))

	var notifier notification.Notifier
	if cfg.Notification.Mode == "smtp" {
		m := mailer.New(mailer.Config{
			Host:     cfg.Notification.SMTPHost,
			Port:     cfg.Notification.SMTPPort,
			Username: cfg.Notification.SMTPUsername,
			Password: cfg.Notification.SMTPPassword,
			From:     cfg.Notification.SMTPFrom,
			UseTLS:   cfg.Notification.SMTPUseTLS,
		})
		notifier = notification.NewEmailNotifier(m, log)
	} else {
		notifier = notification.NewStubNotifier(log)
	}

	store, err := storage.NewLocalStore(cfg.Storage.BasePath, cfg.Storage.PublicBase, cfg.Storage.Timeout)
	if err != nil {
		log.Fatal("failed to initialize document storage", map[string]interface{}{
			"error": err.Error(),
		})
	}

	// Services
	settlementService := settlement.NewService(
		saleRepo, commissionRepo, userRepo, rateSource, notifier,
		cfg.Commission.PlatformRate, cfg.Commission.SupportedCurrencies,
		log.With(map[string]interface{}{"component": "settlement"}))
	kycService := kyc.NewService(
		kycRepo, documentRepo, userRepo, store, v, notifier,
		cfg.Storage.MaxFileSize,
		log.With(map[string]interface{}{"component": "kyc"}))

	// Router
	router := mux.NewRouter()
	router.Use(middleware.CORS)
	router.Use(middleware.Logging(log))

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.Auth(cfg.JWT.Secret))

	handler.NewKYCHandler(kycService, cfg.Storage.MaxFileSize, log).RegisterRoutes(api)
	handler.NewCommissionHandler(settlementService, log).RegisterRoutes(api)

	srv := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("server starting", map[string]interface{}{
			"addr": srv.Addr,
		})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down", nil)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}
