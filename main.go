package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"restaurant-review-api/config"
	"restaurant-review-api/handlers"
	"restaurant-review-api/jobs"
	"restaurant-review-api/logging"
	"restaurant-review-api/metrics"
	"restaurant-review-api/middleware"
	"restaurant-review-api/notifications"
	"restaurant-review-api/routes"
	"restaurant-review-api/services"
	"restaurant-review-api/storage"
	"restaurant-review-api/tokens"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	// Initialize database
	db, err := config.OpenDB(cfg)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	if err := config.Migrate(db); err != nil {
		log.WithError(err).Fatal("failed to migrate database")
	}
	log.WithField("driver", cfg.DBDriver).Info("database connected")

	m := metrics.New()
	tm := tokens.NewManager(cfg.JWTSecret, cfg.TokenTTL, cfg.EmailTokenTTL)
	mailer := notifications.New(cfg.BrevoAPIKey, cfg.EmailSender, cfg.EmailSenderName, log)

	var images storage.ImageStore
	var local *storage.LocalStore
	if cfg.CloudinaryURL != "" {
		images, err = storage.NewCloudinaryStore(cfg.CloudinaryURL, "restaurant-reviews")
		log.Info("storing images on Cloudinary")
	} else {
		local, err = storage.NewLocalStore(cfg.UploadDir, cfg.PublicUploadPath)
		images = local
	}
	if err != nil {
		log.WithError(err).Fatal("failed to initialize image storage")
	}

	ratings := services.NewRatingAggregator(db, log, m)
	users := services.NewUserService(db, ratings, images, tm, mailer, cfg.ClientURL, log)
	restaurants := services.NewRestaurantService(db, images, cfg.RequireCoordinates, log)
	reviews := services.NewReviewService(db, ratings, log, m)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		admin, err := users.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminEmail, cfg.AdminPassword)
		if err != nil {
			log.WithError(err).Fatal("failed to bootstrap admin account")
		}
		log.WithField("user_id", admin.ID).Info("admin account ready")
	}

	if n, err := restaurants.CountMissingCoordinates(ctx); err != nil {
		log.WithError(err).Warn("could not count restaurants without coordinates")
	} else if n > 0 {
		log.WithField("count", n).Warn("restaurants without coordinates need a data migration decision")
	}

	handlers.RegisterValidators()

	r := gin.New()
	r.MaxMultipartMemory = 8 << 20
	r.Use(
		gin.Recovery(),
		middleware.RequestLogger(log),
		middleware.Metrics(m),
		middleware.CORS(cfg.CORSOrigins),
	)

	limiter := middleware.NewRateLimiter(cfg.AuthRateLimit, cfg.AuthRateBurst, log)
	deps := routes.Deps{
		Handler: &handlers.Handler{
			Users:       users,
			Restaurants: restaurants,
			Reviews:     reviews,
			Tokens:      tm,
			Log:         log,
		},
		Tokens:      tm,
		Users:       users,
		Metrics:     m,
		AuthLimiter: limiter,
		Ping: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if local != nil {
		deps.UploadDir = local.Root()
		deps.PublicUploadPath = local.PublicPath()
	}
	routes.SetupRoutes(r, deps)

	// Background maintenance
	maintenance := &jobs.Maintenance{
		Ratings: ratings,
		Refs:    []jobs.RefSource{users.ImageRefs, restaurants.ImageRefs},
		MinAge:  time.Hour,
		Log:     log.WithField("job", "maintenance"),
		Metrics: m,
	}
	if local != nil {
		maintenance.Sweeper = local
	}
	scheduler := jobs.NewScheduler(log)
	if _, err := maintenance.Register(scheduler, cfg.MaintenanceSchedule); err != nil {
		log.WithError(err).Fatal("invalid MAINTENANCE_SCHEDULE")
	}
	if _, err := scheduler.AddFunc("@every 10m", func() {
		limiter.Cleanup(30 * time.Minute)
	}); err != nil {
		log.WithError(err).Fatal("failed to schedule rate limiter cleanup")
	}
	scheduler.Start()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		log.WithField("port", cfg.Port).Info("server running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
	<-scheduler.Stop().Done()

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
