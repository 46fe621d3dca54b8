package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rollcall/internal/attendance"
	"rollcall/internal/auth"
	"rollcall/internal/cloudinary"
	"rollcall/internal/config"
	"rollcall/internal/enrollment"
	"rollcall/internal/faceclient"
	"rollcall/internal/handler"
	"rollcall/internal/httpmiddleware"
	"rollcall/internal/metrics"
	"rollcall/internal/queue"
	"rollcall/internal/recognition"
	"rollcall/internal/report"
	"rollcall/internal/store"
	"rollcall/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	db, err := store.NewDB(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := db.Migrate(ctx); err != nil {
		return err
	}

	checks := map[string]handler.Checker{"db": db}
	var redisClient *store.Redis
	if cfg.QueueBackend != "memory" || cfg.RateLimitBackend == "redis" {
		redisClient = store.NewRedis(cfg.RedisAddr)
		defer redisClient.Close()
		checks["redis"] = redisClient
	}
	if cfg.RecognitionProvider == "faceservice" {
		checks["face_service"] = faceclient.New(cfg.FaceServiceURL, cfg.FaceSkip)
	}

	artifacts, err := enrollment.New(cfg.ImagesDir, cfg.FingerprintsDir)
	if err != nil {
		return err
	}
	repo := attendance.NewRepository(db)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
		// an in-process queue has no external consumer
		go func() {
			_ = worker.NewProcessor(uploaderFor(cfg), repo, artifacts).Run(ctx, q)
		}()
	} else {
		q = queue.NewRedisQueue(redisClient.Client, queue.DefaultKey)
	}

	recognizer, err := recognition.New(recognition.Options{
		Kind:           cfg.RecognitionProvider,
		Window:         cfg.RecognitionWindow,
		FaceServiceURL: cfg.FaceServiceURL,
		FaceSkip:       cfg.FaceSkip,
		Threshold:      cfg.FaceMatchThreshold,
	}, artifacts)
	if err != nil {
		return err
	}
	log.Printf("recognition provider: %s", cfg.RecognitionProvider)

	tickets, err := auth.NewTickets(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.CaptureTicketTTL)
	if err != nil {
		return err
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	svc := attendance.NewService(repo, artifacts, recognizer,
		attendance.WithPublisher(q),
		attendance.WithMetrics(m),
	)

	h := handler.New(handler.Config{
		Service:       svc,
		Reports:       report.NewGenerator(repo),
		Tickets:       tickets,
		Location:      cfg.Location(),
		MaxImageBytes: cfg.MaxImageBytes,
		WebDir:        cfg.WebDir,
		Checks:        checks,
	})

	var limiter httpmiddleware.Limiter
	if cfg.RateLimitBackend == "redis" {
		limiter = httpmiddleware.NewRedisWindow(redisClient.Client, cfg.RateLimitPerMin)
	} else {
		limiter = httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept", auth.TicketHeader},
		ExposeHeaders:   []string{"Content-Disposition"},
		MaxAge:          24 * time.Hour,
	}))
	r.Use(httpmiddleware.SecurityHeaders())
	r.Use(httpmiddleware.Metrics(m))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	h.Routes(r, httpmiddleware.RateLimit(limiter))

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

func uploaderFor(cfg config.App) worker.Uploader {
	if !cfg.CloudinaryEnabled() {
		return nil
	}
	return cloudinary.New(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
}
