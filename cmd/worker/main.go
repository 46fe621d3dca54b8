package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"rollcall/internal/attendance"
	"rollcall/internal/cloudinary"
	"rollcall/internal/config"
	"rollcall/internal/enrollment"
	"rollcall/internal/queue"
	"rollcall/internal/store"
	"rollcall/internal/worker"
)

// Worker consumes attendance events and mirrors enrollment photos.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	if cfg.QueueBackend == "memory" {
		log.Fatalf("QUEUE_BACKEND=memory is consumed inside the api process; run the worker with redis")
	}

	db, err := store.NewDB(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()
	if !redisClient.Healthy(ctx) {
		log.Printf("WARNING: redis at %s not reachable yet, will keep retrying", cfg.RedisAddr)
	}

	artifacts, err := enrollment.New(cfg.ImagesDir, cfg.FingerprintsDir)
	if err != nil {
		log.Fatalf("enrollment store: %v", err)
	}

	var uploader worker.Uploader
	if cfg.CloudinaryEnabled() {
		uploader = cloudinary.New(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
		log.Println("Cloudinary configured:", cfg.CloudinaryCloudName)
	} else {
		log.Println("Cloudinary not configured (CLOUDINARY_CLOUD_NAME / API_KEY / API_SECRET not set)")
	}

	q := queue.NewRedisQueue(redisClient.Client, queue.DefaultKey)
	p := worker.NewProcessor(uploader, attendance.NewRepository(db), artifacts)
	if err := p.Run(ctx, q); err != nil {
		log.Fatalf("worker: %v", err)
	}
}
