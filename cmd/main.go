package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"imagehub/internal/caption"
	"imagehub/internal/models"
	"imagehub/internal/pipeline"
	"imagehub/internal/queue"
	"imagehub/internal/server"
	"imagehub/internal/storage"
	"imagehub/internal/worker"
)

func main() {
	_ = godotenv.Load()

	cfg, err := models.LoadConfig("config.yaml")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	var db storage.Store
	if cfg.DatabaseURL != "" {
		pg, err := storage.NewStorage(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("failed to init storage: %v", err)
		}
		db = pg
	} else {
		log.Println("no database_url configured, using in-memory store")
		db = storage.NewMemory()
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Records stuck in processing belong to a previous run; no worker owns
	// them anymore.
	orphans, err := pipeline.ReconcileOrphans(ctx, db)
	if err != nil {
		log.Fatalf("failed to reconcile orphaned records: %v", err)
	}
	if orphans > 0 {
		log.Printf("marked %d orphaned records as failed", orphans)
	}

	generator, err := pipeline.NewArtifactGenerator(filepath.Join(cfg.StoragePath, "thumbnails"))
	if err != nil {
		log.Fatalf("failed to init artifact generator: %v", err)
	}

	var captioner pipeline.Captioner
	if cfg.CaptionBaseURL != "" {
		captioner = caption.NewClient(cfg.CaptionBaseURL, cfg.CaptionAPIKey, cfg.CaptionTimeout())
	} else {
		log.Println("no caption_base_url configured, captioning disabled")
	}

	processor := pipeline.NewProcessor(db, generator, captioner, cfg)

	jobs := queue.New(cfg.QueueCapacity)
	pool := worker.NewPool(jobs, processor, cfg.WorkerCount)
	pool.Start(ctx)

	srv := server.NewServer(cfg, db, jobs)

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	// Graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	cancel()
	pool.Wait()
}
