// Package pipeline turns a queued job into a terminal image record:
// validate, generate artifacts, caption (best-effort), finalize.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"time"

	_ "image/jpeg"
	_ "image/png"

	"github.com/sethvargo/go-retry"

	"imagehub/internal/metrics"
	"imagehub/internal/models"
	"imagehub/internal/storage"
)

// Generator produces the thumbnails and metadata bundle for a stored image.
type Generator interface {
	Generate(storedPath, originalName string) (*Artifacts, error)
}

// Captioner asks an external service to describe the image. Its failure
// never fails the job.
type Captioner interface {
	Caption(ctx context.Context, storedPath string) (string, error)
}

type Processor struct {
	store          storage.Store
	gen            Generator
	capt           Captioner
	captionTimeout time.Duration
	maxBytes       int64
	retryAttempts  int
}

func NewProcessor(store storage.Store, gen Generator, capt Captioner, cfg *models.Config) *Processor {
	return &Processor{
		store:          store,
		gen:            gen,
		capt:           capt,
		captionTimeout: cfg.CaptionTimeout(),
		maxBytes:       cfg.MaxUploadBytes,
		retryAttempts:  cfg.StoreRetryAttempts,
	}
}

// Process runs the pipeline for one job. Validation and generation errors
// become a terminal failed record; they never propagate to the worker.
func (p *Processor) Process(ctx context.Context, job models.Job) {
	log := slog.With("image_id", job.ImageID)
	log.Info("processing image", "name", job.OriginalName, "queued_for", time.Since(job.SubmittedAt))

	if err := p.validate(job); err != nil {
		p.Fail(ctx, job.ImageID, err.Error())
		return
	}

	artifacts, err := p.gen.Generate(job.StoredPath, job.OriginalName)
	if err != nil {
		p.Fail(ctx, job.ImageID, fmt.Sprintf("artifact generation failed: %v", err))
		return
	}

	caption := p.captionFor(ctx, job)

	now := time.Now().UTC()
	err = p.persist(ctx, job.ImageID, func(img *models.Image) {
		if img.Status != models.StatusProcessing {
			return
		}
		img.Status = models.StatusSuccess
		img.Metadata = artifacts.Metadata
		img.Thumbnails = artifacts.Thumbnails
		img.Caption = caption
		img.ProcessedAt = &now
	})
	if err != nil {
		log.Error("abandoning job, could not persist result", "error", err)
		return
	}

	metrics.ProcessedTotal.WithLabelValues(string(models.StatusSuccess)).Inc()
	log.Info("image processed", "duration", time.Since(job.SubmittedAt))
}

// Fail records a terminal failed status with a non-empty message.
func (p *Processor) Fail(ctx context.Context, imageID int64, message string) {
	if message == "" {
		message = "processing failed"
	}
	now := time.Now().UTC()
	err := p.persist(ctx, imageID, func(img *models.Image) {
		if img.Status != models.StatusProcessing {
			return
		}
		img.Status = models.StatusFailed
		img.ErrorMessage = &message
		img.ProcessedAt = &now
	})
	if err != nil {
		slog.Error("abandoning job, could not persist failure", "image_id", imageID, "error", err)
		return
	}
	metrics.ProcessedTotal.WithLabelValues(string(models.StatusFailed)).Inc()
	slog.Warn("image failed", "image_id", imageID, "reason", message)
}

func (p *Processor) validate(job models.Job) error {
	info, err := os.Stat(job.StoredPath)
	if err != nil {
		return fmt.Errorf("stored file unreadable: %v", err)
	}
	if info.Size() == 0 {
		return errors.New("validation failed: uploaded file is empty")
	}
	if p.maxBytes > 0 && info.Size() > p.maxBytes {
		return fmt.Errorf("validation failed: file size %d exceeds limit %d", info.Size(), p.maxBytes)
	}

	f, err := os.Open(job.StoredPath)
	if err != nil {
		return fmt.Errorf("stored file unreadable: %v", err)
	}
	defer f.Close()

	_, format, err := image.DecodeConfig(f)
	if err != nil {
		return fmt.Errorf("validation failed: not a decodable image: %v", err)
	}
	if format != "jpeg" && format != "png" {
		return fmt.Errorf("validation failed: unsupported image format %q", format)
	}
	return nil
}

func (p *Processor) captionFor(ctx context.Context, job models.Job) *string {
	if p.capt == nil {
		return nil
	}
	cctx, cancel := context.WithTimeout(ctx, p.captionTimeout)
	defer cancel()

	text, err := p.capt.Caption(cctx, job.StoredPath)
	if err != nil {
		slog.Warn("caption unavailable", "image_id", job.ImageID, "error", err)
		return nil
	}
	return &text
}

// persist retries transient store failures a bounded number of times before
// the job is abandoned.
func (p *Processor) persist(ctx context.Context, imageID int64, mutate func(*models.Image)) error {
	backoff := retry.WithMaxRetries(uint64(p.retryAttempts), retry.NewConstant(200*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := p.store.Update(ctx, imageID, mutate); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return err
			}
			return retry.RetryableError(err)
		}
		return nil
	})
}

// ReconcileOrphans marks records left in processing by a previous run as
// failed. Called at startup before any worker is running.
func ReconcileOrphans(ctx context.Context, store storage.Store) (int, error) {
	const op = "pipeline.ReconcileOrphans"

	images, err := store.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("%s: %v", op, err)
	}

	count := 0
	for _, img := range images {
		if img.Status != models.StatusProcessing {
			continue
		}
		now := time.Now().UTC()
		message := "processing interrupted by service restart"
		err := store.Update(ctx, img.ID, func(rec *models.Image) {
			if rec.Status != models.StatusProcessing {
				return
			}
			rec.Status = models.StatusFailed
			rec.ErrorMessage = &message
			rec.ProcessedAt = &now
		})
		if err != nil {
			return count, fmt.Errorf("%s: image %d: %v", op, img.ID, err)
		}
		count++
	}
	return count, nil
}
