package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"imagehub/internal/models"
	"imagehub/internal/queue"
	"imagehub/internal/stats"
	"imagehub/internal/storage"
)

var allowedExts = map[string]bool{"jpg": true, "jpeg": true, "png": true}

type Server struct {
	cfg    *models.Config
	router *gin.Engine
	db     storage.Store
	queue  *queue.Queue
}

func NewServer(cfg *models.Config, db storage.Store, q *queue.Queue) *Server {
	r := gin.Default()

	s := &Server{cfg: cfg, router: r, db: db, queue: q}

	r.POST("/api/images", s.handleUpload)
	r.GET("/api/images", s.handleListImages)
	r.GET("/api/images/:id", s.handleGetImage)
	r.GET("/api/images/:id/thumbnails/:size", s.handleGetThumbnail)
	r.GET("/api/stats", s.handleStats)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/", s.handleHealth)

	return s
}

func (s *Server) Start() error {
	return s.router.Run(s.cfg.ServerAddr)
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func successResponse(c *gin.Context, code int, data any) {
	c.JSON(code, gin.H{"status": "success", "data": data, "error": nil})
}

func errorResponse(c *gin.Context, code int, msg string) {
	c.JSON(code, gin.H{"status": "error", "data": nil, "error": msg})
}

func (s *Server) handleUpload(c *gin.Context) {
	const op = "server.handleUpload"

	file, err := c.FormFile("file")
	if err != nil {
		errorResponse(c, http.StatusBadRequest, "no file part")
		return
	}
	if file.Filename == "" {
		errorResponse(c, http.StatusBadRequest, "no file selected")
		return
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(file.Filename), "."))
	if !allowedExts[ext] {
		errorResponse(c, http.StatusBadRequest, "unsupported file type")
		return
	}
	if s.cfg.MaxUploadBytes > 0 && file.Size > s.cfg.MaxUploadBytes {
		errorResponse(c, http.StatusRequestEntityTooLarge, "file exceeds maximum upload size")
		return
	}

	storedPath := filepath.Join(s.cfg.StoragePath, "original", uuid.New().String()+"."+ext)
	if err := os.MkdirAll(filepath.Dir(storedPath), 0755); err != nil {
		errorResponse(c, http.StatusInternalServerError, fmt.Sprintf("%s: %v", op, err))
		return
	}

	dst, err := os.Create(storedPath)
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, fmt.Sprintf("%s: %v", op, err))
		return
	}
	defer dst.Close()

	src, err := file.Open()
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, fmt.Sprintf("%s: %v", op, err))
		return
	}
	defer src.Close()

	if _, err := io.Copy(dst, src); err != nil {
		errorResponse(c, http.StatusInternalServerError, fmt.Sprintf("%s: %v", op, err))
		return
	}

	img := &models.Image{
		OriginalName: file.Filename,
		StoredPath:   storedPath,
		Status:       models.StatusProcessing,
	}
	if err := s.db.Create(c.Request.Context(), img); err != nil {
		errorResponse(c, http.StatusInternalServerError, fmt.Sprintf("%s: %v", op, err))
		return
	}

	err = s.queue.Submit(models.Job{
		ImageID:      img.ID,
		StoredPath:   storedPath,
		OriginalName: file.Filename,
		SubmittedAt:  time.Now(),
	})
	if err != nil {
		// Roll back so a rejected upload leaves no trace.
		s.db.Delete(c.Request.Context(), img.ID)
		os.Remove(storedPath)
		if errors.Is(err, queue.ErrQueueFull) {
			errorResponse(c, http.StatusServiceUnavailable, "processing queue is full, retry later")
			return
		}
		errorResponse(c, http.StatusInternalServerError, fmt.Sprintf("%s: %v", op, err))
		return
	}

	successResponse(c, http.StatusAccepted, gin.H{
		"image_id":      img.ID,
		"original_name": img.OriginalName,
		"status":        img.Status,
	})
}

func (s *Server) handleListImages(c *gin.Context) {
	const op = "server.handleListImages"

	images, err := s.db.ListAll(c.Request.Context())
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, fmt.Sprintf("%s: %v", op, err))
		return
	}

	data := make([]gin.H, 0, len(images))
	for _, img := range images {
		data = append(data, gin.H{
			"image_id":      img.ID,
			"original_name": img.OriginalName,
			"status":        img.Status,
			"processed_at":  img.ProcessedAt,
			"thumbnails":    thumbnailURLs(&img),
		})
	}
	successResponse(c, http.StatusOK, data)
}

func (s *Server) handleGetImage(c *gin.Context) {
	const op = "server.handleGetImage"

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, fmt.Sprintf("%s: %v", op, err))
		return
	}

	img, err := s.db.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			errorResponse(c, http.StatusNotFound, "image not found")
			return
		}
		errorResponse(c, http.StatusInternalServerError, fmt.Sprintf("%s: %v", op, err))
		return
	}

	successResponse(c, http.StatusOK, gin.H{
		"image_id":      img.ID,
		"original_name": img.OriginalName,
		"status":        img.Status,
		"created_at":    img.CreatedAt,
		"processed_at":  img.ProcessedAt,
		"metadata":      img.Metadata,
		"thumbnails":    thumbnailURLs(img),
		"caption":       img.Caption,
		"error_message": img.ErrorMessage,
	})
}

func (s *Server) handleGetThumbnail(c *gin.Context) {
	const op = "server.handleGetThumbnail"

	size := c.Param("size")
	if size != models.ThumbSmall && size != models.ThumbMedium {
		errorResponse(c, http.StatusBadRequest, "invalid size")
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, fmt.Sprintf("%s: %v", op, err))
		return
	}

	img, err := s.db.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			errorResponse(c, http.StatusNotFound, "image not found")
			return
		}
		errorResponse(c, http.StatusInternalServerError, fmt.Sprintf("%s: %v", op, err))
		return
	}

	path, ok := img.Thumbnails[size]
	if !ok {
		errorResponse(c, http.StatusNotFound, "thumbnail not found")
		return
	}
	if _, err := os.Stat(path); err != nil {
		errorResponse(c, http.StatusNotFound, "thumbnail file missing")
		return
	}
	c.File(path)
}

func (s *Server) handleStats(c *gin.Context) {
	const op = "server.handleStats"

	images, err := s.db.ListAll(c.Request.Context())
	if err != nil {
		errorResponse(c, http.StatusInternalServerError, fmt.Sprintf("%s: %v", op, err))
		return
	}
	successResponse(c, http.StatusOK, stats.Compute(images))
}

func (s *Server) handleHealth(c *gin.Context) {
	successResponse(c, http.StatusOK, gin.H{"message": "Image Processing API is running"})
}

func thumbnailURLs(img *models.Image) map[string]string {
	urls := make(map[string]string, len(img.Thumbnails))
	for size := range img.Thumbnails {
		urls[size] = fmt.Sprintf("/api/images/%d/thumbnails/%s", img.ID, size)
	}
	return urls
}
