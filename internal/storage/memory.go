package storage

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"imagehub/internal/models"
)

// Memory is an in-process Store used for tests and database-less runs.
// Every read returns a copy, so callers never observe partial writes.
type Memory struct {
	mu     sync.RWMutex
	nextID int64
	images map[int64]*models.Image
}

func NewMemory() *Memory {
	return &Memory{images: make(map[int64]*models.Image)}
}

func (m *Memory) Create(_ context.Context, img *models.Image) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	img.ID = m.nextID
	if img.CreatedAt.IsZero() {
		img.CreatedAt = time.Now().UTC()
	}
	m.images[img.ID] = cloneImage(img)
	return nil
}

func (m *Memory) Get(_ context.Context, id int64) (*models.Image, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	img, ok := m.images[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneImage(img), nil
}

func (m *Memory) Update(_ context.Context, id int64, mutate func(*models.Image)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	img, ok := m.images[id]
	if !ok {
		return ErrNotFound
	}
	mutate(img)
	return nil
}

func (m *Memory) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.images[id]; !ok {
		return ErrNotFound
	}
	delete(m.images, id)
	return nil
}

func (m *Memory) ListAll(_ context.Context) ([]models.Image, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	images := make([]models.Image, 0, len(m.images))
	for _, img := range m.images {
		images = append(images, *cloneImage(img))
	}
	sort.Slice(images, func(i, j int) bool { return images[i].ID < images[j].ID })
	return images, nil
}

func (m *Memory) Close() {}

func cloneImage(img *models.Image) *models.Image {
	cp := *img
	if img.Metadata != nil {
		meta := *img.Metadata
		meta.Exif = maps.Clone(img.Metadata.Exif)
		cp.Metadata = &meta
	}
	cp.Thumbnails = maps.Clone(img.Thumbnails)
	if img.Caption != nil {
		v := *img.Caption
		cp.Caption = &v
	}
	if img.ErrorMessage != nil {
		v := *img.ErrorMessage
		cp.ErrorMessage = &v
	}
	if img.ProcessedAt != nil {
		t := *img.ProcessedAt
		cp.ProcessedAt = &t
	}
	return &cp
}
