package storage

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imagehub/internal/models"
)

func newRecord(name string) *models.Image {
	return &models.Image{
		OriginalName: name,
		StoredPath:   "/tmp/" + name,
		Status:       models.StatusProcessing,
	}
}

func TestMemoryCreateAssignsMonotonicIDs(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		img := newRecord(fmt.Sprintf("photo%d.jpg", i))
		require.NoError(t, m.Create(ctx, img))
		assert.Equal(t, i, img.ID)
		assert.False(t, img.CreatedAt.IsZero())
	}
}

func TestMemoryGetNotFound(t *testing.T) {
	m := NewMemory()

	_, err := m.Get(context.Background(), 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryUpdatePersistsMutation(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	img := newRecord("photo.jpg")
	require.NoError(t, m.Create(ctx, img))

	require.NoError(t, m.Update(ctx, img.ID, func(rec *models.Image) {
		rec.Status = models.StatusSuccess
	}))

	got, err := m.Get(ctx, img.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, got.Status)
}

func TestMemoryGetReturnsCopy(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	img := newRecord("photo.jpg")
	require.NoError(t, m.Create(ctx, img))

	got, err := m.Get(ctx, img.ID)
	require.NoError(t, err)
	got.Status = models.StatusFailed
	got.Thumbnails = map[string]string{"small": "/tmp/thumb.jpg"}

	fresh, err := m.Get(ctx, img.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessing, fresh.Status)
	assert.Nil(t, fresh.Thumbnails)
}

func TestMemoryDelete(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	img := newRecord("photo.jpg")
	require.NoError(t, m.Create(ctx, img))
	require.NoError(t, m.Delete(ctx, img.ID))

	_, err := m.Get(ctx, img.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, m.Delete(ctx, img.ID), ErrNotFound)
}

func TestMemoryListAllSortedByID(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, m.Create(ctx, newRecord(fmt.Sprintf("p%d.jpg", i))))
	}

	images, err := m.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, images, 5)
	for i := 1; i < len(images); i++ {
		assert.Less(t, images[i-1].ID, images[i].ID)
	}
}

func TestMemoryUpdateIsAtomic(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	img := newRecord("photo.jpg")
	require.NoError(t, m.Create(ctx, img))

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = m.Update(ctx, img.ID, func(rec *models.Image) {
				if rec.Thumbnails == nil {
					rec.Thumbnails = make(map[string]string)
				}
				rec.Thumbnails[fmt.Sprintf("k%d", n)] = "v"
			})
		}(i)
	}
	wg.Wait()

	got, err := m.Get(ctx, img.ID)
	require.NoError(t, err)
	assert.Len(t, got.Thumbnails, writers)
}
