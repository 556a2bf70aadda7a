package caption

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempImageFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "photo.jpg")
	require.NoError(t, os.WriteFile(path, []byte("fake image bytes"), 0644))
	return path
}

func TestCaptionSuccess(t *testing.T) {
	var gotPath, gotKey, gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-api-key")
		gotContentType = r.Header.Get("Content-Type")
		w.Write([]byte(`{"caption": "a red square on a table"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key", 5*time.Second)
	text, err := client.Caption(context.Background(), tempImageFile(t))

	require.NoError(t, err)
	assert.Equal(t, "a red square on a table", text)
	assert.Equal(t, "/v1/captions", gotPath)
	assert.Equal(t, "test-key", gotKey)
	assert.Equal(t, "application/octet-stream", gotContentType)
}

func TestCaptionServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", 5*time.Second)
	_, err := client.Caption(context.Background(), tempImageFile(t))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestCaptionTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{"caption": "too late"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", 5*time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.Caption(ctx, tempImageFile(t))
	assert.Error(t, err)
}

func TestCaptionEmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"caption": ""}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "", 5*time.Second)
	_, err := client.Caption(context.Background(), tempImageFile(t))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty caption")
}

func TestCaptionUnreadableFile(t *testing.T) {
	client := NewClient("http://localhost:0", "", time.Second)
	_, err := client.Caption(context.Background(), "/does/not/exist.jpg")
	assert.Error(t, err)
}
