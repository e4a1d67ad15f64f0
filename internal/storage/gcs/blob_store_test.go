package gcs_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/distro-catalog/internal/storage"
	"github.com/JakeFAU/distro-catalog/internal/storage/gcs"
)

const bucketName = "test-bucket"

// fakeGCS answers the handful of JSON and XML API calls the store makes.
type fakeGCS struct {
	mu      sync.Mutex
	object  []byte
	uploads int
}

func (f *fakeGCS) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := r.URL.Path
	switch {
	case r.Method == http.MethodPost && strings.Contains(path, fmt.Sprintf("/upload/storage/v1/b/%s/o", bucketName)):
		body, _ := io.ReadAll(r.Body)
		f.uploads++
		// The multipart body carries the JSON metadata part followed by the payload.
		if idx := strings.Index(string(body), "{\"records\""); idx >= 0 {
			end := strings.LastIndex(string(body), "}")
			f.object = append([]byte(nil), body[idx:end+1]...)
		}
		fmt.Fprintf(w, `{"name":%q,"bucket":%q}`, gcs.DefaultObject, bucketName)
	case r.Method == http.MethodDelete && strings.HasSuffix(path, "/o/"+gcs.DefaultObject):
		if f.object == nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		f.object = nil
		w.WriteHeader(http.StatusNoContent)
	case r.Method == http.MethodGet && strings.HasSuffix(path, "/b/"+bucketName):
		fmt.Fprintf(w, `{"name":%q}`, bucketName)
	case r.Method == http.MethodGet && strings.Contains(path, gcs.DefaultObject):
		if f.object == nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Length", fmt.Sprint(len(f.object)))
		_, _ = w.Write(f.object)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestStore(t *testing.T, handler http.Handler) *gcs.BlobStore {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := gcs.NewClient(context.Background(), server.URL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	store, err := gcs.New(context.Background(), client, gcs.Config{Bucket: bucketName})
	require.NoError(t, err)
	return store
}

func TestNewValidation(t *testing.T) {
	_, err := gcs.New(context.Background(), nil, gcs.Config{Bucket: bucketName})
	assert.Error(t, err)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client, err := gcs.NewClient(context.Background(), server.URL)
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	_, err = gcs.New(context.Background(), client, gcs.Config{})
	assert.Error(t, err, "bucket is required")

	_, err = gcs.New(context.Background(), client, gcs.Config{Bucket: bucketName})
	assert.Error(t, err, "missing bucket must fail the reachability check")
}

func TestSaveLoadRemove(t *testing.T) {
	fake := &fakeGCS{}
	store := newTestStore(t, fake)
	ctx := context.Background()

	assert.Equal(t, "gcs", store.Name())
	assert.Equal(t, "gs://test-bucket/distros_cache.json", store.URI())

	_, err := store.Load(ctx)
	require.ErrorIs(t, err, storage.ErrEmpty)

	payload := []byte(`{"records":[],"count":0}`)
	require.NoError(t, store.Save(ctx, payload))
	assert.Equal(t, 1, fake.uploads)

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, string(payload), string(loaded))

	require.NoError(t, store.Remove(ctx))
	require.NoError(t, store.Remove(ctx), "removing a missing object is not an error")
}

func TestSaveError(t *testing.T) {
	var failUploads atomic.Bool
	fake := &fakeGCS{}
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failUploads.Load() && r.Method == http.MethodPost {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fake.ServeHTTP(w, r)
	})
	store := newTestStore(t, handler)
	failUploads.Store(true)

	err := store.Save(context.Background(), []byte(`{"records":[]}`))
	assert.Error(t, err)
}
