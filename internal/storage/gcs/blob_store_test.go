package gcs

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidation(t *testing.T) {
	t.Parallel()
	_, err := New(nil, Config{Bucket: "b"})
	require.Error(t, err)
}

func TestPutObjectUploadsToBucket(t *testing.T) {
	t.Parallel()

	var (
		mu     sync.Mutex
		paths  []string
		bodies []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		paths = append(paths, r.URL.Path)
		bodies = append(bodies, string(body))
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"bucket":"kbo-snapshots","name":"snapshots/schedule/x.html"}`)
	}))
	t.Cleanup(srv.Close)

	store, err := Open(context.Background(), Config{Bucket: "kbo-snapshots", Endpoint: srv.URL + "/storage/v1/"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	uri, err := store.PutObject(context.Background(), "snapshots/schedule/x.html", "text/html", []byte("<html>롯데</html>"))
	require.NoError(t, err)
	assert.Equal(t, "gs://kbo-snapshots/snapshots/schedule/x.html", uri)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, paths)
	assert.Contains(t, paths[0], "/b/kbo-snapshots/o")
	assert.True(t, strings.Contains(bodies[0], "<html>롯데</html>"))
}

func TestPutObjectRequiresPath(t *testing.T) {
	t.Parallel()
	store := &BlobStore{bucket: "b"}
	_, err := store.PutObject(context.Background(), " ", "text/html", nil)
	require.Error(t, err)
}
