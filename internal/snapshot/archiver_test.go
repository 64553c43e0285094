package snapshot_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/kbo-game-crawler/internal/clock/system"
	"github.com/JakeFAU/kbo-game-crawler/internal/hash/sha256"
	"github.com/JakeFAU/kbo-game-crawler/internal/snapshot"
	"github.com/JakeFAU/kbo-game-crawler/internal/storage/memory"
)

var at = time.Date(2025, 7, 15, 3, 4, 5, 0, time.UTC)

func TestArchiveWritesHashedPath(t *testing.T) {
	blobs := memory.NewBlobStore()
	a := snapshot.New(blobs, sha256.New(), system.NewFixed(at), "/kbo/", nil)

	html := []byte("<html>hello world</html>")
	a.Archive(context.Background(), "schedule", "2025-07", html)

	paths := blobs.Paths()
	require.Len(t, paths, 1)
	digest, _ := sha256.New().Hash(html)
	assert.Equal(t, "kbo/schedule/2025-07/20250715T030405Z-"+digest[:12]+".html", paths[0])
	got, ok := blobs.Object(paths[0])
	require.True(t, ok)
	assert.Equal(t, html, got)
}

func TestPathSanitizesKey(t *testing.T) {
	a := snapshot.New(memory.NewBlobStore(), sha256.New(), system.NewFixed(at), "", nil)
	p := a.Path("lineup", "../20250701/LTOB0", "0123456789abcdef")
	assert.True(t, strings.HasPrefix(p, snapshot.DefaultPrefix+"/lineup/"))
	assert.NotContains(t, p, "..")
	assert.True(t, strings.HasSuffix(p, "-0123456789ab.html"))
}

func TestArchiveFailureIsLogged(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	a := snapshot.New(failingStore{}, sha256.New(), system.NewFixed(at), "", zap.New(core))

	a.Archive(context.Background(), "ranking", "daily", []byte("<table/>"))

	require.Equal(t, 1, logs.FilterMessage("snapshot write failed").Len())
}

type failingStore struct{}

func (failingStore) PutObject(context.Context, string, string, []byte) (string, error) {
	return "", errors.New("bucket unavailable")
}
