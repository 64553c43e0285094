package crawler_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/kbo-game-crawler/internal/crawler"
)

var testSite = crawler.Site{BaseURL: "https://club.test"}

func fixture(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return string(data)
}

type archived struct {
	kind string
	key  string
	size int
}

type recordingArchiver struct {
	entries []archived
}

func (a *recordingArchiver) Archive(_ context.Context, kind, key string, html []byte) {
	a.entries = append(a.entries, archived{kind: kind, key: key, size: len(html)})
}
