package crawler_test

import (
	"errors"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/JakeFAU/kbo-game-crawler/internal/crawler"
)

func TestCollectKeepsRecordsAndReportsSkips(t *testing.T) {
	results := []crawler.Result[int]{
		crawler.OK(1),
		crawler.Skipped[int](crawler.SkipParse, "k2", "bad number %q", "x"),
		crawler.OK(3),
		crawler.Skipped[int](crawler.SkipStructural, "", "missing cell"),
	}
	var seen []crawler.SkipKind
	got := crawler.Collect(slices.Values(results), "test", zap.NewNop(), func(kind string, reason crawler.SkipKind) {
		assert.Equal(t, "test", kind)
		seen = append(seen, reason)
	})

	assert.Equal(t, []int{1, 3}, got)
	assert.Equal(t, []crawler.SkipKind{crawler.SkipParse, crawler.SkipStructural}, seen)
	assert.Equal(t, `parse_failure [k2]: bad number "x"`, results[1].Skip.String())
}

func TestTransportError(t *testing.T) {
	assert.NoError(t, crawler.TransportError("op", nil))

	cause := errors.New("dial tcp: refused")
	err := crawler.TransportError("navigate", cause)
	assert.ErrorIs(t, err, crawler.ErrTransport)
	assert.ErrorIs(t, err, cause)

	assert.Equal(t, err, crawler.TransportError("outer", err), "already classified errors pass through")
}
