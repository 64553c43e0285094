// Package snapshot archives the raw HTML every crawl parsed.
package snapshot

import (
	"context"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/kbo-game-crawler/internal/crawler"
)

const (
	// DefaultPrefix is used when no prefix is configured.
	DefaultPrefix = "snapshots"
	contentType   = "text/html; charset=utf-8"
	timeLayout    = "20060102T150405Z"
	hashLen       = 12
)

// Archiver writes snapshots to a BlobStore. Failures are logged and dropped.
type Archiver struct {
	store  crawler.BlobStore
	hasher crawler.Hasher
	clock  crawler.Clock
	prefix string
	logger *zap.Logger
}

// New wires an archiver.
func New(store crawler.BlobStore, hasher crawler.Hasher, clock crawler.Clock, prefix string, logger *zap.Logger) *Archiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Archiver{
		store:  store,
		hasher: hasher,
		clock:  clock,
		prefix: prefix,
		logger: logger,
	}
}

// Path builds <prefix>/<kind>/<key>/<utc time>-<digest[:12]>.html.
func (a *Archiver) Path(kind, key, digest string) string {
	if len(digest) > hashLen {
		digest = digest[:hashLen]
	}
	name := a.clock.Now().UTC().Format(timeLayout) + "-" + digest + ".html"
	return path.Join(a.prefix, segment(kind), segment(key), name)
}

// Archive stores html. It never returns an error so crawls proceed regardless.
func (a *Archiver) Archive(ctx context.Context, kind, key string, html []byte) {
	logger := a.logger.With(zap.String("kind", kind), zap.String("key", key))
	digest, err := a.hasher.Hash(html)
	if err != nil {
		logger.Warn("snapshot hash failed", zap.Error(err))
		return
	}
	uri, err := a.store.PutObject(ctx, a.Path(kind, key, digest), contentType, html)
	if err != nil {
		logger.Warn("snapshot write failed", zap.Error(err))
		return
	}
	logger.Debug("snapshot archived", zap.String("uri", uri), zap.Int("bytes", len(html)))
}

func segment(s string) string {
	s = strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(strings.TrimSpace(s))
	if s == "" {
		return "_"
	}
	return s
}

var _ crawler.Archiver = (*Archiver)(nil)
