package crawler

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/kbo-game-crawler/internal/metrics"
)

const (
	commentItemCSS   = ".board-comment-list .board-comment-item"
	noCommentsCSS    = ".board-comment-list li.no-data"
	noCommentsText   = "등록된 댓글이 없습니다"
	commentKind      = "comment"
	commentAuthorCSS = ".user-name"
	commentTextCSS   = ".comment-text"
	commentDateCSS   = ".date"
)

// CommentConfig configures comment extraction.
type CommentConfig struct {
	Site        Site
	WaitTimeout time.Duration
}

// CommentCrawler reads the public comment thread under a game's detail page.
type CommentCrawler struct {
	browser  Browser
	archiver Archiver
	cfg      CommentConfig
	logger   *zap.Logger
}

// NewCommentCrawler wires a comment crawler. archiver may be nil.
func NewCommentCrawler(browser Browser, archiver Archiver, cfg CommentConfig, logger *zap.Logger) *CommentCrawler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = defaultWait
	}
	return &CommentCrawler{
		browser:  browser,
		archiver: archiver,
		cfg:      cfg,
		logger:   logger,
	}
}

// Crawl returns the game's comments. A comment widget that never renders counts as an
// empty thread; only navigation failures are returned.
func (c *CommentCrawler) Crawl(ctx context.Context, gameKey string) ([]RawCommentRecord, error) {
	logger := c.logger.With(zap.String("game_key", gameKey))
	target := c.cfg.Site.DetailURL(gameKey)
	logger.Info("comment crawl started", zap.String("url", target))

	var snapshot string
	err := c.browser.WithSession(ctx, func(page Page) error {
		if err := page.Navigate(ctx, target); err != nil {
			return TransportError("navigate game detail", err)
		}
		waitCtx, cancel := context.WithTimeout(ctx, c.cfg.WaitTimeout)
		defer cancel()
		if _, err := page.WaitAnyVisible(waitCtx, CSS(commentItemCSS), CSS(noCommentsCSS)); err != nil {
			if ctx.Err() == nil && errors.Is(err, ErrWaitTimeout) {
				logger.Info("comment section did not render, treating as empty")
				return nil
			}
			return TransportError("wait for comments", err)
		}
		var err error
		snapshot, err = page.HTML(ctx)
		if err != nil {
			return TransportError("read comment html", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if snapshot == "" {
		return []RawCommentRecord{}, nil
	}
	if c.archiver != nil {
		c.archiver.Archive(ctx, commentKind, gameKey, []byte(snapshot))
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(snapshot))
	if err != nil {
		return nil, fmt.Errorf("parse comment html: %w", err)
	}
	if strings.Contains(doc.Find(noCommentsCSS).Text(), noCommentsText) {
		logger.Info("no comments posted")
		return []RawCommentRecord{}, nil
	}
	comments := Collect(Comments(doc), commentKind, logger, observeSkip)
	metrics.ObserveRecords(commentKind, len(comments))
	logger.Info("comment crawl finished", zap.Int("comments", len(comments)))
	return comments, nil
}

// Comments lazily yields one result per comment item in doc.
func Comments(doc *goquery.Document) iter.Seq[Result[RawCommentRecord]] {
	return func(yield func(Result[RawCommentRecord]) bool) {
		doc.Find(commentItemCSS).EachWithBreak(func(i int, item *goquery.Selection) bool {
			return yield(comment(i, item))
		})
	}
}

func comment(i int, item *goquery.Selection) Result[RawCommentRecord] {
	text := strings.TrimSpace(item.Find(commentTextCSS).First().Text())
	if text == "" {
		return Skipped[RawCommentRecord](SkipStructural, fmt.Sprintf("item-%d", i), "comment without text")
	}
	rec := RawCommentRecord{Author: AnonymousAuthor, CommentText: text}
	if author := strings.TrimSpace(item.Find(commentAuthorCSS).First().Text()); author != "" {
		rec.Author = author
	}
	if date := item.Find(commentDateCSS).First(); date.Length() > 0 {
		ts := strings.TrimSpace(date.Text())
		rec.Timestamp = &ts
	}
	return OK(rec)
}
