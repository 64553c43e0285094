// Package server provides the core application server and dependency injection.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/kbo-game-crawler/internal/api"
	"github.com/JakeFAU/kbo-game-crawler/internal/browser"
	rediscache "github.com/JakeFAU/kbo-game-crawler/internal/cache/redis"
	"github.com/JakeFAU/kbo-game-crawler/internal/clock/system"
	"github.com/JakeFAU/kbo-game-crawler/internal/config"
	"github.com/JakeFAU/kbo-game-crawler/internal/crawler"
	"github.com/JakeFAU/kbo-game-crawler/internal/dispatcher"
	collyfetcher "github.com/JakeFAU/kbo-game-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/kbo-game-crawler/internal/hash/sha256"
	"github.com/JakeFAU/kbo-game-crawler/internal/id/uuid"
	"github.com/JakeFAU/kbo-game-crawler/internal/logging"
	"github.com/JakeFAU/kbo-game-crawler/internal/metrics"
	"github.com/JakeFAU/kbo-game-crawler/internal/policy/ratelimit"
	gcppublisher "github.com/JakeFAU/kbo-game-crawler/internal/publisher/pubsub"
	"github.com/JakeFAU/kbo-game-crawler/internal/reconcile"
	"github.com/JakeFAU/kbo-game-crawler/internal/service"
	"github.com/JakeFAU/kbo-game-crawler/internal/snapshot"
	gcsstorage "github.com/JakeFAU/kbo-game-crawler/internal/storage/gcs"
	localstorage "github.com/JakeFAU/kbo-game-crawler/internal/storage/local"
	memorystore "github.com/JakeFAU/kbo-game-crawler/internal/storage/memory"
	pgstore "github.com/JakeFAU/kbo-game-crawler/internal/storage/postgres"
	"github.com/JakeFAU/kbo-game-crawler/internal/store"
	"github.com/JakeFAU/kbo-game-crawler/internal/teams"
	"github.com/JakeFAU/kbo-game-crawler/internal/worker"
)

const shutdownTimeout = 10 * time.Second

// App contains the application's dependencies.
type App struct {
	cfg       *config.Config
	logger    *zap.Logger
	store     store.Store
	service   *service.Service
	apiServer *api.Server

	gcs       *gcsstorage.BlobStore
	publisher *gcppublisher.Publisher
	cache     *rediscache.RankingCache

	closeOnce sync.Once
}

// Operations exposes the crawl operations, for CLI commands that run one operation and exit.
func (a *App) Operations() api.Operations {
	return a.service
}

// Logger returns the root logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Handler returns the HTTP handler.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Run serves HTTP and blocks until ctx is canceled or a signal arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
		a.logger.Error("http server error", zap.Error(serveErr))
	}
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	a.Close()
	if serveErr != nil {
		return fmt.Errorf("serve http: %w", serveErr)
	}
	return nil
}

// Close releases every client the App opened. It is safe on a partially built App
// and may be called more than once.
func (a *App) Close() {
	a.closeOnce.Do(a.close)
}

func (a *App) close() {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Warn("redis client close failed", zap.Error(err))
		}
	}
	if a.gcs != nil {
		if err := a.gcs.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.store != nil {
		a.store.Close()
	}
	a.logger.Info("shutdown complete")
	_ = a.logger.Sync()
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)
	metrics.Init()

	app := &App{cfg: cfg, logger: logger}
	if err := app.build(ctx); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func (a *App) build(ctx context.Context) error {
	a.logger.Info("building application dependencies",
		zap.String("database", a.cfg.Database.Backend),
		zap.String("snapshots", a.cfg.Snapshots.Backend),
		zap.String("site", a.cfg.Sources.SiteURL),
	)
	table, err := teams.New(a.cfg.Teams)
	if err != nil {
		return fmt.Errorf("team table init failed: %w", err)
	}
	clock := system.New()
	ids := uuid.New()

	if err := setupStore(ctx, a, clock); err != nil {
		return err
	}
	if err := seedTeams(ctx, a, table); err != nil {
		return err
	}
	archiver, err := setupSnapshots(ctx, a, clock)
	if err != nil {
		return err
	}
	publisher, err := setupPublisher(ctx, a)
	if err != nil {
		return err
	}
	cache, err := setupCache(ctx, a)
	if err != nil {
		return err
	}

	limiter := ratelimit.New(ratelimit.Config{RPS: a.cfg.RateLimit.RPS, Burst: a.cfg.RateLimit.Burst})
	a.logger.Info("rate limiter configured",
		zap.Float64("rps", a.cfg.RateLimit.RPS),
		zap.Int("burst", a.cfg.RateLimit.Burst),
	)
	launcher := browser.New(browser.Config{
		ExecPath:          a.cfg.Browser.ExecPath,
		UserAgent:         a.cfg.Browser.UserAgent,
		WindowWidth:       a.cfg.Browser.WindowWidth,
		WindowHeight:      a.cfg.Browser.WindowHeight,
		NavigationTimeout: config.Seconds(a.cfg.Browser.NavigationTimeoutSeconds),
		WaitTimeout:       config.Seconds(a.cfg.Browser.WaitTimeoutSeconds),
	}, limiter, a.logger.Named("browser"))
	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent: a.cfg.HTTP.UserAgent,
		Timeout:   config.Seconds(a.cfg.HTTP.TimeoutSeconds),
	}, limiter, a.logger.Named("fetcher"))

	site := crawler.Site{BaseURL: a.cfg.Sources.SiteURL}
	wait := config.Seconds(a.cfg.Browser.WaitTimeoutSeconds)
	crawlLogger := a.logger.Named("crawler")

	deps := service.Deps{
		ScheduleCrawler: crawler.NewScheduleCrawler(launcher, archiver, crawler.ScheduleConfig{
			Site:        site,
			AnchorTeam:  a.cfg.Sources.AnchorTeam,
			WaitTimeout: wait,
		}, crawlLogger),
		LineupCrawler: crawler.NewLineupCrawler(launcher, table, archiver, crawler.LineupConfig{
			Site:        site,
			WaitTimeout: wait,
			TableWait:   config.Seconds(a.cfg.Browser.TableWaitSeconds),
		}, crawlLogger),
		CommentCrawler: crawler.NewCommentCrawler(launcher, archiver, crawler.CommentConfig{
			Site:        site,
			WaitTimeout: wait,
		}, crawlLogger),
		RankingCrawler: crawler.NewRankingCrawler(fetcher, archiver, a.cfg.Sources.RankingURL, crawlLogger),
		Engine:         reconcile.New(a.store.Teams(), table, clock, a.logger.Named("reconcile")),
		Teams:          a.store.Teams(),
		Games:          a.store.Games(),
		RankingStore:   a.store.Rankings(),
		LineupStore:    a.store.Lineups(),
		Topic:          a.cfg.PubSub.TopicName,
		Backfill: dispatcher.New(dispatcher.Config{
			Concurrency: a.cfg.Backfill.Concurrency,
			Worker: worker.Config{
				MaxAttempts: a.cfg.Backfill.MaxAttempts,
				Backoff:     config.Seconds(a.cfg.Backfill.BackoffSeconds),
			},
		}, a.logger.Named("backfill")),
		IDs:    ids,
		Clock:  clock,
		Logger: a.logger.Named("service"),
	}
	// Interface fields stay nil, not typed-nil, when a component is off.
	if publisher != nil {
		deps.Publisher = publisher
	}
	if cache != nil {
		deps.Cache = cache
	}
	a.service, err = service.New(deps)
	if err != nil {
		return fmt.Errorf("service init failed: %w", err)
	}

	a.apiServer = api.NewServer(a.service, a.store, ids, api.Options{
		APIKey:         a.cfg.Server.APIKey,
		RequestTimeout: config.Seconds(a.cfg.Server.RequestTimeoutSeconds),
	}, a.logger.Named("api"))
	return nil
}

func setupStore(ctx context.Context, app *App, clock crawler.Clock) error {
	switch app.cfg.Database.Backend {
	case config.BackendPostgres:
		pg, err := pgstore.Open(ctx, pgstore.Config{
			DSN:      app.cfg.Database.DSN,
			MaxConns: app.cfg.Database.MaxConns,
			MinConns: app.cfg.Database.MinConns,
		}, app.logger.Named("postgres"))
		if err != nil {
			return fmt.Errorf("postgres store init failed: %w", err)
		}
		app.store = pg
		if app.cfg.Database.AutoMigrate {
			if err := pg.Migrate(ctx); err != nil {
				return fmt.Errorf("postgres migrate failed: %w", err)
			}
			app.logger.Info("postgres schema applied")
		}
		app.logger.Info("using postgres store")
	default:
		app.logger.Warn("using in-memory store, data is lost on exit")
		app.store = memorystore.New(clock)
	}
	return nil
}

func seedTeams(ctx context.Context, app *App, table *teams.Table) error {
	entries := app.cfg.Teams
	seed := make([]crawler.Team, 0, len(entries))
	for _, e := range entries {
		seed = append(seed, crawler.Team{Name: e.Full, ShortName: e.Short, Code: table.Code(e.Short)})
	}
	seeded, err := app.store.Teams().Seed(ctx, seed)
	if err != nil {
		return fmt.Errorf("seed teams failed: %w", err)
	}
	app.logger.Info("teams seeded", zap.Int("count", len(seeded)))
	return nil
}

// setupSnapshots returns nil when archiving is off.
func setupSnapshots(ctx context.Context, app *App, clock crawler.Clock) (crawler.Archiver, error) {
	var blobs crawler.BlobStore
	switch app.cfg.Snapshots.Backend {
	case config.BackendGCS:
		gcs, err := gcsstorage.Open(ctx, gcsstorage.Config{
			Bucket:   app.cfg.Snapshots.Bucket,
			Endpoint: app.cfg.Snapshots.Endpoint,
		})
		if err != nil {
			return nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		app.gcs = gcs
		blobs = gcs
		app.logger.Info("archiving snapshots to GCS", zap.String("bucket", app.cfg.Snapshots.Bucket))
	case config.BackendLocal:
		local, err := localstorage.New(localstorage.Config{BaseDir: app.cfg.Snapshots.Local.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("local blob store init failed: %w", err)
		}
		blobs = local
		app.logger.Info("archiving snapshots locally", zap.String("path", app.cfg.Snapshots.Local.BaseDir))
	default:
		app.logger.Info("snapshot archiving disabled")
		return nil, nil
	}
	return snapshot.New(blobs, sha256.New(), clock, app.cfg.Snapshots.Prefix, app.logger.Named("snapshot")), nil
}

func setupPublisher(ctx context.Context, app *App) (*gcppublisher.Publisher, error) {
	if app.cfg.PubSub.ProjectID == "" {
		app.logger.Info("no Pub/Sub project configured, game updates are not published")
		return nil, nil
	}
	pub, err := gcppublisher.Open(ctx, gcppublisher.Config{
		ProjectID: app.cfg.PubSub.ProjectID,
		TopicName: app.cfg.PubSub.TopicName,
	})
	if err != nil {
		return nil, fmt.Errorf("pubsub client init failed: %w", err)
	}
	app.publisher = pub
	app.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", app.cfg.PubSub.ProjectID),
		zap.String("topic", app.cfg.PubSub.TopicName),
	)
	return pub, nil
}

func setupCache(ctx context.Context, app *App) (*rediscache.RankingCache, error) {
	if app.cfg.Cache.RedisURL == "" {
		app.logger.Info("ranking cache disabled")
		return nil, nil
	}
	cache, err := rediscache.Open(ctx, rediscache.Config{
		URL: app.cfg.Cache.RedisURL,
		TTL: config.Seconds(app.cfg.Cache.RankingTTLSeconds),
	})
	if err != nil {
		return nil, fmt.Errorf("redis cache init failed: %w", err)
	}
	app.cache = cache
	app.logger.Info("ranking cache enabled", zap.Int("ttl_seconds", app.cfg.Cache.RankingTTLSeconds))
	return cache, nil
}
