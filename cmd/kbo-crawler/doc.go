// Package main hosts the kbo-crawler entrypoint.
//
// Architecture overview:
//   - Crawlers: the schedule, lineup and comment crawlers drive headless Chrome through
//     chromedp because the club site renders with JavaScript. The ranking crawler is a plain
//     colly GET. Every crawler returns raw records and logs the rows it had to skip.
//   - Reconciliation: internal/reconcile resolves team names, derives statuses and decides
//     insert, update or unchanged per game. Standings can also be recomputed from results.
//   - Persistence: Postgres through pgx, or an in-memory store for local runs. Teams are
//     seeded from config at startup.
//   - Fanout: inserted and updated games are published to Pub/Sub, rankings are cached in
//     Redis, and crawled HTML is archived to local disk or GCS when configured.
//
// Operational notes:
//   - Only transport failures (browser launch, navigation, page load) fail an operation.
//     Malformed rows are skipped and counted in kbo_crawler_skipped_records_total.
//   - Every request to a host waits on a per-host token bucket (rate_limit.rps).
//   - The HTTP server drains on SIGTERM.
//
// Quick checklist:
//   - Configure env vars: KBO_DATABASE_BACKEND=postgres and KBO_DATABASE_DSN, KBO_CACHE_REDIS_URL,
//     KBO_PUBSUB_PROJECT_ID, KBO_SNAPSHOTS_BACKEND=gcs and KBO_SNAPSHOTS_BUCKET.
//   - Run locally: go run ./cmd/kbo-crawler crawl schedule --year 2025 --month 7
//   - Serve: go run ./cmd/kbo-crawler serve --config config.yaml
package main
