// Package api hosts the HTTP server, middleware, and REST handlers that trigger
// crawls. Notable routes:
//   - GET /healthz and /readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/schedule/{year}/{month}/crawl to reconcile a month of games.
//   - POST /v1/schedule/{year}/{month}/lineups/crawl to backfill a month's lineups.
//   - POST /v1/games/{gameKey}/lineups/crawl and /comments/crawl for one game,
//     GET /v1/games/{gameKey}/lineups for what is stored.
//   - GET and POST /v1/rankings/{season}/... for standings.
package api
