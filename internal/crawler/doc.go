// Package crawler holds the scraping half of the KBO pipeline: the shared domain
// types, the store and browser interfaces, and one crawler per source page
// (monthly schedule, box score lineups, comment thread, league standings).
//
// Crawlers take a single snapshot of the rendered page inside a browser session
// and parse it offline, so the session is released before any extraction runs.
// Extraction yields Result values; malformed rows are logged and skipped, and only
// ErrTransport is returned to callers.
package crawler
