// Package store groups the persistence interfaces used by the service layer.
// Implementations live in internal/storage; this package must not import database
// drivers or concrete clients.
package store
