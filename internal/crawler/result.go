package crawler

import (
	"errors"
	"fmt"
	"iter"

	"go.uber.org/zap"
)

var (
	// ErrTransport marks navigation, session or HTTP failures. It is the only
	// error kind that aborts a whole crawl.
	ErrTransport = errors.New("transport failure")
	// ErrWaitTimeout is returned by Page waits that exceed their budget.
	ErrWaitTimeout = errors.New("wait timed out")
)

// TransportError wraps err so that errors.Is(err, ErrTransport) holds.
func TransportError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrTransport) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, ErrTransport, err)
}

// SkipKind classifies why a record was dropped.
type SkipKind string

// Skip kinds absorbed per record.
const (
	SkipStructural SkipKind = "structural_mismatch"
	SkipParse      SkipKind = "parse_failure"
	SkipIdentity   SkipKind = "identity_resolution"
)

// SkipReason explains a dropped record.
type SkipReason struct {
	Kind   SkipKind
	Key    string
	Detail string
}

func (s SkipReason) String() string {
	if s.Key == "" {
		return fmt.Sprintf("%s: %s", s.Kind, s.Detail)
	}
	return fmt.Sprintf("%s [%s]: %s", s.Kind, s.Key, s.Detail)
}

// Result is either a record or the reason it was skipped.
type Result[T any] struct {
	Record T
	Skip   *SkipReason
}

// OK wraps a successfully extracted record.
func OK[T any](record T) Result[T] {
	return Result[T]{Record: record}
}

// Skipped wraps a skip reason.
func Skipped[T any](kind SkipKind, key, format string, args ...any) Result[T] {
	return Result[T]{Skip: &SkipReason{Kind: kind, Key: key, Detail: fmt.Sprintf(format, args...)}}
}

// SkipObserver is notified for every skipped record.
type SkipObserver func(kind string, reason SkipKind)

// Collect drains seq, keeping records and logging skips.
func Collect[T any](seq iter.Seq[Result[T]], kind string, logger *zap.Logger, observe SkipObserver) []T {
	if logger == nil {
		logger = zap.NewNop()
	}
	var out []T
	for res := range seq {
		if res.Skip != nil {
			logger.Warn("record skipped",
				zap.String("kind", kind),
				zap.String("reason", string(res.Skip.Kind)),
				zap.String("key", res.Skip.Key),
				zap.String("detail", res.Skip.Detail),
			)
			if observe != nil {
				observe(kind, res.Skip.Kind)
			}
			continue
		}
		out = append(out, res.Record)
	}
	return out
}
