// Package logging is the project's structured logger: a small ctx-first
// interface and the zerolog backend behind it.
package logging

import "context"

// Logger takes a message followed by alternating keys and values:
//
//	log.Info(ctx, "sync finished", "user", userID, "failed", n)
//
// A trailing key without a value is logged with the value "!MISSING".
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// With derives a logger that adds args to every entry.
	With(args ...any) Logger
}
