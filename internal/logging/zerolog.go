package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

const serviceName = "vaxtrack"

type ZerologLogger struct {
	l zerolog.Logger
}

// New builds a timestamped JSON logger writing to w (stdout when nil).
func New(level string, w io.Writer) (*ZerologLogger, error) {
	if w == nil {
		w = os.Stdout
	}
	lvl := zerolog.InfoLevel
	if level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(level))
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		lvl = parsed
	}
	l := zerolog.New(w).Level(lvl).With().Timestamp().Str("service", serviceName).Logger()
	return &ZerologLogger{l: l}, nil
}

// NewZerologLogger wraps an existing zerolog logger.
func NewZerologLogger(l zerolog.Logger) *ZerologLogger {
	return &ZerologLogger{l: l}
}

// Nop returns a logger that discards everything.
func Nop() *ZerologLogger {
	return &ZerologLogger{l: zerolog.Nop()}
}

func (z *ZerologLogger) Debug(ctx context.Context, msg string, args ...any) {
	z.l.Debug().Ctx(ctx).Fields(normalize(args)).Msg(msg)
}

func (z *ZerologLogger) Info(ctx context.Context, msg string, args ...any) {
	z.l.Info().Ctx(ctx).Fields(normalize(args)).Msg(msg)
}

func (z *ZerologLogger) Warn(ctx context.Context, msg string, args ...any) {
	z.l.Warn().Ctx(ctx).Fields(normalize(args)).Msg(msg)
}

func (z *ZerologLogger) Error(ctx context.Context, msg string, args ...any) {
	z.l.Error().Ctx(ctx).Fields(normalize(args)).Msg(msg)
}

func (z *ZerologLogger) With(args ...any) Logger {
	return &ZerologLogger{l: z.l.With().Fields(normalize(args)).Logger()}
}

// normalize turns slog-style pairs into the []any form zerolog accepts,
// stringifying keys and padding a dangling key.
func normalize(args []any) []any {
	if len(args) == 0 {
		return nil
	}
	out := make([]any, 0, len(args)+1)
	for i := 0; i < len(args); i += 2 {
		key := fmt.Sprint(args[i])
		var val any = "!MISSING"
		if i+1 < len(args) {
			val = args[i+1]
		}
		if err, ok := val.(error); ok {
			val = err.Error()
		}
		out = append(out, key, val)
	}
	return out
}
