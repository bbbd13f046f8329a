package hooks

import (
	"context"
	"log/slog"
	"time"

	"github.com/uptrace/bun"
)

// LoggerHook implements statement logging
type LoggerHook struct {
	logger        *slog.Logger
	logAll        bool
	slowThreshold time.Duration
}

var (
	_ Hook          = (*LoggerHook)(nil)
	_ bun.QueryHook = (*LoggerHook)(nil)
)

// NewLoggerHook creates a new logger hook
func NewLoggerHook(logger *slog.Logger, logAll bool, slowThreshold time.Duration) *LoggerHook {
	return &LoggerHook{
		logger:        logger,
		logAll:        logAll,
		slowThreshold: slowThreshold,
	}
}

// BeforeStatement is called before a dbutils statement runs
func (h *LoggerHook) BeforeStatement(ctx context.Context, event *Event) context.Context {
	return ctx
}

// AfterStatement is called after a dbutils statement ran
func (h *LoggerHook) AfterStatement(ctx context.Context, event *Event) {
	h.log(ctx, event)
}

// BeforeQuery is called before a bun query is executed
func (h *LoggerHook) BeforeQuery(ctx context.Context, event *bun.QueryEvent) context.Context {
	return ctx
}

// AfterQuery is called after a bun query is executed
func (h *LoggerHook) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	h.log(ctx, fromBun(event))
}

func (h *LoggerHook) log(ctx context.Context, event *Event) {
	duration := time.Since(event.StartTime)

	// Skip if not logging all and not slow
	if !h.logAll && event.Err == nil && (h.slowThreshold == 0 || duration < h.slowThreshold) {
		return
	}

	query := truncate(event.Query)

	attrs := []slog.Attr{
		slog.Duration("duration", duration),
		slog.String("operation", OperationType(event.Query)),
	}
	if event.Operation != "" {
		attrs = append(attrs, slog.String("op", event.Operation))
	}
	if event.Rows >= 0 {
		attrs = append(attrs, slog.Int64("rows", event.Rows))
	}
	if event.Flushes > 0 {
		attrs = append(attrs, slog.Int("flushes", event.Flushes))
	}

	if h.logAll {
		attrs = append(attrs, slog.String("query", query))
	}

	if event.Err != nil && event.Partial {
		attrs = append(attrs, slog.String("error", event.Err.Error()))
		h.logger.LogAttrs(ctx, slog.LevelWarn, "database statement completed with errors", attrs...)
	} else if event.Err != nil {
		attrs = append(attrs, slog.String("error", event.Err.Error()))
		h.logger.LogAttrs(ctx, slog.LevelError, "database statement failed", attrs...)
	} else if h.slowThreshold > 0 && duration >= h.slowThreshold {
		if !h.logAll {
			attrs = append(attrs, slog.String("query", query))
		}
		h.logger.LogAttrs(ctx, slog.LevelWarn, "slow database statement", attrs...)
	} else if h.logAll {
		h.logger.LogAttrs(ctx, slog.LevelDebug, "database statement", attrs...)
	}
}
