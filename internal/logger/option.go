package logger

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// leveledCore overrides the level of the core it wraps.
type leveledCore struct {
	zapcore.Core

	// minimum is the lowest level written through this core.
	minimum zapcore.Level
}

// Enabled reports whether l reaches the overridden level.
func (c *leveledCore) Enabled(l zapcore.Level) bool {
	return c.minimum.Enabled(l)
}

// Check adds the core to ce when the entry reaches the overridden level.
//
//nolint:gocritic // AddCore requires ent to be passed by value.
func (c *leveledCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}

	return ce
}

// With keeps the overridden level on derived cores.
//
//nolint:ireturn,nolintlint // Returning zapcore.Core is intended for zap integration.
func (c *leveledCore) With(fields []zapcore.Field) zapcore.Core {
	return &leveledCore{
		Core:    c.Core.With(fields),
		minimum: c.minimum,
	}
}

// WithLevel replaces the level of an existing logger.
//
//nolint:ireturn,nolintlint // Returning zap.Option is intended for zap integration.
func WithLevel(lvl zapcore.Level) zap.Option {
	return zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return &leveledCore{Core: core, minimum: lvl}
	})
}

// WithMinLevel returns a context whose logger writes only entries at lvl or above.
func WithMinLevel(ctx context.Context, lvl zapcore.Level) context.Context {
	return ToContext(ctx, FromContext(ctx).WithOptions(WithLevel(lvl)))
}
