package bulwark

import (
	"context"
	"log/slog"
)

// slogAdapter lets a plain Logger back the *slog.Logger used internally.
//
//nolint:govet // Simple adapter struct - alignment optimization minimal
type slogAdapter struct {
	attrs  []slog.Attr
	logger Logger
	group  string // current group prefix from WithGroup calls
}

// Enabled implements slog.Handler.
func (a slogAdapter) Enabled(ctx context.Context, level slog.Level) bool {
	return true
}

// Handle implements slog.Handler.
//
//nolint:gocritic // slog.Handler interface requires passing Record by value
func (a slogAdapter) Handle(ctx context.Context, r slog.Record) error {
	args := make([]any, 0, (len(a.attrs)+r.NumAttrs())*2)
	for _, attr := range a.attrs {
		args = append(args, attr.Key, attr.Value.Any())
	}
	r.Attrs(func(attr slog.Attr) bool {
		args = append(args, a.key(attr.Key), attr.Value.Any())
		return true
	})

	switch {
	case r.Level >= slog.LevelError:
		a.logger.Error(r.Message, args...)
	case r.Level >= slog.LevelWarn:
		a.logger.Warn(r.Message, args...)
	case r.Level >= slog.LevelInfo:
		a.logger.Info(r.Message, args...)
	default:
		a.logger.Debug(r.Message, args...)
	}
	return nil
}

func (a slogAdapter) key(k string) string {
	if a.group == "" {
		return k
	}
	return a.group + "." + k
}

// WithAttrs implements slog.Handler. Attrs are stored with the group prefix
// current at the time they were added.
func (a slogAdapter) WithAttrs(attrs []slog.Attr) slog.Handler {
	prefixed := make([]slog.Attr, len(a.attrs), len(a.attrs)+len(attrs))
	copy(prefixed, a.attrs)
	for _, attr := range attrs {
		prefixed = append(prefixed, slog.Attr{Key: a.key(attr.Key), Value: attr.Value})
	}
	return slogAdapter{
		logger: a.logger,
		attrs:  prefixed,
		group:  a.group,
	}
}

// WithGroup implements slog.Handler.
func (a slogAdapter) WithGroup(name string) slog.Handler {
	if name == "" {
		return a
	}
	return slogAdapter{
		logger: a.logger,
		attrs:  a.attrs,
		group:  a.key(name),
	}
}
