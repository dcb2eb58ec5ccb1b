package transport

import "log/slog"

func transportLogger(base *slog.Logger, attrs ...any) *slog.Logger {
	if base == nil {
		base = slog.Default()
	}
	logger := base.With("component", "transport", "transport", "tcp")
	if len(attrs) == 0 {
		return logger
	}

	return logger.With(attrs...)
}
