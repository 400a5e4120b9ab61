package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// newLogger builds the JSON slog logger. With dir set, output is also
// written to dir/wheelbot_<timestamp>.log and the returned closer closes it.
func newLogger(level, dir string, now time.Time) (*slog.Logger, func(), error) {
	var w io.Writer = os.Stdout
	closer := func() {}
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("cli: create log dir: %w", err)
		}
		name := filepath.Join(dir, "wheelbot_"+now.Format("20060102_150405")+".log")
		f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("cli: open log file: %w", err)
		}
		w = io.MultiWriter(os.Stdout, f)
		closer = func() { _ = f.Close() }
	}
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: parseLevel(level)}))
	return logger, closer, nil
}
