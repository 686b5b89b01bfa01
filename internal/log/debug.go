// Package log provides the run logger shared by every t262export package.
//
// Records are held in memory until SetFile decides where they go: a file receives
// the backlog and everything after it, an empty path drops both.
package log

import (
	"bytes"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// sink is the zap write target. It buffers until a destination is chosen.
type sink struct {
	mu      sync.Mutex
	file    *os.File
	pending bytes.Buffer
	dropped bool
}

var (
	out   = &sink{}
	level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	sugar = newSugared(out)
)

func newSugared(ws zapcore.WriteSyncer) *zap.SugaredLogger {
	enc := zap.NewDevelopmentEncoderConfig()
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.EncodeCaller = nil
	return zap.New(zapcore.NewCore(zapcore.NewConsoleEncoder(enc), ws, level)).Sugar()
}

func (s *sink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.dropped:
		return len(p), nil
	case s.file != nil:
		return s.file.Write(p)
	default:
		return s.pending.Write(p)
	}
}

func (s *sink) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	return s.file.Sync()
}

// drop discards the backlog and every later record. Callers hold mu.
func (s *sink) drop() {
	s.dropped = true
	s.pending.Reset()
}

// closeFile closes the current destination. Callers hold mu.
func (s *sink) closeFile() error {
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// SetFile sends the backlog and all later records to path, created when missing.
// An empty path, or one that cannot be opened, discards them instead.
func SetFile(path string) error {
	out.mu.Lock()
	defer out.mu.Unlock()

	_ = out.closeFile()
	if path == "" {
		out.drop()
		return nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600) //nolint:gosec
	if err != nil {
		out.drop()
		return err
	}
	out.file = f
	out.dropped = false
	if out.pending.Len() > 0 {
		_, _ = out.pending.WriteTo(f)
		_ = f.Sync()
	}
	return nil
}

// SetLevel changes the minimum level written, e.g. "debug", "info", "warn".
func SetLevel(name string) error {
	lvl, err := zapcore.ParseLevel(name)
	if err != nil {
		return err
	}
	level.SetLevel(lvl)
	return nil
}

// Printf logs at info level.
func Printf(format string, args ...any) { sugar.Infof(format, args...) }

// Println logs at info level.
func Println(v ...any) { sugar.Infoln(v...) }

// Debugf logs at debug level.
func Debugf(format string, args ...any) { sugar.Debugf(format, args...) }

// Warnf logs at warn level.
func Warnf(format string, args ...any) { sugar.Warnf(format, args...) }

// With returns a child logger carrying the given key/value pairs.
func With(keysAndValues ...any) *zap.SugaredLogger {
	return sugar.With(keysAndValues...)
}

// Close flushes the logger and closes the log file.
func Close() error {
	_ = sugar.Sync()

	out.mu.Lock()
	defer out.mu.Unlock()
	return out.closeFile()
}
