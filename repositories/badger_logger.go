package repositories

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

// badgerLogger redirects badger's printf-style internal logger (compactions,
// value log GC, level changes) to the application's slog.Logger, so store
// internals land in the same stream as everything else.
type badgerLogger struct {
	log *slog.Logger
}

// NewBadgerLogger wraps the given logger into the badger.Logger interface.
// Pass it to badger.Options.WithLogger when opening the store.
func NewBadgerLogger(log *slog.Logger) badger.Logger {
	return badgerLogger{log: log}
}

func (b badgerLogger) Errorf(format string, args ...any) {
	b.log.Error(render(format, args...))
}

func (b badgerLogger) Warningf(format string, args ...any) {
	b.log.Warn(render(format, args...))
}

func (b badgerLogger) Infof(format string, args ...any) {
	b.log.Info(render(format, args...))
}

func (b badgerLogger) Debugf(format string, args ...any) {
	b.log.Debug(render(format, args...))
}

// Badger terminates its own lines; slog does not want the newline.
func render(format string, args ...any) string {
	return strings.TrimRight(fmt.Sprintf(format, args...), "\n")
}
