package workers

import (
	"context"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// BadgerGC reclaims space in the value log on a timer. Badger never runs
// value log GC by itself; without this worker deleted and rewritten
// values pile up on disk forever.
type BadgerGC struct {
	log      *slog.Logger
	db       *badger.DB
	interval time.Duration
}

func NewBadgerGC(log *slog.Logger, db *badger.DB, interval time.Duration) *BadgerGC {
	return &BadgerGC{log: log, db: db, interval: interval}
}

func (w *BadgerGC) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping value log GC")
			return nil
		case <-ticker.C:
			// One call rewrites at most one file; loop until badger
			// reports nothing left worth rewriting.
			for {
				err := w.db.RunValueLogGC(0.5)
				if err != nil {
					break
				}
				w.log.Debug("Value log file rewritten")
			}
		}
	}
}
