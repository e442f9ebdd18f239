package workers

import (
	"context"
	"log/slog"
	"time"

	"messenger/domain"
	"messenger/repositories"
)

// SearchIndexer drains accepted messages into the full-text index.
//
// Indexing runs behind the hot path on purpose: ingress offers messages
// to the queue without waiting, and a full queue loses index entries,
// never messages. Search results may lag a flush interval behind the
// live stream.
type SearchIndexer struct {
	log           *slog.Logger
	search        repositories.ISearchRepository
	queue         <-chan domain.Message
	flushInterval time.Duration
}

func NewSearchIndexer(log *slog.Logger, search repositories.ISearchRepository,
	queue <-chan domain.Message, flushInterval time.Duration) *SearchIndexer {
	return &SearchIndexer{
		log:           log,
		search:        search,
		queue:         queue,
		flushInterval: flushInterval,
	}
}

func (w *SearchIndexer) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, flushing index before stop")
			if err := w.search.Flush(); err != nil {
				w.log.Warn("Final index flush failed", "error", err)
			}
			return nil
		case message := <-w.queue:
			if err := w.search.Index(message); err != nil {
				w.log.Warn("Indexing failed", "chat", message.ChatID, "seq", message.Seq, "error", err)
			}
		case <-ticker.C:
			if err := w.search.Flush(); err != nil {
				w.log.Warn("Index flush failed", "error", err)
			}
		}
	}
}
