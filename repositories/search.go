//go:generate go run go.uber.org/mock/mockgen -source=search.go -destination=../mocks/mock_search_repository.go -package=mocks
package repositories

import (
	"context"
	"encoding/binary"
	"log/slog"
	"strings"
	"sync"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"messenger/codec"
	"messenger/domain"
	"messenger/errors"
)

type ISearchRepository interface {
	Index(message domain.Message) error
	Flush() error
	Search(ctx context.Context, chatID uuid.UUID, query string, offset int) ([]domain.Message, uint64, error)
}

// SearchRepository feeds message bodies into a Bluge index and answers
// full-text queries scoped to a single chat. Badger stays the source of
// truth: hits are hydrated from the message keyspace, the index only
// stores identifiers.
type SearchRepository struct {
	db     *badger.DB
	writer *bluge.Writer
	log    *slog.Logger
	limit  *int

	mu        sync.Mutex
	pending   []*bluge.Document
	batchSize int
}

func NewSearchRepository(db *badger.DB, writer *bluge.Writer, log *slog.Logger, limit *int, batchSize int) *SearchRepository {
	return &SearchRepository{
		db:        db,
		writer:    writer,
		log:       log,
		limit:     limit,
		batchSize: batchSize,
	}
}

// Index queues the message body for indexing. The batch is written out
// once batchSize documents accumulate; call Flush to force it earlier.
func (s *SearchRepository) Index(message domain.Message) error {
	doc := bluge.NewDocument(message.ID.String()).
		AddField(bluge.NewKeywordField("chat", message.ChatID.String())).
		AddField(bluge.NewTextField("body", message.Body))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(s.pending, doc)
	if len(s.pending) >= s.batchSize {
		return s.flushLocked()
	}
	return nil
}

// Flush writes any queued documents to the index. Safe to call with an
// empty queue.
func (s *SearchRepository) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

func (s *SearchRepository) flushLocked() error {
	if len(s.pending) == 0 {
		return nil
	}
	batch := bluge.NewBatch()
	for _, doc := range s.pending {
		batch.Update(doc.ID(), doc)
	}
	if err := s.writer.Batch(batch); err != nil {
		return err
	}
	s.log.Debug("search index flushed", "documents", len(s.pending))
	s.pending = s.pending[:0]
	return nil
}

// Search returns one page of matches plus the total hit count. Matches
// come back in relevance order; offset skips that many hits.
func (s *SearchRepository) Search(ctx context.Context, chatID uuid.UUID, query string, offset int) ([]domain.Message, uint64, error) {
	if strings.TrimSpace(query) == "" {
		return nil, 0, nil
	}

	reader, err := s.writer.Reader()
	if err != nil {
		return nil, 0, err
	}
	defer reader.Close()

	q := bluge.NewBooleanQuery().
		AddMust(bluge.NewTermQuery(chatID.String()).SetField("chat")).
		AddMust(bluge.NewMatchQuery(query).SetField("body"))

	request := bluge.NewTopNSearch(lo.FromPtrOr(s.limit, 50), q).
		SetFrom(offset).
		WithStandardAggregations()

	iterator, err := reader.Search(ctx, request)
	if err != nil {
		return nil, 0, err
	}

	var ids []uuid.UUID
	match, err := iterator.Next()
	for err == nil && match != nil {
		visitErr := match.VisitStoredFields(func(field string, value []byte) bool {
			if field == "_id" {
				if id, parseErr := uuid.Parse(string(value)); parseErr == nil {
					ids = append(ids, id)
				}
			}
			return true
		})
		if visitErr != nil {
			return nil, 0, visitErr
		}
		match, err = iterator.Next()
	}
	if err != nil {
		return nil, 0, err
	}

	messages, err := s.hydrate(chatID, ids)
	if err != nil {
		return nil, 0, err
	}
	return messages, iterator.Aggregations().Count(), nil
}

// hydrate resolves index hits back to full records. A hit whose record
// is gone (indexed but never persisted, or lagging index) is skipped
// rather than failing the page.
func (s *SearchRepository) hydrate(chatID uuid.UUID, ids []uuid.UUID) ([]domain.Message, error) {
	var messages []domain.Message
	err := s.db.View(func(txn *badger.Txn) error {
		for _, id := range ids {
			item, err := txn.Get(messageIDKey(chatID, id))
			if errors.Is(err, badger.ErrKeyNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			var seq uint64
			if err := item.Value(func(val []byte) error {
				seq = binary.BigEndian.Uint64(val)
				return nil
			}); err != nil {
				return err
			}

			item, err = txn.Get(messageKey(chatID, seq))
			if err != nil {
				return err
			}
			var disk diskMessage
			if err := item.Value(func(val []byte) error {
				return codec.Unmarshal(val, &disk)
			}); err != nil {
				return err
			}
			message, err := toMessage(disk)
			if err != nil {
				return err
			}
			messages = append(messages, message)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}
