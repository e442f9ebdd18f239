package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"messenger/domain"
	"messenger/errors"
	"messenger/observability"
	"messenger/repositories"
)

// Ingress validates incoming message bodies, assigns them a sequence and
// makes them durable before anyone sees them. Bodies are stored verbatim;
// validation only accepts or rejects, it never rewrites.
type Ingress struct {
	log       *slog.Logger
	messages  repositories.IMessageRepository
	allocator *Allocator
	fanout    *Fanout
	stats     *observability.DeliveryStats
	index     chan<- domain.Message

	maxLength   int
	attempts    int
	backoffBase time.Duration
}

func NewIngress(log *slog.Logger, messages repositories.IMessageRepository, allocator *Allocator,
	fanout *Fanout, stats *observability.DeliveryStats, index chan<- domain.Message,
	maxLength, attempts int, backoffBase time.Duration) *Ingress {
	return &Ingress{
		log:         log,
		messages:    messages,
		allocator:   allocator,
		fanout:      fanout,
		stats:       stats,
		index:       index,
		maxLength:   maxLength,
		attempts:    attempts,
		backoffBase: backoffBase,
	}
}

// Submit accepts one message for chatID. On success the message is on
// disk and handed to fanout, in sequence order. On failure nothing is
// stored, nothing is delivered and the sequence is not consumed.
func (i *Ingress) Submit(ctx context.Context, chatID, senderID uuid.UUID, body string) (domain.Message, error) {
	if strings.TrimSpace(body) == "" {
		return domain.Message{}, errors.ErrEmptyBody
	}
	if utf8.RuneCountInString(body) > i.maxLength {
		return domain.Message{}, fmt.Errorf("%w: %d runes, limit %d",
			errors.ErrBodyTooLarge, utf8.RuneCountInString(body), i.maxLength)
	}

	message := domain.Message{
		ID:        uuid.New(),
		ChatID:    chatID,
		SenderID:  senderID,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}

	_, err := i.allocator.Allocate(chatID,
		func(seq uint64) error {
			message.Seq = seq
			return i.persist(ctx, message)
		},
		func(uint64) {
			i.fanout.Message(message)
		},
	)
	if err != nil {
		return domain.Message{}, err
	}

	i.stats.IncrMessagesAccepted()
	i.feedIndex(message)
	return message, nil
}

// persist writes the message, retrying transient storage errors with
// doubling backoff. The caller holds the chat's allocation lock, so the
// retries delay that chat only.
func (i *Ingress) persist(ctx context.Context, message domain.Message) error {
	backoff := i.backoffBase
	var err error
	for attempt := 1; attempt <= i.attempts; attempt++ {
		err = i.messages.Append(message)
		if err == nil {
			return nil
		}
		if attempt == i.attempts {
			break
		}
		i.stats.IncrPersistRetries()
		i.log.Warn("message append failed, retrying",
			"chat", message.ChatID, "seq", message.Seq, "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", errors.ErrPersistence, ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return fmt.Errorf("%w: %v", errors.ErrPersistence, err)
}

// feedIndex offers the message to the search indexer without waiting.
// Search lags rather than slowing the hot path down.
func (i *Ingress) feedIndex(message domain.Message) {
	if i.index == nil {
		return
	}
	select {
	case i.index <- message:
	default:
		i.stats.IncrIndexDropped()
		i.log.Debug("index queue full, message skipped", "chat", message.ChatID, "seq", message.Seq)
	}
}
