// Package runtime is the delivery core. It admits connections, assigns
// every accepted message a dense per-chat sequence, stores it, and fans
// it out to the chat's live connections. It orchestrates ordering and
// delivery without knowing anything about transports or HTTP.
package runtime

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"messenger/auth"
	"messenger/contract"
	"messenger/domain"
	"messenger/errors"
	"messenger/observability"
	"messenger/repositories"
)

// Options carries the tunables of the delivery core.
type Options struct {
	SoftCap     int           // outbox depth that starts the slow-consumer clock
	Grace       time.Duration // how long a consumer may stay over the soft cap
	PageSize    int           // backlog replay page size
	MaxLength   int           // message body limit, in runes
	Attempts    int           // storage attempts per message
	BackoffBase time.Duration // first retry delay, doubling
}

type Engine struct {
	log        *slog.Logger
	gate       *auth.Gate
	stats      *observability.DeliveryStats
	registry   *Registry
	allocator  *Allocator
	fanout     *Fanout
	ingress    *Ingress
	reads      *ReadTracker
	reconciler *Reconciler
	messages   repositories.IMessageRepository
	opts       Options
}

func NewEngine(log *slog.Logger, gate *auth.Gate, messages repositories.IMessageRepository,
	watermarks repositories.IWatermarkRepository, stats *observability.DeliveryStats,
	index chan<- domain.Message, opts Options) *Engine {
	registry := NewRegistry()
	allocator := NewAllocator(messages)
	fanout := NewFanout(registry, stats)

	return &Engine{
		log:        log,
		gate:       gate,
		stats:      stats,
		registry:   registry,
		allocator:  allocator,
		fanout:     fanout,
		ingress:    NewIngress(log, messages, allocator, fanout, stats, index, opts.MaxLength, opts.Attempts, opts.BackoffBase),
		reads:      NewReadTracker(log, watermarks, fanout, stats),
		reconciler: NewReconciler(log, messages, allocator, stats, opts.PageSize),
		messages:   messages,
		opts:       opts,
	}
}

// Admit verifies the caller's token and chat membership. It runs before
// any upgrade or attachment, so a rejected caller never holds resources.
func (e *Engine) Admit(token string, chatID uuid.UUID) (uuid.UUID, error) {
	return e.gate.Admit(token, chatID)
}

// Attach wires an admitted participant's transport into the chat.
//
// The connection is registered first, then the backlog (if the client
// resumed with a last seen sequence) is replayed, and only then does the
// gate open. Live messages arriving during the replay wait in the outbox
// and are floor-filtered on the way out, so the client observes every
// message after its resume point exactly once, in order.
//
// Attaching replaces any previous connection of the same (chat, user):
// the newer socket wins and the older one is told why it was closed.
func (e *Engine) Attach(ctx context.Context, chatID, userID uuid.UUID,
	transport contract.Transport, lastSeen *uint64) (*Connection, error) {
	conn := NewConnection(chatID, userID, transport, e.log, e.opts.SoftCap, e.opts.Grace, e.onConnClose)

	prev := e.registry.Register(conn)
	if prev != nil {
		prev.Close(errors.ErrConnectionReplaced)
	}
	e.stats.IncrConnectionsOpened()
	e.log.Debug("connection attached", "chat", chatID, "user", userID, "resuming", lastSeen != nil)

	var floor uint64
	var err error
	if lastSeen != nil {
		floor, err = e.reconciler.Resume(ctx, conn, *lastSeen)
	} else {
		// No resume point: live traffic only, starting at the head.
		floor, err = e.allocator.Head(chatID)
	}
	if err != nil {
		conn.Close(err)
		return nil, err
	}

	go conn.pump()
	conn.OpenGate(floor)
	return conn, nil
}

// Detach closes conn without a reason; the peer hung up or the handler
// is unwinding.
func (e *Engine) Detach(conn *Connection) {
	conn.Close(nil)
}

// Post accepts a message body from sender into chat. On return the
// message is durable and queued to every live connection of the chat.
func (e *Engine) Post(ctx context.Context, chatID, senderID uuid.UUID, body string) (domain.Message, error) {
	return e.ingress.Submit(ctx, chatID, senderID, body)
}

// Read acknowledges messageID for user. The watermark only moves
// forward; acknowledging old messages is a no-op. Returns the watermark
// now in force and whether this call moved it.
func (e *Engine) Read(chatID, userID, messageID uuid.UUID) (uint64, bool, error) {
	seq, err := e.messages.SeqOf(chatID, messageID)
	if err != nil {
		return 0, false, err
	}
	return e.reads.MarkRead(chatID, userID, seq)
}

// Watermark reports user's current read position in chat.
func (e *Engine) Watermark(chatID, userID uuid.UUID) (uint64, error) {
	return e.reads.Watermark(chatID, userID)
}

// Head reports the highest sequence allocated in chat.
func (e *Engine) Head(chatID uuid.UUID) (uint64, error) {
	return e.allocator.Head(chatID)
}

func (e *Engine) onConnClose(conn *Connection, reason error) {
	e.registry.Unregister(conn)
	e.stats.IncrConnectionsClosed()
	switch {
	case errors.Is(reason, errors.ErrConnectionReplaced):
		e.stats.IncrConnectionsReplaced()
	case errors.Is(reason, errors.ErrSlowConsumer):
		e.stats.IncrSlowConsumersEvicted()
	}
}
