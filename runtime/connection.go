package runtime

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"messenger/contract"
	"messenger/domain"
	"messenger/errors"
)

// Connection binds one participant's transport to one chat and owns the
// outbox between fanout and the wire.
//
// Events land in the outbox through Enqueue, which never blocks: a sender
// must not wait on the slowest reader. A single pump goroutine drains the
// outbox to the transport, but only once the gate is open. The gate stays
// shut while a reconnecting client is replaying its backlog, so live
// events queue up behind the replay instead of interleaving with it.
type Connection struct {
	ChatID uuid.UUID
	UserID uuid.UUID

	log       *slog.Logger
	transport contract.Transport
	softCap   int
	hardCap   int
	grace     time.Duration
	onClose   func(conn *Connection, reason error)

	mu         sync.Mutex
	cond       *sync.Cond
	queue      []domain.Event
	gateOpen   bool
	floor      uint64
	closed     bool
	stallTimer *time.Timer
}

func NewConnection(chatID, userID uuid.UUID, transport contract.Transport, log *slog.Logger,
	softCap int, grace time.Duration, onClose func(conn *Connection, reason error)) *Connection {
	conn := &Connection{
		ChatID:    chatID,
		UserID:    userID,
		log:       log,
		transport: transport,
		softCap:   softCap,
		hardCap:   4 * softCap,
		grace:     grace,
		onClose:   onClose,
	}
	conn.cond = sync.NewCond(&conn.mu)
	return conn
}

// Enqueue appends an event to the outbox and returns immediately.
//
// Crossing the soft cap arms a grace timer: a consumer that drains back
// under the cap before it fires keeps its connection, one that stays
// behind is evicted. Crossing the hard cap evicts on the spot.
func (c *Connection) Enqueue(event domain.Event) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.queue = append(c.queue, event)
	depth := len(c.queue)
	if depth > c.hardCap {
		c.mu.Unlock()
		c.log.Warn("outbox hard cap crossed",
			"chat", c.ChatID, "user", c.UserID, "depth", depth)
		c.Close(errors.ErrSlowConsumer)
		return
	}
	if depth > c.softCap && c.gateOpen && c.stallTimer == nil {
		c.stallTimer = time.AfterFunc(c.grace, c.evictIfStalled)
	}
	c.cond.Signal()
	c.mu.Unlock()
}

// pump drains the outbox to the transport in arrival order. It is the
// only goroutine that writes live events, so per-connection ordering
// needs no further locking.
func (c *Connection) pump() {
	for {
		c.mu.Lock()
		for !c.closed && (!c.gateOpen || len(c.queue) == 0) {
			c.cond.Wait()
		}
		if c.closed {
			c.mu.Unlock()
			return
		}
		event := c.queue[0]
		c.queue = c.queue[1:]
		if len(c.queue) == 0 {
			c.queue = nil
		}
		if len(c.queue) <= c.softCap && c.stallTimer != nil {
			c.stallTimer.Stop()
			c.stallTimer = nil
		}
		floor := c.floor
		c.mu.Unlock()

		// Messages at or below the replay floor already reached the
		// client through the backlog. Read events carry no floor.
		if posted, ok := event.(domain.MessagePosted); ok && posted.Seq <= floor {
			continue
		}
		if err := c.transport.Send(event); err != nil {
			c.Close(nil)
			return
		}
	}
}

// DeliverBacklog writes replayed messages straight to the transport,
// bypassing the outbox. Only valid before OpenGate, while the pump is
// still parked.
func (c *Connection) DeliverBacklog(messages []domain.Message) error {
	for _, message := range messages {
		if err := c.transport.Send(domain.MessagePosted{Message: message}); err != nil {
			return err
		}
	}
	return nil
}

// OpenGate releases the pump. Queued messages with sequence <= floor are
// dropped on the way out; the backlog already covered them.
func (c *Connection) OpenGate(floor uint64) {
	c.mu.Lock()
	c.floor = floor
	c.gateOpen = true
	c.cond.Broadcast()
	c.mu.Unlock()
}

// Close shuts the connection down once. reason, when non-nil, is passed
// to the transport so the peer learns why it was dropped.
func (c *Connection) Close(reason error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.stallTimer != nil {
		c.stallTimer.Stop()
		c.stallTimer = nil
	}
	c.cond.Broadcast()
	c.mu.Unlock()

	_ = c.transport.Close(reason)
	if c.onClose != nil {
		c.onClose(c, reason)
	}
}

// QueueDepth reports the number of events waiting in the outbox.
func (c *Connection) QueueDepth() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

func (c *Connection) evictIfStalled() {
	c.mu.Lock()
	if c.closed || len(c.queue) <= c.softCap {
		c.stallTimer = nil
		c.mu.Unlock()
		return
	}
	depth := len(c.queue)
	c.mu.Unlock()

	c.log.Warn("slow consumer evicted",
		"chat", c.ChatID, "user", c.UserID, "depth", depth, "grace", c.grace)
	c.Close(errors.ErrSlowConsumer)
}
