package runtime

import (
	"github.com/google/uuid"

	"messenger/domain"
	"messenger/observability"
)

// Fanout pushes events into the outboxes of a chat's attached
// connections.
//
// It runs synchronously on the caller's goroutine: message fanout is
// invoked inside the chat's allocation section, which is what makes
// outbox order equal sequence order for every receiver. Enqueue never
// blocks, so holding the section is cheap.
//
// Fanout is delivery to live connections only. Durability comes from the
// store; a participant with no connection here catches up on reconnect.
type Fanout struct {
	registry *Registry
	stats    *observability.DeliveryStats
}

func NewFanout(registry *Registry, stats *observability.DeliveryStats) *Fanout {
	return &Fanout{registry: registry, stats: stats}
}

// Message delivers a stored message to every connection of its chat,
// the sender's own connection included.
func (f *Fanout) Message(message domain.Message) {
	conns := f.registry.Snapshot(message.ChatID)
	for _, conn := range conns {
		conn.Enqueue(domain.MessagePosted{Message: message})
	}
	f.stats.AddMessagesFannedOut(uint64(len(conns)))
}

// Read announces an advanced read watermark to the chat, skipping the
// reader: they know what they read.
func (f *Fanout) Read(chatID, userID uuid.UUID, seq uint64) {
	for _, conn := range f.registry.Snapshot(chatID) {
		if conn.UserID == userID {
			continue
		}
		conn.Enqueue(domain.ReadAcknowledged{ChatID: chatID, UserID: userID, Seq: seq})
	}
}
