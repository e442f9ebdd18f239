package domain

import "github.com/google/uuid"

// Event is anything fanned out to live connections of a chat.
type Event interface {
	Chat() uuid.UUID
	Sequence() uint64
}

// MessagePosted carries a freshly persisted message to live connections.
type MessagePosted struct {
	Message
}

func (e MessagePosted) Chat() uuid.UUID  { return e.ChatID }
func (e MessagePosted) Sequence() uint64 { return e.Seq }

// ReadAcknowledged tells the other participants that UserID has read the
// chat up to Seq.
type ReadAcknowledged struct {
	ChatID uuid.UUID
	UserID uuid.UUID
	Seq    uint64
}

func (e ReadAcknowledged) Chat() uuid.UUID  { return e.ChatID }
func (e ReadAcknowledged) Sequence() uint64 { return e.Seq }
