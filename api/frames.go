package api

import (
	"time"

	"github.com/google/uuid"

	"messenger/domain"
	"messenger/errors"
)

const (
	frameMessage = "message"
	frameRead    = "read"
	frameError   = "error"
)

// inboundFrame is the union of everything a client may send on the
// socket. Type selects which fields matter.
type inboundFrame struct {
	Type      string `json:"type"`
	Text      string `json:"text,omitempty"`
	MessageID string `json:"message_id,omitempty"`
}

type messageFrame struct {
	Type      string    `json:"type"`
	ID        uuid.UUID `json:"id"`
	Chat      uuid.UUID `json:"chat"`
	Sender    uuid.UUID `json:"sender"`
	Seq       uint64    `json:"seq"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

type readFrame struct {
	Type string    `json:"type"`
	Chat uuid.UUID `json:"chat"`
	User uuid.UUID `json:"user"`
	Seq  uint64    `json:"seq"`
}

type errorFrame struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

func newMessageFrame(message domain.Message) messageFrame {
	return messageFrame{
		Type:      frameMessage,
		ID:        message.ID,
		Chat:      message.ChatID,
		Sender:    message.SenderID,
		Seq:       message.Seq,
		Text:      message.Body,
		CreatedAt: message.CreatedAt,
	}
}

// frameForEvent maps a delivery event to its wire shape.
func frameForEvent(event domain.Event) any {
	switch e := event.(type) {
	case domain.MessagePosted:
		return newMessageFrame(e.Message)
	case domain.ReadAcknowledged:
		return readFrame{Type: frameRead, Chat: e.ChatID, User: e.UserID, Seq: e.Seq}
	default:
		return nil
	}
}

// Wire reasons carried by error frames. Clients branch on these, so they
// are part of the protocol and never change spelling.
const (
	reasonAuthentication   = "authentication_failure"
	reasonAuthorization    = "authorization_failure"
	reasonMalformed        = "malformed_frame"
	reasonPersistence      = "persistence_failure"
	reasonSlowConsumer     = "slow_consumer"
	reasonInvalidReconnect = "invalid_reconnect_state"
	reasonReplaced         = "connection_replaced"
	reasonInternal         = "internal_error"
)

func errorReason(err error) string {
	switch {
	case errors.Is(err, errors.ErrInvalidToken):
		return reasonAuthentication
	case errors.Is(err, errors.ErrNotParticipant):
		return reasonAuthorization
	case errors.Is(err, errors.ErrMalformedFrame),
		errors.Is(err, errors.ErrEmptyBody),
		errors.Is(err, errors.ErrBodyTooLarge),
		errors.Is(err, errors.ErrUnknownMessage):
		return reasonMalformed
	case errors.Is(err, errors.ErrPersistence):
		return reasonPersistence
	case errors.Is(err, errors.ErrSlowConsumer):
		return reasonSlowConsumer
	case errors.Is(err, errors.ErrStaleResume):
		return reasonInvalidReconnect
	case errors.Is(err, errors.ErrConnectionReplaced):
		return reasonReplaced
	default:
		return reasonInternal
	}
}
