package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"sync"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"messenger/contract"
	"messenger/domain"
	"messenger/errors"
	"messenger/runtime"
)

const (
	localChatID  = "chat_id"
	localUserID  = "user_id"
	localLastSeq = "last_seq"
)

// wsTransport adapts one websocket connection to the engine's Transport.
// The engine's pump and the read loop's error frames share the socket,
// so every write goes through the mutex.
type wsTransport struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

var _ contract.Transport = (*wsTransport)(nil)

func (t *wsTransport) Send(event domain.Event) error {
	frame := frameForEvent(event)
	if frame == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn.WriteJSON(frame)
}

// Close tells the peer why it is being dropped, when there is a why,
// then closes the socket.
func (t *wsTransport) Close(reason error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if reason != nil {
		_ = t.conn.WriteJSON(errorFrame{Type: frameError, Reason: errorReason(reason)})
	}
	return t.conn.Close()
}

// sendError reports a per-frame failure without touching the connection.
func (t *wsTransport) sendError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	_ = t.conn.WriteJSON(errorFrame{Type: frameError, Reason: errorReason(err)})
}

// SocketHandler owns the websocket side of the API: admission before
// upgrade, then a read loop per connection.
type SocketHandler struct {
	log       *slog.Logger
	engine    *runtime.Engine
	readLimit int64
}

func NewSocketHandler(log *slog.Logger, engine *runtime.Engine, readLimit int64) *SocketHandler {
	return &SocketHandler{log: log, engine: engine, readLimit: readLimit}
}

// admitSocket authenticates and authorizes the caller while the request
// is still plain HTTP. A rejected caller gets a 401/403 response and no
// upgrade ever happens.
func (h *SocketHandler) admitSocket(c *fiber.Ctx) error {
	chatID, err := uuid.Parse(c.Params(localChatID))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid chat id")
	}

	token := bearerToken(c)
	if token == "" {
		token = c.Query("token")
	}
	userID, err := h.engine.Admit(token, chatID)
	if err != nil {
		return err
	}

	c.Locals(localChatID, chatID)
	c.Locals(localUserID, userID)
	if raw := c.Query(localLastSeq); raw != "" {
		seq, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid last_seq")
		}
		c.Locals(localLastSeq, &seq)
	}
	return c.Next()
}

// handleSocket runs after the upgrade. It attaches the connection to the
// engine, then spends its life reading frames; everything outbound goes
// through the engine's pump.
func (h *SocketHandler) handleSocket(c *websocket.Conn) {
	chatID := c.Locals(localChatID).(uuid.UUID)
	userID := c.Locals(localUserID).(uuid.UUID)
	lastSeen, _ := c.Locals(localLastSeq).(*uint64)

	c.SetReadLimit(h.readLimit)

	transport := &wsTransport{conn: c}
	conn, err := h.engine.Attach(context.Background(), chatID, userID, transport, lastSeen)
	if err != nil {
		// Attach already told the peer and closed the transport.
		h.log.Debug("attach rejected", "chat", chatID, "user", userID, "error", err)
		return
	}
	defer h.engine.Detach(conn)

	h.log.Debug("socket open", "chat", chatID, "user", userID)
	for {
		_, raw, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.log.Debug("socket read failed", "chat", chatID, "user", userID, "error", err)
			}
			return
		}
		h.dispatchFrame(conn, transport, raw)
	}
}

// dispatchFrame applies one inbound frame. Bad frames answer with an
// error frame and leave the connection open; only the transport layer
// ever decides to hang up.
func (h *SocketHandler) dispatchFrame(conn *runtime.Connection, transport *wsTransport, raw []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		transport.sendError(errors.ErrMalformedFrame)
		return
	}

	switch frame.Type {
	case frameMessage:
		if _, err := h.engine.Post(context.Background(), conn.ChatID, conn.UserID, frame.Text); err != nil {
			transport.sendError(err)
		}
	case frameRead:
		messageID, err := uuid.Parse(frame.MessageID)
		if err != nil {
			transport.sendError(errors.ErrMalformedFrame)
			return
		}
		if _, _, err := h.engine.Read(conn.ChatID, conn.UserID, messageID); err != nil {
			transport.sendError(err)
		}
	default:
		transport.sendError(errors.ErrMalformedFrame)
	}
}
