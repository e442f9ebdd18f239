package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"messenger/domain"
	"messenger/services"
)

type chatHandler struct {
	chats services.IChatService
}

func newChatHandler(chats services.IChatService) *chatHandler {
	return &chatHandler{chats: chats}
}

type createChatBody struct {
	Kind      string      `json:"kind"`
	Name      string      `json:"name,omitempty"`
	UserID    *uuid.UUID  `json:"user_id,omitempty"`    // direct: the other party
	MemberIDs []uuid.UUID `json:"member_ids,omitempty"` // group: initial roster
}

func (h *chatHandler) create(c *fiber.Ctx) error {
	callerID := c.Locals(localUserID).(uuid.UUID)

	var body createChatBody
	if err := c.BodyParser(&body); err != nil {
		return fiber.ErrBadRequest
	}

	var chat domain.Chat
	var err error
	switch domain.ChatKind(body.Kind) {
	case domain.KindDirect:
		if body.UserID == nil {
			return fiber.NewError(fiber.StatusBadRequest, "direct chats require user_id")
		}
		chat, err = h.chats.CreateDirect(callerID, *body.UserID)
	case domain.KindGroup:
		chat, err = h.chats.CreateGroup(callerID, body.Name, body.MemberIDs)
	default:
		return fiber.NewError(fiber.StatusBadRequest, "kind must be direct or group")
	}
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(newChatResponse(chat))
}

func (h *chatHandler) list(c *fiber.Ctx) error {
	callerID := c.Locals(localUserID).(uuid.UUID)
	chats, err := h.chats.ListForUser(callerID)
	if err != nil {
		return err
	}
	responses := make([]chatResponse, 0, len(chats))
	for _, chat := range chats {
		responses = append(responses, newChatResponse(chat))
	}
	return c.JSON(responses)
}

func (h *chatHandler) get(c *fiber.Ctx) error {
	chatID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid chat id")
	}
	chat, err := h.chats.Get(chatID, c.Locals(localUserID).(uuid.UUID))
	if err != nil {
		return err
	}
	return c.JSON(newChatResponse(chat))
}

func (h *chatHandler) participants(c *fiber.Ctx) error {
	chatID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid chat id")
	}
	participants, err := h.chats.Participants(chatID, c.Locals(localUserID).(uuid.UUID))
	if err != nil {
		return err
	}
	responses := make([]participantResponse, 0, len(participants))
	for _, p := range participants {
		responses = append(responses, participantResponse{
			UserID:   p.UserID,
			Role:     string(p.Role),
			JoinedAt: p.JoinedAt,
		})
	}
	return c.JSON(responses)
}

type addParticipantBody struct {
	UserID uuid.UUID `json:"user_id"`
}

func (h *chatHandler) addParticipant(c *fiber.Ctx) error {
	chatID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid chat id")
	}
	var body addParticipantBody
	if err := c.BodyParser(&body); err != nil {
		return fiber.ErrBadRequest
	}
	if err := h.chats.AddParticipant(chatID, c.Locals(localUserID).(uuid.UUID), body.UserID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *chatHandler) removeParticipant(c *fiber.Ctx) error {
	chatID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid chat id")
	}
	targetID, err := uuid.Parse(c.Params("user_id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid user id")
	}
	if err := h.chats.RemoveParticipant(chatID, c.Locals(localUserID).(uuid.UUID), targetID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
