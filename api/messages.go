package api

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"messenger/services"
)

type messageHandler struct {
	historyService services.IHistoryService
}

func newMessageHandler(history services.IHistoryService) *messageHandler {
	return &messageHandler{historyService: history}
}

// history serves one page of a chat's log, newest first. before_seq is
// the cursor; the response carries the cursor of the next page while
// older messages remain.
func (h *messageHandler) history(c *fiber.Ctx) error {
	chatID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid chat id")
	}

	var before *uint64
	if raw := c.Query("before_seq"); raw != "" {
		seq, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid before_seq")
		}
		before = &seq
	}
	limit := c.QueryInt("limit", 0)

	messages, err := h.historyService.Page(chatID, c.Locals(localUserID).(uuid.UUID), before, limit)
	if err != nil {
		return err
	}

	response := historyResponse{Messages: newMessageResponses(messages)}
	if len(messages) > 0 {
		oldest := messages[len(messages)-1].Seq
		if oldest > 1 {
			response.NextCursor = &oldest
		}
	}
	return c.JSON(response)
}

func (h *messageHandler) search(c *fiber.Ctx) error {
	chatID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid chat id")
	}
	query := c.Query("q")
	if query == "" {
		return fiber.NewError(fiber.StatusBadRequest, "q is required")
	}
	page := c.QueryInt("page", 0)

	messages, total, err := h.historyService.Search(c.Context(), chatID, c.Locals(localUserID).(uuid.UUID), query, page)
	if err != nil {
		return err
	}
	return c.JSON(searchResponse{
		Messages: newMessageResponses(messages),
		Total:    total,
		Page:     page,
	})
}
