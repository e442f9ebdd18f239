package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"messenger/services"
)

type userHandler struct {
	accounts services.IAccountService
}

func newUserHandler(accounts services.IAccountService) *userHandler {
	return &userHandler{accounts: accounts}
}

type registerBody struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
}

func (h *userHandler) register(c *fiber.Ctx) error {
	var body registerBody
	if err := c.BodyParser(&body); err != nil {
		return fiber.ErrBadRequest
	}
	user, pair, err := h.accounts.Register(body.Email, body.DisplayName, body.Password)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(authResponse{
		User:   newUserResponse(user),
		Tokens: tokenResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken},
	})
}

type loginBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *userHandler) login(c *fiber.Ctx) error {
	var body loginBody
	if err := c.BodyParser(&body); err != nil {
		return fiber.ErrBadRequest
	}
	user, pair, err := h.accounts.Login(body.Email, body.Password)
	if err != nil {
		return err
	}
	return c.JSON(authResponse{
		User:   newUserResponse(user),
		Tokens: tokenResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken},
	})
}

type refreshBody struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *userHandler) refresh(c *fiber.Ctx) error {
	var body refreshBody
	if err := c.BodyParser(&body); err != nil {
		return fiber.ErrBadRequest
	}
	pair, err := h.accounts.Refresh(body.RefreshToken)
	if err != nil {
		return err
	}
	return c.JSON(tokenResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
}

func (h *userHandler) list(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 100)
	offset := c.QueryInt("offset", 0)
	users, err := h.accounts.List(limit, offset)
	if err != nil {
		return err
	}
	responses := make([]userResponse, 0, len(users))
	for _, user := range users {
		responses = append(responses, newUserResponse(user))
	}
	return c.JSON(responses)
}

func (h *userHandler) get(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid user id")
	}
	user, err := h.accounts.Get(id)
	if err != nil {
		return err
	}
	return c.JSON(newUserResponse(user))
}

type updateBody struct {
	DisplayName string `json:"display_name"`
}

func (h *userHandler) update(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid user id")
	}
	if id != c.Locals(localUserID).(uuid.UUID) {
		return fiber.NewError(fiber.StatusForbidden, "accounts can only be modified by their owner")
	}
	var body updateBody
	if err := c.BodyParser(&body); err != nil {
		return fiber.ErrBadRequest
	}
	user, err := h.accounts.UpdateDisplayName(id, body.DisplayName)
	if err != nil {
		return err
	}
	return c.JSON(newUserResponse(user))
}

func (h *userHandler) remove(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid user id")
	}
	if id != c.Locals(localUserID).(uuid.UUID) {
		return fiber.NewError(fiber.StatusForbidden, "accounts can only be deleted by their owner")
	}
	if err := h.accounts.Delete(id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
