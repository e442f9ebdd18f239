package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"messenger/domain"
)

type userResponse struct {
	ID          uuid.UUID `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	CreatedAt   time.Time `json:"created_at"`
}

func newUserResponse(user domain.User) userResponse {
	return userResponse{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		CreatedAt:   user.CreatedAt,
	}
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type authResponse struct {
	User   userResponse  `json:"user"`
	Tokens tokenResponse `json:"tokens"`
}

type chatResponse struct {
	ID        uuid.UUID `json:"id"`
	Kind      string    `json:"kind"`
	Name      string    `json:"name,omitempty"`
	CreatorID uuid.UUID `json:"creator_id"`
	CreatedAt time.Time `json:"created_at"`
}

func newChatResponse(chat domain.Chat) chatResponse {
	return chatResponse{
		ID:        chat.ID,
		Kind:      string(chat.Kind),
		Name:      chat.Name,
		CreatorID: chat.CreatorID,
		CreatedAt: chat.CreatedAt,
	}
}

type participantResponse struct {
	UserID   uuid.UUID `json:"user_id"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

type messageResponse struct {
	ID        uuid.UUID `json:"id"`
	Chat      uuid.UUID `json:"chat"`
	Sender    uuid.UUID `json:"sender"`
	Seq       uint64    `json:"seq"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

func newMessageResponses(messages []domain.Message) []messageResponse {
	return lo.Map(messages, func(m domain.Message, _ int) messageResponse {
		return messageResponse{
			ID:        m.ID,
			Chat:      m.ChatID,
			Sender:    m.SenderID,
			Seq:       m.Seq,
			Text:      m.Body,
			CreatedAt: m.CreatedAt,
		}
	})
}

type historyResponse struct {
	Messages   []messageResponse `json:"messages"`
	NextCursor *uint64           `json:"next_cursor,omitempty"`
}

type searchResponse struct {
	Messages []messageResponse `json:"messages"`
	Total    uint64            `json:"total"`
	Page     int               `json:"page"`
}
