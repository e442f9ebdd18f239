//go:generate go run go.uber.org/mock/mockgen -source=gate.go -destination=../mocks/mock_gate.go -package=mocks
package auth

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"messenger/errors"
)

// Membership answers whether a user currently belongs to a chat.
type Membership interface {
	IsParticipant(chatID, userID uuid.UUID) (bool, error)
}

// Gate admits connections to a chat. It resolves the bearer credential to
// a user identity, then confirms active membership. Both checks run before
// any registry mutation: a rejected connection leaves no trace.
type Gate struct {
	log     *slog.Logger
	tokens  *TokenIssuer
	members Membership
}

func NewGate(log *slog.Logger, tokens *TokenIssuer, members Membership) *Gate {
	return &Gate{log: log, tokens: tokens, members: members}
}

// Admit returns the user behind the token if that user belongs to the chat.
// A bad credential and a missing membership fail distinctly, so callers can
// answer 401 and 403 apart.
func (g *Gate) Admit(token string, chatID uuid.UUID) (uuid.UUID, error) {
	claims, err := g.tokens.VerifyAccess(token)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", errors.ErrInvalidToken, err)
	}

	userID, err := claims.Subject()
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", errors.ErrInvalidToken, err)
	}

	ok, err := g.members.IsParticipant(chatID, userID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("membership lookup failed: %w", err)
	}
	if !ok {
		g.log.Debug("Admission refused", "chat", chatID, "user", userID)
		return uuid.Nil, errors.ErrNotParticipant
	}

	return userID, nil
}
