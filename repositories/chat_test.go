package repositories

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"messenger/domain"
	"messenger/errors"
)

func seedChat(kind domain.ChatKind, name string, creatorID uuid.UUID) domain.Chat {
	return domain.Chat{
		ID:        uuid.New(),
		Kind:      kind,
		Name:      name,
		CreatorID: creatorID,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func TestChatRepository_CreateAndGet(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repository := NewChatRepository(db)

	creatorID := uuid.New()
	otherID := uuid.New()
	chat := seedChat(domain.KindGroup, "ops war room", creatorID)
	participants := []domain.Participant{
		{ChatID: chat.ID, UserID: creatorID, Role: domain.RoleAdmin, JoinedAt: chat.CreatedAt},
		{ChatID: chat.ID, UserID: otherID, Role: domain.RoleMember, JoinedAt: chat.CreatedAt},
	}

	req.NoError(repository.CreateChat(chat, participants))

	fetched, err := repository.GetChat(chat.ID)
	req.NoError(err)
	req.Equal(chat, fetched)

	roster, err := repository.Participants(chat.ID)
	req.NoError(err)
	req.Len(roster, 2)
	req.ElementsMatch(
		[]uuid.UUID{creatorID, otherID},
		lo.Map(roster, func(p domain.Participant, _ int) uuid.UUID { return p.UserID }),
	)
}

func TestChatRepository_UnknownChat(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repository := NewChatRepository(db)

	_, err := repository.GetChat(uuid.New())
	req.ErrorIs(err, errors.ErrChatNotFound)
}

func TestChatRepository_Membership(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repository := NewChatRepository(db)

	memberID := uuid.New()
	strangerID := uuid.New()
	chat := seedChat(domain.KindGroup, "members only", memberID)
	req.NoError(repository.CreateChat(chat, []domain.Participant{
		{ChatID: chat.ID, UserID: memberID, Role: domain.RoleAdmin, JoinedAt: chat.CreatedAt},
	}))

	ok, err := repository.IsParticipant(chat.ID, memberID)
	req.NoError(err)
	req.True(ok)

	// Absence is an answer, not an error
	ok, err = repository.IsParticipant(chat.ID, strangerID)
	req.NoError(err)
	req.False(ok)
}

func TestChatRepository_AddAndRemoveParticipant(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repository := NewChatRepository(db)

	creatorID := uuid.New()
	joinerID := uuid.New()
	chat := seedChat(domain.KindGroup, "growing crowd", creatorID)
	req.NoError(repository.CreateChat(chat, []domain.Participant{
		{ChatID: chat.ID, UserID: creatorID, Role: domain.RoleAdmin, JoinedAt: chat.CreatedAt},
	}))

	joined := domain.Participant{ChatID: chat.ID, UserID: joinerID, Role: domain.RoleMember, JoinedAt: time.Now().UTC()}
	req.NoError(repository.AddParticipant(joined))
	// Adding the same member twice must not fail
	req.NoError(repository.AddParticipant(joined))

	ok, err := repository.IsParticipant(chat.ID, joinerID)
	req.NoError(err)
	req.True(ok)

	req.NoError(repository.RemoveParticipant(chat.ID, joinerID))
	// Removing an absent member must not fail either
	req.NoError(repository.RemoveParticipant(chat.ID, joinerID))

	ok, err = repository.IsParticipant(chat.ID, joinerID)
	req.NoError(err)
	req.False(ok)
}

func TestChatRepository_ChatsForUser(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repository := NewChatRepository(db)

	userID := uuid.New()
	foreignID := uuid.New()

	mine := seedChat(domain.KindDirect, "", userID)
	req.NoError(repository.CreateChat(mine, []domain.Participant{
		{ChatID: mine.ID, UserID: userID, Role: domain.RoleMember, JoinedAt: mine.CreatedAt},
		{ChatID: mine.ID, UserID: foreignID, Role: domain.RoleMember, JoinedAt: mine.CreatedAt},
	}))

	alsoMine := seedChat(domain.KindGroup, "second home", userID)
	req.NoError(repository.CreateChat(alsoMine, []domain.Participant{
		{ChatID: alsoMine.ID, UserID: userID, Role: domain.RoleAdmin, JoinedAt: alsoMine.CreatedAt},
	}))

	notMine := seedChat(domain.KindGroup, "private club", foreignID)
	req.NoError(repository.CreateChat(notMine, []domain.Participant{
		{ChatID: notMine.ID, UserID: foreignID, Role: domain.RoleAdmin, JoinedAt: notMine.CreatedAt},
	}))

	chats, err := repository.ChatsForUser(userID)
	req.NoError(err)
	req.ElementsMatch(
		[]uuid.UUID{mine.ID, alsoMine.ID},
		lo.Map(chats, func(c domain.Chat, _ int) uuid.UUID { return c.ID }),
	)
}
