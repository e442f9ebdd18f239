package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"messenger/domain"
	"messenger/errors"
	"messenger/mocks"
)

func TestChatService_CreateDirect(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockChats := mocks.NewMockIChatRepository(ctrl)
	mockUsers := mocks.NewMockIUserRepository(ctrl)
	svc := NewChatService(mockChats, mockUsers)

	t.Run("should create a two-party chat when both users exist", func(t *testing.T) {
		req := require.New(t)
		alice := uuid.New()
		bob := uuid.New()

		mockUsers.EXPECT().GetUserByID(alice).Return(domain.User{ID: alice}, nil).Times(1)
		mockUsers.EXPECT().GetUserByID(bob).Return(domain.User{ID: bob}, nil).Times(1)

		var roster []domain.Participant
		mockChats.EXPECT().
			CreateChat(gomock.Any(), gomock.Any()).
			DoAndReturn(func(chat domain.Chat, participants []domain.Participant) error {
				require.Equal(t, domain.KindDirect, chat.Kind)
				require.Empty(t, chat.Name) // direct chats are unnamed
				require.Equal(t, alice, chat.CreatorID)
				roster = participants
				return nil
			}).
			Times(1)

		chat, err := svc.CreateDirect(alice, bob)

		req.NoError(err)
		req.Equal(domain.KindDirect, chat.Kind)
		req.Len(roster, 2)
		req.ElementsMatch([]uuid.UUID{alice, bob}, lo.Map(roster, func(p domain.Participant, _ int) uuid.UUID {
			return p.UserID
		}))
		for _, p := range roster {
			req.Equal(domain.RoleMember, p.Role)
			req.Equal(chat.ID, p.ChatID)
		}
	})

	t.Run("should refuse a chat with oneself", func(t *testing.T) {
		req := require.New(t)
		alice := uuid.New()

		// Rejected before any lookup
		mockUsers.EXPECT().GetUserByID(gomock.Any()).Times(0)

		_, err := svc.CreateDirect(alice, alice)

		req.ErrorIs(err, errors.ErrDirectChatSize)
	})

	t.Run("should refuse when the other account is unknown", func(t *testing.T) {
		req := require.New(t)
		alice := uuid.New()
		ghost := uuid.New()

		mockUsers.EXPECT().GetUserByID(alice).Return(domain.User{ID: alice}, nil).Times(1)
		mockUsers.EXPECT().GetUserByID(ghost).Return(domain.User{}, errors.ErrUserNotFound).Times(1)
		mockChats.EXPECT().CreateChat(gomock.Any(), gomock.Any()).Times(0)

		_, err := svc.CreateDirect(alice, ghost)

		req.ErrorIs(err, errors.ErrUserNotFound)
	})
}

func TestChatService_CreateGroup(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockChats := mocks.NewMockIChatRepository(ctrl)
	mockUsers := mocks.NewMockIUserRepository(ctrl)
	svc := NewChatService(mockChats, mockUsers)

	t.Run("should deduplicate the roster and make the creator admin", func(t *testing.T) {
		req := require.New(t)
		creator := uuid.New()
		bob := uuid.New()
		carol := uuid.New()

		// bob is listed twice and the creator lists themselves: one lookup each
		for _, id := range []uuid.UUID{creator, bob, carol} {
			mockUsers.EXPECT().GetUserByID(id).Return(domain.User{ID: id}, nil).Times(1)
		}

		var roster []domain.Participant
		mockChats.EXPECT().
			CreateChat(gomock.Any(), gomock.Any()).
			DoAndReturn(func(chat domain.Chat, participants []domain.Participant) error {
				require.Equal(t, domain.KindGroup, chat.Kind)
				require.Equal(t, "ops", chat.Name)
				roster = participants
				return nil
			}).
			Times(1)

		_, err := svc.CreateGroup(creator, "ops", []uuid.UUID{creator, bob, bob, carol})

		req.NoError(err)
		req.Len(roster, 3)
		for _, p := range roster {
			if p.UserID == creator {
				req.Equal(domain.RoleAdmin, p.Role)
			} else {
				req.Equal(domain.RoleMember, p.Role)
			}
		}
	})

	t.Run("should require a chat name", func(t *testing.T) {
		req := require.New(t)

		mockUsers.EXPECT().GetUserByID(gomock.Any()).Times(0)

		_, err := svc.CreateGroup(uuid.New(), "   ", nil)

		req.ErrorIs(err, errors.ErrChatNameRequired)
	})

	t.Run("should refuse when a listed member is unknown", func(t *testing.T) {
		req := require.New(t)
		creator := uuid.New()
		ghost := uuid.New()

		mockUsers.EXPECT().GetUserByID(creator).Return(domain.User{ID: creator}, nil).Times(1)
		mockUsers.EXPECT().GetUserByID(ghost).Return(domain.User{}, errors.ErrUserNotFound).Times(1)
		mockChats.EXPECT().CreateChat(gomock.Any(), gomock.Any()).Times(0)

		_, err := svc.CreateGroup(creator, "ops", []uuid.UUID{ghost})

		req.ErrorIs(err, errors.ErrUserNotFound)
	})
}

func TestChatService_AddParticipant(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockChats := mocks.NewMockIChatRepository(ctrl)
	mockUsers := mocks.NewMockIUserRepository(ctrl)
	svc := NewChatService(mockChats, mockUsers)

	t.Run("should let a member grow a group chat", func(t *testing.T) {
		req := require.New(t)
		chatID := uuid.New()
		caller := uuid.New()
		target := uuid.New()

		mockChats.EXPECT().GetChat(chatID).Return(domain.Chat{ID: chatID, Kind: domain.KindGroup}, nil).Times(1)
		mockChats.EXPECT().IsParticipant(chatID, caller).Return(true, nil).Times(1)
		mockUsers.EXPECT().GetUserByID(target).Return(domain.User{ID: target}, nil).Times(1)
		mockChats.EXPECT().
			AddParticipant(gomock.Any()).
			DoAndReturn(func(p domain.Participant) error {
				require.Equal(t, chatID, p.ChatID)
				require.Equal(t, target, p.UserID)
				require.Equal(t, domain.RoleMember, p.Role)
				return nil
			}).
			Times(1)

		req.NoError(svc.AddParticipant(chatID, caller, target))
	})

	t.Run("should refuse to grow a direct chat", func(t *testing.T) {
		req := require.New(t)
		chatID := uuid.New()

		mockChats.EXPECT().GetChat(chatID).Return(domain.Chat{ID: chatID, Kind: domain.KindDirect}, nil).Times(1)
		mockChats.EXPECT().IsParticipant(gomock.Any(), gomock.Any()).Times(0)

		err := svc.AddParticipant(chatID, uuid.New(), uuid.New())

		req.ErrorIs(err, errors.ErrNotGroupChat)
	})

	t.Run("should refuse a caller who is not a member", func(t *testing.T) {
		req := require.New(t)
		chatID := uuid.New()
		outsider := uuid.New()

		mockChats.EXPECT().GetChat(chatID).Return(domain.Chat{ID: chatID, Kind: domain.KindGroup}, nil).Times(1)
		mockChats.EXPECT().IsParticipant(chatID, outsider).Return(false, nil).Times(1)
		mockChats.EXPECT().AddParticipant(gomock.Any()).Times(0)

		err := svc.AddParticipant(chatID, outsider, uuid.New())

		req.ErrorIs(err, errors.ErrNotParticipant)
	})
}

func TestChatService_RemoveParticipant(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockChats := mocks.NewMockIChatRepository(ctrl)
	mockUsers := mocks.NewMockIUserRepository(ctrl)
	svc := NewChatService(mockChats, mockUsers)

	t.Run("should let a member leave", func(t *testing.T) {
		req := require.New(t)
		chatID := uuid.New()
		leaver := uuid.New()

		mockChats.EXPECT().GetChat(chatID).Return(domain.Chat{ID: chatID, Kind: domain.KindGroup}, nil).Times(1)
		mockChats.EXPECT().RemoveParticipant(chatID, leaver).Return(nil).Times(1)

		req.NoError(svc.RemoveParticipant(chatID, leaver, leaver))
	})

	t.Run("should refuse removing anybody else", func(t *testing.T) {
		req := require.New(t)
		chatID := uuid.New()

		mockChats.EXPECT().GetChat(chatID).Return(domain.Chat{ID: chatID, Kind: domain.KindGroup}, nil).Times(1)
		mockChats.EXPECT().RemoveParticipant(gomock.Any(), gomock.Any()).Times(0)

		err := svc.RemoveParticipant(chatID, uuid.New(), uuid.New())

		req.ErrorIs(err, errors.ErrSelfRemovalOnly)
	})

	t.Run("should refuse on a direct chat", func(t *testing.T) {
		req := require.New(t)
		chatID := uuid.New()
		leaver := uuid.New()

		mockChats.EXPECT().GetChat(chatID).Return(domain.Chat{ID: chatID, Kind: domain.KindDirect}, nil).Times(1)

		err := svc.RemoveParticipant(chatID, leaver, leaver)

		req.ErrorIs(err, errors.ErrNotGroupChat)
	})
}

func TestChatService_Get(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockChats := mocks.NewMockIChatRepository(ctrl)
	mockUsers := mocks.NewMockIUserRepository(ctrl)
	svc := NewChatService(mockChats, mockUsers)

	t.Run("should return the chat to a member", func(t *testing.T) {
		req := require.New(t)
		chatID := uuid.New()
		member := uuid.New()

		mockChats.EXPECT().GetChat(chatID).Return(domain.Chat{ID: chatID, Kind: domain.KindGroup, Name: "ops"}, nil).Times(1)
		mockChats.EXPECT().IsParticipant(chatID, member).Return(true, nil).Times(1)

		chat, err := svc.Get(chatID, member)

		req.NoError(err)
		req.Equal("ops", chat.Name)
	})

	t.Run("should hide the chat from outsiders", func(t *testing.T) {
		req := require.New(t)
		chatID := uuid.New()
		outsider := uuid.New()

		mockChats.EXPECT().GetChat(chatID).Return(domain.Chat{ID: chatID, Kind: domain.KindGroup}, nil).Times(1)
		mockChats.EXPECT().IsParticipant(chatID, outsider).Return(false, nil).Times(1)

		_, err := svc.Get(chatID, outsider)

		req.ErrorIs(err, errors.ErrNotParticipant)
	})
}
