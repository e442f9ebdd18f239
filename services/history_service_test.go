package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"messenger/domain"
	"messenger/errors"
	"messenger/mocks"
)

func TestHistoryService_Page(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockMessages := mocks.NewMockIMessageRepository(ctrl)
	mockChats := mocks.NewMockIChatRepository(ctrl)
	mockSearch := mocks.NewMockISearchRepository(ctrl)
	svc := NewHistoryService(mockMessages, mockChats, mockSearch, 25)

	t.Run("should page from the newest message when no cursor is given", func(t *testing.T) {
		req := require.New(t)
		chatID := uuid.New()
		caller := uuid.New()
		page := []domain.Message{{ChatID: chatID, Seq: 10}, {ChatID: chatID, Seq: 9}}

		mockChats.EXPECT().IsParticipant(chatID, caller).Return(true, nil).Times(1)
		mockMessages.EXPECT().Head(chatID).Return(uint64(10), nil).Times(1)
		// Cursor is exclusive, so head+1 includes the newest message
		mockMessages.EXPECT().PageBefore(chatID, uint64(11), defaultHistoryLimit).Return(page, nil).Times(1)

		got, err := svc.Page(chatID, caller, nil, 0)

		req.NoError(err)
		req.Equal(page, got)
	})

	t.Run("should resume from an explicit cursor", func(t *testing.T) {
		req := require.New(t)
		chatID := uuid.New()
		caller := uuid.New()

		mockChats.EXPECT().IsParticipant(chatID, caller).Return(true, nil).Times(1)
		mockMessages.EXPECT().PageBefore(chatID, uint64(5), 2).Return([]domain.Message{{Seq: 4}, {Seq: 3}}, nil).Times(1)

		got, err := svc.Page(chatID, caller, lo.ToPtr(uint64(5)), 2)

		req.NoError(err)
		req.Len(got, 2)
	})

	t.Run("should clamp oversized limits", func(t *testing.T) {
		req := require.New(t)
		chatID := uuid.New()
		caller := uuid.New()

		mockChats.EXPECT().IsParticipant(chatID, caller).Return(true, nil).Times(1)
		mockMessages.EXPECT().PageBefore(chatID, uint64(9), maxHistoryLimit).Return(nil, nil).Times(1)

		_, err := svc.Page(chatID, caller, lo.ToPtr(uint64(9)), 100000)

		req.NoError(err)
	})

	t.Run("should refuse an outsider before touching storage", func(t *testing.T) {
		req := require.New(t)
		chatID := uuid.New()
		outsider := uuid.New()

		mockChats.EXPECT().IsParticipant(chatID, outsider).Return(false, nil).Times(1)
		mockMessages.EXPECT().Head(gomock.Any()).Times(0)
		mockMessages.EXPECT().PageBefore(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		_, err := svc.Page(chatID, outsider, nil, 0)

		req.ErrorIs(err, errors.ErrNotParticipant)
	})
}

func TestHistoryService_Search(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockMessages := mocks.NewMockIMessageRepository(ctrl)
	mockChats := mocks.NewMockIChatRepository(ctrl)
	mockSearch := mocks.NewMockISearchRepository(ctrl)
	svc := NewHistoryService(mockMessages, mockChats, mockSearch, 25)

	t.Run("should translate the page number into an index offset", func(t *testing.T) {
		req := require.New(t)
		ctx := context.Background()
		chatID := uuid.New()
		caller := uuid.New()
		hits := []domain.Message{{ChatID: chatID, Seq: 42, Body: "deploy at noon"}}

		mockChats.EXPECT().IsParticipant(chatID, caller).Return(true, nil).Times(1)
		mockSearch.EXPECT().Search(ctx, chatID, "deploy", 50).Return(hits, uint64(51), nil).Times(1)

		got, total, err := svc.Search(ctx, chatID, caller, "deploy", 2)

		req.NoError(err)
		req.Equal(hits, got)
		req.Equal(uint64(51), total)
	})

	t.Run("should treat a negative page as the first", func(t *testing.T) {
		req := require.New(t)
		ctx := context.Background()
		chatID := uuid.New()
		caller := uuid.New()

		mockChats.EXPECT().IsParticipant(chatID, caller).Return(true, nil).Times(1)
		mockSearch.EXPECT().Search(ctx, chatID, "deploy", 0).Return(nil, uint64(0), nil).Times(1)

		_, _, err := svc.Search(ctx, chatID, caller, "deploy", -3)

		req.NoError(err)
	})

	t.Run("should refuse an outsider", func(t *testing.T) {
		req := require.New(t)
		chatID := uuid.New()
		outsider := uuid.New()

		mockChats.EXPECT().IsParticipant(chatID, outsider).Return(false, nil).Times(1)
		mockSearch.EXPECT().Search(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		_, _, err := svc.Search(context.Background(), chatID, outsider, "deploy", 0)

		req.ErrorIs(err, errors.ErrNotParticipant)
	})
}
