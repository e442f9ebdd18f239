package services

import (
	"context"

	"github.com/google/uuid"

	"messenger/domain"
	"messenger/errors"
	"messenger/repositories"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

type IHistoryService interface {
	Page(chatID, callerID uuid.UUID, before *uint64, limit int) ([]domain.Message, error)
	Search(ctx context.Context, chatID, callerID uuid.UUID, query string, page int) ([]domain.Message, uint64, error)
}

// HistoryService serves stored messages to chat members: cursor paging
// over the sequence order and full-text search over the index.
type HistoryService struct {
	messages repositories.IMessageRepository
	chats    repositories.IChatRepository
	search   repositories.ISearchRepository
	pageSize int
}

func NewHistoryService(messages repositories.IMessageRepository, chats repositories.IChatRepository,
	search repositories.ISearchRepository, pageSize int) IHistoryService {
	return &HistoryService{
		messages: messages,
		chats:    chats,
		search:   search,
		pageSize: pageSize,
	}
}

// Page returns up to limit messages older than the cursor, newest first.
// A nil cursor starts at the newest message. The oldest sequence of a
// page is the cursor of the next.
func (s *HistoryService) Page(chatID, callerID uuid.UUID, before *uint64, limit int) ([]domain.Message, error) {
	if err := s.requireMember(chatID, callerID); err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	cursor := uint64(0)
	if before != nil {
		cursor = *before
	} else {
		head, err := s.messages.Head(chatID)
		if err != nil {
			return nil, err
		}
		cursor = head + 1
	}
	return s.messages.PageBefore(chatID, cursor, limit)
}

// Search runs a full-text query over the chat's messages. page counts
// from zero; the page size is fixed server-side.
func (s *HistoryService) Search(ctx context.Context, chatID, callerID uuid.UUID, query string, page int) ([]domain.Message, uint64, error) {
	if err := s.requireMember(chatID, callerID); err != nil {
		return nil, 0, err
	}
	if page < 0 {
		page = 0
	}
	return s.search.Search(ctx, chatID, query, page*s.pageSize)
}

func (s *HistoryService) requireMember(chatID, callerID uuid.UUID) error {
	member, err := s.chats.IsParticipant(chatID, callerID)
	if err != nil {
		return err
	}
	if !member {
		return errors.ErrNotParticipant
	}
	return nil
}
