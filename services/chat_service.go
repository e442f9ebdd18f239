package services

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"messenger/domain"
	"messenger/errors"
	"messenger/repositories"
)

type IChatService interface {
	CreateDirect(creatorID, otherID uuid.UUID) (domain.Chat, error)
	CreateGroup(creatorID uuid.UUID, name string, memberIDs []uuid.UUID) (domain.Chat, error)
	Get(chatID, callerID uuid.UUID) (domain.Chat, error)
	ListForUser(userID uuid.UUID) ([]domain.Chat, error)
	AddParticipant(chatID, callerID, targetID uuid.UUID) error
	RemoveParticipant(chatID, callerID, targetID uuid.UUID) error
	Participants(chatID, callerID uuid.UUID) ([]domain.Participant, error)
}

type ChatService struct {
	chats repositories.IChatRepository
	users repositories.IUserRepository
}

func NewChatService(chats repositories.IChatRepository, users repositories.IUserRepository) IChatService {
	return &ChatService{chats: chats, users: users}
}

// CreateDirect opens a two-party chat. Direct chats are unnamed and their
// roster is frozen at creation: exactly the two distinct users given.
func (s *ChatService) CreateDirect(creatorID, otherID uuid.UUID) (domain.Chat, error) {
	if creatorID == otherID {
		return domain.Chat{}, errors.ErrDirectChatSize
	}
	for _, id := range []uuid.UUID{creatorID, otherID} {
		if _, err := s.users.GetUserByID(id); err != nil {
			return domain.Chat{}, err
		}
	}

	now := time.Now().UTC()
	chat := domain.Chat{
		ID:        uuid.New(),
		Kind:      domain.KindDirect,
		CreatorID: creatorID,
		CreatedAt: now,
	}
	participants := []domain.Participant{
		{ChatID: chat.ID, UserID: creatorID, Role: domain.RoleMember, JoinedAt: now},
		{ChatID: chat.ID, UserID: otherID, Role: domain.RoleMember, JoinedAt: now},
	}
	if err := s.chats.CreateChat(chat, participants); err != nil {
		return domain.Chat{}, err
	}
	return chat, nil
}

// CreateGroup opens a named chat with the creator as admin. memberIDs may
// repeat or include the creator; the roster is deduplicated.
func (s *ChatService) CreateGroup(creatorID uuid.UUID, name string, memberIDs []uuid.UUID) (domain.Chat, error) {
	if strings.TrimSpace(name) == "" {
		return domain.Chat{}, errors.ErrChatNameRequired
	}

	members := lo.Uniq(append([]uuid.UUID{creatorID}, memberIDs...))
	for _, id := range members {
		if _, err := s.users.GetUserByID(id); err != nil {
			return domain.Chat{}, err
		}
	}

	now := time.Now().UTC()
	chat := domain.Chat{
		ID:        uuid.New(),
		Kind:      domain.KindGroup,
		Name:      name,
		CreatorID: creatorID,
		CreatedAt: now,
	}
	participants := lo.Map(members, func(id uuid.UUID, _ int) domain.Participant {
		role := domain.RoleMember
		if id == creatorID {
			role = domain.RoleAdmin
		}
		return domain.Participant{ChatID: chat.ID, UserID: id, Role: role, JoinedAt: now}
	})
	if err := s.chats.CreateChat(chat, participants); err != nil {
		return domain.Chat{}, err
	}
	return chat, nil
}

// Get returns the chat if the caller belongs to it.
func (s *ChatService) Get(chatID, callerID uuid.UUID) (domain.Chat, error) {
	chat, err := s.chats.GetChat(chatID)
	if err != nil {
		return domain.Chat{}, err
	}
	if err := s.requireMember(chatID, callerID); err != nil {
		return domain.Chat{}, err
	}
	return chat, nil
}

func (s *ChatService) ListForUser(userID uuid.UUID) ([]domain.Chat, error) {
	return s.chats.ChatsForUser(userID)
}

// AddParticipant lets any current member grow a group chat. Re-adding an
// existing member is a no-op. Direct chats never grow.
func (s *ChatService) AddParticipant(chatID, callerID, targetID uuid.UUID) error {
	chat, err := s.chats.GetChat(chatID)
	if err != nil {
		return err
	}
	if chat.Kind != domain.KindGroup {
		return errors.ErrNotGroupChat
	}
	if err := s.requireMember(chatID, callerID); err != nil {
		return err
	}
	if _, err := s.users.GetUserByID(targetID); err != nil {
		return err
	}
	return s.chats.AddParticipant(domain.Participant{
		ChatID:   chatID,
		UserID:   targetID,
		Role:     domain.RoleMember,
		JoinedAt: time.Now().UTC(),
	})
}

// RemoveParticipant handles leaving a group chat. Nobody removes anybody
// else: caller and target must match. Leaving a chat you already left is
// a no-op.
func (s *ChatService) RemoveParticipant(chatID, callerID, targetID uuid.UUID) error {
	chat, err := s.chats.GetChat(chatID)
	if err != nil {
		return err
	}
	if chat.Kind != domain.KindGroup {
		return errors.ErrNotGroupChat
	}
	if callerID != targetID {
		return errors.ErrSelfRemovalOnly
	}
	return s.chats.RemoveParticipant(chatID, targetID)
}

func (s *ChatService) Participants(chatID, callerID uuid.UUID) ([]domain.Participant, error) {
	if _, err := s.chats.GetChat(chatID); err != nil {
		return nil, err
	}
	if err := s.requireMember(chatID, callerID); err != nil {
		return nil, err
	}
	return s.chats.Participants(chatID)
}

func (s *ChatService) requireMember(chatID, callerID uuid.UUID) error {
	member, err := s.chats.IsParticipant(chatID, callerID)
	if err != nil {
		return err
	}
	if !member {
		return errors.ErrNotParticipant
	}
	return nil
}
