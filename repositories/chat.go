//go:generate go run go.uber.org/mock/mockgen -source=chat.go -destination=../mocks/mock_chat_repository.go -package=mocks
package repositories

import (
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"messenger/codec"
	"messenger/domain"
	"messenger/errors"
)

type IChatRepository interface {
	CreateChat(chat domain.Chat, participants []domain.Participant) error
	GetChat(id uuid.UUID) (domain.Chat, error)
	ChatsForUser(userID uuid.UUID) ([]domain.Chat, error)
	AddParticipant(p domain.Participant) error
	RemoveParticipant(chatID, userID uuid.UUID) error
	Participants(chatID uuid.UUID) ([]domain.Participant, error)
	IsParticipant(chatID, userID uuid.UUID) (bool, error)
}

type ChatRepository struct {
	db *badger.DB
}

func NewChatRepository(db *badger.DB) ChatRepository {
	return ChatRepository{db: db}
}

type diskChat struct {
	ID        string `cbor:"id"`
	Kind      string `cbor:"kind"`
	Name      string `cbor:"name"`
	CreatorID string `cbor:"creator"`
	CreatedAt int64  `cbor:"at"`
}

type diskParticipant struct {
	ChatID   string `cbor:"chat"`
	UserID   string `cbor:"user"`
	Role     string `cbor:"role"`
	JoinedAt int64  `cbor:"at"`
}

func chatKey(id uuid.UUID) []byte {
	return []byte("chat:" + id.String())
}

// Membership is stored twice so both directions iterate on a prefix:
// member:{chat}:{user} lists a chat's roster, memberof:{user}:{chat}
// lists a user's chats.
func memberKey(chatID, userID uuid.UUID) []byte {
	return []byte(fmt.Sprintf("member:%s:%s", chatID, userID))
}

func memberPrefix(chatID uuid.UUID) []byte {
	return []byte(fmt.Sprintf("member:%s:", chatID))
}

func memberOfKey(userID, chatID uuid.UUID) []byte {
	return []byte(fmt.Sprintf("memberof:%s:%s", userID, chatID))
}

func memberOfPrefix(userID uuid.UUID) []byte {
	return []byte(fmt.Sprintf("memberof:%s:", userID))
}

// CreateChat persists the chat record and its initial roster in one
// transaction, so a chat is never observable without its participants.
func (c ChatRepository) CreateChat(chat domain.Chat, participants []domain.Participant) error {
	chatData, err := codec.Marshal(fromChat(chat))
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}

	return c.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(chatKey(chat.ID), chatData); err != nil {
			return err
		}
		for _, p := range participants {
			if err := writeParticipant(txn, p); err != nil {
				return err
			}
		}
		return nil
	})
}

func (c ChatRepository) GetChat(id uuid.UUID) (domain.Chat, error) {
	var disk diskChat
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(chatKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return codec.Unmarshal(val, &disk)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.Chat{}, errors.ErrChatNotFound
	}
	if err != nil {
		return domain.Chat{}, err
	}
	return toChat(disk)
}

func (c ChatRepository) ChatsForUser(userID uuid.UUID) ([]domain.Chat, error) {
	var raw [][]byte
	err := c.db.View(func(txn *badger.Txn) error {
		prefix := memberOfPrefix(userID)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			chatID := string(it.Item().Key()[len(prefix):])
			item, err := txn.Get([]byte("chat:" + chatID))
			if err != nil {
				return err
			}
			err = item.Value(func(val []byte) error {
				raw = append(raw, append([]byte(nil), val...))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var chats []domain.Chat
	for _, b := range raw {
		var disk diskChat
		if err := codec.Unmarshal(b, &disk); err != nil {
			return nil, err
		}
		chat, err := toChat(disk)
		if err != nil {
			return nil, err
		}
		chats = append(chats, chat)
	}
	return chats, nil
}

// AddParticipant is idempotent: re-adding an existing member keeps the
// original record untouched.
func (c ChatRepository) AddParticipant(p domain.Participant) error {
	return c.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(memberKey(p.ChatID, p.UserID)); err == nil {
			return nil
		}
		return writeParticipant(txn, p)
	})
}

func (c ChatRepository) RemoveParticipant(chatID, userID uuid.UUID) error {
	return c.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete(memberKey(chatID, userID)); err != nil {
			return err
		}
		return txn.Delete(memberOfKey(userID, chatID))
	})
}

func (c ChatRepository) Participants(chatID uuid.UUID) ([]domain.Participant, error) {
	var raw [][]byte
	err := c.db.View(func(txn *badger.Txn) error {
		prefix := memberPrefix(chatID)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				raw = append(raw, append([]byte(nil), val...))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var participants []domain.Participant
	for _, b := range raw {
		var disk diskParticipant
		if err := codec.Unmarshal(b, &disk); err != nil {
			return nil, err
		}
		p, err := toParticipant(disk)
		if err != nil {
			return nil, err
		}
		participants = append(participants, p)
	}
	return participants, nil
}

func (c ChatRepository) IsParticipant(chatID, userID uuid.UUID) (bool, error) {
	err := c.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(memberKey(chatID, userID))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func writeParticipant(txn *badger.Txn, p domain.Participant) error {
	data, err := codec.Marshal(fromParticipant(p))
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}
	if err := txn.Set(memberKey(p.ChatID, p.UserID), data); err != nil {
		return err
	}
	return txn.Set(memberOfKey(p.UserID, p.ChatID), []byte{})
}

func fromChat(chat domain.Chat) diskChat {
	return diskChat{
		ID:        chat.ID.String(),
		Kind:      string(chat.Kind),
		Name:      chat.Name,
		CreatorID: chat.CreatorID.String(),
		CreatedAt: chat.CreatedAt.Unix(),
	}
}

func toChat(disk diskChat) (domain.Chat, error) {
	id, err := uuid.Parse(disk.ID)
	if err != nil {
		return domain.Chat{}, err
	}
	creator, err := uuid.Parse(disk.CreatorID)
	if err != nil {
		return domain.Chat{}, err
	}
	return domain.Chat{
		ID:        id,
		Kind:      domain.ChatKind(disk.Kind),
		Name:      disk.Name,
		CreatorID: creator,
		CreatedAt: time.Unix(disk.CreatedAt, 0).UTC(),
	}, nil
}

func fromParticipant(p domain.Participant) diskParticipant {
	return diskParticipant{
		ChatID:   p.ChatID.String(),
		UserID:   p.UserID.String(),
		Role:     string(p.Role),
		JoinedAt: p.JoinedAt.Unix(),
	}
}

func toParticipant(disk diskParticipant) (domain.Participant, error) {
	chatID, err := uuid.Parse(disk.ChatID)
	if err != nil {
		return domain.Participant{}, err
	}
	userID, err := uuid.Parse(disk.UserID)
	if err != nil {
		return domain.Participant{}, err
	}
	return domain.Participant{
		ChatID:   chatID,
		UserID:   userID,
		Role:     domain.Role(disk.Role),
		JoinedAt: time.Unix(disk.JoinedAt, 0).UTC(),
	}, nil
}
