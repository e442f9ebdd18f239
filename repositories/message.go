//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"messenger/codec"
	"messenger/domain"
	"messenger/errors"
)

type IMessageRepository interface {
	Append(message domain.Message) error
	Range(chatID uuid.UUID, afterSeq uint64, limit int) ([]domain.Message, error)
	PageBefore(chatID uuid.UUID, beforeSeq uint64, limit int) ([]domain.Message, error)
	SeqOf(chatID, messageID uuid.UUID) (uint64, error)
	GetBySeq(chatID uuid.UUID, seq uint64) (domain.Message, error)
	Head(chatID uuid.UUID) (uint64, error)
}

type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) MessageRepository {
	return MessageRepository{db: db, log: log}
}

// diskMessage is the stored shape of a message, decoupled from the domain
// struct so key or field changes stay a repository concern.
type diskMessage struct {
	ID     string `cbor:"id"`
	Chat   string `cbor:"chat"`
	Sender string `cbor:"sender"`
	Seq    uint64 `cbor:"seq"`
	Body   string `cbor:"body"`
	At     int64  `cbor:"at"` // unix nanoseconds
}

// Keyspace. The sequence number is zero padded to 20 digits so that
// lexicographical order over keys equals numeric order over sequences,
// which lets prefix scans double as ordered range reads.
func messageKey(chatID uuid.UUID, seq uint64) []byte {
	return []byte(fmt.Sprintf("msg:%s:%020d", chatID, seq))
}

func messagePrefix(chatID uuid.UUID) []byte {
	return []byte(fmt.Sprintf("msg:%s:", chatID))
}

func messageIDKey(chatID, messageID uuid.UUID) []byte {
	return []byte(fmt.Sprintf("msgid:%s:%s", chatID, messageID))
}

func seqMarkKey(chatID uuid.UUID) []byte {
	return []byte("seq:" + chatID.String())
}

func seqBytes(seq uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], seq)
	return buf[:]
}

// Append persists a message, its id index entry, and the chat's sequence
// high-water mark in a single transaction. Either all three land or none
// does, so the mark can never drift from the stored messages and restart
// recovery stays exact.
func (m MessageRepository) Append(message domain.Message) error {
	data, err := codec.Marshal(fromMessage(message))
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}

	return m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(messageKey(message.ChatID, message.Seq), data); err != nil {
			return err
		}
		if err := txn.Set(messageIDKey(message.ChatID, message.ID), seqBytes(message.Seq)); err != nil {
			return err
		}
		return txn.Set(seqMarkKey(message.ChatID), seqBytes(message.Seq))
	})
}

// Range returns up to limit messages with sequence strictly greater than
// afterSeq, ascending. Thanks to the padded keys the iterator already walks
// in sequence order.
func (m MessageRepository) Range(chatID uuid.UUID, afterSeq uint64, limit int) ([]domain.Message, error) {
	var raw [][]byte
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := messagePrefix(chatID)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(messageKey(chatID, afterSeq+1)); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(raw) == limit {
				break
			}
			err := it.Item().Value(func(value []byte) error {
				raw = append(raw, append([]byte(nil), value...))
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
	return decodeMessages(raw)
}

// PageBefore returns up to limit messages with sequence strictly lower than
// beforeSeq, descending. It backs the REST history endpoint: the caller
// feeds the oldest sequence of one page back in as the cursor of the next.
func (m MessageRepository) PageBefore(chatID uuid.UUID, beforeSeq uint64, limit int) ([]domain.Message, error) {
	if beforeSeq <= 1 {
		return nil, nil
	}

	var raw [][]byte
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := messagePrefix(chatID)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(messageKey(chatID, beforeSeq-1)); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(raw) == limit {
				break
			}
			err := it.Item().Value(func(value []byte) error {
				raw = append(raw, append([]byte(nil), value...))
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
	return decodeMessages(raw)
}

// SeqOf resolves a message id to its sequence number through the id index.
func (m MessageRepository) SeqOf(chatID, messageID uuid.UUID) (uint64, error) {
	var seq uint64
	err := m.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(messageIDKey(chatID, messageID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			seq = binary.BigEndian.Uint64(val)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, errors.ErrUnknownMessage
	}
	if err != nil {
		return 0, err
	}
	return seq, nil
}

// GetBySeq loads one message by its sequence number.
func (m MessageRepository) GetBySeq(chatID uuid.UUID, seq uint64) (domain.Message, error) {
	var disk diskMessage
	err := m.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(messageKey(chatID, seq))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return codec.Unmarshal(val, &disk)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.Message{}, errors.ErrUnknownMessage
	}
	if err != nil {
		return domain.Message{}, err
	}
	return toMessage(disk)
}

// Head returns the chat's persisted high-water mark, 0 for a chat that has
// never stored a message.
func (m MessageRepository) Head(chatID uuid.UUID) (uint64, error) {
	var head uint64
	err := m.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(seqMarkKey(chatID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			head = binary.BigEndian.Uint64(val)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return head, nil
}

func decodeMessages(raw [][]byte) ([]domain.Message, error) {
	var messages []domain.Message
	for _, b := range raw {
		var disk diskMessage
		if err := codec.Unmarshal(b, &disk); err != nil {
			return nil, err
		}
		message, err := toMessage(disk)
		if err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}
	return messages, nil
}

func fromMessage(message domain.Message) diskMessage {
	return diskMessage{
		ID:     message.ID.String(),
		Chat:   message.ChatID.String(),
		Sender: message.SenderID.String(),
		Seq:    message.Seq,
		Body:   message.Body,
		At:     message.CreatedAt.UnixNano(),
	}
}

func toMessage(disk diskMessage) (domain.Message, error) {
	id, err := uuid.Parse(disk.ID)
	if err != nil {
		return domain.Message{}, err
	}
	chatID, err := uuid.Parse(disk.Chat)
	if err != nil {
		return domain.Message{}, err
	}
	senderID, err := uuid.Parse(disk.Sender)
	if err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		ID:        id,
		ChatID:    chatID,
		SenderID:  senderID,
		Seq:       disk.Seq,
		Body:      disk.Body,
		CreatedAt: time.Unix(0, disk.At).UTC(),
	}, nil
}
