//go:generate go run go.uber.org/mock/mockgen -source=watermark.go -destination=../mocks/mock_watermark_repository.go -package=mocks
package repositories

import (
	"encoding/binary"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"messenger/errors"
)

type IWatermarkRepository interface {
	Watermark(chatID, userID uuid.UUID) (uint64, error)
	SetWatermark(chatID, userID uuid.UUID, seq uint64) error
}

// WatermarkRepository stores per-participant read positions. A watermark of
// n means the user has read every message with sequence <= n in that chat.
type WatermarkRepository struct {
	db *badger.DB
}

func NewWatermarkRepository(db *badger.DB) WatermarkRepository {
	return WatermarkRepository{db: db}
}

func watermarkKey(chatID, userID uuid.UUID) []byte {
	return []byte(fmt.Sprintf("watermark:%s:%s", chatID, userID))
}

// Watermark returns 0 when the user has never acknowledged anything.
func (w WatermarkRepository) Watermark(chatID, userID uuid.UUID) (uint64, error) {
	var seq uint64
	err := w.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(watermarkKey(chatID, userID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			seq = binary.BigEndian.Uint64(val)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return seq, nil
}

func (w WatermarkRepository) SetWatermark(chatID, userID uuid.UUID, seq uint64) error {
	return w.db.Update(func(txn *badger.Txn) error {
		return txn.Set(watermarkKey(chatID, userID), seqBytes(seq))
	})
}
