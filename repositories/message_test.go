package repositories

import (
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"messenger/domain"
	"messenger/errors"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func seedMessage(chatID uuid.UUID, seq uint64, body string) domain.Message {
	return domain.Message{
		ID:        uuid.New(),
		ChatID:    chatID,
		SenderID:  uuid.New(),
		Seq:       seq,
		Body:      body,
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
}

func TestMessageRepository_AppendAndRange(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repository := NewMessageRepository(db, slog.Default())
	chatID := uuid.New()

	var stored []domain.Message
	for seq := uint64(1); seq <= 5; seq++ {
		message := seedMessage(chatID, seq, fmt.Sprintf("message %d", seq))
		req.NoError(repository.Append(message))
		stored = append(stored, message)
	}

	// Full replay from zero comes back complete and ascending
	fetched, err := repository.Range(chatID, 0, 0)
	req.NoError(err)
	req.Len(fetched, 5)
	req.Equal(stored, fetched)

	// A floor in the middle only returns what sits strictly above it
	fetched, err = repository.Range(chatID, 3, 0)
	req.NoError(err)
	req.Equal([]uint64{4, 5}, lo.Map(fetched, func(m domain.Message, _ int) uint64 { return m.Seq }))

	// Limit caps the page
	fetched, err = repository.Range(chatID, 0, 2)
	req.NoError(err)
	req.Equal([]uint64{1, 2}, lo.Map(fetched, func(m domain.Message, _ int) uint64 { return m.Seq }))
}

func TestMessageRepository_PageBefore(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repository := NewMessageRepository(db, slog.Default())
	chatID := uuid.New()

	for seq := uint64(1); seq <= 7; seq++ {
		req.NoError(repository.Append(seedMessage(chatID, seq, fmt.Sprintf("message %d", seq))))
	}

	// Newest page first, descending
	page, err := repository.PageBefore(chatID, 8, 3)
	req.NoError(err)
	req.Equal([]uint64{7, 6, 5}, lo.Map(page, func(m domain.Message, _ int) uint64 { return m.Seq }))

	// The oldest sequence of one page is the cursor of the next
	page, err = repository.PageBefore(chatID, 5, 3)
	req.NoError(err)
	req.Equal([]uint64{4, 3, 2}, lo.Map(page, func(m domain.Message, _ int) uint64 { return m.Seq }))

	page, err = repository.PageBefore(chatID, 2, 3)
	req.NoError(err)
	req.Equal([]uint64{1}, lo.Map(page, func(m domain.Message, _ int) uint64 { return m.Seq }))

	// Walking past the beginning yields an empty page, not an error
	page, err = repository.PageBefore(chatID, 1, 3)
	req.NoError(err)
	req.Empty(page)
}

func TestMessageRepository_SeqOfAndGetBySeq(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repository := NewMessageRepository(db, slog.Default())
	chatID := uuid.New()

	message := seedMessage(chatID, 3, "have you seen this?")
	req.NoError(repository.Append(message))

	seq, err := repository.SeqOf(chatID, message.ID)
	req.NoError(err)
	req.Equal(uint64(3), seq)

	fetched, err := repository.GetBySeq(chatID, 3)
	req.NoError(err)
	req.Equal(message, fetched)

	// Unknown ids map to the sentinel, not a raw badger error
	_, err = repository.SeqOf(chatID, uuid.New())
	req.ErrorIs(err, errors.ErrUnknownMessage)
	_, err = repository.GetBySeq(chatID, 99)
	req.ErrorIs(err, errors.ErrUnknownMessage)
}

func TestMessageRepository_ChatsAreIsolated(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repository := NewMessageRepository(db, slog.Default())
	chatA := uuid.New()
	chatB := uuid.New()

	req.NoError(repository.Append(seedMessage(chatA, 1, "in A")))
	req.NoError(repository.Append(seedMessage(chatB, 1, "in B")))
	req.NoError(repository.Append(seedMessage(chatB, 2, "in B again")))

	fetched, err := repository.Range(chatA, 0, 0)
	req.NoError(err)
	req.Len(fetched, 1)
	req.Equal("in A", fetched[0].Body)

	headA, err := repository.Head(chatA)
	req.NoError(err)
	req.Equal(uint64(1), headA)
	headB, err := repository.Head(chatB)
	req.NoError(err)
	req.Equal(uint64(2), headB)
}

func TestMessageRepository_HeadSurvivesReopen(t *testing.T) {
	req := require.New(t)
	dir := t.TempDir()
	chatID := uuid.New()

	db, err := badger.Open(badger.DefaultOptions(dir).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	repository := NewMessageRepository(db, slog.Default())
	for seq := uint64(1); seq <= 3; seq++ {
		req.NoError(repository.Append(seedMessage(chatID, seq, "durable")))
	}
	req.NoError(db.Close())

	// After a restart the mark must pick up exactly where it stopped
	db, err = badger.Open(badger.DefaultOptions(dir).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	defer db.Close()
	repository = NewMessageRepository(db, slog.Default())

	head, err := repository.Head(chatID)
	req.NoError(err)
	req.Equal(uint64(3), head)

	messages, err := repository.Range(chatID, 0, 0)
	req.NoError(err)
	req.Len(messages, 3)
}

func TestMessageRepository_HeadOfEmptyChatIsZero(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repository := NewMessageRepository(db, slog.Default())

	head, err := repository.Head(uuid.New())
	req.NoError(err)
	req.Zero(head)
}
