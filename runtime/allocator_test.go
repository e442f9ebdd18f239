package runtime

import (
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"messenger/mocks"
)

func TestAllocator_SequencesAreDenseUnderConcurrency(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	chatID := uuid.New()
	messages := mocks.NewMockIMessageRepository(ctrl)
	// The head is read from storage exactly once, then lives in memory
	messages.EXPECT().Head(chatID).Return(uint64(0), nil).Times(1)

	allocator := NewAllocator(messages)

	const total = 100
	delivered := make([]uint64, 0, total)

	var wg sync.WaitGroup
	for i := 0; i < total; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := allocator.Allocate(chatID,
				func(uint64) error { return nil },
				func(seq uint64) { delivered = append(delivered, seq) },
			)
			req.NoError(err)
		}()
	}
	wg.Wait()

	// Delivery order matches allocation order, with no gap and no repeat
	req.Len(delivered, total)
	for i, seq := range delivered {
		req.Equal(uint64(i+1), seq)
	}

	head, err := allocator.Head(chatID)
	req.NoError(err)
	req.Equal(uint64(total), head)
}

func TestAllocator_FailedPersistDoesNotBurnTheSequence(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	chatID := uuid.New()
	messages := mocks.NewMockIMessageRepository(ctrl)
	messages.EXPECT().Head(chatID).Return(uint64(0), nil).Times(1)

	allocator := NewAllocator(messages)
	errDisk := fmt.Errorf("disk is full")

	_, err := allocator.Allocate(chatID,
		func(uint64) error { return errDisk },
		func(uint64) { req.Fail("deliver must not run for a failed persist") },
	)
	req.ErrorIs(err, errDisk)

	// The number that failed is handed out again
	seq, err := allocator.Allocate(chatID,
		func(uint64) error { return nil },
		func(uint64) {},
	)
	req.NoError(err)
	req.Equal(uint64(1), seq)
}

func TestAllocator_SeedsFromStoredHighWaterMark(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	chatID := uuid.New()
	messages := mocks.NewMockIMessageRepository(ctrl)
	messages.EXPECT().Head(chatID).Return(uint64(7), nil).Times(1)

	allocator := NewAllocator(messages)

	seq, err := allocator.Allocate(chatID,
		func(uint64) error { return nil },
		func(uint64) {},
	)
	req.NoError(err)
	req.Equal(uint64(8), seq)
}

func TestAllocator_ChatsDoNotShareSequences(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	chatA := uuid.New()
	chatB := uuid.New()
	messages := mocks.NewMockIMessageRepository(ctrl)
	messages.EXPECT().Head(chatA).Return(uint64(0), nil).Times(1)
	messages.EXPECT().Head(chatB).Return(uint64(0), nil).Times(1)

	allocator := NewAllocator(messages)

	seqA, err := allocator.Allocate(chatA, func(uint64) error { return nil }, func(uint64) {})
	req.NoError(err)
	seqB, err := allocator.Allocate(chatB, func(uint64) error { return nil }, func(uint64) {})
	req.NoError(err)

	req.Equal(uint64(1), seqA)
	req.Equal(uint64(1), seqB)
}
