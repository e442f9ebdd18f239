package runtime

import (
	"hash/fnv"
	"sync"

	"github.com/google/uuid"

	"messenger/repositories"
)

const allocatorShards = 32

// Allocator hands out per-chat sequence numbers. Sequences are dense:
// a number is only visible once its message is durably stored, and a
// failed store never burns the number. Both properties come from doing
// the store inside the per-chat critical section; the head only moves
// after the write lands.
type Allocator struct {
	messages repositories.IMessageRepository
	shards   [allocatorShards]allocatorShard
}

type allocatorShard struct {
	mu    sync.Mutex
	chats map[uuid.UUID]*chatHead
}

type chatHead struct {
	mu     sync.Mutex
	seeded bool
	head   uint64
}

func NewAllocator(messages repositories.IMessageRepository) *Allocator {
	a := &Allocator{messages: messages}
	for i := range a.shards {
		a.shards[i].chats = make(map[uuid.UUID]*chatHead)
	}
	return a
}

// Allocate reserves the next sequence for chatID, runs persist with it,
// and on success advances the head and runs deliver before releasing the
// chat. Delivery order therefore matches allocation order exactly: no
// two messages of one chat can reach fanout swapped.
//
// When persist fails the head stays put and the same sequence goes to
// the next caller, keeping the numbering dense.
func (a *Allocator) Allocate(chatID uuid.UUID, persist func(seq uint64) error, deliver func(seq uint64)) (uint64, error) {
	h, err := a.headFor(chatID)
	if err != nil {
		return 0, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	candidate := h.head + 1
	if err := persist(candidate); err != nil {
		return 0, err
	}
	h.head = candidate
	deliver(candidate)
	return candidate, nil
}

// Head returns the highest allocated sequence for chatID, 0 when the
// chat has no messages. It serializes with in-flight allocations, so the
// value is exact at the moment it returns.
func (a *Allocator) Head(chatID uuid.UUID) (uint64, error) {
	h, err := a.headFor(chatID)
	if err != nil {
		return 0, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.head, nil
}

// headFor resolves the chat's head entry, seeding it from storage on
// first touch. The stored sequence mark is committed atomically with
// every append, so the seed is the true head even after a restart.
func (a *Allocator) headFor(chatID uuid.UUID) (*chatHead, error) {
	shard := a.shardFor(chatID)

	shard.mu.Lock()
	h, ok := shard.chats[chatID]
	if !ok {
		h = &chatHead{}
		shard.chats[chatID] = h
	}
	shard.mu.Unlock()

	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.seeded {
		head, err := a.messages.Head(chatID)
		if err != nil {
			return nil, err
		}
		h.head = head
		h.seeded = true
	}
	return h, nil
}

func (a *Allocator) shardFor(chatID uuid.UUID) *allocatorShard {
	hash := fnv.New32a()
	_, _ = hash.Write(chatID[:])
	return &a.shards[hash.Sum32()%allocatorShards]
}
