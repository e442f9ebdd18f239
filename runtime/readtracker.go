package runtime

import (
	"hash/fnv"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"messenger/observability"
	"messenger/repositories"
)

const readShards = 32

// ReadTracker maintains per-participant read watermarks. A watermark is
// the highest sequence the participant has acknowledged; it never moves
// backwards, and re-acknowledging old positions changes nothing.
type ReadTracker struct {
	log        *slog.Logger
	watermarks repositories.IWatermarkRepository
	fanout     *Fanout
	stats      *observability.DeliveryStats
	locks      [readShards]sync.Mutex
}

func NewReadTracker(log *slog.Logger, watermarks repositories.IWatermarkRepository,
	fanout *Fanout, stats *observability.DeliveryStats) *ReadTracker {
	return &ReadTracker{
		log:        log,
		watermarks: watermarks,
		fanout:     fanout,
		stats:      stats,
	}
}

// MarkRead moves the watermark of (chat, user) up to seq. It returns the
// watermark in force afterwards and whether this call advanced it. Only
// an advance is announced to the chat; replays and regressions are
// silently absorbed.
func (rt *ReadTracker) MarkRead(chatID, userID uuid.UUID, seq uint64) (uint64, bool, error) {
	lock := rt.lockFor(chatID, userID)
	lock.Lock()

	current, err := rt.watermarks.Watermark(chatID, userID)
	if err != nil {
		lock.Unlock()
		return 0, false, err
	}
	if seq <= current {
		lock.Unlock()
		return current, false, nil
	}
	if err := rt.watermarks.SetWatermark(chatID, userID, seq); err != nil {
		lock.Unlock()
		return 0, false, err
	}
	lock.Unlock()

	// Announce outside the lock. Receivers keep the max of what they
	// hear, so announcement order is not load-bearing.
	rt.fanout.Read(chatID, userID, seq)
	rt.stats.IncrReadsApplied()
	rt.log.Debug("read watermark advanced", "chat", chatID, "user", userID, "seq", seq)
	return seq, true, nil
}

// Watermark reads the current position without touching it.
func (rt *ReadTracker) Watermark(chatID, userID uuid.UUID) (uint64, error) {
	return rt.watermarks.Watermark(chatID, userID)
}

func (rt *ReadTracker) lockFor(chatID, userID uuid.UUID) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write(chatID[:])
	_, _ = h.Write(userID[:])
	return &rt.locks[h.Sum32()%readShards]
}
