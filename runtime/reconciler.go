package runtime

import (
	"context"
	"fmt"
	"log/slog"

	"messenger/errors"
	"messenger/observability"
	"messenger/repositories"
)

// Reconciler replays the messages a client missed while disconnected.
// The replay happens before the connection's gate opens, so the client
// sees: backlog in sequence order, then live traffic, with the floor
// filter in the outbox removing the overlap between the two.
type Reconciler struct {
	log       *slog.Logger
	messages  repositories.IMessageRepository
	allocator *Allocator
	stats     *observability.DeliveryStats
	pageSize  int
}

func NewReconciler(log *slog.Logger, messages repositories.IMessageRepository,
	allocator *Allocator, stats *observability.DeliveryStats, pageSize int) *Reconciler {
	return &Reconciler{
		log:       log,
		messages:  messages,
		allocator: allocator,
		stats:     stats,
		pageSize:  pageSize,
	}
}

// Resume streams every stored message after lastSeen to conn and returns
// the sequence the replay reached; the caller opens the gate with it.
// A lastSeen ahead of the chat's head is a client lying about its
// position and is rejected.
func (r *Reconciler) Resume(ctx context.Context, conn *Connection, lastSeen uint64) (uint64, error) {
	head, err := r.allocator.Head(conn.ChatID)
	if err != nil {
		return 0, err
	}
	if lastSeen > head {
		return 0, fmt.Errorf("%w: last sequence %d is beyond head %d", errors.ErrStaleResume, lastSeen, head)
	}

	floor := lastSeen
	replayed := 0
	for {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		default:
		}

		page, err := r.messages.Range(conn.ChatID, floor, r.pageSize)
		if err != nil {
			return 0, err
		}
		if len(page) == 0 {
			break
		}
		if err := conn.DeliverBacklog(page); err != nil {
			return 0, err
		}
		floor = page[len(page)-1].Seq
		replayed += len(page)
		if len(page) < r.pageSize {
			break
		}
	}

	if replayed > 0 {
		r.stats.AddBacklogReplayed(uint64(replayed))
		r.log.Debug("backlog replayed",
			"chat", conn.ChatID, "user", conn.UserID, "from", lastSeen, "to", floor, "count", replayed)
	}
	return floor, nil
}
