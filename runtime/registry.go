package runtime

import (
	"hash/fnv"
	"sync"

	"github.com/google/uuid"
)

const registryShards = 32

// Registry tracks the live connection of every attached participant,
// keyed by (chat, user). It is sharded by chat so that fanout for one
// chat touches a single lock, and a hot chat never contends with the
// rest of the server.
type Registry struct {
	shards [registryShards]registryShard
}

type registryShard struct {
	mu    sync.RWMutex
	chats map[uuid.UUID]map[uuid.UUID]*Connection
}

func NewRegistry() *Registry {
	r := &Registry{}
	for i := range r.shards {
		r.shards[i].chats = make(map[uuid.UUID]map[uuid.UUID]*Connection)
	}
	return r
}

func (r *Registry) shardFor(chatID uuid.UUID) *registryShard {
	h := fnv.New32a()
	_, _ = h.Write(chatID[:])
	return &r.shards[h.Sum32()%registryShards]
}

// Register installs conn as the connection for its (chat, user) pair and
// returns the connection it displaced, if any. The newest attachment
// always wins; the caller is expected to close the returned connection
// outside the registry lock.
func (r *Registry) Register(conn *Connection) *Connection {
	shard := r.shardFor(conn.ChatID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	members, ok := shard.chats[conn.ChatID]
	if !ok {
		members = make(map[uuid.UUID]*Connection)
		shard.chats[conn.ChatID] = members
	}
	prev := members[conn.UserID]
	members[conn.UserID] = conn
	return prev
}

// Unregister removes conn only if it is still the registered connection
// for its pair. A connection replaced by a newer attachment unregisters
// as a no-op, so a stale detach can never evict its successor.
// Empty chat entries are removed to keep the maps from growing forever.
func (r *Registry) Unregister(conn *Connection) {
	shard := r.shardFor(conn.ChatID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	members, ok := shard.chats[conn.ChatID]
	if !ok {
		return
	}
	if members[conn.UserID] != conn {
		return
	}
	delete(members, conn.UserID)
	if len(members) == 0 {
		delete(shard.chats, conn.ChatID)
	}
}

// Snapshot returns the connections currently attached to a chat. The
// slice is a copy; callers may deliver to it without holding any lock.
func (r *Registry) Snapshot(chatID uuid.UUID) []*Connection {
	shard := r.shardFor(chatID)
	shard.mu.RLock()
	defer shard.mu.RUnlock()

	members, ok := shard.chats[chatID]
	if !ok {
		return nil
	}
	conns := make([]*Connection, 0, len(members))
	for _, conn := range members {
		conns = append(conns, conn)
	}
	return conns
}
