package observability

import (
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// SystemSample est la photo CPU/RAM du process, fournie par le worker stats
type SystemSample struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemPercent float32 `json:"mem_percent"`
}

// StatsSnapshot agrège toutes les métriques pour le endpoint health
type StatsSnapshot struct {
	// --- DELIVERY METRICS ---
	ConnectionsActive    uint64  `json:"connections_active"`
	ConnectionsOpened    uint64  `json:"connections_opened"`
	ConnectionsReplaced  uint64  `json:"connections_replaced"`
	SlowConsumersEvicted uint64  `json:"slow_consumers_evicted"`
	MessagesAccepted     uint64  `json:"messages_accepted"`
	MessagesFannedOut    uint64  `json:"messages_fanned_out"`
	MessageRate          float64 `json:"message_rate"` // msg/s since last refresh
	ReadsApplied         uint64  `json:"reads_applied"`
	BacklogReplayed      uint64  `json:"backlog_replayed"`
	PersistRetries       uint64  `json:"persist_retries"`
	IndexDropped         uint64  `json:"index_dropped"`

	// --- SYSTEM METRICS ---
	CPUPercent float64 `json:"cpu_percent"`
	MemPercent float32 `json:"mem_percent"`
	AllocMemMb uint64  `json:"alloc_mem_mb"`
	NumGC      uint32  `json:"num_gc"`
	Goroutines int     `json:"goroutines"`
}

// DeliveryStats collecte la télémétrie du moteur de diffusion
type DeliveryStats struct {
	log       *slog.Logger
	mu        sync.RWMutex
	system    SystemSample
	rate      float64
	lastCheck time.Time

	// Compteurs atomiques
	connectionsOpened    uint64
	connectionsClosed    uint64
	connectionsReplaced  uint64
	slowConsumersEvicted uint64
	messagesAccepted     uint64
	messagesFannedOut    uint64
	readsApplied         uint64
	backlogReplayed      uint64
	persistRetries       uint64
	indexDropped         uint64

	// Fenêtre glissante pour le débit
	windowAccepted uint64
}

func NewDeliveryStats(log *slog.Logger) *DeliveryStats {
	return &DeliveryStats{
		log:       log,
		lastCheck: time.Now(),
	}
}

func (ds *DeliveryStats) IncrConnectionsOpened() {
	atomic.AddUint64(&ds.connectionsOpened, 1)
}

func (ds *DeliveryStats) IncrConnectionsClosed() {
	atomic.AddUint64(&ds.connectionsClosed, 1)
}

func (ds *DeliveryStats) IncrConnectionsReplaced() {
	atomic.AddUint64(&ds.connectionsReplaced, 1)
}

func (ds *DeliveryStats) IncrSlowConsumersEvicted() {
	atomic.AddUint64(&ds.slowConsumersEvicted, 1)
}

func (ds *DeliveryStats) IncrMessagesAccepted() {
	atomic.AddUint64(&ds.messagesAccepted, 1)
	atomic.AddUint64(&ds.windowAccepted, 1)
}

// AddMessagesFannedOut compte une diffusion vers n connexions
func (ds *DeliveryStats) AddMessagesFannedOut(n uint64) {
	atomic.AddUint64(&ds.messagesFannedOut, n)
}

func (ds *DeliveryStats) IncrReadsApplied() {
	atomic.AddUint64(&ds.readsApplied, 1)
}

// AddBacklogReplayed compte n messages rejoués lors d'une reconnexion
func (ds *DeliveryStats) AddBacklogReplayed(n uint64) {
	atomic.AddUint64(&ds.backlogReplayed, n)
}

func (ds *DeliveryStats) IncrPersistRetries() {
	atomic.AddUint64(&ds.persistRetries, 1)
}

func (ds *DeliveryStats) IncrIndexDropped() {
	atomic.AddUint64(&ds.indexDropped, 1)
}

// SetSystemSample merges the CPU/RAM numbers sampled by the stats worker.
func (ds *DeliveryStats) SetSystemSample(sample SystemSample) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	ds.system = sample
}

// Refresh recomputes the message rate from the window counter. Called on
// a ticker by the stats worker.
func (ds *DeliveryStats) Refresh() {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	now := time.Now()
	duration := now.Sub(ds.lastCheck).Seconds()
	if duration > 0 {
		accepted := atomic.SwapUint64(&ds.windowAccepted, 0)
		ds.rate = float64(accepted) / duration
	}
	ds.lastCheck = now
}

// Snapshot returns the current view. Counters are cumulative since start,
// the rate covers the window since the last Refresh.
func (ds *DeliveryStats) Snapshot() StatsSnapshot {
	ds.mu.RLock()
	system := ds.system
	rate := ds.rate
	ds.mu.RUnlock()

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	opened := atomic.LoadUint64(&ds.connectionsOpened)
	closed := atomic.LoadUint64(&ds.connectionsClosed)

	return StatsSnapshot{
		ConnectionsActive:    opened - closed,
		ConnectionsOpened:    opened,
		ConnectionsReplaced:  atomic.LoadUint64(&ds.connectionsReplaced),
		SlowConsumersEvicted: atomic.LoadUint64(&ds.slowConsumersEvicted),
		MessagesAccepted:     atomic.LoadUint64(&ds.messagesAccepted),
		MessagesFannedOut:    atomic.LoadUint64(&ds.messagesFannedOut),
		MessageRate:          rate,
		ReadsApplied:         atomic.LoadUint64(&ds.readsApplied),
		BacklogReplayed:      atomic.LoadUint64(&ds.backlogReplayed),
		PersistRetries:       atomic.LoadUint64(&ds.persistRetries),
		IndexDropped:         atomic.LoadUint64(&ds.indexDropped),
		CPUPercent:           system.CPUPercent,
		MemPercent:           system.MemPercent,
		AllocMemMb:           m.Alloc / 1024 / 1024,
		NumGC:                m.NumGC,
		Goroutines:           runtime.NumGoroutine(),
	}
}
