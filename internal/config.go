package internal

import "time"

type Config struct {
	Host           string `env:"HOST,default=localhost"`
	Port           int    `env:"PORT,default=8080"`
	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath  string `env:"BLUGE_FILEPATH,required=true"`
	LogLevel       string `env:"LOG_LEVEL,required=true"`

	AccessTokenSecret    string        `env:"ACCESS_TOKEN_SECRET,required=true"`
	RefreshTokenSecret   string        `env:"REFRESH_TOKEN_SECRET,required=true"`
	AccessTokenDuration  time.Duration `env:"ACCESS_TOKEN_DURATION,default=30m"`
	RefreshTokenDuration time.Duration `env:"REFRESH_TOKEN_DURATION,default=168h"`

	// Delivery tuning. The buffer size is the per-connection outbox soft
	// capacity; a connection staying above it longer than the grace window
	// is evicted as a slow consumer.
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=256"`
	SlowConsumerGrace    time.Duration `env:"SLOW_CONSUMER_GRACE,default=3s"`
	MessageMaxLength     int           `env:"MESSAGE_MAX_LENGTH,default=4096"`
	HistoryPageSize      int           `env:"HISTORY_PAGE_SIZE,default=100"`
	PersistAttempts      int           `env:"PERSIST_ATTEMPTS,default=3"`
	PersistBackoffBase   time.Duration `env:"PERSIST_BACKOFF_BASE,default=100ms"`
	ReadLimitBytes       int64         `env:"READ_LIMIT_BYTES,default=16384"`

	IndexQueueSize     int           `env:"INDEX_QUEUE_SIZE,default=1024"`
	IndexFlushInterval time.Duration `env:"INDEX_FLUSH_INTERVAL,default=2s"`
	RestartInterval    time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	StatsInterval      time.Duration `env:"STATS_INTERVAL,default=30s"`
	GCInterval         time.Duration `env:"GC_INTERVAL,default=5m"`
	ShutdownTimeout    time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`

	// DebugPort exposes the storage dashboard; 0 disables it.
	DebugPort int `env:"DEBUG_PORT,default=0"`
}
