package main

import (
	"fmt"
	"log"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
	"github.com/joho/godotenv"

	"messenger/internal"
)

func main() {
	// 1. Load config
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		log.Fatalf("Config error: %v", err)
	}
	port := config.DebugPort
	if port == 0 {
		port = 7777
	}

	// 2. Open Badger in Read-Only mode
	// Note: BypassLockGuard allows opening if another process (the server) holds the lock
	opts := badger.DefaultOptions(config.BadgerFilepath).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	// 3. Start the dashboard only
	// We provide a static stats provider since the engine isn't running here
	viewerStats := func() map[string]any {
		return map[string]any{
			"Status": "Viewer Mode (Read-Only)",
			"Time":   time.Now().Format(time.RFC822),
		}
	}

	fmt.Printf("🌐 Viewer started at http://localhost:%d/inspect\n", port)

	internal.StartDebugServer(db, port, "/inspect", MessageMapper, viewerStats)
	select {}
}

// MessageMapper decodes message rows so bodies read in clear on the
// dashboard; every other namespace falls back to the default rendering.
func MessageMapper(key string, val []byte) internal.InspectRow {
	row := internal.DefaultMapper(key, val)

	var disk struct {
		Sender string `cbor:"sender"`
		Seq    uint64 `cbor:"seq"`
		Body   string `cbor:"body"`
		At     int64  `cbor:"at"`
	}
	if err := cbor.Unmarshal(val, &disk); err != nil || disk.Body == "" {
		return row
	}

	row.Kind = "MSG"
	row.Detail = disk.Body
	row.Timestamp = time.Unix(0, disk.At).Format("15:04:05")
	if len(disk.Sender) > 8 {
		row.Owner = disk.Sender[:8]
	}
	return row
}
