package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
	"github.com/olekukonko/tablewriter"
)

func main() {
	dbPath := flag.String("db", "./data/badger", "Path to badger DB")
	// Par défaut on scanne "msg:" pour éviter de percuter les index msgid:
	prefix := flag.String("prefix", "msg:", "Prefix to scan")
	limit := flag.Int("limit", 200, "Max rows to display")
	seed := flag.Bool("seed", false, "Populate the store with demo accounts, chats and messages")
	seedMessages := flag.Int("seed-messages", 40, "How many group messages -seed writes")
	flag.Parse()

	if *seed {
		if err := runSeed(*dbPath, *seedMessages); err != nil {
			log.Fatal("Seed failed: ", err)
		}
		return
	}

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Size", "Decoded"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	rows := 0
	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			if rows == *limit {
				break
			}
			item := it.Item()
			err := item.Value(func(v []byte) error {
				table.Append([]string{
					string(item.Key()),
					fmt.Sprintf("%dB", len(v)),
					decodeValue(v),
				})
				rows++
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	table.Render()
	fmt.Printf("\n%d rows\n", rows)
}

// decodeValue renders a stored value for humans: CBOR records become
// field=value pairs, 8-byte values are sequence marks, anything else is
// shown raw when printable.
func decodeValue(v []byte) string {
	var record map[string]any
	if err := cbor.Unmarshal(v, &record); err == nil && len(record) > 0 {
		keys := make([]string, 0, len(record))
		for k := range record {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%s", k, compact(record[k])))
		}
		return strings.Join(parts, " ")
	}
	if len(v) == 8 {
		return fmt.Sprintf("uint64(%d)", binary.BigEndian.Uint64(v))
	}
	if utf8.Valid(v) {
		return string(v)
	}
	return fmt.Sprintf("0x%x", v)
}

// compact shortens uuids and long bodies so rows stay on one line.
func compact(v any) string {
	s := fmt.Sprintf("%v", v)
	if len(s) == 36 && strings.Count(s, "-") == 4 {
		return s[:8]
	}
	if len(s) > 40 {
		return s[:40] + "..."
	}
	return s
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true).
		WithValueLogFileSize(10 * 1024 * 1024)

	db, err := badger.Open(opts)
	if err != nil {
		// Si corruption détectée, essaie un open en write pour truncate
		if strings.Contains(err.Error(), "Log truncate required") {
			repairOpts := badger.DefaultOptions(path).
				WithLogger(nil).WithBypassLockGuard(true)

			db, err = badger.Open(repairOpts)
			if err != nil {
				return nil, fmt.Errorf("repair failed: %w", err)
			}

			// Ferme et réouvre en read-only
			db.Close()
			return badger.Open(opts)
		}
		return nil, err
	}
	return db, nil
}
