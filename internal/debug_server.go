package internal

import (
	"embed"
	"encoding/binary"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

//go:embed inspect.html
var templatesFS embed.FS

// InspectRow is one storage entry rendered on the dashboard.
type InspectRow struct {
	Key       string
	Kind      string
	Timestamp string
	Owner     string
	Seq       string
	Detail    string
}

type RowMapper func(key string, val []byte) InspectRow
type StatsProvider func() map[string]any

type PageData struct {
	Prefix string
	Items  []InspectRow
	Stats  map[string]any
}

// StartDebugServer serves a read-only HTML view over the key space,
// filtered by prefix. It never writes, so it is safe to point at the
// database of a live server.
func StartDebugServer(db *badger.DB, port int, endpoint string, mapper RowMapper, statsProvider StatsProvider) {
	mux := http.NewServeMux()
	tmpl := template.Must(template.ParseFS(templatesFS, "inspect.html"))

	if mapper == nil {
		mapper = DefaultMapper
	}

	mux.HandleFunc(endpoint, func(w http.ResponseWriter, r *http.Request) {
		prefix := r.URL.Query().Get("prefix")
		if prefix == "" {
			prefix = "msg:"
		}

		data := PageData{
			Prefix: prefix,
			Stats:  make(map[string]any),
		}

		// Récupération des statistiques dynamiques pour le dashboard
		if statsProvider != nil {
			data.Stats = statsProvider()
		}

		_ = db.View(func(txn *badger.Txn) error {
			it := txn.NewIterator(badger.DefaultIteratorOptions)
			defer it.Close()
			for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
				item := it.Item()
				_ = item.Value(func(val []byte) error {
					data.Items = append(data.Items, mapper(string(item.Key()), val))
					return nil
				})
			}
			return nil
		})

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = tmpl.Execute(w, data)
	})

	go func() {
		// Écoute sur toutes les interfaces pour permettre l'accès réseau
		_ = http.ListenAndServe(fmt.Sprintf("0.0.0.0:%d", port), mux)
	}()
}

// DefaultMapper renders a row from the key layout alone. Every key is
// namespace-first and colon-separated: msg:{chat}:{seq padded},
// msgid:{chat}:{message}, seq:{chat}, user:{email}, userid:{id},
// chat:{id}, member:{chat}:{user}, memberof:{user}:{chat},
// watermark:{chat}:{user}.
func DefaultMapper(key string, val []byte) InspectRow {
	parts := strings.Split(key, ":")
	row := InspectRow{
		Key:       key,
		Kind:      strings.ToUpper(parts[0]),
		Timestamp: "--:--:--",
		Owner:     "--------",
		Seq:       "-",
		Detail:    "Size: " + strconv.Itoa(len(val)) + " bytes",
	}

	if len(parts) >= 2 {
		row.Owner = shorten(parts[1])
	}
	if len(parts) >= 3 {
		if seq, err := strconv.ParseUint(parts[2], 10, 64); err == nil {
			row.Seq = strconv.FormatUint(seq, 10)
		} else {
			row.Seq = shorten(parts[2])
		}
	}

	// Watermarks, heads and msgid entries hold a raw big-endian counter
	if len(val) == 8 {
		row.Detail = fmt.Sprintf("uint64(%d)", binary.BigEndian.Uint64(val))
	}
	return row
}

func shorten(s string) string {
	if len(s) > 8 {
		return s[:8]
	}
	return s
}
