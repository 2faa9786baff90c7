package internal

import (
	"fmt"
	"hire-chat/infrastructure/storage"
	"html/template"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// StatsProvider returns live figures shown above the records.
type StatsProvider func() map[string]any

type PageData struct {
	Prefix string
	Items  []storage.Record
	Stats  []Stat
}

type Stat struct {
	Name  string
	Value any
}

const (
	defaultPrefix = "room:"
	maxRows       = 500
)

var inspectTemplate = template.Must(template.New("inspect").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>hire-chat inspector</title>
<style>body{font-family:monospace}td,th{padding:2px 8px;text-align:left}</style></head>
<body>
<form><input name="prefix" value="{{.Prefix}}"><button>Scan</button></form>
<ul>{{range .Stats}}<li>{{.Name}}: {{.Value}}</li>{{end}}</ul>
<table>
<tr><th>Key</th><th>Type</th><th>Room</th><th>Time</th><th>Detail</th></tr>
{{range .Items}}<tr><td>{{.Key}}</td><td>{{.Type}}</td><td>{{.Room}}</td><td>{{.Timestamp}}</td><td>{{.Detail}}</td></tr>
{{end}}</table>
</body></html>`))

// NewInspectHandler renders the records under the "prefix" query parameter.
func NewInspectHandler(db *badger.DB, stats StatsProvider) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		prefix := r.URL.Query().Get("prefix")
		if prefix == "" {
			prefix = defaultPrefix
		}
		data := PageData{Prefix: prefix}
		if stats != nil {
			for name, value := range stats() {
				data.Stats = append(data.Stats, Stat{Name: name, Value: value})
			}
			sort.Slice(data.Stats, func(i, j int) bool { return data.Stats[i].Name < data.Stats[j].Name })
		}

		err := db.View(func(txn *badger.Txn) error {
			it := txn.NewIterator(badger.DefaultIteratorOptions)
			defer it.Close()
			for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)) && len(data.Items) < maxRows; it.Next() {
				item := it.Item()
				key := string(item.Key())
				if err := item.Value(func(val []byte) error {
					data.Items = append(data.Items, storage.Describe(key, val))
					return nil
				}); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = inspectTemplate.Execute(w, data)
	})
}

// StartDebugServer serves the inspector on port in the background. Only meant
// for debug log level, it exposes message contents.
func StartDebugServer(log *slog.Logger, db *badger.DB, port int, endpoint string, stats StatsProvider) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(endpoint, NewInspectHandler(db, stats))
	srv := &http.Server{
		Addr:              fmt.Sprintf("localhost:%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Debug server stopped", "error", err)
		}
	}()
	return srv
}
