package httpapi

import (
	"database/sql"
	"fmt"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"applybot-engine/internal/events"
	"applybot-engine/internal/store"
)

func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"ok": true, "time": time.Now().Format(time.RFC3339)})
}

type PostingsHandler struct {
	DB *sql.DB
}

func (h PostingsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	postings, err := store.ListPostings(r.Context(), h.DB, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if postings == nil {
		postings = []store.Posting{}
	}
	writeJSON(w, postings)
}

func (h PostingsHandler) ListAttempts(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	attempts, err := store.ListAttempts(r.Context(), h.DB, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if attempts == nil {
		attempts = []store.Attempt{}
	}
	writeJSON(w, attempts)
}

type RunHandler struct {
	RunStatus  *atomic.Value
	TriggerRun func(platformName string) error
}

func (h RunHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("platform")
	if name == "" {
		name = "all"
	}
	if err := h.TriggerRun(name); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, map[string]any{"started": true, "platform": name})
}

func (h RunHandler) Status(w http.ResponseWriter, r *http.Request) {
	st := RunStatus{}
	if v := h.RunStatus.Load(); v != nil {
		st = v.(RunStatus)
	}
	writeJSON(w, st)
}

type EventsHandler struct {
	Hub *events.Hub
}

func (h EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ch := h.Hub.Subscribe()
	defer h.Hub.Unsubscribe(ch)

	fmt.Fprintf(w, "event: ping\ndata: %s\n\n", `{"type":"ping"}`)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg := <-ch:
			fmt.Fprintf(w, "event: message\ndata: %s\n\n", msg)
			flusher.Flush()
		}
	}
}
