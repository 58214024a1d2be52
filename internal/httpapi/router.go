package httpapi

import "net/http"

func NewMux(d Deps) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: healthHandler,
	}))

	ph := PostingsHandler{DB: d.DB}
	mux.HandleFunc("/postings", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ph.List,
	}))
	mux.HandleFunc("/attempts", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ph.ListAttempts,
	}))

	rh := RunHandler{RunStatus: d.RunStatus, TriggerRun: d.TriggerRun}
	mux.HandleFunc("/run", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: rh.Trigger,
	}))
	mux.HandleFunc("/run/status", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: rh.Status,
	}))

	eh := EventsHandler{Hub: d.Hub}
	mux.HandleFunc("/events", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: eh.Stream,
	}))

	return mux
}
