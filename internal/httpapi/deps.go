package httpapi

import (
	"database/sql"
	"sync/atomic"

	"applybot-engine/internal/events"
)

type Deps struct {
	DB  *sql.DB
	Hub *events.Hub

	// RunStatus stores httpapi.RunStatus.
	RunStatus *atomic.Value

	// TriggerRun asks the engine loop for a run of one platform (or "all").
	// It must not block; a run already in progress is an error.
	TriggerRun func(platformName string) error
}

type RunStatus struct {
	Running   bool   `json:"running"`
	LastRunAt string `json:"last_run_at"`
	LastOkAt  string `json:"last_ok_at"`
	LastError string `json:"last_error"`
}
