package events

import (
	"encoding/json"
	"time"
)

type Event struct {
	Type  string          `json:"type"`
	At    time.Time       `json:"at"`
	RunID string          `json:"run_id,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

const (
	TypePostingCreated  = "posting_created"
	TypeAttemptFinished = "attempt_finished"
	TypeRunFinished     = "run_finished"
)

func Make(runID, typ string, data any) string {
	var raw json.RawMessage
	if data != nil {
		b, _ := json.Marshal(data)
		raw = b
	}
	e := Event{
		Type:  typ,
		At:    time.Now().UTC(),
		RunID: runID,
		Data:  raw,
	}
	b, _ := json.Marshal(e)
	return string(b)
}
