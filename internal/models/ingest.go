package models

import (
	"time"

	"github.com/google/uuid"
)

// IngestSummary describes one completed ingestion run.
type IngestSummary struct {
	RunID      uuid.UUID `json:"runId"`
	Start      string    `json:"start"`
	End        string    `json:"end"`
	Zones      []Zone    `json:"zones"`
	Batches    int       `json:"batches"`
	TotalRows  int       `json:"totalRows"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

func (s IngestSummary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}
