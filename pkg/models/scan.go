package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Scan run statuses.
const (
	ScanStatusPending    = "pending"
	ScanStatusInProgress = "in_progress"
	ScanStatusCompleted  = "completed"
	ScanStatusFailed     = "failed"
)

// Scan log levels.
const (
	ScanLogLevelInfo  = "info"
	ScanLogLevelWarn  = "warn"
	ScanLogLevelError = "error"
)

// ScanRun is one execution of the scan pipeline, with the counters it
// reported. ScanID correlates the run with its scan_logs rows.
type ScanRun struct {
	bun.BaseModel `bun:"table:scan_runs,alias:sr"`

	ID             int        `bun:",pk,nullzero" json:"id"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	ScanID         string     `bun:",nullzero" json:"scan_id"`
	Status         string     `bun:",nullzero" json:"status"`
	ExternalLookup bool       `json:"external_lookup"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
	Discovered     int        `json:"discovered"`
	Indexed        int        `json:"indexed"`
	Updated        int        `json:"updated"`
	Skipped        int        `json:"skipped"`
	Archived       int        `json:"archived"`
	Restored       int        `json:"restored"`
	Errors         int        `json:"errors"`
}

type ScanLog struct {
	bun.BaseModel `bun:"table:scan_logs,alias:sl"`

	ID         int       `bun:",pk,nullzero" json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	ScanID     string    `bun:",nullzero" json:"scan_id"`
	Level      string    `bun:",nullzero" json:"level"`
	Message    string    `bun:",nullzero" json:"message"`
	Data       *string   `json:"data,omitempty"`
	StackTrace *string   `json:"stack_trace,omitempty"`
}
