package domain

import (
	"fmt"
	"time"
)

// Checkpoint keys written by the orchestrator and the loader.
const (
	CheckpointParagraphsTotal     = "paragraphs.total"
	CheckpointParagraphsProcessed = "paragraphs.processed"
	CheckpointProcessedOffset     = "paragraphs.processed_offset"
	CheckpointLastRunID           = "pipeline.last_run_id"
	CheckpointLastRunStartedAt    = "pipeline.last_run_started_at"
)

// Checkpoint is a process-wide key/value progress marker.
type Checkpoint struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StageCheckpointKey returns the per-stage key for the given field,
// e.g. "stage.generate_questions.succeeded".
func StageCheckpointKey(kind WorkKind, field string) string {
	return fmt.Sprintf("stage.%s.%s", kind, field)
}
