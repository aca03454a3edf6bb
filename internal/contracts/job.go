package contracts

import "time"

// Job run statuses
const (
	JobStatusSuccess = "success"
	JobStatusFailed  = "failed"
)

// JobCompletion is the final outcome of one scheduled job run, after retries.
// Downstream jobs check it before reading their upstream's output.
type JobCompletion struct {
	Job        string    `json:"job"`
	RunID      string    `json:"run_id"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	Attempts   int       `json:"attempts"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Succeeded reports whether the run finished without error
func (c JobCompletion) Succeeded() bool {
	return c.Status == JobStatusSuccess
}
