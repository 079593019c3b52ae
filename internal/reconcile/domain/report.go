package reconcile

import "time"

// Report summarizes one bulk reconciliation run. A canceled run still
// carries the outcomes accumulated before cancellation.
type Report struct {
	RunID       string             `json:"run_id"`
	StartedAt   time.Time          `json:"started_at"`
	FinishedAt  time.Time          `json:"finished_at"`
	ElapsedMs   int64              `json:"elapsed_ms"`
	Total       int                `json:"total"`
	Succeeded   int                `json:"succeeded"`
	Failed      int                `json:"failed"`
	Corrected   int                `json:"corrected"`
	Unchanged   int                `json:"unchanged"`
	Canceled    bool               `json:"canceled"`
	Corrections []CorrectionRecord `json:"corrections"`
}

// Tally folds one correction record into the report counters.
func (r *Report) Tally(record CorrectionRecord) {
	r.Total++
	switch record.Status {
	case StatusFailed:
		r.Failed++
	case StatusCorrected:
		r.Succeeded++
		r.Corrected++
	case StatusUnchanged:
		r.Succeeded++
		r.Unchanged++
	}
	r.Corrections = append(r.Corrections, record)
}
