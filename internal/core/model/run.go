package model

import "time"

type Phase string

const (
	PhaseGeneration Phase = "generation"
	PhaseValidation Phase = "validation"
	PhaseApply      Phase = "apply"
	PhaseDone       Phase = "done"
)

type RunStatus string

const (
	StatusRunning   RunStatus = "running"
	StatusConverged RunStatus = "converged"
	StatusCapped    RunStatus = "capped"
	StatusCancelled RunStatus = "cancelled"
	StatusFailed    RunStatus = "failed"
)

// Totals are cumulative counts across the run.
type Totals struct {
	MergeGroups            int `json:"merge_groups"`
	MergedAliases          int `json:"merged_aliases"`
	Relationships          int `json:"relationships"`
	Rejected               int `json:"rejected"`
	FilteredHallucinations int `json:"filtered_hallucinations"`
}

// ProgressEvent is emitted once per phase per iteration.
type ProgressEvent struct {
	RunID          string       `json:"run_id"`
	Iteration      int          `json:"iteration"`
	Phase          Phase        `json:"phase"`
	TaskDeltas     map[Task]int `json:"task_deltas"`
	Totals         Totals       `json:"totals"`
	ConvergedTasks []Task       `json:"converged_tasks"`
	FailedTasks    []Task       `json:"failed_tasks,omitempty"`
	Status         RunStatus    `json:"status,omitempty"`
	Error          string       `json:"error,omitempty"`
	At             time.Time    `json:"at"`
}

// RunResult summarizes a finished run.
type RunResult struct {
	RunID      string    `json:"run_id"`
	Status     RunStatus `json:"status"`
	Reason     string    `json:"reason,omitempty"`
	Iterations int       `json:"iterations"`
	Totals     Totals    `json:"totals"`
	Plan       Plan      `json:"plan"`
}
