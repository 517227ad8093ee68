package normalize

import (
	"github.com/agenthands/canon/internal/core/model"
)

// ConvergenceTracker decides per task when further iterations stop paying
// off: a task converges once the last Window iterations each accepted fewer
// than Threshold new items. Convergence is sticky.
type ConvergenceTracker struct {
	window    int
	threshold int
	trends    map[model.Task][]int
	converged map[model.Task]bool
}

func NewConvergenceTracker(window, threshold int) *ConvergenceTracker {
	if window < 1 {
		window = 1
	}
	if threshold < 1 {
		threshold = 1
	}
	return &ConvergenceTracker{
		window:    window,
		threshold: threshold,
		trends:    make(map[model.Task][]int),
		converged: make(map[model.Task]bool),
	}
}

// Record appends an iteration's count of newly accepted items and reports
// whether the task is converged afterwards.
func (t *ConvergenceTracker) Record(task model.Task, accepted int) bool {
	if t.converged[task] {
		return true
	}
	t.trends[task] = append(t.trends[task], accepted)

	trend := t.trends[task]
	if len(trend) < t.window {
		return false
	}
	for _, n := range trend[len(trend)-t.window:] {
		if n >= t.threshold {
			return false
		}
	}
	t.converged[task] = true
	return true
}

func (t *ConvergenceTracker) Converged(task model.Task) bool {
	return t.converged[task]
}

func (t *ConvergenceTracker) AllConverged() bool {
	for _, task := range model.Tasks {
		if !t.converged[task] {
			return false
		}
	}
	return true
}

// Active lists the tasks still iterating, in model.Tasks order.
func (t *ConvergenceTracker) Active() []model.Task {
	var out []model.Task
	for _, task := range model.Tasks {
		if !t.converged[task] {
			out = append(out, task)
		}
	}
	return out
}

func (t *ConvergenceTracker) ConvergedTasks() []model.Task {
	out := []model.Task{}
	for _, task := range model.Tasks {
		if t.converged[task] {
			out = append(out, task)
		}
	}
	return out
}

func (t *ConvergenceTracker) Trend(task model.Task) []int {
	return append([]int(nil), t.trends[task]...)
}
