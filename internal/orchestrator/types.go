package orchestrator

import (
	"github.com/joshharrison/fogsched/internal/planner"
	"github.com/joshharrison/fogsched/internal/state"
)

// Config holds orchestrator configuration.
type Config struct {
	Quiet bool // suppress per-job progress lines on stderr
}

// Result is the outcome of one simulated run.
type Result struct {
	State *state.RunState
	// Assignment is the static plan the run replayed, nil for online heuristics.
	Assignment *planner.Assignment
	// Shifted counts the jobs the reconciler moved.
	Shifted int
}

// completion is a bound task waiting for its simulated finish.
type completion struct {
	taskID int
	vmID   int
	start  float64
	finish float64
	index  int
}

// completionQueue is a min-heap of completions on (finish, task id).
type completionQueue []*completion

func (q completionQueue) Len() int { return len(q) }

func (q completionQueue) Less(i, j int) bool {
	if q[i].finish != q[j].finish {
		return q[i].finish < q[j].finish
	}
	return q[i].taskID < q[j].taskID
}

func (q completionQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *completionQueue) Push(x interface{}) {
	c := x.(*completion)
	c.index = len(*q)
	*q = append(*q, c)
}

func (q *completionQueue) Pop() interface{} {
	old := *q
	n := len(old)
	c := old[n-1]
	old[n-1] = nil
	c.index = -1
	*q = old[:n-1]
	return c
}
