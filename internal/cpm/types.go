package cpm

// Weights supplies node and edge weights. cost.Matrix implements it.
type Weights interface {
	Avg(taskID int) float64
	Transfer(parent, child int) float64
}

// CPMResult holds the complete critical path analysis.
type CPMResult struct {
	Tasks         map[int]*TaskSchedule
	CriticalPath  []int // critical task IDs in topological order
	TotalDuration float64
	Waves         []Wave // parallelizable groups
	TopoOrder     []int
}

// TaskSchedule holds the scheduling info for a single task.
type TaskSchedule struct {
	TaskID     int
	ES, EF     float64 // earliest start/finish
	LS, LF     float64 // latest start/finish
	Slack      float64
	IsCritical bool
	Wave       int // which parallel wave this belongs to
}

// Wave represents a group of tasks that can execute in parallel.
type Wave struct {
	Index      int
	TaskIDs    []int
	IsCritical bool // true if wave contains critical path tasks
}
