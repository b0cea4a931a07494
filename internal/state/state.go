package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

const stateDir = ".fogsched"
const stateFile = "state.json"

// JobStatus represents the status of a simulated job.
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusCancelled JobStatus = "cancelled"
)

// RunState is the persistent state of the last fogsched run.
type RunState struct {
	RunID      string      `json:"run_id"`
	Algorithm  string      `json:"algorithm"`
	Scenario   string      `json:"scenario,omitempty"`
	StartedAt  time.Time   `json:"started_at"`
	Status     string      `json:"status"` // "running", "completed", "failed", "cancelled"
	TotalTasks int         `json:"total_tasks"`
	Makespan   float64     `json:"makespan"`
	TotalCost  float64     `json:"total_cost"`
	PortDelay  float64     `json:"port_delay"`
	Jobs       []*JobState `json:"jobs"`

	mu   sync.Mutex `json:"-"`
	path string     `json:"-"`
}

// JobState is one executed task, in submission order.
type JobState struct {
	TaskID     int       `json:"task_id"`
	Name       string    `json:"name,omitempty"`
	Status     JobStatus `json:"status"`
	Submission int       `json:"submission"`
	VMID       int       `json:"vm_id"`
	Datacenter int       `json:"datacenter"`
	Tier       string    `json:"tier,omitempty"`
	Start      float64   `json:"start"`
	Finish     float64   `json:"finish"`
	ExecTime   float64   `json:"exec_time"`
	Depth      int       `json:"depth"`
	Parents    []int     `json:"parents,omitempty"`
	Cost       float64   `json:"cost"`
}

// NewRun returns an in-memory RunState. Nothing is written until Save.
func NewRun(runID, algorithm string, totalTasks int) *RunState {
	return &RunState{
		RunID:      runID,
		Algorithm:  algorithm,
		StartedAt:  time.Now(),
		Status:     "running",
		TotalTasks: totalTasks,
		path:       filepath.Join(stateDir, stateFile),
	}
}

// New creates a new RunState and persists it.
func New(runID, algorithm string, totalTasks int) (*RunState, error) {
	s := NewRun(runID, algorithm, totalTasks)
	if err := s.Save(); err != nil {
		return nil, err
	}
	return s, nil
}

// Load reads existing state from disk.
func Load() (*RunState, error) {
	path := filepath.Join(stateDir, stateFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read state: %w", err)
	}

	var s RunState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse state: %w", err)
	}
	s.path = path
	return &s, nil
}

// Exists checks if a state file exists.
func Exists() bool {
	_, err := os.Stat(filepath.Join(stateDir, stateFile))
	return err == nil
}

// Save persists the current state to disk.
func (s *RunState) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	return os.WriteFile(s.path, data, 0644)
}

// SetStatus updates the overall run status.
func (s *RunState) SetStatus(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Status = status
}

// UpdateJob inserts or replaces a job, keeping jobs in submission order.
func (s *RunState) UpdateJob(js *JobState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, cur := range s.Jobs {
		if cur.TaskID == js.TaskID {
			s.Jobs[i] = js
			return
		}
	}
	s.Jobs = append(s.Jobs, js)
	sort.SliceStable(s.Jobs, func(a, b int) bool { return s.Jobs[a].Submission < s.Jobs[b].Submission })
}

// GetJob returns the job state for a task.
func (s *RunState) GetJob(taskID int) *JobState {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, js := range s.Jobs {
		if js.TaskID == taskID {
			return js
		}
	}
	return nil
}

// Count returns how many jobs are in the given status.
func (s *RunState) Count(status JobStatus) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, js := range s.Jobs {
		if js.Status == status {
			n++
		}
	}
	return n
}

// Finalize derives makespan and total cost from the recorded jobs.
func (s *RunState) Finalize() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Makespan, s.TotalCost = 0, 0
	for _, js := range s.Jobs {
		if js.Finish > s.Makespan {
			s.Makespan = js.Finish
		}
		s.TotalCost += js.Cost
	}
}

// Clean removes the state directory.
func Clean() error {
	return os.RemoveAll(stateDir)
}
