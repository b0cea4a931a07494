package planner

import (
	"github.com/joshharrison/fogsched/internal/session"
	"github.com/joshharrison/fogsched/internal/timeline"
)

// Assignment is the output of a static planner.
type Assignment struct {
	Algorithm    session.Algorithm `json:"algorithm"`
	VMOf         map[int]int       `json:"vm_of"`
	Order        []int             `json:"order"` // allocation order, replayed by the Static heuristic
	Start        map[int]float64   `json:"start"`
	Finish       map[int]float64   `json:"finish"`
	Ranks        map[int]float64   `json:"ranks,omitempty"`
	CriticalPath []int             `json:"critical_path"`
	Makespan     float64           `json:"makespan"`

	Timelines timeline.Set `json:"-"`
}

func newAssignment(alg session.Algorithm, tl timeline.Set) *Assignment {
	return &Assignment{
		Algorithm: alg,
		VMOf:      make(map[int]int),
		Start:     make(map[int]float64),
		Finish:    make(map[int]float64),
		Timelines: tl,
	}
}
