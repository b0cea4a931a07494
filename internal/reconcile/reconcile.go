// Package reconcile adjusts the times of executed jobs so that they respect
// a port delay between transmissions.
package reconcile

import (
	"math"

	"github.com/joshharrison/fogsched/internal/errs"
)

// Job is the executed form of a task as the reconciler sees it.
type Job struct {
	ID      int     `json:"id"`
	VMID    int     `json:"vm_id"`
	Parents []int   `json:"parents,omitempty"`
	Start   float64 `json:"start"`
	Finish  float64 `json:"finish"`
}

// Options controls the reconciler.
type Options struct {
	PortDelay float64
	// CheckParentStart also pushes a child past its parents' start times.
	CheckParentStart bool
}

// Reconcile returns a copy of jobs, given in submission order, shifted by
// whole port delays until no two jobs on a VM overlap, every child starts
// after its parents finish and no two event times coincide. A zero delay
// returns the jobs unchanged.
func Reconcile(jobs []Job, opts Options) ([]Job, error) {
	if opts.PortDelay < 0 {
		return nil, errs.Invalid("port delay %v is negative", opts.PortDelay)
	}
	out := make([]Job, len(jobs))
	copy(out, jobs)
	if opts.PortDelay == 0 {
		return out, nil
	}

	delay := opts.PortDelay
	done := make(map[int]*Job, len(out))
	vmFinish := make(map[int]float64)
	events := make(map[float64]bool, 2*len(out))

	for i := range out {
		j := &out[i]
		shift := func(n float64) error {
			start, finish := j.Start+n*delay, j.Finish+n*delay
			if start == j.Start || finish == j.Finish {
				return errs.Invalid("port delay %v cannot move job %d at %v", delay, j.ID, j.Start)
			}
			j.Start, j.Finish = start, finish
			return nil
		}
		// after shifts j by whole delays until it starts past bound.
		after := func(bound float64) error {
			for j.Start <= bound {
				if err := shift(math.Max(1, math.Ceil((bound-j.Start)/delay))); err != nil {
					return err
				}
			}
			return nil
		}

		if last, ok := vmFinish[j.VMID]; ok {
			if err := after(last); err != nil {
				return nil, err
			}
		}
		for _, pid := range j.Parents {
			p, ok := done[pid]
			if !ok {
				continue
			}
			if opts.CheckParentStart {
				if err := after(p.Start); err != nil {
					return nil, err
				}
			}
			if err := after(p.Finish); err != nil {
				return nil, err
			}
		}
		for events[j.Start] || events[j.Finish] {
			if err := shift(1); err != nil {
				return nil, err
			}
		}

		events[j.Start], events[j.Finish] = true, true
		if last, ok := vmFinish[j.VMID]; !ok || j.Finish > last {
			vmFinish[j.VMID] = j.Finish
		}
		done[j.ID] = j
	}
	return out, nil
}

// Shifted counts the jobs whose start differs between two reconciler passes
// over the same input.
func Shifted(before, after []Job) int {
	n := 0
	for i := range before {
		if i < len(after) && before[i].Start != after[i].Start {
			n++
		}
	}
	return n
}
