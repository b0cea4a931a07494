// Package planner holds the static planners that assign every task of a
// graph to a VM before execution starts.
package planner

import (
	"fmt"
	"math"

	log "github.com/sirupsen/logrus"

	"github.com/joshharrison/fogsched/internal/cost"
	"github.com/joshharrison/fogsched/internal/errs"
	"github.com/joshharrison/fogsched/internal/graph"
	"github.com/joshharrison/fogsched/internal/session"
	"github.com/joshharrison/fogsched/internal/timeline"
)

// Planner plans a whole graph onto a roster in one synchronous pass.
type Planner interface {
	Plan(s *session.Session, g *graph.TaskGraph, vms []*graph.VM) (*Assignment, error)
}

// For returns the planner behind an algorithm. Static plans with HEFT.
func For(alg session.Algorithm) (Planner, error) {
	switch alg {
	case session.HEFT, session.Static:
		return HEFT{}, nil
	case session.OCS:
		return OCS{}, nil
	}
	return nil, errs.Invalid("%s is not a static planner", alg)
}

// allocate places each task, in the given order, on the VM where it
// finishes earliest, and commits the slot. The first VM wins ties.
func allocate(s *session.Session, g *graph.TaskGraph, vms []*graph.VM, m *cost.Matrix, order []int) (*Assignment, error) {
	a := newAssignment(s.Algorithm, timeline.NewSet(vms))

	for _, id := range order {
		t := g.Task(id)

		var best *graph.VM
		bestFinish, bestReady := math.Inf(1), 0.0
		for _, vm := range vms {
			c := m.Comp(id, vm.ID)
			if cost.IsInfeasible(c) {
				continue
			}
			ready := readyTime(s, a, m, t, vm.ID)
			finish := a.Timelines.Get(vm.ID).FinishTime(id, ready, c, false)
			if finish < bestFinish {
				best, bestFinish, bestReady = vm, finish, ready
			}
		}
		if best == nil {
			return nil, errs.Infeasible("no VM can run task %d", id)
		}

		ev := a.Timelines.Get(best.ID).Reserve(id, bestReady, m.Comp(id, best.ID))
		a.VMOf[id] = best.ID
		a.Start[id] = ev.Start
		a.Finish[id] = ev.Finish
		a.Order = append(a.Order, id)
		t.VMID = best.ID
	}

	a.Makespan = a.Timelines.Makespan()
	s.PlanOrder = append([]int(nil), a.Order...)
	s.Metrics.Plans.Inc(1)
	s.Metrics.TasksPlanned.Inc(int64(len(a.Order)))
	s.Log.WithFields(log.Fields{
		"tasks":    len(a.Order),
		"makespan": a.Makespan,
	}).Debug("plan allocated")
	return a, nil
}

// readyTime is the earliest a task's inputs can be on a VM: every parent has
// finished and, when the parent ran elsewhere, its output has been sent.
func readyTime(s *session.Session, a *Assignment, m *cost.Matrix, t *graph.Task, vmID int) float64 {
	ready := s.Options.ReadyFloor
	for _, p := range t.Parents {
		finish, ok := a.Finish[p]
		if !ok {
			panic(fmt.Sprintf("planner: parent %d of task %d allocated after it", p, t.ID))
		}
		if a.VMOf[p] != vmID {
			finish += m.Transfer(p, t.ID)
		}
		if finish > ready {
			ready = finish
		}
	}
	return ready
}
