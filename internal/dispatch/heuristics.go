package dispatch

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/joshharrison/fogsched/internal/errs"
	"github.com/joshharrison/fogsched/internal/graph"
	"github.com/joshharrison/fogsched/internal/session"
)

// MinMin dispatches the shortest ready task first.
type MinMin struct{}

// MaxMin dispatches the longest ready task first.
type MaxMin struct{}

// FCFS dispatches ready tasks in arrival order.
type FCFS struct{}

// Dispatch implements Dispatcher.
func (MinMin) Dispatch(s *session.Session, ready []*graph.Task, vms []*graph.VM) ([]*graph.Task, []*graph.Task, error) {
	return greedy(s, byLength(ready, func(a, b float64) bool { return a < b }), vms)
}

// Dispatch implements Dispatcher.
func (MaxMin) Dispatch(s *session.Session, ready []*graph.Task, vms []*graph.VM) ([]*graph.Task, []*graph.Task, error) {
	return greedy(s, byLength(ready, func(a, b float64) bool { return a > b }), vms)
}

// Dispatch implements Dispatcher.
func (FCFS) Dispatch(s *session.Session, ready []*graph.Task, vms []*graph.VM) ([]*graph.Task, []*graph.Task, error) {
	return greedy(s, append([]*graph.Task(nil), ready...), vms)
}

// byLength orders a copy of the batch by length. Earlier tasks win ties.
func byLength(ready []*graph.Task, less func(a, b float64) bool) []*graph.Task {
	out := append([]*graph.Task(nil), ready...)
	sort.SliceStable(out, func(i, j int) bool { return less(out[i].Length, out[j].Length) })
	return out
}

// greedy binds every task, in order, to the VM chosen by pickVM.
func greedy(s *session.Session, order []*graph.Task, vms []*graph.VM) ([]*graph.Task, []*graph.Task, error) {
	var scheduled []*graph.Task
	for _, t := range order {
		vm := pickVM(t, vms)
		if vm == nil {
			return nil, nil, errs.Infeasible("no VM satisfies task %d (offload %d, %d PEs)", t.ID, t.Offload, t.PEs)
		}
		bind(s, t, vm)
		scheduled = append(scheduled, t)
	}
	record(s, scheduled, nil)
	return scheduled, nil, nil
}

// pickVM returns the first idle feasible VM, replaced by any idle one with
// strictly more requested MIPS. With nothing idle it falls back to the
// fastest feasible VM.
func pickVM(t *graph.Task, vms []*graph.VM) *graph.VM {
	var candidates []*graph.VM
	for _, vm := range vms {
		if feasible(t, vm) {
			candidates = append(candidates, vm)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	var chosen *graph.VM
	for _, vm := range candidates {
		if vm.State != graph.Idle {
			continue
		}
		if chosen == nil || vm.RequestedMIPS > chosen.RequestedMIPS {
			chosen = vm
		}
	}
	if chosen != nil {
		return chosen
	}

	fast := candidates[0]
	for _, vm := range candidates[1:] {
		if vm.MIPS > fast.MIPS {
			fast = vm
		}
	}
	return fast
}

func feasible(t *graph.Task, vm *graph.VM) bool {
	if t.Offload != graph.Unassigned && t.Offload != vm.Datacenter {
		return false
	}
	return vm.PEs >= t.PEs
}

// RoundRobin hands tasks, by id, to idle VMs, by id, until none is idle.
type RoundRobin struct{}

// Dispatch implements Dispatcher.
func (RoundRobin) Dispatch(s *session.Session, ready []*graph.Task, vms []*graph.VM) ([]*graph.Task, []*graph.Task, error) {
	tasks := append([]*graph.Task(nil), ready...)
	sort.SliceStable(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
	roster := graph.SortedByID(vms)

	var scheduled []*graph.Task
	for i, t := range tasks {
		var idle *graph.VM
		for _, vm := range roster {
			if vm.State == graph.Idle {
				idle = vm
				break
			}
		}
		if idle == nil {
			remaining := tasks[i:]
			record(s, scheduled, remaining)
			return scheduled, remaining, nil
		}
		bind(s, t, idle)
		scheduled = append(scheduled, t)
	}
	record(s, scheduled, nil)
	return scheduled, nil, nil
}

// Static replays the bindings of a static plan in plan order.
type Static struct{}

// Dispatch implements Dispatcher. A task whose VM is missing from the roster
// falls back to VM 0, or to the first roster VM when there is no VM 0.
func (Static) Dispatch(s *session.Session, ready []*graph.Task, vms []*graph.VM) ([]*graph.Task, []*graph.Task, error) {
	if len(vms) == 0 {
		return nil, nil, errs.Invalid("empty VM roster")
	}

	pos := s.PlanPosition()
	rank := func(t *graph.Task) int {
		if p, ok := pos[t.ID]; ok {
			return p
		}
		return len(pos)
	}
	order := append([]*graph.Task(nil), ready...)
	sort.SliceStable(order, func(i, j int) bool { return rank(order[i]) < rank(order[j]) })

	fallback := graph.FindVM(vms, 0)
	if fallback == nil {
		fallback = vms[0]
	}

	for _, t := range order {
		vm := graph.FindVM(vms, t.VMID)
		if t.VMID < 0 || vm == nil {
			err := errors.Wrapf(errs.ErrUnbound, "task %d is bound to VM %d", t.ID, t.VMID)
			s.Log.WithError(err).WithField("fallback_vm", fallback.ID).Warn("task not matched to a VM, binding to fallback")
			s.Metrics.UnboundFallbacks.Inc(1)
			vm = fallback
		}
		bind(s, t, vm)
	}
	record(s, order, nil)
	return order, nil, nil
}
