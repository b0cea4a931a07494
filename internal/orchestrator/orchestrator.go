// Package orchestrator simulates the execution of a task graph on a VM roster
// under one scheduling algorithm, then reconciles the observed times.
package orchestrator

import (
	"container/heap"
	"context"
	"fmt"
	"math"
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/joshharrison/fogsched/internal/cost"
	"github.com/joshharrison/fogsched/internal/dispatch"
	"github.com/joshharrison/fogsched/internal/errs"
	"github.com/joshharrison/fogsched/internal/graph"
	"github.com/joshharrison/fogsched/internal/planner"
	"github.com/joshharrison/fogsched/internal/reconcile"
	"github.com/joshharrison/fogsched/internal/session"
	"github.com/joshharrison/fogsched/internal/state"
	"github.com/joshharrison/fogsched/internal/ui"
)

// Orchestrator drives one simulated run. It writes VM ids and times into the
// graph's tasks and states into the roster, so callers comparing algorithms
// should hand each run its own clones.
type Orchestrator struct {
	Session *session.Session
	Graph   *graph.TaskGraph
	VMs     []*graph.VM
	Config  Config

	matrix *cost.Matrix
}

// New creates a new Orchestrator.
func New(s *session.Session, g *graph.TaskGraph, vms []*graph.VM, cfg Config) *Orchestrator {
	return &Orchestrator{
		Session: s,
		Graph:   g,
		VMs:     vms,
		Config:  cfg,
	}
}

// Run plans the graph when the algorithm is a static planner, then releases
// tasks to the dispatcher in ready batches: one batch per completion instant.
// Jobs are reconciled in submission order once every task has finished.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	s, g := o.Session, o.Graph

	m, err := cost.Estimate(g, o.VMs)
	if err != nil {
		return nil, err
	}
	o.matrix = m

	res := &Result{State: state.NewRun(s.ID, s.Algorithm.String(), g.TaskCount())}
	res.State.PortDelay = s.Options.PortDelay

	if s.Algorithm.IsPlanner() {
		p, err := planner.For(s.Algorithm)
		if err != nil {
			return nil, err
		}
		if res.Assignment, err = p.Plan(s, g, o.VMs); err != nil {
			return nil, errors.Wrapf(err, "plan with %s", s.Algorithm)
		}
	}
	d, err := dispatch.For(s.Algorithm)
	if err != nil {
		return nil, err
	}

	for _, vm := range o.VMs {
		vm.State = graph.Idle
	}

	// Number of unfinished parents per task
	pending := make(map[int]int, len(g.Tasks))
	var batch []*graph.Task
	for _, id := range g.Order {
		pending[id] = len(g.Tasks[id].Parents)
		if pending[id] == 0 {
			batch = append(batch, g.Tasks[id])
		}
	}

	queue := &completionQueue{}
	heap.Init(queue)
	vmFree := make(map[int]float64, len(o.VMs))
	load := make(map[int]int, len(o.VMs))
	clock := s.Options.ReadyFloor
	total := len(g.Tasks)
	finished := 0

	if !o.Config.Quiet {
		fmt.Fprintf(os.Stderr, "\n🚀 %s (%d tasks, %d VMs, %s)\n", ui.BoldCyan("Simulation started"), total, len(o.VMs), s.Algorithm)
	}

	for finished < total {
		if err := ctx.Err(); err != nil {
			res.State.SetStatus("cancelled")
			return res, fmt.Errorf("cancelled: %w", err)
		}

		if len(batch) > 0 {
			scheduled, remaining, err := d.Dispatch(s, batch, o.VMs)
			if err != nil {
				res.State.SetStatus("failed")
				return res, errors.Wrapf(err, "dispatch at t=%v", clock)
			}
			for _, t := range scheduled {
				c, err := o.bind(t, clock, vmFree)
				if err != nil {
					res.State.SetStatus("failed")
					return res, err
				}
				load[c.vmID]++
				heap.Push(queue, c)
			}
			batch = remaining
		}

		// Nothing in flight but tasks remain: no VM will ever free up for them
		if queue.Len() == 0 {
			s.Log.WithFields(log.Fields{
				"finished": finished,
				"total":    total,
				"waiting":  len(batch),
			}).Warn("simulation stalled")
			res.State.SetStatus("failed")
			return res, errors.Errorf("no progress at t=%v: %d of %d tasks finished, %d waiting", clock, finished, total, len(batch))
		}

		next := heap.Pop(queue).(*completion)
		done := []*completion{next}
		for queue.Len() > 0 && (*queue)[0].finish == next.finish {
			done = append(done, heap.Pop(queue).(*completion))
		}
		clock = next.finish

		for _, c := range done {
			finished++
			t := g.Tasks[c.taskID]
			t.Start, t.Finish = c.start, c.finish

			load[c.vmID]--
			if load[c.vmID] == 0 {
				graph.FindVM(o.VMs, c.vmID).State = graph.Idle
			}
			if !o.Config.Quiet {
				fmt.Fprintf(os.Stderr, "  ✅ %s %s %s\n", ui.TaskPrefix(t.ID), ui.Green("Completed"),
					ui.Dim(fmt.Sprintf("(VM %d, %.2f → %.2f)", c.vmID, c.start, c.finish)))
			}

			for _, child := range t.Children {
				pending[child]--
				if pending[child] == 0 {
					batch = append(batch, g.Tasks[child])
				}
			}
		}
	}

	if err := o.reconcile(res); err != nil {
		res.State.SetStatus("failed")
		return res, err
	}

	res.State.Finalize()
	res.State.SetStatus("completed")
	s.Metrics.Makespan.Update(res.State.Makespan)
	s.Log.WithFields(log.Fields{
		"makespan":   res.State.Makespan,
		"total_cost": res.State.TotalCost,
		"shifted":    res.Shifted,
	}).Info("run completed")
	return res, nil
}

// bind computes when a dispatched task runs on its VM: after the VM's queue
// drains, after the dispatch instant and once every parent's output arrived.
func (o *Orchestrator) bind(t *graph.Task, clock float64, vmFree map[int]float64) (*completion, error) {
	exec := o.matrix.Comp(t.ID, t.VMID)
	if cost.IsInfeasible(exec) {
		return nil, errs.Infeasible("task %d was dispatched to VM %d, which cannot run it", t.ID, t.VMID)
	}

	start := math.Max(clock, vmFree[t.VMID])
	for _, p := range t.Parents {
		parent := o.Graph.Tasks[p]
		ready := parent.Finish
		if parent.VMID != t.VMID {
			ready += o.matrix.Transfer(p, t.ID)
		}
		start = math.Max(start, ready)
	}
	finish := start + exec
	vmFree[t.VMID] = finish

	return &completion{taskID: t.ID, vmID: t.VMID, start: start, finish: finish}, nil
}

// reconcile applies the port delay to the observed times and records every
// job on the run state.
func (o *Orchestrator) reconcile(res *Result) error {
	s, g := o.Session, o.Graph

	subs := s.Submissions()
	jobs := make([]reconcile.Job, 0, len(subs))
	for _, id := range subs {
		t := g.Tasks[id]
		jobs = append(jobs, reconcile.Job{ID: id, VMID: t.VMID, Parents: t.Parents, Start: t.Start, Finish: t.Finish})
	}

	adjusted, err := reconcile.Reconcile(jobs, reconcile.Options{
		PortDelay:        s.Options.PortDelay,
		CheckParentStart: s.Options.CheckParentStart,
	})
	if err != nil {
		return err
	}
	res.Shifted = reconcile.Shifted(jobs, adjusted)
	s.Metrics.ReconcileShifts.Inc(int64(res.Shifted))

	for _, j := range adjusted {
		t := g.Tasks[j.ID]
		t.Start, t.Finish = j.Start, j.Finish
		vm := graph.FindVM(o.VMs, t.VMID)
		res.State.UpdateJob(&state.JobState{
			TaskID:     t.ID,
			Name:       t.Name,
			Status:     state.StatusCompleted,
			Submission: t.Submission,
			VMID:       vm.ID,
			Datacenter: vm.Datacenter,
			Tier:       vm.Tier,
			Start:      j.Start,
			Finish:     j.Finish,
			ExecTime:   j.Finish - j.Start,
			Depth:      t.Depth,
			Parents:    t.Parents,
			Cost:       t.Length * vm.CostPerMIPS,
		})
	}
	return nil
}
