// Package cost builds the computation and transfer cost tables that the
// planners rank and allocate with.
package cost

import (
	"fmt"
	"math"

	"github.com/joshharrison/fogsched/internal/errs"
	"github.com/joshharrison/fogsched/internal/graph"
)

// Infeasible is the computation cost of a task on a VM that cannot run it.
// It never wins a minimization.
var Infeasible = math.Inf(1)

// IsInfeasible reports whether c is the infeasible sentinel.
func IsInfeasible(c float64) bool {
	return math.IsInf(c, 1)
}

// Edge identifies a parent -> child dependency.
type Edge struct {
	Parent, Child int
}

// Matrix holds every cost a planning run needs.
type Matrix struct {
	Computation   map[int]map[int]float64 // task -> vm -> cost
	Average       map[int]float64         // task -> mean cost over feasible VMs
	Transfers     map[Edge]float64
	MeanBandwidth float64
}

// Estimate computes the cost matrix of a graph on a roster.
func Estimate(g *graph.TaskGraph, vms []*graph.VM) (*Matrix, error) {
	if err := graph.ValidateVMs(vms); err != nil {
		return nil, err
	}
	bw, err := MeanBandwidth(vms)
	if err != nil {
		return nil, err
	}
	comp := ComputationCosts(g, vms)
	avg, err := averages(g, comp)
	if err != nil {
		return nil, err
	}
	transfers, err := TransferCosts(g, bw)
	if err != nil {
		return nil, err
	}
	return &Matrix{
		Computation:   comp,
		Average:       avg,
		Transfers:     transfers,
		MeanBandwidth: bw,
	}, nil
}

// ComputationCosts returns length/mips for every (task, VM) pair, or
// Infeasible when the VM has fewer processing elements than the task needs.
func ComputationCosts(g *graph.TaskGraph, vms []*graph.VM) map[int]map[int]float64 {
	out := make(map[int]map[int]float64, len(g.Tasks))
	for id, t := range g.Tasks {
		row := make(map[int]float64, len(vms))
		for _, vm := range vms {
			if vm.PEs < t.PEs {
				row[vm.ID] = Infeasible
				continue
			}
			row[vm.ID] = t.Length / vm.MIPS
		}
		out[id] = row
	}
	return out
}

func averages(g *graph.TaskGraph, comp map[int]map[int]float64) (map[int]float64, error) {
	avg := make(map[int]float64, len(comp))
	for _, id := range g.Order {
		sum, n := 0.0, 0
		for _, c := range comp[id] {
			if IsInfeasible(c) {
				continue
			}
			sum += c
			n++
		}
		if n == 0 {
			return nil, errs.Infeasible("task %d needs %d PEs, no VM has them", id, g.Tasks[id].PEs)
		}
		avg[id] = sum / float64(n)
	}
	return avg, nil
}

// TransferCosts returns the cost of moving data along every edge of the graph.
// A child that carries a precomputed table must have an entry for each parent.
func TransferCosts(g *graph.TaskGraph, meanBandwidth float64) (map[Edge]float64, error) {
	out := make(map[Edge]float64)
	for _, id := range g.Order {
		child := g.Tasks[id]
		for _, pid := range child.Parents {
			e := Edge{Parent: pid, Child: id}
			if len(child.TransferCosts) > 0 {
				c, ok := child.TransferCosts[pid]
				if !ok {
					return nil, errs.Invalid("task %d has transfer costs but none for parent %d", id, pid)
				}
				out[e] = c
				continue
			}
			out[e] = fileTransferCost(g.Tasks[pid], child, meanBandwidth)
		}
	}
	return out, nil
}

// fileTransferCost sums the parent's output files consumed by the child and
// converts bytes to megabits over the mean bandwidth.
func fileTransferCost(parent, child *graph.Task, meanBandwidth float64) float64 {
	inputs := make(map[string]bool)
	for _, f := range child.Files {
		if f.Kind == graph.Input {
			inputs[f.Name] = true
		}
	}
	var bytes float64
	for _, f := range parent.Files {
		if f.Kind == graph.Output && inputs[f.Name] {
			bytes += f.Size
		}
	}
	if bytes == 0 {
		return 0
	}
	return bytes / 1e6 * 8 / meanBandwidth
}

// MeanBandwidth is the arithmetic mean of the roster's bandwidths.
func MeanBandwidth(vms []*graph.VM) (float64, error) {
	if len(vms) == 0 {
		return 0, errs.Invalid("empty VM roster")
	}
	var sum float64
	for _, vm := range vms {
		sum += vm.Bandwidth
	}
	return sum / float64(len(vms)), nil
}

// Comp returns the computation cost of a task on a VM.
func (m *Matrix) Comp(taskID, vmID int) float64 {
	c, ok := m.Computation[taskID][vmID]
	if !ok {
		panic(fmt.Sprintf("cost: no computation cost for task %d on VM %d", taskID, vmID))
	}
	return c
}

// Avg returns the mean computation cost of a task over feasible VMs.
func (m *Matrix) Avg(taskID int) float64 {
	c, ok := m.Average[taskID]
	if !ok {
		panic(fmt.Sprintf("cost: no average cost for task %d", taskID))
	}
	return c
}

// Transfer returns the transfer cost of an edge. Asking for an edge the
// estimator never saw means a planner and the estimator disagree on the graph.
func (m *Matrix) Transfer(parent, child int) float64 {
	c, ok := m.Transfers[Edge{Parent: parent, Child: child}]
	if !ok {
		panic(fmt.Sprintf("cost: no transfer cost for edge %d -> %d", parent, child))
	}
	return c
}
