package planner

import (
	"github.com/joshharrison/fogsched/internal/cost"
	"github.com/joshharrison/fogsched/internal/cpm"
	"github.com/joshharrison/fogsched/internal/graph"
	"github.com/joshharrison/fogsched/internal/session"
)

// HEFT ranks tasks by upward rank and allocates them in rank order.
type HEFT struct{}

// Plan implements Planner.
func (HEFT) Plan(s *session.Session, g *graph.TaskGraph, vms []*graph.VM) (*Assignment, error) {
	m, err := cost.Estimate(g, vms)
	if err != nil {
		return nil, err
	}

	ranks := cpm.Ranks(g, m)
	a, err := allocate(s, g, vms, m, cpm.RankOrder(g, ranks))
	if err != nil {
		return nil, err
	}
	a.Ranks = ranks
	a.CriticalPath = cpm.RankPath(g, m, ranks)

	for id, t := range g.Tasks {
		t.EstStart = a.Start[id]
		t.EstFinish = a.Finish[id]
		t.Estimated = true
	}
	return a, nil
}
