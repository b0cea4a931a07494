package planner

import (
	"math"
	"sort"

	log "github.com/sirupsen/logrus"

	"github.com/joshharrison/fogsched/internal/cost"
	"github.com/joshharrison/fogsched/internal/cpm"
	"github.com/joshharrison/fogsched/internal/errs"
	"github.com/joshharrison/fogsched/internal/graph"
	"github.com/joshharrison/fogsched/internal/session"
)

// OCS estimates start and finish times along the critical path, settling
// sibling branches by trying every ordering, then allocates VMs in
// estimated start order.
type OCS struct{}

// Plan implements Planner.
func (OCS) Plan(s *session.Session, g *graph.TaskGraph, vms []*graph.VM) (*Assignment, error) {
	m, err := cost.Estimate(g, vms)
	if err != nil {
		return nil, err
	}

	for _, t := range g.Tasks {
		t.EstStart, t.EstFinish, t.Estimated = 0, 0, false
	}

	if n := cpm.CountPaths(g, s.Options.MaxPaths); n > s.Options.MaxPaths {
		s.Log.WithFields(log.Fields{
			"max_paths": s.Options.MaxPaths,
			"tasks":     g.TaskCount(),
		}).Warn("too many root-to-leaf paths to enumerate")
		return nil, errs.Conflict("graph has more than %d root-to-leaf paths", s.Options.MaxPaths)
	}
	critical, _ := cpm.CriticalPath(g, m)
	e := &estimator{
		s:      s,
		g:      g,
		m:      m,
		index:  g.Index(),
		events: make(map[float64]bool),
	}

	for _, id := range critical {
		if err := e.resolve(id); err != nil {
			return nil, err
		}
	}
	if err := e.resolveRest(); err != nil {
		return nil, err
	}

	order := append([]int(nil), g.Order...)
	sort.SliceStable(order, func(a, b int) bool {
		return g.Tasks[order[a]].EstStart < g.Tasks[order[b]].EstStart
	})

	a, err := allocate(s, g, vms, m, order)
	if err != nil {
		return nil, err
	}
	a.CriticalPath = critical
	return a, nil
}

// estimator tracks the global set of committed event times.
type estimator struct {
	s      *session.Session
	g      *graph.TaskGraph
	m      *cost.Matrix
	index  map[int]int
	events map[float64]bool
}

// resolve estimates a task after estimating every unestimated ancestor.
func (e *estimator) resolve(id int) error {
	for !e.g.Task(id).Estimated {
		pending := e.unestimatedAncestors(id)
		if len(pending) == 0 {
			return e.commit(id)
		}
		if err := e.settle(e.ready(pending)); err != nil {
			return err
		}
	}
	return nil
}

// resolveRest estimates the tasks no critical task depends on, one ready
// frontier at a time.
func (e *estimator) resolveRest() error {
	for {
		var pending []int
		for _, id := range e.g.Order {
			if !e.g.Tasks[id].Estimated {
				pending = append(pending, id)
			}
		}
		if len(pending) == 0 {
			return nil
		}
		if err := e.settle(e.ready(pending)); err != nil {
			return err
		}
	}
}

func (e *estimator) unestimatedAncestors(id int) []int {
	seen := make(map[int]bool)
	var out []int
	queue := append([]int(nil), e.g.Task(id).Parents...)
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		if seen[p] {
			continue
		}
		seen[p] = true
		if e.g.Tasks[p].Estimated {
			continue
		}
		out = append(out, p)
		queue = append(queue, e.g.Tasks[p].Parents...)
	}
	sort.Slice(out, func(a, b int) bool { return e.index[out[a]] < e.index[out[b]] })
	return out
}

// ready keeps the tasks whose parents are all estimated.
func (e *estimator) ready(ids []int) []int {
	var out []int
	for _, id := range ids {
		ok := true
		for _, p := range e.g.Tasks[id].Parents {
			if !e.g.Tasks[p].Estimated {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, id)
		}
	}
	return out
}

// settle commits a set of simultaneously ready tasks. Two or more are
// committed in the ordering whose last task finishes earliest.
func (e *estimator) settle(ready []int) error {
	if len(ready) == 1 {
		return e.commit(ready[0])
	}

	limit := e.s.Options.MaxPermutationWidth
	if len(ready) > limit {
		e.s.Log.WithFields(log.Fields{
			"width": len(ready),
			"limit": limit,
			"tasks": ready,
		}).Warn("sibling set too wide for permutation search")
		return errs.Conflict("%d simultaneously ready tasks exceed max permutation width %d", len(ready), limit)
	}

	var best []int
	bestFinish := math.Inf(1)
	var evalErr error
	permutations(ready, func(perm []int) bool {
		scratch := make(map[float64]bool, len(e.events)+2*len(perm))
		for k := range e.events {
			scratch[k] = true
		}
		var last float64
		for _, id := range perm {
			start, finish, err := e.times(e.g.Tasks[id], scratch)
			if err != nil {
				evalErr = err
				return false
			}
			scratch[start], scratch[finish] = true, true
			last = finish
		}
		e.s.Metrics.PermutationsEvaluated.Inc(1)
		if last < bestFinish {
			best, bestFinish = append([]int(nil), perm...), last
		}
		return true
	})
	if evalErr != nil {
		return evalErr
	}

	for _, id := range best {
		if err := e.commit(id); err != nil {
			return err
		}
	}
	return nil
}

// times estimates a task against a set of committed event times: it starts
// when its last parent finishes and shifts by its sending latency until
// neither endpoint collides.
func (e *estimator) times(t *graph.Task, events map[float64]bool) (start, finish float64, err error) {
	start = e.s.Options.ReadyFloor
	for _, p := range t.Parents {
		if f := e.g.Tasks[p].EstFinish; f > start {
			start = f
		}
	}
	finish = start + e.m.Avg(t.ID)
	for events[start] || events[finish] {
		if t.SendingLatency <= 0 {
			return 0, 0, errs.Invalid("task %d collides at %v and has no sending latency to shift by", t.ID, start)
		}
		if start+t.SendingLatency == start || finish+t.SendingLatency == finish {
			return 0, 0, errs.Invalid("sending latency %v cannot move task %d at %v", t.SendingLatency, t.ID, start)
		}
		start += t.SendingLatency
		finish += t.SendingLatency
	}
	return start, finish, nil
}

func (e *estimator) commit(id int) error {
	t := e.g.Task(id)
	start, finish, err := e.times(t, e.events)
	if err != nil {
		return err
	}
	e.events[start], e.events[finish] = true, true
	t.EstStart, t.EstFinish, t.Estimated = start, finish, true
	return nil
}

// permutations visits every ordering of items in lexicographic order of
// positions until visit returns false.
func permutations(items []int, visit func([]int) bool) {
	perm := make([]int, 0, len(items))
	used := make([]bool, len(items))
	var rec func() bool
	rec = func() bool {
		if len(perm) == len(items) {
			return visit(perm)
		}
		for i, it := range items {
			if used[i] {
				continue
			}
			used[i] = true
			perm = append(perm, it)
			if !rec() {
				return false
			}
			perm = perm[:len(perm)-1]
			used[i] = false
		}
		return true
	}
	rec()
}
