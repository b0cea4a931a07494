package graph

import (
	"sort"
	"strconv"

	dag "github.com/begmaroman/go-dag"
	"go.uber.org/multierr"

	"github.com/joshharrison/fogsched/internal/errs"
)

// Build constructs a TaskGraph from tasks whose parent and child lists are
// already wired. Edges may be declared on either side; both are merged.
// The input order is the tie-break for every later ordering decision.
func Build(tasks []*Task) (*TaskGraph, error) {
	g := &TaskGraph{
		Tasks: make(map[int]*Task, len(tasks)),
	}

	var err error
	input := make(map[int]int, len(tasks))
	for i, t := range tasks {
		if _, dup := g.Tasks[t.ID]; dup {
			err = multierr.Append(err, errs.Invalid("duplicate task id %d", t.ID))
			continue
		}
		err = multierr.Append(err, validateTask(t))
		g.Tasks[t.ID] = t
		input[t.ID] = i
	}
	if err != nil {
		return nil, err
	}

	// Merge edges from both Parents and Children so a graph wired from
	// one side only is still complete.
	parents := make(map[int][]int)
	children := make(map[int][]int)
	edgeSet := make(map[[2]int]bool)
	addEdge := func(from, to int) {
		key := [2]int{from, to}
		if edgeSet[key] {
			return
		}
		edgeSet[key] = true
		children[from] = append(children[from], to)
		parents[to] = append(parents[to], from)
	}

	for _, t := range tasks {
		for _, c := range t.Children {
			if _, ok := g.Tasks[c]; !ok {
				err = multierr.Append(err, errs.Invalid("task %d lists unknown child %d", t.ID, c))
				continue
			}
			addEdge(t.ID, c)
		}
		for _, p := range t.Parents {
			if _, ok := g.Tasks[p]; !ok {
				err = multierr.Append(err, errs.Invalid("task %d lists unknown parent %d", t.ID, p))
				continue
			}
			addEdge(p, t.ID)
		}
	}
	if err != nil {
		return nil, err
	}

	for id, t := range g.Tasks {
		t.Parents = parents[id]
		t.Children = children[id]
		sort.Ints(t.Parents)
		sort.Ints(t.Children)
	}

	if err := g.guardAcyclic(tasks); err != nil {
		if cycle := g.DetectCycle(); cycle != nil {
			return nil, errs.Invalid("dependency cycle detected: %v", cycle)
		}
		return nil, err
	}

	g.Order = g.discoveryOrder(input)
	if len(g.Order) != len(g.Tasks) {
		return nil, errs.Invalid("graph has a cycle (%d of %d tasks sorted)", len(g.Order), len(g.Tasks))
	}

	for _, id := range g.Order {
		t := g.Tasks[id]
		if len(t.Parents) == 0 {
			g.Roots = append(g.Roots, id)
		}
		if len(t.Children) == 0 {
			g.Leaves = append(g.Leaves, id)
		}
		t.Depth = 1
		for _, p := range t.Parents {
			if d := g.Tasks[p].Depth + 1; d > t.Depth {
				t.Depth = d
			}
		}
	}

	return g, nil
}

func validateTask(t *Task) error {
	var err error
	if t.Length < 0 {
		err = multierr.Append(err, errs.Invalid("task %d has negative length %v", t.ID, t.Length))
	}
	if t.PEs < 0 {
		err = multierr.Append(err, errs.Invalid("task %d has negative PE count %d", t.ID, t.PEs))
	}
	if t.SendingLatency < 0 {
		err = multierr.Append(err, errs.Invalid("task %d has negative sending latency %v", t.ID, t.SendingLatency))
	}
	for p, c := range t.TransferCosts {
		if c < 0 {
			err = multierr.Append(err, errs.Invalid("task %d has negative transfer cost %v from %d", t.ID, c, p))
		}
	}
	for _, f := range t.Files {
		if f.Size < 0 {
			err = multierr.Append(err, errs.Invalid("task %d file %q has negative size", t.ID, f.Name))
		}
	}
	return err
}

// vertex adapts a task id to the go-dag vertex interface. The key is
// exported so go-dag's vertex hashing tells vertices apart.
type vertex struct{ Key string }

func (v *vertex) ID() string { return v.Key }

// guardAcyclic loads the edges into a go-dag DAG, which rejects any edge
// that would close a cycle.
func (g *TaskGraph) guardAcyclic(tasks []*Task) error {
	d := dag.NewDAG[*vertex]()
	for _, t := range tasks {
		if _, err := d.AddVertex(&vertex{Key: strconv.Itoa(t.ID)}); err != nil {
			return errs.Invalid("add task %d: %v", t.ID, err)
		}
	}
	for _, t := range tasks {
		for _, c := range g.Tasks[t.ID].Children {
			if err := d.AddEdge(strconv.Itoa(t.ID), strconv.Itoa(c)); err != nil {
				return errs.Invalid("add edge %d -> %d: %v", t.ID, c, err)
			}
		}
	}
	return nil
}

// discoveryOrder is Kahn's algorithm where ready tasks are taken in input order.
func (g *TaskGraph) discoveryOrder(input map[int]int) []int {
	inDegree := make(map[int]int, len(g.Tasks))
	var ready []int
	for id, t := range g.Tasks {
		inDegree[id] = len(t.Parents)
		if inDegree[id] == 0 {
			ready = append(ready, id)
		}
	}
	byInput := func(ids []int) {
		sort.Slice(ids, func(a, b int) bool { return input[ids[a]] < input[ids[b]] })
	}
	byInput(ready)

	order := make([]int, 0, len(g.Tasks))
	for len(ready) > 0 {
		node := ready[0]
		ready = ready[1:]
		order = append(order, node)

		for _, c := range g.Tasks[node].Children {
			inDegree[c]--
			if inDegree[c] == 0 {
				ready = append(ready, c)
			}
		}
		byInput(ready)
	}
	return order
}

// DetectCycle returns the cycle path if one exists, or nil if the graph is acyclic.
// Uses DFS with coloring: white (unvisited), gray (in progress), black (done).
func (g *TaskGraph) DetectCycle() []int {
	const (
		white = 0
		gray  = 1
		black = 2
	)

	color := make(map[int]int)
	parent := make(map[int]int)

	var dfs func(node int) []int
	dfs = func(node int) []int {
		color[node] = gray
		for _, next := range g.Tasks[node].Children {
			if color[next] == gray {
				cycle := []int{next, node}
				cur := node
				for cur != next {
					cur = parent[cur]
					cycle = append(cycle, cur)
				}
				for i, j := 0, len(cycle)-1; i < j; i, j = i+1, j-1 {
					cycle[i], cycle[j] = cycle[j], cycle[i]
				}
				return cycle
			}
			if color[next] == white {
				parent[next] = node
				if cycle := dfs(next); cycle != nil {
					return cycle
				}
			}
		}
		color[node] = black
		return nil
	}

	ids := make([]int, 0, len(g.Tasks))
	for id := range g.Tasks {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	for _, id := range ids {
		if color[id] == white {
			if cycle := dfs(id); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// TaskCount returns the number of tasks in the graph.
func (g *TaskGraph) TaskCount() int {
	return len(g.Tasks)
}

// Task returns the task with the given id. Asking for an id outside the
// graph is a programming error.
func (g *TaskGraph) Task(id int) *Task {
	t, ok := g.Tasks[id]
	if !ok {
		panic("graph: unknown task " + strconv.Itoa(id))
	}
	return t
}

// Index returns the position of every task in the discovery order.
func (g *TaskGraph) Index() map[int]int {
	idx := make(map[int]int, len(g.Order))
	for i, id := range g.Order {
		idx[id] = i
	}
	return idx
}

// Clone deep-copies the graph so several algorithms can run on the same input.
func (g *TaskGraph) Clone() *TaskGraph {
	c := &TaskGraph{
		Tasks:  make(map[int]*Task, len(g.Tasks)),
		Order:  append([]int(nil), g.Order...),
		Roots:  append([]int(nil), g.Roots...),
		Leaves: append([]int(nil), g.Leaves...),
	}
	for id, t := range g.Tasks {
		cp := *t
		cp.Parents = append([]int(nil), t.Parents...)
		cp.Children = append([]int(nil), t.Children...)
		cp.Files = append([]File(nil), t.Files...)
		if t.TransferCosts != nil {
			cp.TransferCosts = make(map[int]float64, len(t.TransferCosts))
			for k, v := range t.TransferCosts {
				cp.TransferCosts[k] = v
			}
		}
		c.Tasks[id] = &cp
	}
	return c
}
