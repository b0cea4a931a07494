package cpm

import (
	"math"
	"sort"

	"github.com/joshharrison/fogsched/internal/graph"
)

// Ranks computes the upward rank of every task: its average cost plus the
// costliest (transfer + rank) over its children. Exit tasks rank at their
// own average cost.
func Ranks(g *graph.TaskGraph, w Weights) map[int]float64 {
	ranks := make(map[int]float64, len(g.Tasks))

	var rank func(id int) float64
	rank = func(id int) float64 {
		if r, ok := ranks[id]; ok {
			return r
		}
		longest := 0.0
		for _, c := range g.Tasks[id].Children {
			if v := w.Transfer(id, c) + rank(c); v > longest {
				longest = v
			}
		}
		r := w.Avg(id) + longest
		ranks[id] = r
		return r
	}

	for _, id := range g.Order {
		rank(id)
	}
	return ranks
}

// RankOrder sorts tasks by non-ascending rank. Equal ranks keep discovery order.
func RankOrder(g *graph.TaskGraph, ranks map[int]float64) []int {
	order := append([]int(nil), g.Order...)
	sort.SliceStable(order, func(a, b int) bool {
		return ranks[order[a]] > ranks[order[b]]
	})
	return order
}

// RankPath follows upward ranks from the highest ranked root, stepping to the
// child that realizes the rank (transfer + child rank) at each node. The
// result is the heaviest root-to-leaf path; earlier roots and children win
// ties, as in Paths order.
func RankPath(g *graph.TaskGraph, w Weights, ranks map[int]float64) []int {
	if len(g.Roots) == 0 {
		return nil
	}
	cur := g.Roots[0]
	for _, r := range g.Roots[1:] {
		if ranks[r] > ranks[cur] {
			cur = r
		}
	}

	path := []int{cur}
	for {
		children := g.Tasks[cur].Children
		if len(children) == 0 {
			return path
		}
		next, best := children[0], math.Inf(-1)
		for _, c := range children {
			if v := w.Transfer(cur, c) + ranks[c]; v > best {
				next, best = c, v
			}
		}
		path = append(path, next)
		cur = next
	}
}

// CountPaths counts root-to-leaf paths, stopping at limit+1 so wide layered
// graphs cannot overflow the count.
func CountPaths(g *graph.TaskGraph, limit int) int {
	counts := make(map[int]int, len(g.Tasks))
	for i := len(g.Order) - 1; i >= 0; i-- {
		id := g.Order[i]
		children := g.Tasks[id].Children
		if len(children) == 0 {
			counts[id] = 1
			continue
		}
		n := 0
		for _, c := range children {
			n += counts[c]
			if n > limit {
				n = limit + 1
				break
			}
		}
		counts[id] = n
	}
	total := 0
	for _, r := range g.Roots {
		total += counts[r]
		if total > limit {
			return limit + 1
		}
	}
	return total
}

// Paths enumerates every root-to-leaf path. A branch point yields one path
// per reachable leaf, each carrying the shared prefix.
func Paths(g *graph.TaskGraph) [][]int {
	var paths [][]int
	var walk func(id int, prefix []int)
	walk = func(id int, prefix []int) {
		path := append(append([]int(nil), prefix...), id)
		children := g.Tasks[id].Children
		if len(children) == 0 {
			paths = append(paths, path)
			return
		}
		for _, c := range children {
			walk(c, path)
		}
	}
	for _, root := range g.Roots {
		walk(root, nil)
	}
	return paths
}

// PathWeight sums the average cost of each node plus the transfer cost to
// the next node along the path.
func PathWeight(path []int, w Weights) float64 {
	var total float64
	for i, id := range path {
		total += w.Avg(id)
		if i+1 < len(path) {
			total += w.Transfer(id, path[i+1])
		}
	}
	return total
}

// CriticalPath returns the heaviest root-to-leaf path. The first path
// enumerated wins ties.
func CriticalPath(g *graph.TaskGraph, w Weights) ([]int, float64) {
	var best []int
	bestWeight := -1.0
	for _, p := range Paths(g) {
		if pw := PathWeight(p, w); pw > bestWeight {
			best, bestWeight = p, pw
		}
	}
	return best, bestWeight
}
