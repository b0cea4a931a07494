package cpm

import (
	"math"
	"reflect"
	"testing"

	"github.com/joshharrison/fogsched/internal/graph"
)

// weights is a fixed table of node and edge weights.
type weights struct {
	avg      map[int]float64
	transfer map[[2]int]float64
}

func (w weights) Avg(id int) float64 {
	if v, ok := w.avg[id]; ok {
		return v
	}
	return 1
}

func (w weights) Transfer(p, c int) float64 {
	return w.transfer[[2]int{p, c}]
}

func buildTestGraph(t *testing.T, edges map[int][]int, ids ...int) *graph.TaskGraph {
	t.Helper()
	var tasks []*graph.Task
	for _, id := range ids {
		tk := graph.NewTask(id, 1)
		tk.Children = edges[id]
		tasks = append(tasks, tk)
	}
	g, err := graph.Build(tasks)
	if err != nil {
		t.Fatalf("build graph: %v", err)
	}
	return g
}

func diamond(t *testing.T) *graph.TaskGraph {
	// 1 -> 2 -> 4
	// 1 -> 3 -> 4
	return buildTestGraph(t, map[int][]int{1: {2, 3}, 2: {4}, 3: {4}}, 1, 2, 3, 4)
}

func TestAnalyze_LinearChain(t *testing.T) {
	g := buildTestGraph(t, map[int][]int{1: {2}, 2: {3}}, 1, 2, 3)

	result, err := Analyze(g, weights{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.TotalDuration != 3 {
		t.Errorf("expected total duration 3, got %v", result.TotalDuration)
	}
	if len(result.CriticalPath) != 3 {
		t.Errorf("expected 3 tasks on critical path, got %v", result.CriticalPath)
	}
	if len(result.Waves) != 3 {
		t.Errorf("expected 3 waves, got %d", len(result.Waves))
	}

	assertSchedule(t, result.Tasks[1], 0, 1, 0, 1, 0, true)
	assertSchedule(t, result.Tasks[2], 1, 2, 1, 2, 0, true)
	assertSchedule(t, result.Tasks[3], 2, 3, 2, 3, 0, true)
}

func TestAnalyze_WithCostsAndTransfers(t *testing.T) {
	// 1(5) -> 2(1) -> 4(1)
	// 1(5) -> 3(10) -> 4(1), with a transfer of 2 on 1 -> 3
	g := diamond(t)
	w := weights{
		avg:      map[int]float64{1: 5, 2: 1, 3: 10, 4: 1},
		transfer: map[[2]int]float64{{1, 3}: 2},
	}

	result, err := Analyze(g, w)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 5 + 2 + 10 + 1
	if result.TotalDuration != 18 {
		t.Errorf("expected total duration 18, got %v", result.TotalDuration)
	}
	assertSchedule(t, result.Tasks[2], 5, 6, 16, 17, 11, false)
	assertSchedule(t, result.Tasks[3], 7, 17, 7, 17, 0, true)
	if !reflect.DeepEqual(result.CriticalPath, []int{1, 3, 4}) {
		t.Errorf("expected critical path [1 3 4], got %v", result.CriticalPath)
	}
}

func TestAnalyze_ParallelIndependent(t *testing.T) {
	g := buildTestGraph(t, nil, 1, 2, 3)

	result, err := Analyze(g, weights{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Waves) != 1 {
		t.Fatalf("expected 1 wave, got %d", len(result.Waves))
	}
	if len(result.Waves[0].TaskIDs) != 3 {
		t.Errorf("expected 3 tasks in wave 0, got %v", result.Waves[0].TaskIDs)
	}
}

func TestRanks_ExitTasksRankAtOwnCost(t *testing.T) {
	g := diamond(t)
	w := weights{
		avg:      map[int]float64{1: 5, 2: 1, 3: 10, 4: 3},
		transfer: map[[2]int]float64{{1, 2}: 4, {2, 4}: 1, {3, 4}: 2},
	}

	ranks := Ranks(g, w)

	if ranks[4] != 3 {
		t.Errorf("expected exit rank 3, got %v", ranks[4])
	}
	if ranks[2] != 1+1+3 {
		t.Errorf("expected rank(2)=5, got %v", ranks[2])
	}
	if ranks[3] != 10+2+3 {
		t.Errorf("expected rank(3)=15, got %v", ranks[3])
	}
	// max(4+5, 0+15)
	if ranks[1] != 5+15 {
		t.Errorf("expected rank(1)=20, got %v", ranks[1])
	}
}

func TestRankOrder_TiesKeepDiscoveryOrder(t *testing.T) {
	g := buildTestGraph(t, nil, 3, 1, 2)
	order := RankOrder(g, map[int]float64{1: 5, 2: 7, 3: 5})
	if !reflect.DeepEqual(order, []int{2, 3, 1}) {
		t.Errorf("expected [2 3 1], got %v", order)
	}
}

func TestPaths_SplitAtBranchPoints(t *testing.T) {
	// 1 -> 2 -> 4
	// 1 -> 3 -> 4
	// 1 -> 3 -> 5
	g := buildTestGraph(t, map[int][]int{1: {2, 3}, 2: {4}, 3: {4, 5}}, 1, 2, 3, 4, 5)

	want := [][]int{{1, 2, 4}, {1, 3, 4}, {1, 3, 5}}
	if got := Paths(g); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestPaths_SingleNode(t *testing.T) {
	g := buildTestGraph(t, nil, 9)
	if got := Paths(g); !reflect.DeepEqual(got, [][]int{{9}}) {
		t.Errorf("expected [[9]], got %v", got)
	}
}

func TestCriticalPath(t *testing.T) {
	g := diamond(t)
	w := weights{
		avg:      map[int]float64{1: 1, 2: 3, 3: 2, 4: 1},
		transfer: map[[2]int]float64{{3, 4}: 5},
	}

	path, weight := CriticalPath(g, w)
	if !reflect.DeepEqual(path, []int{1, 3, 4}) {
		t.Errorf("expected [1 3 4], got %v", path)
	}
	if math.Abs(weight-9) > 1e-9 {
		t.Errorf("expected weight 9, got %v", weight)
	}
}

func TestCriticalPath_FirstWinsTies(t *testing.T) {
	g := diamond(t)
	path, _ := CriticalPath(g, weights{})
	if !reflect.DeepEqual(path, []int{1, 2, 4}) {
		t.Errorf("expected first path [1 2 4], got %v", path)
	}
}

// layered builds width-wide layers where every task feeds every task of the next layer.
func layered(t *testing.T, layers, width int) *graph.TaskGraph {
	t.Helper()
	edges := make(map[int][]int)
	var ids []int
	for l := 0; l < layers; l++ {
		for i := 0; i < width; i++ {
			id := l*width + i + 1
			ids = append(ids, id)
			if l+1 < layers {
				for j := 0; j < width; j++ {
					edges[id] = append(edges[id], (l+1)*width+j+1)
				}
			}
		}
	}
	return buildTestGraph(t, edges, ids...)
}

func TestRankPath_MatchesCriticalPath(t *testing.T) {
	g := diamond(t)
	w := weights{
		avg:      map[int]float64{1: 1, 2: 3, 3: 2, 4: 1},
		transfer: map[[2]int]float64{{3, 4}: 5},
	}
	want, _ := CriticalPath(g, w)
	if got := RankPath(g, w, Ranks(g, w)); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}

	tie, _ := CriticalPath(g, weights{})
	if got := RankPath(g, weights{}, Ranks(g, weights{})); !reflect.DeepEqual(got, tie) {
		t.Errorf("expected tie broken like Paths %v, got %v", tie, got)
	}
}

func TestRankPath_WideLayeredGraph(t *testing.T) {
	// 2^29 root-to-leaf paths; RankPath walks one of them.
	g := layered(t, 30, 2)
	path := RankPath(g, weights{}, Ranks(g, weights{}))
	if len(path) != 30 {
		t.Fatalf("expected a 30-task path, got %d", len(path))
	}
	if path[0] != 1 || path[29] != 59 {
		t.Errorf("expected path from 1 to 59, got %v", path)
	}
}

func TestCountPaths(t *testing.T) {
	if n := CountPaths(diamond(t), 100); n != 2 {
		t.Errorf("expected 2 paths in a diamond, got %d", n)
	}
	if n := CountPaths(layered(t, 3, 2), 100); n != 8 {
		t.Errorf("expected 8 paths, got %d", n)
	}
	if n := CountPaths(layered(t, 60, 2), 1000); n != 1001 {
		t.Errorf("expected the count to stop at 1001, got %d", n)
	}
}

func assertSchedule(t *testing.T, ts *TaskSchedule, es, ef, ls, lf, slack float64, critical bool) {
	t.Helper()
	if ts.ES != es {
		t.Errorf("task %d: expected ES=%v, got %v", ts.TaskID, es, ts.ES)
	}
	if ts.EF != ef {
		t.Errorf("task %d: expected EF=%v, got %v", ts.TaskID, ef, ts.EF)
	}
	if ts.LS != ls {
		t.Errorf("task %d: expected LS=%v, got %v", ts.TaskID, ls, ts.LS)
	}
	if ts.LF != lf {
		t.Errorf("task %d: expected LF=%v, got %v", ts.TaskID, lf, ts.LF)
	}
	if ts.Slack != slack {
		t.Errorf("task %d: expected slack=%v, got %v", ts.TaskID, slack, ts.Slack)
	}
	if ts.IsCritical != critical {
		t.Errorf("task %d: expected critical=%v, got %v", ts.TaskID, critical, ts.IsCritical)
	}
}
