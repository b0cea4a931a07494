package cpm

import (
	"fmt"
	"math"
	"sort"

	"github.com/joshharrison/fogsched/internal/graph"
)

// slackEpsilon absorbs float rounding when deciding whether a task is critical.
const slackEpsilon = 1e-9

// Analyze performs critical path method analysis on a task graph. A task's
// duration is its average computation cost and every edge adds its transfer cost.
func Analyze(g *graph.TaskGraph, w Weights) (*CPMResult, error) {
	order := g.Order
	if len(order) != len(g.Tasks) {
		return nil, fmt.Errorf("topological order covers %d of %d tasks", len(order), len(g.Tasks))
	}

	result := &CPMResult{
		Tasks:     make(map[int]*TaskSchedule, len(order)),
		TopoOrder: order,
	}

	for _, id := range order {
		result.Tasks[id] = &TaskSchedule{TaskID: id}
	}

	// Forward pass: compute ES and EF
	for _, id := range order {
		ts := result.Tasks[id]
		es := 0.0
		for _, pred := range g.Tasks[id].Parents {
			if v := result.Tasks[pred].EF + w.Transfer(pred, id); v > es {
				es = v
			}
		}
		ts.ES = es
		ts.EF = es + w.Avg(id)
	}

	totalDuration := 0.0
	for _, ts := range result.Tasks {
		if ts.EF > totalDuration {
			totalDuration = ts.EF
		}
	}
	result.TotalDuration = totalDuration

	// Backward pass in reverse topological order
	for i := len(order) - 1; i >= 0; i-- {
		id := order[i]
		ts := result.Tasks[id]

		lf := totalDuration
		if succs := g.Tasks[id].Children; len(succs) > 0 {
			lf = math.Inf(1)
			for _, succ := range succs {
				if v := result.Tasks[succ].LS - w.Transfer(id, succ); v < lf {
					lf = v
				}
			}
		}
		ts.LF = lf
		ts.LS = lf - w.Avg(id)
		ts.Slack = ts.LS - ts.ES
		ts.IsCritical = math.Abs(ts.Slack) < slackEpsilon
	}

	for _, id := range order {
		if result.Tasks[id].IsCritical {
			result.CriticalPath = append(result.CriticalPath, id)
		}
	}

	result.Waves = computeWaves(result)

	return result, nil
}

// computeWaves groups tasks by their earliest start time.
func computeWaves(result *CPMResult) []Wave {
	esGroups := make(map[float64][]int)
	for _, id := range result.TopoOrder {
		es := result.Tasks[id].ES
		esGroups[es] = append(esGroups[es], id)
	}

	esValues := make([]float64, 0, len(esGroups))
	for es := range esGroups {
		esValues = append(esValues, es)
	}
	sort.Float64s(esValues)

	waves := make([]Wave, len(esValues))
	for i, es := range esValues {
		taskIDs := esGroups[es]

		hasCritical := false
		for _, id := range taskIDs {
			result.Tasks[id].Wave = i
			if result.Tasks[id].IsCritical {
				hasCritical = true
			}
		}

		// Critical tasks first within a wave
		sort.SliceStable(taskIDs, func(a, b int) bool {
			return result.Tasks[taskIDs[a]].IsCritical && !result.Tasks[taskIDs[b]].IsCritical
		})

		waves[i] = Wave{
			Index:      i,
			TaskIDs:    taskIDs,
			IsCritical: hasCritical,
		}
	}

	return waves
}
