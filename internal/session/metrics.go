package session

import (
	"github.com/uber-go/tally/v4"
)

// Metrics contains the counters a scheduling session reports.
type Metrics struct {
	Plans        tally.Counter
	TasksPlanned tally.Counter
	// PermutationsEvaluated counts sibling orderings tried by the OCS planner.
	PermutationsEvaluated tally.Counter

	DispatchBatches  tally.Counter
	TasksDispatched  tally.Counter
	UnboundFallbacks tally.Counter

	ReconcileShifts tally.Counter
	Makespan        tally.Gauge
}

// NewMetrics returns a Metrics struct with all metrics rooted below the given scope.
func NewMetrics(scope tally.Scope) *Metrics {
	planScope := scope.SubScope("plan")
	dispatchScope := scope.SubScope("dispatch")
	reconcileScope := scope.SubScope("reconcile")

	return &Metrics{
		Plans:                 planScope.Counter("runs"),
		TasksPlanned:          planScope.Counter("tasks"),
		PermutationsEvaluated: planScope.Counter("permutations"),

		DispatchBatches:  dispatchScope.Counter("batches"),
		TasksDispatched:  dispatchScope.Counter("tasks"),
		UnboundFallbacks: dispatchScope.Counter("unbound_fallbacks"),

		ReconcileShifts: reconcileScope.Counter("shifts"),
		Makespan:        scope.Gauge("makespan"),
	}
}
