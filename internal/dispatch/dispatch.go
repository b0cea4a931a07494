// Package dispatch binds batches of ready tasks to VMs while a workflow runs.
package dispatch

import (
	log "github.com/sirupsen/logrus"

	"github.com/joshharrison/fogsched/internal/errs"
	"github.com/joshharrison/fogsched/internal/graph"
	"github.com/joshharrison/fogsched/internal/session"
)

// Dispatcher binds ready tasks to VMs. Tasks it cannot place in this batch
// come back in remaining and are offered again with the next batch.
type Dispatcher interface {
	Dispatch(s *session.Session, ready []*graph.Task, vms []*graph.VM) (scheduled, remaining []*graph.Task, err error)
}

// For returns the dispatcher behind an algorithm. The static planners all
// dispatch with Static, which replays their bindings.
func For(alg session.Algorithm) (Dispatcher, error) {
	switch alg {
	case session.MinMin:
		return MinMin{}, nil
	case session.MaxMin:
		return MaxMin{}, nil
	case session.FCFS:
		return FCFS{}, nil
	case session.RoundRobin:
		return RoundRobin{}, nil
	case session.HEFT, session.OCS, session.Static:
		return Static{}, nil
	}
	return nil, errs.Invalid("no dispatcher for algorithm %s", alg)
}

// bind records the VM on the task and its submission index on the session.
func bind(s *session.Session, t *graph.Task, vm *graph.VM) {
	vm.State = graph.Busy
	t.VMID = vm.ID
	t.Submission = s.Submit(t.ID)
}

func record(s *session.Session, scheduled, remaining []*graph.Task) {
	s.Metrics.DispatchBatches.Inc(1)
	s.Metrics.TasksDispatched.Inc(int64(len(scheduled)))
	s.Log.WithFields(log.Fields{
		"scheduled": len(scheduled),
		"remaining": len(remaining),
	}).Debug("batch dispatched")
}
