package dispatch

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uber-go/tally/v4"

	"github.com/joshharrison/fogsched/internal/errs"
	"github.com/joshharrison/fogsched/internal/graph"
	"github.com/joshharrison/fogsched/internal/planner"
	"github.com/joshharrison/fogsched/internal/session"
)

func newSession(alg session.Algorithm) (*session.Session, *test.Hook) {
	logger, hook := test.NewNullLogger()
	return session.New(alg, session.DefaultOptions(), session.WithLogger(logger)), hook
}

func task(id int, length float64) *graph.Task {
	return graph.NewTask(id, length)
}

func vm(id int, mips float64) *graph.VM {
	return &graph.VM{ID: id, MIPS: mips, Bandwidth: 100, PEs: 1}
}

func ids(tasks []*graph.Task) []int {
	out := make([]int, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}

func TestFor(t *testing.T) {
	for alg, want := range map[session.Algorithm]Dispatcher{
		session.MinMin:     MinMin{},
		session.MaxMin:     MaxMin{},
		session.FCFS:       FCFS{},
		session.RoundRobin: RoundRobin{},
		session.HEFT:       Static{},
		session.OCS:        Static{},
		session.Static:     Static{},
	} {
		got, err := For(alg)
		require.NoError(t, err)
		assert.IsType(t, want, got, alg.String())
	}

	_, err := For(session.Algorithm(99))
	assert.True(t, errors.Is(err, errs.ErrInvalidInput))
}

func TestMinMin_SplitsDiamondSiblingsAcrossVMs(t *testing.T) {
	s, _ := newSession(session.MinMin)
	vms := []*graph.VM{vm(0, 10), vm(1, 10)}
	mid := []*graph.Task{task(2, 300), task(3, 100)}

	scheduled, remaining, err := MinMin{}.Dispatch(s, mid, vms)
	require.NoError(t, err)
	assert.Empty(t, remaining)
	assert.Equal(t, []int{3, 2}, ids(scheduled))
	assert.Equal(t, 0, mid[1].VMID, "shortest task takes the first idle VM")
	assert.Equal(t, 1, mid[0].VMID)
	assert.Equal(t, graph.Busy, vms[0].State)
	assert.Equal(t, graph.Busy, vms[1].State)
	assert.Equal(t, []int{3, 2}, s.Submissions())
	assert.Equal(t, 0, mid[1].Submission)
}

func TestMinMin_PrefersIdleVMWithMoreRequestedMIPS(t *testing.T) {
	s, _ := newSession(session.MinMin)
	a, b := vm(0, 10), vm(1, 10)
	b.RequestedMIPS = 500

	_, _, err := MinMin{}.Dispatch(s, []*graph.Task{task(1, 10)}, []*graph.VM{a, b})
	require.NoError(t, err)
	assert.Equal(t, graph.Idle, a.State)
	assert.Equal(t, graph.Busy, b.State)
}

func TestMinMin_FallsBackToFastestWhenAllBusy(t *testing.T) {
	s, _ := newSession(session.MinMin)
	vms := []*graph.VM{vm(0, 10), vm(1, 30), vm(2, 20)}
	for _, v := range vms {
		v.State = graph.Busy
	}
	tk := task(1, 10)

	_, _, err := MinMin{}.Dispatch(s, []*graph.Task{tk}, vms)
	require.NoError(t, err)
	assert.Equal(t, 1, tk.VMID)
}

func TestMinMin_HonorsOffloadAndPEs(t *testing.T) {
	s, _ := newSession(session.MinMin)
	cloud := vm(0, 100)
	edge := vm(1, 10)
	edge.Datacenter = 3
	edge.PEs = 2

	tk := task(1, 10)
	tk.Offload = 3
	tk.PEs = 2
	_, _, err := MinMin{}.Dispatch(s, []*graph.Task{tk}, []*graph.VM{cloud, edge})
	require.NoError(t, err)
	assert.Equal(t, 1, tk.VMID)

	stuck := task(2, 10)
	stuck.Offload = 7
	_, _, err = MinMin{}.Dispatch(s, []*graph.Task{stuck}, []*graph.VM{cloud, edge})
	assert.True(t, errors.Is(err, errs.ErrInfeasible))
}

func TestMaxMinAndFCFSOrdering(t *testing.T) {
	batch := func() []*graph.Task { return []*graph.Task{task(5, 20), task(3, 90), task(9, 20), task(1, 40)} }
	roster := func() []*graph.VM { return []*graph.VM{vm(0, 1), vm(1, 1), vm(2, 1), vm(3, 1)} }

	s, _ := newSession(session.MaxMin)
	scheduled, _, err := MaxMin{}.Dispatch(s, batch(), roster())
	require.NoError(t, err)
	assert.Equal(t, []int{3, 1, 5, 9}, ids(scheduled))

	s, _ = newSession(session.FCFS)
	scheduled, _, err = FCFS{}.Dispatch(s, batch(), roster())
	require.NoError(t, err)
	assert.Equal(t, []int{5, 3, 9, 1}, ids(scheduled))

	s, _ = newSession(session.MinMin)
	scheduled, _, err = MinMin{}.Dispatch(s, batch(), roster())
	require.NoError(t, err)
	assert.Equal(t, []int{5, 9, 1, 3}, ids(scheduled), "equal lengths keep arrival order")
}

func TestRoundRobin_StopsWhenNoVMIsIdle(t *testing.T) {
	s, _ := newSession(session.RoundRobin)
	vms := []*graph.VM{vm(4, 1), vm(2, 1)}
	batch := []*graph.Task{task(7, 1), task(3, 1), task(5, 1)}

	scheduled, remaining, err := RoundRobin{}.Dispatch(s, batch, vms)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 5}, ids(scheduled))
	assert.Equal(t, []int{7}, ids(remaining))
	assert.Equal(t, 2, batch[1].VMID)
	assert.Equal(t, 4, batch[2].VMID)
	assert.Equal(t, graph.Unassigned, batch[0].VMID)
	assert.Equal(t, 4, vms[0].ID, "caller's roster order is untouched")
}

func TestStatic_UnboundTaskFallsBackWithWarning(t *testing.T) {
	scope := tally.NewTestScope("", map[string]string{})
	logger, hook := test.NewNullLogger()
	s := session.New(session.Static, session.DefaultOptions(), session.WithLogger(logger), session.WithScope(scope))

	bound := task(1, 10)
	bound.VMID = 1
	unbound := task(2, 10)
	missing := task(3, 10)
	missing.VMID = 42

	_, _, err := Static{}.Dispatch(s, []*graph.Task{bound, unbound, missing}, []*graph.VM{vm(0, 1), vm(1, 1)})
	require.NoError(t, err)

	assert.Equal(t, 1, bound.VMID)
	assert.Equal(t, 0, unbound.VMID)
	assert.Equal(t, 0, missing.VMID)
	assert.EqualValues(t, 2, scope.Snapshot().Counters()["dispatch.unbound_fallbacks+"].Value())

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.True(t, errors.Is(entry.Data[logrus.ErrorKey].(error), errs.ErrUnbound))
}

func TestStatic_FollowsPlanOrder(t *testing.T) {
	s, _ := newSession(session.Static)
	s.PlanOrder = []int{4, 2, 8}
	batch := []*graph.Task{task(9, 1), task(8, 1), task(2, 1), task(4, 1)}
	for _, tk := range batch {
		tk.VMID = 0
	}

	scheduled, _, err := Static{}.Dispatch(s, batch, []*graph.VM{vm(0, 1)})
	require.NoError(t, err)
	assert.Equal(t, []int{4, 2, 8, 9}, ids(scheduled))
}

func TestStatic_ReplaysHEFTPlanWithoutReassignment(t *testing.T) {
	tasks := []*graph.Task{task(1, 100), task(2, 300), task(3, 100), task(4, 50)}
	tasks[0].Children = []int{2, 3}
	tasks[3].Parents = []int{2, 3}
	g, err := graph.Build(tasks)
	require.NoError(t, err)
	vms := []*graph.VM{vm(0, 10), vm(1, 10)}

	scope := tally.NewTestScope("", map[string]string{})
	logger, _ := test.NewNullLogger()
	s := session.New(session.HEFT, session.DefaultOptions(), session.WithLogger(logger), session.WithScope(scope))
	a, err := planner.HEFT{}.Plan(s, g, vms)
	require.NoError(t, err)

	var ready []*graph.Task
	for _, id := range g.Order {
		ready = append(ready, g.Tasks[id])
	}
	_, _, err = Static{}.Dispatch(s, ready, vms)
	require.NoError(t, err)

	for id, want := range a.VMOf {
		assert.Equal(t, want, g.Tasks[id].VMID, "task %d", id)
	}
	assert.Equal(t, a.Order, s.Submissions())
	if c, ok := scope.Snapshot().Counters()["dispatch.unbound_fallbacks+"]; ok {
		assert.EqualValues(t, 0, c.Value())
	}
}
