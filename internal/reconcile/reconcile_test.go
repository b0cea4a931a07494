package reconcile

import (
	"math/rand"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshharrison/fogsched/internal/errs"
)

func TestReconcile_PortDelayPushesSecondJob(t *testing.T) {
	jobs := []Job{
		{ID: 1, VMID: 0, Start: 0, Finish: 10},
		{ID: 2, VMID: 0, Start: 8, Finish: 18},
	}

	out, err := Reconcile(jobs, Options{PortDelay: 5, CheckParentStart: true})
	require.NoError(t, err)

	assert.Equal(t, Job{ID: 1, VMID: 0, Start: 0, Finish: 10}, out[0])
	assert.Equal(t, 13.0, out[1].Start)
	assert.Equal(t, 23.0, out[1].Finish)
	assert.Equal(t, 8.0, jobs[1].Start, "input is not modified")
	assert.Equal(t, 1, Shifted(jobs, out))
}

func TestReconcile_ZeroDelayIsNoOp(t *testing.T) {
	jobs := []Job{
		{ID: 1, VMID: 0, Start: 0, Finish: 10},
		{ID: 2, VMID: 0, Start: 0, Finish: 10},
	}
	out, err := Reconcile(jobs, Options{})
	require.NoError(t, err)
	assert.Equal(t, jobs, out)
}

func TestReconcile_NegativeDelay(t *testing.T) {
	_, err := Reconcile(nil, Options{PortDelay: -1})
	assert.True(t, errors.Is(err, errs.ErrInvalidInput))
}

func TestReconcile_DelayBelowFloatSpacing(t *testing.T) {
	jobs := []Job{
		{ID: 1, VMID: 0, Start: 1e17, Finish: 2e17},
		{ID: 2, VMID: 1, Start: 1e17, Finish: 3e17},
	}
	_, err := Reconcile(jobs, Options{PortDelay: 1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrInvalidInput))
}

func TestReconcile_LargeGapInFewSteps(t *testing.T) {
	jobs := []Job{
		{ID: 1, VMID: 0, Start: 0, Finish: 1e9},
		{ID: 2, VMID: 0, Start: 0, Finish: 1},
	}
	out, err := Reconcile(jobs, Options{PortDelay: 1e-3})
	require.NoError(t, err)
	assert.Greater(t, out[1].Start, 1e9)
	assert.InDelta(t, 1e9, out[1].Start, 0.01)
	assert.InDelta(t, out[1].Start+1, out[1].Finish, 1e-6)
}

func TestReconcile_ChildAfterParentAcrossVMs(t *testing.T) {
	jobs := []Job{
		{ID: 1, VMID: 0, Start: 0, Finish: 10},
		{ID: 2, VMID: 1, Parents: []int{1}, Start: 10, Finish: 15},
	}
	out, err := Reconcile(jobs, Options{PortDelay: 2})
	require.NoError(t, err)
	assert.Equal(t, 12.0, out[1].Start)
	assert.Equal(t, 17.0, out[1].Finish)
}

func TestReconcile_ParentChecksAgreeOnWellFormedJobs(t *testing.T) {
	// A parent never starts after it finishes, so the start check only
	// matters for malformed input. Both variants clear the parent's finish.
	jobs := []Job{
		{ID: 1, VMID: 0, Start: 4, Finish: 5},
		{ID: 2, VMID: 1, Parents: []int{1}, Start: 1, Finish: 2},
	}
	on, err := Reconcile(jobs, Options{PortDelay: 3, CheckParentStart: true})
	require.NoError(t, err)
	off, err := Reconcile(jobs, Options{PortDelay: 3})
	require.NoError(t, err)

	assert.Equal(t, 7.0, on[1].Start)
	assert.Equal(t, on, off)

	inverted := []Job{
		{ID: 1, VMID: 0, Start: 9, Finish: 5},
		{ID: 2, VMID: 1, Parents: []int{1}, Start: 6, Finish: 7},
	}
	on, err = Reconcile(inverted, Options{PortDelay: 1, CheckParentStart: true})
	require.NoError(t, err)
	off, err = Reconcile(inverted, Options{PortDelay: 1})
	require.NoError(t, err)
	assert.Equal(t, 10.0, on[1].Start)
	assert.Equal(t, 6.0, off[1].Start)
}

func TestReconcile_EventTimesAreUnique(t *testing.T) {
	jobs := []Job{
		{ID: 1, VMID: 0, Start: 0, Finish: 10},
		{ID: 2, VMID: 1, Start: 0, Finish: 10},
		{ID: 3, VMID: 2, Start: 10, Finish: 20},
	}
	out, err := Reconcile(jobs, Options{PortDelay: 1})
	require.NoError(t, err)

	assert.Equal(t, 1.0, out[1].Start)
	assert.Equal(t, 11.0, out[1].Finish)
	// 3 starts on 1's finish at 10, then on 2's finish at 11.
	assert.Equal(t, 12.0, out[2].Start)
}

func randomJobs(rng *rand.Rand, n, vms int) []Job {
	jobs := make([]Job, n)
	for i := range jobs {
		start := float64(rng.Intn(50))
		jobs[i] = Job{ID: i, VMID: rng.Intn(vms), Start: start, Finish: start + float64(1+rng.Intn(20))}
		for p := 0; p < i; p++ {
			if rng.Float64() < 0.15 {
				jobs[i].Parents = append(jobs[i].Parents, p)
			}
		}
	}
	return jobs
}

func TestReconcile_RandomInvariantsAndIdempotence(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for round := 0; round < 50; round++ {
		opts := Options{PortDelay: float64(1 + rng.Intn(5)), CheckParentStart: round%2 == 0}
		out, err := Reconcile(randomJobs(rng, 5+rng.Intn(25), 1+rng.Intn(4)), opts)
		require.NoError(t, err)

		byID := make(map[int]Job, len(out))
		seen := make(map[float64]int)
		lastOnVM := make(map[int]float64)
		for _, j := range out {
			if last, ok := lastOnVM[j.VMID]; ok {
				assert.Greater(t, j.Start, last, "job %d overlaps on VM %d", j.ID, j.VMID)
			}
			if j.Finish > lastOnVM[j.VMID] {
				lastOnVM[j.VMID] = j.Finish
			}
			for _, p := range j.Parents {
				assert.Greater(t, j.Start, byID[p].Finish, "job %d starts before parent %d finishes", j.ID, p)
			}
			for _, v := range []float64{j.Start, j.Finish} {
				if other, dup := seen[v]; dup {
					t.Errorf("jobs %d and %d share event time %v", j.ID, other, v)
				}
				seen[v] = j.ID
			}
			byID[j.ID] = j
		}

		again, err := Reconcile(out, opts)
		require.NoError(t, err)
		assert.Equal(t, out, again)
	}
}
