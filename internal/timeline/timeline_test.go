package timeline

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshharrison/fogsched/internal/graph"
)

func seeded(events ...[2]float64) *Timeline {
	tl := New(0)
	for i, ev := range events {
		tl.insert(tl.Len(), Event{Start: ev[0], Finish: ev[1], TaskID: i + 100})
	}
	return tl
}

func TestFindSlot_Empty(t *testing.T) {
	start, index := New(0).FindSlot(3.5, 10)
	assert.Equal(t, 3.5, start)
	assert.Equal(t, 0, index)
}

func TestFindSlot_SingleEvent(t *testing.T) {
	tl := seeded([2]float64{10, 20})

	tests := []struct {
		name      string
		ready     float64
		duration  float64
		wantStart float64
		wantIndex int
	}{
		{"after the event", 25, 5, 25, 1},
		{"ready exactly at finish", 20, 5, 20, 1},
		{"fits before the event", 0, 10, 0, 0},
		{"too long to fit before", 2, 10, 20, 1},
		{"ready inside the event", 12, 1, 20, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, index := tl.FindSlot(tt.ready, tt.duration)
			assert.Equal(t, tt.wantStart, start)
			assert.Equal(t, tt.wantIndex, index)
		})
	}
}

func TestFindSlot_Gaps(t *testing.T) {
	// [0,10) gap [10,20) [20,30) gap [30,40) [40,50)
	tl := seeded([2]float64{0, 10}, [2]float64{20, 30}, [2]float64{40, 50})

	tests := []struct {
		name      string
		ready     float64
		duration  float64
		wantStart float64
		wantIndex int
	}{
		{"earliest gap", 0, 10, 10, 1},
		{"ready inside the first gap", 12, 5, 12, 1},
		{"second gap when the first is too short", 12, 9, 30, 2},
		{"ready inside a gap", 32, 5, 32, 2},
		{"ready inside a gap that is too short", 35, 6, 50, 3},
		{"nothing fits", 0, 11, 50, 3},
		{"after everything", 60, 1, 60, 3},
		{"ready inside an event", 25, 5, 30, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, index := tl.FindSlot(tt.ready, tt.duration)
			assert.Equal(t, tt.wantStart, start)
			assert.Equal(t, tt.wantIndex, index)
		})
	}
}

func TestFinishTime_DryRunDoesNotMutate(t *testing.T) {
	tl := seeded([2]float64{0, 10})
	finish := tl.FinishTime(1, 0, 5, false)
	assert.Equal(t, 15.0, finish)
	assert.Equal(t, 1, tl.Len())

	finish = tl.FinishTime(1, 0, 5, true)
	assert.Equal(t, 15.0, finish)
	assert.Equal(t, 2, tl.Len())
}

func TestReserve_KeepsStartOrder(t *testing.T) {
	tl := New(3)
	tl.Reserve(1, 20, 10)
	tl.Reserve(2, 0, 5)
	ev := tl.Reserve(3, 5, 10)

	assert.Equal(t, Event{Start: 5, Finish: 15, TaskID: 3, VMID: 3}, ev)
	events := tl.Events()
	require.Len(t, events, 3)
	assert.Equal(t, []int{2, 3, 1}, []int{events[0].TaskID, events[1].TaskID, events[2].TaskID})
	assert.NoError(t, tl.Validate())
}

func TestReserve_NeverOverlaps(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	tl := New(0)
	for i := 0; i < 500; i++ {
		ready := rng.Float64() * 200
		duration := rng.Float64() * 10
		ev := tl.Reserve(i, ready, duration)
		require.GreaterOrEqual(t, ev.Start, ready)
	}
	assert.NoError(t, tl.Validate())
}

func TestValidate_DetectsOverlap(t *testing.T) {
	tl := seeded([2]float64{0, 10}, [2]float64{5, 12})
	assert.Error(t, tl.Validate())
}

func TestSet(t *testing.T) {
	s := NewSet([]*graph.VM{{ID: 4}, {ID: 9}})
	s.Get(4).Reserve(1, 0, 10)
	s.Get(9).Reserve(2, 3, 20)

	assert.Equal(t, 23.0, s.Makespan())
	assert.NoError(t, s.Validate())
	assert.Panics(t, func() { s.Get(1) })
}
