// Package timeline keeps the committed execution intervals of each VM and
// finds the earliest slot a task fits in.
package timeline

import (
	"fmt"
	"sort"

	"github.com/joshharrison/fogsched/internal/graph"
)

// Event is a committed interval [Start, Finish) on a VM.
type Event struct {
	Start  float64 `json:"start"`
	Finish float64 `json:"finish"`
	TaskID int     `json:"task_id"`
	VMID   int     `json:"vm_id"`
}

// Timeline is the ordered, non-overlapping list of events of one VM.
type Timeline struct {
	VMID   int
	events []Event
}

// New returns an empty timeline for a VM.
func New(vmID int) *Timeline {
	return &Timeline{VMID: vmID}
}

// Events returns a copy of the committed events in start order.
func (tl *Timeline) Events() []Event {
	return append([]Event(nil), tl.events...)
}

// Len returns the number of committed events.
func (tl *Timeline) Len() int {
	return len(tl.events)
}

// FindSlot returns the earliest start >= ready at which a task of the given
// duration overlaps no committed event, and the index the event would take.
func (tl *Timeline) FindSlot(ready, duration float64) (start float64, index int) {
	n := len(tl.events)
	if n == 0 {
		return ready, 0
	}

	last := tl.events[n-1]
	start, index = ready, n
	if last.Finish > start {
		start = last.Finish
	}

	// Walk gaps backward; each adopted gap is earlier than the previous one.
	for i := n - 1; i > 0; i-- {
		prev, cur := tl.events[i-1], tl.events[i]
		if ready > prev.Finish {
			if ready+duration <= cur.Start {
				start, index = ready, i
			}
			break
		}
		if prev.Finish+duration <= cur.Start {
			start, index = prev.Finish, i
		}
	}

	if ready+duration <= tl.events[0].Start {
		start, index = ready, 0
	}
	return start, index
}

// FinishTime returns the finish time of a task placed in its earliest slot.
// With commit set the slot is reserved; otherwise the timeline is unchanged.
func (tl *Timeline) FinishTime(taskID int, ready, duration float64, commit bool) float64 {
	start, index := tl.FindSlot(ready, duration)
	if commit {
		tl.insert(index, Event{Start: start, Finish: start + duration, TaskID: taskID, VMID: tl.VMID})
	}
	return start + duration
}

// Reserve commits a task to its earliest slot and returns the event.
func (tl *Timeline) Reserve(taskID int, ready, duration float64) Event {
	start, index := tl.FindSlot(ready, duration)
	ev := Event{Start: start, Finish: start + duration, TaskID: taskID, VMID: tl.VMID}
	tl.insert(index, ev)
	return ev
}

func (tl *Timeline) insert(index int, ev Event) {
	tl.events = append(tl.events, Event{})
	copy(tl.events[index+1:], tl.events[index:])
	tl.events[index] = ev
}

// Validate reports the first pair of overlapping or out-of-order events.
func (tl *Timeline) Validate() error {
	for i := 1; i < len(tl.events); i++ {
		prev, cur := tl.events[i-1], tl.events[i]
		if cur.Start < prev.Start {
			return fmt.Errorf("VM %d: task %d starts before task %d", tl.VMID, cur.TaskID, prev.TaskID)
		}
		if cur.Start < prev.Finish {
			return fmt.Errorf("VM %d: task %d [%v,%v) overlaps task %d [%v,%v)",
				tl.VMID, cur.TaskID, cur.Start, cur.Finish, prev.TaskID, prev.Start, prev.Finish)
		}
	}
	return nil
}

// Set holds one timeline per VM.
type Set map[int]*Timeline

// NewSet returns an empty timeline for every VM of the roster.
func NewSet(vms []*graph.VM) Set {
	s := make(Set, len(vms))
	for _, vm := range vms {
		s[vm.ID] = New(vm.ID)
	}
	return s
}

// Get returns the timeline of a VM. Unknown VMs are a programming error.
func (s Set) Get(vmID int) *Timeline {
	tl, ok := s[vmID]
	if !ok {
		panic(fmt.Sprintf("timeline: unknown VM %d", vmID))
	}
	return tl
}

// Validate checks every timeline of the set.
func (s Set) Validate() error {
	ids := make([]int, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		if err := s[id].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Makespan returns the latest finish over all timelines.
func (s Set) Makespan() float64 {
	var m float64
	for _, tl := range s {
		if n := len(tl.events); n > 0 && tl.events[n-1].Finish > m {
			m = tl.events[n-1].Finish
		}
	}
	return m
}
