package graph

// Unassigned is the VM id of a task that has not been scheduled yet. It is
// also the Offload value meaning "any datacenter".
const Unassigned = -1

// FileKind tells whether a task reads or writes a file.
type FileKind int

const (
	Input FileKind = iota
	Output
)

// File is a data file attached to a task. Size is in bytes.
type File struct {
	Name string   `json:"name"`
	Size float64  `json:"size"`
	Kind FileKind `json:"kind"`
}

// Task is a single node of the workflow DAG.
type Task struct {
	ID     int     `json:"id"`
	Name   string  `json:"name,omitempty"`
	Length float64 `json:"length"` // million instructions
	PEs    int     `json:"pes"`

	Parents  []int `json:"parents,omitempty"`
	Children []int `json:"children,omitempty"`

	// TransferCosts holds precomputed transfer costs keyed by parent id.
	// When empty, transfer costs are derived from Files.
	TransferCosts map[int]float64 `json:"transfer_costs,omitempty"`
	Files         []File          `json:"files,omitempty"`

	VMID           int     `json:"vm_id"`
	Depth          int     `json:"depth"`
	Offload        int     `json:"offload"`
	SendingLatency float64 `json:"sending_latency,omitempty"`

	EstStart  float64 `json:"est_start"`
	EstFinish float64 `json:"est_finish"`
	Estimated bool    `json:"estimated"`

	Start      float64 `json:"start"`
	Finish     float64 `json:"finish"`
	Submission int     `json:"submission"`
}

// NewTask returns an unscheduled single-PE task with no offload constraint.
func NewTask(id int, length float64) *Task {
	return &Task{
		ID:         id,
		Length:     length,
		PEs:        1,
		VMID:       Unassigned,
		Offload:    Unassigned,
		Submission: -1,
	}
}

// VMState is the dispatch state of a VM.
type VMState int

const (
	Idle VMState = iota
	Busy
)

func (s VMState) String() string {
	if s == Busy {
		return "busy"
	}
	return "idle"
}

// VM is a virtual machine of the roster.
type VM struct {
	ID         int     `json:"id"`
	MIPS       float64 `json:"mips"`
	Bandwidth  float64 `json:"bandwidth"`
	PEs        int     `json:"pes"`
	State      VMState `json:"state"`
	Datacenter int     `json:"datacenter"`
	Tier       string  `json:"tier,omitempty"`

	// RequestedMIPS is the load currently requested from the VM, as reported
	// by whoever drives the roster. MinMin uses it to break ties between idle VMs.
	RequestedMIPS float64 `json:"requested_mips"`
	CostPerMIPS   float64 `json:"cost_per_mips"`
}

// TaskGraph is a directed acyclic graph of tasks addressed by id.
type TaskGraph struct {
	Tasks  map[int]*Task
	Order  []int // topological discovery order
	Roots  []int // tasks with no parents
	Leaves []int // tasks with no children
}
