// Package scenario reads task graphs and VM rosters from JSON scenario files.
//
// A scenario looks like:
//
//	{
//	  "name": "montage-25",
//	  "sending_latency": 0.01,
//	  "vms":   [{"id": 0, "mips": 1000, "bandwidth": 100, "pes": 1, "datacenter": 2, "tier": "cloud", "cost_per_mips": 0.01}],
//	  "tasks": [{"id": 1, "length": 100, "children": [2], "files": [{"name": "a.fits", "size": 4096, "kind": "output"}]}]
//	}
//
// Unset task fields default to one PE, no offload restriction and no VM.
package scenario

import (
	"os"
	"strconv"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"go.uber.org/multierr"

	"github.com/joshharrison/fogsched/internal/errs"
	"github.com/joshharrison/fogsched/internal/graph"
)

// Scenario is a parsed scenario file.
type Scenario struct {
	Name  string
	Tasks []*graph.Task
	VMs   []*graph.VM
}

// Load reads and parses a scenario file.
func Load(path string, sendingLatency float64) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read scenario %s", path)
	}
	sc, err := Parse(data, sendingLatency)
	if err != nil {
		return nil, errors.Wrapf(err, "scenario %s", path)
	}
	if sc.Name == "" {
		sc.Name = path
	}
	return sc, nil
}

// Parse decodes a scenario. sendingLatency is used for tasks that set none,
// unless the scenario sets its own default.
func Parse(data []byte, sendingLatency float64) (*Scenario, error) {
	if !gjson.ValidBytes(data) {
		return nil, errs.Invalid("scenario is not valid JSON")
	}
	doc := gjson.ParseBytes(data)
	if v := doc.Get("sending_latency"); v.Exists() {
		sendingLatency = v.Float()
	}

	sc := &Scenario{Name: doc.Get("name").String()}
	var err error

	doc.Get("vms").ForEach(func(key, item gjson.Result) bool {
		vm, verr := parseVM(key.Int(), item)
		if verr != nil {
			err = multierr.Append(err, verr)
			return true
		}
		sc.VMs = append(sc.VMs, vm)
		return true
	})
	doc.Get("tasks").ForEach(func(key, item gjson.Result) bool {
		t, terr := parseTask(key.Int(), item, sendingLatency)
		if terr != nil {
			err = multierr.Append(err, terr)
			return true
		}
		sc.Tasks = append(sc.Tasks, t)
		return true
	})

	if len(sc.Tasks) == 0 {
		err = multierr.Append(err, errs.Invalid("scenario has no tasks"))
	}
	if err != nil {
		return nil, err
	}
	return sc, nil
}

// Graph builds the scenario's task graph.
func (sc *Scenario) Graph() (*graph.TaskGraph, error) {
	return graph.Build(sc.Tasks)
}

func parseVM(pos int64, item gjson.Result) (*graph.VM, error) {
	id := item.Get("id")
	if !id.Exists() {
		return nil, errs.Invalid("vm #%d has no id", pos)
	}
	return &graph.VM{
		ID:            int(id.Int()),
		MIPS:          item.Get("mips").Float(),
		Bandwidth:     item.Get("bandwidth").Float(),
		PEs:           intOr(item.Get("pes"), 1),
		Datacenter:    int(item.Get("datacenter").Int()),
		Tier:          item.Get("tier").String(),
		RequestedMIPS: item.Get("requested_mips").Float(),
		CostPerMIPS:   item.Get("cost_per_mips").Float(),
		State:         graph.Idle,
	}, nil
}

func parseTask(pos int64, item gjson.Result, sendingLatency float64) (*graph.Task, error) {
	id := item.Get("id")
	if !id.Exists() {
		return nil, errs.Invalid("task #%d has no id", pos)
	}
	t := graph.NewTask(int(id.Int()), item.Get("length").Float())
	t.Name = item.Get("name").String()
	t.PEs = intOr(item.Get("pes"), 1)
	t.Offload = intOr(item.Get("offload"), graph.Unassigned)
	t.VMID = intOr(item.Get("vm"), graph.Unassigned)
	t.SendingLatency = sendingLatency
	if v := item.Get("sending_latency"); v.Exists() {
		t.SendingLatency = v.Float()
	}
	t.Parents = ints(item.Get("parents"))
	t.Children = ints(item.Get("children"))

	var err error
	if tc := item.Get("transfer_costs"); tc.Exists() {
		t.TransferCosts = make(map[int]float64)
		tc.ForEach(func(key, value gjson.Result) bool {
			parent, perr := strconv.Atoi(key.String())
			if perr != nil {
				err = multierr.Append(err, errs.Invalid("task %d: transfer cost key %q is not a task id", t.ID, key.String()))
				return true
			}
			t.TransferCosts[parent] = value.Float()
			return true
		})
	}

	item.Get("files").ForEach(func(_, f gjson.Result) bool {
		file := graph.File{Name: f.Get("name").String(), Size: f.Get("size").Float(), Kind: graph.Input}
		switch kind := f.Get("kind").String(); kind {
		case "input", "":
		case "output":
			file.Kind = graph.Output
		default:
			err = multierr.Append(err, errs.Invalid("task %d: file %s has unknown kind %q", t.ID, file.Name, kind))
		}
		t.Files = append(t.Files, file)
		return true
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

func intOr(v gjson.Result, def int) int {
	if !v.Exists() {
		return def
	}
	return int(v.Int())
}

func ints(v gjson.Result) []int {
	var out []int
	for _, r := range v.Array() {
		out = append(out, int(r.Int()))
	}
	return out
}
