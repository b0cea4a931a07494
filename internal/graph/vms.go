package graph

import (
	"sort"

	"go.uber.org/multierr"

	"github.com/joshharrison/fogsched/internal/errs"
)

// ValidateVMs checks that the roster is usable for planning.
func ValidateVMs(vms []*VM) error {
	if len(vms) == 0 {
		return errs.Invalid("empty VM roster")
	}
	var err error
	seen := make(map[int]bool, len(vms))
	for _, vm := range vms {
		if seen[vm.ID] {
			err = multierr.Append(err, errs.Invalid("duplicate VM id %d", vm.ID))
		}
		seen[vm.ID] = true
		if vm.MIPS <= 0 {
			err = multierr.Append(err, errs.Invalid("VM %d has non-positive MIPS %v", vm.ID, vm.MIPS))
		}
		if vm.Bandwidth <= 0 {
			err = multierr.Append(err, errs.Invalid("VM %d has non-positive bandwidth %v", vm.ID, vm.Bandwidth))
		}
		if vm.PEs < 0 {
			err = multierr.Append(err, errs.Invalid("VM %d has negative PE count %d", vm.ID, vm.PEs))
		}
		if vm.CostPerMIPS < 0 {
			err = multierr.Append(err, errs.Invalid("VM %d has negative cost per MIPS %v", vm.ID, vm.CostPerMIPS))
		}
	}
	return err
}

// FindVM returns the VM with the given id, or nil.
func FindVM(vms []*VM, id int) *VM {
	for _, vm := range vms {
		if vm.ID == id {
			return vm
		}
	}
	return nil
}

// SortedByID returns a copy of the roster ordered by id.
func SortedByID(vms []*VM) []*VM {
	out := append([]*VM(nil), vms...)
	sort.SliceStable(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out
}

// CloneVMs deep-copies a roster with every VM reset to idle.
func CloneVMs(vms []*VM) []*VM {
	out := make([]*VM, len(vms))
	for i, vm := range vms {
		cp := *vm
		cp.State = Idle
		out[i] = &cp
	}
	return out
}
