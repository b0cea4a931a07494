package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/joshharrison/fogsched/internal/planner"
	"github.com/joshharrison/fogsched/internal/state"
	"github.com/joshharrison/fogsched/internal/ui"
)

// Reporter renders the outcome of a fogsched run.
type Reporter struct {
	State *state.RunState
	// Plan is the static plan behind the run, nil for online heuristics.
	Plan *planner.Assignment
}

// New creates a new Reporter.
func New(st *state.RunState, plan *planner.Assignment) *Reporter {
	return &Reporter{State: st, Plan: plan}
}

// PrintStatus writes a terminal-friendly job table.
func (r *Reporter) PrintStatus(w io.Writer) {
	completed := r.State.Count(state.StatusCompleted)
	fmt.Fprintf(w, "%s %s %s — %d of %d jobs complete",
		ui.BoldCyan("🌫  fogsched"),
		ui.Dim(r.State.RunID),
		ui.Bold(r.State.Algorithm),
		completed, r.State.TotalTasks)
	if failed := r.State.Count(state.StatusFailed); failed > 0 {
		fmt.Fprintf(w, " %s", ui.Red(fmt.Sprintf("(%d failed)", failed)))
	}
	fmt.Fprintf(w, " %s\n\n", ui.Dim(fmt.Sprintf("[makespan %.2f]", r.State.Makespan)))

	fmt.Fprintf(w, "  %-4s %-6s %-10s %-10s %-4s %10s %10s %9s %5s  %-12s %8s\n",
		"Job", "Task", "Status", "Datacenter", "VM", "Start", "Finish", "Exec", "Depth", "Parents", "Cost")
	for _, js := range r.State.Jobs {
		r.printJob(w, js)
	}
}

func (r *Reporter) printJob(w io.Writer, js *state.JobState) {
	icon := ui.StatusIcon(string(js.Status))
	critical := " "
	if r.isCritical(js.TaskID) {
		critical = ui.BoldYellow("⚡")
	}

	parents := joinInts(js.Parents, ",")
	if len(parents) > 12 {
		parents = parents[:9] + "..."
	}

	fmt.Fprintf(w, "  %-4d %-6d %s %-8s %-10d %-4d %10.2f %10.2f %9.2f %5d  %-12s %8.4f %s\n",
		js.Submission, js.TaskID, icon, js.Status, js.Datacenter, js.VMID,
		js.Start, js.Finish, js.ExecTime, js.Depth, parents, js.Cost, critical)
}

func (r *Reporter) isCritical(taskID int) bool {
	if r.Plan == nil {
		return false
	}
	for _, id := range r.Plan.CriticalPath {
		if id == taskID {
			return true
		}
	}
	return false
}

// JSON returns machine-readable run results.
func (r *Reporter) JSON() ([]byte, error) {
	type output struct {
		RunID        string            `json:"run_id"`
		Algorithm    string            `json:"algorithm"`
		Scenario     string            `json:"scenario,omitempty"`
		Status       string            `json:"status"`
		TotalTasks   int               `json:"total_tasks"`
		Makespan     float64           `json:"makespan"`
		TotalCost    float64           `json:"total_cost"`
		PortDelay    float64           `json:"port_delay"`
		CriticalPath []int             `json:"critical_path,omitempty"`
		Jobs         []*state.JobState `json:"jobs"`
	}

	o := output{
		RunID:      r.State.RunID,
		Algorithm:  r.State.Algorithm,
		Scenario:   r.State.Scenario,
		Status:     r.State.Status,
		TotalTasks: r.State.TotalTasks,
		Makespan:   r.State.Makespan,
		TotalCost:  r.State.TotalCost,
		PortDelay:  r.State.PortDelay,
		Jobs:       r.State.Jobs,
	}
	if r.Plan != nil {
		o.CriticalPath = r.Plan.CriticalPath
	}
	return json.MarshalIndent(o, "", "  ")
}

// vmUsage aggregates the jobs that ran on one VM.
type vmUsage struct {
	VMID       int
	Datacenter int
	Tier       string
	Jobs       int
	Busy       float64
	Cost       float64
}

func (r *Reporter) usage() []vmUsage {
	byVM := make(map[int]*vmUsage)
	for _, js := range r.State.Jobs {
		u, ok := byVM[js.VMID]
		if !ok {
			u = &vmUsage{VMID: js.VMID, Datacenter: js.Datacenter, Tier: js.Tier}
			byVM[js.VMID] = u
		}
		u.Jobs++
		u.Busy += js.ExecTime
		u.Cost += js.Cost
	}
	out := make([]vmUsage, 0, len(byVM))
	for _, u := range byVM {
		out = append(out, *u)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].VMID < out[b].VMID })
	return out
}

// PrintSummaryReport writes a detailed run summary to the given writer: the
// run header, a per-VM breakdown and the critical path. The output is also
// returned as a string.
func (r *Reporter) PrintSummaryReport(w io.Writer) string {
	var b strings.Builder
	mw := io.MultiWriter(w, &b)

	statusText, statusEmoji := statusStyle(r.State.Status)
	fmt.Fprintf(mw, "\n%s %s\n", statusEmoji, ui.BoldCyan("fogsched Run Summary"))
	fmt.Fprintf(mw, "%s\n", ui.Cyan("══════════════════════════"))
	fmt.Fprintf(mw, "Run:        %s\n", ui.Dim(r.State.RunID))
	if r.State.Scenario != "" {
		fmt.Fprintf(mw, "Scenario:   %s\n", r.State.Scenario)
	}
	fmt.Fprintf(mw, "Algorithm:  %s\n", ui.Bold(r.State.Algorithm))
	fmt.Fprintf(mw, "Status:     %s\n", statusText)
	fmt.Fprintf(mw, "Makespan:   %s\n", ui.Bold(fmt.Sprintf("%.2f", r.State.Makespan)))
	fmt.Fprintf(mw, "Cost:       %.4f\n", r.State.TotalCost)
	fmt.Fprintf(mw, "Jobs:       %d total\n", len(r.State.Jobs))
	if r.State.PortDelay > 0 {
		fmt.Fprintf(mw, "Port delay: %.2f\n", r.State.PortDelay)
	}
	fmt.Fprintln(mw)

	for _, u := range r.usage() {
		util := 0.0
		if r.State.Makespan > 0 {
			util = 100 * u.Busy / r.State.Makespan
		}
		tier := u.Tier
		if tier == "" {
			tier = "-"
		}
		fmt.Fprintf(mw, "  🖥  %s %-3d %-6s dc %-3d %3d jobs  busy %9.2f  %s  cost %.4f\n",
			ui.BoldWhite("VM"), u.VMID, tier, u.Datacenter, u.Jobs, u.Busy,
			ui.Dim(fmt.Sprintf("(%5.1f%%)", util)), u.Cost)
	}

	fmt.Fprintf(mw, "%s\n", ui.Cyan("──────────────────────────"))
	if r.Plan != nil && len(r.Plan.CriticalPath) > 0 {
		fmt.Fprintf(mw, "Critical:   %s\n", ui.BoldYellow("⚡ "+joinInts(r.Plan.CriticalPath, " → ")))
	}

	return b.String()
}

// Summary returns a final summary string.
func (r *Reporter) Summary() string {
	var b strings.Builder
	statusText, statusEmoji := statusStyle(r.State.Status)

	fmt.Fprintf(&b, "\n%s %s\n", statusEmoji, ui.BoldCyan("fogsched Run Complete"))
	fmt.Fprintf(&b, "%s\n", ui.Cyan("═════════════════════════"))
	fmt.Fprintf(&b, "Run:       %s\n", ui.Dim(r.State.RunID))
	fmt.Fprintf(&b, "Algorithm: %s\n", r.State.Algorithm)
	fmt.Fprintf(&b, "Jobs:      %s, %d total\n",
		ui.Green(fmt.Sprintf("%d completed", r.State.Count(state.StatusCompleted))), r.State.TotalTasks)
	fmt.Fprintf(&b, "Makespan:  %.2f\n", r.State.Makespan)
	fmt.Fprintf(&b, "Cost:      %.4f\n", r.State.TotalCost)
	fmt.Fprintf(&b, "Status:    %s\n", statusText)
	return b.String()
}

// PrintComparison writes one row per run, best makespan first, and marks the
// fastest and the cheapest run.
func PrintComparison(w io.Writer, runs []*state.RunState) {
	sorted := append([]*state.RunState(nil), runs...)
	sort.SliceStable(sorted, func(a, b int) bool { return sorted[a].Makespan < sorted[b].Makespan })

	cheapest := -1
	for i, st := range sorted {
		if cheapest < 0 || st.TotalCost < sorted[cheapest].TotalCost {
			cheapest = i
		}
	}

	fmt.Fprintf(w, "\n%s\n", ui.BoldCyan("Algorithm comparison"))
	fmt.Fprintf(w, "  %-12s %-10s %12s %12s  %s\n", "Algorithm", "Status", "Makespan", "Cost", "")
	for i, st := range sorted {
		var marks []string
		if i == 0 {
			marks = append(marks, ui.BoldGreen("fastest"))
		}
		if i == cheapest {
			marks = append(marks, ui.BoldYellow("cheapest"))
		}
		fmt.Fprintf(w, "  %-12s %-10s %12.2f %12.4f  %s\n",
			st.Algorithm, st.Status, st.Makespan, st.TotalCost, strings.Join(marks, " "))
	}
}

func statusStyle(status string) (string, string) {
	switch status {
	case "failed":
		return ui.BoldRed("failed"), "❌"
	case "cancelled":
		return ui.Yellow("cancelled"), "🚫"
	}
	return ui.BoldGreen(status), "✅"
}

func joinInts(ids []int, sep string) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, sep)
}
