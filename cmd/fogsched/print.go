package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/joshharrison/fogsched/internal/cpm"
	"github.com/joshharrison/fogsched/internal/graph"
	"github.com/joshharrison/fogsched/internal/planner"
	"github.com/joshharrison/fogsched/internal/scenario"
	"github.com/joshharrison/fogsched/internal/store"
	"github.com/joshharrison/fogsched/internal/ui"
)

func printPlan(sc *scenario.Scenario, g *graph.TaskGraph, a *planner.Assignment, result *cpm.CPMResult) {
	maxWaveWidth := 0
	for _, w := range result.Waves {
		if len(w.TaskIDs) > maxWaveWidth {
			maxWaveWidth = len(w.TaskIDs)
		}
	}

	fmt.Printf("🎯 %s\n", ui.BoldCyan("fogsched "+a.Algorithm.String()+" Plan"))
	fmt.Println(ui.Cyan("═══════════════════════════"))
	fmt.Println()
	fmt.Printf("Scenario:  %s\n", sc.Name)
	fmt.Printf("Tasks:     %s on %s VMs\n", ui.Bold(g.TaskCount()), ui.Bold(len(sc.VMs)))
	fmt.Printf("⚡ Critical path: %s (%d tasks, est. %.2f)\n",
		ui.BoldYellow(joinIDs(a.CriticalPath, " → ")), len(a.CriticalPath), result.TotalDuration)
	fmt.Printf("Makespan:  %s\n", ui.Bold(fmt.Sprintf("%.2f", a.Makespan)))
	fmt.Printf("Waves:     %s (%d tasks in widest wave)\n", ui.Bold(len(result.Waves)), maxWaveWidth)
	fmt.Println()

	critical := make(map[int]bool, len(a.CriticalPath))
	for _, id := range a.CriticalPath {
		critical[id] = true
	}

	fmt.Printf("📋 %s\n", ui.BoldWhite("Allocation order"))
	for i, id := range a.Order {
		crit := ""
		if critical[id] {
			crit = "  " + ui.BoldYellow("⚡ critical")
		}
		rank := ""
		if r, ok := a.Ranks[id]; ok {
			rank = ui.Dim(fmt.Sprintf(" rank %.2f", r))
		}
		fmt.Printf("  %3d %s %s %8.2f → %8.2f%s%s\n",
			i, ui.TaskPrefix(id), ui.VMPrefix(a.VMOf[id]), a.Start[id], a.Finish[id], rank, crit)
	}
	fmt.Println()

	for _, wave := range result.Waves {
		depStr := ui.Dim("independent")
		if wave.Index > 0 {
			depStr = ui.Dim(fmt.Sprintf("after wave %d", wave.Index))
		}
		fmt.Printf("🌊 %s %d (%d tasks, %s):\n", ui.BoldWhite("Wave"), wave.Index+1, len(wave.TaskIDs), depStr)
		for _, id := range wave.TaskIDs {
			name := g.Tasks[id].Name
			fmt.Printf("  %s %s %s\n", ui.TaskPrefix(id), ui.VMPrefix(a.VMOf[id]), name)
		}
		fmt.Println()
	}
}

func printHistory(runs []store.Run) {
	if len(runs) == 0 {
		fmt.Println(ui.Dim("No recorded runs."))
		return
	}
	fmt.Printf("📚 %s\n", ui.BoldCyan("Run history"))
	fmt.Printf("  %-36s %-12s %-10s %6s %12s %12s  %s\n",
		"Run", "Algorithm", "Status", "Tasks", "Makespan", "Cost", "Started")
	for _, r := range runs {
		fmt.Printf("  %-36s %-12s %s %-8s %6d %12.2f %12.4f  %s\n",
			r.ID, r.Algorithm, ui.StatusIcon(r.Status), r.Status, r.TotalTasks, r.Makespan, r.TotalCost,
			ui.Dim(r.StartedAt.Local().Format("2006-01-02 15:04:05")))
	}
}

func printASCIIDAG(g *graph.TaskGraph, result *cpm.CPMResult, a *planner.Assignment) {
	fmt.Printf("🔗 %s\n", ui.BoldCyan("Task Dependency Graph"))
	fmt.Println(ui.Cyan("═══════════════════════"))
	fmt.Println()

	for _, wave := range result.Waves {
		fmt.Printf("%s 🌊 Wave %d %s\n", ui.Cyan("──"), wave.Index+1, ui.Cyan("──────────────────────────────"))
		for _, id := range wave.TaskIDs {
			crit := " "
			if result.Tasks[id].IsCritical {
				crit = ui.BoldYellow("⚡")
			}
			vm := ""
			if a != nil {
				vm = " " + ui.VMPrefix(a.VMOf[id])
			}
			fmt.Printf("  %s %s%s %s\n", crit, ui.TaskPrefix(id), vm, g.Tasks[id].Name)

			// Show edges
			for _, child := range g.Tasks[id].Children {
				fmt.Printf("      %s %s\n", ui.Dim("└──→"), ui.Magenta(child))
			}
		}
		fmt.Println()
	}
}

func printDOT(g *graph.TaskGraph, result *cpm.CPMResult, a *planner.Assignment) {
	fmt.Println("digraph fogsched {")
	fmt.Println("  rankdir=LR;")
	fmt.Println("  node [shape=box, style=rounded];")
	fmt.Println()

	ids := make([]int, 0, len(g.Tasks))
	for id := range g.Tasks {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		task := g.Tasks[id]
		label := strconv.Itoa(id)
		if task.Name != "" {
			label += "\\n" + task.Name
		}
		if a != nil {
			label += fmt.Sprintf("\\nvm %d", a.VMOf[id])
		}
		attrs := fmt.Sprintf(`label="%s"`, label)
		if result.Tasks[id].IsCritical {
			attrs += `, style="rounded,bold", color=red`
		}
		fmt.Printf("  t%d [%s];\n", id, attrs)
	}

	fmt.Println()

	for _, from := range ids {
		children := append([]int(nil), g.Tasks[from].Children...)
		sort.Ints(children)
		for _, to := range children {
			style := ""
			if result.Tasks[from].IsCritical && result.Tasks[to].IsCritical {
				style = ` [color=red, penwidth=2]`
			}
			fmt.Printf("  t%d -> t%d%s;\n", from, to, style)
		}
	}

	fmt.Println("}")
}

func joinIDs(ids []int, sep string) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, sep)
}
