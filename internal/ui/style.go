package ui

import (
	"fmt"
	"os"
	"strconv"

	"github.com/fatih/color"
)

// Sprint color functions for building styled strings.
var (
	Bold        = color.New(color.Bold).SprintFunc()
	Dim         = color.New(color.Faint).SprintFunc()
	Cyan        = color.New(color.FgCyan).SprintFunc()
	Green       = color.New(color.FgGreen).SprintFunc()
	Red         = color.New(color.FgRed).SprintFunc()
	Yellow      = color.New(color.FgYellow).SprintFunc()
	Magenta     = color.New(color.FgMagenta).SprintFunc()
	BoldCyan    = color.New(color.Bold, color.FgCyan).SprintFunc()
	BoldGreen   = color.New(color.Bold, color.FgGreen).SprintFunc()
	BoldRed     = color.New(color.Bold, color.FgRed).SprintFunc()
	BoldYellow  = color.New(color.Bold, color.FgYellow).SprintFunc()
	BoldMagenta = color.New(color.Bold, color.FgMagenta).SprintFunc()
	BoldWhite   = color.New(color.Bold, color.FgWhite).SprintFunc()
)

// PrintLogo renders the colored fogsched logo to stderr.
func PrintLogo() {
	w := os.Stderr
	frame := color.New(color.FgCyan)
	cloud := color.New(color.FgWhite, color.Faint)
	links := color.New(color.FgCyan, color.Faint)
	nodes := color.New(color.FgYellow)
	brand := color.New(color.Bold, color.FgMagenta)
	tag := color.New(color.Faint)

	fmt.Fprintln(w)
	frame.Fprintln(w, "   +--------------------------+")
	cloud.Fprintln(w, "   |   ~~~~   ~~~~~~   ~~~~   |")
	links.Fprintln(w, "   |    \\      ||      //    |")
	nodes.Fprintln(w, "   |  [vm]   [vm]  [vm]  [vm] |")
	frame.Fprintln(w, "   |==========================|")
	brand.Fprintln(w, "   |  F  O  G  S  C  H  E  D  |")
	frame.Fprintln(w, "   +--------------------------+")
	tag.Fprintf(w, "   %s DAG planning and dispatch\n", Dim("🌫"))
	fmt.Fprintln(w)
}

// taskColors is a palette of distinct bold colors for differentiating tasks.
var taskColors = []func(a ...interface{}) string{
	BoldMagenta,
	BoldCyan,
	BoldYellow,
	BoldGreen,
	color.New(color.Bold, color.FgHiBlue).SprintFunc(),
	color.New(color.Bold, color.FgHiRed).SprintFunc(),
}

// TaskPrefix returns a colored [task-id] prefix string.
// Each task ID gets a distinct color from the palette.
func TaskPrefix(taskID int) string {
	c := Dim
	if taskID >= 0 {
		c = taskColors[taskID%len(taskColors)]
	}
	return Dim("[") + c(strconv.Itoa(taskID)) + Dim("]")
}

// VMPrefix returns a dim <vm-id> tag.
func VMPrefix(vmID int) string {
	return Dim("<") + Cyan("vm "+strconv.Itoa(vmID)) + Dim(">")
}

// StatusIcon returns a colored icon for a job or run status.
func StatusIcon(status string) string {
	switch status {
	case "completed":
		return Green("✓")
	case "running":
		return Cyan("●")
	case "failed":
		return Red("✗")
	case "cancelled":
		return Yellow("⊘")
	}
	return Dim("◌")
}
