package session

import (
	"strings"

	"github.com/joshharrison/fogsched/internal/errs"
)

// Algorithm selects the planner or heuristic that governs a run.
type Algorithm int

const (
	HEFT Algorithm = iota
	OCS
	MinMin
	MaxMin
	FCFS
	RoundRobin
	Static
)

// Algorithms lists every algorithm in declaration order.
var Algorithms = []Algorithm{HEFT, OCS, MinMin, MaxMin, FCFS, RoundRobin, Static}

var algorithmNames = map[Algorithm]string{
	HEFT:       "HEFT",
	OCS:        "OCS",
	MinMin:     "MINMIN",
	MaxMin:     "MAXMIN",
	FCFS:       "FCFS",
	RoundRobin: "ROUNDROBIN",
	Static:     "STATIC",
}

func (a Algorithm) String() string {
	if name, ok := algorithmNames[a]; ok {
		return name
	}
	return "UNKNOWN"
}

// ParseAlgorithm maps a configuration value to an Algorithm. Case, dashes
// and underscores are ignored, so "round-robin" and "RoundRobin" both work.
func ParseAlgorithm(s string) (Algorithm, error) {
	key := strings.ToUpper(strings.NewReplacer("-", "", "_", "", " ", "").Replace(s))
	for a, name := range algorithmNames {
		if name == key {
			return a, nil
		}
	}
	return 0, errs.Invalid("unknown algorithm %q", s)
}

// IsPlanner reports whether the algorithm plans the whole graph up front.
// Static plans with HEFT and then dispatches the plan as is.
func (a Algorithm) IsPlanner() bool {
	switch a {
	case HEFT, OCS, Static:
		return true
	}
	return false
}

// MarshalText lets the algorithm appear by name in JSON and YAML.
func (a Algorithm) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText parses the algorithm by name.
func (a *Algorithm) UnmarshalText(text []byte) error {
	parsed, err := ParseAlgorithm(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
