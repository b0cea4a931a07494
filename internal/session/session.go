// Package session carries the state of one scheduling run: the chosen
// algorithm, its options, the logger, metrics and the ordering bookkeeping
// shared between planning, dispatch and reconciliation.
package session

import (
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/uber-go/tally/v4"

	"github.com/joshharrison/fogsched/internal/errs"
)

// Options tune the planners and the reconciler.
type Options struct {
	// ReadyFloor is the earliest start of a task without parents.
	ReadyFloor float64 `yaml:"ready_floor" json:"ready_floor"`
	// MaxPermutationWidth caps the sibling set the OCS planner permutes.
	MaxPermutationWidth int `yaml:"max_permutation_width" json:"max_permutation_width"`
	// MaxPaths caps the root-to-leaf paths the OCS planner enumerates.
	MaxPaths int `yaml:"max_paths" json:"max_paths"`
	// PortDelay is the reconciler's shift increment. Zero disables it.
	PortDelay float64 `yaml:"port_delay" json:"port_delay"`
	// CheckParentStart makes the reconciler also compare against a parent's start.
	CheckParentStart bool `yaml:"check_parent_start" json:"check_parent_start"`
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		ReadyFloor:          0.1,
		MaxPermutationWidth: 8,
		MaxPaths:            4096,
		CheckParentStart:    true,
	}
}

// Validate rejects options no run can honor.
func (o Options) Validate() error {
	if o.ReadyFloor < 0 {
		return errs.Invalid("ready floor %v is negative", o.ReadyFloor)
	}
	if o.MaxPermutationWidth < 1 {
		return errs.Invalid("max permutation width %d must be at least 1", o.MaxPermutationWidth)
	}
	if o.MaxPaths < 1 {
		return errs.Invalid("max paths %d must be at least 1", o.MaxPaths)
	}
	if o.PortDelay < 0 {
		return errs.Invalid("port delay %v is negative", o.PortDelay)
	}
	return nil
}

// Session is the context threaded through planner, dispatcher and reconciler calls.
type Session struct {
	ID        string
	Algorithm Algorithm
	Options   Options
	Log       *log.Entry
	Metrics   *Metrics

	// PlanOrder is the allocation order of the last static plan.
	PlanOrder []int

	submissions []int
}

// Option customizes a new Session.
type Option func(*Session)

// WithLogger sets the base logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Session) {
		s.Log = log.NewEntry(l)
	}
}

// WithScope reports metrics below the given tally scope.
func WithScope(scope tally.Scope) Option {
	return func(s *Session) {
		s.Metrics = NewMetrics(scope)
	}
}

// New creates a session with a fresh id.
func New(alg Algorithm, opts Options, options ...Option) *Session {
	s := &Session{
		ID:        uuid.New().String(),
		Algorithm: alg,
		Options:   opts,
		Log:       log.NewEntry(log.StandardLogger()),
	}
	for _, o := range options {
		o(s)
	}
	if s.Metrics == nil {
		s.Metrics = NewMetrics(tally.NoopScope)
	}
	s.Log = s.Log.WithFields(log.Fields{
		"session":   s.ID,
		"algorithm": alg.String(),
	})
	return s
}

// Submit records that a task was handed to a VM and returns its submission index.
func (s *Session) Submit(taskID int) int {
	s.submissions = append(s.submissions, taskID)
	return len(s.submissions) - 1
}

// Submissions returns task ids in submission order.
func (s *Session) Submissions() []int {
	return append([]int(nil), s.submissions...)
}

// PlanPosition returns the position of every task in PlanOrder.
func (s *Session) PlanPosition() map[int]int {
	pos := make(map[int]int, len(s.PlanOrder))
	for i, id := range s.PlanOrder {
		pos[id] = i
	}
	return pos
}
