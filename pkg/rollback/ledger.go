package rollback

import (
	"k8s.io/klog/v2"
)

// Step is one compensating action. Run undoes the acquisition in-process;
// Command is the equivalent argv used when the ledger is serialized into a
// teardown script instead of being executed.
type Step struct {
	// Label is a short human-readable description, e.g. "detach /dev/loop3"
	Label string

	// Run executes the compensation
	Run func() error

	// Command is the shell argv performing the same compensation
	Command []string
}

// Ledger is an ordered record of compensating actions for resources
// acquired so far. Steps are appended in acquisition order and consumed in
// reverse, exactly once: either by Unwind on failure or by serialization
// into the teardown artifact on success.
type Ledger struct {
	steps    []Step
	consumed bool
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// Append records a compensating action for a freshly acquired resource.
func (l *Ledger) Append(step Step) {
	klog.V(4).Infof("Rollback registered: %s", step.Label)
	l.steps = append(l.steps, step)
}

// Len returns the number of registered steps.
func (l *Ledger) Len() int {
	return len(l.steps)
}

// Steps returns the registered steps in acquisition order and marks the
// ledger consumed. Used by the orchestrator when persisting the teardown
// artifact.
func (l *Ledger) Steps() []Step {
	l.consumed = true
	return l.steps
}

// Unwind executes every registered step in strict reverse-registration
// order. Each step is best-effort: a failure is logged and never blocks
// the remaining steps. Returns the number of steps that failed.
func (l *Ledger) Unwind() int {
	if l.consumed {
		klog.Warning("Unwind called on an already consumed ledger, ignoring")
		return 0
	}
	l.consumed = true

	failed := 0
	for i := len(l.steps) - 1; i >= 0; i-- {
		step := l.steps[i]
		klog.V(2).Infof("Rolling back: %s", step.Label)
		if err := step.Run(); err != nil {
			failed++
			klog.Warningf("Rollback step %q failed: %v (continuing)", step.Label, err)
		}
	}
	return failed
}
