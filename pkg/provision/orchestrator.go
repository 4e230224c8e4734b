package provision

import (
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"k8s.io/klog/v2"

	"git.srvlab.io/whiskey/raidlab/pkg/raid"
)

// State tracks the orchestrator through its pipeline.
type State int

const (
	StateIdle State = iota
	StateParsed
	StateValidated
	StateProvisioned
	StateFinalized
	StateFailed
)

// String returns a short state name for logging.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateParsed:
		return "parsed"
	case StateValidated:
		return "validated"
	case StateProvisioned:
		return "provisioned"
	case StateFinalized:
		return "finalized"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Result reports a finalized run: the mounted array plus the persisted
// teardown artifact.
type Result struct {
	Array      *Array
	ScriptPath string
}

// Orchestrator drives the pipeline: parse -> validate -> provision ->
// persist teardown artifact. Validation rejections fail the run without
// touching resources; provisioning failures arrive here already unwound.
type Orchestrator struct {
	provisioner *Provisioner

	// ScriptDir is where the teardown script is written
	ScriptDir string

	state State
	runID string
}

// NewOrchestrator creates an orchestrator around a provisioner. Each run
// gets a unique ID used to name the array and its teardown script.
func NewOrchestrator(provisioner *Provisioner, scriptDir string) *Orchestrator {
	runID := uuid.New().String()[:8]
	provisioner.ArrayName = "raidlab-" + runID
	return &Orchestrator{
		provisioner: provisioner,
		ScriptDir:   scriptDir,
		state:       StateIdle,
		runID:       runID,
	}
}

// State returns the current pipeline state.
func (o *Orchestrator) State() State {
	return o.state
}

// Run executes the full pipeline for the given level, disk arguments and
// mount directory. On success the rollback ledger is persisted as a
// self-deleting teardown script and the result is returned; on any failure
// the orchestrator lands in StateFailed and returns the causing error.
func (o *Orchestrator) Run(level raid.Level, diskArgs []string, mountDir string) (*Result, error) {
	o.transition(StateParsed)
	slots := raid.ParseSlots(diskArgs)

	req, err := raid.Validate(level, slots, mountDir)
	if err != nil {
		o.transition(StateFailed)
		return nil, err
	}
	o.transition(StateValidated)

	array, ledger, err := o.provisioner.Provision(req)
	if err != nil {
		o.transition(StateFailed)
		return nil, err
	}
	o.transition(StateProvisioned)

	scriptPath := filepath.Join(o.ScriptDir, "teardown-"+o.runID+".sh")
	if err := ledger.WriteScript(scriptPath); err != nil {
		// Resources are live but the teardown artifact is missing; report
		// the steps so the operator can release them by hand.
		klog.Errorf("Array %s is mounted at %s but the teardown script could not be written", array.Device, array.MountPath)
		o.transition(StateFailed)
		return nil, fmt.Errorf("failed to persist teardown script: %w", err)
	}

	o.transition(StateFinalized)
	return &Result{Array: array, ScriptPath: scriptPath}, nil
}

func (o *Orchestrator) transition(next State) {
	klog.V(4).Infof("Orchestrator: %s -> %s", o.state, next)
	o.state = next
}
