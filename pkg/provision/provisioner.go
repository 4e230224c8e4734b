package provision

import (
	"errors"
	"fmt"
	"os"

	"k8s.io/klog/v2"

	"git.srvlab.io/whiskey/raidlab/pkg/loopdev"
	"git.srvlab.io/whiskey/raidlab/pkg/mdraid"
	"git.srvlab.io/whiskey/raidlab/pkg/mount"
	"git.srvlab.io/whiskey/raidlab/pkg/raid"
	"git.srvlab.io/whiskey/raidlab/pkg/rollback"
)

// Sentinel errors for provisioning failures.
// Use errors.Is() to check for these rather than string matching.
var (
	// ErrMountpointConflict indicates the target path exists but is not a directory
	ErrMountpointConflict = errors.New("mountpoint conflict")

	// ErrAttachmentFailure indicates a disk image could not be attached
	ErrAttachmentFailure = errors.New("attachment failure")

	// ErrAssemblyFailure indicates the array could not be assembled
	ErrAssemblyFailure = errors.New("assembly failure")

	// ErrMountFailure indicates the assembled array could not be mounted
	ErrMountFailure = errors.New("mount failure")
)

// Array is the runtime result of a successful provisioning run. Its
// teardown is represented entirely by the rollback ledger, not by this
// struct.
type Array struct {
	// Device is the assembled md device path
	Device string

	// MountPath is where the array filesystem is mounted
	MountPath string
}

// Provisioner acquires external resources in sequence - mountpoint
// directory, per-disk loop attachment, array assembly, filesystem mount -
// registering exactly one compensating ledger step per acquisition.
type Provisioner struct {
	attacher  loopdev.Attacher
	assembler mdraid.Assembler
	mounter   mount.Mounter

	// MdadmPath is the mdadm binary recorded in teardown commands
	MdadmPath string

	// FSType is the filesystem created on the assembled array
	FSType string

	// ArrayName is passed to mdadm --name for identification
	ArrayName string
}

// NewProvisioner wires a Provisioner from its collaborators.
func NewProvisioner(attacher loopdev.Attacher, assembler mdraid.Assembler, mounter mount.Mounter) *Provisioner {
	return &Provisioner{
		attacher:  attacher,
		assembler: assembler,
		mounter:   mounter,
		FSType:    "ext4",
	}
}

// Provision runs the acquisition sequence for a validated request. On any
// step's failure every previously registered ledger step is executed in
// strict reverse order before the error is returned; this is the only path
// that runs rollback steps immediately. On success nothing is rolled back
// and the populated ledger is returned for persistence.
func (p *Provisioner) Provision(req *raid.Request) (*Array, *rollback.Ledger, error) {
	ledger := rollback.NewLedger()

	fail := func(err error) (*Array, *rollback.Ledger, error) {
		if failed := ledger.Unwind(); failed > 0 {
			klog.Warningf("%d rollback step(s) failed during unwind", failed)
		}
		return nil, nil, err
	}

	if err := p.prepareMountpoint(req.MountDir, ledger); err != nil {
		return fail(err)
	}

	members, err := p.attachDisks(req, ledger)
	if err != nil {
		return fail(err)
	}

	device, err := p.assembleArray(req.Level, members, ledger)
	if err != nil {
		return fail(err)
	}

	if err := p.mountArray(device, req.MountDir, ledger); err != nil {
		return fail(err)
	}

	klog.V(2).Infof("Provisioned level %s array %s at %s", req.Level, device, req.MountDir)
	return &Array{Device: device, MountPath: req.MountDir}, ledger, nil
}

// prepareMountpoint creates the target directory if needed. An existing
// directory is left alone and registers no rollback; an existing
// non-directory is a conflict with nothing acquired yet.
func (p *Provisioner) prepareMountpoint(dir string, ledger *rollback.Ledger) error {
	info, err := os.Stat(dir)
	switch {
	case err == nil && info.IsDir():
		klog.V(4).Infof("Mountpoint %s already exists", dir)
		return nil
	case err == nil:
		return fmt.Errorf("%w: %s exists and is not a directory", ErrMountpointConflict, dir)
	case !os.IsNotExist(err):
		return fmt.Errorf("%w: cannot stat %s: %v", ErrMountpointConflict, dir, err)
	}

	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("%w: cannot create %s: %v", ErrMountpointConflict, dir, err)
	}
	klog.V(4).Infof("Created mountpoint %s", dir)

	ledger.Append(rollback.Step{
		Label:   "remove mountpoint " + dir,
		Run:     func() error { return os.Remove(dir) },
		Command: []string{"rmdir", dir},
	})
	return nil
}

// attachDisks attaches every present slot in order, leaving the absent
// marker in the member list so positional correspondence with slot
// ordinals is preserved and md knows which slots start degraded.
func (p *Provisioner) attachDisks(req *raid.Request, ledger *rollback.Ledger) ([]string, error) {
	members := make([]string, len(req.Slots))
	for i := range req.Slots {
		slot := &req.Slots[i]
		if slot.Absent {
			members[i] = raid.AbsentMarker
			continue
		}

		device, err := p.attacher.Attach(slot.Path)
		if err != nil {
			return nil, fmt.Errorf("%w: slot %d (%s): %v", ErrAttachmentFailure, slot.Ordinal, slot.Path, err)
		}
		slot.Device = device
		members[i] = device

		detach := device
		ledger.Append(rollback.Step{
			Label:   "detach " + detach,
			Run:     func() error { return p.attacher.Detach(detach) },
			Command: loopdev.DetachCommand(detach),
		})
	}
	return members, nil
}

// assembleArray probes an unused md device and creates the array on it.
func (p *Provisioner) assembleArray(level raid.Level, members []string, ledger *rollback.Ledger) (string, error) {
	device, err := p.assembler.ProbeUnusedDevice()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAssemblyFailure, err)
	}

	if err := p.assembler.Assemble(device, level.String(), p.ArrayName, members); err != nil {
		return "", fmt.Errorf("%w: %v", ErrAssemblyFailure, err)
	}

	ledger.Append(rollback.Step{
		Label:   "stop array " + device,
		Run:     func() error { return p.assembler.Stop(device) },
		Command: mdraid.StopCommand(p.MdadmPath, device),
	})
	return device, nil
}

// mountArray formats the fresh array and mounts it at the target. mkfs
// needs no rollback step of its own - the filesystem dies with the array.
func (p *Provisioner) mountArray(device, dir string, ledger *rollback.Ledger) error {
	if err := p.mounter.Format(device, p.FSType); err != nil {
		return fmt.Errorf("%w: %v", ErrMountFailure, err)
	}

	if err := p.mounter.Mount(device, dir, p.FSType); err != nil {
		return fmt.Errorf("%w: %v", ErrMountFailure, err)
	}

	ledger.Append(rollback.Step{
		Label:   "unmount " + dir,
		Run:     func() error { return p.mounter.Unmount(dir) },
		Command: mount.UnmountCommand(dir),
	})
	return nil
}
