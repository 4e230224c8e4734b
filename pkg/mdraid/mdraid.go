package mdraid

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"k8s.io/klog/v2"
)

const (
	// maxDeviceProbe bounds the search for an unused md device number
	maxDeviceProbe = 128

	// assembleWaitTimeout bounds how long we wait for the array node
	// after mdadm --create returns
	assembleWaitTimeout = 15 * time.Second
)

// Assembler drives md array creation and teardown through mdadm. RAID
// computation itself (parity, striping, mirroring) lives entirely in the
// kernel md driver; this wrapper only cares about success or failure.
type Assembler interface {
	// ProbeUnusedDevice returns the first /dev/mdN path not currently in use.
	//
	// Known limitation: the device is probed, not reserved. Two instances
	// probing concurrently can pick the same number; callers must not rely
	// on this being race-free.
	ProbeUnusedDevice() (string, error)

	// Assemble creates the array on device from the ordered member list.
	// Members use the "missing" keyword for intentionally absent slots so
	// the array starts degraded in the right positions.
	Assemble(device, level, name string, members []string) error

	// Stop deactivates the array
	Stop(device string) error
}

// assembler implements Assembler using the mdadm binary.
type assembler struct {
	mdadmPath   string
	execCommand func(name string, args ...string) *exec.Cmd
	statPath    func(path string) (os.FileInfo, error)
	waitTimeout time.Duration
}

// NewAssembler creates an Assembler invoking mdadmPath (usually "mdadm").
func NewAssembler(mdadmPath string) Assembler {
	if mdadmPath == "" {
		mdadmPath = "mdadm"
	}
	return &assembler{
		mdadmPath:   mdadmPath,
		execCommand: exec.Command,
		statPath:    os.Stat,
		waitTimeout: assembleWaitTimeout,
	}
}

// ProbeUnusedDevice walks /dev/md0..mdN and returns the first number with
// neither a device node nor an active /sys/block entry.
func (a *assembler) ProbeUnusedDevice() (string, error) {
	for n := 0; n < maxDeviceProbe; n++ {
		device := "/dev/md" + strconv.Itoa(n)
		if _, err := a.statPath(device); err == nil {
			continue
		}
		if _, err := a.statPath("/sys/block/md" + strconv.Itoa(n)); err == nil {
			continue
		}
		klog.V(4).Infof("Selected unused array device %s", device)
		return device, nil
	}
	return "", fmt.Errorf("no unused md device found in first %d slots", maxDeviceProbe)
}

// Assemble runs mdadm --create with the ordered member list. The member
// list preserves slot positions, so "missing" entries tell md exactly
// which slots start degraded.
func (a *assembler) Assemble(device, level, name string, members []string) error {
	klog.V(2).Infof("Assembling %s: level %s, %d members", device, level, len(members))

	args := []string{
		"--create", device,
		"--run",
		"--level", level,
		"--raid-devices", strconv.Itoa(len(members)),
	}
	if name != "" {
		args = append(args, "--name", name)
	}
	args = append(args, members...)

	cmd := a.execCommand(a.mdadmPath, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("mdadm --create failed for %s: %w, output: %s", device, err, string(output))
	}
	klog.V(5).Infof("mdadm output: %s", string(output))

	if err := a.waitForDevice(device); err != nil {
		return fmt.Errorf("array device %s did not appear: %w", device, err)
	}

	klog.V(2).Infof("Assembled array %s", device)
	return nil
}

// Stop deactivates the array. A missing device node counts as already
// stopped.
func (a *assembler) Stop(device string) error {
	klog.V(2).Infof("Stopping array %s", device)

	if _, err := a.statPath(device); os.IsNotExist(err) {
		klog.V(4).Infof("Array %s does not exist, nothing to stop", device)
		return nil
	}

	cmd := a.execCommand(a.mdadmPath, "--stop", device)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("mdadm --stop failed for %s: %w, output: %s", device, err, string(output))
	}
	return nil
}

// waitForDevice polls until the array node exists. mdadm usually creates
// it synchronously, but udev re-creation can lag on busy systems.
func (a *assembler) waitForDevice(device string) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 50 * time.Millisecond
	policy.MaxElapsedTime = a.waitTimeout

	return backoff.Retry(func() error {
		_, err := a.statPath(device)
		return err
	}, policy)
}

// StopCommand returns the argv equivalent of Stop for teardown scripts.
func StopCommand(mdadmPath, device string) []string {
	if mdadmPath == "" {
		mdadmPath = "mdadm"
	}
	return []string{mdadmPath, "--stop", device}
}
