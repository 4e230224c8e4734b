// Package mount wraps filesystem formatting and mount/unmount operations
// on the assembled array device.
//
// Logging follows Kubernetes verbosity conventions: V(2) for operation
// outcomes, V(4) for intermediate steps, V(5) for raw command output.
package mount

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/moby/sys/mountinfo"
	"k8s.io/klog/v2"
)

// Mounter handles filesystem operations on the array device.
type Mounter interface {
	// Mount mounts device at target with the given fsType
	Mount(device, target, fsType string) error

	// Unmount unmounts target; not-mounted targets are a no-op
	Unmount(target string) error

	// IsMountPoint reports whether path is currently a mount point
	IsMountPoint(path string) (bool, error)

	// Format creates a filesystem on device unless one already exists
	Format(device, fsType string) error
}

// mounter implements Mounter using system commands.
type mounter struct {
	execCommand func(name string, args ...string) *exec.Cmd
	mounted     func(path string) (bool, error)
}

// NewMounter creates a filesystem mounter backed by mount/umount/mkfs.
func NewMounter() Mounter {
	return &mounter{
		execCommand: exec.Command,
		mounted:     mountinfo.Mounted,
	}
}

// Mount mounts device at target with the given filesystem type.
func (m *mounter) Mount(device, target, fsType string) error {
	klog.V(2).Infof("Mounting %s at %s (fsType: %s)", device, target, fsType)

	args := []string{}
	if fsType != "" {
		args = append(args, "-t", fsType)
	}
	args = append(args, device, target)

	cmd := m.execCommand("mount", args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("mount failed: %w, output: %s", err, string(output))
	}

	klog.V(2).Infof("Mounted %s at %s", device, target)
	return nil
}

// Unmount unmounts the target path. Targets that are not mount points are
// left alone so teardown stays idempotent.
func (m *mounter) Unmount(target string) error {
	klog.V(2).Infof("Unmounting %s", target)

	mounted, err := m.IsMountPoint(target)
	if err != nil {
		return fmt.Errorf("failed to check if mounted: %w", err)
	}
	if !mounted {
		klog.V(4).Infof("Path %s is not mounted, nothing to unmount", target)
		return nil
	}

	cmd := m.execCommand("umount", target)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("umount failed: %w, output: %s", err, string(output))
	}

	klog.V(4).Infof("Unmounted %s", target)
	return nil
}

// IsMountPoint checks /proc/self/mountinfo for the path.
func (m *mounter) IsMountPoint(path string) (bool, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return false, nil
	}
	return m.mounted(path)
}

// Format creates a filesystem on the device. Already-formatted devices are
// skipped so re-runs against a surviving array don't wipe it.
func (m *mounter) Format(device, fsType string) error {
	formatted, err := m.isFormatted(device)
	if err != nil {
		return fmt.Errorf("failed to check if device is formatted: %w", err)
	}
	if formatted {
		klog.V(2).Infof("Device %s already has a filesystem, skipping mkfs", device)
		return nil
	}

	klog.V(2).Infof("Formatting %s with %s", device, fsType)

	var cmd *exec.Cmd
	switch fsType {
	case "ext4":
		cmd = m.execCommand("mkfs.ext4", "-F", device)
	case "ext3":
		cmd = m.execCommand("mkfs.ext3", "-F", device)
	case "xfs":
		cmd = m.execCommand("mkfs.xfs", "-f", device)
	default:
		return fmt.Errorf("unsupported filesystem type: %s", fsType)
	}

	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("mkfs.%s failed: %w, output: %s", fsType, err, string(output))
	}

	klog.V(5).Infof("mkfs output: %s", string(output))
	return nil
}

// isFormatted checks for an existing filesystem signature with blkid.
func (m *mounter) isFormatted(device string) (bool, error) {
	cmd := m.execCommand("blkid", "-o", "value", "-s", "TYPE", device)
	output, err := cmd.CombinedOutput()
	if err != nil {
		// blkid exits 2 when no filesystem is found
		if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 2 {
			return false, nil
		}
		return false, fmt.Errorf("blkid failed: %w", err)
	}
	return len(strings.TrimSpace(string(output))) > 0, nil
}

// UnmountCommand returns the argv equivalent of Unmount for teardown scripts.
func UnmountCommand(target string) []string {
	return []string{"umount", target}
}
