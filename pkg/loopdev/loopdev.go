package loopdev

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sys/unix"
	"k8s.io/klog/v2"
)

const (
	// DeviceWaitTimeout bounds how long we wait for a loop device node to
	// appear after losetup returns. Node creation is asynchronous under
	// udev, so a freshly allocated device can lag the command.
	DeviceWaitTimeout = 10 * time.Second

	// deviceWaitInterval is the initial poll interval while waiting
	deviceWaitInterval = 50 * time.Millisecond
)

// Attacher manages loop block devices backed by image files.
type Attacher interface {
	// Attach binds path to a free loop device and returns the device path
	Attach(path string) (string, error)

	// Detach releases a loop device
	Detach(device string) error
}

// attacher implements Attacher using losetup.
type attacher struct {
	execCommand func(name string, args ...string) *exec.Cmd
	statDevice  func(path string) error
	waitTimeout time.Duration
}

// NewAttacher creates a loop device attacher backed by the system losetup.
func NewAttacher() Attacher {
	return &attacher{
		execCommand: exec.Command,
		statDevice:  statBlockDevice,
		waitTimeout: DeviceWaitTimeout,
	}
}

// Attach binds the image file at path to the first free loop device and
// returns the device path once its node exists and is a block device.
func (a *attacher) Attach(path string) (string, error) {
	klog.V(2).Infof("Attaching %s as loop device", path)

	cmd := a.execCommand("losetup", "--find", "--show", path)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("losetup failed for %s: %w, output: %s", path, err, string(output))
	}

	device := strings.TrimSpace(string(output))
	if device == "" {
		return "", fmt.Errorf("losetup returned no device for %s", path)
	}

	if err := a.waitForDevice(device); err != nil {
		return "", fmt.Errorf("loop device %s did not appear: %w", device, err)
	}

	klog.V(2).Infof("Attached %s to %s", path, device)
	return device, nil
}

// Detach releases the loop device. Missing device nodes are treated as
// already detached.
func (a *attacher) Detach(device string) error {
	klog.V(2).Infof("Detaching %s", device)

	if _, err := os.Stat(device); os.IsNotExist(err) {
		klog.V(4).Infof("Device %s does not exist, nothing to detach", device)
		return nil
	}

	cmd := a.execCommand("losetup", "--detach", device)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("losetup --detach failed for %s: %w, output: %s", device, err, string(output))
	}

	klog.V(4).Infof("Detached %s", device)
	return nil
}

// waitForDevice polls until the device node exists and is a block device.
func (a *attacher) waitForDevice(device string) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = deviceWaitInterval
	policy.MaxElapsedTime = a.waitTimeout

	return backoff.Retry(func() error {
		if err := a.statDevice(device); err != nil {
			klog.V(5).Infof("Waiting for %s: %v", device, err)
			return err
		}
		return nil
	}, policy)
}

// statBlockDevice verifies path exists and is a block special file.
func statBlockDevice(path string) error {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if st.Mode&unix.S_IFMT != unix.S_IFBLK {
		return fmt.Errorf("%s is not a block device", path)
	}
	return nil
}

// DetachCommand returns the argv equivalent of Detach for teardown scripts.
func DetachCommand(device string) []string {
	return []string{"losetup", "--detach", device}
}
