package mount

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"testing"
)

// mockExecCommand creates a mock exec.Cmd for testing
func mockExecCommand(stdout, stderr string, exitCode int) func(string, ...string) *exec.Cmd {
	return func(command string, args ...string) *exec.Cmd {
		cs := []string{"-test.run=TestHelperProcess", "--", command}
		cs = append(cs, args...)
		cmd := exec.Command(os.Args[0], cs...)
		cmd.Env = []string{
			"GO_WANT_HELPER_PROCESS=1",
			"STDOUT=" + stdout,
			"STDERR=" + stderr,
			"EXIT_CODE=" + fmt.Sprintf("%d", exitCode),
		}
		return cmd
	}
}

// TestHelperProcess is used by mockExecCommand to simulate command execution
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	_, _ = os.Stdout.WriteString(os.Getenv("STDOUT"))
	_, _ = os.Stderr.WriteString(os.Getenv("STDERR"))
	exitCode, _ := strconv.Atoi(os.Getenv("EXIT_CODE"))
	os.Exit(exitCode)
}

func TestMount(t *testing.T) {
	tests := []struct {
		name        string
		fsType      string
		exitCode    int
		expectError bool
	}{
		{name: "mount ext4", fsType: "ext4"},
		{name: "mount without fs type", fsType: ""},
		{name: "mount failure", fsType: "ext4", exitCode: 32, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &mounter{execCommand: mockExecCommand("", "", tt.exitCode)}
			err := m.Mount("/dev/md0", t.TempDir(), tt.fsType)
			if tt.expectError && err == nil {
				t.Error("expected error but got nil")
			}
			if !tt.expectError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestUnmount(t *testing.T) {
	tests := []struct {
		name        string
		mounted     bool
		exitCode    int
		expectError bool
	}{
		{name: "unmount mounted path", mounted: true},
		{name: "not mounted is a no-op", mounted: false, exitCode: 1},
		{name: "umount failure", mounted: true, exitCode: 32, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &mounter{
				execCommand: mockExecCommand("", "", tt.exitCode),
				mounted:     func(string) (bool, error) { return tt.mounted, nil },
			}
			err := m.Unmount(t.TempDir())
			if tt.expectError && err == nil {
				t.Error("expected error but got nil")
			}
			if !tt.expectError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestIsMountPointMissingPath(t *testing.T) {
	m := &mounter{
		mounted: func(string) (bool, error) {
			t.Fatal("mounted should not be called for a missing path")
			return false, nil
		},
	}
	mounted, err := m.IsMountPoint("/does/not/exist")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mounted {
		t.Error("missing path reported as mount point")
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		name        string
		fsType      string
		blkidOut    string
		expectError bool
	}{
		// blkid exit 2 means "no filesystem", then mkfs runs
		{name: "format ext4", fsType: "ext4"},
		{name: "format xfs", fsType: "xfs"},
		{name: "unsupported fs type", fsType: "btrfs", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &mounter{execCommand: mockExecCommand(tt.blkidOut, "", 0)}
			err := m.Format("/dev/md0", tt.fsType)
			if tt.expectError && err == nil {
				t.Error("expected error but got nil")
			}
			if !tt.expectError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestFormatSkipsFormattedDevice(t *testing.T) {
	// blkid succeeding with a TYPE value means the device already has a
	// filesystem; mkfs must not run. The mock returns the blkid output for
	// every command, so a mkfs invocation would also "succeed" - the
	// assertion here is just that no error surfaces and the skip path is
	// taken with a valid fsType.
	m := &mounter{execCommand: mockExecCommand("ext4\n", "", 0)}
	if err := m.Format("/dev/md0", "ext4"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
