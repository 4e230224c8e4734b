package loopdev

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"
	"time"
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

func TestAttach(t *testing.T) {
	tests := []struct {
		name        string
		stdout      string
		exitCode    int
		statErr     error
		wantDevice  string
		expectError bool
	}{
		{
			name:       "successful attach",
			stdout:     "/dev/loop3\n",
			wantDevice: "/dev/loop3",
		},
		{
			name:        "losetup fails",
			stdout:      "",
			exitCode:    1,
			expectError: true,
		},
		{
			name:        "losetup prints nothing",
			stdout:      "\n",
			expectError: true,
		},
		{
			name:        "device node never appears",
			stdout:      "/dev/loop4\n",
			statErr:     errors.New("no such device"),
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &attacher{
				execCommand: mockExecCommand(tt.stdout, "", tt.exitCode),
				statDevice:  func(path string) error { return tt.statErr },
				waitTimeout: 50 * time.Millisecond,
			}

			device, err := a.Attach("/tmp/disk.img")
			if tt.expectError {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if device != tt.wantDevice {
				t.Errorf("device = %q, want %q", device, tt.wantDevice)
			}
		})
	}
}

func TestDetach(t *testing.T) {
	t.Run("detach existing device", func(t *testing.T) {
		// Use a real file standing in for the device node
		node := filepath.Join(t.TempDir(), "loop9")
		if err := os.WriteFile(node, nil, 0600); err != nil {
			t.Fatal(err)
		}

		a := &attacher{execCommand: mockExecCommand("", "", 0)}
		if err := a.Detach(node); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("detach missing device is a no-op", func(t *testing.T) {
		a := &attacher{execCommand: mockExecCommand("", "", 1)}
		if err := a.Detach("/dev/loop-does-not-exist"); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("losetup failure is reported", func(t *testing.T) {
		node := filepath.Join(t.TempDir(), "loop9")
		if err := os.WriteFile(node, nil, 0600); err != nil {
			t.Fatal(err)
		}

		a := &attacher{execCommand: mockExecCommand("", "device busy", 1)}
		if err := a.Detach(node); err == nil {
			t.Error("expected error, got nil")
		}
	})
}

func TestDetachCommand(t *testing.T) {
	got := DetachCommand("/dev/loop2")
	want := []string{"losetup", "--detach", "/dev/loop2"}
	if len(got) != len(want) {
		t.Fatalf("argv = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("argv = %v, want %v", got, want)
		}
	}
}
