package rollback

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"k8s.io/klog/v2"
)

// WriteScript serializes the ledger into an executable teardown script at
// path. Steps appear in reverse acquisition order so running the script
// releases resources the same way Unwind would, and the script removes
// itself after execution so teardown is single-use.
//
// Teardown commands are best-effort: the script does not stop on a failed
// step, mirroring Unwind's log-and-continue policy.
func (l *Ledger) WriteScript(path string) error {
	steps := l.Steps()

	var b strings.Builder
	b.WriteString("#!/bin/sh\n")
	b.WriteString("# raidlab teardown script - run once to release the array's resources.\n")
	for i := len(steps) - 1; i >= 0; i-- {
		step := steps[i]
		fmt.Fprintf(&b, "# %s\n", step.Label)
		fmt.Fprintf(&b, "%s || echo \"warning: %s failed\" >&2\n", shellJoin(step.Command), step.Label)
	}
	b.WriteString("rm -- \"$0\"\n")

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create script directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0700); err != nil {
		return fmt.Errorf("failed to write teardown script: %w", err)
	}

	klog.V(2).Infof("Wrote teardown script with %d steps to %s", len(steps), path)
	return nil
}

// shellJoin renders an argv as a shell command line, single-quoting any
// argument that needs it.
func shellJoin(argv []string) string {
	parts := make([]string, len(argv))
	for i, arg := range argv {
		parts[i] = shellQuote(arg)
	}
	return strings.Join(parts, " ")
}

func shellQuote(arg string) string {
	if arg == "" {
		return "''"
	}
	if !strings.ContainsAny(arg, " \t\n'\"\\$`&|;<>(){}[]*?~#") {
		return arg
	}
	return "'" + strings.ReplaceAll(arg, "'", `'\''`) + "'"
}
