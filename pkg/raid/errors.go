package raid

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for validation rejections.
// Use errors.Is() to check for these rather than string matching.
var (
	// ErrUnsupportedLevel indicates the level is not one of 0,1,4,5,6,10
	ErrUnsupportedLevel = errors.New("unsupported raid level")

	// ErrInsufficientDisks indicates fewer slots than the level's minimum
	ErrInsufficientDisks = errors.New("insufficient disks")

	// ErrOddDiskCountForMirroring indicates an odd slot count for level 10
	ErrOddDiskCountForMirroring = errors.New("odd disk count for mirroring")

	// ErrExcessiveFaultCount indicates more absent slots than the level tolerates
	ErrExcessiveFaultCount = errors.New("excessive fault count")

	// ErrUnpairedMirrorFailure indicates a level-10 mirror pair with both slots absent
	ErrUnpairedMirrorFailure = errors.New("unpaired mirror failure")

	// ErrInvalidDiskFile indicates a slot path that is not an existing regular file
	ErrInvalidDiskFile = errors.New("invalid disk file")
)

// ValidationError is a structured rejection from Validate. It wraps one of
// the sentinel errors above and carries enough detail to reproduce the
// diagnostic: which rule failed, the counts involved, and the offending
// slot ordinals.
type ValidationError struct {
	// Rule is the sentinel error identifying the failed check
	Rule error

	// Level is the requested level
	Level Level

	// DiskCount is the total slot count of the request
	DiskCount int

	// FaultCount is the number of absent-marked slots
	FaultCount int

	// MaxFaults is the level's tolerance for this disk count, where relevant
	MaxFaults int

	// MinDisks is the level's minimum disk count, where relevant
	MinDisks int

	// Ordinals lists the offending slot positions (1-based), where relevant
	Ordinals []int
}

// Error renders the rejection with its diagnostic detail.
func (e *ValidationError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%v (level %s, %d disks", e.Rule, e.Level, e.DiskCount)
	switch {
	case errors.Is(e.Rule, ErrInsufficientDisks):
		fmt.Fprintf(&b, ", minimum %d", e.MinDisks)
	case errors.Is(e.Rule, ErrExcessiveFaultCount):
		fmt.Fprintf(&b, ", %d absent, tolerates %d", e.FaultCount, e.MaxFaults)
	case errors.Is(e.Rule, ErrUnpairedMirrorFailure), errors.Is(e.Rule, ErrInvalidDiskFile):
		fmt.Fprintf(&b, ", slots %s", formatOrdinals(e.Ordinals))
	}
	b.WriteString(")")
	return b.String()
}

// Unwrap exposes the rule sentinel for errors.Is.
func (e *ValidationError) Unwrap() error {
	return e.Rule
}

func formatOrdinals(ordinals []int) string {
	parts := make([]string, len(ordinals))
	for i, o := range ordinals {
		parts[i] = fmt.Sprintf("%d", o)
	}
	return strings.Join(parts, ",")
}
