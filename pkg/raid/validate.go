package raid

import (
	"os"

	"github.com/dustin/go-humanize"
	"k8s.io/klog/v2"
)

// Validate checks a requested level against a concrete disk list and either
// returns a Request or a *ValidationError describing the first failed rule.
//
// Checks run in a fixed order so the reported reason is deterministic:
// supported level, minimum count, even count (level 10), fault budget,
// mirror pairing (level 10), then file existence. Validation never touches
// devices - it only reads disk-count and file metadata.
func Validate(level Level, slots []DiskSlot, mountDir string) (*Request, error) {
	n := len(slots)

	rule, ok := RuleFor(level)
	if !ok {
		return nil, &ValidationError{Rule: ErrUnsupportedLevel, Level: level, DiskCount: n}
	}

	if n < rule.MinDisks {
		return nil, &ValidationError{
			Rule:      ErrInsufficientDisks,
			Level:     level,
			DiskCount: n,
			MinDisks:  rule.MinDisks,
		}
	}

	if rule.PairwiseMirrors && n%2 != 0 {
		return nil, &ValidationError{Rule: ErrOddDiskCountForMirroring, Level: level, DiskCount: n}
	}

	faults := 0
	for _, s := range slots {
		if s.Absent {
			faults++
		}
	}
	if maxFaults := rule.MaxFaults(n); faults > maxFaults {
		return nil, &ValidationError{
			Rule:       ErrExcessiveFaultCount,
			Level:      level,
			DiskCount:  n,
			FaultCount: faults,
			MaxFaults:  maxFaults,
		}
	}

	if rule.PairwiseMirrors {
		var deadPairs []int
		for i := 0; i+1 < n; i += 2 {
			if slots[i].Absent && slots[i+1].Absent {
				deadPairs = append(deadPairs, slots[i].Ordinal, slots[i+1].Ordinal)
			}
		}
		if len(deadPairs) > 0 {
			return nil, &ValidationError{
				Rule:       ErrUnpairedMirrorFailure,
				Level:      level,
				DiskCount:  n,
				FaultCount: faults,
				Ordinals:   deadPairs,
			}
		}
	}

	var badFiles []int
	for _, s := range slots {
		if s.Absent {
			continue
		}
		info, err := os.Stat(s.Path)
		if err != nil || !info.Mode().IsRegular() {
			badFiles = append(badFiles, s.Ordinal)
			continue
		}
		klog.V(4).Infof("Disk slot %d: %s (%s)", s.Ordinal, s.Path, humanize.Bytes(uint64(info.Size())))
	}
	if len(badFiles) > 0 {
		return nil, &ValidationError{
			Rule:      ErrInvalidDiskFile,
			Level:     level,
			DiskCount: n,
			Ordinals:  badFiles,
		}
	}

	klog.V(2).Infof("Validated level %s array: %d disks, %d absent", level, n, faults)
	return &Request{Level: level, Slots: slots, MountDir: mountDir}, nil
}
