package raid

import "fmt"

// Level identifies a supported RAID level.
type Level int

// Supported RAID levels. The numeric values match mdadm's --level argument.
const (
	Level0  Level = 0
	Level1  Level = 1
	Level4  Level = 4
	Level5  Level = 5
	Level6  Level = 6
	Level10 Level = 10
)

// AbsentMarker is the positional placeholder for an intentionally missing
// disk. It matches the keyword mdadm expects in a device list for a slot
// that should start degraded.
const AbsentMarker = "missing"

// String returns the level as mdadm spells it.
func (l Level) String() string {
	return fmt.Sprintf("%d", int(l))
}

// DiskSlot is one position in the array: either a backing image file or an
// explicitly absent slot. Ordinal is 1-based and used only for diagnostics.
type DiskSlot struct {
	// Ordinal is the 1-based position of the slot in the request
	Ordinal int

	// Path is the backing image file; empty when Absent
	Path string

	// Absent marks the slot as intentionally missing (degraded member)
	Absent bool

	// Device is the attached loop device path, populated during
	// provisioning; empty for absent slots
	Device string
}

// ParseSlots converts positional CLI arguments into disk slots. The absent
// marker keyword produces an Absent slot; everything else is taken as a
// backing file path. No existence checking happens here - that's the
// validator's job.
func ParseSlots(args []string) []DiskSlot {
	slots := make([]DiskSlot, 0, len(args))
	for i, arg := range args {
		slot := DiskSlot{Ordinal: i + 1}
		if arg == AbsentMarker {
			slot.Absent = true
		} else {
			slot.Path = arg
		}
		slots = append(slots, slot)
	}
	return slots
}

// Request is a validated provisioning intent. It is only constructed by
// Validate and must not be mutated afterwards.
type Request struct {
	// Level is the requested RAID level
	Level Level

	// Slots is the ordered disk list, absent slots included
	Slots []DiskSlot

	// MountDir is where the assembled array gets mounted
	MountDir string
}

// PresentCount returns the number of non-absent slots.
func (r *Request) PresentCount() int {
	n := 0
	for _, s := range r.Slots {
		if !s.Absent {
			n++
		}
	}
	return n
}

// AbsentCount returns the number of absent-marked slots.
func (r *Request) AbsentCount() int {
	return len(r.Slots) - r.PresentCount()
}
