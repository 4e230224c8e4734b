package raid

// LevelRule is the static fault-tolerance policy for one RAID level.
// Rules are defined once at package init and never mutated.
type LevelRule struct {
	// Level this rule applies to
	Level Level

	// MinDisks is the smallest usable array size
	MinDisks int

	// MaxFaults maps total disk count to the number of absent slots the
	// level can sustain
	MaxFaults func(n int) int

	// PairwiseMirrors requires an even disk count and forbids both slots
	// of an adjacent mirror pair being absent (level 10 only)
	PairwiseMirrors bool
}

// levelRules is the policy table. Tolerances follow md semantics: striping
// survives nothing, mirroring survives all but one copy, single parity
// survives one, double parity two, and striped mirrors survive one loss
// per pair.
var levelRules = map[Level]LevelRule{
	Level0:  {Level: Level0, MinDisks: 2, MaxFaults: func(n int) int { return 0 }},
	Level1:  {Level: Level1, MinDisks: 2, MaxFaults: func(n int) int { return n - 1 }},
	Level4:  {Level: Level4, MinDisks: 3, MaxFaults: func(n int) int { return 1 }},
	Level5:  {Level: Level5, MinDisks: 3, MaxFaults: func(n int) int { return 1 }},
	Level6:  {Level: Level6, MinDisks: 4, MaxFaults: func(n int) int { return 2 }},
	Level10: {Level: Level10, MinDisks: 4, MaxFaults: func(n int) int { return n / 2 }, PairwiseMirrors: true},
}

// RuleFor returns the policy for a level. The second result is false for
// unsupported levels; callers report that as a validation error rather than
// a lookup failure.
func RuleFor(level Level) (LevelRule, bool) {
	rule, ok := levelRules[level]
	return rule, ok
}

// SupportedLevels returns the supported levels in ascending order.
func SupportedLevels() []Level {
	return []Level{Level0, Level1, Level4, Level5, Level6, Level10}
}
