// Package raid holds the level policy table and the disk-set validator.
//
// Validation is pure: it reads disk-count and file metadata but never
// attaches devices or touches the array namespace. A rejected disk set is
// reported as a *ValidationError wrapping one of the package's sentinel
// errors, carrying the counts and slot ordinals behind the decision.
package raid
