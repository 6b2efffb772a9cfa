package schema

import (
	"slices"
	"strings"
)

// Remedy is a single cleanup action still owed after a relocation. Remedies
// are combined into a set held by an [Outcome].
type Remedy uint8

const (
	// CleanDestination marks a partially populated destination tree that needs
	// to be emptied.
	CleanDestination Remedy = 1 << iota

	// RevertSource marks a source directory which was (or was attempted to be)
	// moved to its staging path and needs to be renamed back.
	RevertSource

	// DeleteLink marks a (possibly partial) link at the source path that needs
	// to be removed.
	DeleteLink

	// DeleteDestinationDir marks a destination directory which was created by
	// the relocation and needs to be removed.
	DeleteDestinationDir
)

// AllRemedies lists all known remedies in the order they are applied.
//
//nolint:gochecknoglobals
var AllRemedies = []Remedy{DeleteLink, RevertSource, CleanDestination, DeleteDestinationDir}

// String returns the name of a single remedy.
func (r Remedy) String() string {
	switch r {
	case CleanDestination:
		return "clean-destination"
	case RevertSource:
		return "revert-source"
	case DeleteLink:
		return "delete-link"
	case DeleteDestinationDir:
		return "delete-destination-dir"
	default:
		return "unknown"
	}
}

// Outcome is the set of remedies still owed after a relocation, together with
// the paths needed to apply them. An empty set means the relocation succeeded.
type Outcome struct {
	remedies Remedy

	// StagingPath is where the source directory was (to be) moved to.
	StagingPath string

	// Leftovers are paths which could not be removed after an otherwise
	// successful relocation. They are reported, but need no remediation.
	Leftovers []string
}

// NewOutcome returns a pointer to a new, empty [Outcome].
func NewOutcome() *Outcome {
	return &Outcome{}
}

// RestoreOutcome returns a pointer to an [Outcome] holding the given remedy
// bits, as previously returned by [Outcome.Bits].
func RestoreOutcome(bits uint8, stagingPath string) *Outcome {
	return &Outcome{
		remedies:    Remedy(bits),
		StagingPath: stagingPath,
	}
}

// Add adds remedies to the set.
func (o *Outcome) Add(r ...Remedy) {
	for _, v := range r {
		o.remedies |= v
	}
}

// Remove removes remedies from the set.
func (o *Outcome) Remove(r ...Remedy) {
	for _, v := range r {
		o.remedies &^= v
	}
}

// Has returns whether a remedy is contained in the set.
func (o *Outcome) Has(r Remedy) bool {
	return o.remedies&r == r
}

// Clear empties the set.
func (o *Outcome) Clear() {
	o.remedies = 0
}

// IsSuccess returns whether no remedies are owed.
func (o *Outcome) IsSuccess() bool {
	return o.remedies == 0
}

// Bits returns the set in its compact (persistable) form.
func (o *Outcome) Bits() uint8 {
	return uint8(o.remedies)
}

// Remedies returns the contained remedies in the order they are applied.
func (o *Outcome) Remedies() []Remedy {
	result := make([]Remedy, 0, len(AllRemedies))

	for _, r := range AllRemedies {
		if o.Has(r) {
			result = append(result, r)
		}
	}

	return result
}

// Clone returns a deep copy of the [Outcome].
func (o *Outcome) Clone() Outcome {
	return Outcome{
		remedies:    o.remedies,
		StagingPath: o.StagingPath,
		Leftovers:   slices.Clone(o.Leftovers),
	}
}

// String returns a human-readable representation of the set.
func (o *Outcome) String() string {
	if o.IsSuccess() {
		return "success"
	}

	names := make([]string, 0, len(AllRemedies))
	for _, r := range o.Remedies() {
		names = append(names, r.String())
	}

	return strings.Join(names, ",")
}
