package domain

import (
	"time"

	"github.com/lattice-vc/scout/internal/domain/segment"
)

// UnknownStatus is the curation state of an unknown attribute value.
type UnknownStatus string

// Curation states. Transitions happen only via curation actions.
const (
	UnknownPending  UnknownStatus = "pending"
	UnknownApproved UnknownStatus = "approved_as_value"
	UnknownMapped   UnknownStatus = "mapped_to_existing"
)

// UnknownAttribute is a phrase that failed normalization, queued for human
// curation. One row per (segment, normalized raw value).
type UnknownAttribute struct {
	ID          int64
	RawValue    string
	Segment     segment.Segment
	Occurrences int64
	FirstSeen   time.Time
	LastSeen    time.Time
	Status      UnknownStatus
	MappedTo    string
}
