package timeoff

import (
	"github.com/warp/leave-engine/generic"
)

// Overlaps reports whether [start, end] shares a day with any record that
// has a well-formed range and is not Rejected. Records without a range
// (monetized, or legacy rows that failed to parse) never block.
func Overlaps(history []LeaveRecord, start, end generic.TimePoint) bool {
	_, found := FindConflict(history, start, end)
	return found
}

// FindConflict returns the first blocking record as a ConflictError.
func FindConflict(history []LeaveRecord, start, end generic.TimePoint) (*ConflictError, bool) {
	candidate := generic.Period{Start: start, End: end}

	for i, r := range history {
		if r.State == StateRejected || r.Range == nil || !r.Range.Valid() {
			continue
		}
		if candidate.Overlaps(*r.Range) {
			return &ConflictError{
				Candidate: candidate,
				Index:     i,
				Existing:  *r.Range,
				State:     r.State,
			}, true
		}
	}
	return nil, false
}
