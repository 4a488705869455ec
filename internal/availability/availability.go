// Package availability answers whether a car can be reserved for a range,
// given the reservations already held against it.
package availability

import (
	"time"

	"carrental-backend/internal/domain"
)

// Overlaps reports whether [aStart, aEnd) and [bStart, bEnd) share any instant.
// Ranges that only touch at an endpoint do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// FindConflict returns the first blocking window overlapping [start, end), or
// nil. Cancelled and completed windows never block.
func FindConflict(windows []domain.ReservationWindow, start, end time.Time) *domain.ReservationWindow {
	for i := range windows {
		w := windows[i]
		if !w.Status.Blocking() {
			continue
		}
		if Overlaps(start, end, w.StartDate, w.EndDate) {
			return &w
		}
	}
	return nil
}

// IsAvailable reports whether [start, end) is free. An empty or inverted range
// is never available.
func IsAvailable(windows []domain.ReservationWindow, start, end time.Time) bool {
	if !start.Before(end) {
		return false
	}
	return FindConflict(windows, start, end) == nil
}

// Check is IsAvailable with a reason: InvalidRangeError for a bad range,
// SlotUnavailableError naming the conflicting window otherwise.
func Check(carID string, windows []domain.ReservationWindow, start, end time.Time) error {
	if !start.Before(end) {
		return &domain.InvalidRangeError{Start: start, End: end, Reason: "start date must be before end date"}
	}
	if w := FindConflict(windows, start, end); w != nil {
		return &domain.SlotUnavailableError{CarID: carID, Start: start, End: end, Conflict: w}
	}
	return nil
}
