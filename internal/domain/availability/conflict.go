package availability

import (
	"errors"
	"fmt"
	"time"

	"staybook/internal/domain/shared/daterange"
)

var ErrDateConflict = errors.New("availability: requested dates are not available")

// HasConflict reports whether any night in [CheckIn, CheckOut) is blocked.
// The checkout date itself is never tested, so back-to-back stays pass.
func HasConflict(blocked NightSet, candidate daterange.DateRange) bool {
	_, found := FirstConflict(blocked, candidate)
	return found
}

// FirstConflict returns the earliest blocked night inside the candidate range.
func FirstConflict(blocked NightSet, candidate daterange.DateRange) (time.Time, bool) {
	if len(blocked) == 0 {
		return time.Time{}, false
	}
	for _, night := range candidate.Dates() {
		if blocked.Has(night) {
			return night, true
		}
	}
	return time.Time{}, false
}

// CheckConflict wraps FirstConflict into ErrDateConflict naming the first clash.
func CheckConflict(blocked NightSet, candidate daterange.DateRange) error {
	if night, found := FirstConflict(blocked, candidate); found {
		return fmt.Errorf("%w: %s is blocked", ErrDateConflict, daterange.Format(night))
	}
	return nil
}
