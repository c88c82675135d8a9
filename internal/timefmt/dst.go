package timefmt

// Offsets, in seconds east of UTC, applied by the time source.
const (
	StandardOffset = 3600
	SummerOffset   = 7200
)

// boundaryDay is the earliest day of month the last Sunday can fall on.
const boundaryDay = 25

// Offset returns the UTC offset for the given DST state.
func Offset(active bool) int {
	if active {
		return SummerOffset
	}
	return StandardOffset
}

// EvaluateDST reports whether the summer shift applies at epoch and whether
// that differs from active, the state currently applied. Callers only
// rewrite their offset when changed is true. epoch must be standard local
// time (UTC plus StandardOffset): an epoch that already carries the offset
// being decided moves the boundary with the decision.
func EvaluateDST(epoch uint32, active bool) (next, changed bool) {
	next = IsSummer(epoch)
	return next, next != active
}

// IsSummer reports whether the summer shift applies at epoch. Months April
// through September are always on, November through February always off.
// In March the shift turns on from the last Sunday of the month (the Sunday
// falling on day 25 or later); in October it turns off from the last Sunday.
// Before that Sunday the boundary month keeps the previous season.
func IsSummer(epoch uint32) bool {
	c := Decompose(epoch)
	switch {
	case c.Month > 3 && c.Month < 10:
		return true
	case c.Month < 3 || c.Month > 10:
		return false
	}

	// Day of the most recent Sunday within this month.
	passed := c.Day-c.Weekday >= boundaryDay
	if c.Month == 3 {
		return passed
	}
	return !passed
}
