package wifi

import "github.com/awilliams/wifi-manager/internal/timefmt"

// TimeSnapshot is the Manager's view of the current local time. All
// fields come from the same epoch.
type TimeSnapshot struct {
	Timestamp     uint32
	DayHour       uint8
	TimeFormatted string // HH:MM
	DateFormatted string // DD/MM/YY
	WeekDay       string
}

// noTime is reported while no time source has ever been reachable.
var noTime = TimeSnapshot{
	TimeFormatted: timefmt.NoTime,
	DateFormatted: timefmt.NoDate,
	WeekDay:       timefmt.NoWeekday,
}

func newSnapshot(epoch uint32) TimeSnapshot {
	return TimeSnapshot{
		Timestamp:     epoch,
		DayHour:       timefmt.HourOfDay(epoch),
		TimeFormatted: timefmt.FormatTime(epoch),
		DateFormatted: timefmt.FormatDate(epoch),
		WeekDay:       timefmt.Weekday(epoch),
	}
}

// Valid reports whether the snapshot carries a time.
func (s TimeSnapshot) Valid() bool {
	return s.Timestamp != 0
}
