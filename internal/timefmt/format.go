// Package timefmt converts epoch timestamps into the display fields used by
// the connectivity manager and decides when the seasonal clock shift applies.
//
// Epochs handled here are already shifted to local time by the time source,
// so all calendar math is done in UTC.
package timefmt

import (
	"fmt"
	"time"
)

// Sentinel values reported when no time is available.
const (
	NoTime    = "--:--"
	NoDate    = "--/--/--"
	NoWeekday = "--------"
)

// Unknown is returned by WeekdayName for an out of range index.
const Unknown = "UNKNOWN"

var weekdays = [7]string{"Domenica", "Lunedi", "Martedi", "Mercoledi", "Giovedi", "Venerdi", "Sabato"}

// Civil is the calendar decomposition of an epoch.
type Civil struct {
	Year    int
	Month   int // 1-12
	Day     int // 1-31
	Hour    int
	Minute  int
	Second  int
	Weekday int // 0 = Sunday
}

// Decompose splits epoch into its calendar fields.
func Decompose(epoch uint32) Civil {
	t := time.Unix(int64(epoch), 0).UTC()
	return Civil{
		Year:    t.Year(),
		Month:   int(t.Month()),
		Day:     t.Day(),
		Hour:    t.Hour(),
		Minute:  t.Minute(),
		Second:  t.Second(),
		Weekday: int(t.Weekday()),
	}
}

// FormatTime returns epoch as "HH:MM".
func FormatTime(epoch uint32) string {
	c := Decompose(epoch)
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// FormatDate returns epoch as "DD/MM/YY".
func FormatDate(epoch uint32) string {
	c := Decompose(epoch)
	return fmt.Sprintf("%02d/%02d/%02d", c.Day, c.Month, c.Year%100)
}

// WeekdayName maps 0-6 to Sunday through Saturday. Any other index
// yields Unknown.
func WeekdayName(index int) string {
	if index < 0 || index >= len(weekdays) {
		return Unknown
	}
	return weekdays[index]
}

// Weekday returns the weekday name of epoch.
func Weekday(epoch uint32) string {
	return WeekdayName(Decompose(epoch).Weekday)
}

// HourOfDay returns the hour of epoch.
func HourOfDay(epoch uint32) uint8 {
	return uint8(Decompose(epoch).Hour)
}
