package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const minutesPerDay = 24 * 60

// TimeWindow gates an entry to certain weekdays and a time-of-day range.
// Days has bit d set for time.Weekday(d). Start and End are minutes since
// midnight; End may be 1440. A window with End < Start wraps past midnight
// and the early-morning part belongs to the previous day's window.
// Start == End covers the whole day.
type TimeWindow struct {
	Days  uint8
	Start uint16
	End   uint16
}

// HasDay reports whether d is one of the window's days.
func (w TimeWindow) HasDay(d time.Weekday) bool {
	return w.Days&(1<<uint(d)) != 0
}

// Contains reports whether now falls inside the window, using now's location.
func (w TimeWindow) Contains(now time.Time) bool {
	tod := uint16(now.Hour()*60 + now.Minute())
	day := now.Weekday()
	switch {
	case w.Start == w.End:
		return w.HasDay(day)
	case w.Start < w.End:
		return w.HasDay(day) && tod >= w.Start && tod < w.End
	case tod >= w.Start:
		return w.HasDay(day)
	case tod < w.End:
		return w.HasDay((day + 6) % 7)
	default:
		return false
	}
}

// Validate checks the window's bounds.
func (w TimeWindow) Validate() error {
	if w.Days&0x80 != 0 {
		return fmt.Errorf("invalid day mask %08b", w.Days)
	}
	if w.Start >= minutesPerDay || w.End > minutesPerDay {
		return fmt.Errorf("window %d-%d out of range", w.Start, w.End)
	}
	return nil
}

func (w TimeWindow) String() string {
	return fmt.Sprintf("%02d:%02d-%02d:%02d days=%07b", w.Start/60, w.Start%60, w.End/60, w.End%60, w.Days)
}

// ParseTimeTag parses "SH SM EH EM DAYS" where DAYS is a run of digits 0-6
// with 0 meaning Monday. EH may be 24 when EM is 0.
func ParseTimeTag(tag string) (TimeWindow, error) {
	f := strings.Fields(tag)
	if len(f) != 5 {
		return TimeWindow{}, fmt.Errorf("time tag needs 5 fields, got %d", len(f))
	}
	var n [4]int
	for i := 0; i < 4; i++ {
		v, err := strconv.Atoi(f[i])
		if err != nil {
			return TimeWindow{}, fmt.Errorf("time tag field %d: %q is not a number", i+1, f[i])
		}
		n[i] = v
	}
	sh, sm, eh, em := n[0], n[1], n[2], n[3]
	if sh < 0 || sh > 23 || sm < 0 || sm > 59 {
		return TimeWindow{}, fmt.Errorf("invalid start time %d:%d", sh, sm)
	}
	if eh < 0 || eh > 24 || em < 0 || em > 59 || (eh == 24 && em != 0) {
		return TimeWindow{}, fmt.Errorf("invalid end time %d:%d", eh, em)
	}
	var days uint8
	for _, c := range f[4] {
		if c < '0' || c > '6' {
			return TimeWindow{}, fmt.Errorf("invalid day %q in %q", c, f[4])
		}
		// 0 is Monday in list files, time.Weekday counts from Sunday.
		days |= 1 << uint((int(c-'0')+1)%7)
	}
	return TimeWindow{Days: days, Start: uint16(sh*60 + sm), End: uint16(eh*60 + em)}, nil
}

// NewTimeWindow builds a window from weekdays and hour:minute bounds.
func NewTimeWindow(days []time.Weekday, startHour, startMin, endHour, endMin int) TimeWindow {
	var mask uint8
	for _, d := range days {
		mask |= 1 << uint(d)
	}
	end := endHour*60 + endMin
	if end > minutesPerDay {
		end = minutesPerDay
	}
	return TimeWindow{Days: mask, Start: uint16(startHour*60 + startMin), End: uint16(end)}
}
