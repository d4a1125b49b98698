package broker

import "time"

// Main trading session of the exchange, minutes from midnight local time.
const (
	sessionOpenMinute  = 10 * 60    // 10:00
	sessionCloseMinute = 18*60 + 50 // 18:50
)

// SessionClock derives market open/close state from wall-clock time in the
// exchange timezone. Both broker drivers share it; the sandbox API has no
// trading-schedule endpoint.
type SessionClock struct {
	loc *time.Location
	now func() time.Time
}

func NewSessionClock(loc *time.Location) *SessionClock {
	return &SessionClock{loc: loc, now: time.Now}
}

func (c *SessionClock) IsOpen() bool {
	now := c.now().In(c.loc)

	weekday := now.Weekday()
	if weekday == time.Saturday || weekday == time.Sunday {
		return false
	}

	minutes := now.Hour()*60 + now.Minute()
	return minutes >= sessionOpenMinute && minutes <= sessionCloseMinute
}

func (c *SessionClock) Status() MarketStatus {
	now := c.now().In(c.loc)
	open := c.IsOpen()

	return MarketStatus{
		IsOpen:    open,
		NextOpen:  c.nextOpen(now),
		NextClose: c.nextClose(now),
	}
}

func (c *SessionClock) nextOpen(now time.Time) time.Time {
	day := now
	for {
		openAt := time.Date(day.Year(), day.Month(), day.Day(), sessionOpenMinute/60, sessionOpenMinute%60, 0, 0, c.loc)
		if openAt.After(now) && isWeekday(openAt) {
			return openAt
		}
		day = day.AddDate(0, 0, 1)
		day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, c.loc)
	}
}

func (c *SessionClock) nextClose(now time.Time) time.Time {
	day := now
	for {
		closeAt := time.Date(day.Year(), day.Month(), day.Day(), sessionCloseMinute/60, sessionCloseMinute%60, 0, 0, c.loc)
		if closeAt.After(now) && isWeekday(closeAt) {
			return closeAt
		}
		day = day.AddDate(0, 0, 1)
		day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, c.loc)
	}
}

func isWeekday(t time.Time) bool {
	return t.Weekday() != time.Saturday && t.Weekday() != time.Sunday
}
