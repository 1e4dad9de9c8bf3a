package utils

import (
	"fmt"
	"time"

	"equity-screener/internal/models"
)

// MarketHours describes a regular weekday trading session in one timezone.
type MarketHours struct {
	Location *time.Location
	Open     time.Duration // offset from local midnight
	Close    time.Duration
	PreOpen  time.Duration // length of the pre-open window before Open
}

// DefaultMarketHours returns the Indonesia Stock Exchange session (09:00-16:00 WIB).
func DefaultMarketHours() MarketHours {
	loc, err := time.LoadLocation("Asia/Jakarta")
	if err != nil {
		loc = time.FixedZone("WIB", 7*60*60)
	}
	return MarketHours{
		Location: loc,
		Open:     9 * time.Hour,
		Close:    16 * time.Hour,
		PreOpen:  15 * time.Minute,
	}
}

// NewMarketHours builds a session from a timezone name and HH:MM open/close times.
func NewMarketHours(timezone, open, close string) (MarketHours, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return MarketHours{}, fmt.Errorf("loading timezone %q: %w", timezone, err)
	}
	o, err := parseClock(open)
	if err != nil {
		return MarketHours{}, err
	}
	c, err := parseClock(close)
	if err != nil {
		return MarketHours{}, err
	}
	if c <= o {
		return MarketHours{}, fmt.Errorf("market close %s must be after open %s", close, open)
	}
	return MarketHours{Location: loc, Open: o, Close: c, PreOpen: 15 * time.Minute}, nil
}

func parseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("parsing clock time %q: %w", s, err)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// StatusAt returns the market status at the given instant.
func (m MarketHours) StatusAt(t time.Time) models.MarketStatus {
	local := t.In(m.Location)

	if local.Weekday() == time.Saturday || local.Weekday() == time.Sunday {
		return models.MarketClosed
	}

	sinceMidnight := time.Duration(local.Hour())*time.Hour +
		time.Duration(local.Minute())*time.Minute +
		time.Duration(local.Second())*time.Second

	switch {
	case sinceMidnight >= m.Open && sinceMidnight < m.Close:
		return models.MarketOpen
	case sinceMidnight >= m.Open-m.PreOpen && sinceMidnight < m.Open:
		return models.MarketPreOpen
	default:
		return models.MarketClosed
	}
}

// IsOpenAt returns true if the market is open at the given instant.
func (m MarketHours) IsOpenAt(t time.Time) bool {
	return m.StatusAt(t) == models.MarketOpen
}

// NextOpen returns the next session open strictly after t.
func (m MarketHours) NextOpen(t time.Time) time.Time {
	local := t.In(m.Location)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, m.Location)
	next := midnight.Add(m.Open)

	if !local.Before(next) {
		next = midnight.AddDate(0, 0, 1).Add(m.Open)
	}

	// Skip weekends
	for next.Weekday() == time.Saturday || next.Weekday() == time.Sunday {
		next = next.AddDate(0, 0, 1)
	}

	return next
}
