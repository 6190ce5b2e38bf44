// Package gtime implements GPS/Galileo/BeiDou time-system arithmetic and
// conversions to/from UTC, the ambient time representation shared by every
// other package in this module.
package gtime

import (
	"fmt"
	"math"
)

// Time is a calendar-independent instant, represented as whole seconds since
// the Unix epoch plus a sub-second fraction, the same split the teacher used
// to keep additions exact regardless of magnitude.
type Time struct {
	Sec  int64   // whole seconds since 1970-01-01T00:00:00Z
	Frac float64 // fractional seconds in [0,1)
}

var (
	gpsEpoch = Epoch{1980, 1, 6, 0, 0, 0}
	galEpoch = Epoch{1999, 8, 22, 0, 0, 0}
	bdsEpoch = Epoch{2006, 1, 1, 0, 0, 0}
)

// Epoch is a calendar/clock representation, {year, month, day, hour, min, sec}.
type Epoch [6]float64

var monthDays = [48]int{
	31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31,
	31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31,
	31, 29, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31,
	31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31,
}

var dayOfYear = [12]int{1, 32, 60, 91, 121, 152, 182, 213, 244, 274, 305, 335}

// FromEpoch converts a calendar epoch to Time. Valid for 1970-2099.
func FromEpoch(ep Epoch) Time {
	year, mon, day := int(ep[0]), int(ep[1]), int(ep[2])
	if year < 1970 || year > 2099 || mon < 1 || mon > 12 {
		return Time{}
	}
	days := (year-1970)*365 + (year-1969)/4 + dayOfYear[mon-1] + day - 2
	if year%4 == 0 && mon >= 3 {
		days++
	}
	sec := int(math.Floor(ep[5]))
	return Time{
		Sec:  int64(days)*86400 + int64(ep[3])*3600 + int64(ep[4])*60 + int64(sec),
		Frac: ep[5] - float64(sec),
	}
}

// Epoch converts Time back to a calendar epoch.
func (t Time) Epoch() Epoch {
	days := t.Sec / 86400
	sec := t.Sec - days*86400
	var mon, day int
	for day = int(days%1461) & 0x7fffffff; mon < 48; mon++ {
		if day >= monthDays[mon] {
			day -= monthDays[mon]
		} else {
			break
		}
	}
	var ep Epoch
	ep[0] = float64(1970 + int(days/1461)*4 + mon/12)
	ep[1] = float64(mon%12 + 1)
	ep[2] = float64(day + 1)
	ep[3] = float64(sec / 3600)
	ep[4] = float64(sec % 3600 / 60)
	ep[5] = float64(sec%60) + t.Frac
	return ep
}

// Add returns t advanced by sec seconds (sec may be negative or fractional).
func (t Time) Add(sec float64) Time {
	t.Frac += sec
	whole := math.Floor(t.Frac)
	t.Sec += int64(whole)
	t.Frac -= whole
	return t
}

// Sub returns t1-t2 in seconds.
func (t1 Time) Sub(t2 Time) float64 {
	return float64(t1.Sec-t2.Sec) + (t1.Frac - t2.Frac)
}

func fromSystemEpoch(epoch Epoch, week int, sow float64) Time {
	t := FromEpoch(epoch)
	if sow < -1e9 || sow > 1e9 {
		sow = 0.0
	}
	t.Sec += int64(86400*7*week) + int64(sow)
	t.Frac = sow - float64(int64(sow))
	return t
}

func toSystemTime(epoch Epoch, t Time) (week int, sow float64) {
	t0 := FromEpoch(epoch)
	sec := t.Sec - t0.Sec
	w := int(sec / (86400 * 7))
	return w, float64(sec)-float64(w*86400*7) + t.Frac
}

// FromGPS builds a Time from GPS week and seconds-of-week.
func FromGPS(week int, sow float64) Time { return fromSystemEpoch(gpsEpoch, week, sow) }

// GPS decomposes t into GPS week and seconds-of-week.
func (t Time) GPS() (week int, sow float64) { return toSystemTime(gpsEpoch, t) }

// FromGalileo builds a Time from Galileo System Time week/sow.
func FromGalileo(week int, sow float64) Time { return fromSystemEpoch(galEpoch, week, sow) }

// Galileo decomposes t into GST week/sow.
func (t Time) Galileo() (week int, sow float64) { return toSystemTime(galEpoch, t) }

// FromBeiDou builds a Time from BeiDou Time week/sow.
func FromBeiDou(week int, sow float64) Time { return fromSystemEpoch(bdsEpoch, week, sow) }

// BeiDou decomposes t into BDT week/sow.
func (t Time) BeiDou() (week int, sow float64) { return toSystemTime(bdsEpoch, t) }

// ToBeiDouFromGPS converts GPS time to BeiDou time (constant 14s offset, no
// leap seconds in BDT).
func ToBeiDouFromGPS(t Time) Time { return t.Add(-14.0) }

// ToGPSFromBeiDou converts BeiDou time to GPS time.
func ToGPSFromBeiDou(t Time) Time { return t.Add(14.0) }

// leapEntry is one row of the leap-second table: {y,m,d,h,min,s,utc-gps}.
type leapEntry struct {
	epoch  Epoch
	offset float64
}

// leapSeconds is ordered most-recent-first, as the source table is scanned.
var leapSeconds = []leapEntry{
	{Epoch{2017, 1, 1, 0, 0, 0}, -18},
	{Epoch{2015, 7, 1, 0, 0, 0}, -17},
	{Epoch{2012, 7, 1, 0, 0, 0}, -16},
	{Epoch{2009, 1, 1, 0, 0, 0}, -15},
	{Epoch{2006, 1, 1, 0, 0, 0}, -14},
	{Epoch{1999, 1, 1, 0, 0, 0}, -13},
	{Epoch{1997, 7, 1, 0, 0, 0}, -12},
	{Epoch{1996, 1, 1, 0, 0, 0}, -11},
	{Epoch{1994, 7, 1, 0, 0, 0}, -10},
	{Epoch{1993, 7, 1, 0, 0, 0}, -9},
	{Epoch{1992, 7, 1, 0, 0, 0}, -8},
	{Epoch{1991, 1, 1, 0, 0, 0}, -7},
	{Epoch{1990, 1, 1, 0, 0, 0}, -6},
	{Epoch{1988, 1, 1, 0, 0, 0}, -5},
	{Epoch{1985, 7, 1, 0, 0, 0}, -4},
	{Epoch{1983, 7, 1, 0, 0, 0}, -3},
	{Epoch{1982, 7, 1, 0, 0, 0}, -2},
	{Epoch{1981, 7, 1, 0, 0, 0}, -1},
}

// GPSToUTC converts GPS time to UTC, applying the leap-second table.
func GPSToUTC(t Time) Time {
	for _, l := range leapSeconds {
		tu := t.Add(l.offset)
		if tu.Sub(FromEpoch(l.epoch)) >= 0.0 {
			return tu
		}
	}
	return t
}

// UTCToGPS converts UTC to GPS time, applying the leap-second table.
func UTCToGPS(t Time) Time {
	for _, l := range leapSeconds {
		if t.Sub(FromEpoch(l.epoch)) >= 0.0 {
			return t.Add(-l.offset)
		}
	}
	return t
}

// DayStart returns the start-of-day instant of t plus the seconds since
// midnight, mirroring the source's time2sec split used by day-boundary
// ambiguity-reset logic.
func DayStart(t Time) (dayStart Time, secOfDay float64) {
	ep := t.Epoch()
	secOfDay = ep[3]*3600 + ep[4]*60 + ep[5]
	ep[3], ep[4], ep[5] = 0, 0, 0
	return FromEpoch(ep), secOfDay
}

// String formats t as "2006/01/02 15:04:05.000".
func (t Time) String() string {
	ep := t.Epoch()
	return fmt.Sprintf("%04.0f/%02.0f/%02.0f %02.0f:%02.0f:%06.3f",
		ep[0], ep[1], ep[2], ep[3], ep[4], ep[5])
}
