// Package storetime converts between calendar time and the store's
// epoch-relative expiration unit: whole seconds since 2010-01-01T00:00:00Z.
package storetime

import "time"

// Epoch is the origin of store time.
var Epoch = time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC)

// Latest is the latest instant FromStoreTime returns.
var Latest = time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)

// Day is the length of one horizon day.
const Day = 24 * time.Hour

// ToStoreTime returns the seconds elapsed from Epoch to t, truncated
// toward zero.
func ToStoreTime(t time.Time) int64 {
	secs := t.Unix() - Epoch.Unix()
	// Unix floors; pre-epoch instants with a fractional second round up.
	if secs < 0 && t.Nanosecond() != 0 {
		secs++
	}
	return secs
}

// FromStoreTime returns Epoch plus secs seconds, in UTC. Values past Latest
// saturate.
func FromStoreTime(secs int64) time.Time {
	if secs > Latest.Unix()-Epoch.Unix() {
		return Latest
	}
	return time.Unix(Epoch.Unix()+secs, 0).UTC()
}

// Threshold returns the store time of now shifted by days. Zero and negative
// horizons are accepted. Days are counted in UTC so each one is exactly Day
// long.
func Threshold(now time.Time, days int) int64 {
	return ToStoreTime(now.UTC().AddDate(0, 0, days))
}
