package database

import "time"

// DayFromUnix buckets an epoch-seconds timestamp into a UTC calendar day,
// formatted YYYY-MM-DD. All daily aggregates key on this.
func DayFromUnix(createdUTC int64) string {
	return time.Unix(createdUTC, 0).UTC().Format("2006-01-02")
}

// GetToday returns today's UTC date as YYYY-MM-DD.
func GetToday() string {
	return time.Now().UTC().Format("2006-01-02")
}
