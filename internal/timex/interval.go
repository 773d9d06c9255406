package timex

import "time"

// IntervalLength is the width of one rolling interval.
const IntervalLength = 10 * time.Minute

// IntervalNumber returns the rolling interval number containing t.
func IntervalNumber(t time.Time) uint32 {
	return uint32(t.UTC().Unix() / int64(IntervalLength.Seconds()))
}

// IntervalStart returns the UTC start time of interval n.
func IntervalStart(n uint32) time.Time {
	return time.Unix(int64(n)*int64(IntervalLength.Seconds()), 0).UTC()
}

// TruncateDay returns midnight UTC of the day containing t.
func TruncateDay(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour)
}
