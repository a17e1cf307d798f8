package transcoder

import (
	"regexp"
	"strconv"
)

var durationPattern = regexp.MustCompile(`Duration: (\d{2}):(\d{2}):(\d{2})\.(\d{2})`)

// DurationScanner extracts a media duration from FFmpeg's output stream,
// fed one line at a time. The last match wins. It is best-effort telemetry:
// a stream with no match simply reports no duration.
type DurationScanner struct {
	millis *int64
}

// Feed scans one output line for a duration signal.
func (d *DurationScanner) Feed(line string) {
	m := durationPattern.FindStringSubmatch(line)
	if m == nil {
		return
	}

	hours, _ := strconv.ParseInt(m[1], 10, 64)
	minutes, _ := strconv.ParseInt(m[2], 10, 64)
	seconds, _ := strconv.ParseInt(m[3], 10, 64)
	centis, _ := strconv.ParseInt(m[4], 10, 64)

	total := hours*3600000 + minutes*60000 + seconds*1000 + centis*10
	d.millis = &total
}

// Millis returns the last observed duration in milliseconds, or nil if no
// duration was ever seen.
func (d *DurationScanner) Millis() *int64 {
	return d.millis
}
