package matchup

import "time"

// avhrrEpochOffset is the span in seconds between the Unix epoch
// (1970-01-01) and the AVHRR product epoch (1975-01-01), which includes the
// 1972 leap year.
const avhrrEpochOffset = 157766400

// AVHRRToUnix converts an AVHRR product timestamp (seconds since
// 1975-01-01) to Unix seconds.
func AVHRRToUnix(t float64) float64 { return t + avhrrEpochOffset }

// UnixToAVHRR converts Unix seconds to AVHRR product seconds.
func UnixToAVHRR(t float64) float64 { return t - avhrrEpochOffset }

// AVHRRTime converts an AVHRR product timestamp to a time.Time in UTC.
func AVHRRTime(t float64) time.Time {
	secs := int64(AVHRRToUnix(t))
	frac := AVHRRToUnix(t) - float64(secs)
	return time.Unix(secs, int64(frac*1e9)).UTC()
}
