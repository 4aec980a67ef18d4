package notify

import "time"

// Eligible reports whether a timer notification is due now for one
// (child, event type, device) candidate.
//
// A child with no activity history can never have an expired timer. Once
// the threshold has elapsed, the first notification of an expiration
// episode is always due; after that the repeat interval decides between a
// fixed reminder cadence and notify-once-per-episode. A fresh activity
// record moves lastActivity forward and starts a new episode.
func Eligible(now time.Time, lastActivity *time.Time, thresholdMinutes int, lastNotified *time.Time, repeatMinutes *int) bool {
	if lastActivity == nil {
		return false
	}

	elapsed := now.Sub(*lastActivity)
	if elapsed < time.Duration(thresholdMinutes)*time.Minute {
		return false
	}

	if lastNotified == nil {
		return true
	}

	// A notification that predates the latest activity belongs to an
	// earlier episode; the current expiration has not been announced yet.
	if lastNotified.Before(*lastActivity) {
		return true
	}

	if repeatMinutes == nil {
		return false
	}

	return now.Sub(*lastNotified) >= time.Duration(*repeatMinutes)*time.Minute
}
