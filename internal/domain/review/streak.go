package review

import "time"

// NextStreak computes the daily claim streak. Claims on consecutive UTC days
// extend the streak, repeat claims on the same day keep it, and a gap of more
// than one day resets it.
func NextStreak(lastRewardAt string, now time.Time, current int64) int64 {
	last, err := time.Parse(time.RFC3339Nano, lastRewardAt)
	if err != nil {
		return 1
	}

	lastDay := last.UTC().Truncate(24 * time.Hour)
	today := now.UTC().Truncate(24 * time.Hour)

	switch today.Sub(lastDay) {
	case 0:
		if current < 1 {
			return 1
		}
		return current
	case 24 * time.Hour:
		return current + 1
	default:
		return 1
	}
}
