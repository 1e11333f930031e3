package blood

import "time"

// DeferralDays is the minimum gap between two whole-blood donations.
const DeferralDays = 90

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween counts whole calendar days from from to to; negative when to is
// earlier.
func DaysBetween(from, to time.Time) int {
	return int(Day(to).Sub(Day(from)).Hours() / 24)
}

// IsDonorAvailable reports whether a donor whose last donation happened on
// last may donate on asOf. A donor who never donated is always available.
func IsDonorAvailable(last *time.Time, asOf time.Time) bool {
	return DaysUntilEligible(last, asOf) == 0
}

// DaysUntilEligible returns how many days remain before the donor may donate
// again, or 0 when the donor is already available.
func DaysUntilEligible(last *time.Time, asOf time.Time) int {
	if last == nil {
		return 0
	}
	elapsed := DaysBetween(*last, asOf)
	if elapsed >= DeferralDays {
		return 0
	}
	return DeferralDays - elapsed
}

// EligibleOn is the first date a donor with the given last donation may donate.
func EligibleOn(last time.Time) time.Time {
	return Day(last).AddDate(0, 0, DeferralDays)
}
