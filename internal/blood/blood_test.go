package blood

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseGroup(t *testing.T) {
	g, err := ParseGroup(" ab+ ")
	require.NoError(t, err)
	require.Equal(t, ABPos, g)

	_, err = ParseGroup("C+")
	require.ErrorIs(t, err, ErrUnknownGroup)
}

func TestCompatibleDonorGroupsCoverage(t *testing.T) {
	require.Equal(t, []Group{ONeg}, CompatibleDonorGroups(ONeg))
	require.ElementsMatch(t, Groups, CompatibleDonorGroups(ABPos))

	for _, g := range Groups {
		donors := CompatibleDonorGroups(g)
		require.NotEmpty(t, donors, g)
		require.Contains(t, donors, g)
		require.Equal(t, g, donors[0])
	}
}

func TestCompatibleDonorGroupsUnknownIsEmpty(t *testing.T) {
	require.Empty(t, CompatibleDonorGroups(Group("Z")))
	require.Empty(t, CompatibleRecipientGroups(Group("")))
}

func TestCompatibleDonorGroupsReturnsCopy(t *testing.T) {
	got := CompatibleDonorGroups(OPos)
	got[0] = ABPos
	require.Equal(t, OPos, CompatibleDonorGroups(OPos)[0])
}

func TestRecipientTableIsInverse(t *testing.T) {
	require.ElementsMatch(t, Groups, CompatibleRecipientGroups(ONeg))
	require.Equal(t, []Group{ABPos}, CompatibleRecipientGroups(ABPos))
	for _, donor := range Groups {
		for _, recipient := range CompatibleRecipientGroups(donor) {
			require.Contains(t, CompatibleDonorGroups(recipient), donor)
		}
	}
}

func TestIsDonorAvailable(t *testing.T) {
	today := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	require.True(t, IsDonorAvailable(nil, today))

	last := today.AddDate(0, 0, -100)
	require.True(t, IsDonorAvailable(&last, today))

	last = today.AddDate(0, 0, -89)
	require.False(t, IsDonorAvailable(&last, today))
	require.Equal(t, 1, DaysUntilEligible(&last, today))

	last = today.AddDate(0, 0, -90)
	require.True(t, IsDonorAvailable(&last, today))
}

func TestEligibilityMonotonicAfterDonation(t *testing.T) {
	donated := time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)
	require.False(t, IsDonorAvailable(&donated, donated))
	require.Equal(t, DeferralDays, DaysUntilEligible(&donated, donated))

	for d := 1; d < DeferralDays; d++ {
		require.False(t, IsDonorAvailable(&donated, donated.AddDate(0, 0, d)), d)
	}
	require.True(t, IsDonorAvailable(&donated, donated.AddDate(0, 0, DeferralDays)))
	require.Equal(t, EligibleOn(donated), Day(donated.AddDate(0, 0, DeferralDays)))
}

func TestDaysBetweenIgnoresClockTime(t *testing.T) {
	a := time.Date(2026, 1, 1, 23, 59, 0, 0, time.UTC)
	b := time.Date(2026, 1, 2, 0, 1, 0, 0, time.UTC)
	require.Equal(t, 1, DaysBetween(a, b))
	require.Equal(t, -1, DaysBetween(b, a))
}
