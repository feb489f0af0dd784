package badges

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"petfolio/internal/models"
)

func TestRuleTablesCoverLadders(t *testing.T) {
	cases := []struct {
		badgeType models.BadgeType
		rules     map[models.BadgeTier]step
	}{
		{models.BadgeTypeLogActivity, counterRules},
		{models.BadgeTypeMakePost, counterRules},
		{models.BadgeTypeDaysInApp, timeRules},
	}

	for _, tc := range cases {
		t.Run(string(tc.badgeType), func(t *testing.T) {
			ladder := models.Ladder(tc.badgeType)
			require.NotEmpty(t, ladder)
			for i, tier := range ladder[:len(ladder)-1] {
				s, ok := tc.rules[tier]
				require.True(t, ok, "no rule for %s", tier)
				assert.Equal(t, ladder[i+1], s.next)
			}
			_, terminal := tc.rules[ladder[len(ladder)-1]]
			assert.False(t, terminal)
			assert.Len(t, tc.rules, len(ladder)-1)
		})
	}
}

func TestNextCounterTier(t *testing.T) {
	cases := []struct {
		current models.BadgeTier
		count   int
		want    models.BadgeTier
		changed bool
	}{
		{"", 0, models.TierFirst, true},
		{"", 1, models.TierFirst, true},
		{"", 5000, models.TierFirst, true},
		{models.TierFirst, 9, "", false},
		{models.TierFirst, 10, models.TierTenth, true},
		{models.TierFirst, 1000, models.TierTenth, true},
		{models.TierTenth, 49, "", false},
		{models.TierTenth, 50, models.TierFiftieth, true},
		{models.TierFiftieth, 100, models.TierHundredth, true},
		{models.TierHundredth, 499, "", false},
		{models.TierHundredth, 500, models.TierFiveHundredth, true},
		{models.TierFiveHundredth, 1000, models.TierThousandth, true},
		{models.TierThousandth, 1_000_000, "", false},
	}

	for _, tc := range cases {
		got, changed := NextCounterTier(tc.current, tc.count)
		assert.Equal(t, tc.changed, changed, "current=%q count=%d", tc.current, tc.count)
		assert.Equal(t, tc.want, got, "current=%q count=%d", tc.current, tc.count)
	}
}

func TestNextTimeTier(t *testing.T) {
	cases := []struct {
		current models.BadgeTier
		days    int
		want    models.BadgeTier
		changed bool
	}{
		{"", 0, models.TierFirst, true},
		{models.TierFirst, 9, "", false},
		{models.TierFirst, 10, models.TierTenth, true},
		{models.TierTenth, 50, models.TierFiftieth, true},
		{models.TierFiftieth, 99, "", false},
		{models.TierFiftieth, 100, models.TierHundredth, true},
		{models.TierHundredth, 364, "", false},
		{models.TierHundredth, 365, models.TierYear, true},
		{models.TierYear, 729, "", false},
		{models.TierYear, 730, models.TierTwoYear, true},
		{models.TierTwoYear, 1095, models.TierThreeYear, true},
		{models.TierThreeYear, 1094, "", false},
		{models.TierThreeYear, 1095, models.TierFiveYear, true},
		{models.TierFiveYear, 100_000, "", false},
	}

	for _, tc := range cases {
		got, changed := NextTimeTier(tc.current, tc.days)
		assert.Equal(t, tc.changed, changed, "current=%q days=%d", tc.current, tc.days)
		assert.Equal(t, tc.want, got, "current=%q days=%d", tc.current, tc.days)
	}
}

func TestCounterSequenceIsMonotonic(t *testing.T) {
	var tier models.BadgeTier
	prev := -1
	for count := 1; count <= 2000; count++ {
		if next, ok := NextCounterTier(tier, count); ok {
			tier = next
		}
		rank := models.Rank(models.BadgeTypeLogActivity, tier)
		require.GreaterOrEqual(t, rank, prev)
		prev = rank
	}
	assert.Equal(t, models.TierThousandth, tier)
}

func TestElapsedWholeDays(t *testing.T) {
	from := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, 0, ElapsedWholeDays(from, from))
	assert.Equal(t, 0, ElapsedWholeDays(from, from.Add(23*time.Hour+59*time.Minute)))
	assert.Equal(t, 1, ElapsedWholeDays(from, from.Add(24*time.Hour)))
	assert.Equal(t, 364, ElapsedWholeDays(from, from.Add(365*24*time.Hour-time.Second)))
	assert.Equal(t, 365, ElapsedWholeDays(from, from.Add(365*24*time.Hour)))
	assert.Equal(t, 0, ElapsedWholeDays(from, from.Add(-48*time.Hour)))
}
