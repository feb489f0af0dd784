package badges

import (
	"time"

	"petfolio/internal/models"
)

// FiveYearThresholdDays is the elapsed-day count that moves a three_year
// days_in_app badge to five_year. It matches the three_year threshold, and
// because elapsed days are measured from the last tier change it is reached
// roughly six years after the pet was added.
const FiveYearThresholdDays = 3 * 365

type step struct {
	next      models.BadgeTier
	threshold int
}

// counterRules maps a counter badge's current tier to the next one and the
// count needed to reach it. Terminal tiers have no entry.
var counterRules = map[models.BadgeTier]step{
	models.TierFirst:         {models.TierTenth, 10},
	models.TierTenth:         {models.TierFiftieth, 50},
	models.TierFiftieth:      {models.TierHundredth, 100},
	models.TierHundredth:     {models.TierFiveHundredth, 500},
	models.TierFiveHundredth: {models.TierThousandth, 1000},
}

// timeRules maps a days_in_app tier to the next one and the whole days since
// the last tier change needed to reach it.
var timeRules = map[models.BadgeTier]step{
	models.TierFirst:     {models.TierTenth, 10},
	models.TierTenth:     {models.TierFiftieth, 50},
	models.TierFiftieth:  {models.TierHundredth, 100},
	models.TierHundredth: {models.TierYear, 365},
	models.TierYear:      {models.TierTwoYear, 2 * 365},
	models.TierTwoYear:   {models.TierThreeYear, 3 * 365},
	models.TierThreeYear: {models.TierFiveYear, FiveYearThresholdDays},
}

// NextCounterTier returns the tier a counter badge moves to, if any. An empty
// current tier means the pet holds no badge of that type yet, and any event
// creates it at first. Only the immediately next threshold is inspected.
func NextCounterTier(current models.BadgeTier, count int) (models.BadgeTier, bool) {
	return next(counterRules, current, count)
}

// NextTimeTier returns the tier a days_in_app badge moves to, if any.
func NextTimeTier(current models.BadgeTier, elapsedDays int) (models.BadgeTier, bool) {
	return next(timeRules, current, elapsedDays)
}

func next(rules map[models.BadgeTier]step, current models.BadgeTier, value int) (models.BadgeTier, bool) {
	if current == "" {
		return models.TierFirst, true
	}
	s, ok := rules[current]
	if !ok || value < s.threshold {
		return "", false
	}
	return s.next, true
}

// ElapsedWholeDays counts complete 24 hour periods between from and now.
func ElapsedWholeDays(from, now time.Time) int {
	if now.Before(from) {
		return 0
	}
	return int(now.Sub(from) / (24 * time.Hour))
}
