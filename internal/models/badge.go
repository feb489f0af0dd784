package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
)

// ErrInvalidBadgeType is returned when a badge type string is not recognised.
var ErrInvalidBadgeType = errors.New("invalid badge type")

// ErrInvalidBadgeTier is returned when a badge tier string is not recognised.
var ErrInvalidBadgeTier = errors.New("invalid badge tier")

// ===============================
// BADGE TYPES
// ===============================

// BadgeType is the category of an achievement.
type BadgeType string

const (
	BadgeTypeUploadPhoto BadgeType = "upload_photo"
	BadgeTypeLogActivity BadgeType = "log_activity"
	BadgeTypeMakePost    BadgeType = "make_post"
	BadgeTypeDaysInApp   BadgeType = "days_in_app"
)

// BadgeTypes lists every badge type in display order.
var BadgeTypes = []BadgeType{
	BadgeTypeUploadPhoto,
	BadgeTypeLogActivity,
	BadgeTypeMakePost,
	BadgeTypeDaysInApp,
}

// ParseBadgeType converts a wire value into a BadgeType.
func ParseBadgeType(s string) (BadgeType, error) {
	switch t := BadgeType(s); t {
	case BadgeTypeUploadPhoto, BadgeTypeLogActivity, BadgeTypeMakePost, BadgeTypeDaysInApp:
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidBadgeType, s)
}

// ===============================
// BADGE TIERS
// ===============================

// BadgeTier is an achievement level within one badge type.
type BadgeTier string

const (
	TierFirst         BadgeTier = "first"
	TierTenth         BadgeTier = "tenth"
	TierFiftieth      BadgeTier = "fiftieth"
	TierHundredth     BadgeTier = "hundredth"
	TierFiveHundredth BadgeTier = "five_hundredth"
	TierThousandth    BadgeTier = "thousandth"
	TierYear          BadgeTier = "year"
	TierTwoYear       BadgeTier = "two_year"
	TierThreeYear     BadgeTier = "three_year"
	TierFiveYear      BadgeTier = "five_year"
)

// ParseBadgeTier converts a wire value into a BadgeTier.
func ParseBadgeTier(s string) (BadgeTier, error) {
	switch t := BadgeTier(s); t {
	case TierFirst, TierTenth, TierFiftieth, TierHundredth, TierFiveHundredth,
		TierThousandth, TierYear, TierTwoYear, TierThreeYear, TierFiveYear:
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidBadgeTier, s)
}

var (
	photoLadder   = []BadgeTier{TierFirst}
	counterLadder = []BadgeTier{TierFirst, TierTenth, TierFiftieth, TierHundredth, TierFiveHundredth, TierThousandth}
	timeLadder    = []BadgeTier{TierFirst, TierTenth, TierFiftieth, TierHundredth, TierYear, TierTwoYear, TierThreeYear, TierFiveYear}
)

// Ladder returns the ordered tiers a badge type can hold. The returned slice
// must not be modified.
func Ladder(t BadgeType) []BadgeTier {
	switch t {
	case BadgeTypeUploadPhoto:
		return photoLadder
	case BadgeTypeLogActivity, BadgeTypeMakePost:
		return counterLadder
	case BadgeTypeDaysInApp:
		return timeLadder
	}
	return nil
}

// Rank is the position of tier within the ladder of t, or -1 when the tier
// does not belong to that badge type.
func Rank(t BadgeType, tier BadgeTier) int {
	for i, candidate := range Ladder(t) {
		if candidate == tier {
			return i
		}
	}
	return -1
}

// ===============================
// BADGE RECORD
// ===============================

// BadgeRecord is the earned-or-in-progress achievement of one badge type
// for one pet.
type BadgeRecord struct {
	PetID       uuid.UUID `json:"pet_id" db:"pet_id"`
	Type        BadgeType `json:"type" db:"type"`
	Tier        BadgeTier `json:"tier" db:"tier"`
	LastUpdated time.Time `json:"last_updated" db:"last_updated"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Rank is the ladder position of the record's tier.
func (b BadgeRecord) Rank() int {
	return Rank(b.Type, b.Tier)
}

// Validate checks the record invariants that can be verified in isolation.
func (b BadgeRecord) Validate() error {
	if b.PetID == uuid.Nil {
		return fmt.Errorf("badge record: pet id is required")
	}
	if _, err := ParseBadgeType(string(b.Type)); err != nil {
		return fmt.Errorf("badge record: %w", err)
	}
	if b.Rank() < 0 {
		return fmt.Errorf("badge record: %w: %s is not a %s tier", ErrInvalidBadgeTier, b.Tier, b.Type)
	}
	if b.LastUpdated.Before(b.CreatedAt) {
		return fmt.Errorf("badge record: last_updated precedes created_at")
	}
	return nil
}

// ===============================
// PRESENTATION
// ===============================

// BadgeView is the client-facing representation of a badge.
type BadgeView struct {
	BadgeRecord
	Description string `json:"description"`
	ImagePath   string `json:"image_path"`
}

// NewBadgeView decorates a record with its description and image.
func NewBadgeView(b BadgeRecord) BadgeView {
	return BadgeView{
		BadgeRecord: b,
		Description: Description(b.Type, b.Tier),
		ImagePath:   ImagePath(b.Type),
	}
}

// ImagePath is the storage object name of a badge type's artwork.
func ImagePath(t BadgeType) string {
	return string(t) + ".png"
}

// Description returns the text shown for a badge, or "" for a tier that
// does not belong to the badge type.
func Description(t BadgeType, tier BadgeTier) string {
	switch t {
	case BadgeTypeUploadPhoto:
		if tier == TierFirst {
			return "Upload a picture of your pet."
		}
	case BadgeTypeLogActivity:
		switch tier {
		case TierFirst:
			return "Log an activity for your pet."
		case TierTenth:
			return "Log 10 activities for your pet."
		case TierFiftieth:
			return "Log 50 activities for your pet."
		case TierHundredth:
			return "Log 100 activities for your pet."
		case TierFiveHundredth:
			return "Log 500 activities for your pet."
		case TierThousandth:
			return "Log 1000 activities for your pet. Good work!"
		}
	case BadgeTypeMakePost:
		switch tier {
		case TierFirst:
			return "Make a post about your pet."
		case TierTenth:
			return "Make 10 posts about your pet."
		case TierFiftieth:
			return "Make 50 posts about your pet."
		case TierHundredth:
			return "Make 100 posts about your pet."
		case TierFiveHundredth:
			return "Make 500 posts about your pet."
		case TierThousandth:
			return "Make 1000 posts about your pet."
		}
	case BadgeTypeDaysInApp:
		switch tier {
		case TierFirst:
			return "You've added your pet to Petfolio. Glad to have you here!"
		case TierTenth:
			return "Your pet has been in Petfolio for 10 days."
		case TierFiftieth:
			return "Your pet has been in Petfolio for 50 days."
		case TierHundredth:
			return "Your pet has been in Petfolio for 100 days."
		case TierYear:
			return "Your pet has been in Petfolio for a year."
		case TierTwoYear:
			return "Your pet has been in Petfolio for 2 years."
		case TierThreeYear:
			return "Your pet has been in Petfolio for 3 years. Wow!"
		case TierFiveYear:
			return "Your pet has been in Petfolio for 5 years. How the time passes!"
		}
	}
	return ""
}
