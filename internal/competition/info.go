package competition

import (
	"fmt"
	"slices"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/paulmach/orb"
)

// CompetitionInfo is the read-only scoring configuration of a competition.
// Build it with NewInfo; the slices it holds are private copies.
type CompetitionInfo struct {
	ID              string      `validate:"required"`
	Name            string      `validate:"required"`
	Criteria        []Criterion `validate:"required,min=1,unique,dive,criterion"`
	WinnerThreshold int         `validate:"gte=1"`
	StartDate       time.Time   `validate:"required"`
	EndDate         time.Time   `validate:"required,gtfield=StartDate"`
	AgeGroups       []AgeGroup  `validate:"unique,dive,agegroup"`

	// Region is the already-unioned region of interest. Nil means no
	// geographic filter.
	Region orb.MultiPolygon `validate:"-"`
}

var validate = NewValidator()

// NewValidator returns a validator that understands the criterion and
// agegroup tags
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("criterion", func(fl validator.FieldLevel) bool {
		return Criterion(fl.Field().String()).Known()
	})
	_ = v.RegisterValidation("agegroup", func(fl validator.FieldLevel) bool {
		return AgeGroup(fl.Field().String()).Known()
	})
	_ = v.RegisterValidation("registration", func(fl validator.FieldLevel) bool {
		return RegistrationStatus(fl.Field().String()).Known()
	})
	return v
}

// NewInfo validates the given configuration and returns an immutable copy
func NewInfo(info CompetitionInfo) (CompetitionInfo, error) {
	if err := validate.Struct(&info); err != nil {
		return CompetitionInfo{}, fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}
	info.Criteria = slices.Clone(info.Criteria)
	info.AgeGroups = slices.Clone(info.AgeGroups)
	if info.Region != nil {
		info.Region = info.Region.Clone()
	}
	return info, nil
}

// AcceptsAgeGroup reports whether a rider in group g can score in the
// competition. An empty age-group set accepts everyone.
func (c CompetitionInfo) AcceptsAgeGroup(g AgeGroup) bool {
	if len(c.AgeGroups) == 0 {
		return true
	}
	return slices.Contains(c.AgeGroups, g)
}

// HasRegion reports whether scoring is restricted to a region of interest
func (c CompetitionInfo) HasRegion() bool {
	return len(c.Region) > 0
}
