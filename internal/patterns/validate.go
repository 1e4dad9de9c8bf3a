package patterns

import (
	"errors"
	"fmt"
	"regexp"
	"sort"

	"github.com/go-playground/validator/v10"

	apperrors "equity-screener/internal/errors"
	"equity-screener/internal/fundamentals"
	"equity-screener/internal/models"
)

var patternIDRe = regexp.MustCompile(`^[a-z0-9_]+$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("pattern_id", func(fl validator.FieldLevel) bool {
		return patternIDRe.MatchString(fl.Field().String())
	})
	return v
}

// Validate checks a pattern before it is written. Presets may additionally
// sort by signal_strength.
func Validate(p models.Pattern) error {
	if err := validate.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return apperrors.NewValidationError(fe.Namespace(), fe.Value(), describe(fe))
		}
		return apperrors.Wrap(apperrors.ErrInvalidPattern, err.Error())
	}

	metrics := make([]string, 0, len(p.FundamentalCriteria))
	for name := range p.FundamentalCriteria {
		metrics = append(metrics, name)
	}
	sort.Strings(metrics)
	for _, name := range metrics {
		if !fundamentals.IsMetric(name) {
			return apperrors.NewValidationError("fundamental_criteria", name, "unknown metric")
		}
		if err := fundamentals.CheckBound(name, p.FundamentalCriteria[name]); err != nil {
			return err
		}
	}

	return validateSortBy(p)
}

func validateSortBy(p models.Pattern) error {
	switch {
	case p.SortBy == "", p.SortBy == models.SortByMatchScore:
		return nil
	case fundamentals.IsMetric(p.SortBy):
		return nil
	case p.IsPreset && p.SortBy == PresetSortSignalStrength:
		return nil
	}
	return apperrors.NewValidationError("sort_by", p.SortBy, "must be match_score or a fundamental metric")
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "pattern_id":
		return "must contain only lowercase letters, digits and underscores"
	case "gte", "lte":
		return "must be between 0 and 100"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	}
	return fmt.Sprintf("failed %s validation", fe.Tag())
}
