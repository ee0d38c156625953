package validation

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"

	"github.com/benvon/usage-gov/internal/models"
)

// ErrValidationFailed indicates malformed input rejected before any
// state mutation.
var ErrValidationFailed = errors.New("validation failed")

var (
	// Validate is a shared validator instance
	Validate *validator.Validate

	featurePattern = regexp.MustCompile(`^[a-z0-9_-]{1,64}$`)
)

func init() {
	Validate = validator.New()

	// These should never fail in normal operation, but surface loudly if they do
	if err := Validate.RegisterValidation("alert_type", validateAlertType); err != nil {
		panic(fmt.Sprintf("failed to register alert_type validator: %v", err))
	}
	if err := Validate.RegisterValidation("feature_name", validateFeatureName); err != nil {
		panic(fmt.Sprintf("failed to register feature_name validator: %v", err))
	}
}

// validateAlertType validates that a string is a valid AlertType enum value
func validateAlertType(fl validator.FieldLevel) bool {
	return models.AlertType(fl.Field().String()).Valid()
}

// validateFeatureName validates a lowercase feature identifier
func validateFeatureName(fl validator.FieldLevel) bool {
	return featurePattern.MatchString(fl.Field().String())
}

// ValidateFeature checks a feature identifier: lowercase alphanumeric
// plus '_' and '-', at most 64 characters.
func ValidateFeature(feature string) error {
	if !featurePattern.MatchString(feature) {
		return fmt.Errorf("%w: invalid feature %q (must match %s)", ErrValidationFailed, feature, featurePattern)
	}
	return nil
}

// ValidateAlertType checks an AlertType string value.
func ValidateAlertType(value string) error {
	if !models.AlertType(value).Valid() {
		return fmt.Errorf("%w: invalid alert_type %q", ErrValidationFailed, value)
	}
	return nil
}
