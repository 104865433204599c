package agronomy

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// boundMessages maps Reading fields to the message shown when they fall
// outside their physical bounds.
var boundMessages = map[string]string{
	"Temperature": "Temperature must be between -10°C and 50°C",
	"Humidity":    "Humidity must be between 0% and 100%",
	"SoilPH":      "pH must be between 0 and 14",
	"Rainfall":    "Rainfall must be between 0mm and 5000mm annually",
}

// ValidationError lists every out-of-bounds field of a Reading.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid reading: " + strings.Join(e.Problems, "; ")
}

// ValidateReading rejects readings outside the documented physical bounds.
// Scoring an invalid reading is undefined, so callers must check this first.
func ValidateReading(r Reading) error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate reading: %w", err)
	}

	seen := make(map[string]bool, len(fieldErrs))
	problems := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if seen[fe.Field()] {
			continue
		}
		seen[fe.Field()] = true

		msg, ok := boundMessages[fe.Field()]
		if !ok {
			msg = fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param())
		}
		problems = append(problems, msg)
	}
	return &ValidationError{Problems: problems}
}
