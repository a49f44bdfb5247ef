package recipe

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationResult is a tagged result: either Valid carrying the checked
// recipe, or Invalid carrying an error description suitable for feeding
// back to the LLM. Never both.
type ValidationResult struct {
	recipe *Recipe
	errMsg string
	valid  bool
}

// Valid wraps a recipe that passed validation.
func Valid(r *Recipe) ValidationResult {
	return ValidationResult{recipe: r, valid: true}
}

// Invalid wraps a validation failure description.
func Invalid(msg string) ValidationResult {
	return ValidationResult{errMsg: msg}
}

// IsValid reports whether the result carries a valid recipe.
func (v ValidationResult) IsValid() bool { return v.valid }

// Recipe returns the validated recipe, or nil for invalid results.
func (v ValidationResult) Recipe() *Recipe { return v.recipe }

// ErrorMessage returns the violation description, or "" for valid results.
func (v ValidationResult) ErrorMessage() string { return v.errMsg }

// Validator checks recipes against structural constraints.
// Validate never panics and never returns an error; every failure mode is
// expressed as an Invalid result.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a recipe validator.
func NewValidator() *Validator {
	return &Validator{validate: validator.New()}
}

// Validate checks required fields and well-formed nested collections.
func (v *Validator) Validate(r *Recipe) ValidationResult {
	if r == nil {
		return Invalid("recipe is null")
	}

	err := v.validate.Struct(r)
	if err == nil {
		return Valid(r)
	}

	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		// InvalidValidationError only occurs for non-struct input, which
		// the nil check above already excludes.
		return Invalid(fmt.Sprintf("recipe could not be validated: %v", err))
	}

	violations := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		violations = append(violations, formatViolation(fe))
	}
	return Invalid(strings.Join(violations, ", "))
}

// formatViolation renders one violation as "field '<path>': <message>".
func formatViolation(fe validator.FieldError) string {
	msg := violationMessage(fe)
	if fe.Value() != nil && fe.Tag() != "required" {
		return fmt.Sprintf("field '%s': %s (got %v)", fieldPath(fe), msg, fe.Value())
	}
	return fmt.Sprintf("field '%s': %s", fieldPath(fe), msg)
}

// fieldPath strips the root struct name from the namespace so violations
// read as paths into the recipe document.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	return ns
}

func violationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must have at least %s entries", fe.Param())
	case "gte":
		return fmt.Sprintf("must be %s or greater", fe.Param())
	default:
		return fmt.Sprintf("failed validation '%s'", fe.Tag())
	}
}
