package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/lyzr/orgsync/common/models"
)

// servicePrincipalPattern matches service principals such as guardduty.amazonaws.com
var servicePrincipalPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]*\.[a-z0-9.-]+$`)

// ChangeValidator checks migration parameters before they are appended or applied
type ChangeValidator struct {
	validate *validator.Validate
}

// NewChangeValidator creates a validator that reports fields by their ledger key
func NewChangeValidator() *ChangeValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("service_principal", func(fl validator.FieldLevel) bool {
		return servicePrincipalPattern.MatchString(fl.Field().String())
	})
	return &ChangeValidator{validate: v}
}

// Validate returns an error naming every invalid parameter of change
func (v *ChangeValidator) Validate(change models.Change) error {
	if change == nil {
		return errors.New("migration has no parameters")
	}

	err := v.validate.Struct(change)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%s: %w", change.MigrationType(), err)
	}

	problems := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		problems = append(problems, describe(fe))
	}
	return fmt.Errorf("%s: invalid parameters: %s", change.MigrationType(), strings.Join(problems, "; "))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "required_without":
		return fmt.Sprintf("%s is required when %s is empty", fe.Field(), fe.Param())
	case "startswith":
		return fmt.Sprintf("%s must start with %q", fe.Field(), fe.Param())
	case "nefield":
		return fmt.Sprintf("%s must differ from %s", fe.Field(), fe.Param())
	case "json":
		return fmt.Sprintf("%s must be a JSON document", fe.Field())
	case "service_principal":
		return fmt.Sprintf("%s %q is not a service principal", fe.Field(), fe.Value())
	default:
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
}
