package registrations

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Togather-Foundation/registration/internal/sanitize"
)

// Input is the public registration form.
type Input struct {
	Name       string `json:"nome" validate:"required,max=100"`
	Email      string `json:"email" validate:"required,max=255,email"`
	Phone      string `json:"telefone" validate:"required,max=20,phone"`
	WantsShirt bool   `json:"quer_camisa"`
	ShirtSize  string `json:"tamanho_camisa" validate:"required_if=WantsShirt true,omitempty,shirtsize"`
	ShirtName  string `json:"nome_na_camisa" validate:"required_if=WantsShirt true,max=40"`
	Sex        string `json:"sexo" validate:"omitempty,max=20"`
}

// ValidationError reports every offending field at once, keyed by the JSON
// field name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "invalid registration: " + strings.Join(parts, "; ")
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return ValidPhone(fl.Field().String())
	})
	_ = v.RegisterValidation("shirtsize", func(fl validator.FieldLevel) bool {
		return ShirtSize(fl.Field().String()).Valid()
	})
	return v
}

// Normalize trims every text field, strips markup, applies the phone mask and
// drops shirt details when no shirt was requested.
func Normalize(in Input) Input {
	out := Input{
		Name:       sanitize.Text(in.Name),
		Email:      strings.TrimSpace(in.Email),
		Phone:      FormatPhone(in.Phone),
		WantsShirt: in.WantsShirt,
		Sex:        strings.TrimSpace(in.Sex),
	}
	if in.WantsShirt {
		out.ShirtSize = strings.ToUpper(strings.TrimSpace(in.ShirtSize))
		out.ShirtName = sanitize.Text(in.ShirtName)
	}
	return out
}

// Validate checks a normalized input.
func Validate(in Input) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate registration: %w", err)
	}
	verr := &ValidationError{Fields: make(map[string]string, len(fieldErrs))}
	for _, fe := range fieldErrs {
		if _, seen := verr.Fields[fe.Field()]; seen {
			continue
		}
		verr.Fields[fe.Field()] = fieldMessage(fe)
	}
	return verr
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "phone":
		return "must look like (DD) DDDDD-DDDD"
	case "shirtsize":
		return "must be one of PP, P, M, G, GG, XGG"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	default:
		return "is invalid"
	}
}
