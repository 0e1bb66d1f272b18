package bsn

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var (
	datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	timePattern = regexp.MustCompile(`^(\d{2}:\d{2}:\d{2})(\s+\S+)?$`)
)

// newValidator reports fields by their JSON names and registers the
// player-specific tags.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	// player_date is yyyy-mm-dd and a real calendar date.
	_ = v.RegisterValidation("player_date", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if !datePattern.MatchString(s) {
			return false
		}
		_, err := time.Parse(time.DateOnly, s)
		return err == nil
	})

	// player_time is hh:mm:ss optionally followed by a timezone name.
	_ = v.RegisterValidation("player_time", func(fl validator.FieldLevel) bool {
		m := timePattern.FindStringSubmatch(fl.Field().String())
		if m == nil {
			return false
		}
		_, err := time.Parse(time.TimeOnly, m[1])
		return err == nil
	})

	return v
}

// check validates a parameter struct.
func (c *Client) check(params any) error {
	return toValidationError(c.validate.Struct(params), "")
}

// checkVar validates a single value against tag.
func (c *Client) checkVar(field string, value any, tag string) error {
	return toValidationError(c.validate.Var(value, tag), field)
}

func toValidationError(err error, field string) error {
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &ValidationError{Kind: KindBadArgument, Field: field, Message: err.Error(), Err: err}
	}

	fe := fieldErrs[0]
	name := field
	if name == "" {
		name = fe.Field()
	}
	return &ValidationError{Kind: KindBadArgument, Field: name, Message: describe(fe), Err: err}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + strings.Join(strings.Fields(fe.Param()), ", ")
	case "min", "gte":
		return "must be at least " + fe.Param()
	case "max", "lte":
		return "must be at most " + fe.Param()
	case "excludesall":
		return "must not contain any of " + fe.Param()
	case "url", "http_url":
		return "must be a valid URL"
	case "player_date":
		return "must be formatted as yyyy-mm-dd"
	case "player_time":
		return "must be formatted as hh:mm:ss with optional timezone"
	default:
		return "failed the " + fe.Tag() + " check"
	}
}

// exactlyOne reports a bad argument unless exactly one of the named values
// is set.
func exactlyOne(a, b string, aSet, bSet bool) error {
	if aSet == bSet {
		return badArgument(a, "or %s must be provided, but not both", b)
	}
	return nil
}

// atLeastOne reports a bad argument when neither value is set.
func atLeastOne(a, b string, aSet, bSet bool) error {
	if !aSet && !bSet {
		return badArgument(a, "or %s must be provided", b)
	}
	return nil
}
