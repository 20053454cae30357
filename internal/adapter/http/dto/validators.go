package dto

import (
	"html"
	"reflect"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var safeStringRe = regexp.MustCompile(`^[a-zA-Z0-9_\-\.]+$`)

// moneyPlaces is the number of decimal places accepted on money input.
const moneyPlaces = 2

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		RegisterValidators(v)
	}
}

// RegisterValidators installs the custom tags on v. Decimal fields are
// validated through their string form.
func RegisterValidators(v *validator.Validate) {
	v.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{})
	_ = v.RegisterValidation("safe_id", validateSafeID)
	_ = v.RegisterValidation("money", validateMoney)
	_ = v.RegisterValidation("nonneg_money", validateNonNegMoney)
	_ = v.RegisterValidation("fraction", validateFraction)
}

func decimalValue(field reflect.Value) interface{} {
	if d, ok := field.Interface().(decimal.Decimal); ok {
		return d.String()
	}
	return nil
}

// validateSafeID allows alphanumeric, underscore, dash, and dot.
func validateSafeID(fl validator.FieldLevel) bool {
	return safeStringRe.MatchString(fl.Field().String())
}

func parseDecimal(fl validator.FieldLevel) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(fl.Field().String())
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// validateMoney accepts a positive amount with at most two decimal places.
func validateMoney(fl validator.FieldLevel) bool {
	d, ok := parseDecimal(fl)
	return ok && d.IsPositive() && d.Equal(d.Round(moneyPlaces))
}

// validateNonNegMoney accepts zero or a positive amount with at most two decimal places.
func validateNonNegMoney(fl validator.FieldLevel) bool {
	d, ok := parseDecimal(fl)
	return ok && !d.IsNegative() && d.Equal(d.Round(moneyPlaces))
}

// validateFraction accepts a rate in [0, 1).
func validateFraction(fl validator.FieldLevel) bool {
	d, ok := parseDecimal(fl)
	return ok && !d.IsNegative() && d.LessThan(decimal.NewFromInt(1))
}

// SanitizeStruct trims whitespace and HTML-escapes every exported string
// field (including *string) of a struct pointer.
func SanitizeStruct(v interface{}) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return
	}
	sanitizeFields(rv.Elem())
}

func sanitizeFields(rv reflect.Value) {
	for i := 0; i < rv.NumField(); i++ {
		f := rv.Field(i)
		if !f.CanSet() {
			continue
		}
		switch f.Kind() {
		case reflect.String:
			f.SetString(sanitize(f.String()))
		case reflect.Ptr:
			if f.IsNil() {
				continue
			}
			elem := f.Elem()
			if elem.Kind() == reflect.String {
				elem.SetString(sanitize(elem.String()))
			}
		}
	}
}

func sanitize(s string) string {
	return html.EscapeString(strings.TrimSpace(s))
}
