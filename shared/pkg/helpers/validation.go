package helpers

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var (
	assetSymbolRegex = regexp.MustCompile(`^[A-Za-z0-9]{2,12}$`)
	decimalRegex     = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)
)

// CustomValidator wraps go-playground validator with remittance rules
type CustomValidator struct {
	validate *validator.Validate
}

// NewCustomValidator creates a validator that reports fields by their json names
func NewCustomValidator() *CustomValidator {
	v := validator.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	v.RegisterValidation("asset_symbol", validateAssetSymbol)
	v.RegisterValidation("positive_decimal", validatePositiveDecimal)

	return &CustomValidator{validate: v}
}

// RegisterRule adds a string rule under tag, e.g. a ledger address check owned by another package
func (cv *CustomValidator) RegisterRule(tag string, rule func(string) bool) error {
	return cv.validate.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
		return rule(fl.Field().String())
	})
}

// Validate validates a struct
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validate.Struct(i)
}

// validateAssetSymbol accepts short alphanumeric ticker symbols
func validateAssetSymbol(fl validator.FieldLevel) bool {
	return assetSymbolRegex.MatchString(strings.TrimSpace(fl.Field().String()))
}

// validatePositiveDecimal accepts plain decimal strings greater than zero. Exponents and signs are rejected.
func validatePositiveDecimal(fl validator.FieldLevel) bool {
	raw := strings.TrimSpace(fl.Field().String())
	if !decimalRegex.MatchString(raw) {
		return false
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return false
	}
	return d.IsPositive()
}
