// Package form converts raw soil-form fields into the validated SoilSample the
// prediction service accepts. Nothing here performs I/O.
package form

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"cropadvisor/internal/types"
)

// decimalPattern accepts plain decimal notation only: an optional sign, digits
// with an optional fraction (or a bare fraction), and an optional exponent.
// Hex floats, digit separators, "Inf" and "NaN" are rejected.
var decimalPattern = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// Errors is the full set of field failures for one form, in field order.
type Errors []*types.ValidationError

// Error implements the error interface.
func (e Errors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, v := range e {
		msgs = append(msgs, v.Error())
	}
	return strings.Join(msgs, "; ")
}

// Field returns the failure recorded for field, if any.
func (e Errors) Field(field string) (*types.ValidationError, bool) {
	for _, v := range e {
		if v.Field == field {
			return v, true
		}
	}
	return nil, false
}

// Validator parses raw form values. It is safe for concurrent use.
type Validator struct {
	structs *validator.Validate
}

// NewValidator creates a Validator with the "finite" struct tag registered.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		return name
	})
	// The tag is only ever applied to float64 fields.
	mustRegister(v, "finite", func(fl validator.FieldLevel) bool {
		f := fl.Field().Float()
		return !math.IsNaN(f) && !math.IsInf(f, 0)
	})
	return &Validator{structs: v}
}

// mustRegister registers tag on v or panics.
func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("form: registering %q validation: %v", tag, err))
	}
}

// Validate returns the SoilSample for raw, or the first failure in field
// order as a *types.ValidationError.
func (v *Validator) Validate(raw map[string]string) (types.SoilSample, error) {
	sample, errs := v.parse(raw)
	if len(errs) > 0 {
		return types.SoilSample{}, errs[0]
	}
	return sample, nil
}

// ValidateAll is Validate reporting every failing field as Errors.
func (v *Validator) ValidateAll(raw map[string]string) (types.SoilSample, error) {
	sample, errs := v.parse(raw)
	if len(errs) > 0 {
		return types.SoilSample{}, errs
	}
	return sample, nil
}

// Check validates an already-decoded sample, as received by a server.
func (v *Validator) Check(sample types.SoilSample) error {
	if strings.TrimSpace(sample.City) == "" {
		return Errors{types.MissingCity()}
	}
	if errs := fromStructErrors(v.structs.Struct(sample)); len(errs) > 0 {
		return errs
	}
	return nil
}

func (v *Validator) parse(raw map[string]string) (types.SoilSample, Errors) {
	var (
		sample types.SoilSample
		errs   Errors
	)

	targets := map[string]*float64{
		types.FieldNitrogen:    &sample.Nitrogen,
		types.FieldPhosphorus:  &sample.Phosphorus,
		types.FieldPotassium:   &sample.Potassium,
		types.FieldPH:          &sample.PH,
		types.FieldTemperature: &sample.Temperature,
		types.FieldRainfall:    &sample.Rainfall,
	}
	for _, field := range types.NumericFields {
		f, ok := ParseDecimal(raw[field])
		if !ok {
			errs = append(errs, types.NotANumber(field))
			continue
		}
		*targets[field] = f
	}

	sample.City = strings.TrimSpace(raw[types.FieldCity])
	if sample.City == "" {
		errs = append(errs, types.MissingCity())
	}

	if len(errs) > 0 {
		return types.SoilSample{}, errs
	}

	if errs := fromStructErrors(v.structs.Struct(sample)); len(errs) > 0 {
		return types.SoilSample{}, errs
	}
	return sample, nil
}

// ParseDecimal parses s as a finite decimal number. Surrounding whitespace is
// ignored.
func ParseDecimal(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if !decimalPattern.MatchString(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// fromStructErrors maps struct-tag failures onto the form error kinds.
// Validating a struct value can only fail with ValidationErrors.
func fromStructErrors(err error) Errors {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return nil
	}
	out := make(Errors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if fe.Field() == types.FieldCity {
			out = append(out, types.MissingCity())
			continue
		}
		out = append(out, types.NotANumber(fe.Field()))
	}
	return out
}
