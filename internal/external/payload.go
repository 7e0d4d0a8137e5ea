package external

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"cropadvisor/internal/types"
)

// Wire shapes of the 2xx bodies. Required numbers are pointers so that an
// absent field is told apart from a zero.

type weatherPayload struct {
	Temperature *float64 `json:"temperature" validate:"required"`
	Humidity    *float64 `json:"humidity" validate:"required,gte=0,lte=100"`
	Description string   `json:"description" validate:"required"`
	City        string   `json:"city" validate:"required"`
	Icon        string   `json:"icon"`
}

type cropPayload struct {
	Crop        string   `json:"crop" validate:"required"`
	Probability *float64 `json:"probability" validate:"required,gte=0,lte=1"`
}

type recommendationPayload struct {
	Crop       string          `json:"crop" validate:"required"`
	Advisory   string          `json:"advisory" validate:"required"`
	Confidence *float64        `json:"confidence" validate:"omitempty,gte=0,lte=1"`
	TopFactors []string        `json:"top_factors"`
	TopCrops   []cropPayload   `json:"top_crops" validate:"omitempty,dive"`
	Weather    *weatherPayload `json:"weather"`
}

func (p *weatherPayload) snapshot() *types.WeatherSnapshot {
	return &types.WeatherSnapshot{
		Temperature: *p.Temperature,
		Humidity:    *p.Humidity,
		Description: p.Description,
		City:        p.City,
		Icon:        p.Icon,
	}
}

func (p *recommendationPayload) recommendation() *types.Recommendation {
	rec := &types.Recommendation{
		Crop:       p.Crop,
		Advisory:   p.Advisory,
		Confidence: p.Confidence,
		TopFactors: p.TopFactors,
	}
	if len(p.TopCrops) > 0 {
		rec.TopCrops = make([]types.CropProbability, len(p.TopCrops))
		for i, c := range p.TopCrops {
			rec.TopCrops[i] = types.CropProbability{Crop: c.Crop, Probability: *c.Probability}
		}
	}
	if p.Weather != nil {
		rec.Weather = p.Weather.snapshot()
	}
	return rec
}

// newPayloadValidator reports failures by JSON field name.
func newPayloadValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		return name
	})
	return v
}

// decodePayload reads exactly one JSON value from body into out and checks
// its struct rules.
func decodePayload(v *validator.Validate, body io.Reader, out any) error {
	dec := json.NewDecoder(body)
	if err := dec.Decode(out); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("unexpected data after JSON body")
	}
	if err := v.Struct(out); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("field %s failed %q", fe.Namespace(), fe.Tag())
		}
		return err
	}
	return nil
}
