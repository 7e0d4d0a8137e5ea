package types

// Numeric form fields, in the order they are parsed and reported.
const (
	FieldNitrogen    = "nitrogen"
	FieldPhosphorus  = "phosphorus"
	FieldPotassium   = "potassium"
	FieldPH          = "ph"
	FieldTemperature = "temperature"
	FieldRainfall    = "rainfall"
	FieldCity        = "city"
)

// NumericFields lists the soil and climate fields that must parse to finite
// numbers before a recommendation request is made.
var NumericFields = []string{
	FieldNitrogen,
	FieldPhosphorus,
	FieldPotassium,
	FieldPH,
	FieldTemperature,
	FieldRainfall,
}

// SoilSample is the validated payload sent to the recommend endpoint.
// All numeric fields are finite and City is non-empty.
type SoilSample struct {
	Nitrogen    float64 `json:"nitrogen" validate:"finite"`
	Phosphorus  float64 `json:"phosphorus" validate:"finite"`
	Potassium   float64 `json:"potassium" validate:"finite"`
	PH          float64 `json:"ph" validate:"finite"`
	Temperature float64 `json:"temperature" validate:"finite"`
	Rainfall    float64 `json:"rainfall" validate:"finite"`
	City        string  `json:"city" validate:"required"`
}

// WeatherSnapshot is the current weather for a city, as reported by the
// weather endpoint or embedded in a recommendation.
type WeatherSnapshot struct {
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	Description string  `json:"description"`
	City        string  `json:"city"`
	Icon        string  `json:"icon,omitempty"`
}

// CropProbability is one entry of the ranked crop list.
type CropProbability struct {
	Crop        string  `json:"crop"`
	Probability float64 `json:"probability"`
}

// Recommendation is the prediction service's answer for a SoilSample.
// Every variant of the response shares this shape; absent parts are nil.
type Recommendation struct {
	Crop       string            `json:"crop"`
	Advisory   string            `json:"advisory"`
	Confidence *float64          `json:"confidence,omitempty"`
	TopFactors []string          `json:"top_factors,omitempty"`
	TopCrops   []CropProbability `json:"top_crops,omitempty"`
	Weather    *WeatherSnapshot  `json:"weather,omitempty"`
}

// RequestKind names one of the two independent request flows.
type RequestKind string

const (
	KindWeather        RequestKind = "weather"
	KindRecommendation RequestKind = "recommendation"
)
