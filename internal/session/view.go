package session

import (
	"math"

	"cropadvisor/internal/types"
)

// User-facing messages.
const (
	WeatherErrorMessage        = "Please enter a valid city name"
	WeatherEmptyMessage        = "Enter a city to see the weather"
	RecommendationErrorPrefix  = "Could not get a recommendation: "
	RecommendationReadyMessage = "Recommendation Ready"
)

// WeatherCard is what the weather panel shows. Exactly one of Loading,
// Error, Weather or Empty applies.
type WeatherCard struct {
	Loading bool
	Error   string
	Weather *types.WeatherSnapshot
	Empty   string
}

// RecommendationCard is what the result panel shows. Nothing is shown when
// all fields are zero.
type RecommendationCard struct {
	Loading bool
	Error   string
	Notice  string
	Result  *types.Recommendation
	// ConfidencePercent is the confidence rounded to a whole percentage.
	ConfidencePercent *int
}

// View is the presentation of a Snapshot.
type View struct {
	Weather        WeatherCard
	Recommendation RecommendationCard
	// FieldErrors maps a form field to its inline message.
	FieldErrors map[string]string
}

// Render derives the View for snap. Failures render as messages and never
// leak into the other card.
func Render(snap Snapshot) View {
	v := View{
		Weather:        renderWeather(snap.Weather),
		Recommendation: renderRecommendation(snap.Recommendation),
	}
	if len(snap.FieldErrors) > 0 {
		v.FieldErrors = make(map[string]string, len(snap.FieldErrors))
		for _, fe := range snap.FieldErrors {
			v.FieldErrors[fe.Field] = fe.Error()
		}
	}
	return v
}

func renderWeather(st types.RequestState[types.WeatherSnapshot]) WeatherCard {
	switch {
	case st.IsPending():
		return WeatherCard{Loading: true}
	case st.IsFailed():
		return WeatherCard{Error: WeatherErrorMessage}
	case st.IsSucceeded():
		return WeatherCard{Weather: st.Value}
	default:
		return WeatherCard{Empty: WeatherEmptyMessage}
	}
}

func renderRecommendation(st types.RequestState[types.Recommendation]) RecommendationCard {
	switch {
	case st.IsPending():
		return RecommendationCard{Loading: true}
	case st.IsFailed():
		return RecommendationCard{Error: RecommendationErrorPrefix + st.Err.Message}
	case st.IsSucceeded():
		card := RecommendationCard{Notice: RecommendationReadyMessage, Result: st.Value}
		if c := st.Value.Confidence; c != nil {
			pct := int(math.Round(*c * 100))
			card.ConfidencePercent = &pct
		}
		return card
	default:
		return RecommendationCard{}
	}
}
