package external

import (
	"context"

	"cropadvisor/internal/types"
)

// Advisor is the remote prediction service as seen by a recommendation
// session. Implementations make one attempt per call and report every failure
// as a *types.APIError.
type Advisor interface {
	FetchRecommendation(ctx context.Context, sample types.SoilSample) (*types.Recommendation, error)
	FetchWeather(ctx context.Context, city string) (*types.WeatherSnapshot, error)
}

// Compile-time assertion that AdvisorClient implements Advisor.
var _ Advisor = (*AdvisorClient)(nil)
