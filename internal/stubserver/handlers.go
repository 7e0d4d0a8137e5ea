package stubserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"cropadvisor/internal/form"
	"cropadvisor/internal/types"
)

// statusResponse is the body of the root health check.
type statusResponse struct {
	Status string `json:"status"`
}

// HandleRoot reports that the stub is up.
func (s *Server) HandleRoot(w http.ResponseWriter, r *http.Request) {
	JSON(w, r, http.StatusOK, statusResponse{Status: "Backend running"})
}

// HandleRecommend answers POST /recommend with a ranked crop recommendation.
// The weather of the sample's city is embedded when the city is known.
func (s *Server) HandleRecommend(w http.ResponseWriter, r *http.Request) {
	var sample types.SoilSample
	if err := DecodeJSON(w, r, &sample); err != nil {
		Error(w, r, err)
		return
	}

	if err := s.Validator.Check(sample); err != nil {
		var errs form.Errors
		if errors.As(err, &errs) {
			Error(w, r, &httpError{Status: http.StatusUnprocessableEntity, Message: errs.Error(), Err: err})
			return
		}
		Error(w, r, err)
		return
	}

	rec := Recommend(sample)
	if weather, ok := LookupWeather(sample.City); ok {
		rec.Weather = &weather
	}

	s.Logger.Debug("recommendation served",
		slog.String("city", sample.City),
		slog.String("crop", rec.Crop),
		slog.String("request_id", types.GetRequestID(r.Context())),
	)
	JSON(w, r, http.StatusOK, rec)
}

// HandleWeather answers GET /weather?city= from the fixed city table.
func (s *Server) HandleWeather(w http.ResponseWriter, r *http.Request) {
	city := strings.TrimSpace(r.URL.Query().Get("city"))
	if city == "" {
		Error(w, r, badRequest("city is required", nil))
		return
	}

	weather, ok := LookupWeather(city)
	if !ok {
		Error(w, r, &httpError{Status: http.StatusNotFound, Message: "city not found"})
		return
	}
	JSON(w, r, http.StatusOK, weather)
}
