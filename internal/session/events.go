package session

import (
	"time"

	"cropadvisor/internal/debounce"
	"cropadvisor/internal/types"
)

// event is a message processed by the session loop.
type event interface {
	isEvent()
}

type submitForm struct {
	raw   map[string]string
	reply chan<- error
}

type cityChanged struct {
	value string
	reply chan<- error
}

type debounceElapsed struct {
	token debounce.Token
}

type weatherDone struct {
	gen     uint64
	snap    *types.WeatherSnapshot
	err     error
	elapsed time.Duration
}

type recommendationDone struct {
	gen uint64
	// weatherGen is the weather generation when the submission started.
	weatherGen uint64
	rec        *types.Recommendation
	err        error
	elapsed    time.Duration
}

type subscribe struct {
	reply chan<- chan Snapshot
}

func (submitForm) isEvent()         {}
func (cityChanged) isEvent()        {}
func (debounceElapsed) isEvent()    {}
func (weatherDone) isEvent()        {}
func (recommendationDone) isEvent() {}
func (subscribe) isEvent()          {}
