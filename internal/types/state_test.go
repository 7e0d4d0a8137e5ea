package types

import "testing"

func TestRequestStateConstructors(t *testing.T) {
	idle := Idle[WeatherSnapshot]()
	if !idle.IsIdle() || idle.Value != nil || idle.Err != nil {
		t.Errorf("Idle() = %+v", idle)
	}

	var zero RequestState[WeatherSnapshot]
	if !zero.IsIdle() {
		t.Error("zero RequestState should read as idle")
	}

	pending := Pending[Recommendation]()
	if !pending.IsPending() || pending.Value != nil {
		t.Errorf("Pending() = %+v", pending)
	}

	ok := Succeeded(WeatherSnapshot{City: "Mumbai", Temperature: 31})
	if !ok.IsSucceeded() || ok.Value == nil || ok.Value.City != "Mumbai" {
		t.Errorf("Succeeded() = %+v", ok)
	}
	if ok.Err != nil {
		t.Error("Succeeded state must not carry an error")
	}

	failed := Failed[Recommendation](NewStatusError(500, "model unavailable"))
	if !failed.IsFailed() || failed.Value != nil {
		t.Errorf("Failed() = %+v", failed)
	}
	if failed.Err.Message != "model unavailable" {
		t.Errorf("Err.Message = %q", failed.Err.Message)
	}
}

func TestSucceededCopiesValue(t *testing.T) {
	w := WeatherSnapshot{City: "Pune"}
	s := Succeeded(w)
	w.City = "Delhi"
	if s.Value.City != "Pune" {
		t.Errorf("Succeeded must hold its own copy, got %q", s.Value.City)
	}
}
