package config

import (
	"reflect"
	"testing"
	"time"
)

// TestEnvconfigTags verifies that envconfig tags are correctly applied to the
// top-level Config struct and all sub-structs.
func TestEnvconfigTags(t *testing.T) {
	tests := []struct {
		structType reflect.Type
		fieldName  string
		wantValue  string
	}{
		{reflect.TypeOf(Config{}), "Environment", "APP_ENV"},
		{reflect.TypeOf(Config{}), "Service", "SERVICE_NAME"},
		{reflect.TypeOf(Config{}), "LogLevel", "LOG_LEVEL"},

		{reflect.TypeOf(APIConfig{}), "BaseURL", "ADVISOR_API_BASE_URL"},
		{reflect.TypeOf(APIConfig{}), "UserAgent", "ADVISOR_USER_AGENT"},
		{reflect.TypeOf(APIConfig{}), "BreakerConsecutiveFailures", "BREAKER_CONSECUTIVE_FAILURES"},
		{reflect.TypeOf(APIConfig{}), "BreakerOpenTimeout", "BREAKER_OPEN_TIMEOUT"},

		{reflect.TypeOf(SessionConfig{}), "DebounceWindow", "DEBOUNCE_WINDOW"},
		{reflect.TypeOf(SessionConfig{}), "CityMinLength", "CITY_MIN_LENGTH"},

		{reflect.TypeOf(StubConfig{}), "Port", "STUB_PORT"},
		{reflect.TypeOf(StubConfig{}), "Latency", "STUB_LATENCY"},
		{reflect.TypeOf(StubConfig{}), "RateLimitRPS", "STUB_RATE_LIMIT_RPS"},

		{reflect.TypeOf(ObservabilityConfig{}), "MetricsAddr", "METRICS_ADDR"},
	}

	for _, tt := range tests {
		t.Run(tt.structType.Name()+"."+tt.fieldName, func(t *testing.T) {
			field, ok := tt.structType.FieldByName(tt.fieldName)
			if !ok {
				t.Fatalf("field %q not found on %s", tt.fieldName, tt.structType.Name())
			}
			if got := field.Tag.Get("envconfig"); got != tt.wantValue {
				t.Errorf("%s.%s envconfig tag = %q, want %q", tt.structType.Name(), tt.fieldName, got, tt.wantValue)
			}
		})
	}
}

// TestDurationFieldTypes guards against a duration field being declared as a
// plain integer, which envconfig would parse as nanoseconds.
func TestDurationFieldTypes(t *testing.T) {
	durationType := reflect.TypeOf(time.Duration(0))
	fields := []struct {
		structType reflect.Type
		fieldName  string
	}{
		{reflect.TypeOf(APIConfig{}), "BreakerOpenTimeout"},
		{reflect.TypeOf(SessionConfig{}), "DebounceWindow"},
		{reflect.TypeOf(StubConfig{}), "Latency"},
	}
	for _, f := range fields {
		field, ok := f.structType.FieldByName(f.fieldName)
		if !ok {
			t.Fatalf("field %q not found", f.fieldName)
		}
		if field.Type != durationType {
			t.Errorf("%s.%s type = %v, want time.Duration", f.structType.Name(), f.fieldName, field.Type)
		}
	}
}

func TestConfigErrorTypeConstants(t *testing.T) {
	if ErrDotenv != "DOTENV_FAILED" {
		t.Errorf("ErrDotenv = %q", ErrDotenv)
	}
	if ErrValidation != "VALIDATION_FAILED" {
		t.Errorf("ErrValidation = %q", ErrValidation)
	}
	if ErrParsing != "PARSING_FAILED" {
		t.Errorf("ErrParsing = %q", ErrParsing)
	}
}

func TestIsLocal(t *testing.T) {
	if !(&Config{Environment: "local"}).IsLocal() {
		t.Error("local environment should report IsLocal")
	}
	if (&Config{Environment: "prod"}).IsLocal() {
		t.Error("prod environment should not report IsLocal")
	}
}
