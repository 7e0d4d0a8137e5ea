package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cropadvisor/internal/config"
	"cropadvisor/internal/form"
	"cropadvisor/internal/session"
	"cropadvisor/internal/stubserver"
	"cropadvisor/internal/types"
)

// syncBuffer is a bytes.Buffer safe for one writer and polling readers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// fakeSession records console calls.
type fakeSession struct {
	submitted []map[string]string
	cities    []string
	submitErr error
	snap      session.Snapshot
}

func (f *fakeSession) SubmitForm(raw map[string]string) error {
	f.submitted = append(f.submitted, raw)
	return f.submitErr
}

func (f *fakeSession) CityChanged(value string) error {
	f.cities = append(f.cities, value)
	return nil
}

func (f *fakeSession) Snapshot() session.Snapshot { return f.snap }

func runScript(t *testing.T, sess formSession, script string) string {
	t.Helper()
	var out bytes.Buffer
	c := newConsole(sess, strings.NewReader(script), &out)
	require.NoError(t, c.Run(context.Background()))
	return out.String()
}

func TestConsole_SetAndSubmit(t *testing.T) {
	sess := &fakeSession{}

	out := runScript(t, sess, strings.Join([]string{
		"set nitrogen 90",
		"set PH 6.5",
		"city São Paulo",
		"submit",
		"quit",
		"set rainfall 1", // never reached
	}, "\n"))

	assert.Equal(t, []string{"São Paulo"}, sess.cities)
	require.Len(t, sess.submitted, 1)
	assert.Equal(t, map[string]string{
		types.FieldNitrogen: "90",
		types.FieldPH:       "6.5",
		types.FieldCity:     "São Paulo",
	}, sess.submitted[0])
	assert.Contains(t, out, "submitted")
}

func TestConsole_SetCityNotifiesSession(t *testing.T) {
	sess := &fakeSession{}
	runScript(t, sess, "set city Pune\n")
	assert.Equal(t, []string{"Pune"}, sess.cities)
}

func TestConsole_ValidationErrorsArePrinted(t *testing.T) {
	sess := &fakeSession{submitErr: form.Errors{types.NotANumber(types.FieldPH), types.MissingCity()}}

	out := runScript(t, sess, "submit\n")
	assert.Contains(t, out, "please fix: ph must be a number; city is required")
}

func TestConsole_SessionErrorStopsLoop(t *testing.T) {
	sess := &fakeSession{submitErr: session.ErrClosed}

	var out bytes.Buffer
	err := newConsole(sess, strings.NewReader("submit\nshow\n"), &out).Run(context.Background())
	assert.ErrorIs(t, err, session.ErrClosed)
}

func TestConsole_UnknownInput(t *testing.T) {
	out := runScript(t, &fakeSession{}, "plant rice\nset sulphur 3\n\n")
	assert.Contains(t, out, `unknown command "plant"`)
	assert.Contains(t, out, `unknown field "sulphur"`)
}

func TestConsole_ShowRendersSnapshot(t *testing.T) {
	conf := 0.87
	sess := &fakeSession{snap: session.Snapshot{
		Weather: types.Succeeded(types.WeatherSnapshot{Temperature: 31, Humidity: 70, Description: "haze", City: "Mumbai"}),
		Recommendation: types.Succeeded(types.Recommendation{
			Crop: "Rice", Advisory: "Suitable for warm climate with sufficient rainfall.", Confidence: &conf,
		}),
	}}

	out := runScript(t, sess, "show\n")
	assert.Contains(t, out, "Mumbai: 31.0°C, 70% humidity, haze")
	assert.Contains(t, out, "── Recommendation Ready ──")
	assert.Contains(t, out, "Crop: Rice (87% confidence)")
}

func TestConsole_StopsOnContextCancel(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- newConsole(&fakeSession{}, pr, io.Discard).Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("console did not stop")
	}
}

func TestRender_States(t *testing.T) {
	var out bytes.Buffer
	render(&out, map[string]string{types.FieldPH: "abc"}, session.Render(session.Snapshot{
		Weather:        types.Pending[types.WeatherSnapshot](),
		Recommendation: types.Failed[types.Recommendation](types.NewStatusError(500, "model unavailable")),
		FieldErrors:    form.Errors{types.NotANumber(types.FieldPH)},
	}))

	s := out.String()
	assert.Contains(t, s, "loading...")
	assert.Contains(t, s, "Could not get a recommendation: model unavailable")
	assert.Contains(t, s, "! ph must be a number")

	out.Reset()
	render(&out, nil, session.Render(session.Snapshot{
		Weather: types.Failed[types.WeatherSnapshot](types.NewStatusError(404, "city not found")),
	}))
	assert.Contains(t, out.String(), "Please enter a valid city name")
	assert.NotContains(t, out.String(), "Recommendation")

	out.Reset()
	render(&out, nil, session.Render(session.Snapshot{}))
	assert.Contains(t, out.String(), "Enter a city to see the weather")
}

func TestRunAdvisor_AgainstStub(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	stub, err := stubserver.NewServer(config.StubConfig{Port: "0", RateLimitRPS: 1000}, logger)
	require.NoError(t, err)
	stub.MountRoutes()
	ts := httptest.NewServer(stub.Handler())
	defer ts.Close()

	cfg := &config.Config{
		Environment: "local",
		API: config.APIConfig{
			BaseURL:                    ts.URL + stubserver.APIPrefix,
			UserAgent:                  "cropadvisor-test",
			BreakerConsecutiveFailures: 5,
			BreakerOpenTimeout:         time.Second,
		},
		Session: config.SessionConfig{DebounceWindow: 10 * time.Millisecond, CityMinLength: 2},
	}

	pr, pw := io.Pipe()
	out := &syncBuffer{}
	done := make(chan error, 1)
	go func() { done <- runAdvisor(context.Background(), cfg, pr, out, logger) }()

	for _, line := range []string{
		"set nitrogen 90", "set phosphorus 42", "set potassium 43",
		"set ph 6.5", "set temperature 25", "set rainfall 200",
		"city Mumbai", "submit",
	} {
		_, err := io.WriteString(pw, line+"\n")
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Recommendation Ready")
	}, 3*time.Second, 10*time.Millisecond, out.String())
	assert.Contains(t, out.String(), "Mumbai: 31.0°C")

	_, err = io.WriteString(pw, "quit\n")
	require.NoError(t, err)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("advisor did not exit")
	}
}

func TestRunAdvisor_ClosedInput(t *testing.T) {
	cfg := &config.Config{
		API:     config.APIConfig{BaseURL: "http://127.0.0.1:1/api"},
		Session: config.SessionConfig{DebounceWindow: time.Millisecond, CityMinLength: 2},
	}
	err := runAdvisor(context.Background(), cfg, strings.NewReader(""), io.Discard, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.NoError(t, err)
}
