// Package session coordinates the weather and recommendation flows of one
// advisor form. A single loop goroutine owns all state; UI events, debounce
// expiries and network completions reach it as messages.
package session

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"cropadvisor/internal/debounce"
	"cropadvisor/internal/external"
	"cropadvisor/internal/form"
	"cropadvisor/internal/telemetry"
	"cropadvisor/internal/types"
)

// ErrClosed is returned by operations on a closed Session.
var ErrClosed = errors.New("session closed")

// subscriberBuffer is the per-subscriber channel capacity. A slow subscriber
// loses intermediate snapshots, never the latest.
const subscriberBuffer = 8

// Metrics receives session telemetry. *telemetry.Metrics satisfies it,
// including as a nil pointer.
type Metrics interface {
	RecordRequest(kind types.RequestKind, outcome telemetry.Outcome, elapsed time.Duration)
	RecordDebounceFired()
	RecordStaleResult(kind types.RequestKind)
	RecordValidationFailure(field string)
}

// Snapshot is an immutable view of the session state. Values reachable from
// it are never mutated after publication.
type Snapshot struct {
	Weather        types.RequestState[types.WeatherSnapshot]
	Recommendation types.RequestState[types.Recommendation]
	// FieldErrors holds the inline failures of the last rejected submission.
	// It is cleared by the next accepted one.
	FieldErrors form.Errors
	// Version increases with every published change.
	Version uint64
}

// Options configures a Session. Advisor is required.
type Options struct {
	Advisor        external.Advisor
	Validator      *form.Validator
	Clock          clock.Clock
	DebounceWindow time.Duration
	CityMinLength  int
	Metrics        Metrics
	Logger         *slog.Logger
	// NewRequestID generates the trace id attached to each outbound call.
	NewRequestID func() string
}

// Session is the request orchestrator for one form.
type Session struct {
	advisor   external.Advisor
	validator *form.Validator
	clock     clock.Clock
	metrics   Metrics
	logger    *slog.Logger
	newID     func() string
	watcher   *debounce.Watcher

	ctx    context.Context
	cancel context.CancelFunc
	group  errgroup.Group

	events    chan event
	done      chan struct{}
	exited    chan struct{}
	closeOnce sync.Once

	last atomic.Pointer[Snapshot]

	// Loop-owned.
	state       Snapshot
	weatherGen  uint64
	recGen      uint64
	subscribers []chan Snapshot
}

// New starts a Session. The caller must Close it.
func New(opts Options) (*Session, error) {
	if opts.Advisor == nil {
		return nil, errors.New("session: advisor is required")
	}
	if opts.Validator == nil {
		opts.Validator = form.NewValidator()
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Metrics == nil {
		opts.Metrics = (*telemetry.Metrics)(nil)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.NewRequestID == nil {
		opts.NewRequestID = uuid.NewString
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		advisor:   opts.Advisor,
		validator: opts.Validator,
		clock:     opts.Clock,
		metrics:   opts.Metrics,
		logger:    opts.Logger.With("component", "session"),
		newID:     opts.NewRequestID,
		ctx:       ctx,
		cancel:    cancel,
		events:    make(chan event),
		done:      make(chan struct{}),
		exited:    make(chan struct{}),
	}
	s.state = Snapshot{
		Weather:        types.Idle[types.WeatherSnapshot](),
		Recommendation: types.Idle[types.Recommendation](),
	}
	initial := s.state
	s.last.Store(&initial)

	s.watcher = debounce.New(debounce.Options{
		Window:    opts.DebounceWindow,
		MinLength: opts.CityMinLength,
		Clock:     opts.Clock,
		// Change is only called from the loop, so Clear runs there too.
		Clear: s.clearWeather,
		Deliver: func(tok debounce.Token) {
			s.post(debounceElapsed{token: tok})
		},
	})

	go s.run()
	return s, nil
}

// SubmitForm validates raw and, when it is acceptable, starts a
// recommendation request. A rejected form returns form.Errors and leaves the
// recommendation untouched.
func (s *Session) SubmitForm(raw map[string]string) error {
	// Copy so the caller may keep editing its map.
	reply := make(chan error, 1)
	return s.call(submitForm{raw: maps.Clone(raw), reply: reply}, reply)
}

// CityChanged reports an edit of the city field. It returns once the edit has
// been applied, so a short value is already cleared from Snapshot.
func (s *Session) CityChanged(value string) error {
	reply := make(chan error, 1)
	return s.call(cityChanged{value: value, reply: reply}, reply)
}

// Snapshot returns the latest published state.
func (s *Session) Snapshot() Snapshot {
	return *s.last.Load()
}

// Subscribe returns a channel receiving a Snapshot after every change,
// starting with the current one. The channel is closed by Close.
func (s *Session) Subscribe() (<-chan Snapshot, error) {
	reply := make(chan chan Snapshot, 1)
	if !s.post(subscribe{reply: reply}) {
		return nil, ErrClosed
	}
	select {
	case ch := <-reply:
		return ch, nil
	case <-s.done:
		return nil, ErrClosed
	}
}

// Close stops the debounce timer, cancels outstanding calls and waits for
// them to return. Results arriving after Close are discarded.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
	})
	<-s.exited
	return s.group.Wait()
}

func (s *Session) post(ev event) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.done:
		return false
	}
}

func (s *Session) call(ev event, reply <-chan error) error {
	if !s.post(ev) {
		return ErrClosed
	}
	select {
	case err := <-reply:
		return err
	case <-s.done:
		return ErrClosed
	}
}

func (s *Session) run() {
	defer close(s.exited)
	for {
		select {
		case <-s.done:
			s.shutdown()
			return
		case ev := <-s.events:
			s.handle(ev)
		}
	}
}

func (s *Session) shutdown() {
	s.watcher.Stop()
	s.cancel()
	for _, ch := range s.subscribers {
		close(ch)
	}
	s.subscribers = nil
	s.logger.Debug("session closed")
}

func (s *Session) handle(ev event) {
	switch ev := ev.(type) {
	case submitForm:
		ev.reply <- s.submit(ev.raw)
	case cityChanged:
		s.watcher.Change(ev.value)
		ev.reply <- nil
	case debounceElapsed:
		s.startWeather(ev.token)
	case weatherDone:
		s.finishWeather(ev)
	case recommendationDone:
		s.finishRecommendation(ev)
	case subscribe:
		ch := make(chan Snapshot, subscriberBuffer)
		ch <- s.state
		s.subscribers = append(s.subscribers, ch)
		ev.reply <- ch
	}
}

func (s *Session) submit(raw map[string]string) error {
	sample, err := s.validator.ValidateAll(raw)
	if err != nil {
		var errs form.Errors
		if !errors.As(err, &errs) {
			errs = form.Errors{types.NotANumber("form")}
		}
		for _, fe := range errs {
			s.metrics.RecordValidationFailure(fe.Field)
		}
		s.state.FieldErrors = errs
		s.publish()
		return errs
	}

	s.recGen++
	gen := s.recGen
	weatherGen := s.weatherGen
	s.state.FieldErrors = nil
	s.state.Recommendation = types.Pending[types.Recommendation]()
	s.publish()

	ctx, id := s.requestContext()
	s.logger.Info("recommendation requested", "generation", gen, "city", sample.City, "request_id", id)
	start := s.clock.Now()
	s.group.Go(func() error {
		rec, err := s.advisor.FetchRecommendation(ctx, sample)
		s.post(recommendationDone{
			gen:        gen,
			weatherGen: weatherGen,
			rec:        rec,
			err:        err,
			elapsed:    s.clock.Since(start),
		})
		return nil
	})
	return nil
}

func (s *Session) finishRecommendation(ev recommendationDone) {
	if ev.gen != s.recGen {
		s.metrics.RecordStaleResult(types.KindRecommendation)
		s.logger.Debug("stale result dropped", "kind", types.KindRecommendation, "generation", ev.gen)
		return
	}

	if ev.err != nil {
		apiErr := asAPIError(ev.err)
		s.metrics.RecordRequest(types.KindRecommendation, telemetry.OutcomeFailed, ev.elapsed)
		s.logger.Warn("recommendation failed", "generation", ev.gen, "status", apiErr.StatusCode(), "error", apiErr.Message)
		s.state.Recommendation = types.Failed[types.Recommendation](apiErr)
		s.publish()
		return
	}

	s.metrics.RecordRequest(types.KindRecommendation, telemetry.OutcomeSucceeded, ev.elapsed)
	s.logger.Info("recommendation ready", "generation", ev.gen, "crop", ev.rec.Crop)
	s.state.Recommendation = types.Succeeded(*ev.rec)

	// Embedded weather wins unless the user started a newer lookup meanwhile.
	if ev.rec.Weather != nil && ev.weatherGen == s.weatherGen {
		s.weatherGen++
		s.state.Weather = types.Succeeded(*ev.rec.Weather)
	}
	s.publish()
}

func (s *Session) startWeather(tok debounce.Token) {
	city, ok := s.watcher.Elapsed(tok)
	if !ok {
		return
	}
	s.metrics.RecordDebounceFired()

	s.weatherGen++
	gen := s.weatherGen
	s.state.Weather = types.Pending[types.WeatherSnapshot]()
	s.publish()

	ctx, id := s.requestContext()
	s.logger.Debug("weather requested", "generation", gen, "city", city, "request_id", id)
	start := s.clock.Now()
	s.group.Go(func() error {
		snap, err := s.advisor.FetchWeather(ctx, city)
		s.post(weatherDone{
			gen:     gen,
			snap:    snap,
			err:     err,
			elapsed: s.clock.Since(start),
		})
		return nil
	})
}

func (s *Session) finishWeather(ev weatherDone) {
	if ev.gen != s.weatherGen {
		s.metrics.RecordStaleResult(types.KindWeather)
		s.logger.Debug("stale result dropped", "kind", types.KindWeather, "generation", ev.gen)
		return
	}

	if ev.err != nil {
		apiErr := asAPIError(ev.err)
		s.metrics.RecordRequest(types.KindWeather, telemetry.OutcomeFailed, ev.elapsed)
		s.logger.Warn("weather lookup failed", "generation", ev.gen, "status", apiErr.StatusCode(), "error", apiErr.Message)
		s.state.Weather = types.Failed[types.WeatherSnapshot](apiErr)
	} else {
		s.metrics.RecordRequest(types.KindWeather, telemetry.OutcomeSucceeded, ev.elapsed)
		s.state.Weather = types.Succeeded(*ev.snap)
	}
	s.publish()
}

// clearWeather resets the weather slot and orphans any lookup in flight.
func (s *Session) clearWeather() {
	s.weatherGen++
	s.state.Weather = types.Idle[types.WeatherSnapshot]()
	s.publish()
}

func (s *Session) requestContext() (context.Context, string) {
	id := s.newID()
	return types.WithRequestID(s.ctx, id), id
}

func (s *Session) publish() {
	s.state.Version++
	snap := s.state
	s.last.Store(&snap)
	for _, ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
			// Drop the oldest queued snapshot to make room for the newest.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

// asAPIError normalizes a client error. Advisor implementations already
// return *types.APIError; anything else is reported as a network failure.
func asAPIError(err error) *types.APIError {
	var apiErr *types.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return types.NewNetworkError(err)
}
