// Package sampler implements the activity sampler: a single event loop that follows the
// foreground tab, periodically extracts a sample, classifies it and reports tracked time.
package sampler

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"example.com/focusforge/internal/api"
	"example.com/focusforge/internal/domain"
	"example.com/focusforge/internal/retry"
)

// Extractor reads content from the foreground page.
type Extractor interface {
	VisibleText(ctx context.Context, page Page) (string, error)
	Screenshot(ctx context.Context, page Page) ([]byte, error)
}

// Backend is the API the sampler reports to.
type Backend interface {
	Classify(ctx context.Context, token string, req api.ClassifyRequest) (api.ClassifyResponse, error)
	UpdateTime(ctx context.Context, token string, req api.UpdateTimeRequest) (api.SummaryView, error)
}

// TokenSource yields the bearer credential. An empty token suppresses tracking.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource returning a fixed token.
type StaticToken string

// Token implements TokenSource.
func (t StaticToken) Token(context.Context) (string, error) { return string(t), nil }

// Outcome describes what a sampling tick did.
type Outcome string

const (
	OutcomeSubmitted   Outcome = "submitted"
	OutcomeRateLimited Outcome = "rate_limited"
	OutcomeNoAuth      Outcome = "no_auth"
	OutcomeInactive    Outcome = "inactive"
	OutcomeDropped     Outcome = "dropped"
	OutcomeFailed      Outcome = "flush_failed"
)

// Config tunes the sampler. Zero values take the defaults below.
type Config struct {
	Period             time.Duration
	SampleSeconds      int64
	TextTimeout        time.Duration
	LoadDelay          time.Duration
	ConferenceDelay    time.Duration
	ConferenceHosts    []string
	Retention          time.Duration
	RequestTimeout     time.Duration
	ScreenshotRetry    retry.Policy
	CaptureScreenshots bool
}

// DefaultConfig mirrors the browser extension's timings.
func DefaultConfig() Config {
	return Config{
		Period:             5 * time.Minute,
		SampleSeconds:      180,
		TextTimeout:        5 * time.Second,
		LoadDelay:          2 * time.Second,
		ConferenceDelay:    5 * time.Second,
		ConferenceHosts:    []string{"meet.google.com"},
		Retention:          time.Hour,
		RequestTimeout:     30 * time.Second,
		ScreenshotRetry:    retry.DefaultPolicy,
		CaptureScreenshots: true,
	}
}

func (c *Config) defaults() {
	def := DefaultConfig()
	if c.Period <= 0 {
		c.Period = def.Period
	}
	if c.SampleSeconds <= 0 {
		c.SampleSeconds = def.SampleSeconds
	}
	if c.TextTimeout <= 0 {
		c.TextTimeout = def.TextTimeout
	}
	if c.Retention <= 0 {
		c.Retention = def.Retention
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = def.RequestTimeout
	}
	if c.ScreenshotRetry.Attempts <= 0 {
		c.ScreenshotRetry = def.ScreenshotRetry
	}
}

// Option configures optional behaviour for the Sampler.
type Option func(*Sampler)

// WithLogger overrides the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sampler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the wall clock used for rate limiting and dedup buckets.
func WithClock(now func() time.Time) Option {
	return func(s *Sampler) {
		if now != nil {
			s.now = now
		}
	}
}

// Sampler owns the tracking state machine and the dedup buffer.
type Sampler struct {
	cfg       Config
	extractor Extractor
	backend   Backend
	tokens    TokenSource
	logger    *slog.Logger
	now       func() time.Time
	buffer    *Buffer
	events    chan Event

	machine machine

	systemActive atomic.Bool
	wg           sync.WaitGroup

	tickMu  sync.Mutex
	ticking bool
	pending *tickRequest

	mu         sync.Mutex
	lastSubmit time.Time
}

// New constructs a Sampler. Call Run to start the loop and Notify to feed it events.
func New(cfg Config, extractor Extractor, backend Backend, tokens TokenSource, opts ...Option) *Sampler {
	cfg.defaults()
	s := &Sampler{
		cfg:       cfg,
		extractor: extractor,
		backend:   backend,
		tokens:    tokens,
		logger:    slog.Default().With(slog.String("component", "sampler")),
		now:       time.Now,
		events:    make(chan Event, 16),
		machine:   newMachine(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.buffer = NewBuffer(cfg.Retention, s.now)
	s.systemActive.Store(true)
	return s
}

// Notify queues an event for the loop. It blocks only while the queue is full.
func (s *Sampler) Notify(ctx context.Context, ev Event) error {
	select {
	case s.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes events and timer ticks until ctx ends. In-flight ticks are awaited before returning.
func (s *Sampler) Run(ctx context.Context) error {
	var (
		ticker *time.Ticker
		tickC  <-chan time.Time
	)
	stopTimer := func() {
		if ticker != nil {
			ticker.Stop()
			ticker, tickC = nil, nil
		}
	}
	defer func() {
		stopTimer()
		s.wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-s.events:
			prev := s.machine.state
			restart := s.handle(ev)
			if s.machine.state != StateTracking {
				stopTimer()
				s.dropPending()
			} else if restart {
				stopTimer()
				ticker = time.NewTicker(s.cfg.Period)
				tickC = ticker.C
				s.startTick(ctx, false)
			}
			if prev != s.machine.state {
				s.logger.Info("tracking state changed",
					slog.String("from", prev.String()),
					slog.String("to", s.machine.state.String()),
					slog.String("event", ev.Kind.String()),
					slog.String("url", s.machine.page.URL),
				)
			}
		case <-tickC:
			s.startTick(ctx, true)
		}
	}
}

// State returns the current tracking state. Only safe from the Run goroutine or after Run returned.
func (s *Sampler) State() State {
	return s.machine.state
}

func (s *Sampler) handle(ev Event) bool {
	restart := s.machine.apply(ev)
	switch ev.Kind {
	case EventSystemState:
		s.systemActive.Store(ev.System == SystemActive)
	case EventEnabledChanged:
		if !ev.Enabled {
			s.buffer.Clear()
		}
	}
	return restart
}

// tickRequest is one sampling pass for the page captured when it was requested.
// Scheduled requests come from the period ticker and skip the rate limit.
type tickRequest struct {
	page      Page
	scheduled bool
}

// startTick launches a sampling pass for the current page. While a pass is in
// flight the request is parked and runs as soon as that pass finishes; a newer
// request replaces an older parked one.
func (s *Sampler) startTick(ctx context.Context, scheduled bool) {
	req := tickRequest{page: s.machine.page, scheduled: scheduled}
	s.tickMu.Lock()
	if s.ticking {
		s.pending = &req
		s.tickMu.Unlock()
		s.logger.Debug("previous sample still in flight, queueing tick", slog.String("url", req.page.URL))
		return
	}
	s.ticking = true
	s.tickMu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			s.runTick(ctx, req)
			s.tickMu.Lock()
			if s.pending == nil || ctx.Err() != nil {
				s.ticking, s.pending = false, nil
				s.tickMu.Unlock()
				return
			}
			req, s.pending = *s.pending, nil
			s.tickMu.Unlock()
		}
	}()
}

func (s *Sampler) dropPending() {
	s.tickMu.Lock()
	s.pending = nil
	s.tickMu.Unlock()
}

func (s *Sampler) runTick(ctx context.Context, req tickRequest) {
	outcome, err := s.sampleTick(ctx, req.page, req.scheduled)
	recordTick(outcome, s.buffer.Len())
	if err != nil {
		s.logger.Warn("sample tick failed", slog.String("outcome", string(outcome)), slog.String("url", req.page.URL), slog.Any("error", err))
		return
	}
	s.logger.Debug("sample tick", slog.String("outcome", string(outcome)), slog.String("url", req.page.URL), slog.Bool("scheduled", req.scheduled))
}

// SampleTick runs one unscheduled pass of the pipeline for page: rate limit, credential
// and activity checks, extraction, classification, buffering and flush.
func (s *Sampler) SampleTick(ctx context.Context, page Page) (Outcome, error) {
	return s.sampleTick(ctx, page, false)
}

func (s *Sampler) sampleTick(ctx context.Context, page Page, scheduled bool) (Outcome, error) {
	now := s.now()
	if !scheduled && s.rateLimited(now) {
		return OutcomeRateLimited, nil
	}
	token, err := s.tokens.Token(ctx)
	if err != nil || strings.TrimSpace(token) == "" {
		return OutcomeNoAuth, nil
	}
	if !s.systemActive.Load() {
		return OutcomeInactive, nil
	}

	host := page.Host()
	text := Preprocess(sampleText(s.visibleText(ctx, page), page.Title, host), host)
	image := s.screenshot(ctx, page)

	classifyCtx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	result, err := s.backend.Classify(classifyCtx, token, api.ClassifyRequest{
		Text:        domain.Truncate(text, MaxSampleText),
		ImageBase64: image,
		URL:         page.URL,
	})
	cancel()
	if err != nil {
		return OutcomeDropped, fmt.Errorf("classify %s: %w", page.URL, err)
	}

	activity := domain.ResolveActivityType(result.ActivityType)
	s.buffer.Fold(BufferedActivity{
		Key:          DedupKey(page.URL, activity, now),
		Seconds:      s.cfg.SampleSeconds,
		IsProductive: result.Label == string(domain.LabelProductive),
		ActivityType: activity,
		URL:          page.URL,
		Text:         domain.Truncate(text, domain.MaxStoredText),
		ImageBase64:  image,
		Score:        result.Score,
		Timestamp:    now,
	})

	_, err = s.buffer.Flush(ctx, func(ctx context.Context, a BufferedActivity) error {
		ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()
		_, err := s.backend.UpdateTime(ctx, token, a.Request())
		return err
	})
	if err != nil {
		return OutcomeFailed, fmt.Errorf("update time: %w", err)
	}
	s.markSubmitted(now)
	return OutcomeSubmitted, nil
}

func (s *Sampler) rateLimited(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.lastSubmit.IsZero() && now.Sub(s.lastSubmit) < s.cfg.Period
}

func (s *Sampler) markSubmitted(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSubmit = at
}

func (s *Sampler) visibleText(ctx context.Context, page Page) string {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.TextTimeout)
	defer cancel()
	text, err := s.extractor.VisibleText(ctx, page)
	if err != nil {
		s.logger.Debug("page text unavailable, falling back", slog.String("url", page.URL), slog.Any("error", err))
		return ""
	}
	return text
}

// screenshot captures the page as a JPEG data URL. Failures degrade to no image.
func (s *Sampler) screenshot(ctx context.Context, page Page) string {
	if !s.cfg.CaptureScreenshots {
		return ""
	}
	if !page.Loaded && !sleep(ctx, s.cfg.LoadDelay) {
		return ""
	}
	if s.isConference(page.Host()) && !sleep(ctx, s.cfg.ConferenceDelay) {
		return ""
	}

	var shot []byte
	err := retry.Do(ctx, s.cfg.ScreenshotRetry, nil, func(ctx context.Context) error {
		b, err := s.extractor.Screenshot(ctx, page)
		if err != nil {
			return err
		}
		if len(b) == 0 {
			return errors.New("empty screenshot")
		}
		shot = b
		return nil
	}, func(err error, wait time.Duration) {
		s.logger.Debug("retrying screenshot", slog.Duration("wait", wait), slog.Any("error", err))
	})
	if err != nil {
		s.logger.Warn("screenshot unavailable", slog.String("url", page.URL), slog.Any("error", err))
		return ""
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(shot)
}

func (s *Sampler) isConference(host string) bool {
	for _, h := range s.cfg.ConferenceHosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
