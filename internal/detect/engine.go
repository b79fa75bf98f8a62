package detect

import (
	"errors"
	"fmt"
	"sync"

	"dupefinder/internal/logger"
	"dupefinder/internal/textsim"
	"dupefinder/internal/track"
)

// ErrStrategyFailed wraps the error of a strategy that could not finish.
// Such failures are reported as warnings, never returned from Detect.
var ErrStrategyFailed = errors.New("strategy failed")

// Hooks let callers observe a detection run.
type Hooks struct {
	// OnProgress receives a percentage between 0 and 100; calls are serialized
	// and never decrease.
	OnProgress func(percent int)
}

// Options configures an Engine.
type Options struct {
	// Backend scores text fields; nil selects edit distance.
	Backend textsim.Backend
	// Workers bounds the goroutines used by each pairwise strategy.
	Workers int
	// Strategies to run; nil runs all of them.
	Strategies []Strategy
	Logger     *logger.Logger
	Hooks      Hooks
}

// Engine runs every enabled strategy over a track list and consolidates the
// results into a Report. An Engine holds no per-run state and may be used
// from multiple goroutines.
type Engine struct {
	matchers [strategyCount]Matcher
	enabled  [strategyCount]bool
	logger   *logger.Logger
	hooks    Hooks
}

// NewEngine creates an Engine with the built-in matchers.
func NewEngine(opts Options) *Engine {
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	log := opts.Logger
	if log == nil {
		log = logger.Discard()
	}

	scorer := textsim.NewScorer(opts.Backend)
	e := &Engine{
		matchers: [strategyCount]Matcher{
			HashMatcher{},
			MetadataMatcher{Scorer: scorer, Workers: workers},
			TechnicalMatcher{Workers: workers},
			FingerprintMatcher{},
		},
		logger: log.With("detect"),
		hooks:  opts.Hooks,
	}

	if opts.Strategies == nil {
		for i := range e.enabled {
			e.enabled[i] = true
		}
	}
	for _, s := range opts.Strategies {
		if s >= 0 && int(s) < strategyCount {
			e.enabled[s] = true
		}
	}
	return e
}

// SetMatcher replaces the matcher used for m.Strategy().
// It must be called before the engine is shared between goroutines.
func (e *Engine) SetMatcher(m Matcher) error {
	s := m.Strategy()
	if s < 0 || int(s) >= strategyCount {
		return fmt.Errorf("cannot register matcher for %s", s)
	}
	e.matchers[s] = m
	return nil
}

// Detect finds duplicate groups among tracks. It fails only when p is
// invalid; a strategy that errors or panics contributes no matches and is
// listed in the report's strategy warnings.
func (e *Engine) Detect(tracks []track.Track, p Parameters) (*Report, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	progress := newProgressTracker(e.hooks.OnProgress)
	progress.set(10)

	enabled := 0
	for _, on := range e.enabled {
		if on {
			enabled++
		}
	}
	progress.set(20)

	lists := make([][]Candidate, strategyCount)
	warnings := make(map[string]string)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		done int
	)
	for _, s := range Strategies {
		if !e.enabled[s] {
			e.logger.Debug("%s strategy disabled", s)
			continue
		}

		wg.Add(1)
		go func(s Strategy) {
			defer wg.Done()

			matches, err := e.runStrategy(s, tracks, p)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				e.logger.Warn("%v", err)
				warnings[s.String()] = err.Error()
			} else {
				e.logger.Debug("%s strategy found %d candidate matches", s, len(matches))
			}
			lists[s] = matches
			done++
			progress.set(20 + done*60/enabled)
		}(s)
	}
	wg.Wait()

	groups := Consolidate(lists)
	progress.set(90)

	report := buildReport(tracks, groups, lists, warnings, p)
	e.logger.Debug("%d tracks, %d duplicate groups, %d duplicated tracks",
		report.TotalTracks, report.DuplicateGroups, report.TotalDuplicates)
	progress.set(100)

	return report, nil
}

func (e *Engine) runStrategy(s Strategy, tracks []track.Track, p Parameters) (matches []Candidate, err error) {
	defer func() {
		if r := recover(); r != nil {
			matches = nil
			err = fmt.Errorf("%w: %s panicked: %v", ErrStrategyFailed, s, r)
		}
	}()

	matches, err = e.matchers[s].Match(tracks, p)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrStrategyFailed, s, err)
	}

	// Candidates report the slot they fill, whatever the matcher set
	for i := range matches {
		matches[i].Strategy = s
	}
	return matches, nil
}

type progressTracker struct {
	mu   sync.Mutex
	fn   func(int)
	last int
}

func newProgressTracker(fn func(int)) *progressTracker {
	return &progressTracker{fn: fn}
}

func (t *progressTracker) set(percent int) {
	if t.fn == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if percent <= t.last {
		return
	}
	t.last = percent
	t.fn(percent)
}
