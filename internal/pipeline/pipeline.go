package pipeline

import (
	"context"
	"fmt"
	"sort"

	"dupefinder/internal/config"
	"dupefinder/internal/detect"
	"dupefinder/internal/hashcache"
	"dupefinder/internal/logger"
	"dupefinder/internal/scanner"
	"dupefinder/internal/track"
)

type Hooks struct {
	OnScanProgress   func(done, total int)
	OnDetectProgress func(percent int)
	OnWarning        func(msg string)
}

// Input is what a run detects duplicates in: a library folder when Dir is
// set, otherwise the given tracks.
type Input struct {
	Tracks []track.Track
	Dir    string
	Params detect.Parameters
}

// Run executes a detection run: scan the folder if one is given → detect → report.
// cache may be nil.
func Run(ctx context.Context, cfg config.Config, log *logger.Logger, cache *hashcache.Cache, in Input, hooks Hooks) (*detect.Report, error) {
	tracks := in.Tracks

	if in.Dir != "" {
		sc := scanner.New(cfg.ParallelJobs, cache, log)
		sc.OnProgress = hooks.OnScanProgress

		scanned, stats, err := sc.Scan(ctx, in.Dir)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", in.Dir, err)
		}
		if stats.Total == 0 {
			return nil, fmt.Errorf("no audio files found in %s", in.Dir)
		}
		if stats.Failed > 0 {
			warn(log, hooks, fmt.Sprintf("%d of %d files could not be read", stats.Failed, stats.Total))
		}
		tracks = scanned
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	opts, err := cfg.EngineOptions(log)
	if err != nil {
		return nil, err
	}
	opts.Hooks.OnProgress = hooks.OnDetectProgress

	log.Info("=== Detecting duplicates among %d tracks ===", len(tracks))
	report, err := detect.NewEngine(opts).Detect(tracks, in.Params)
	if err != nil {
		return nil, err
	}

	// Strategy failures are already logged by the engine
	names := make([]string, 0, len(report.DetectionStrategies.Warnings))
	for name := range report.DetectionStrategies.Warnings {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if hooks.OnWarning != nil {
			hooks.OnWarning(report.DetectionStrategies.Warnings[name])
		}
	}

	log.Info("Found %d duplicate groups covering %d tracks", report.DuplicateGroups, report.TotalDuplicates)
	return report, nil
}

func warn(log *logger.Logger, hooks Hooks, msg string) {
	log.Warn(msg)
	if hooks.OnWarning != nil {
		hooks.OnWarning(msg)
	}
}
