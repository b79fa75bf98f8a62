package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"dupefinder/internal/config"
	"dupefinder/internal/detect"
	"dupefinder/internal/hashcache"
	"dupefinder/internal/logger"
	"dupefinder/internal/pipeline"
	"dupefinder/internal/progress"
	"dupefinder/internal/shutdown"
	"dupefinder/internal/track"
)

func main() {
	opts, err := parseArgs(os.Args[1:])
	switch {
	case errors.Is(err, errHelp):
		printUsage()
		if len(os.Args) < 2 {
			os.Exit(1)
		}
		return
	case errors.Is(err, errInitConfig):
		if err := initConfigFile(); err != nil {
			fmt.Fprintf(os.Stderr, "[ERROR] %v\n", err)
			os.Exit(1)
		}
		return
	case err != nil:
		fmt.Fprintf(os.Stderr, "[ERROR] %v\n", err)
		os.Exit(1)
	}

	cfg := opts.cfg
	worker := opts.jobID != ""

	// stdout carries the report or the worker protocol, so logs go to stderr
	log := logger.NewWriter(os.Stderr, cfg.Verbose)
	defer log.Close()

	sh := shutdown.New(log)
	sh.Listen()

	if !cfg.Verbose {
		logDir := config.GetDefaultLogPath()
		if err := os.MkdirAll(logDir, 0755); err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] Failed to create log directory: %v\n", err)
		} else {
			logFile := filepath.Join(logDir, fmt.Sprintf("dupefinder_%s.log", time.Now().Format("2006-01-02_15-04-05")))
			if err := log.SetFileLog(logFile); err != nil {
				fmt.Fprintf(os.Stderr, "[WARN] Failed to setup file logging: %v\n", err)
			} else {
				log.Debug("Logging to file: %s", logFile)
			}
		}
	}

	if opts.configPath != "" {
		log.Debug("Loaded configuration from: %s", opts.configPath)
	}

	if err := cfg.Validate(); err != nil {
		fail(worker, log, fmt.Errorf("configuration error: %w", err))
	}

	if err := run(sh, opts, log); err != nil {
		fail(worker, log, err)
	}
}

// fail reports a fatal error and exits. Worker mode uses the ERROR: prefix
// that job runners look for on stderr.
func fail(worker bool, log *logger.Logger, err error) {
	if worker {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
	} else {
		log.Error("%v", err)
	}
	log.Close()
	os.Exit(1)
}

func run(sh *shutdown.Handler, opts options, log *logger.Logger) error {
	cfg := opts.cfg
	worker := opts.jobID != ""

	params, err := detect.ParseParameters([]byte(opts.parameters), cfg.Parameters())
	if err != nil {
		return err
	}

	in := pipeline.Input{Dir: opts.dir, Params: params}
	if opts.dir == "" {
		in.Tracks, err = loadTracks(opts)
		if err != nil {
			return err
		}
	}

	var cache *hashcache.Cache
	if opts.dir != "" && !opts.noCache && cfg.HashCache != "" {
		cache, err = hashcache.Open(cfg.HashCache)
		if err != nil {
			log.Warn("Hash cache unavailable, hashing every file: %v", err)
			cache = nil
		} else {
			defer cache.Close()
			log.Debug("Using hash cache: %s", cache.Path())
		}
	}

	var scanBar, detectBar *progress.Bar
	showBar := !cfg.Verbose && !worker
	hooks := pipeline.Hooks{
		OnScanProgress: func(done, total int) {
			if showBar {
				if scanBar == nil {
					scanBar = progress.New("Scanning ", total)
					log.SetProgressBar(true)
				}
				scanBar.Set(done)
			}
		},
		OnDetectProgress: func(percent int) {
			if worker {
				fmt.Printf("PROGRESS:%d\n", percent)
				return
			}
			if showBar {
				if scanBar != nil {
					scanBar.Finish()
					scanBar = nil
				}
				if detectBar == nil {
					detectBar = progress.New("Detecting", 100)
					log.SetProgressBar(true)
				}
				detectBar.Set(percent)
			}
		},
	}

	if worker {
		log.Debug("Worker job %s started", opts.jobID)
	}
	report, err := pipeline.Run(sh.Context(), cfg, log, cache, in, hooks)

	for _, bar := range []*progress.Bar{scanBar, detectBar} {
		if bar != nil {
			bar.Finish()
		}
	}
	log.SetProgressBar(false)

	if err != nil {
		return err
	}

	if worker {
		data, err := json.Marshal(report)
		if err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
		fmt.Printf("RESULT:%s\n", data)
		return nil
	}

	if err := writeReport(report, cfg.Output); err != nil {
		return err
	}
	if cfg.Output != "" {
		log.Info("Report written to %s", cfg.Output)
	}
	log.Info("=== %d duplicate groups, %d tracks involved ===", report.DuplicateGroups, report.TotalDuplicates)
	return nil
}

// loadTracks reads the track list from --tracks-data or --tracks-file.
func loadTracks(opts options) ([]track.Track, error) {
	data := []byte(opts.tracksData)
	if opts.tracksFile != "" {
		var err error
		if opts.tracksFile == "-" {
			data, err = io.ReadAll(os.Stdin)
		} else {
			data, err = os.ReadFile(opts.tracksFile)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read tracks: %w", err)
		}
	}
	return track.ParseList(data)
}

func writeReport(report *detect.Report, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	data = append(data, '\n')

	if path == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}
