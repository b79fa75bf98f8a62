package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"dupefinder/internal/config"
)

var (
	errHelp       = errors.New("help requested")
	errInitConfig = errors.New("init config requested")
)

// options holds everything parsed from the command line.
type options struct {
	cfg        config.Config
	configPath string
	tracksData string
	tracksFile string
	parameters string
	jobID      string
	dir        string
	noCache    bool
}

// parseArgs parses command-line arguments and loads configuration.
// Priority: CLI flags > environment > config file > defaults
func parseArgs(args []string) (options, error) {
	var opts options

	if len(args) == 0 {
		return opts, errHelp
	}

	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			return opts, errHelp
		}
		if arg == "--init-config" {
			return opts, errInitConfig
		}
	}

	envFile := ".env"
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--config", "-c":
			if i+1 >= len(args) {
				return opts, fmt.Errorf("--config requires a path argument")
			}
			opts.configPath = args[i+1]
		case "--env-file":
			if i+1 >= len(args) {
				return opts, fmt.Errorf("--env-file requires a path argument")
			}
			envFile = args[i+1]
		}
	}

	cfg, err := config.LoadConfigFile(opts.configPath)
	if err != nil {
		return opts, fmt.Errorf("failed to load config: %w", err)
	}
	if opts.configPath == "" {
		opts.configPath = config.FindConfigFile()
	}
	if err := config.LoadEnv(&cfg, envFile); err != nil {
		return opts, err
	}

	// value returns the argument of the flag at args[i].
	value := func(i int, what string) (string, error) {
		if i+1 >= len(args) {
			return "", fmt.Errorf("%s requires %s", args[i], what)
		}
		return args[i+1], nil
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "--verbose", "-v":
			cfg.Verbose = true

		case "--no-cache":
			opts.noCache = true

		case "--tracks-data", "--tracks-file", "--parameters", "--job-id", "--dir",
			"--backend", "--strategies", "--parallel", "-p", "--output", "-o",
			"--threshold", "--config", "-c", "--env-file":
			v, err := value(i, "an argument")
			if err != nil {
				return opts, err
			}
			i++
			if err := applyFlag(&opts, &cfg, arg, v); err != nil {
				return opts, err
			}

		default:
			if len(arg) > 0 && arg[0] == '-' {
				return opts, fmt.Errorf("unknown flag: %s", arg)
			}
			if opts.dir != "" {
				return opts, fmt.Errorf("only one library folder can be given, got %s and %s", opts.dir, arg)
			}
			opts.dir = arg
		}
	}

	if opts.tracksData != "" && opts.tracksFile != "" {
		return opts, fmt.Errorf("--tracks-data and --tracks-file cannot be combined")
	}
	if opts.dir != "" && (opts.tracksData != "" || opts.tracksFile != "") {
		return opts, fmt.Errorf("a library folder cannot be combined with --tracks-data or --tracks-file")
	}
	if opts.dir == "" && opts.tracksData == "" && opts.tracksFile == "" {
		opts.dir = cfg.LibraryDir
	}
	if opts.dir == "" && opts.tracksData == "" && opts.tracksFile == "" {
		return opts, fmt.Errorf("nothing to analyze: pass a library folder, --tracks-data or --tracks-file")
	}
	opts.dir = config.ExpandHome(opts.dir)

	opts.cfg = cfg
	return opts, nil
}

func applyFlag(opts *options, cfg *config.Config, flag, v string) error {
	switch flag {
	case "--tracks-data":
		opts.tracksData = v
	case "--tracks-file":
		opts.tracksFile = v
	case "--parameters":
		opts.parameters = v
	case "--job-id":
		opts.jobID = v
	case "--dir":
		opts.dir = v
	case "--backend":
		cfg.SimilarityBackend = v
	case "--strategies":
		cfg.Strategies = config.SplitList(v)
	case "--parallel", "-p":
		jobs, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid parallel jobs value: %s", v)
		}
		cfg.ParallelJobs = jobs
	case "--threshold":
		threshold, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid similarity threshold: %s", v)
		}
		cfg.SimilarityThreshold = threshold
	case "--output", "-o":
		cfg.Output = config.ExpandHome(v)
	}
	// --config and --env-file were handled before the config was loaded
	return nil
}

// initConfigFile creates a new config file with default values
func initConfigFile() error {
	path := config.GetDefaultConfigPath()

	if _, err := os.Stat(path); err == nil {
		fmt.Printf("Config file already exists at: %s\n", path)
		fmt.Println("Delete it first if you want to recreate it.")
		return nil
	}

	cfg := config.DefaultConfig()

	if err := config.SaveConfigFile(cfg, path); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	fmt.Printf("Created default config file at: %s\n", path)
	fmt.Println("\nYou can now edit this file to customize your settings.")
	fmt.Println("Available options:")
	fmt.Println("  similarity_threshold: 0.0-1.0 (minimum metadata similarity, default 0.85)")
	fmt.Println("  duration_tolerance_ms: milliseconds two durations may differ (default 5000)")
	fmt.Println("  size_tolerance_ratio: 0.0-1.0 (relative file size difference, default 0.10)")
	fmt.Println("  similarity_backend: edit-distance, token-jaccard, jaro-winkler")
	fmt.Println("  strategies: [hash, metadata, technical, fingerprint]")
	fmt.Println("  parallel_jobs: 1-32 (workers for scanning and pairwise comparison)")
	fmt.Println("  hash_cache: path of the content hash cache database")
	fmt.Println("  verbose: true/false (enable detailed logging)")

	return nil
}

// printUsage displays the help message
func printUsage() {
	fmt.Println("dupefinder - Find duplicate tracks in a music library")
	fmt.Println()
	fmt.Println("Usage: dupefinder [options] <library_folder>")
	fmt.Println("       dupefinder [options] --tracks-file <tracks.json>")
	fmt.Println("       dupefinder --tracks-data <json> --parameters <json> --job-id <id>")
	fmt.Println()
	fmt.Println("Input:")
	fmt.Println("  --dir <path>               Library folder to scan (same as the positional argument)")
	fmt.Println("  --tracks-file <path>       JSON array of tracks ('-' reads stdin)")
	fmt.Println("  --tracks-data <json>       JSON array of tracks given inline")
	fmt.Println("  --parameters <json>        JSON detection parameters")
	fmt.Println("  --job-id <id>              Worker mode: PROGRESS:<n> and RESULT:<json> lines on stdout")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -v, --verbose              Show detailed output")
	fmt.Println("  -p, --parallel <n>         Number of parallel workers (1-32, default: 4)")
	fmt.Println("  --threshold <x>            Metadata similarity threshold (default: 0.85)")
	fmt.Println("  --backend <name>           edit-distance, token-jaccard or jaro-winkler")
	fmt.Println("  --strategies <list>        Comma-separated: hash,metadata,technical,fingerprint")
	fmt.Println("  -o, --output <path>        Write the report to a file instead of stdout")
	fmt.Println("  --no-cache                 Hash every file instead of using the hash cache")
	fmt.Println("  -c, --config <path>        Path to config file")
	fmt.Println("  --env-file <path>          Environment overrides file (default: .env)")
	fmt.Println("  -h, --help                 Show this help message")
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println("  --init-config              Create a default config file")
	fmt.Println()
	fmt.Println("Config file locations (checked in order):")
	fmt.Println("  ./dupefinder.yaml")
	fmt.Println("  ~/.config/dupefinder/config.yaml")
	fmt.Println("  ~/.dupefinder.yaml")
	fmt.Println()
	fmt.Println("Environment overrides: DUPEFINDER_SIMILARITY_THRESHOLD, DUPEFINDER_BACKEND,")
	fmt.Println("  DUPEFINDER_STRATEGIES, DUPEFINDER_PARALLEL_JOBS, DUPEFINDER_HASH_CACHE, ...")
	fmt.Println()
	fmt.Println("Logging:")
	fmt.Println("  Normal mode: Progress bar shown, detailed logs saved to:")
	fmt.Println("    ~/.local/share/dupefinder/logs/")
	fmt.Println("  Verbose mode: All output to stderr, no progress bar, no file logging")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  # Scan a library and print the report")
	fmt.Println("  dupefinder ~/Music")
	fmt.Println()
	fmt.Println("  # Only exact and metadata duplicates, report to a file")
	fmt.Println("  dupefinder --strategies hash,metadata -o dupes.json ~/Music")
	fmt.Println()
	fmt.Println("  # Analyze tracks exported by another tool")
	fmt.Println("  dupefinder --tracks-file tracks.json --parameters '{\"similarity_threshold\": 0.9}'")
}
