package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"dupefinder/internal/detect"
	"dupefinder/internal/logger"
	"dupefinder/internal/textsim"
)

// Config contains the program configuration
type Config struct {
	SimilarityThreshold float64  `yaml:"similarity_threshold"`
	DurationToleranceMs int64    `yaml:"duration_tolerance_ms"`
	SizeToleranceRatio  float64  `yaml:"size_tolerance_ratio"`
	SimilarityBackend   string   `yaml:"similarity_backend"`
	Strategies          []string `yaml:"strategies"`
	ParallelJobs        int      `yaml:"parallel_jobs"`
	Verbose             bool     `yaml:"verbose"`
	HashCache           string   `yaml:"hash_cache"`
	LibraryDir          string   `yaml:"library_dir"`
	Output              string   `yaml:"output"`
	ListenAddr          string   `yaml:"listen_addr"`
	RateLimit           float64  `yaml:"rate_limit"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		SimilarityThreshold: detect.DefaultSimilarityThreshold,
		DurationToleranceMs: detect.DefaultDurationToleranceMs,
		SizeToleranceRatio:  detect.DefaultSizeToleranceRatio,
		SimilarityBackend:   textsim.BackendEditDistance,
		ParallelJobs:        4,
		HashCache:           GetDefaultCachePath(),
		ListenAddr:          ":8080",
		RateLimit:           2,
	}
}

// LoadConfigFile loads configuration from a YAML file.
// If path is empty, searches standard locations. Returns defaults if no file found.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = FindConfigFile()
		if path == "" {
			return cfg, nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg.expandPaths()

	return cfg, nil
}

// LoadEnv applies DUPEFINDER_* environment overrides on top of cfg. Variables
// from envFile are loaded first without replacing ones already set; a
// missing file is not an error.
func LoadEnv(cfg *Config, envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	}

	if v, ok := os.LookupEnv("DUPEFINDER_SIMILARITY_THRESHOLD"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid DUPEFINDER_SIMILARITY_THRESHOLD %q: %w", v, err)
		}
		cfg.SimilarityThreshold = f
	}
	if v, ok := os.LookupEnv("DUPEFINDER_DURATION_TOLERANCE_MS"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid DUPEFINDER_DURATION_TOLERANCE_MS %q: %w", v, err)
		}
		cfg.DurationToleranceMs = n
	}
	if v, ok := os.LookupEnv("DUPEFINDER_SIZE_TOLERANCE_RATIO"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid DUPEFINDER_SIZE_TOLERANCE_RATIO %q: %w", v, err)
		}
		cfg.SizeToleranceRatio = f
	}
	if v, ok := os.LookupEnv("DUPEFINDER_BACKEND"); ok {
		cfg.SimilarityBackend = v
	}
	if v, ok := os.LookupEnv("DUPEFINDER_STRATEGIES"); ok {
		cfg.Strategies = SplitList(v)
	}
	if v, ok := os.LookupEnv("DUPEFINDER_PARALLEL_JOBS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid DUPEFINDER_PARALLEL_JOBS %q: %w", v, err)
		}
		cfg.ParallelJobs = n
	}
	if v, ok := os.LookupEnv("DUPEFINDER_HASH_CACHE"); ok {
		cfg.HashCache = v
	}
	if v, ok := os.LookupEnv("DUPEFINDER_LIBRARY_DIR"); ok {
		cfg.LibraryDir = v
	}
	if v, ok := os.LookupEnv("DUPEFINDER_LISTEN_ADDR"); ok {
		cfg.ListenAddr = v
	}
	if v, ok := os.LookupEnv("DUPEFINDER_RATE_LIMIT"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid DUPEFINDER_RATE_LIMIT %q: %w", v, err)
		}
		cfg.RateLimit = f
	}

	cfg.expandPaths()
	return nil
}

// SplitList splits a comma-separated list, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) expandPaths() {
	c.HashCache = ExpandHome(c.HashCache)
	c.LibraryDir = ExpandHome(c.LibraryDir)
	c.Output = ExpandHome(c.Output)
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir(), path[2:])
	}
	return path
}

// FindConfigFile searches for a config file in standard locations
func FindConfigFile() string {
	home := homeDir()
	locations := []string{
		"./dupefinder.yaml",
		"./dupefinder.yml",
		filepath.Join(home, ".config", "dupefinder", "config.yaml"),
		filepath.Join(home, ".config", "dupefinder", "config.yml"),
		filepath.Join(home, ".dupefinder.yaml"),
		filepath.Join(home, ".dupefinder.yml"),
	}

	for _, path := range locations {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// SaveConfigFile saves the current configuration to a YAML file
func SaveConfigFile(cfg Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetDefaultConfigPath returns the default config file path
func GetDefaultConfigPath() string {
	return filepath.Join(homeDir(), ".config", "dupefinder", "config.yaml")
}

// GetDefaultLogPath returns the default log directory path
func GetDefaultLogPath() string {
	return filepath.Join(homeDir(), ".local", "share", "dupefinder", "logs")
}

// GetDefaultCachePath returns the default hash cache database path
func GetDefaultCachePath() string {
	return filepath.Join(homeDir(), ".cache", "dupefinder", "hashes.db")
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.Getenv("HOME")
	}
	return home
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := c.Parameters().Validate(); err != nil {
		return err
	}

	if c.ParallelJobs < 1 {
		return fmt.Errorf("parallel jobs must be at least 1, got %d", c.ParallelJobs)
	}
	if c.ParallelJobs > 32 {
		return fmt.Errorf("parallel jobs cannot exceed 32, got %d", c.ParallelJobs)
	}

	if _, err := textsim.NewBackend(c.SimilarityBackend); err != nil {
		return err
	}
	if _, err := c.StrategyList(); err != nil {
		return err
	}

	if c.RateLimit < 0 {
		return fmt.Errorf("rate_limit cannot be negative, got %.2f", c.RateLimit)
	}

	return nil
}

// Parameters returns the detection parameters described by the config.
func (c *Config) Parameters() detect.Parameters {
	return detect.Parameters{
		SimilarityThreshold: c.SimilarityThreshold,
		DurationToleranceMs: c.DurationToleranceMs,
		SizeToleranceRatio:  c.SizeToleranceRatio,
	}
}

// StrategyList resolves the configured strategy names. An empty list means
// every strategy and is returned as nil.
func (c *Config) StrategyList() ([]detect.Strategy, error) {
	if len(c.Strategies) == 0 {
		return nil, nil
	}
	out := make([]detect.Strategy, 0, len(c.Strategies))
	for _, name := range c.Strategies {
		s, err := detect.ParseStrategy(name)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// EngineOptions builds detection engine options from the config.
func (c *Config) EngineOptions(log *logger.Logger) (detect.Options, error) {
	backend, err := textsim.NewBackend(c.SimilarityBackend)
	if err != nil {
		return detect.Options{}, err
	}
	strategies, err := c.StrategyList()
	if err != nil {
		return detect.Options{}, err
	}
	return detect.Options{
		Backend:    backend,
		Workers:    c.ParallelJobs,
		Strategies: strategies,
		Logger:     log,
	}, nil
}
