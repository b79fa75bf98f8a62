package detect

import "dupefinder/internal/track"

// Analyzer identification carried in every report.
const (
	AnalyzerName    = "duplicate_detector"
	AnalyzerVersion = "1.0.0"
)

// Report is the outcome of one detection run.
type Report struct {
	TotalTracks         int           `json:"total_tracks"`
	DuplicateGroups     int           `json:"duplicate_groups"`
	TotalDuplicates     int           `json:"total_duplicates"`
	Duplicates          []Candidate   `json:"duplicates"`
	DetectionStrategies StrategyStats `json:"detection_strategies"`
	ParametersUsed      Parameters    `json:"parameters_used"`
	Analyzer            string        `json:"analyzer"`
	AnalyzerVersion     string        `json:"analyzer_version"`
}

// StrategyStats counts raw candidate matches per strategy before consolidation.
type StrategyStats struct {
	HashMatches        int `json:"hash_matches"`
	MetadataMatches    int `json:"metadata_matches"`
	TechnicalMatches   int `json:"technical_matches"`
	FingerprintMatches int `json:"fingerprint_matches"`
	// Warnings maps a strategy name to the reason it contributed nothing.
	Warnings map[string]string `json:"warnings,omitempty"`
}

func buildReport(tracks []track.Track, groups []Candidate, lists [][]Candidate, warnings map[string]string, p Parameters) *Report {
	total := 0
	for _, g := range groups {
		total += len(g.Tracks)
	}

	count := func(s Strategy) int {
		if int(s) >= len(lists) {
			return 0
		}
		return len(lists[s])
	}

	stats := StrategyStats{
		HashMatches:        count(StrategyHash),
		MetadataMatches:    count(StrategyMetadata),
		TechnicalMatches:   count(StrategyTechnical),
		FingerprintMatches: count(StrategyFingerprint),
	}
	if len(warnings) > 0 {
		stats.Warnings = warnings
	}

	return &Report{
		TotalTracks:         len(tracks),
		DuplicateGroups:     len(groups),
		TotalDuplicates:     total,
		Duplicates:          groups,
		DetectionStrategies: stats,
		ParametersUsed:      p,
		Analyzer:            AnalyzerName,
		AnalyzerVersion:     AnalyzerVersion,
	}
}
