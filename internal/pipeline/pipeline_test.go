package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"dupefinder/internal/config"
	"dupefinder/internal/detect"
	"dupefinder/internal/logger"
	"dupefinder/internal/track"
)

func TestRunWithTracks(t *testing.T) {
	tracks := []track.Track{
		{ID: "1", ContentHash: "abc123"},
		{ID: "2", ContentHash: "abc123"},
	}

	var last int
	report, err := Run(context.Background(), config.DefaultConfig(), logger.Discard(), nil,
		Input{Tracks: tracks, Params: detect.DefaultParameters()},
		Hooks{OnDetectProgress: func(p int) { last = p }})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.DuplicateGroups != 1 {
		t.Errorf("groups = %d, want 1", report.DuplicateGroups)
	}
	if last != 100 {
		t.Errorf("last progress = %d, want 100", last)
	}
}

func TestRunScansFolder(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.mp3", "b.flac", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("same"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	scanCalls := 0
	report, err := Run(context.Background(), config.DefaultConfig(), logger.Discard(), nil,
		Input{Dir: dir, Params: detect.DefaultParameters()},
		Hooks{OnScanProgress: func(done, total int) { scanCalls++ }})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.TotalTracks != 2 {
		t.Errorf("total tracks = %d, want 2", report.TotalTracks)
	}
	if report.DetectionStrategies.HashMatches != 1 {
		t.Errorf("hash matches = %d, want 1", report.DetectionStrategies.HashMatches)
	}
	if scanCalls != 2 {
		t.Errorf("scan progress calls = %d, want 2", scanCalls)
	}
}

func TestRunEmptyFolder(t *testing.T) {
	_, err := Run(context.Background(), config.DefaultConfig(), logger.Discard(), nil,
		Input{Dir: t.TempDir(), Params: detect.DefaultParameters()}, Hooks{})
	if err == nil {
		t.Error("expected an error for a folder without audio files")
	}
}

func TestRunBadConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.SimilarityBackend = "soundex"

	_, err := Run(context.Background(), cfg, logger.Discard(), nil,
		Input{Params: detect.DefaultParameters()}, Hooks{})
	if err == nil {
		t.Error("expected an error for an unknown backend")
	}
}
