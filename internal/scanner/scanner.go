package scanner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"go.senan.xyz/taglib"

	"dupefinder/internal/hashcache"
	"dupefinder/internal/logger"
	"dupefinder/internal/track"
	"dupefinder/pkg/utils"
)

// ErrNotAudio is returned for files without a supported audio extension.
var ErrNotAudio = errors.New("not an audio file")

// Stats summarizes a library scan.
type Stats struct {
	Total     int
	Scanned   int
	Failed    int
	CacheHits int
	Pruned    int
}

// Scanner turns audio files on disk into tracks ready for detection.
type Scanner struct {
	Workers int
	Cache   *hashcache.Cache
	Logger  *logger.Logger

	// OnProgress is called after each file with the number of files done.
	OnProgress func(done, total int)
}

// New creates a Scanner. cache may be nil to always hash from disk.
func New(workers int, cache *hashcache.Cache, log *logger.Logger) *Scanner {
	if workers < 1 {
		workers = 1
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Scanner{Workers: workers, Cache: cache, Logger: log.With("scanner")}
}

// Scan reads every audio file under dir in parallel. Files that cannot be
// read are counted in Stats.Failed and left out; the returned tracks keep
// the sorted path order of the directory walk.
func (s *Scanner) Scan(ctx context.Context, dir string) ([]track.Track, Stats, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("failed to resolve %s: %w", dir, err)
	}

	files, err := utils.FindAudioFiles(dir)
	if err != nil {
		return nil, Stats{}, err
	}

	stats := Stats{Total: len(files)}
	s.Logger.Info("Scanning %d audio files (%d parallel)", len(files), s.Workers)

	results := make([]*track.Track, len(files))
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		done      int
		cacheHits int
	)
	semaphore := make(chan struct{}, s.Workers)

	for i, path := range files {
		select {
		case <-ctx.Done():
			s.Logger.Warn("Scan cancelled, waiting for active files to finish...")
			wg.Wait()
			return nil, stats, fmt.Errorf("scan cancelled: %w", ctx.Err())
		default:
		}

		wg.Add(1)
		go func(idx int, p string) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			t, hit, err := s.readTrack(ctx, p)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if ctx.Err() == nil {
					s.Logger.Debug("Skipping %s: %v", p, err)
				}
			} else {
				results[idx] = &t
				if hit {
					cacheHits++
				}
			}
			done++
			if s.OnProgress != nil {
				s.OnProgress(done, len(files))
			}
		}(i, path)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, stats, fmt.Errorf("scan cancelled: %w", err)
	}

	tracks := make([]track.Track, 0, len(files))
	for _, t := range results {
		if t != nil {
			tracks = append(tracks, *t)
		}
	}
	stats.Scanned = len(tracks)
	stats.Failed = stats.Total - stats.Scanned
	stats.CacheHits = cacheHits

	if s.Cache != nil {
		pruned, err := s.Cache.Prune(ctx, dir, files)
		if err != nil {
			s.Logger.Warn("Failed to prune hash cache: %v", err)
		}
		stats.Pruned = pruned
	}

	if stats.Failed > 0 {
		s.Logger.Warn("%d files could not be read", stats.Failed)
	}
	s.Logger.Info("Scan completed: %d tracks, %d cached hashes, %d failed", stats.Scanned, stats.CacheHits, stats.Failed)
	return tracks, stats, nil
}

// ReadTrack reads one audio file into a track.
func (s *Scanner) ReadTrack(ctx context.Context, path string) (track.Track, error) {
	t, _, err := s.readTrack(ctx, path)
	return t, err
}

func (s *Scanner) readTrack(ctx context.Context, path string) (track.Track, bool, error) {
	if !utils.IsAudioFile(path) {
		return track.Track{}, false, fmt.Errorf("%w: %s", ErrNotAudio, path)
	}

	info, err := os.Stat(path)
	if err != nil {
		return track.Track{}, false, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	hash, hit, err := s.contentHash(ctx, path, info)
	if err != nil {
		return track.Track{}, false, err
	}

	t := track.Track{
		Path:        path,
		ContentHash: hash,
		SizeBytes:   track.Int64(info.Size()),
	}

	// Unreadable tags leave the hash and size usable for detection
	if err := readTags(path, &t); err != nil {
		s.Logger.Debug("No tags for %s: %v", path, err)
	}
	if err := readProperties(path, &t); err != nil {
		s.Logger.Debug("No audio properties for %s: %v", path, err)
	}

	return t, hit, nil
}

func (s *Scanner) contentHash(ctx context.Context, path string, info os.FileInfo) (string, bool, error) {
	if s.Cache != nil {
		hash, ok, err := s.Cache.Lookup(ctx, path, info.Size(), info.ModTime())
		if err != nil {
			s.Logger.Debug("Hash cache lookup failed for %s: %v", path, err)
		} else if ok {
			return hash, true, nil
		}
	}

	hash, err := utils.HashFile(path)
	if err != nil {
		return "", false, err
	}

	if s.Cache != nil {
		if err := s.Cache.Store(ctx, path, info.Size(), info.ModTime(), hash); err != nil {
			s.Logger.Debug("Failed to cache hash for %s: %v", path, err)
		}
	}
	return hash, false, nil
}

func readTags(path string, t *track.Track) error {
	tags, err := taglib.ReadTags(path)
	if err != nil {
		return err
	}

	t.Title = firstTag(tags, taglib.Title)
	t.Artist = firstTag(tags, taglib.Artist)
	t.Album = firstTag(tags, taglib.Album)
	if year, ok := parseYear(firstTag(tags, taglib.Date)); ok {
		t.Year = track.Int(year)
	}
	return nil
}

func readProperties(path string, t *track.Track) error {
	props, err := taglib.ReadProperties(path)
	if err != nil {
		return err
	}

	if props.Length > 0 {
		t.DurationMs = track.Int64(props.Length.Milliseconds())
	}
	if props.Bitrate > 0 {
		t.Bitrate = track.Int(int(props.Bitrate))
	}
	if props.SampleRate > 0 {
		t.SampleRate = track.Int(int(props.SampleRate))
	}
	return nil
}

func firstTag(tags map[string][]string, key string) string {
	if vals, ok := tags[key]; ok && len(vals) > 0 {
		return strings.TrimSpace(vals[0])
	}
	return ""
}

// parseYear extracts the year from dates such as "2011", "2011-10-14" or "2011/10".
func parseYear(date string) (int, bool) {
	if len(date) < 4 {
		return 0, false
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil || year <= 0 {
		return 0, false
	}
	return year, true
}
