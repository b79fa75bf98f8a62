package detect

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"dupefinder/internal/textsim"
	"dupefinder/internal/track"
)

// Matcher is one independent detection strategy. Match must not modify tracks.
type Matcher interface {
	Strategy() Strategy
	Match(tracks []track.Track, p Parameters) ([]Candidate, error)
}

// HashMatcher groups tracks whose content hashes are identical.
type HashMatcher struct{}

func (HashMatcher) Strategy() Strategy { return StrategyHash }

// Match returns one candidate per hash shared by two or more tracks, in the
// order each hash was first seen.
func (HashMatcher) Match(tracks []track.Track, _ Parameters) ([]Candidate, error) {
	groups := make(map[string][]track.Track)
	var order []string

	for _, t := range tracks {
		if t.ContentHash == "" {
			continue
		}
		if _, ok := groups[t.ContentHash]; !ok {
			order = append(order, t.ContentHash)
		}
		groups[t.ContentHash] = append(groups[t.ContentHash], t)
	}

	var matches []Candidate
	for _, hash := range order {
		members := groups[hash]
		if len(members) < 2 {
			continue
		}
		matches = append(matches, Candidate{
			Strategy:   StrategyHash,
			Type:       Identical,
			Confidence: 1.0,
			Reason:     "identical content hash",
			Tracks:     members,
			Detail:     HashDetail{Hash: hash},
		})
	}
	return matches, nil
}

// Metadata field weights. Fields missing on either side drop out of both
// the weighted sum and the total weight.
const (
	titleWeight  = 0.4
	artistWeight = 0.3
	albumWeight  = 0.2
	yearWeight   = 0.1

	// Without a duration match, metadata alone must clear this bar.
	metadataOnlyThreshold = 0.95
	durationBoost         = 0.10
	likelyThreshold       = 0.9
)

// MetadataMatcher pairs tracks whose title, artist, album and year agree.
type MetadataMatcher struct {
	Scorer  *textsim.Scorer
	Workers int
}

func (m MetadataMatcher) Strategy() Strategy { return StrategyMetadata }

type normalizedFields struct {
	title, artist, album string
}

// metadataScore is the weighted similarity of one pair plus the per-field
// scores that went into it.
type metadataScore struct {
	similarity float64
	title      *float64
	artist     *float64
}

func (m MetadataMatcher) Match(tracks []track.Track, p Parameters) ([]Candidate, error) {
	scorer := m.Scorer
	if scorer == nil {
		scorer = textsim.NewScorer(nil)
	}

	fields := make([]normalizedFields, len(tracks))
	for i, t := range tracks {
		fields[i] = normalizedFields{
			title:  textsim.Normalize(t.Title),
			artist: textsim.Normalize(t.Artist),
			album:  textsim.Normalize(t.Album),
		}
	}

	return forEachPairRow(len(tracks), m.Workers, func(i int) []Candidate {
		var row []Candidate
		for j := i + 1; j < len(tracks); j++ {
			a, b := tracks[i], tracks[j]

			score := scoreMetadata(scorer, fields[i], fields[j], a.Year, b.Year)
			if score.similarity < p.SimilarityThreshold {
				continue
			}

			durationOK := DurationMatch(a.DurationMs, b.DurationMs, p.DurationToleranceMs).Matched()
			if !durationOK && score.similarity <= metadataOnlyThreshold {
				continue
			}

			confidence := score.similarity
			if durationOK {
				confidence = math.Min(1.0, confidence+durationBoost)
			}

			matchType := Possible
			if confidence > likelyThreshold {
				matchType = Likely
			}

			row = append(row, Candidate{
				Strategy:   StrategyMetadata,
				Type:       matchType,
				Confidence: confidence,
				Reason:     fmt.Sprintf("metadata similarity: %.2f", score.similarity),
				Tracks:     []track.Track{a, b},
				Detail: MetadataDetail{
					Similarity:       score.similarity,
					TitleSimilarity:  score.title,
					ArtistSimilarity: score.artist,
					DurationMatched:  durationOK,
				},
			})
		}
		return row
	}), nil
}

func scoreMetadata(scorer *textsim.Scorer, a, b normalizedFields, yearA, yearB *int) metadataScore {
	var out metadataScore
	var sum, weight float64

	if a.title != "" && b.title != "" {
		sim := scorer.Compare(a.title, b.title)
		out.title = &sim
		sum += sim * titleWeight
		weight += titleWeight
	}
	if a.artist != "" && b.artist != "" {
		sim := scorer.Compare(a.artist, b.artist)
		out.artist = &sim
		sum += sim * artistWeight
		weight += artistWeight
	}
	if a.album != "" && b.album != "" {
		sum += scorer.Compare(a.album, b.album) * albumWeight
		weight += albumWeight
	}
	if knownYear(yearA) && knownYear(yearB) {
		if *yearA == *yearB {
			sum += yearWeight
		}
		weight += yearWeight
	}

	if weight > 0 {
		out.similarity = sum / weight
	}
	return out
}

// knownYear reports whether y holds a usable year; 0 is what taggers write
// when the date is missing.
func knownYear(y *int) bool {
	return y != nil && *y != 0
}

// Technical property points, in tenths so sums stay exact.
const (
	durationPoints   = 4
	sizePoints       = 3
	bitratePoints    = 2
	sampleRatePoints = 1

	minTechnicalProperties = 2
	minTechnicalPoints     = 5 // score must exceed 0.5
	maxTechnicalPoints     = 9 // no content guarantee, so never above 0.9
)

// TechnicalMatcher pairs tracks whose duration, size, bitrate and sample rate agree.
type TechnicalMatcher struct {
	Workers int
}

func (m TechnicalMatcher) Strategy() Strategy { return StrategyTechnical }

func (m TechnicalMatcher) Match(tracks []track.Track, p Parameters) ([]Candidate, error) {
	return forEachPairRow(len(tracks), m.Workers, func(i int) []Candidate {
		var row []Candidate
		for j := i + 1; j < len(tracks); j++ {
			a, b := tracks[i], tracks[j]

			// Identical content is already the hash strategy's claim
			if a.ContentHash != "" && a.ContentHash == b.ContentHash {
				continue
			}

			var matched []string
			points := 0
			if DurationMatch(a.DurationMs, b.DurationMs, p.DurationToleranceMs).Matched() {
				matched = append(matched, "duration")
				points += durationPoints
			}
			if SizeMatch(a.SizeBytes, b.SizeBytes, p.SizeToleranceRatio).Matched() {
				matched = append(matched, "file_size")
				points += sizePoints
			}
			if BitrateMatch(a.Bitrate, b.Bitrate).Matched() {
				matched = append(matched, "bitrate")
				points += bitratePoints
			}
			if SampleRateMatch(a.SampleRate, b.SampleRate).Matched() {
				matched = append(matched, "sample_rate")
				points += sampleRatePoints
			}

			if len(matched) < minTechnicalProperties || points <= minTechnicalPoints {
				continue
			}

			score := float64(points) / 10
			row = append(row, Candidate{
				Strategy:   StrategyTechnical,
				Type:       Possible,
				Confidence: float64(min(points, maxTechnicalPoints)) / 10,
				Reason:     "technical similarity: " + strings.Join(matched, ", "),
				Tracks:     []track.Track{a, b},
				Detail: TechnicalDetail{
					MatchedProperties: matched,
					Score:             score,
				},
			})
		}
		return row
	}), nil
}

// FingerprintMatcher is the acoustic fingerprint strategy. No fingerprint
// backend exists yet, so it never reports a match.
type FingerprintMatcher struct{}

func (FingerprintMatcher) Strategy() Strategy { return StrategyFingerprint }

func (FingerprintMatcher) Match(_ []track.Track, _ Parameters) ([]Candidate, error) {
	return nil, nil
}

// forEachPairRow calls row for every i in [0, n) using up to workers
// goroutines and concatenates the results in row order, so the output is
// the same as a sequential i<j double loop. A panic in any row is re-raised
// on the calling goroutine once all workers have stopped.
func forEachPairRow(n, workers int, row func(i int) []Candidate) []Candidate {
	rows := make([][]Candidate, n)

	if workers <= 1 || n < 2 {
		for i := 0; i < n; i++ {
			rows[i] = row(i)
		}
		return concatRows(rows)
	}

	var (
		wg       sync.WaitGroup
		panicMu  sync.Mutex
		panicVal any
	)
	runRow := func(i int) {
		defer func() {
			if r := recover(); r != nil {
				panicMu.Lock()
				if panicVal == nil {
					panicVal = r
				}
				panicMu.Unlock()
			}
		}()
		rows[i] = row(i)
	}

	jobs := make(chan int)
	for w := 0; w < min(workers, n); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				runRow(i)
			}
		}()
	}
	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	if panicVal != nil {
		panic(panicVal)
	}
	return concatRows(rows)
}

func concatRows(rows [][]Candidate) []Candidate {
	var out []Candidate
	for _, r := range rows {
		out = append(out, r...)
	}
	return out
}
