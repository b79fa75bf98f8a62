package detect

import (
	"fmt"
	"math"
	"reflect"
	"testing"

	"dupefinder/internal/textsim"
	"dupefinder/internal/track"
)

func TestHashMatcher(t *testing.T) {
	tracks := []track.Track{
		{ID: "1", ContentHash: "abc123", Title: "First"},
		{ID: "2", ContentHash: "zzz"},
		{ID: "3", ContentHash: "abc123", Title: "Second"},
		{ID: "4"},
		{ID: "5", ContentHash: "zzz"},
		{ID: "6", ContentHash: "lonely"},
	}

	matches, err := HashMatcher{}.Match(tracks, DefaultParameters())
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("got %d matches, want 2", len(matches))
	}

	first := matches[0]
	if first.Type != Identical || first.Confidence != 1.0 {
		t.Errorf("got %s/%v, want identical/1.0", first.Type, first.Confidence)
	}
	if got := first.Identities(); !reflect.DeepEqual(got, []string{"1", "3"}) {
		t.Errorf("first group = %v, want [1 3]", got)
	}
	if d, ok := first.Detail.(HashDetail); !ok || d.Hash != "abc123" {
		t.Errorf("detail = %#v, want hash abc123", first.Detail)
	}
	if got := matches[1].Identities(); !reflect.DeepEqual(got, []string{"2", "5"}) {
		t.Errorf("second group = %v, want [2 5]", got)
	}
}

func TestMetadataMatcher(t *testing.T) {
	tests := []struct {
		name     string
		a, b     track.Track
		wantType MatchType
		wantConf float64
		noMatch  bool
	}{
		{
			name:     "radio edit with close duration",
			a:        track.Track{ID: "a", Title: "Feel So Close", Artist: "Calvin Harris", DurationMs: track.Int64(210000)},
			b:        track.Track{ID: "b", Title: "Feel So Close (Radio Edit)", Artist: "Calvin Harris", DurationMs: track.Int64(211500)},
			wantType: Likely,
			wantConf: 1.0,
		},
		{
			name:     "identical metadata without duration",
			a:        track.Track{ID: "a", Title: "Levels", Artist: "Avicii"},
			b:        track.Track{ID: "b", Title: "Levels", Artist: "Avicii"},
			wantType: Likely,
			wantConf: 1.0,
		},
		{
			name:     "one typo clears the bar without duration",
			a:        track.Track{ID: "a", Title: "Calvin Harris"},
			b:        track.Track{ID: "b", Title: "Calvin Haris"},
			wantType: Likely,
			wantConf: 0.96,
		},
		{
			name:     "close title boosted by duration",
			a:        track.Track{ID: "a", Title: "Levels", DurationMs: track.Int64(200000)},
			b:        track.Track{ID: "b", Title: "Level", DurationMs: track.Int64(200500)},
			wantType: Likely,
			wantConf: 1.0,
		},
		{
			name:    "close title without duration stays below 0.95",
			a:       track.Track{ID: "a", Title: "Levels"},
			b:       track.Track{ID: "b", Title: "Level"},
			noMatch: true,
		},
		{
			name:    "different songs",
			a:       track.Track{ID: "a", Title: "Levels", Artist: "Avicii", DurationMs: track.Int64(200000)},
			b:       track.Track{ID: "b", Title: "Strobe", Artist: "deadmau5", DurationMs: track.Int64(200000)},
			noMatch: true,
		},
		{
			name:    "year mismatch drags score down",
			a:       track.Track{ID: "a", Title: "Levels", Year: track.Int(2011)},
			b:       track.Track{ID: "b", Title: "Levels", Year: track.Int(2021)},
			noMatch: true,
		},
		{
			name:     "year zero is treated as unknown",
			a:        track.Track{ID: "a", Title: "Levels", Year: track.Int(0), DurationMs: track.Int64(200000)},
			b:        track.Track{ID: "b", Title: "Levels", Year: track.Int(2011), DurationMs: track.Int64(200000)},
			wantType: Likely,
			wantConf: 1.0,
		},
		{
			name:    "nothing comparable",
			a:       track.Track{ID: "a", DurationMs: track.Int64(1000)},
			b:       track.Track{ID: "b", DurationMs: track.Int64(1000)},
			noMatch: true,
		},
	}

	m := MetadataMatcher{Scorer: textsim.NewScorer(textsim.EditDistance{})}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matches, err := m.Match([]track.Track{tt.a, tt.b}, DefaultParameters())
			if err != nil {
				t.Fatalf("Match failed: %v", err)
			}
			if tt.noMatch {
				if len(matches) != 0 {
					t.Fatalf("expected no match, got %+v", matches)
				}
				return
			}
			if len(matches) != 1 {
				t.Fatalf("got %d matches, want 1", len(matches))
			}
			got := matches[0]
			if got.Type != tt.wantType {
				t.Errorf("type = %s, want %s", got.Type, tt.wantType)
			}
			if math.Abs(got.Confidence-tt.wantConf) > 1e-9 {
				t.Errorf("confidence = %v, want %v", got.Confidence, tt.wantConf)
			}
		})
	}
}

// fixedRatio scores every pair of differing strings the same.
type fixedRatio float64

func (fixedRatio) Name() string                { return "fixed" }
func (r fixedRatio) Ratio(_, _ string) float64 { return float64(r) }

func TestMetadataMatcherBoundaries(t *testing.T) {
	tests := []struct {
		name      string
		ratio     float64
		threshold float64
		a, b      track.Track
		wantMatch bool
	}{
		// Title 1.0 with a year mismatch scores 0.4 / 0.5.
		{
			name:      "score equal to threshold matches",
			threshold: 0.8,
			a:         track.Track{ID: "a", Title: "Levels", Year: track.Int(2011), DurationMs: track.Int64(200000)},
			b:         track.Track{ID: "b", Title: "Levels", Year: track.Int(2012), DurationMs: track.Int64(200000)},
			wantMatch: true,
		},
		{
			name:      "score just below threshold",
			threshold: 0.81,
			a:         track.Track{ID: "a", Title: "Levels", Year: track.Int(2011), DurationMs: track.Int64(200000)},
			b:         track.Track{ID: "b", Title: "Levels", Year: track.Int(2012), DurationMs: track.Int64(200000)},
		},
		{
			name:      "exactly 0.95 without duration is not enough",
			ratio:     0.95,
			threshold: 0.85,
			a:         track.Track{ID: "a", Title: "Alpha"},
			b:         track.Track{ID: "b", Title: "Beta"},
		},
		{
			name:      "above 0.95 without duration matches",
			ratio:     0.96,
			threshold: 0.85,
			a:         track.Track{ID: "a", Title: "Alpha"},
			b:         track.Track{ID: "b", Title: "Beta"},
			wantMatch: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParameters()
			p.SimilarityThreshold = tt.threshold
			m := MetadataMatcher{Scorer: textsim.NewScorer(fixedRatio(tt.ratio))}

			matches, err := m.Match([]track.Track{tt.a, tt.b}, p)
			if err != nil {
				t.Fatalf("Match failed: %v", err)
			}
			if got := len(matches) == 1; got != tt.wantMatch {
				t.Fatalf("matched = %v, want %v (%+v)", got, tt.wantMatch, matches)
			}
		})
	}
}

func TestMetadataMatcherPossible(t *testing.T) {
	// title 1.0 and artist 0.9 score about 0.957, boosted past 1.0 and capped
	a := track.Track{ID: "a", Title: "Opus", Artist: "Eric Prydz", DurationMs: track.Int64(540000)}
	b := track.Track{ID: "b", Title: "Opus", Artist: "Erik Prydz", DurationMs: track.Int64(541000)}
	p := DefaultParameters()

	matches, err := MetadataMatcher{}.Match([]track.Track{a, b}, p)
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(matches))
	}
	d := matches[0].Detail.(MetadataDetail)
	if d.TitleSimilarity == nil || *d.TitleSimilarity != 1.0 {
		t.Errorf("title similarity = %v, want 1.0", d.TitleSimilarity)
	}
	if d.ArtistSimilarity == nil || *d.ArtistSimilarity >= 1.0 {
		t.Errorf("artist similarity = %v, want < 1.0", d.ArtistSimilarity)
	}
	if !d.DurationMatched {
		t.Error("expected duration match in detail")
	}
	if matches[0].Confidence != 1.0 {
		t.Errorf("confidence = %v, want 1.0 after capped boost", matches[0].Confidence)
	}

	// Only the title is compared: 14/18, boosted to about 0.88
	c := track.Track{ID: "c", Title: "Sandstorm", DurationMs: track.Int64(600000)}
	d2 := track.Track{ID: "d", Title: "Sandstone", DurationMs: track.Int64(600000)}
	p.SimilarityThreshold = 0.75
	matches, err = MetadataMatcher{}.Match([]track.Track{c, d2}, p)
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(matches))
	}
	if matches[0].Type != Possible {
		t.Errorf("type = %s, want possible", matches[0].Type)
	}
	if d := matches[0].Detail.(MetadataDetail); d.ArtistSimilarity != nil {
		t.Errorf("artist similarity should be absent, got %v", *d.ArtistSimilarity)
	}
}

func TestTechnicalMatcher(t *testing.T) {
	tests := []struct {
		name      string
		a, b      track.Track
		wantConf  float64
		wantProps []string
		noMatch   bool
	}{
		{
			name:      "three properties",
			a:         track.Track{ID: "c", DurationMs: track.Int64(300000), SizeBytes: track.Int64(7000000), Bitrate: track.Int(320)},
			b:         track.Track{ID: "d", DurationMs: track.Int64(300200), SizeBytes: track.Int64(7050000), Bitrate: track.Int(318)},
			wantConf:  0.9,
			wantProps: []string{"duration", "file_size", "bitrate"},
		},
		{
			name: "all four capped at 0.9",
			a: track.Track{ID: "c", DurationMs: track.Int64(300000), SizeBytes: track.Int64(7000000),
				Bitrate: track.Int(320), SampleRate: track.Int(44100)},
			b: track.Track{ID: "d", DurationMs: track.Int64(300000), SizeBytes: track.Int64(7000000),
				Bitrate: track.Int(320), SampleRate: track.Int(44100)},
			wantConf:  0.9,
			wantProps: []string{"duration", "file_size", "bitrate", "sample_rate"},
		},
		{
			name:      "duration and size",
			a:         track.Track{ID: "c", DurationMs: track.Int64(300000), SizeBytes: track.Int64(7000000)},
			b:         track.Track{ID: "d", DurationMs: track.Int64(301000), SizeBytes: track.Int64(7100000)},
			wantConf:  0.7,
			wantProps: []string{"duration", "file_size"},
		},
		{
			name:      "duration and bitrate clear 0.5",
			a:         track.Track{ID: "c", DurationMs: track.Int64(300000), Bitrate: track.Int(320)},
			b:         track.Track{ID: "d", DurationMs: track.Int64(302000), Bitrate: track.Int(320)},
			wantConf:  0.6,
			wantProps: []string{"duration", "bitrate"},
		},
		{
			name:    "size and bitrate score exactly 0.5",
			a:       track.Track{ID: "c", SizeBytes: track.Int64(7000000), Bitrate: track.Int(320)},
			b:       track.Track{ID: "d", SizeBytes: track.Int64(7000000), Bitrate: track.Int(320)},
			noMatch: true,
		},
		{
			name:    "bitrate and sample rate only reach 0.3",
			a:       track.Track{ID: "c", Bitrate: track.Int(320), SampleRate: track.Int(44100)},
			b:       track.Track{ID: "d", Bitrate: track.Int(320), SampleRate: track.Int(44100)},
			noMatch: true,
		},
		{
			name:    "duration alone",
			a:       track.Track{ID: "c", DurationMs: track.Int64(300000), Bitrate: track.Int(128)},
			b:       track.Track{ID: "d", DurationMs: track.Int64(300000), Bitrate: track.Int(320)},
			noMatch: true,
		},
		{
			name:    "same hash skipped",
			a:       track.Track{ID: "c", ContentHash: "h", DurationMs: track.Int64(1), SizeBytes: track.Int64(10)},
			b:       track.Track{ID: "d", ContentHash: "h", DurationMs: track.Int64(1), SizeBytes: track.Int64(10)},
			noMatch: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matches, err := TechnicalMatcher{}.Match([]track.Track{tt.a, tt.b}, DefaultParameters())
			if err != nil {
				t.Fatalf("Match failed: %v", err)
			}
			if tt.noMatch {
				if len(matches) != 0 {
					t.Fatalf("expected no match, got %+v", matches)
				}
				return
			}
			if len(matches) != 1 {
				t.Fatalf("got %d matches, want 1", len(matches))
			}
			got := matches[0]
			if got.Type != Possible {
				t.Errorf("type = %s, want possible", got.Type)
			}
			if got.Confidence != tt.wantConf {
				t.Errorf("confidence = %v, want %v", got.Confidence, tt.wantConf)
			}
			d := got.Detail.(TechnicalDetail)
			if !reflect.DeepEqual(d.MatchedProperties, tt.wantProps) {
				t.Errorf("matched properties = %v, want %v", d.MatchedProperties, tt.wantProps)
			}
		})
	}
}

func TestFingerprintMatcherIsEmpty(t *testing.T) {
	tracks := []track.Track{
		{ID: "1", ContentHash: "a", Title: "x"},
		{ID: "2", ContentHash: "a", Title: "x"},
	}
	matches, err := FingerprintMatcher{}.Match(tracks, DefaultParameters())
	if err != nil || len(matches) != 0 {
		t.Fatalf("got %v, %v; want no matches and no error", matches, err)
	}
}

func TestPairwiseWorkersPreserveOrder(t *testing.T) {
	var tracks []track.Track
	for i := 0; i < 40; i++ {
		tracks = append(tracks, track.Track{
			ID:         fmt.Sprintf("t%02d", i),
			Title:      "Same Song",
			Artist:     "Same Artist",
			DurationMs: track.Int64(int64(200000 + i*10)),
			SizeBytes:  track.Int64(5000000),
			Bitrate:    track.Int(256),
		})
	}
	p := DefaultParameters()

	for _, tc := range []struct {
		name    string
		matcher func(workers int) Matcher
	}{
		{"metadata", func(w int) Matcher { return MetadataMatcher{Workers: w} }},
		{"technical", func(w int) Matcher { return TechnicalMatcher{Workers: w} }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			sequential, err := tc.matcher(1).Match(tracks, p)
			if err != nil {
				t.Fatalf("sequential: %v", err)
			}
			parallel, err := tc.matcher(8).Match(tracks, p)
			if err != nil {
				t.Fatalf("parallel: %v", err)
			}
			if want := len(tracks) * (len(tracks) - 1) / 2; len(sequential) != want {
				t.Fatalf("got %d pairs, want %d", len(sequential), want)
			}
			if !reflect.DeepEqual(sequential, parallel) {
				t.Error("parallel output differs from sequential output")
			}
		})
	}
}

func TestForEachPairRowRepanics(t *testing.T) {
	defer func() {
		if r := recover(); r != "row 3" {
			t.Errorf("recovered %v, want %q", r, "row 3")
		}
	}()

	forEachPairRow(10, 4, func(i int) []Candidate {
		if i == 3 {
			panic("row 3")
		}
		return nil
	})
	t.Error("expected panic")
}
