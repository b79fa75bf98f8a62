package textsim

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"github.com/hbollon/go-edlib"
)

// Backend names accepted by NewBackend.
const (
	BackendEditDistance = "edit-distance"
	BackendTokenJaccard = "token-jaccard"
	BackendJaroWinkler  = "jaro-winkler"
)

// Backend scores two normalized, non-empty, non-identical strings in [0,1].
type Backend interface {
	Name() string
	Ratio(a, b string) float64
}

// NewBackend returns the backend registered under name. An empty name
// selects the edit-distance backend.
func NewBackend(name string) (Backend, error) {
	switch name {
	case "", BackendEditDistance:
		return EditDistance{}, nil
	case BackendTokenJaccard:
		return TokenJaccard{}, nil
	case BackendJaroWinkler:
		return JaroWinkler{}, nil
	default:
		return nil, fmt.Errorf("unknown similarity backend %q, valid backends: %s, %s, %s",
			name, BackendEditDistance, BackendTokenJaccard, BackendJaroWinkler)
	}
}

// Scorer computes text similarity between raw field values.
type Scorer struct {
	backend Backend
}

// NewScorer creates a Scorer. A nil backend falls back to EditDistance.
func NewScorer(b Backend) *Scorer {
	if b == nil {
		b = EditDistance{}
	}
	return &Scorer{backend: b}
}

// Backend returns the backend the scorer was built with.
func (s *Scorer) Backend() Backend { return s.backend }

// Similarity normalizes both strings and returns how similar they are (0.0-1.0).
// Equal strings score 1.0, and a string that is empty after normalization
// scores 0.0 against anything.
func (s *Scorer) Similarity(a, b string) float64 {
	return s.Compare(Normalize(a), Normalize(b))
}

// Compare is Similarity for strings that are already normalized.
func (s *Scorer) Compare(a, b string) float64 {
	if a == "" || b == "" {
		return 0.0
	}
	if a == b {
		return 1.0
	}
	return s.backend.Ratio(a, b)
}

// EditDistance scores by insert/delete edit distance relative to the combined
// length of both strings: (len(a)+len(b)-distance) / (len(a)+len(b)).
type EditDistance struct{}

func (EditDistance) Name() string { return BackendEditDistance }

func (EditDistance) Ratio(a, b string) float64 {
	total := utf8.RuneCountInString(a) + utf8.RuneCountInString(b)
	if total == 0 {
		return 1.0
	}
	dist := edlib.LCSEditDistance(a, b)
	return float64(total-dist) / float64(total)
}

// TokenJaccard scores by the overlap of whitespace-separated token sets.
type TokenJaccard struct{}

func (TokenJaccard) Name() string { return BackendTokenJaccard }

func (TokenJaccard) Ratio(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)

	if len(setA) == 0 && len(setB) == 0 {
		return 1.0
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0.0
	}

	shared := 0
	for t := range setA {
		if setB[t] {
			shared++
		}
	}
	union := len(setA) + len(setB) - shared
	return float64(shared) / float64(union)
}

// JaroWinkler scores with the Jaro-Winkler metric, which favours shared prefixes.
type JaroWinkler struct{}

func (JaroWinkler) Name() string { return BackendJaroWinkler }

func (JaroWinkler) Ratio(a, b string) float64 {
	return strutil.Similarity(a, b, metrics.NewJaroWinkler())
}

func tokenSet(s string) map[string]bool {
	fields := strings.Fields(s)
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		set[f] = true
	}
	return set
}
