package detect

import (
	"encoding/json"
	"fmt"

	"dupefinder/internal/track"
)

// MatchType grades how sure a strategy is that tracks are the same recording.
type MatchType string

const (
	Identical MatchType = "identical"
	Likely    MatchType = "likely"
	Possible  MatchType = "possible"
)

// Strategy identifies a detection strategy. The numeric value is its
// precedence: lower values win confidence ties during consolidation.
type Strategy int

const (
	StrategyHash Strategy = iota
	StrategyMetadata
	StrategyTechnical
	StrategyFingerprint

	strategyCount = iota
)

// Strategies lists every strategy in precedence order.
var Strategies = []Strategy{StrategyHash, StrategyMetadata, StrategyTechnical, StrategyFingerprint}

var strategyNames = [strategyCount]string{"hash", "metadata", "technical", "fingerprint"}

func (s Strategy) String() string {
	if s < 0 || int(s) >= strategyCount {
		return fmt.Sprintf("strategy(%d)", int(s))
	}
	return strategyNames[s]
}

// Rank is the tie-break precedence of the strategy.
func (s Strategy) Rank() int { return int(s) }

func (s Strategy) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Strategy) UnmarshalText(text []byte) error {
	parsed, err := ParseStrategy(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseStrategy resolves a strategy by name.
func ParseStrategy(name string) (Strategy, error) {
	for i, n := range strategyNames {
		if n == name {
			return Strategy(i), nil
		}
	}
	return 0, fmt.Errorf("unknown strategy %q, valid strategies: hash, metadata, technical, fingerprint", name)
}

// Detail is the strategy-specific evidence attached to a candidate.
// Exactly one of HashDetail, MetadataDetail, TechnicalDetail or
// FingerprintDetail backs each value.
type Detail interface {
	isDetail()
}

// HashDetail records the shared content hash.
type HashDetail struct {
	Hash string `json:"hash"`
}

// MetadataDetail records the similarity breakdown of a metadata match.
// Title and artist scores are nil when that field was not compared.
type MetadataDetail struct {
	Similarity       float64  `json:"similarity"`
	TitleSimilarity  *float64 `json:"title_similarity,omitempty"`
	ArtistSimilarity *float64 `json:"artist_similarity,omitempty"`
	DurationMatched  bool     `json:"duration_matched"`
}

// TechnicalDetail lists the technical properties that matched.
type TechnicalDetail struct {
	MatchedProperties []string `json:"matched_properties"`
	Score             float64  `json:"score"`
}

// FingerprintDetail is reserved for acoustic fingerprint matches.
type FingerprintDetail struct {
	Score float64 `json:"score"`
}

func (HashDetail) isDetail()        {}
func (MetadataDetail) isDetail()    {}
func (TechnicalDetail) isDetail()   {}
func (FingerprintDetail) isDetail() {}

// Candidate is one strategy's claim that two or more tracks are duplicates.
// Candidates that survive consolidation become the report's duplicate groups.
type Candidate struct {
	Strategy   Strategy
	Type       MatchType
	Confidence float64
	Reason     string
	Tracks     []track.Track
	Detail     Detail
}

// Identities returns the identity of every member track.
func (c Candidate) Identities() []string {
	ids := make([]string, len(c.Tracks))
	for i, t := range c.Tracks {
		ids[i] = t.Identity()
	}
	return ids
}

func (c Candidate) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Strategy   Strategy      `json:"strategy"`
		MatchType  MatchType     `json:"match_type"`
		Confidence float64       `json:"confidence"`
		Reason     string        `json:"reason"`
		Tracks     []track.Track `json:"tracks"`
		Detail     Detail        `json:"detail"`
	}{
		Strategy:   c.Strategy,
		MatchType:  c.Type,
		Confidence: c.Confidence,
		Reason:     c.Reason,
		Tracks:     c.Tracks,
		Detail:     c.Detail,
	})
}

// UnmarshalJSON restores a candidate written by MarshalJSON, decoding the
// detail into the variant that belongs to the strategy.
func (c *Candidate) UnmarshalJSON(data []byte) error {
	var aux struct {
		Strategy   Strategy        `json:"strategy"`
		MatchType  MatchType       `json:"match_type"`
		Confidence float64         `json:"confidence"`
		Reason     string          `json:"reason"`
		Tracks     []track.Track   `json:"tracks"`
		Detail     json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	*c = Candidate{
		Strategy:   aux.Strategy,
		Type:       aux.MatchType,
		Confidence: aux.Confidence,
		Reason:     aux.Reason,
		Tracks:     aux.Tracks,
	}
	if len(aux.Detail) == 0 || string(aux.Detail) == "null" {
		return nil
	}

	var err error
	switch aux.Strategy {
	case StrategyHash:
		var d HashDetail
		err = json.Unmarshal(aux.Detail, &d)
		c.Detail = d
	case StrategyMetadata:
		var d MetadataDetail
		err = json.Unmarshal(aux.Detail, &d)
		c.Detail = d
	case StrategyTechnical:
		var d TechnicalDetail
		err = json.Unmarshal(aux.Detail, &d)
		c.Detail = d
	case StrategyFingerprint:
		var d FingerprintDetail
		err = json.Unmarshal(aux.Detail, &d)
		c.Detail = d
	}
	if err != nil {
		return fmt.Errorf("invalid %s detail: %w", aux.Strategy, err)
	}
	return nil
}
