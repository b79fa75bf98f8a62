package track

import (
	"encoding/json"
	"fmt"
)

// Track contains the pre-extracted attributes of a single audio file.
// Optional attributes are pointers; nil means the value is unknown.
type Track struct {
	ID          string `json:"id,omitempty"`
	Path        string `json:"path,omitempty"`
	ContentHash string `json:"content_hash,omitempty"`
	Title       string `json:"title,omitempty"`
	Artist      string `json:"artist,omitempty"`
	Album       string `json:"album,omitempty"`
	Year        *int   `json:"year,omitempty"`
	DurationMs  *int64 `json:"duration_ms,omitempty"`
	SizeBytes   *int64 `json:"size_bytes,omitempty"`
	Bitrate     *int   `json:"bitrate,omitempty"`
	SampleRate  *int   `json:"sample_rate,omitempty"`
}

// Identity returns the key used to decide whether two tracks are the same
// record: the ID when set, otherwise the path.
func (t Track) Identity() string {
	if t.ID != "" {
		return t.ID
	}
	return t.Path
}

// UnmarshalJSON accepts "hash" and "file_hash" as aliases for content_hash.
func (t *Track) UnmarshalJSON(data []byte) error {
	type plain Track
	var aux struct {
		plain
		Hash     string `json:"hash"`
		FileHash string `json:"file_hash"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	*t = Track(aux.plain)
	if t.ContentHash == "" {
		t.ContentHash = aux.Hash
	}
	if t.ContentHash == "" {
		t.ContentHash = aux.FileHash
	}
	return nil
}

// ParseList decodes a JSON array of tracks.
func ParseList(data []byte) ([]Track, error) {
	var tracks []Track
	if err := json.Unmarshal(data, &tracks); err != nil {
		return nil, fmt.Errorf("failed to parse tracks: %w", err)
	}
	return tracks, nil
}

// Int returns a pointer to v, for building tracks in code.
func Int(v int) *int { return &v }

// Int64 returns a pointer to v.
func Int64(v int64) *int64 { return &v }
