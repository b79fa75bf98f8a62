package track

import "testing"

func TestIdentity(t *testing.T) {
	tests := []struct {
		name  string
		track Track
		want  string
	}{
		{name: "id wins", track: Track{ID: "42", Path: "/music/a.mp3"}, want: "42"},
		{name: "path fallback", track: Track{Path: "/music/a.mp3"}, want: "/music/a.mp3"},
		{name: "neither", track: Track{}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.track.Identity(); got != tt.want {
				t.Errorf("Identity() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseListHashAliases(t *testing.T) {
	data := []byte(`[
		{"id": "1", "content_hash": "aaa"},
		{"id": "2", "hash": "bbb"},
		{"id": "3", "file_hash": "ccc"},
		{"id": "4", "content_hash": "ddd", "hash": "ignored"},
		{"id": "5", "title": "No Hash", "year": 2011, "duration_ms": 210000}
	]`)

	tracks, err := ParseList(data)
	if err != nil {
		t.Fatalf("ParseList failed: %v", err)
	}

	want := []string{"aaa", "bbb", "ccc", "ddd", ""}
	for i, w := range want {
		if tracks[i].ContentHash != w {
			t.Errorf("track %d: content hash = %q, want %q", i, tracks[i].ContentHash, w)
		}
	}

	last := tracks[4]
	if last.Title != "No Hash" {
		t.Errorf("title = %q, want %q", last.Title, "No Hash")
	}
	if last.Year == nil || *last.Year != 2011 {
		t.Errorf("year = %v, want 2011", last.Year)
	}
	if last.DurationMs == nil || *last.DurationMs != 210000 {
		t.Errorf("duration = %v, want 210000", last.DurationMs)
	}
	if last.SizeBytes != nil {
		t.Errorf("size should be nil when absent, got %d", *last.SizeBytes)
	}
}

func TestParseListInvalid(t *testing.T) {
	if _, err := ParseList([]byte(`{"id": "not an array"}`)); err == nil {
		t.Error("expected error for non-array input")
	}
	if _, err := ParseList([]byte(`[{"id": "1", "year": "twenty"}]`)); err == nil {
		t.Error("expected error for wrong field type")
	}
}
