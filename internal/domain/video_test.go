package domain

import "testing"

func TestVideoValidate(t *testing.T) {
	cases := []struct {
		name  string
		video Video
		ok    bool
	}{
		{"upload with file", Video{SourceType: SourceUpload, FilePath: "a.mp4"}, true},
		{"remote with url", Video{SourceType: SourceYouTube, SourceURL: "https://example.com/v"}, true},
		{"both set", Video{SourceType: SourceUpload, FilePath: "a.mp4", SourceURL: "https://example.com/v"}, false},
		{"neither set", Video{SourceType: SourceUpload}, false},
	}
	for _, tc := range cases {
		err := tc.video.Validate()
		if tc.ok && err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}

func TestCategoryNameFallback(t *testing.T) {
	v := Video{}
	if got := v.CategoryName(); got != "general" {
		t.Fatalf("expected general fallback, got %q", got)
	}
	v.Category = &Category{Name: "cooking"}
	if got := v.CategoryName(); got != "cooking" {
		t.Fatalf("expected cooking, got %q", got)
	}
}

func TestIntervalValidate(t *testing.T) {
	good := VideoInterval{StartSecond: 0, EndSecond: 10}
	if err := good.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	inverted := VideoInterval{StartSecond: 10, EndSecond: 10}
	if err := inverted.Validate(); err == nil {
		t.Fatalf("expected error for zero-length interval")
	}
	negative := VideoInterval{StartSecond: -1, EndSecond: 10}
	if err := negative.Validate(); err == nil {
		t.Fatalf("expected error for negative start")
	}
}
