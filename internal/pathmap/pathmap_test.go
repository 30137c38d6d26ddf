package pathmap_test

import (
	"testing"

	"jellybridge/internal/pathmap"
)

func TestTranslateFirstMatchWins(t *testing.T) {
	rules := pathmap.Rules{
		{SourcePrefix: `F:\Media\`, DestinationPrefix: "/media/"},
		{SourcePrefix: `F:\`, DestinationPrefix: "/mnt/f/"},
	}

	cases := []struct {
		name        string
		input       string
		want        string
		wantMatched bool
	}{
		{"specific prefix", `F:\Media\Show\ep1.mkv`, "/media/Show/ep1.mkv", true},
		{"broader prefix after miss", `F:\Backups\old.mkv`, "/mnt/f/Backups/old.mkv", true},
		{"no prefix matched", `D:\Other\video.mkv`, "D:/Other/video.mkv", false},
		{"already forward slashes", "/media/Show/ep1.mkv", "/media/Show/ep1.mkv", false},
		{"empty path", "", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, matched := rules.Translate(tc.input)
			if got != tc.want || matched != tc.wantMatched {
				t.Fatalf("Translate(%q) = (%q, %v), want (%q, %v)", tc.input, got, matched, tc.want, tc.wantMatched)
			}
		})
	}
}

func TestTranslateNoRules(t *testing.T) {
	var rules pathmap.Rules
	got, matched := rules.Translate(`F:\Media\Show\ep1.mkv`)
	if matched {
		t.Fatal("expected no match with empty rule set")
	}
	if got != "F:/Media/Show/ep1.mkv" {
		t.Fatalf("expected separator-only normalization, got %q", got)
	}
}

func TestTranslateIgnoresEmptyPrefixes(t *testing.T) {
	rules := pathmap.Rules{
		{SourcePrefix: "", DestinationPrefix: "/never/"},
		{SourcePrefix: `F:\Media\`, DestinationPrefix: "/media/"},
	}
	got, matched := rules.Translate(`F:\Media\a.mkv`)
	if !matched || got != "/media/a.mkv" {
		t.Fatalf("Translate = (%q, %v), want (/media/a.mkv, true)", got, matched)
	}
}
