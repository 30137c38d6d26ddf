package fingerprint_test

import (
	"testing"

	"jellybridge/internal/fingerprint"
)

func TestCanonicalizeStripsDashes(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"dashed", "9f8e7d6c-5b4a-3928-1706-f5e4d3c2b1a0", "9f8e7d6c5b4a39281706f5e4d3c2b1a0"},
		{"undashed", "9f8e7d6c5b4a39281706f5e4d3c2b1a0", "9f8e7d6c5b4a39281706f5e4d3c2b1a0"},
		{"whitespace", " 9f8e7d6c-5b4a-3928-1706-f5e4d3c2b1a0 ", "9f8e7d6c5b4a39281706f5e4d3c2b1a0"},
		{"case preserved", "9F8E7D6C-5B4A-3928-1706-F5E4D3C2B1A0", "9F8E7D6C5B4A39281706F5E4D3C2B1A0"},
		{"empty", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := fingerprint.Canonicalize(tc.input); got != tc.want {
				t.Fatalf("Canonicalize(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestFormatRegroups(t *testing.T) {
	canonical := "9f8e7d6c5b4a39281706f5e4d3c2b1a0"
	want := "9f8e7d6c-5b4a-3928-1706-f5e4d3c2b1a0"
	if got := fingerprint.Format(canonical); got != want {
		t.Fatalf("Format(%q) = %q, want %q", canonical, got, want)
	}
}

func TestFormatRoundTrip(t *testing.T) {
	undashed := []string{
		"00000000000000000000000000000000",
		"9f8e7d6c5b4a39281706f5e4d3c2b1a0",
		"ABCDEF0123456789abcdef0123456789",
	}
	for _, f := range undashed {
		formatted := fingerprint.Format(f)
		if again := fingerprint.Format(fingerprint.Canonicalize(formatted)); again != formatted {
			t.Fatalf("round trip for %q: got %q, want %q", f, again, formatted)
		}
	}

	dashed := "abcdef01-2345-6789-abcd-ef0123456789"
	if got := fingerprint.Format(fingerprint.Canonicalize(dashed)); got != dashed {
		t.Fatalf("dashed round trip: got %q, want %q", got, dashed)
	}
}

func TestFormatLeavesMalformedInputAlone(t *testing.T) {
	for _, input := range []string{"", "abc123", "9f8e7d6c5b4a39281706f5e4d3c2b1a0ff"} {
		if got := fingerprint.Format(input); got != input {
			t.Fatalf("Format(%q) = %q, want input unchanged", input, got)
		}
	}
}

func TestValid(t *testing.T) {
	cases := []struct {
		input string
		want  bool
	}{
		{"9f8e7d6c5b4a39281706f5e4d3c2b1a0", true},
		{"9f8e7d6c-5b4a-3928-1706-f5e4d3c2b1a0", true},
		{"9F8E7D6C5B4A39281706F5E4D3C2B1A0", true},
		{"9f8e7d6c5b4a39281706f5e4d3c2b1", false},
		{"zf8e7d6c5b4a39281706f5e4d3c2b1a0", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := fingerprint.Valid(tc.input); got != tc.want {
			t.Fatalf("Valid(%q) = %v, want %v", tc.input, got, tc.want)
		}
	}
}
