package assembly

import (
	"strings"
	"testing"

	"github.com/sceneforge/core/internal/domain"
)

// TestBuildMixFilter_Normalize0 covers the fix requiring the primary
// track stay bit-identical: the final amix stage must disable its
// default loudness normalization.
func TestBuildMixFilter_Normalize0(t *testing.T) {
	filter := buildMixFilter(0.3, 12.5)
	if !strings.Contains(filter, "normalize=0") {
		t.Errorf("filter = %q, want normalize=0 on the amix stage", filter)
	}
	if !strings.Contains(filter, "amix=inputs=2") {
		t.Errorf("filter = %q, want a 2-input amix stage", filter)
	}
}

func TestParseRational(t *testing.T) {
	cases := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"30/1", 30, false},
		{"24000/1001", 23.976023976023978, false},
		{"25", 25, false},
		{"1/0", 0, true},
		{"x/1", 0, true},
	}
	for _, c := range cases {
		got, err := parseRational(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("parseRational(%q): expected error, got %v", c.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseRational(%q): unexpected error %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("parseRational(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestTruncateOutput(t *testing.T) {
	small := []byte("short output")
	if got := truncateOutput(small); got != string(small) {
		t.Errorf("truncateOutput(short) = %q, want unchanged", got)
	}

	big := make([]byte, maxStderrBytes+100)
	for i := range big {
		big[i] = 'a'
	}
	got := truncateOutput(big)
	if len(got) != maxStderrBytes {
		t.Errorf("truncateOutput(big) length = %d, want %d", len(got), maxStderrBytes)
	}
}

func TestEscapeDrawtext(t *testing.T) {
	in := "it's 100% fine: really\nnew line"
	got := escapeDrawtext(in)
	for _, want := range []string{`\'`, `\%`, `\:`, `\n`} {
		if !strings.Contains(got, want) {
			t.Errorf("escapeDrawtext(%q) = %q, want to contain %q", in, got, want)
		}
	}
}

// TestShouldMixBGM covers the defect where a zero BGM volume still ran
// the amix filter rather than skipping step 6 entirely.
func TestShouldMixBGM(t *testing.T) {
	cases := []struct {
		name   string
		ref    string
		volume float64
		want   bool
	}{
		{"no ref", "", 0.5, false},
		{"zero volume", "blob://bgm", 0, false},
		{"negative volume", "blob://bgm", -1, false},
		{"ref and positive volume", "blob://bgm", 0.2, true},
	}
	for _, c := range cases {
		if got := shouldMixBGM(c.ref, c.volume); got != c.want {
			t.Errorf("%s: shouldMixBGM(%q, %v) = %v, want %v", c.name, c.ref, c.volume, got, c.want)
		}
	}
}

func TestClampBGMVolume(t *testing.T) {
	if got := clampBGMVolume(0.3); got != 0.3 {
		t.Errorf("clampBGMVolume(0.3) = %v, want 0.3 (under the cap)", got)
	}
	if got := clampBGMVolume(2.0); got != domain.MaxBGMVolume {
		t.Errorf("clampBGMVolume(2.0) = %v, want %v", got, domain.MaxBGMVolume)
	}
}

func TestParseResolution(t *testing.T) {
	w, h, err := parseResolution("")
	if err != nil || w != 1920 || h != 1080 {
		t.Errorf("parseResolution(\"\") = (%d, %d, %v), want (1920, 1080, nil)", w, h, err)
	}

	w, h, err = parseResolution("1280x720")
	if err != nil || w != 1280 || h != 720 {
		t.Errorf("parseResolution(1280x720) = (%d, %d, %v), want (1280, 720, nil)", w, h, err)
	}

	if _, _, err := parseResolution("garbage"); err == nil {
		t.Error("parseResolution(garbage): expected error, got nil")
	}
}
