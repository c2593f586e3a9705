package tui

import (
	"strings"
	"testing"

	"github.com/tinytelemetry/hookwatch/internal/model"
)

func TestRenderEvents_HeadingAndItemsInOrder(t *testing.T) {
	out := RenderEvents([]string{"first", "second", "third"}, 0)

	if !strings.HasPrefix(stripANSI(out), model.FeedHeading) {
		t.Fatalf("output does not start with heading:\n%s", out)
	}
	plain := stripANSI(out)
	i1 := strings.Index(plain, "• first")
	i2 := strings.Index(plain, "• second")
	i3 := strings.Index(plain, "• third")
	if i1 < 0 || i2 < 0 || i3 < 0 {
		t.Fatalf("missing items:\n%s", plain)
	}
	if !(i1 < i2 && i2 < i3) {
		t.Errorf("items out of order:\n%s", plain)
	}
}

func TestRenderEvents_EmptyListShowsOnlyHeading(t *testing.T) {
	plain := stripANSI(RenderEvents(nil, 80))
	if strings.TrimSpace(plain) != model.FeedHeading {
		t.Fatalf("output = %q, want heading only", plain)
	}
	if strings.Contains(plain, "•") {
		t.Errorf("empty list rendered an item: %q", plain)
	}
}

func TestRenderEvents_DuplicatesAndEmptyStringsAreItems(t *testing.T) {
	plain := stripANSI(RenderEvents([]string{"a", "a", ""}, 0))
	if got := strings.Count(plain, "•"); got != 3 {
		t.Fatalf("bullets = %d, want 3:\n%s", got, plain)
	}
}

func TestRenderEvents_TextIsNotInterpreted(t *testing.T) {
	raw := RenderEvents([]string{"<b>bold</b> **x**", "evil\x1b[2Jclear\x07"}, 0)
	plain := stripANSI(raw)
	if !strings.Contains(plain, "<b>bold</b> **x**") {
		t.Errorf("markup-like text altered:\n%s", plain)
	}
	if strings.Contains(raw, "\x1b[2J") || strings.Contains(raw, "\x07") {
		t.Errorf("control characters leaked into output: %q", raw)
	}
	if !strings.Contains(plain, "evil[2Jclear") {
		t.Errorf("visible text dropped: %q", plain)
	}
}

func TestRenderEvents_WrapsToWidth(t *testing.T) {
	long := strings.Repeat("word ", 30)
	plain := stripANSI(RenderEvents([]string{long}, 40))
	for _, line := range strings.Split(plain, "\n") {
		if len([]rune(line)) > 40 {
			t.Errorf("line wider than 40: %q", line)
		}
	}
}

// stripANSI removes SGR sequences so assertions hold on any color profile.
func stripANSI(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == 0x1b && i+1 < len(s) && s[i+1] == '[' {
			j := i + 2
			for j < len(s) && s[j] != 'm' {
				j++
			}
			i = j
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
