package speech

import (
	"testing"
)

func applyFilter(t *testing.T, f Filter, text string) (string, int) {
	t.Helper()
	out, dropped := f.Apply([]rune(text))
	return string(out), dropped
}

func TestFilterDisabledPassesThrough(t *testing.T) {
	out, dropped := applyFilter(t, Filter{}, "see http://a.com #tag now")
	if out != "see http://a.com #tag now" || dropped != 0 {
		t.Errorf("Disabled filter altered text: %q (%d dropped)", out, dropped)
	}
}

func TestFilterWebLinks(t *testing.T) {
	f := Filter{WebLinks: true}

	tests := []struct {
		in   string
		want string
	}{
		// Surrounding whitespace stays put: deletion leaves a double space.
		{"see http://a.com now", "see  now"},
		{"see https://a.com/path?q=1 now", "see  now"},
		{"see www.example.com now", "see  now"},
		{"http://", "http://"},
		{"no links here", "no links here"},
	}

	for _, tt := range tests {
		if out, _ := applyFilter(t, f, tt.in); out != tt.want {
			t.Errorf("Apply(%q) = %q, want %q", tt.in, out, tt.want)
		}
	}
}

func TestFilterHashTokens(t *testing.T) {
	f := Filter{HashTokens: true}

	tests := []struct {
		in   string
		want string
	}{
		{"hello #world today", "hello  today"},
		// The hash rule starts at the first '#', keeping the word's prefix.
		{"deal#breaker here", "deal here"},
		{"## twice", " twice"},
		{"plain text", "plain text"},
	}

	for _, tt := range tests {
		if out, _ := applyFilter(t, f, tt.in); out != tt.want {
			t.Errorf("Apply(%q) = %q, want %q", tt.in, out, tt.want)
		}
	}
}

func TestFilterMailToLinks(t *testing.T) {
	f := Filter{MailToLinks: true}

	tests := []struct {
		in   string
		want string
	}{
		{"write mailto:bob@example.com today", "write  today"},
		{"write mailto:not-an-address today", "write mailto:not-an-address today"},
	}

	for _, tt := range tests {
		if out, _ := applyFilter(t, f, tt.in); out != tt.want {
			t.Errorf("Apply(%q) = %q, want %q", tt.in, out, tt.want)
		}
	}
}

func TestFilterCombinedRules(t *testing.T) {
	f := Filter{HashTokens: true, WebLinks: true, MailToLinks: true}

	in := "read http://a.com and #tag or mailto:a@b.c done"
	want := "read  and  or  done"
	out, dropped := applyFilter(t, f, in)
	if out != want {
		t.Errorf("Apply(%q) = %q, want %q", in, out, want)
	}
	if wantDropped := len(in) - len(want); dropped != wantDropped {
		t.Errorf("dropped = %d, want %d", dropped, wantDropped)
	}
}

func TestFilterCanEmptyChunk(t *testing.T) {
	f := Filter{WebLinks: true}
	out, dropped := applyFilter(t, f, "http://a.com")
	if out != "" || dropped != len("http://a.com") {
		t.Errorf("Apply = %q (%d dropped), want empty", out, dropped)
	}
}
