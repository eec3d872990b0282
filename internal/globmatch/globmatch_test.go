package globmatch

import "testing"

func TestMatch(t *testing.T) {
	cases := []struct {
		pattern, path string
		want          bool
	}{
		{".ssh/admin.pub", ".ssh/admin.pub", true},
		{".ssh/admin.pub", ".ssh/other.pub", false},
		{".ssh/*.pub", ".ssh/admin.pub", true},
		{".ssh/*.pub", ".ssh/sub/admin.pub", false},
		{"**/*.pub", ".ssh/sub/admin.pub", true},
		{"**", "anything/at/all", true},
		{"keys/**", "keys/a/b/c.pub", true},
		{"keys/**", "keys", false},
		{"keys/**/c.pub", "keys/a/b/c.pub", true},
		{"*", "single", true},
		{"*", "two/segments", false},
	}

	for _, c := range cases {
		if got := Match(c.pattern, c.path); got != c.want {
			t.Errorf("Match(%q, %q) = %v, want %v", c.pattern, c.path, got, c.want)
		}
	}
}

func TestMatchAny(t *testing.T) {
	patterns := []string{".ssh/admin.pub", "keys/**"}
	if !MatchAny(patterns, "keys/a.pub") {
		t.Error("expected match")
	}
	if MatchAny(patterns, "other/a.pub") {
		t.Error("expected no match")
	}
}
