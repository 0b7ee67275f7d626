package engine

import "testing"

func TestHasPathPrefixComponentBoundary(t *testing.T) {
	cases := []struct {
		path, prefix string
		want         bool
	}{
		{"a/b/c", "a/b", true},
		{"a/b", "a/b", true},
		{"a/bc", "a/b", false},
		{"a/b/c", "", true},
		{"a", "a/b", false},
	}
	for _, c := range cases {
		if got := hasPathPrefix(c.path, c.prefix); got != c.want {
			t.Errorf("hasPathPrefix(%q, %q) = %v, want %v", c.path, c.prefix, got, c.want)
		}
	}
}
