package version

import "testing"

func TestFormatVersion(t *testing.T) {
	tests := []struct {
		build    string
		expected string
	}{
		{"", "0.1.0"},
		{"dev-1", "0.1.0-dev-1"},
		{"abc.def", "0.1.0"},
		{"a b", "0.1.0"},
	}
	for _, test := range tests {
		if got := formatVersion(test.build); got != test.expected {
			t.Errorf("formatVersion(%q): got %s, want %s", test.build, got, test.expected)
		}
	}
	if Version() != formatVersion(appBuild) {
		t.Errorf("Version() = %s, want %s", Version(), formatVersion(appBuild))
	}
}
