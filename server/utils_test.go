package main

import "testing"

func TestParseVersion(t *testing.T) {
	tests := []struct {
		vers string
		want int
	}{
		{"1.0", 0x010000},
		{"1.2.3", 0x010203},
		{"v1.2.3", 0x010203},
		{"1.2-rc3", 0x010200},
		{"garbage", 0},
		{"", 0},
	}
	for _, tc := range tests {
		if got := parseVersion(tc.vers); got != tc.want {
			t.Errorf("parseVersion(%q) = %#x, want %#x", tc.vers, got, tc.want)
		}
	}
}

func TestBase10Version(t *testing.T) {
	if got := base10Version(parseVersion("1.2.3")); got != 10203 {
		t.Errorf("base10Version(1.2.3) = %d, want 10203", got)
	}
	if got := base10Version(parseVersion(currentVersion)); got != 10000 {
		t.Errorf("base10Version(%s) = %d, want 10000", currentVersion, got)
	}
}
