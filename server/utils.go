// Generic data manipulation utilities.

package main

import (
	"strconv"
	"strings"
)

// parseVersion parses a semantic version string in the format
// 1.2, 1.2.3 or 1.2-rc3 into a packed int 0x010203.
func parseVersion(vers string) int {
	var major, minor, patch int

	// Maybe remove the optional "v" prefix.
	vers = strings.TrimPrefix(vers, "v")

	// We can handle 3 parts only.
	parts := strings.SplitN(vers, ".", 3)
	count := len(parts)
	if count > 0 {
		major = parseVersionPart(parts[0])
		if count > 1 {
			minor = parseVersionPart(parts[1])
			if count > 2 {
				patch = parseVersionPart(parts[2])
			}
		}
	}

	return (major << 16) | (minor << 8) | patch
}

// parseVersionPart parses one component of a version string, ignoring a
// trailing pre-release tag like "-rc1".
func parseVersionPart(vers string) int {
	end := strings.IndexFunc(vers, func(r rune) bool {
		return r < '0' || r > '9'
	})

	t := 0
	var err error
	if end > 0 {
		t, err = strconv.Atoi(vers[:end])
	} else if len(vers) > 0 {
		t, err = strconv.Atoi(vers)
	}
	if err != nil || t > 0x1fff || t <= 0 {
		return 0
	}
	return t
}

// base10Version converts a packed version to a readable base-10 number,
// e.g. 1.2.3 becomes 10203.
func base10Version(vers int) int64 {
	major := vers >> 16 & 0xff
	minor := vers >> 8 & 0xff
	trailer := vers & 0xff
	return int64(major*10000 + minor*100 + trailer)
}
