// Package util contains helper functions used around the code.
package util

import "strings"

// In returns true if s is found in ss, false otherwise
func In(ss []string, s string) bool {
	for _, v := range ss {
		if s == v {
			return true
		}
	}

	return false
}

// OrDefault returns s trimmed of surrounding spaces, or def when nothing is left.
func OrDefault(s, def string) string {
	if s = strings.TrimSpace(s); s == "" {
		return def
	}

	return s
}
