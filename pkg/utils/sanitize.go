package utils

import (
	"regexp"
	"strings"
)

var (
	invalidFilenameChars   = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1F]`)
	invalidSheetChars      = regexp.MustCompile(`[\[\]:*?/\\]`)
	consecutiveUnderscores = regexp.MustCompile(`_+`)
)

const (
	maxFilenameLength  = 100
	maxSheetNameLength = 31 // xlsx limit
)

// SanitizeFilename cleans a string to be safe for use as a filename component
func SanitizeFilename(name string) string {
	return sanitize(name, invalidFilenameChars, maxFilenameLength, "untitled")
}

// SanitizeSheetName makes name usable as a workbook sheet title
func SanitizeSheetName(name string) string {
	return sanitize(name, invalidSheetChars, maxSheetNameLength, "Sheet1")
}

func sanitize(name string, invalid *regexp.Regexp, limit int, fallback string) string {
	sanitized := invalid.ReplaceAllString(name, "_")
	sanitized = consecutiveUnderscores.ReplaceAllString(sanitized, "_")
	sanitized = strings.Trim(sanitized, "_ ")

	// byte truncation; may split a rune, which the trim below tolerates
	if len(sanitized) > limit {
		sanitized = strings.Trim(sanitized[:limit], "_ ")
	}
	if sanitized == "" {
		return fallback
	}
	return sanitized
}
