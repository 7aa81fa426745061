package extract

import (
	"regexp"
	"strings"
	"time"
)

// descriptionJunk removes store boilerplate that adds nothing to a release summary
var descriptionJunk = []*regexp.Regexp{
	regexp.MustCompile(`(?i)this game includes optional in-game purchases.*?virtual in-game items\.?`),
	regexp.MustCompile(`(?im)this game includes optional in-game purchases.*$`),
	regexp.MustCompile(`(?i)in-game purchases of virtual currency.*?virtual in-game items\.?`),
	regexp.MustCompile(`(?i)this game includes.*?in-game purchases.*?\.?`),
	regexp.MustCompile(`(?i)requires a persistent internet connection.*?\.?`),
	regexp.MustCompile(`(?i)internet connection required.*?\.?`),
	regexp.MustCompile(`(?i)online features require.*?subscription\.?`),
	regexp.MustCompile(`(?i)ps plus.*?required.*?\.?`),
	regexp.MustCompile(`(?i)playstation plus.*?required.*?\.?`),
	regexp.MustCompile(`(?im)©\s*\d{4}.*$`),
	regexp.MustCompile(`(?i)all rights reserved\.?`),
	regexp.MustCompile(`(?i)password\s*:\s*\S+`),
	regexp.MustCompile(`(?i)dlpsgame\.com`),
}

var (
	repeatedQuotes = regexp.MustCompile(`["“”]{2,}`)
	whitespaceRun  = regexp.MustCompile(`\s{2,}`)
)

// CleanDescription strips boilerplate, collapses whitespace and trims edge punctuation.
// Cleaning an already clean description changes nothing.
func CleanDescription(s string) string {
	if s == "" {
		return ""
	}
	for _, re := range descriptionJunk {
		s = re.ReplaceAllString(s, "")
	}
	s = repeatedQuotes.ReplaceAllString(s, "")
	s = whitespaceRun.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	return strings.Trim(s, ",;. \t\n")
}

// FormatFirmware renders a normalized firmware for display: a bare major becomes "N.xx".
func FormatFirmware(fw string) string {
	if fw == "" {
		return ""
	}
	v := strings.TrimRight(strings.TrimSuffix(strings.TrimSuffix(fw, "x"), "x"), ".")
	if v == "" {
		return fw
	}
	for _, r := range v {
		if r < '0' || r > '9' {
			return fw
		}
	}
	return v + ".xx"
}

var isoPrefixRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)

// ISODate reduces a feed or page timestamp to YYYY-MM-DD, "" when unparseable.
func ISODate(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	for _, layout := range []string{time.RFC3339, time.RFC1123Z, time.RFC1123, "Mon, 2 Jan 2006 15:04:05 -0700", "January 2, 2006", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format("2006-01-02")
		}
	}
	if m := isoPrefixRe.FindString(raw); m != "" {
		return m
	}
	return ""
}
