package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/ps4dex/release-scraper/pkg/models"
)

var (
	urlVersionRe  = regexp.MustCompile(`(?i)(?:^|[^a-z0-9])v(\d{1,2})[._](\d{2,3})(?:[^0-9]|$)`)
	textVersionRe = regexp.MustCompile(`(?i)\b(?:v|ver\.?|version)\s*(\d{1,2})[._](\d{2,3}|xx?)\b`)
	bareVersionRe = regexp.MustCompile(`(?i)\b(\d{1,2})\.(\d{2,3}|xx?)\b`)
	unitSuffixRe  = regexp.MustCompile(`(?i)^\s*(?:gb|mb|kb|tb|%)`)

	firmwareRe    = regexp.MustCompile(`(?i)\b(?:firmware|fw)\s*[:\-]?\s*(\d{1,2})(?:[._](\d{2}|xx?))?`)
	worksOnRe     = regexp.MustCompile(`(?i)\bwork(?:s|ing)\s+on\s*:?\s*(?:fw|firmware)?\s*(\d{1,2})(?:[._](\d{2}|xx?))?`)
	urlFirmwareRe = regexp.MustCompile(`(?i)(?:firmware|fw)[._\-]?(\d{1,2})(?:[._](\d{2}|xx?))?`)

	typeKeywordRe = regexp.MustCompile(`(?i)\b(game|update|patch|fix|dlc|mods?)\b`)
	headerStartRe = regexp.MustCompile(`(?i)^\W*(game|update|patch|fix|dlc|mods?|backport)\b`)
	modMenuRe     = regexp.MustCompile(`(?i)\bmod\s*menu\b`)
	backportRe    = regexp.MustCompile(`(?i)\bback\s*-?ports?\b`)
	labelledRe    = regexp.MustCompile(`^[^:]{1,60}:\s*\S`)
	cusaRe        = regexp.MustCompile(`(?i)\bCUSA\s?\d{5}\b`)

	fwShapeRe  = regexp.MustCompile(`(?i)^\d{1,2}\.xx?$`)
	spacedDash = regexp.MustCompile(`\s+[-–—]+\s+`)
)

// VersionFromURL returns the dotted version encoded in a download URL
// ("…/V1_530/file" gives "1.53"), or "".
func VersionFromURL(href string) string {
	m := urlVersionRe.FindStringSubmatch(href)
	if m == nil {
		return ""
	}
	return normalizeVersion(m[1], m[2])
}

// VersionFromText returns the first version in s, ignoring firmware mentions.
// Prefixed forms ("v1.53", "Version 1.05") win over bare numbers; sizes like "45.20 GB" are skipped.
func VersionFromText(s string) string {
	s = firmwareRe.ReplaceAllString(s, " ")
	s = worksOnRe.ReplaceAllString(s, " ")
	if m := textVersionRe.FindStringSubmatch(s); m != nil {
		return normalizeVersion(m[1], m[2])
	}
	for _, loc := range bareVersionRe.FindAllStringSubmatchIndex(s, -1) {
		if unitSuffixRe.MatchString(s[loc[1]:]) {
			continue
		}
		return normalizeVersion(s[loc[2]:loc[3]], s[loc[4]:loc[5]])
	}
	return ""
}

// FirmwareFromText returns the normalized firmware of a "firmware/fw: N" mention in s, or "".
func FirmwareFromText(s string) string {
	return firmwareFrom(firmwareRe, s)
}

// WorksOnFirmware returns the firmware of a "Works on / Working on: N" phrase in s, or "".
func WorksOnFirmware(s string) string {
	return firmwareFrom(worksOnRe, s)
}

// FirmwareFromURL returns the firmware encoded in a URL ("…Backport_FW9.00…" gives "9"), or "".
func FirmwareFromURL(href string) string {
	return firmwareFrom(urlFirmwareRe, href)
}

func firmwareFrom(re *regexp.Regexp, s string) string {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	return normalizeFirmware(m[1], m[2])
}

// NormalizeFirmwareValue turns a version-shaped value into firmware form ("9.xx" and "9.00" give "9").
func NormalizeFirmwareValue(v string) string {
	v = strings.TrimSpace(v)
	major, minor, _ := strings.Cut(strings.ReplaceAll(v, "_", "."), ".")
	if _, err := strconv.Atoi(major); err != nil {
		return v
	}
	return normalizeFirmware(major, minor)
}

// DetectType returns the release type named in s, or LinkTypeUnset.
// Backport and "mod menu" take priority; otherwise the earliest keyword wins.
func DetectType(s string) models.LinkType {
	if backportRe.MatchString(s) {
		return models.LinkTypeBackport
	}
	if modMenuRe.MatchString(s) {
		return models.LinkTypeMod
	}
	m := typeKeywordRe.FindStringSubmatch(s)
	if m == nil {
		return models.LinkTypeUnset
	}
	return keywordType(m[1])
}

func keywordType(word string) models.LinkType {
	switch strings.ToLower(word) {
	case "game":
		return models.LinkTypeGame
	case "update", "patch":
		return models.LinkTypeUpdate
	case "fix":
		return models.LinkTypeFix
	case "dlc":
		return models.LinkTypeDLC
	case "backport":
		return models.LinkTypeBackport
	default:
		return models.LinkTypeMod
	}
}

// LooksLikeFirmware reports whether a resolved version is more plausibly a firmware baseline:
// "9.xx", a single digit, or a number below 10 not written with a leading zero.
func LooksLikeFirmware(v string) bool {
	v = strings.TrimSpace(v)
	if v == "" {
		return false
	}
	if fwShapeRe.MatchString(v) {
		return true
	}
	if len(v) == 1 && v[0] >= '0' && v[0] <= '9' {
		return true
	}
	if strings.HasPrefix(v, "0") {
		return false
	}
	f, err := strconv.ParseFloat(v, 64)
	return err == nil && f < 10
}

// HasCUSA reports whether s contains a product code
func HasCUSA(s string) bool {
	return cusaRe.MatchString(s)
}

// FindCUSA returns the first product code in s, upper-cased without spaces, or "".
func FindCUSA(s string) string {
	m := cusaRe.FindString(s)
	return strings.ToUpper(strings.ReplaceAll(m, " ", ""))
}

// CleanPackLabel reduces a pack description line to its label: text after a colon
// or a spaced dash is dropped, host-name tokens are removed, whitespace collapsed
// and edge punctuation trimmed.
func CleanPackLabel(s string, hostTokens []string) string {
	if i := strings.Index(s, ":"); i >= 0 {
		s = s[:i]
	}
	if loc := spacedDash.FindStringIndex(s); loc != nil {
		s = s[:loc[0]]
	}
	words := strings.Fields(s)
	kept := words[:0]
	for _, w := range words {
		if !isHostToken(w, hostTokens) {
			kept = append(kept, w)
		}
	}
	s = strings.Join(kept, " ")
	return strings.Trim(s, " \t-–—:|,.;/+()[]")
}

func isHostToken(word string, tokens []string) bool {
	bare := strings.ToLower(strings.Trim(word, "()[]{}.,;:!|/-–—"))
	if bare == "" {
		return false
	}
	for _, t := range tokens {
		if bare == t {
			return true
		}
	}
	return false
}

// normalizeVersion joins major and minor, dropping a trailing zero from a
// three-digit minor ("530" gives "53") and leading zeros from the major.
func normalizeVersion(major, minor string) string {
	major = trimLeadingZeros(major)
	if len(minor) == 3 && minor[2] == '0' {
		minor = minor[:2]
	}
	return major + "." + strings.ToLower(minor)
}

// normalizeFirmware keeps the major alone for ".00"/".xx" minors, otherwise the dotted value.
func normalizeFirmware(major, minor string) string {
	major = trimLeadingZeros(major)
	minor = strings.ToLower(minor)
	if minor == "" || minor == "00" || minor == "0" || strings.Trim(minor, "x") == "" {
		return major
	}
	return major + "." + minor
}

func trimLeadingZeros(s string) string {
	t := strings.TrimLeft(s, "0")
	if t == "" {
		return "0"
	}
	return t
}
