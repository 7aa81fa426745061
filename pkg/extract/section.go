package extract

import (
	"regexp"
	"strings"

	"github.com/ps4dex/release-scraper/pkg/models"
)

// LineKind is the role a text block plays in the running section context
type LineKind int

const (
	LinePlain LineKind = iota
	LineHeader
	LineTitle
	LinePack
)

func (k LineKind) String() string {
	switch k {
	case LineHeader:
		return "header"
	case LineTitle:
		return "title"
	case LinePack:
		return "pack"
	}
	return "plain"
}

var metadataLineRe = regexp.MustCompile(`(?i)^\W*(?:voice|subtitles?|screen\s+languages?|languages?|size|notes?|firmware|password|pass|genre|release\s+date|works?\s+on|working\s+on)\s*:`)

const (
	maxHeaderLen = 60  // bare section heading
	maxPackLen   = 120 // pack description or title line; longer text is prose
)

// lineRule is one step of the tagging chain; the first rule that matches decides.
type lineRule struct {
	kind  LineKind
	match func(string) bool
}

var lineRules = []lineRule{
	{LinePlain, isMetadataLine},
	{LineHeader, isBareHeader},
	{LinePack, isLabelledPackLine},
	{LineTitle, isTitleLine},
	{LinePack, isPackLine},
}

// ClassifyLine tags a text block for the section state machine.
func ClassifyLine(text string) LineKind {
	for _, r := range lineRules {
		if r.match(text) {
			return r.kind
		}
	}
	return LinePlain
}

// isBareHeader: starts with a release keyword (or names a mod menu), is short,
// and carries no "label: value" payload or product code.
func isBareHeader(s string) bool {
	if len(s) > maxHeaderLen || HasCUSA(s) || labelledRe.MatchString(s) {
		return false
	}
	return headerStartRe.MatchString(s) || modMenuRe.MatchString(s)
}

// isLabelledPackLine: "Keyword ...: payload"
func isLabelledPackLine(s string) bool {
	return len(s) <= maxPackLen && headerStartRe.MatchString(s) && labelledRe.MatchString(s)
}

func isTitleLine(s string) bool {
	return len(s) <= maxPackLen && HasCUSA(s)
}

// isPackLine: a short line naming a release type anywhere
func isPackLine(s string) bool {
	return len(s) <= maxPackLen && (typeKeywordRe.MatchString(s) || backportRe.MatchString(s))
}

// isMetadataLine: "Size: …", "Notes: …" and the like never carry pack context
func isMetadataLine(s string) bool {
	return metadataLineRe.MatchString(s)
}

// SectionContext is the running state while reading blocks in order
type SectionContext struct {
	SectionType     models.LinkType
	SectionFirmware string
	SectionVersion  string
	PackLabel       string
	PackType        models.LinkType
	PackVersion     string
}

func (c *SectionContext) clearPack() {
	c.PackLabel = ""
	c.PackType = models.LinkTypeUnset
	c.PackVersion = ""
}

// Apply updates the context from one tagged text block.
func (c *SectionContext) Apply(kind LineKind, text string, hostTokens []string) {
	switch kind {
	case LineHeader:
		c.SectionType = DetectType(text)
		c.SectionFirmware = FirmwareFromText(text)
		c.SectionVersion = VersionFromText(text)
		c.clearPack()
	case LineTitle:
		if t := DetectType(text); t != models.LinkTypeUnset {
			c.SectionType = t
		}
		if v := VersionFromText(text); v != "" {
			c.SectionVersion = v
		}
		c.clearPack()
	case LinePack:
		// "Fix: FW 9.00" opens a new section as well as labelling the pack
		if headerStartRe.MatchString(text) {
			c.SectionType = DetectType(text)
			c.SectionFirmware = FirmwareFromText(text)
			c.SectionVersion = VersionFromText(text)
		}
		c.PackLabel = CleanPackLabel(text, hostTokens)
		c.PackType = DetectType(text)
		c.PackVersion = VersionFromText(text)
	}
}

// LinkAnnotation is the context resolved for one link at its position in the document
type LinkAnnotation struct {
	Description  string
	Type         models.LinkType
	VersionHint  string // Used only when the URL carries no version
	FirmwareHint string
}

// annotate resolves the context that applies to a link right now.
func (c *SectionContext) annotate() LinkAnnotation {
	a := LinkAnnotation{
		Description:  c.PackLabel,
		Type:         c.PackType,
		VersionHint:  c.PackVersion,
		FirmwareHint: c.SectionFirmware,
	}
	if a.Type == models.LinkTypeUnset {
		a.Type = c.SectionType
	}
	if a.VersionHint == "" {
		a.VersionHint = c.SectionVersion
	}
	return a
}

// Annotate runs the section state machine over blocks and returns the annotation
// of every link keyed by href. The first occurrence of an href wins.
func Annotate(blocks []Block, hostTokens []string) map[string]LinkAnnotation {
	out := make(map[string]LinkAnnotation)
	var ctx SectionContext
	for _, b := range blocks {
		switch b.Kind {
		case BlockText:
			text := strings.TrimSpace(b.Value)
			ctx.Apply(ClassifyLine(text), text, hostTokens)
		case BlockLink:
			if _, seen := out[b.Href]; seen {
				continue
			}
			out[b.Href] = ctx.annotate()
		}
	}
	return out
}
