package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ps4dex/release-scraper/pkg/models"
)

// maxDisplayContext bounds how much surrounding text is kept as a link's display text
const maxDisplayContext = 160

// contextSelector names the elements whose text counts as a link's surroundings
const contextSelector = "p, li, td, dd, h1, h2, h3, h4, h5, h6, div"

// PageHints are page-wide fallbacks for links that resolve nothing themselves
type PageHints struct {
	Version  string // First version-looking token in the article body
	Firmware string // From a "Works on: N" phrase
}

// LinkEvidence is everything known about one anchor when it is classified
type LinkEvidence struct {
	Href       string
	Host       string
	LinkText   string
	Context    string // Text of the enclosing paragraph-level element
	Annotation LinkAnnotation
}

// ClassifyLink turns one anchor's evidence into a finished DownloadLink.
// Direct evidence from the URL and link text outranks inherited section context.
func ClassifyLink(ev LinkEvidence, hints PageHints) models.DownloadLink {
	version := VersionFromURL(ev.Href)
	if version == "" {
		version = VersionFromText(ev.LinkText)
	}
	if version == "" {
		version = ev.Annotation.VersionHint
	}
	if version == "" {
		version = hints.Version
	}

	firmware := ev.Annotation.FirmwareHint
	if firmware == "" {
		firmware = FirmwareFromText(ev.Context)
	}
	if firmware == "" {
		firmware = FirmwareFromURL(ev.Href)
	}
	if firmware == "" {
		firmware = hints.Firmware
	}

	linkType := DetectType(ev.LinkText)
	if linkType == models.LinkTypeUnset {
		linkType = ev.Annotation.Type
	}
	if linkType == models.LinkTypeUnset {
		linkType = DetectType(ev.Context)
	}
	if linkType == models.LinkTypeUnset {
		linkType = models.LinkTypeGame
	}

	if linkType == models.LinkTypeFix {
		// A lone version on a fix link is usually the firmware it targets
		if version != "" && firmware == "" && LooksLikeFirmware(version) {
			firmware = NormalizeFirmwareValue(version)
		}
		if firmware != "" {
			version = ""
		}
	}

	display := ev.LinkText
	if ev.Context != "" && len(ev.Context) <= maxDisplayContext {
		display = ev.Context
	}

	return models.DownloadLink{
		Link:              ev.Href,
		Host:              ev.Host,
		Type:              linkType,
		Version:           display,
		ExtractedVersion:  version,
		ExtractedFirmware: firmware,
		PackDescription:   ev.Annotation.Description,
	}
}

// CollectLinks runs the full-document link pass over body: every anchor on a
// recognized host becomes one DownloadLink, bucketed by host group. Duplicate
// hrefs keep their first occurrence.
func CollectLinks(body *goquery.Selection, hosts HostResolver, annotations map[string]LinkAnnotation, hints PageHints) models.LinkGroups {
	groups := models.LinkGroups{
		Akira:      []models.DownloadLink{},
		Viking:     []models.DownloadLink{},
		OneFichier: []models.DownloadLink{},
		Other:      []models.DownloadLink{},
	}
	seen := make(map[string]bool)

	body.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href := trimAttr(a, "href")
		host := hosts.Identify(href)
		if host == "" || seen[href] {
			return
		}
		seen[href] = true

		ev := LinkEvidence{
			Href:       href,
			Host:       host,
			LinkText:   collapse(a.Text()),
			Context:    linkContext(a, body),
			Annotation: annotations[href],
		}
		groups.Add(models.BucketForHost(host), ClassifyLink(ev, hints))
	})
	return groups
}

// linkContext returns the text of the nearest paragraph-level ancestor inside body,
// or of the anchor's parent when that ancestor would be body itself.
func linkContext(a, body *goquery.Selection) string {
	enclosing := a.ParentsUntilSelection(body).Filter(contextSelector).First()
	if enclosing.Length() == 0 {
		enclosing = a.Parent()
		if enclosing.IsSelection(body) {
			return ""
		}
	}
	return collapse(enclosing.Text())
}

func trimAttr(s *goquery.Selection, name string) string {
	v, _ := s.Attr(name)
	return strings.TrimSpace(v)
}
