// Package extract turns one release article into structured metadata and
// classified download links.
package extract

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"github.com/ps4dex/release-scraper/pkg/models"
	"github.com/ps4dex/release-scraper/pkg/utils"
)

const maxDescriptionLen = 1500

var (
	fieldLabelRe = regexp.MustCompile(`(?i)\b(voice|subtitles?|screen\s+languages?|size|notes?|firmware|password)\s*:`)
	guideHeadRe  = regexp.MustCompile(`(?i)\b(guide|how\s+to\s+install|installation)\b`)
)

// Extractor parses article pages. It holds no per-page state and is safe for concurrent use.
type Extractor struct {
	hosts            HostResolver
	hostTokens       []string
	contentSelectors []string
	screenshotCap    int
	log              *logrus.Entry
}

// NewExtractor creates an Extractor. hostTokens are stripped from pack labels.
func NewExtractor(hosts HostResolver, hostTokens, contentSelectors []string, screenshotCap int, log *logrus.Entry) *Extractor {
	if screenshotCap <= 0 {
		screenshotCap = 2
	}
	return &Extractor{
		hosts:            hosts,
		hostTokens:       hostTokens,
		contentSelectors: contentSelectors,
		screenshotCap:    screenshotCap,
		log:              log,
	}
}

// ExtractHTML parses raw page bytes fetched from pageURL.
func (e *Extractor) ExtractHTML(raw []byte, pageURL string) (*models.PageExtractionResult, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: parse article %s: %v", utils.ErrParsing, pageURL, err)
	}
	return e.Extract(doc, pageURL), nil
}

// Extract builds the enrichment record for one article. Missing pieces degrade to
// empty values; it never fails on content.
func (e *Extractor) Extract(doc *goquery.Document, pageURL string) *models.PageExtractionResult {
	pageLog := e.log.WithField("url", pageURL)
	base, _ := url.Parse(pageURL)

	body := e.findBody(doc)
	if body == nil {
		pageLog.Warnf("%v, falling back to <body>", utils.ErrContentSelector)
		body = doc.Find("body").First()
	}

	res := &models.PageExtractionResult{
		Title:       e.title(doc),
		Cover:       resolveURL(base, metaContent(doc, "og:image")),
		Date:        e.date(doc),
		Screenshots: []string{},
	}
	if res.Cover == "" {
		res.Cover = resolveURL(base, ImageSource(body.Find("img").First()))
	}

	var blocks []Block
	if body.Length() > 0 {
		blocks = Segment(body.Get(0), e.hosts)
	}
	bodyText := collapse(body.Text())
	hints := PageHints{
		Version:  VersionFromText(bodyText),
		Firmware: WorksOnFirmware(bodyText),
	}
	annotations := Annotate(blocks, e.hostTokens)
	res.LinkGroups = CollectLinks(body, e.hosts, annotations, hints)

	if code := FindCUSA(res.Title + " " + bodyText); code != "" {
		res.CUSA = &code
	}

	fields := labelledFields(blocks)
	res.Voice = fields["voice"]
	res.Subtitles = fields["subtitles"]
	res.ScreenLanguages = fields["screen languages"]
	res.Size = fields["size"]
	res.Notes = fields["notes"]
	res.Password = fields["password"]
	res.Firmware = fields["firmware"]
	if res.Firmware == "" && hints.Firmware != "" {
		res.Firmware = FormatFirmware(hints.Firmware)
	}

	res.Description = CleanDescription(e.description(doc, body))
	res.Guide = e.guide(body, pageLog)
	res.Screenshots = SelectScreenshots(doc, body, base, res.Cover, e.screenshotCap)

	pageLog.WithFields(logrus.Fields{
		"links":       res.LinkGroups.Len(),
		"screenshots": len(res.Screenshots),
	}).Debug("Article extracted")
	return res
}

func (e *Extractor) findBody(doc *goquery.Document) *goquery.Selection {
	for _, sel := range e.contentSelectors {
		if found := doc.Find(sel).First(); found.Length() > 0 {
			return found
		}
	}
	return nil
}

func (e *Extractor) title(doc *goquery.Document) string {
	if t := collapse(doc.Find("h1.entry-title").First().Text()); t != "" {
		return t
	}
	if t := metaContent(doc, "og:title"); t != "" {
		return t
	}
	if t := collapse(doc.Find("h1").First().Text()); t != "" {
		return t
	}
	return collapse(doc.Find("title").First().Text())
}

func (e *Extractor) date(doc *goquery.Document) string {
	if dt, ok := doc.Find("time[datetime]").First().Attr("datetime"); ok {
		if d := ISODate(dt); d != "" {
			return d
		}
	}
	return ISODate(metaContent(doc, "article:published_time"))
}

// description joins the article's prose paragraphs: no download links, no
// labelled fields and no section headings. Falls back to og:description.
func (e *Extractor) description(doc *goquery.Document, body *goquery.Selection) string {
	var parts []string
	total := 0
	body.Find("p").EachWithBreak(func(_ int, p *goquery.Selection) bool {
		text := collapse(p.Text())
		if len(text) < 40 || hasHostLink(p, e.hosts) || fieldLabelRe.MatchString(text) || isBareHeader(text) || isLabelledPackLine(text) {
			return true
		}
		parts = append(parts, text)
		total += len(text)
		return total < maxDescriptionLen
	})
	if len(parts) == 0 {
		return metaContent(doc, "og:description")
	}
	return strings.Join(parts, " ")
}

// guide converts the section under an install-guide heading to markdown.
func (e *Extractor) guide(body *goquery.Selection, log *logrus.Entry) string {
	var heading *goquery.Selection
	body.Find("h2, h3, h4, h5, strong, b").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := collapse(s.Text())
		if len(text) <= maxHeaderLen && guideHeadRe.MatchString(text) {
			heading = s
			return false
		}
		return true
	})
	if heading == nil {
		return ""
	}
	if !heading.Is("h2, h3, h4, h5") {
		if p := heading.Closest("p"); p.Length() > 0 {
			heading = p
		}
	}

	section := heading.NextUntil("h1, h2, h3, h4, h5, h6")
	if section.Length() == 0 {
		return ""
	}
	var buf strings.Builder
	section.Each(func(_ int, s *goquery.Selection) {
		if h, err := goquery.OuterHtml(s); err == nil {
			buf.WriteString(h)
		}
	})

	converter := md.NewConverter("", true, nil)
	markdown, err := converter.ConvertString(buf.String())
	if err != nil {
		log.Warnf("Guide markdown conversion failed: %v", err)
		return ""
	}
	return strings.TrimSpace(markdown)
}

// labelledFields collects "Label: value" pairs from text blocks. Several labels may
// share a line; each value runs to the next label. The first value per label wins.
func labelledFields(blocks []Block) map[string]string {
	fields := make(map[string]string)
	for _, b := range blocks {
		if b.Kind != BlockText {
			continue
		}
		locs := fieldLabelRe.FindAllStringSubmatchIndex(b.Value, -1)
		for i, loc := range locs {
			end := len(b.Value)
			if i+1 < len(locs) {
				end = locs[i+1][0]
			}
			key := canonicalLabel(b.Value[loc[2]:loc[3]])
			value := strings.Trim(strings.TrimSpace(b.Value[loc[1]:end]), ",;|")
			if value != "" && fields[key] == "" {
				fields[key] = value
			}
		}
	}
	return fields
}

func canonicalLabel(label string) string {
	label = strings.ToLower(collapse(label))
	switch {
	case strings.HasPrefix(label, "subtitle"):
		return "subtitles"
	case strings.HasPrefix(label, "screen"):
		return "screen languages"
	case strings.HasPrefix(label, "note"):
		return "notes"
	}
	return label
}

func hasHostLink(s *goquery.Selection, hosts HostResolver) bool {
	found := false
	s.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		found = hosts.Identify(trimAttr(a, "href")) != ""
		return !found
	})
	return found
}

func metaContent(doc *goquery.Document, property string) string {
	sel := doc.Find(fmt.Sprintf(`meta[property=%q], meta[name=%q]`, property, property)).First()
	v, _ := sel.Attr("content")
	return strings.TrimSpace(v)
}
