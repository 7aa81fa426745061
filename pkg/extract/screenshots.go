package extract

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	bodyImageMinSize = 100
	pageImageMinSize = 200
)

var (
	resizeSuffixRe = regexp.MustCompile(`(?:-\d+x\d+)+(\.[A-Za-z0-9]+)$`)
	imageExtRe     = regexp.MustCompile(`(?i)\.(jpe?g|png|webp|gif|bmp)$`)
	rejectPathRe   = regexp.MustCompile(`(?i)(emoji|smilie|smiley|avatar|icon|logo|banner|pixel|tracking|tracker|gravatar|spacer|1x1|(^|[/_.\-])ads?([/_.\-]|$))`)
)

// NormalizeImgURL canonicalizes an image URL for comparison: https scheme,
// lowercase host, no query or fragment, no "-WxH" resize suffix. Idempotent.
func NormalizeImgURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return resizeSuffixRe.ReplaceAllString(raw, "$1")
	}
	u.Scheme = "https"
	u.Host = strings.ToLower(u.Host)
	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	u.RawFragment = ""
	u.User = nil
	u.Path = resizeSuffixRe.ReplaceAllString(u.Path, "$1")
	u.RawPath = ""
	return u.String()
}

// IsValidScreenshot rejects data URIs, SVGs and decoration such as emoji,
// avatars, icons, logos, ads, banners and tracking pixels.
func IsValidScreenshot(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(strings.ToLower(raw), "data:") {
		return false
	}
	path := raw
	if u, err := url.Parse(raw); err == nil {
		path = u.Path
	}
	if strings.HasSuffix(strings.ToLower(path), ".svg") {
		return false
	}
	return !rejectPathRe.MatchString(path)
}

// screenshotPicker accumulates unique screenshots up to a cap
type screenshotPicker struct {
	base   *url.URL
	cover  string // normalized
	seen   map[string]bool
	picked []string
	limit  int
}

func newScreenshotPicker(base *url.URL, cover string, limit int) *screenshotPicker {
	p := &screenshotPicker{base: base, seen: make(map[string]bool), limit: limit}
	if cover != "" {
		p.cover = NormalizeImgURL(resolveURL(base, cover))
	}
	return p
}

func (p *screenshotPicker) full() bool { return len(p.picked) >= p.limit }

func (p *screenshotPicker) offer(raw string) {
	if p.full() {
		return
	}
	abs := resolveURL(p.base, raw)
	if !IsValidScreenshot(abs) {
		return
	}
	norm := NormalizeImgURL(abs)
	if norm == p.cover || p.seen[norm] {
		return
	}
	p.seen[norm] = true
	p.picked = append(p.picked, abs)
}

// SelectScreenshots picks up to limit article images in three tiers: body images
// of at least 100px, bare image links in the body, then any page image of at
// least 200px. When nothing qualifies the cover stands in.
func SelectScreenshots(doc *goquery.Document, body *goquery.Selection, base *url.URL, cover string, limit int) []string {
	p := newScreenshotPicker(base, cover, limit)

	body.Find("img").EachWithBreak(func(_ int, img *goquery.Selection) bool {
		if sizeAtLeast(img, bodyImageMinSize, true) {
			p.offer(ImageSource(img))
		}
		return !p.full()
	})

	if !p.full() {
		body.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
			href := trimAttr(a, "href")
			if u, err := url.Parse(href); err == nil && imageExtRe.MatchString(u.Path) {
				p.offer(href)
			}
			return !p.full()
		})
	}

	if !p.full() {
		doc.Find("img").EachWithBreak(func(_ int, img *goquery.Selection) bool {
			if sizeAtLeast(img, pageImageMinSize, true) {
				p.offer(ImageSource(img))
			}
			return !p.full()
		})
	}

	if len(p.picked) == 0 && cover != "" {
		return []string{resolveURL(base, cover)}
	}
	if p.picked == nil {
		return []string{}
	}
	return p.picked
}

// ImageSource returns an img element's URL, preferring lazy-load attributes over a placeholder src.
func ImageSource(img *goquery.Selection) string {
	for _, name := range []string{"data-src", "data-lazy-src", "data-original", "src"} {
		if v := trimAttr(img, name); v != "" && !strings.HasPrefix(v, "data:") {
			return v
		}
	}
	return ""
}

// sizeAtLeast checks width/height attributes against minSize. Missing attributes
// pass unless required.
func sizeAtLeast(img *goquery.Selection, minSize int, required bool) bool {
	for _, name := range []string{"width", "height"} {
		raw, ok := img.Attr(name)
		if !ok {
			if required {
				return false
			}
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(raw), "px"))
		if err != nil {
			if required {
				return false
			}
			continue
		}
		if n < minSize {
			return false
		}
	}
	return true
}

func resolveURL(base *url.URL, raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || base == nil {
		return raw
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return base.ResolveReference(ref).String()
}
