package site

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ps4dex/release-scraper/pkg/extract"
	"github.com/ps4dex/release-scraper/pkg/models"
	"github.com/ps4dex/release-scraper/pkg/utils"
)

const titleLinkSelector = ".entry-title a[href], h2 a[href], h3 a[href]"

// parseListing extracts the article cards of one catalog page in document order.
// Cards without a title link are skipped.
func parseListing(raw []byte, pageURL, itemSelector string) ([]models.ListingStub, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: parse listing %s: %v", utils.ErrParsing, pageURL, err)
	}
	base, _ := url.Parse(pageURL)

	var stubs []models.ListingStub
	doc.Find(itemSelector).Each(func(_ int, card *goquery.Selection) {
		link := card.Find(titleLinkSelector).First()
		if link.Length() == 0 {
			link = card.Find("a[href][title]").First()
		}
		title := strings.Join(strings.Fields(link.Text()), " ")
		if title == "" {
			title = strings.TrimSpace(link.AttrOr("title", ""))
		}
		if title == "" {
			return
		}

		stubs = append(stubs, models.ListingStub{
			Title: title,
			URL:   resolve(base, link.AttrOr("href", "")),
			Date:  cardDate(card),
			Cover: resolve(base, extract.ImageSource(card.Find("img").First())),
		})
	})
	return stubs, nil
}

func cardDate(card *goquery.Selection) string {
	t := card.Find("time").First()
	if dt, ok := t.Attr("datetime"); ok {
		if d := extract.ISODate(dt); d != "" {
			return d
		}
	}
	return extract.ISODate(t.Text())
}

func resolve(base *url.URL, raw string) string {
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
