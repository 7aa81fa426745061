package site

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ps4dex/release-scraper/pkg/extract"
	"github.com/ps4dex/release-scraper/pkg/models"
	"github.com/ps4dex/release-scraper/pkg/utils"
)

// --- XML structs for RSS 2.0 feeds ---

type rssDocument struct {
	XMLName xml.Name   `xml:"rss"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Items []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string         `xml:"title"`
	Link        string         `xml:"link"`
	PubDate     string         `xml:"pubDate"`
	Description string         `xml:"description"`
	Encoded     string         `xml:"http://purl.org/rss/1.0/modules/content/ encoded"`
	Media       []rssMedia     `xml:"http://search.yahoo.com/mrss/ content"`
	Thumbnail   []rssMedia     `xml:"http://search.yahoo.com/mrss/ thumbnail"`
	Enclosures  []rssEnclosure `xml:"enclosure"`
}

type rssMedia struct {
	URL    string `xml:"url,attr"`
	Medium string `xml:"medium,attr"`
}

type rssEnclosure struct {
	URL  string `xml:"url,attr"`
	Type string `xml:"type,attr"`
}

// parseFeed maps item titles to their cover, date and URL. Items without a
// title are skipped and the first item per title wins.
func parseFeed(raw []byte) (map[string]models.FeedEntry, error) {
	var doc rssDocument
	dec := xml.NewDecoder(bytes.NewReader(raw))
	dec.Strict = false
	dec.Entity = xml.HTMLEntity
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: decode feed: %v", utils.ErrParsing, err)
	}

	entries := make(map[string]models.FeedEntry, len(doc.Channel.Items))
	for _, item := range doc.Channel.Items {
		title := strings.Join(strings.Fields(item.Title), " ")
		if title == "" {
			continue
		}
		if _, exists := entries[title]; exists {
			continue
		}
		entries[title] = models.FeedEntry{
			Cover: item.cover(),
			Date:  extract.ISODate(item.PubDate),
			URL:   strings.TrimSpace(item.Link),
		}
	}
	return entries, nil
}

// cover tries media elements, image enclosures, then the first <img> in the item HTML
func (it rssItem) cover() string {
	for _, m := range append(it.Media, it.Thumbnail...) {
		if m.URL != "" && (m.Medium == "" || m.Medium == "image") {
			return strings.TrimSpace(m.URL)
		}
	}
	for _, e := range it.Enclosures {
		if e.URL != "" && strings.HasPrefix(e.Type, "image/") {
			return strings.TrimSpace(e.URL)
		}
	}
	for _, fragment := range []string{it.Encoded, it.Description} {
		if fragment == "" {
			continue
		}
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
		if err != nil {
			continue
		}
		if src := extract.ImageSource(doc.Find("img").First()); src != "" {
			return src
		}
	}
	return ""
}
