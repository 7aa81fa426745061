package site

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ps4dex/release-scraper/pkg/config"
	"github.com/ps4dex/release-scraper/pkg/utils"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func testClient(t *testing.T, baseURL string, robots bool) *Client {
	t.Helper()
	cfg := &config.AppConfig{
		StateDir:           t.TempDir(),
		MaxRequestsPerHost: 4,
		Site:               config.SiteConfig{BaseURL: baseURL, RespectRobots: robots},
	}
	_, err := cfg.Validate()
	require.NoError(t, err)
	return NewFromConfig(cfg, testLogger())
}

const listingHTML = `<html><body>
<article class="post">
  <a href="/bloodborne/"><img data-src="/up/bb.jpg" src="data:image/gif;base64,R0lG"></a>
  <h2 class="entry-title"><a href="/bloodborne/">Bloodborne   GOTY</a></h2>
  <time datetime="2024-03-05T10:00:00+00:00">March 5, 2024</time>
</article>
<article class="post">
  <h2 class="entry-title"><a href="https://site.example/red-dead/">Red Dead Redemption 2</a></h2>
  <time>January 2, 2023</time>
</article>
<article class="post"><p>Sponsored</p></article>
</body></html>`

func TestFetchListingPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/category/ps4/":
			_, _ = io.WriteString(w, listingHTML)
		case "/category/ps4/page/2/":
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()
	c := testClient(t, server.URL, false)
	ctx := context.Background()

	page, err := c.FetchListingPage(ctx, c.siteCfg.CategoryURL(1), time.Second)
	require.NoError(t, err)
	assert.False(t, page.EndOfList)
	require.Len(t, page.Games, 2)
	assert.Equal(t, "Bloodborne GOTY", page.Games[0].Title)
	assert.Equal(t, server.URL+"/bloodborne/", page.Games[0].URL)
	assert.Equal(t, server.URL+"/up/bb.jpg", page.Games[0].Cover)
	assert.Equal(t, "2024-03-05", page.Games[0].Date)
	assert.Equal(t, "https://site.example/red-dead/", page.Games[1].URL)
	assert.Equal(t, "2023-01-02", page.Games[1].Date)
	assert.Empty(t, page.Games[1].Cover)

	_, err = c.FetchListingPage(ctx, c.siteCfg.CategoryURL(2), time.Second)
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrServerHTTPError)

	page, err = c.FetchListingPage(ctx, c.siteCfg.CategoryURL(3), time.Second)
	require.NoError(t, err, "404 is success")
	assert.True(t, page.EndOfList)
	assert.Empty(t, page.Games)
}

func TestFetchListingPage_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()
	c := testClient(t, server.URL, false)

	_, err := c.FetchListingPage(context.Background(), server.URL+"/category/ps4/", 50*time.Millisecond)
	require.Error(t, err)
	assert.Equal(t, utils.CodeTimeout, utils.NewErrorRecord("u", err).Code)
}

const feedXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/" xmlns:media="http://search.yahoo.com/mrss/">
<channel>
<title>PS4</title>
<item>
  <title>Bloodborne GOTY</title>
  <link>https://site.example/bloodborne/</link>
  <pubDate>Tue, 05 Mar 2024 10:00:00 +0000</pubDate>
  <media:content url="https://cdn.example/bb.jpg" medium="image"/>
</item>
<item>
  <title>Ghost of Tsushima &#8211; Director&#8217;s Cut</title>
  <link>https://site.example/ghost/</link>
  <pubDate>Wed, 06 Mar 2024 08:00:00 +0000</pubDate>
  <content:encoded><![CDATA[<p><img src="https://cdn.example/ghost.jpg" /></p><p>Text</p>]]></content:encoded>
</item>
<item>
  <title>Enclosed</title>
  <link>https://site.example/enc/</link>
  <enclosure url="https://cdn.example/enc.png" type="image/png" length="1"/>
</item>
<item><title>   </title><link>https://site.example/none/</link></item>
</channel>
</rss>`

func TestFetchFeed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/category/ps4/feed/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = io.WriteString(w, feedXML)
	}))
	defer server.Close()
	c := testClient(t, server.URL, false)

	entries, err := c.FetchFeed(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 3)

	bb := entries["Bloodborne GOTY"]
	assert.Equal(t, "https://cdn.example/bb.jpg", bb.Cover)
	assert.Equal(t, "2024-03-05", bb.Date)
	assert.Equal(t, "https://site.example/bloodborne/", bb.URL)

	ghost := entries["Ghost of Tsushima – Director’s Cut"]
	assert.Equal(t, "https://cdn.example/ghost.jpg", ghost.Cover)
	assert.Equal(t, "2024-03-06", ghost.Date)

	assert.Equal(t, "https://cdn.example/enc.png", entries["Enclosed"].Cover)
	assert.Empty(t, entries["Enclosed"].Date)
}

func TestFetchFeed_Malformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "this is not xml")
	}))
	defer server.Close()
	c := testClient(t, server.URL, false)

	_, err := c.FetchFeed(context.Background())
	assert.ErrorIs(t, err, utils.ErrParsing)
}

func TestFetchDetail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `<html><body><h1 class="entry-title">Bloodborne CUSA00900</h1>
<div class="entry-content"><p>Game: CUSA00900 (v1.09)<br>
<a href="https://akirabox.com/g/file">Akira</a></p></div></body></html>`)
	}))
	defer server.Close()
	c := testClient(t, server.URL, false)

	res, err := c.FetchDetail(context.Background(), server.URL+"/bloodborne/", "Bloodborne")
	require.NoError(t, err)
	require.Len(t, res.Akira, 1)
	assert.Equal(t, "1.09", res.Akira[0].ExtractedVersion)
	require.NotNil(t, res.CUSA)
	assert.Equal(t, "CUSA00900", *res.CUSA)
}

func TestRobotsGate(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			_, _ = io.WriteString(w, "User-agent: *\nDisallow: /private/\n")
			return
		}
		hits.Add(1)
		_, _ = fmt.Fprint(w, "<html><body></body></html>")
	}))
	defer server.Close()
	c := testClient(t, server.URL, true)

	_, err := c.FetchDetail(context.Background(), server.URL+"/private/x/", "x")
	assert.ErrorIs(t, err, utils.ErrRobotsDisallowed)
	assert.Zero(t, hits.Load())

	_, err = c.FetchDetail(context.Background(), server.URL+"/public/", "y")
	assert.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestParseListing_CustomSelector(t *testing.T) {
	html := `<div class="card"><h3><a href="/a/">A</a></h3></div><div class="card"><a href="/b/" title="B title"><img src="/b.jpg"></a></div>`
	stubs, err := parseListing([]byte(html), "https://site.example/category/ps4/", "div.card")
	require.NoError(t, err)
	require.Len(t, stubs, 2)
	assert.Equal(t, "A", stubs[0].Title)
	assert.Equal(t, "https://site.example/a/", stubs[0].URL)
	assert.Equal(t, "B title", stubs[1].Title)
	assert.Equal(t, "https://site.example/b.jpg", stubs[1].Cover)
	assert.True(t, strings.HasPrefix(stubs[1].URL, "https://site.example/b/"))
}
