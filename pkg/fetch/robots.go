package fetch

import (
	"context"
	"net/url"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/temoto/robotstxt"
)

// RobotsHandler fetches, parses and caches robots.txt per host
type RobotsHandler struct {
	fetcher     *Fetcher
	userAgent   string
	robotsCache map[string]*robotstxt.RobotsData // hostname -> parsed data (nil on failure)
	robotsMu    sync.Mutex
	log         *logrus.Entry
}

// NewRobotsHandler creates a RobotsHandler
func NewRobotsHandler(fetcher *Fetcher, userAgent string, log *logrus.Entry) *RobotsHandler {
	return &RobotsHandler{
		fetcher:     fetcher,
		userAgent:   userAgent,
		robotsCache: make(map[string]*robotstxt.RobotsData),
		log:         log,
	}
}

// GetRobotsData returns the robots.txt rules for targetURL's host, fetching on first use.
// Returns nil when the file is missing or unreadable.
func (rh *RobotsHandler) GetRobotsData(ctx context.Context, targetURL *url.URL) *robotstxt.RobotsData {
	host := targetURL.Host
	rh.robotsMu.Lock()
	data, found := rh.robotsCache[host]
	rh.robotsMu.Unlock()
	if found {
		return data
	}

	scheme := targetURL.Scheme
	if scheme != "http" && scheme != "https" {
		scheme = "https"
	}
	robotsURL := (&url.URL{Scheme: scheme, Host: host, Path: "/robots.txt"}).String()
	robotsLog := rh.log.WithField("robots_url", robotsURL)

	body, err := rh.fetcher.Get(ctx, robotsURL, rh.userAgent)
	if err == nil {
		data, err = robotstxt.FromBytes(body)
	}
	if err != nil {
		robotsLog.Warnf("robots.txt unavailable, allowing all: %v", err)
		data = nil
	} else {
		robotsLog.Debug("Fetched and parsed robots.txt")
	}

	rh.robotsMu.Lock()
	rh.robotsCache[host] = data
	rh.robotsMu.Unlock()
	return data
}

// Allowed reports whether the configured agent may fetch targetURL.
// Missing or unparsable rules allow everything.
func (rh *RobotsHandler) Allowed(ctx context.Context, targetURL *url.URL) bool {
	data := rh.GetRobotsData(ctx, targetURL)
	if data == nil {
		return true
	}
	return data.TestAgent(targetURL.RequestURI(), rh.userAgent)
}
