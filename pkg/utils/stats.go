package utils

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ps4dex/release-scraper/pkg/models"
)

// maxErrorDetails caps how many records ErrorStats keeps verbatim
const maxErrorDetails = 50

// ErrorStats aggregates fetch failures by category. Safe for concurrent use.
type ErrorStats struct {
	mu           sync.Mutex
	Total        int
	Timeouts     int
	RateLimited  int
	ServerErrors int
	Other        int
	Details      []models.ErrorRecord
}

// Track classifies rec and records it. End-of-listing 404s are not counted.
func (s *ErrorStats) Track(rec models.ErrorRecord) models.ErrorCategory {
	category := ClassifyErrorRecord(rec)
	if category == models.ErrorCategoryNone {
		return category
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Total++
	switch category {
	case models.ErrorCategoryTimeout:
		s.Timeouts++
	case models.ErrorCategoryRateLimited:
		s.RateLimited++
	case models.ErrorCategoryServer:
		s.ServerErrors++
	default:
		s.Other++
	}
	if len(s.Details) < maxErrorDetails {
		s.Details = append(s.Details, rec)
	}
	return category
}

// Summary renders a one-line description, empty when nothing failed
func (s *ErrorStats) Summary() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Total == 0 {
		return ""
	}
	var parts []string
	if s.Timeouts > 0 {
		parts = append(parts, fmt.Sprintf("%d timeouts", s.Timeouts))
	}
	if s.RateLimited > 0 {
		parts = append(parts, fmt.Sprintf("%d rate-limited", s.RateLimited))
	}
	if s.ServerErrors > 0 {
		parts = append(parts, fmt.Sprintf("%d server errors", s.ServerErrors))
	}
	if s.Other > 0 {
		parts = append(parts, fmt.Sprintf("%d other", s.Other))
	}
	return fmt.Sprintf("%d failed (%s)", s.Total, strings.Join(parts, ", "))
}
