package models

// LinkType is the release type of a download link
type LinkType string

const (
	LinkTypeUnset    LinkType = ""
	LinkTypeGame     LinkType = "game"
	LinkTypeUpdate   LinkType = "update"
	LinkTypeFix      LinkType = "fix"
	LinkTypeDLC      LinkType = "dlc"
	LinkTypeMod      LinkType = "mod"
	LinkTypeBackport LinkType = "backport"
)

// String implements fmt.Stringer for logging
func (t LinkType) String() string {
	if t == "" {
		return "unset"
	}
	return string(t)
}

// IsValid returns true if the type is a known release type
func (t LinkType) IsValid() bool {
	switch t {
	case LinkTypeGame, LinkTypeUpdate, LinkTypeFix, LinkTypeDLC, LinkTypeMod, LinkTypeBackport:
		return true
	}
	return false
}

// HostBucket is one of the four link groups a host maps into
type HostBucket string

const (
	BucketAkira      HostBucket = "akira"
	BucketViking     HostBucket = "viking"
	BucketOneFichier HostBucket = "onefichier"
	BucketOther      HostBucket = "other"
)

// BucketForHost maps a provider id to its link group
func BucketForHost(hostID string) HostBucket {
	switch HostBucket(hostID) {
	case BucketAkira, BucketViking, BucketOneFichier:
		return HostBucket(hostID)
	}
	return BucketOther
}

// ErrorCategory buckets fetch failures for reporting
type ErrorCategory string

const (
	ErrorCategoryNone        ErrorCategory = ""             // Not an error (404 end-of-catalog)
	ErrorCategoryTimeout     ErrorCategory = "timeout"      // Aborted or timed out
	ErrorCategoryRateLimited ErrorCategory = "rate_limited" // HTTP 429
	ErrorCategoryServer      ErrorCategory = "server_error" // HTTP >= 500
	ErrorCategoryOther       ErrorCategory = "other"
)

// String implements fmt.Stringer for logging
func (c ErrorCategory) String() string {
	if c == "" {
		return "none"
	}
	return string(c)
}

// Theme is the display theme setting
type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

// IsValid returns true for a known theme
func (t Theme) IsValid() bool {
	return t == ThemeDark || t == ThemeLight
}

// SortOrder is the default listing sort setting
type SortOrder string

const (
	SortByDate SortOrder = "date"
	SortByName SortOrder = "name"
)

// IsValid returns true for a known sort order
func (s SortOrder) IsValid() bool {
	return s == SortByDate || s == SortByName
}
