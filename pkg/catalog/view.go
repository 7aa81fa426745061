package catalog

import (
	"regexp"
	"sort"
	"strings"

	"github.com/ps4dex/release-scraper/pkg/extract"
	"github.com/ps4dex/release-scraper/pkg/models"
)

// typeDisplayOrder is the order link sections are shown in a detail view
var typeDisplayOrder = []models.LinkType{
	models.LinkTypeGame,
	models.LinkTypeUpdate,
	models.LinkTypeFix,
	models.LinkTypeDLC,
	models.LinkTypeMod,
}

var displayVersionRe = regexp.MustCompile(`(?i)v?(\d+\.\d+(?:\.\d+)?)`)

// LinkLabel builds the short caption shown for a download link, such as
// "CUSA01234 · v1.05" or "CUSA01234 · Fix 9.xx". cusa is the listing's code.
func LinkLabel(link models.DownloadLink, cusa *string, title string) string {
	code := ""
	if cusa != nil && *cusa != "" {
		code = *cusa
	} else if c := extract.FindCUSA(link.Version); c != "" {
		code = c
	} else {
		code = extract.FindCUSA(title)
	}

	var parts []string
	if code != "" {
		parts = append(parts, code)
	}
	if len(link.PackDescription) > 3 {
		parts = append(parts, link.PackDescription)
		return strings.Join(parts, " · ")
	}

	switch {
	case link.ExtractedVersion != "":
		parts = append(parts, "v"+link.ExtractedVersion)
	default:
		if m := displayVersionRe.FindStringSubmatch(link.Version); m != nil {
			parts = append(parts, "v"+m[1])
		}
	}
	if link.ExtractedFirmware != "" {
		prefix := "FW "
		if link.Type == models.LinkTypeFix {
			prefix = "Fix "
		}
		parts = append(parts, prefix+extract.FormatFirmware(link.ExtractedFirmware))
	}
	if len(parts) == 0 {
		return "Download"
	}
	return strings.Join(parts, " · ")
}

// LinkView is one download link as displayed
type LinkView struct {
	Host  string `json:"host"`
	Link  string `json:"link"`
	Label string `json:"label"`
}

// TypeSection groups the links of one release type by host
type TypeSection struct {
	Type  models.LinkType `json:"type"`
	Hosts []HostSection   `json:"hosts"`
}

// HostSection is one host's links inside a TypeSection
type HostSection struct {
	Host  string     `json:"host"`
	Links []LinkView `json:"links"`
}

// BackportSection is the backport links for one firmware major
type BackportSection struct {
	Firmware int        `json:"firmware"`
	Links    []LinkView `json:"links"`
}

// DetailView is a listing with its links arranged for display
type DetailView struct {
	Listing   models.GameListing `json:"listing"`
	Favorite  bool               `json:"favorite"`
	Sections  []TypeSection      `json:"sections"`
	Backports []BackportSection  `json:"backports"`
}

// BuildDetailView groups g's links by type (game, update, fix, dlc, mod) and
// then by host in hostOrder. Hosts missing from hostOrder come last by id.
// Backport links are grouped by firmware major, ascending.
func BuildDetailView(g models.GameListing, favorite bool, hostOrder []string) DetailView {
	view := DetailView{Listing: g, Favorite: favorite, Sections: []TypeSection{}, Backports: []BackportSection{}}
	rank := make(map[string]int, len(hostOrder))
	for i, h := range hostOrder {
		rank[h] = i
	}
	hostLess := func(a, b string) bool {
		ra, okA := rank[a]
		rb, okB := rank[b]
		switch {
		case okA && okB:
			return ra < rb
		case okA != okB:
			return okA
		}
		return a < b
	}

	all := g.All()
	for _, t := range typeDisplayOrder {
		byHost := make(map[string][]LinkView)
		for _, l := range all {
			if l.Type != t {
				continue
			}
			byHost[l.Host] = append(byHost[l.Host], LinkView{Host: l.Host, Link: l.Link, Label: LinkLabel(l, g.CUSA, g.Title)})
		}
		if len(byHost) == 0 {
			continue
		}
		hosts := make([]string, 0, len(byHost))
		for h := range byHost {
			hosts = append(hosts, h)
		}
		sort.Slice(hosts, func(i, j int) bool { return hostLess(hosts[i], hosts[j]) })
		section := TypeSection{Type: t}
		for _, h := range hosts {
			section.Hosts = append(section.Hosts, HostSection{Host: h, Links: byHost[h]})
		}
		view.Sections = append(view.Sections, section)
	}

	byMajor := make(map[int][]LinkView)
	for _, l := range all {
		if l.Type != models.LinkTypeBackport {
			continue
		}
		major, ok := models.BackportMajor(l)
		if !ok {
			continue
		}
		byMajor[major] = append(byMajor[major], LinkView{Host: l.Host, Link: l.Link, Label: LinkLabel(l, g.CUSA, g.Title)})
	}
	for _, fw := range models.BackportFirmwares(&g) {
		view.Backports = append(view.Backports, BackportSection{Firmware: fw, Links: byMajor[fw]})
	}
	return view
}
