package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ps4dex/release-scraper/pkg/models"
)

func TestLinkLabel(t *testing.T) {
	cusa := "CUSA00900"
	tests := []struct {
		name  string
		link  models.DownloadLink
		cusa  *string
		title string
		want  string
	}{
		{
			name: "pack description wins",
			link: models.DownloadLink{PackDescription: "Update + DLC", ExtractedVersion: "1.05"},
			cusa: &cusa,
			want: "CUSA00900 · Update + DLC",
		},
		{
			name: "short pack description ignored",
			link: models.DownloadLink{PackDescription: "Fix", ExtractedVersion: "1.05"},
			cusa: &cusa,
			want: "CUSA00900 · v1.05",
		},
		{
			name:  "code from title, version from raw text",
			link:  models.DownloadLink{Version: "Update v1.09 Akira"},
			title: "Bloodborne CUSA00207",
			want:  "CUSA00207 · v1.09",
		},
		{
			name: "fix firmware",
			link: models.DownloadLink{Type: models.LinkTypeFix, ExtractedFirmware: "9"},
			want: "Fix 9.xx",
		},
		{
			name: "backport firmware",
			link: models.DownloadLink{Type: models.LinkTypeBackport, ExtractedVersion: "1.02", ExtractedFirmware: "6.72"},
			want: "v1.02 · FW 6.72",
		},
		{
			name: "nothing known",
			link: models.DownloadLink{Version: "Akira"},
			want: "Download",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LinkLabel(tt.link, tt.cusa, tt.title))
		})
	}
}

func TestBuildDetailView(t *testing.T) {
	g := *models.NewStub("Game", "https://x/game/", "", "")
	g.Akira = []models.DownloadLink{
		{Link: "https://akirabox.com/1", Host: "akira", Type: models.LinkTypeUpdate, ExtractedVersion: "1.05"},
		{Link: "https://akirabox.com/2", Host: "akira", Type: models.LinkTypeGame},
	}
	g.OneFichier = []models.DownloadLink{
		{Link: "https://1fichier.com/?a", Host: "onefichier", Type: models.LinkTypeGame},
		{Link: "https://1fichier.com/?b", Host: "onefichier", Type: models.LinkTypeBackport, ExtractedFirmware: "9"},
	}
	g.Other = []models.DownloadLink{
		{Link: "https://gofile.io/d/x", Host: "gofile", Type: models.LinkTypeGame},
		{Link: "https://rootz.so/y", Host: "rootz", Type: models.LinkTypeBackport, ExtractedFirmware: "6.72"},
	}

	view := BuildDetailView(g, true, []string{"onefichier", "akira", "gofile"})
	assert.True(t, view.Favorite)
	require.Len(t, view.Sections, 2)

	game := view.Sections[0]
	assert.Equal(t, models.LinkTypeGame, game.Type)
	hosts := make([]string, 0, len(game.Hosts))
	for _, h := range game.Hosts {
		hosts = append(hosts, h.Host)
	}
	assert.Equal(t, []string{"onefichier", "akira", "gofile"}, hosts)

	update := view.Sections[1]
	assert.Equal(t, models.LinkTypeUpdate, update.Type)
	require.Len(t, update.Hosts, 1)
	assert.Equal(t, "v1.05", update.Hosts[0].Links[0].Label)

	require.Len(t, view.Backports, 2)
	assert.Equal(t, 6, view.Backports[0].Firmware)
	assert.Equal(t, "https://rootz.so/y", view.Backports[0].Links[0].Link)
	assert.Equal(t, 9, view.Backports[1].Firmware)
}

func TestBuildDetailView_NoLinks(t *testing.T) {
	view := BuildDetailView(*models.NewStub("Stub", "https://x/", "", ""), false, nil)
	assert.NotNil(t, view.Sections)
	assert.Empty(t, view.Sections)
	assert.Empty(t, view.Backports)
}
