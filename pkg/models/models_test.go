package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStub_EmptyGroups(t *testing.T) {
	stub := NewStub("Bloodborne", "https://example.com/bloodborne/", "", "2024-01-02")

	assert.False(t, stub.HasLinks())
	assert.Empty(t, stub.Screenshots)
	assert.Nil(t, stub.CUSA)

	data, err := json.Marshal(stub)
	require.NoError(t, err)
	raw := string(data)
	// Groups serialize as empty arrays, not null
	assert.Contains(t, raw, `"akira":[]`)
	assert.Contains(t, raw, `"other":[]`)
	assert.Contains(t, raw, `"screenshots":[]`)
	assert.Contains(t, raw, `"cusa":null`)
}

func TestLinkGroups_AddAndAll(t *testing.T) {
	var g LinkGroups
	g.Add(BucketOther, DownloadLink{Link: "o"})
	g.Add(BucketAkira, DownloadLink{Link: "a"})
	g.Add(BucketOneFichier, DownloadLink{Link: "f"})
	g.Add(BucketViking, DownloadLink{Link: "v"})

	assert.Equal(t, 4, g.Len())
	links := g.All()
	require.Len(t, links, 4)
	assert.Equal(t, []string{"a", "v", "f", "o"}, []string{links[0].Link, links[1].Link, links[2].Link, links[3].Link})
}

func TestEnrich(t *testing.T) {
	cusa := "CUSA00900"

	t.Run("overwrites fields and keeps cover/date when page lacks them", func(t *testing.T) {
		g := NewStub("Bloodborne", "https://example.com/bb/", "https://example.com/cover.jpg", "2024-01-02")
		g.Notes = "old notes"

		g.Enrich(&PageExtractionResult{
			Size:       "30 GB",
			CUSA:       &cusa,
			LinkGroups: LinkGroups{Akira: []DownloadLink{{Link: "https://akirabox.com/x", Type: LinkTypeGame}}},
		})

		assert.Equal(t, "https://example.com/cover.jpg", g.Cover)
		assert.Equal(t, "2024-01-02", g.Date)
		assert.Equal(t, "30 GB", g.Size)
		assert.Empty(t, g.Notes)
		require.NotNil(t, g.CUSA)
		assert.Equal(t, cusa, *g.CUSA)
		assert.True(t, g.HasLinks())
		assert.NotNil(t, g.Viking)
		assert.NotNil(t, g.Screenshots)
	})

	t.Run("re-enrichment overwrites prior values", func(t *testing.T) {
		g := NewStub("Bloodborne", "u", "c", "")
		g.Enrich(&PageExtractionResult{Cover: "c1", Date: "2023-05-05", Voice: "English"})
		g.Enrich(&PageExtractionResult{Cover: "c2", Voice: "Japanese"})

		assert.Equal(t, "c2", g.Cover)
		assert.Equal(t, "2023-05-05", g.Date)
		assert.Equal(t, "Japanese", g.Voice)
	})
}

func TestBackportFirmwares(t *testing.T) {
	g := NewStub("Game", "u", "", "")
	g.Akira = []DownloadLink{
		{Type: LinkTypeBackport, ExtractedFirmware: "9"},
		{Type: LinkTypeBackport, ExtractedFirmware: "6.72"},
		{Type: LinkTypeBackport, ExtractedVersion: "5.05"},
		{Type: LinkTypeBackport, ExtractedFirmware: "9.xx"},
		{Type: LinkTypeGame, ExtractedFirmware: "11"},
	}
	g.Other = []DownloadLink{
		{Type: LinkTypeBackport, ExtractedVersion: "25.00"},
		{Type: LinkTypeBackport},
	}

	assert.Equal(t, []int{5, 6, 9}, BackportFirmwares(g))
}

func TestSettingsNormalize(t *testing.T) {
	hosts := []string{"akira", "viking"}

	s := Settings{MaxListings: -3, CacheTTLDays: -1, Theme: "neon", DefaultSort: "size"}
	s.Normalize(hosts)

	assert.Equal(t, 0, s.MaxListings)
	assert.Equal(t, 0, s.CacheTTLDays)
	assert.Equal(t, ThemeDark, s.Theme)
	assert.Equal(t, SortByDate, s.DefaultSort)
	assert.Equal(t, hosts, s.HostDisplayOrder)

	kept := Settings{MaxListings: 5, Theme: ThemeLight, DefaultSort: SortByName, HostDisplayOrder: []string{"viking"}}
	kept.Normalize(hosts)
	assert.Equal(t, 5, kept.MaxListings)
	assert.Equal(t, ThemeLight, kept.Theme)
	assert.Equal(t, SortByName, kept.DefaultSort)
	assert.Equal(t, []string{"viking"}, kept.HostDisplayOrder)
}
