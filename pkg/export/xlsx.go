package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ps4dex/release-scraper/pkg/catalog"
	"github.com/ps4dex/release-scraper/pkg/models"
	"github.com/ps4dex/release-scraper/pkg/utils"
)

const linksSheet = "Links"

var (
	gamesHeader = []interface{}{"Title", "Date", "CUSA", "Firmware", "Size", "Voice", "Subtitles", "Favorite", "Links", "URL"}
	linksHeader = []interface{}{"Title", "Type", "Host", "Label", "Version", "Firmware", "Link"}
)

// WriteWorkbook writes a two-sheet workbook: one row per listing on "Games",
// one row per download link on "Links".
func WriteWorkbook(w io.Writer, games []models.GameListing, opts Options) error {
	gamesSheet := "Games"
	if opts.SheetName != "" {
		gamesSheet = utils.SanitizeSheetName(opts.SheetName)
	}
	if gamesSheet == linksSheet {
		gamesSheet = "Games"
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", gamesSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(linksSheet); err != nil {
		return fmt.Errorf("create sheet %s: %w", linksSheet, err)
	}
	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	linkRow := 2
	for i, g := range games {
		row := i + 2
		cusa := ""
		if g.CUSA != nil {
			cusa = *g.CUSA
		}
		fav := ""
		if opts.Favorites[g.Title] {
			fav = "yes"
		}
		values := []interface{}{g.Title, g.Date, cusa, g.Firmware, g.Size, g.Voice, g.Subtitles, fav, g.LinkGroups.Len(), g.URL}
		if err := setRow(f, gamesSheet, row, values); err != nil {
			return err
		}
		if g.URL != "" {
			if err := hyperlink(f, gamesSheet, len(values), row, g.URL); err != nil {
				return err
			}
		}

		for _, l := range g.All() {
			lv := []interface{}{
				g.Title, string(l.Type), opts.hostLabel(l.Host), catalog.LinkLabel(l, g.CUSA, g.Title),
				l.ExtractedVersion, l.ExtractedFirmware, l.Link,
			}
			if err := setRow(f, linksSheet, linkRow, lv); err != nil {
				return err
			}
			if err := hyperlink(f, linksSheet, len(lv), linkRow, l.Link); err != nil {
				return err
			}
			linkRow++
		}
	}

	for _, sheet := range []struct {
		name   string
		header []interface{}
		rows   int
	}{
		{gamesSheet, gamesHeader, len(games) + 1},
		{linksSheet, linksHeader, linkRow - 1},
	} {
		if err := formatSheet(f, sheet.name, sheet.header, sheet.rows, header); err != nil {
			return err
		}
	}
	f.SetActiveSheet(0)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func hyperlink(f *excelize.File, sheet string, col, row int, target string) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return f.SetCellHyperLink(sheet, cell, target, "External")
}

// formatSheet writes the bold header row, freezes it and adds an autofilter
func formatSheet(f *excelize.File, sheet string, header []interface{}, lastRow int, style int) error {
	if err := setRow(f, sheet, 1, header); err != nil {
		return err
	}
	lastCol, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", lastCol+"1", style); err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "A", "A", 40); err != nil {
		return err
	}
	if err := f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return err
	}
	if lastRow < 2 {
		return nil
	}
	ref := fmt.Sprintf("A1:%s%d", lastCol, lastRow)
	if err := f.AutoFilter(sheet, ref, nil); err != nil {
		return fmt.Errorf("autofilter %s: %w", strings.ToLower(sheet), err)
	}
	return nil
}
