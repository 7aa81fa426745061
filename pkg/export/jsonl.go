package export

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/ps4dex/release-scraper/pkg/models"
)

// WriteJSONL writes one listing per line and returns the number written
func WriteJSONL(w io.Writer, games []models.GameListing) (int, error) {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	for i := range games {
		if err := enc.Encode(&games[i]); err != nil {
			return i, fmt.Errorf("encode listing %q: %w", games[i].Title, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return len(games), err
	}
	return len(games), nil
}
