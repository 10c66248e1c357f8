package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

var ErrEmptyPortfolio = errors.New("portfolio csv has no header row")

// ReadPortfolioCSV returns one map per record keyed by the raw header text.
// Header aliasing is left to normalize.Rows.
func ReadPortfolioCSV(r io.Reader) ([]map[string]string, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyPortfolio
	}
	if err != nil {
		return nil, fmt.Errorf("read portfolio header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	var out []map[string]string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read portfolio record %d: %w", len(out)+1, err)
		}
		row := make(map[string]string, len(header))
		for i, h := range header {
			row[h] = rec[i]
		}
		out = append(out, row)
	}
	return out, nil
}
