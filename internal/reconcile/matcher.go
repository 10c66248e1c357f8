package reconcile

import (
	"strings"

	"tradelens/internal/normalize"
)

// PositionMatcher selects the position row that belongs to a signal.
type PositionMatcher struct {
	// Asset is the asset id of the claimed execution; empty for inferred matches.
	Asset   string
	Slug    string
	Outcome string
	// TolerateMissingOutcome accepts position rows that carry no outcome.
	TolerateMissingOutcome bool
}

// Match reports whether row refers to the same market and outcome.
func (m PositionMatcher) Match(row normalize.Row) bool {
	if m.assetMatch(row) {
		return true
	}
	if !SlugsMatch(row.Slug, m.Slug) {
		return false
	}
	if strings.TrimSpace(row.Outcome) == "" {
		return m.TolerateMissingOutcome
	}
	return OutcomesConsistent(m.Outcome, row.Outcome)
}

// Find returns the index of the best row: an asset-id match wins over any
// slug match; otherwise the first slug match in list order. -1 when none.
func (m PositionMatcher) Find(rows []normalize.Row) int {
	if m.Asset != "" {
		for i, row := range rows {
			if m.assetMatch(row) {
				return i
			}
		}
	}
	for i, row := range rows {
		if m.Match(row) {
			return i
		}
	}
	return -1
}

func (m PositionMatcher) assetMatch(row normalize.Row) bool {
	asset := strings.TrimSpace(m.Asset)
	return asset != "" && strings.TrimSpace(row.Asset) == asset
}
