package normalize

import "strings"

const (
	FieldCategory     = "category"
	FieldAsset        = "asset"
	FieldSlug         = "slug"
	FieldTitle        = "title"
	FieldOutcome      = "outcome"
	FieldSide         = "side"
	FieldURL          = "url"
	FieldTimestamp    = "timestamp"
	FieldPrice        = "price"
	FieldCurPrice     = "curPrice"
	FieldSize         = "size"
	FieldUsdcSize     = "usdcSize"
	FieldAvgPrice     = "avgPrice"
	FieldCurrentValue = "currentValue"
	FieldCashPnl      = "cashPnl"
	FieldRealizedPnl  = "realizedPnl"
	FieldTxHash       = "transactionHash"
	FieldDate         = "date"
)

// fieldAliases lists accepted headers per canonical field, folded (lowercase,
// no spaces/underscores/hyphens), best first. When a record carries several
// headers for one field, the earliest non-empty one wins.
var fieldAliases = map[string][]string{
	FieldCategory:     {"category", "section"},
	FieldAsset:        {"asset", "assetid", "tokenid"},
	FieldSlug:         {"slug", "marketslug"},
	FieldTitle:        {"title", "markettitle", "market", "question"},
	FieldOutcome:      {"outcome"},
	FieldSide:         {"side", "tradeside"},
	FieldURL:          {"url", "marketurl", "link"},
	FieldTimestamp:    {"timestamp", "time", "ts"},
	FieldPrice:        {"price"},
	FieldCurPrice:     {"curprice", "currentprice"},
	FieldSize:         {"size", "shares"},
	FieldUsdcSize:     {"usdcsize", "usdc"},
	FieldAvgPrice:     {"avgprice", "averageprice"},
	FieldCurrentValue: {"currentvalue", "value"},
	FieldCashPnl:      {"cashpnl"},
	FieldRealizedPnl:  {"realizedpnl"},
	FieldTxHash:       {"transactionhash", "txhash", "hash"},
	FieldDate:         {"date", "enddate", "closeddate"},
}

type aliasEntry struct {
	field string
	rank  int
}

var aliases = buildAliases()

func buildAliases() map[string]aliasEntry {
	out := make(map[string]aliasEntry)
	for field, names := range fieldAliases {
		for rank, name := range names {
			out[name] = aliasEntry{field: field, rank: rank}
		}
	}
	return out
}

// CanonicalField maps a header to its canonical field name, ignoring case,
// spaces, underscores and hyphens.
func CanonicalField(header string) (string, bool) {
	e, ok := aliases[foldHeader(header)]
	return e.field, ok
}

// aliasRank orders headers of the same field; lower is preferred.
func aliasRank(header string) (field string, rank int, ok bool) {
	e, ok := aliases[foldHeader(header)]
	return e.field, e.rank, ok
}

func foldHeader(h string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(h)) {
		switch r {
		case ' ', '_', '-', '\t':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
