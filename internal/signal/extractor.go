package signal

import (
	"regexp"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"tradelens/internal/normalize"
)

var (
	tradePattern = regexp.MustCompile(`(?i)\b(buy|sell)\b\s*(?:["“”]([^"“”]*)["“”]|([a-z0-9][a-z0-9 .\-]*?))?\s*(?:for\s+|at\s+|@\s*)?\$\s?([0-9][0-9,]*(?:\.[0-9]+)?)`)
	quotedAfter  = regexp.MustCompile(`(?i)\b(?:buy|sell)\b[^\n]*?["“]([^"”]+)["”]`)
	outcomeKey   = regexp.MustCompile(`(?i)\boutcome\s*[:=]\s*([a-z0-9][a-z0-9 .\-]*)`)

	markdownLink = regexp.MustCompile(`\[([^\]]+)\]\((https?://[^\s)]+)\)`)
	bareURL      = regexp.MustCompile(`https?://[^\s)\]>"']+`)
	marketPath   = regexp.MustCompile(`(?i)/(?:market|event)/([^?#\s]+)`)

	traderMarker = regexp.MustCompile(`(?im)^[\s*_]*(?:👤\s*|(?:trader|copying|following)\s*[:\-]\s*)(.+?)\s*$`)
)

type Extractor struct {
	Logger *zap.Logger
}

// ExtractAll walks entries in log order and numbers the resulting events.
func (e *Extractor) ExtractAll(entries []ChatEntry) []Event {
	var out []Event
	for _, entry := range entries {
		for _, ev := range e.ExtractEntry(entry) {
			ev.Seq = len(out)
			out = append(out, ev)
		}
	}
	return out
}

// ExtractEntry returns one event per trade-intent line of the entry.
func (e *Extractor) ExtractEntry(entry ChatEntry) []Event {
	lines := splitLines(entry.Content)
	trader := ParseTrader(entry.Content)
	var out []Event
	for i, line := range lines {
		next := ""
		if i+1 < len(lines) {
			next = lines[i+1]
		}
		d, ok := e.ExtractLine(line, next)
		if !ok {
			continue
		}
		out = append(out, Event{
			Trader:    trader,
			Sender:    strings.TrimSpace(entry.Sender),
			Timestamp: entry.Date,
			Detail:    d,
		})
	}
	return out
}

// ExtractLine parses one line using the following line as lookahead for a
// failure notice. ok is false for lines that are not trade intents.
func (e *Extractor) ExtractLine(line, next string) (Detail, bool) {
	m := tradePattern.FindStringSubmatch(line)
	if m == nil {
		return Detail{}, false
	}
	d := Detail{
		Action:  ParseAction(m[1]),
		Outcome: cleanOutcome(firstNonEmpty(m[2], m[3])),
		Amount:  normalize.ParseNumber(m[4]),
	}
	if d.Outcome == "" {
		d.Outcome = looseOutcome(line)
	}
	d.MarketTitle, d.MarketURL, d.MarketSlug = resolveMarket(line)
	if d.MarketSlug == "" && d.MarketTitle == "" {
		if e != nil && e.Logger != nil {
			e.Logger.Debug("trade line without market reference dropped", zap.String("line", line))
		}
		return Detail{}, false
	}
	d.Status, d.FailureReason = lineStatus(line, next)
	return d, true
}

// ParseTrader finds the entry-level trader marker.
func ParseTrader(content string) string {
	m := traderMarker.FindStringSubmatch(content)
	if m == nil {
		return UnknownTrader
	}
	name := strings.Trim(m[1], " *_`|:-")
	if name == "" {
		return UnknownTrader
	}
	return name
}

// SlugFromURL returns the last path segment after /market/ or /event/,
// truncated at the first '?' or '#'.
func SlugFromURL(raw string) string {
	m := marketPath.FindStringSubmatch(raw)
	if m == nil {
		return ""
	}
	parts := strings.Split(m[1], "/")
	for i := len(parts) - 1; i >= 0; i-- {
		if seg := strings.TrimSpace(parts[i]); seg != "" {
			return seg
		}
	}
	return ""
}

// HumanizeSlug turns "team-a-wins" into "Team A Wins".
func HumanizeSlug(slug string) string {
	words := strings.Fields(strings.ReplaceAll(slug, "-", " "))
	// cases.Caser is not safe for concurrent use.
	return cases.Title(language.English).String(strings.Join(words, " "))
}

func resolveMarket(line string) (title, url, slug string) {
	for _, m := range markdownLink.FindAllStringSubmatch(line, -1) {
		if s := SlugFromURL(m[2]); s != "" {
			return strings.Trim(m[1], " *_`"), m[2], s
		}
	}
	for _, u := range bareURL.FindAllString(line, -1) {
		if s := SlugFromURL(u); s != "" {
			return HumanizeSlug(s), u, s
		}
	}
	return "", "", ""
}

func looseOutcome(line string) string {
	if m := quotedAfter.FindStringSubmatch(line); m != nil {
		if o := cleanOutcome(m[1]); o != "" {
			return o
		}
	}
	if m := outcomeKey.FindStringSubmatch(line); m != nil {
		return cleanOutcome(m[1])
	}
	return ""
}

func cleanOutcome(s string) string {
	return strings.Trim(strings.TrimSpace(s), ".-")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func splitLines(s string) []string {
	return strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
}
