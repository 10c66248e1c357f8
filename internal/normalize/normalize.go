package normalize

import (
	"errors"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrMissingCategory is returned when a portfolio table carries no category column,
// which makes partitioning impossible.
var ErrMissingCategory = errors.New("portfolio rows have no category column")

type Partition string

const (
	PartitionActive   Partition = "active"
	PartitionClosed   Partition = "closed"
	PartitionActivity Partition = "activity"
)

// Row is one normalized portfolio snapshot row. Optional numeric fields are nil
// when the source cell was empty.
type Row struct {
	Category  string
	Partition Partition

	Asset   string
	Slug    string
	Title   string
	Outcome string
	Side    string
	URL     string

	Size         *float64
	AvgPrice     *float64
	Price        *float64
	CurPrice     *float64
	CurrentValue *float64
	CashPnl      *float64
	RealizedPnl  *float64
	UsdcSize     *float64

	// Timestamp is unix seconds; zero means absent.
	Timestamp int64
	TxHash    string
	Date      string
}

// Time returns the row's instant, preferring the unix timestamp over the date string.
func (r Row) Time() (time.Time, bool) {
	if r.Timestamp > 0 {
		return time.Unix(r.Timestamp, 0), true
	}
	return ParseDate(r.Date)
}

type Partitioned struct {
	Active   []Row
	Closed   []Row
	Activity []Row
}

func (p Partitioned) Len() int {
	return len(p.Active) + len(p.Closed) + len(p.Activity)
}

// ParseNumber cleans currency text into a float. Everything except digits, '.'
// and '-' is stripped; a value wrapped in parentheses is negative regardless of
// sign characters inside. Unparseable input yields 0.
func ParseNumber(raw string) float64 {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0
	}
	negative := strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")")
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}
	v, err := strconv.ParseFloat(b.String(), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	if negative {
		return -math.Abs(v)
	}
	return v
}

// ParseOptional is ParseNumber for cells that may be absent: an empty cell is nil.
func ParseOptional(raw string) *float64 {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	v := ParseNumber(raw)
	return &v
}

// PartitionOf classifies a category label by case-insensitive substring.
func PartitionOf(category string) (Partition, bool) {
	c := strings.ToLower(category)
	switch {
	case strings.Contains(c, "closed"):
		return PartitionClosed, true
	case strings.Contains(c, "activity"):
		return PartitionActivity, true
	case strings.Contains(c, "active"):
		return PartitionActive, true
	}
	return "", false
}

// Rows maps raw records (header -> cell) into partitions. Headers are matched
// through CanonicalField. Rows whose category matches no partition are dropped.
func Rows(records []map[string]string, logger *zap.Logger) (Partitioned, error) {
	var out Partitioned
	if len(records) == 0 {
		return out, nil
	}
	if !hasCategory(records[0]) {
		return out, ErrMissingCategory
	}
	dropped := 0
	for _, rec := range records {
		row := FromRecord(rec)
		part, ok := PartitionOf(row.Category)
		if !ok {
			dropped++
			continue
		}
		row.Partition = part
		switch part {
		case PartitionActive:
			out.Active = append(out.Active, row)
		case PartitionClosed:
			out.Closed = append(out.Closed, row)
		case PartitionActivity:
			out.Activity = append(out.Activity, row)
		}
	}
	if dropped > 0 && logger != nil {
		logger.Debug("portfolio rows without known category dropped", zap.Int("count", dropped))
	}
	return out, nil
}

// FromRecord builds a Row from one record without partitioning it. When
// several headers name the same field, the best-ranked non-empty cell wins;
// headers folding to the same alias are taken in sorted order.
func FromRecord(rec map[string]string) Row {
	headers := make([]string, 0, len(rec))
	for k := range rec {
		headers = append(headers, k)
	}
	sort.Strings(headers)

	fields := make(map[string]string, len(rec))
	ranks := make(map[string]int, len(rec))
	for _, k := range headers {
		name, rank, ok := aliasRank(k)
		if !ok {
			continue
		}
		v := rec[k]
		if strings.TrimSpace(v) == "" {
			continue
		}
		if best, seen := ranks[name]; seen && best <= rank {
			continue
		}
		fields[name], ranks[name] = v, rank
	}
	text := func(name string) string { return strings.TrimSpace(fields[name]) }
	return Row{
		Category:     text(FieldCategory),
		Asset:        text(FieldAsset),
		Slug:         text(FieldSlug),
		Title:        text(FieldTitle),
		Outcome:      text(FieldOutcome),
		Side:         strings.ToUpper(text(FieldSide)),
		URL:          text(FieldURL),
		Size:         ParseOptional(fields[FieldSize]),
		AvgPrice:     ParseOptional(fields[FieldAvgPrice]),
		Price:        ParseOptional(fields[FieldPrice]),
		CurPrice:     ParseOptional(fields[FieldCurPrice]),
		CurrentValue: ParseOptional(fields[FieldCurrentValue]),
		CashPnl:      ParseOptional(fields[FieldCashPnl]),
		RealizedPnl:  ParseOptional(fields[FieldRealizedPnl]),
		UsdcSize:     ParseOptional(fields[FieldUsdcSize]),
		Timestamp:    parseUnix(fields[FieldTimestamp]),
		TxHash:       text(FieldTxHash),
		Date:         text(FieldDate),
	}
}

func hasCategory(rec map[string]string) bool {
	for k := range rec {
		if name, ok := CanonicalField(k); ok && name == FieldCategory {
			return true
		}
	}
	return false
}

// parseUnix accepts seconds or milliseconds.
func parseUnix(raw string) int64 {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 {
		return 0
	}
	if v > 1e12 {
		v /= 1000
	}
	return int64(v)
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"01/02/2006 15:04:05",
	"01/02/2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

// ParseDate parses the date formats seen in portfolio exports and chat logs.
func ParseDate(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if ts, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
