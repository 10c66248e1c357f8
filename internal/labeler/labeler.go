package labeler

import (
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"
)

const (
	CategorySports = "Sports"
	CategoryOther  = "Other"
)

// Categorizer tags a market by title and slug. Any matching rule yields its
// label; with no match the market falls into CategoryOther.
type Categorizer struct {
	Rules  []LabelRule
	Logger *zap.Logger

	once sync.Once
}

type LabelRule struct {
	Label string
	// Keywords are case-insensitive substrings of the title or the slug.
	Keywords   []string
	TitleRegex []string
	SlugRegex  []string

	compiledTitle []*regexp.Regexp
	compiledSlug  []*regexp.Regexp
}

func DefaultRules() []LabelRule {
	return []LabelRule{
		{
			Label: CategorySports,
			Keywords: []string{
				"nba", "nfl", "mlb", "nhl", "wnba", "mls", "ncaa", "ufc", "mma", "pga", "atp", "wta", "f1",
				"premier league", "la liga", "serie a", "bundesliga", "ligue 1", "champions league",
				"europa league", "world cup", "super bowl", "stanley cup", "world series", "grand slam",
				"wimbledon", "us open", "french open", "australian open", "olympics", "grand prix",
				"football", "soccer", "basketball", "baseball", "hockey", "tennis", "boxing", "cricket",
				"golf", "rugby", "esports",
				"points", "rebounds", "assists", "touchdown", "home run", "goals", "spread",
				"over/under", "o/u", "moneyline", "total kills",
			},
			TitleRegex: []string{
				`(?i)\S\s+vs\.?\s+\S`,
				`(?i)\S\s+v\.\s+\S`,
				`(?i)\bwill\b.+\bwin\b.+\bon\b`,
			},
			SlugRegex: []string{
				`(?i)-vs?-`,
			},
		},
	}
}

func (c *Categorizer) compile() {
	if len(c.Rules) == 0 {
		c.Rules = DefaultRules()
	}
	for i := range c.Rules {
		r := &c.Rules[i]
		r.compiledTitle = c.compileAll(r.Label, r.TitleRegex)
		r.compiledSlug = c.compileAll(r.Label, r.SlugRegex)
	}
}

func (c *Categorizer) compileAll(label string, raws []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(raws))
	for _, raw := range raws {
		re, err := regexp.Compile(raw)
		if err != nil {
			if c.Logger != nil {
				c.Logger.Warn("label rule regex compile failed", zap.String("label", label), zap.String("regex", raw), zap.Error(err))
			}
			continue
		}
		out = append(out, re)
	}
	return out
}

// Categorize returns the label of the first matching rule.
func (c *Categorizer) Categorize(title, slug string) string {
	if c == nil {
		c = &Categorizer{}
	}
	c.once.Do(c.compile)
	title = strings.TrimSpace(title)
	slug = strings.TrimSpace(slug)
	for _, rule := range c.Rules {
		if matchKeywords(rule, title, slug) || matchAny(rule.compiledTitle, title) || matchAny(rule.compiledSlug, slug) {
			return rule.Label
		}
	}
	return CategoryOther
}

// matchKeywords tests each keyword as a case-insensitive substring of the
// title or the slug.
func matchKeywords(rule LabelRule, title, slug string) bool {
	lt := strings.ToLower(title)
	ls := strings.ToLower(slug)
	for _, kw := range rule.Keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if strings.Contains(lt, kw) || strings.Contains(ls, kw) {
			return true
		}
	}
	return false
}

func matchAny(res []*regexp.Regexp, s string) bool {
	if s == "" {
		return false
	}
	for _, re := range res {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}
