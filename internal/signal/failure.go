package signal

import "strings"

const (
	glyphSkip = "⏭"
	glyphFail = "❌"

	ReasonSkipped         = "Skipped"
	ReasonExecutionFailed = "Execution Failed"
)

type FailureRule struct {
	Reason  string
	Phrases []string
}

// failureRules is evaluated top-down; the first rule with a matching phrase wins.
var failureRules = []FailureRule{
	{Reason: "Insufficient Balance", Phrases: []string{"insufficient balance", "insufficient funds", "not enough balance"}},
	{Reason: "Odds Limit Exceeded", Phrases: []string{"odds limit", "exceeds max odds", "odds too high", "above max odds"}},
	{Reason: "Low Liquidity", Phrases: []string{"low liquidity", "insufficient liquidity", "not enough liquidity", "no liquidity"}},
	{Reason: "Max Spend Limit", Phrases: []string{"max spend", "spend limit", "spending limit"}},
	{Reason: "Balance Too Small", Phrases: []string{"balance too small", "too small", "below minimum"}},
	{Reason: "Delayed/Retrying", Phrases: []string{"delayed", "retrying", "will retry"}},
	{Reason: "Failed", Phrases: []string{"failed", "failure", "error", "rejected"}},
}

// ClassifyFailure maps known failure phrasing to a taxonomy reason.
func ClassifyFailure(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, rule := range failureRules {
		for _, p := range rule.Phrases {
			if strings.Contains(lower, p) {
				return rule.Reason, true
			}
		}
	}
	return "", false
}

// lineStatus decides status from the action line itself and its successor.
func lineStatus(line, next string) (Status, string) {
	status, reason := StatusSuccess, ""
	skipped := strings.Contains(line, glyphSkip)
	if skipped || strings.Contains(line, glyphFail) {
		status = StatusFailed
		if r, ok := ClassifyFailure(line); ok {
			reason = r
		} else if skipped {
			reason = ReasonSkipped
		} else {
			reason = ReasonExecutionFailed
		}
	}
	if r, ok := ClassifyFailure(next); ok {
		status, reason = StatusFailed, r
	}
	return status, reason
}
