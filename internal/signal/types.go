package signal

import (
	"strings"
	"time"
)

type Action string

const (
	ActionBuy     Action = "BUY"
	ActionSell    Action = "SELL"
	ActionUnknown Action = "UNKNOWN"
)

func ParseAction(raw string) Action {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "BUY":
		return ActionBuy
	case "SELL":
		return ActionSell
	default:
		return ActionUnknown
	}
}

type Status string

const (
	StatusSuccess     Status = "Success"
	StatusFailed      Status = "Failed"
	StatusNotExecuted Status = "Not Executed"
)

const UnknownTrader = "Unknown Trader"

// ChatEntry is one message of the bot's conversational log.
type ChatEntry struct {
	Date    time.Time `json:"date"`
	Sender  string    `json:"sender"`
	Content string    `json:"content"`
}

// Detail is what a single trade-intent line yields.
type Detail struct {
	Action        Action
	Outcome       string
	Amount        float64
	MarketTitle   string
	MarketSlug    string
	MarketURL     string
	Status        Status
	FailureReason string
}

// Event is a trade intent extracted from a chat entry, in log order.
type Event struct {
	Seq       int
	Trader    string
	Sender    string
	Timestamp time.Time
	Detail
}
