package ingest

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"tradelens/internal/normalize"
	"tradelens/internal/signal"
)

// ErrMalformedChat is returned when the chat export cannot be tokenized into entries.
var ErrMalformedChat = errors.New("malformed chat export")

// ReadChatJSON decodes a chat export. Two shapes are accepted: an object with
// a messages array (Telegram desktop export) or a bare array of
// {date, sender, content} objects.
func ReadChatJSON(r io.Reader) ([]signal.ChatEntry, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read chat export: %w", err)
	}
	return ParseChatJSON(raw)
}

func ParseChatJSON(raw []byte) ([]signal.ChatEntry, error) {
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return nil, fmt.Errorf("%w: empty input", ErrMalformedChat)
	}
	if !gjson.Valid(text) {
		return nil, fmt.Errorf("%w: invalid json", ErrMalformedChat)
	}
	parsed := gjson.Parse(text)
	switch {
	case parsed.IsObject() && parsed.Get("messages").IsArray():
		return telegramEntries(parsed.Get("messages")), nil
	case parsed.IsArray():
		return plainEntries(parsed), nil
	default:
		return nil, fmt.Errorf("%w: expected messages array or entry array", ErrMalformedChat)
	}
}

func telegramEntries(messages gjson.Result) []signal.ChatEntry {
	var out []signal.ChatEntry
	messages.ForEach(func(_, msg gjson.Result) bool {
		if kind := msg.Get("type").String(); kind != "" && kind != "message" {
			return true
		}
		content := renderText(msg.Get("text"))
		if strings.TrimSpace(content) == "" {
			return true
		}
		out = append(out, signal.ChatEntry{
			Date:    telegramDate(msg),
			Sender:  firstString(msg, "from", "from_id", "actor"),
			Content: content,
		})
		return true
	})
	return out
}

func plainEntries(arr gjson.Result) []signal.ChatEntry {
	var out []signal.ChatEntry
	arr.ForEach(func(_, item gjson.Result) bool {
		content := renderText(item.Get("content"))
		if strings.TrimSpace(content) == "" {
			return true
		}
		out = append(out, signal.ChatEntry{
			Date:    anyDate(item.Get("date")),
			Sender:  firstString(item, "sender", "from"),
			Content: content,
		})
		return true
	})
	return out
}

// renderText flattens Telegram rich text. Links are turned back into
// markdown so the extractor can read their title and URL.
func renderText(v gjson.Result) string {
	if !v.IsArray() {
		return v.String()
	}
	var b strings.Builder
	v.ForEach(func(_, part gjson.Result) bool {
		if part.Type == gjson.String {
			b.WriteString(part.String())
			return true
		}
		txt := part.Get("text").String()
		switch part.Get("type").String() {
		case "text_link":
			fmt.Fprintf(&b, "[%s](%s)", txt, part.Get("href").String())
		default:
			b.WriteString(txt)
		}
		return true
	})
	return b.String()
}

func telegramDate(msg gjson.Result) time.Time {
	if unix := msg.Get("date_unixtime"); unix.Exists() {
		if sec, err := strconv.ParseInt(strings.TrimSpace(unix.String()), 10, 64); err == nil {
			return time.Unix(sec, 0)
		}
	}
	return anyDate(msg.Get("date"))
}

func anyDate(v gjson.Result) time.Time {
	switch v.Type {
	case gjson.Number:
		sec := v.Int()
		if sec > 1e12 {
			sec /= 1000
		}
		return time.Unix(sec, 0)
	case gjson.String:
		if ts, ok := normalize.ParseDate(v.String()); ok {
			return ts
		}
	}
	return time.Time{}
}

func firstString(v gjson.Result, keys ...string) string {
	for _, k := range keys {
		if s := strings.TrimSpace(v.Get(k).String()); s != "" {
			return s
		}
	}
	return ""
}
