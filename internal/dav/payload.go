package dav

import (
	"bytes"
	"fmt"
	"strings"

	ical "github.com/arran4/golang-ical"
)

// ItemMeta holds the identity fields parsed from a raw item payload.
//
// UID may be empty when the payload has no parseable UID; callers must then
// treat the item as always-new (no duplicate suppression).
type ItemMeta struct {
	UID     string
	Summary string // event SUMMARY or contact FN
}

// ParseEventMeta extracts UID and SUMMARY from an iCalendar payload.
// Only the first VEVENT is inspected; migration payloads carry one event each.
func ParseEventMeta(payload []byte) (ItemMeta, error) {
	var meta ItemMeta

	cal, err := ical.ParseCalendar(bytes.NewReader(payload))
	if err != nil {
		return meta, fmt.Errorf("failed to parse iCalendar payload: %w", err)
	}

	events := cal.Events()
	if len(events) == 0 {
		return meta, fmt.Errorf("payload contains no VEVENT")
	}

	if p := events[0].GetProperty(ical.ComponentPropertyUniqueId); p != nil {
		meta.UID = strings.TrimSpace(p.Value)
	}
	if p := events[0].GetProperty(ical.ComponentPropertySummary); p != nil {
		meta.Summary = strings.TrimSpace(p.Value)
	}

	return meta, nil
}

// ParseContactMeta extracts UID and FN from a vCard payload.
//
// vCards are scanned line by line: the payload is uploaded verbatim anyway, so
// full parsing buys nothing. Folded continuation lines are unfolded first.
func ParseContactMeta(payload []byte) (ItemMeta, error) {
	var meta ItemMeta

	text := strings.ReplaceAll(string(payload), "\r\n", "\n")
	text = strings.ReplaceAll(text, "\n ", "")
	text = strings.ReplaceAll(text, "\n\t", "")

	seen := false
	for _, line := range strings.Split(text, "\n") {
		upper := strings.ToUpper(line)
		switch {
		case strings.HasPrefix(upper, "BEGIN:VCARD"):
			seen = true
		case strings.HasPrefix(upper, "UID:"):
			if meta.UID == "" {
				meta.UID = strings.TrimSpace(line[len("UID:"):])
			}
		case strings.HasPrefix(upper, "FN:"):
			if meta.Summary == "" {
				meta.Summary = strings.TrimSpace(line[len("FN:"):])
			}
		}
	}

	if !seen {
		return meta, fmt.Errorf("payload contains no vCard")
	}
	return meta, nil
}

// ParseItemMeta dispatches to the parser for the item kind.
func ParseItemMeta(kind Kind, payload []byte) (ItemMeta, error) {
	if kind == KindContact {
		return ParseContactMeta(payload)
	}
	return ParseEventMeta(payload)
}

// IsDummySummary reports whether an event title matches the sentinel value
// used to pad calendars, compared case-insensitively after trimming.
func IsDummySummary(summary string) bool {
	return strings.EqualFold(strings.TrimSpace(summary), "dummy")
}
