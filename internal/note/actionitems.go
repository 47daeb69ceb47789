package note

import (
	"regexp"
	"strings"
)

// UnassignedOwner is assigned to bullet lines that carry no "Owner:" prefix.
const UnassignedOwner = "Unassigned"

// ActionItem is one task extracted from a note.
type ActionItem struct {
	Owner string `json:"owner"`
	Task  string `json:"task"`
	Due   string `json:"due,omitempty"`
}

// blobPlaceholder is stored when a text blob would otherwise be empty; the
// record store rejects empty rich-text values.
const blobPlaceholder = "-"

var (
	ownedItemPattern  = regexp.MustCompile(`^•\s*(.+?):\s*(.+?)(?:\s*\(due\s+(.+?)\))?$`)
	simpleItemPattern = regexp.MustCompile(`^•\s*(.+)$`)
)

// ParseActionItems reads a "• Owner: Task (due Date)" bulleted blob back into
// structured items. Lines without a bullet are skipped; bulleted lines
// without an owner become unassigned tasks.
func ParseActionItems(blob string) []ActionItem {
	trimmed := strings.TrimSpace(blob)
	if trimmed == "" || trimmed == blobPlaceholder {
		return nil
	}

	var items []ActionItem
	for _, line := range strings.Split(trimmed, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "•") {
			continue
		}
		if match := ownedItemPattern.FindStringSubmatch(line); match != nil {
			items = append(items, ActionItem{
				Owner: strings.TrimSpace(match[1]),
				Task:  strings.TrimSpace(match[2]),
				Due:   strings.TrimSpace(match[3]),
			})
			continue
		}
		if match := simpleItemPattern.FindStringSubmatch(line); match != nil {
			items = append(items, ActionItem{
				Owner: UnassignedOwner,
				Task:  strings.TrimSpace(match[1]),
			})
		}
	}
	return items
}

// FormatActionItems renders items into the bulleted blob the record store
// keeps, one "• Owner: Task (due Date)" line per item.
func FormatActionItems(items []ActionItem) string {
	if len(items) == 0 {
		return blobPlaceholder
	}
	lines := make([]string, 0, len(items))
	for _, item := range items {
		line := "• " + item.Owner + ": " + item.Task
		if item.Due != "" {
			line += " (due " + item.Due + ")"
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// FormatDueDates renders only the dated items, "• Owner: Task — Date" per line.
func FormatDueDates(items []ActionItem) string {
	var lines []string
	for _, item := range items {
		if item.Due == "" {
			continue
		}
		lines = append(lines, "• "+item.Owner+": "+item.Task+" — "+item.Due)
	}
	if len(lines) == 0 {
		return blobPlaceholder
	}
	return strings.Join(lines, "\n")
}
