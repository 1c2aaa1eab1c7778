package printer

import (
	"fmt"
	"strings"
	"time"

	"github.com/josephgoksu/paperboy/models"
)

// DefaultWidth is the character width of 58mm thermal paper.
const DefaultWidth = 32

// priorityMarker maps priority to the urgency banner on the receipt.
func priorityMarker(p models.TaskPriority) string {
	switch p {
	case models.PriorityUrgent:
		return "!!! URGENT !!!"
	case models.PriorityHigh:
		return "! HIGH !"
	case models.PriorityLow:
		return "low"
	default:
		return "normal"
	}
}

// RenderReceipt formats one task as a printable briefing. The layout
// follows the receipt shape of the device: full-width separators, a
// header, wrapped body text, and a footer carrying the task id so a
// printed slip can be traced back to its record.
func RenderReceipt(rec models.TaskRecord, width int) []byte {
	if width <= 0 {
		width = DefaultWidth
	}
	sep := strings.Repeat("=", width)
	thin := strings.Repeat("-", width)

	var lines []string
	lines = append(lines, sep)
	lines = append(lines, center("TASK BRIEFING", width))
	lines = append(lines, sep)
	lines = append(lines, "")
	lines = append(lines, fmt.Sprintf("URGENCY: %s", priorityMarker(rec.Priority)))
	lines = append(lines, fmt.Sprintf("FROM: %s", rec.Sender))
	lines = append(lines, fmt.Sprintf("TIME: %s", time.Now().Format("15:04 02/01/2006")))
	lines = append(lines, "")
	lines = append(lines, "TASK:")
	lines = append(lines, wrap(rec.Title, width)...)
	if rec.Description != "" {
		lines = append(lines, "")
		lines = append(lines, "DETAILS:")
		lines = append(lines, wrap(rec.Description, width)...)
	}
	if len(rec.Contacts) > 0 {
		lines = append(lines, "")
		lines = append(lines, "PEOPLE INVOLVED:")
		lines = append(lines, wrap(strings.Join(rec.Contacts, ", "), width)...)
	}
	lines = append(lines, "")
	lines = append(lines, thin)
	if rec.DueAt != nil {
		lines = append(lines, fmt.Sprintf("DEADLINE: %s", rec.DueAt.Format("Mon 02 Jan 15:04")))
	} else {
		lines = append(lines, "DEADLINE: ASAP")
	}
	lines = append(lines, sep)
	lines = append(lines, wrap(fmt.Sprintf("TASK ID: %s", rec.ID), width)...)
	lines = append(lines, sep)
	lines = append(lines, "")

	return []byte(strings.Join(lines, "\n"))
}

// wrap breaks text into lines no longer than width, splitting on word
// boundaries. Words longer than the width are hard-broken.
func wrap(text string, width int) []string {
	var out []string
	for _, paragraph := range strings.Split(text, "\n") {
		words := strings.Fields(paragraph)
		if len(words) == 0 {
			out = append(out, "")
			continue
		}
		line := ""
		for _, word := range words {
			for len(word) > width {
				if line != "" {
					out = append(out, line)
					line = ""
				}
				out = append(out, word[:width])
				word = word[width:]
			}
			switch {
			case line == "":
				line = word
			case len(line)+1+len(word) <= width:
				line += " " + word
			default:
				out = append(out, line)
				line = word
			}
		}
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

func center(text string, width int) string {
	if len(text) >= width {
		return text
	}
	pad := (width - len(text)) / 2
	return strings.Repeat(" ", pad) + text
}
