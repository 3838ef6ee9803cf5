package textutil

import (
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/text/unicode/norm"
)

var lineEndingReplacer = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// NormalizeText composes text to NFC, unifies line endings, strips trailing
// whitespace from every line, collapses runs of blank lines to one, and trims
// the result.
func NormalizeText(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	text = norm.NFC.String(lineEndingReplacer.Replace(text))
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimRight(line, " \t　")
		if line == "" {
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// Preview flattens text onto one line and truncates it to width terminal
// cells. Wide (CJK) runes count as two cells.
func Preview(text string, width int) string {
	flat := strings.Join(strings.Fields(text), " ")
	if width <= 0 || runewidth.StringWidth(flat) <= width {
		return flat
	}
	return runewidth.Truncate(flat, width, "…")
}
