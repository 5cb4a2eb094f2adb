package mail

import (
	"strings"

	"github.com/k3a/html2text"
)

// PlainText returns a plain-text rendering of the mail body: the text
// variant verbatim, or the HTML variant converted to text.
func PlainText(m *Mail) string {
	if m.Body == nil {
		return ""
	}
	if m.Body.Type == BodyText {
		return m.Body.Content
	}
	return cleanupWhitespace(html2text.HTML2Text(m.Body.Content))
}

// cleanupWhitespace removes excessive blank lines while preserving structure
func cleanupWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	var result []string
	blankCount := 0

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			blankCount++
			// Allow max 2 consecutive blank lines
			if blankCount <= 2 {
				result = append(result, "")
			}
		} else {
			blankCount = 0
			result = append(result, line)
		}
	}

	return strings.TrimSpace(strings.Join(result, "\n"))
}
