package executor

import "strings"

// StripFences removes a markdown code fence wrapping the whole content, when
// present. The content generation contract forbids fences, but models emit
// them anyway; the committed blob must carry the raw content only.
func StripFences(content string) string {
	s := strings.TrimSpace(content)
	lines := strings.Split(s, "\n")
	if len(lines) < 2 {
		return content
	}
	if !strings.HasPrefix(lines[0], "```") || strings.TrimSpace(lines[len(lines)-1]) != "```" {
		return content
	}
	return strings.Join(lines[1:len(lines)-1], "\n")
}
