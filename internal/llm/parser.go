package llm

import "strings"

// ExtractJSON pulls the JSON payload out of a model response, tolerating
// markdown fences and prose around the object or array.
func ExtractJSON(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	objStart := strings.Index(s, "{")
	arrStart := strings.Index(s, "[")

	start := objStart
	end := strings.LastIndex(s, "}")
	if objStart == -1 || (arrStart != -1 && arrStart < objStart) {
		start = arrStart
		end = strings.LastIndex(s, "]")
	}

	if start == -1 || end == -1 || end < start {
		return s
	}
	return s[start : end+1]
}
