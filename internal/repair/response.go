package repair

import (
	"regexp"
	"strings"
)

var codeBlockRegex = regexp.MustCompile("```([A-Za-z0-9_+-]*)[ \\t]*\\r?\\n([\\s\\S]*?)```")

// extractCode pulls the candidate source out of a generate answer. The first
// block tagged go wins, then the last fenced block of any language, then the
// raw answer.
func extractCode(response string) string {
	matches := codeBlockRegex.FindAllStringSubmatch(response, -1)

	var code string
	switch {
	case len(matches) == 0:
		code = response
	default:
		code = matches[len(matches)-1][2]
		for _, m := range matches {
			if lang := strings.ToLower(m[1]); lang == "go" || lang == "golang" {
				code = m[2]
				break
			}
		}
	}

	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}
	return code + "\n"
}
