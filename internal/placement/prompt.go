package placement

import (
	"strings"
	"unicode/utf8"
)

// MaxPromptContent bounds how many characters of a file reach the model.
const MaxPromptContent = 8000

// BuildPrompt renders the adjudication prompt for one file. The hint line is
// the only channel through which the heuristic influences a verdict.
func BuildPrompt(conv Conventions, path, content string, hint Hint) string {
	var b strings.Builder
	b.WriteString("You are an experienced software architect. Analyse whether a source file is placed in the correct folder of a repository.\n\n")
	b.WriteString("Folder conventions include:\n")
	b.WriteString(conv.glossaryText())
	b.WriteString("\n\nFILE PATH: ")
	b.WriteString(path)
	b.WriteString("\nFILE CONTENT (truncated to 8000 chars):\n```\n")
	b.WriteString(truncateRunes(content, MaxPromptContent))
	b.WriteString("\n```\n")
	if hint != HintNone {
		b.WriteString("Heuristic suggests maybe ")
		b.WriteString(string(hint))
		b.WriteString("\n")
	}
	b.WriteString("\nAnswer strictly as a JSON object with exactly these keys: ")
	b.WriteString("is_misplaced (boolean), suggested_path (string or null), reasoning (short string).\n")
	return b.String()
}

// truncateRunes keeps at most n characters without splitting a UTF-8 sequence.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
