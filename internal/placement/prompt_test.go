package placement

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildPromptSections(t *testing.T) {
	p := BuildPrompt(DefaultConventions(), "src/Button.jsx", "export const Button = () => null", HintComponents)

	assert.True(t, strings.HasPrefix(p, "You are an experienced software architect."))
	assert.Contains(t, p, `"routes": "API endpoints / route handlers"`)
	assert.Contains(t, p, `"services": "business-logic services"`)
	assert.Contains(t, p, "FILE PATH: src/Button.jsx\n")
	assert.Contains(t, p, "```\nexport const Button = () => null\n```")
	assert.Contains(t, p, "Heuristic suggests maybe components/\n")
	assert.Contains(t, p, "is_misplaced (boolean), suggested_path (string or null), reasoning (short string)")

	iGloss := strings.Index(p, `"routes"`)
	iPath := strings.Index(p, "FILE PATH:")
	iHint := strings.Index(p, "Heuristic suggests")
	iAns := strings.Index(p, "Answer strictly")
	assert.Less(t, iGloss, iPath)
	assert.Less(t, iPath, iHint)
	assert.Less(t, iHint, iAns)
}

func TestBuildPromptNoHint(t *testing.T) {
	p := BuildPrompt(DefaultConventions(), "README.md", "hello", HintNone)
	assert.NotContains(t, p, "Heuristic suggests")
}

func TestBuildPromptTruncatesContent(t *testing.T) {
	content := strings.Repeat("a", MaxPromptContent) + "TAIL"
	p := BuildPrompt(DefaultConventions(), "big.txt", content, HintNone)
	assert.NotContains(t, p, "TAIL")
	assert.Contains(t, p, strings.Repeat("a", MaxPromptContent))
}

func TestBuildPromptTruncatesByCharacter(t *testing.T) {
	content := strings.Repeat("é", MaxPromptContent+50)
	p := BuildPrompt(DefaultConventions(), "big.txt", content, HintNone)
	assert.Equal(t, MaxPromptContent, strings.Count(p, "é"))
}

func TestBuildPromptIsDeterministic(t *testing.T) {
	a := BuildPrompt(DefaultConventions(), "x.go", "package x", HintUtils)
	b := BuildPrompt(DefaultConventions(), "x.go", "package x", HintUtils)
	assert.Equal(t, a, b)
}

func TestBuildPromptCustomConventions(t *testing.T) {
	conv := Conventions{{Folder: "handlers", Purpose: "http <handlers> & routes"}}
	p := BuildPrompt(conv, "x.go", "package x", HintNone)
	assert.Contains(t, p, `"handlers": "http <handlers> & routes"`)
	assert.NotContains(t, p, `"routes":`)
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "", truncateRunes("abc", 0))
	assert.Equal(t, "abc", truncateRunes("abc", 5))
	assert.Equal(t, "ab", truncateRunes("abc", 2))
	assert.Equal(t, "日本", truncateRunes("日本語", 2))
}
