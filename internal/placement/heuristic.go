package placement

import "strings"

var (
	componentSignals = []string{"react", "jsx", "component"}
	modelSignals     = []string{"schema", "model"}
	utilSignals      = []string{"helper", "util"}
)

// Classify is the cheap keyword pre-filter. It never decides placement, it
// only produces a hint for the prompt.
//
// The "already in the folder" guard binds to the whole keyword group of each
// rule, so a file under models/ mentioning "schema" gets no models/ hint.
func Classify(path, content string) Hint {
	lower := strings.ToLower(content)
	top := topLevelSegment(path)

	if containsAny(lower, componentSignals) && top != "components" {
		return HintComponents
	}
	if containsAny(lower, modelSignals) && top != "models" {
		return HintModels
	}
	if containsAny(lower, utilSignals) && top != "utils" {
		return HintUtils
	}
	return HintNone
}

// topLevelSegment returns the first directory of a repo-relative path, or ""
// when the file sits at the repository root.
func topLevelSegment(path string) string {
	path = strings.TrimPrefix(strings.ReplaceAll(path, "\\", "/"), "./")
	path = strings.TrimLeft(path, "/")
	first, _, found := strings.Cut(path, "/")
	if !found {
		return ""
	}
	return first
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
