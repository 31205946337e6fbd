package placement

import "strings"

// Aggregate assembles the report. Counts are derived from verdicts so the
// report invariants hold by construction; verdict order is preserved.
func Aggregate(root string, verdicts []Verdict) Report {
	details := make([]Verdict, len(verdicts))
	copy(details, verdicts)

	misplaced := 0
	for _, v := range details {
		if v.IsMisplaced {
			misplaced++
		}
	}
	return Report{
		RepositoryRoot: RootName(root),
		FilesChecked:   len(details),
		MisplacedCount: misplaced,
		Details:        details,
	}
}

// RootName keeps only the final path segment of a repository root, dropping
// parent directories such as container mount prefixes ("/app/work/repo" -> "repo").
func RootName(root string) string {
	root = strings.TrimRight(strings.TrimSpace(root), `/\`)
	if i := strings.LastIndexAny(root, `/\`); i >= 0 {
		root = root[i+1:]
	}
	return root
}
