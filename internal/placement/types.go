package placement

// FileRecord is one file handed to the pipeline by the traversal step.
// Path is repo-relative and slash-separated.
type FileRecord struct {
	Path    string
	Content string
	// Binary is set by traversal when the content could not be read as text.
	Binary bool
}

// Hint is the folder suggested by the heuristic pre-filter; empty means none.
type Hint string

const (
	HintNone       Hint = ""
	HintComponents Hint = "components/"
	HintModels     Hint = "models/"
	HintUtils      Hint = "utils/"
)

// Verdict is the per-file adjudication result.
type Verdict struct {
	FilePath      string  `json:"file_path"`
	IsMisplaced   bool    `json:"is_misplaced"`
	SuggestedPath *string `json:"suggested_path"`
	Reasoning     string  `json:"reasoning"`
}

// Report summarizes one scan.
type Report struct {
	RepositoryRoot string    `json:"repository_root"`
	FilesChecked   int       `json:"files_checked"`
	MisplacedCount int       `json:"misplaced_count"`
	Details        []Verdict `json:"details"`
}

// ScanEvent is delivered to an Observer after each verdict lands.
type ScanEvent struct {
	Index   int     `json:"index"`
	Total   int     `json:"total"`
	Verdict Verdict `json:"verdict"`
}

// Observer receives scan progress. It may be called from several goroutines
// when a pipeline runs with Concurrency > 1.
type Observer func(ScanEvent)
