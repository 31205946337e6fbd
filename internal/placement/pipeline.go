package placement

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxFiles caps how many records a scan considers.
const DefaultMaxFiles = 500

// ScanOptions are the per-scan settings.
type ScanOptions struct {
	// MaxFiles truncates the record list; <= 0 uses DefaultMaxFiles.
	MaxFiles      int
	IncludeHidden bool
	Model         string
}

// Pipeline runs the heuristic and the adjudicator over a file list.
type Pipeline struct {
	Adjudicator *Adjudicator
	// Concurrency bounds in-flight adjudications; <= 1 runs sequentially.
	Concurrency int
	Observer    Observer
	Logger      *zap.Logger
}

// NewPipeline returns a sequential pipeline.
func NewPipeline(adj *Adjudicator, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{Adjudicator: adj, Concurrency: 1, Logger: logger}
}

// Scan classifies every eligible record and aggregates the report.
//
// Any adjudication failure aborts the scan: a report missing files would
// misstate the misplaced count. On abort or cancellation no partial report
// is returned.
func (p *Pipeline) Scan(ctx context.Context, root string, records []FileRecord, opts ScanOptions) (Report, error) {
	if p == nil || p.Adjudicator == nil {
		return Report{}, fmt.Errorf("%w: pipeline has no adjudicator", ErrInvalidInput)
	}
	log := p.Logger
	if log == nil {
		log = zap.NewNop()
	}

	work := Eligible(records, opts)
	log.Info("placement scan started",
		zap.String("root", root),
		zap.Int("records", len(records)),
		zap.Int("eligible", len(work)),
		zap.String("model", opts.Model))

	verdicts := make([]Verdict, len(work))
	run := func(ctx context.Context, i int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec := work[i]
		hint := Classify(rec.Path, rec.Content)
		v, err := p.Adjudicator.Adjudicate(ctx, rec.Path, rec.Content, hint, opts.Model)
		if err != nil {
			return err
		}
		verdicts[i] = v
		log.Debug("file adjudicated",
			zap.String("path", rec.Path),
			zap.String("hint", string(hint)),
			zap.Bool("misplaced", v.IsMisplaced))
		if p.Observer != nil {
			p.Observer(ScanEvent{Index: i, Total: len(work), Verdict: v})
		}
		return nil
	}

	var err error
	if p.Concurrency <= 1 {
		for i := range work {
			if err = run(ctx, i); err != nil {
				break
			}
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(p.Concurrency)
		for i := range work {
			g.Go(func() error { return run(gctx, i) })
		}
		err = g.Wait()
	}
	// Cancellation by the caller wins over the adjudication error it caused.
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = ctxErr
	}
	if err != nil {
		log.Warn("placement scan aborted", zap.String("root", root), zap.Error(err))
		return Report{}, err
	}

	report := Aggregate(root, verdicts)
	log.Info("placement scan finished",
		zap.String("root", report.RepositoryRoot),
		zap.Int("files_checked", report.FilesChecked),
		zap.Int("misplaced", report.MisplacedCount))
	return report, nil
}

// Eligible applies the scan's record filters in order: hidden files, the
// MaxFiles cap, then non-text content and repeated paths.
func Eligible(records []FileRecord, opts ScanOptions) []FileRecord {
	maxFiles := opts.MaxFiles
	if maxFiles <= 0 {
		maxFiles = DefaultMaxFiles
	}

	visible := records
	if !opts.IncludeHidden {
		visible = make([]FileRecord, 0, len(records))
		for _, r := range records {
			if !IsHidden(r.Path) {
				visible = append(visible, r)
			}
		}
	}
	if len(visible) > maxFiles {
		visible = visible[:maxFiles]
	}

	out := make([]FileRecord, 0, len(visible))
	seen := make(map[string]struct{}, len(visible))
	for _, r := range visible {
		if r.Binary || !utf8.ValidString(r.Content) {
			continue
		}
		if _, dup := seen[r.Path]; dup {
			continue
		}
		seen[r.Path] = struct{}{}
		out = append(out, r)
	}
	return out
}

// IsHidden reports whether any segment of a repo-relative path is a dotfile.
func IsHidden(path string) bool {
	for _, seg := range strings.Split(strings.ReplaceAll(path, "\\", "/"), "/") {
		if seg == "." || seg == ".." {
			continue
		}
		if strings.HasPrefix(seg, ".") {
			return true
		}
	}
	return false
}
