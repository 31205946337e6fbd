// Package audit runs a placement scan end to end: acquire the repository,
// walk it, adjudicate every file, archive the report and release the checkout.
package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"fileplacer/internal/placement"
	"fileplacer/internal/reportstore"
	"fileplacer/internal/scan"
	"fileplacer/internal/source"
)

// Request names the repository and per-scan overrides. Zero values fall back
// to the Scanner defaults.
type Request struct {
	RepoURL       string `json:"repo_url,omitempty"`
	Branch        string `json:"branch,omitempty"`
	RepoPath      string `json:"repo_path,omitempty"`
	MaxFiles      int    `json:"max_files,omitempty"`
	IncludeHidden *bool  `json:"include_hidden,omitempty"`
	Model         string `json:"model,omitempty"`
}

// Source is the label recorded with the archived report.
func (r Request) Source() string {
	if u := strings.TrimSpace(r.RepoURL); u != "" {
		if b := strings.TrimSpace(r.Branch); b != "" {
			return u + "#" + b
		}
		return u
	}
	return strings.TrimSpace(r.RepoPath)
}

type Scanner struct {
	Adjudicator *placement.Adjudicator
	Concurrency int
	Defaults    placement.ScanOptions
	// ReposDir confines local repository paths when set.
	ReposDir string
	// Store archives finished reports; nil skips archiving.
	Store  reportstore.Store
	Logger *zap.Logger

	acquire func(ctx context.Context, spec source.Spec) (*source.Root, error)
	walk    func(root string, opts scan.Options) ([]placement.FileRecord, error)
	now     func() time.Time
}

func New(adj *placement.Adjudicator, defaults placement.ScanOptions, store reportstore.Store, logger *zap.Logger) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{
		Adjudicator: adj,
		Concurrency: 1,
		Defaults:    defaults,
		Store:       store,
		Logger:      logger,
	}
}

// Scan runs one audit. observer may be nil. The checkout is released on
// every path, including failures. An archive failure is logged and the
// report is still returned, without an ID.
func (s *Scanner) Scan(ctx context.Context, req Request, observer placement.Observer) (reportstore.StoredReport, error) {
	log := s.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if strings.TrimSpace(req.RepoURL) == "" && strings.TrimSpace(req.RepoPath) == "" {
		return reportstore.StoredReport{}, placement.ErrNoSource
	}
	if req.MaxFiles < 0 {
		return reportstore.StoredReport{}, fmt.Errorf("%w: max_files must not be negative", placement.ErrInvalidInput)
	}
	opts := s.options(req)

	acquire := s.acquire
	if acquire == nil {
		acquire = source.Acquire
	}
	walk := s.walk
	if walk == nil {
		walk = scan.Walk
	}

	root, err := acquire(ctx, source.Spec{
		URL:      req.RepoURL,
		Branch:   req.Branch,
		Path:     req.RepoPath,
		ReposDir: s.ReposDir,
	})
	if err != nil {
		return reportstore.StoredReport{}, err
	}
	defer func() {
		if cerr := root.Close(); cerr != nil {
			log.Warn("release repository checkout", zap.String("dir", root.Dir), zap.Error(cerr))
		}
	}()

	records, err := walk(root.Dir, scan.Options{
		IncludeHidden: opts.IncludeHidden,
		Logger:        log,
	})
	if err != nil {
		return reportstore.StoredReport{}, fmt.Errorf("walk %s: %w", root.Name, err)
	}

	p := placement.NewPipeline(s.Adjudicator, log)
	p.Concurrency = s.Concurrency
	p.Observer = observer
	report, err := p.Scan(ctx, root.Name, records, opts)
	if err != nil {
		return reportstore.StoredReport{}, err
	}

	now := time.Now
	if s.now != nil {
		now = s.now
	}
	stored := reportstore.StoredReport{
		ID:        reportstore.NewID(),
		CreatedAt: now().UTC(),
		Model:     opts.Model,
		Source:    req.Source(),
		Report:    report,
	}
	if s.Store != nil {
		if err := s.Store.Put(ctx, stored); err != nil {
			log.Warn("archive report failed", zap.String("root", report.RepositoryRoot), zap.Error(err))
			stored.ID = ""
		}
	} else {
		stored.ID = ""
	}
	return stored, nil
}

func (s *Scanner) options(req Request) placement.ScanOptions {
	opts := s.Defaults
	if req.MaxFiles > 0 {
		opts.MaxFiles = req.MaxFiles
	}
	if req.IncludeHidden != nil {
		opts.IncludeHidden = *req.IncludeHidden
	}
	if m := strings.TrimSpace(req.Model); m != "" {
		opts.Model = m
	}
	return opts
}
