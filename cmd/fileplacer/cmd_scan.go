package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"fileplacer/internal/audit"
	"fileplacer/internal/config"
	"fileplacer/internal/placement"
	"fileplacer/internal/reportstore"
	"fileplacer/internal/util/jsonutil"
)

type scanFlags struct {
	clientOverrides
	repoURL         string
	branch          string
	maxFiles        int
	includeHidden   bool
	out             string
	archive         bool
	failOnMisplaced bool
}

func newScanCmd(root *rootOptions) *cobra.Command {
	var flags scanFlags
	cmd := &cobra.Command{
		Use:   "scan [repo-path]",
		Short: "Scan a local or remote repository and print the placement report",
		Long: `Scan lists the files of a repository, classifies each one and prints a JSON
report of misplaced files.

Usage:
  fileplacer scan ./my-repo
  fileplacer scan --repo-url https://github.com/acme/shop --branch main
  fileplacer scan ./my-repo --provider fake -o report.json

The API key is read from OPENAI_API_KEY (or GROQ_API_KEY / GEMINI_API_KEY for
those providers) unless --api-key is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, root.logger, flags, args)
		},
	}
	f := cmd.Flags()
	f.StringVar(&flags.repoURL, "repo-url", "", "Git URL to shallow-clone and scan")
	f.StringVar(&flags.branch, "branch", "", "Branch to clone with --repo-url")
	f.IntVar(&flags.maxFiles, "max-files", 0, "Maximum files to adjudicate (default: $FILEPLACER_MAX_FILES or 500)")
	f.BoolVar(&flags.includeHidden, "include-hidden", false, "Include dotfiles and dot-directories")
	f.StringVarP(&flags.out, "output", "o", "", "Write the report to this file instead of stdout")
	f.BoolVar(&flags.archive, "archive", false, "Also save the report to the configured report store")
	f.BoolVar(&flags.failOnMisplaced, "fail-on-misplaced", false, "Exit with status 2 when any file is misplaced")
	f.StringVar(&flags.provider, "provider", "", "Model provider: openai, groq, gemini or fake")
	f.StringVar(&flags.apiKey, "api-key", "", "API key (default: provider environment variable)")
	f.StringVar(&flags.model, "model", "", "Model name")
	f.StringVar(&flags.conventions, "conventions", "", "YAML file with folder conventions")
	f.IntVar(&flags.concurrency, "concurrency", 0, "Adjudications in flight (default: $FILEPLACER_CONCURRENCY or 1)")
	return cmd
}

func runScan(cmd *cobra.Command, logger *zap.Logger, flags scanFlags, args []string) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	req := audit.Request{
		RepoURL: flags.repoURL,
		Branch:  flags.branch,
	}
	if len(args) > 0 {
		req.RepoPath = args[0]
	}
	if req.RepoURL == "" && req.RepoPath == "" {
		return fmt.Errorf("%w\n\nUsage: fileplacer scan <repo-path>\n       fileplacer scan --repo-url <url>", placement.ErrNoSource)
	}
	if flags.maxFiles > 0 {
		req.MaxFiles = flags.maxFiles
	}
	if cmd.Flags().Changed("include-hidden") {
		include := flags.includeHidden
		req.IncludeHidden = &include
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	flags.clientOverrides.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store reportstore.Store
	if flags.archive {
		s, closeStore, err := reportstore.Open(ctx, cfg.Store, logger)
		if err != nil {
			return err
		}
		defer closeStore()
		store = s
	}

	sc, closeClient, err := buildScanner(ctx, cfg, store, logger)
	if err != nil {
		return err
	}
	defer closeClient()

	stored, err := sc.Scan(ctx, req, func(e placement.ScanEvent) {
		logger.Debug("progress",
			zap.Int("done", e.Index+1),
			zap.Int("total", e.Total),
			zap.String("path", e.Verdict.FilePath),
			zap.Bool("misplaced", e.Verdict.IsMisplaced))
	})
	if err != nil {
		return err
	}
	if stored.ID != "" {
		logger.Info("report archived", zap.String("id", stored.ID))
	}

	var w io.Writer = cmd.OutOrStdout()
	if flags.out != "" {
		file, err := os.Create(flags.out)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer file.Close()
		w = file
	}
	if err := jsonutil.WriteIndent(w, stored.Report); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if flags.failOnMisplaced && stored.Report.MisplacedCount > 0 {
		return &exitError{code: 2}
	}
	return nil
}
