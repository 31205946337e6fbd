package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"fileplacer/internal/audit"
	"fileplacer/internal/config"
	"fileplacer/internal/llm"
	"fileplacer/internal/placement"
	"fileplacer/internal/reportstore"
)

// clientOverrides are flag values that win over the environment when set.
type clientOverrides struct {
	provider    string
	apiKey      string
	model       string
	conventions string
	concurrency int
}

func (o clientOverrides) apply(cfg *config.Config) {
	if o.provider != "" {
		cfg.UseProvider(o.provider)
	}
	if o.apiKey != "" {
		cfg.APIKey = o.apiKey
	}
	if o.model != "" {
		cfg.Model = o.model
	}
	if o.conventions != "" {
		cfg.Scan.ConventionsPath = o.conventions
	}
	if o.concurrency > 0 {
		cfg.Scan.Concurrency = o.concurrency
	}
}

// buildScanner wires the client stack and the audit scanner. The returned
// close func releases the client and is never nil.
func buildScanner(ctx context.Context, cfg *config.Config, store reportstore.Store, logger *zap.Logger) (*audit.Scanner, func() error, error) {
	noop := func() error { return nil }
	if err := cfg.Validate(); err != nil {
		return nil, noop, err
	}
	conv, err := placement.LoadConventions(cfg.Scan.ConventionsPath)
	if err != nil {
		return nil, noop, err
	}
	client, err := llm.New(ctx, cfg.ProviderConfig(), logger)
	if err != nil {
		return nil, noop, fmt.Errorf("init llm client: %w", err)
	}

	adj := placement.NewAdjudicator(client, conv)
	adj.Timeout = cfg.Scan.Timeout

	sc := audit.New(adj, cfg.ScanOptions(), store, logger)
	sc.Concurrency = cfg.Scan.Concurrency
	sc.ReposDir = cfg.Scan.ReposDir
	logger.Info("scanner ready",
		zap.String("client", client.Name()),
		zap.Int("concurrency", sc.Concurrency),
		zap.Int("conventions", len(conv)))
	return sc, client.Close, nil
}
