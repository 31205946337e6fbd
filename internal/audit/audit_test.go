package audit

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"fileplacer/internal/llm"
	"fileplacer/internal/placement"
	"fileplacer/internal/reportstore"
	"fileplacer/internal/scan"
	"fileplacer/internal/source"
)

func writeRepo(t *testing.T, files map[string]string) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), "shop")
	for rel, content := range files {
		p := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return root
}

func misplacedComponents(req llm.Request) string {
	if strings.Contains(req.Prompt, "Heuristic suggests maybe components/") {
		return `{"is_misplaced": true, "suggested_path": "components/Button.jsx", "reasoning": "react component"}`
	}
	return llm.FakeReply
}

func newScanner(t *testing.T, client llm.Client, store reportstore.Store) *Scanner {
	s := New(placement.NewAdjudicator(client, nil), placement.ScanOptions{Model: "fake"}, store, zaptest.NewLogger(t))
	s.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return s
}

func TestScanLocalRepository(t *testing.T) {
	root := writeRepo(t, map[string]string{
		"src/Button.jsx":    "import React from 'react'",
		"models/user.js":    "const schema = {}",
		"README.md":         "# shop",
		".env":              "SECRET=1",
		"assets/logo.png":   "png",
		"node_modules/x.js": "ignored",
	})
	store := reportstore.NewMemoryStore()
	s := newScanner(t, &llm.FakeClient{Reply: misplacedComponents}, store)

	var events []placement.ScanEvent
	got, err := s.Scan(context.Background(), Request{RepoPath: root}, func(e placement.ScanEvent) {
		events = append(events, e)
	})
	require.NoError(t, err)

	assert.Equal(t, "shop", got.Report.RepositoryRoot)
	assert.Equal(t, 3, got.Report.FilesChecked)
	assert.Equal(t, 1, got.Report.MisplacedCount)
	assert.Equal(t, "README.md", got.Report.Details[0].FilePath)
	assert.Equal(t, "src/Button.jsx", got.Report.Details[2].FilePath)
	assert.Equal(t, "fake", got.Model)
	assert.Equal(t, root, got.Source)
	assert.Len(t, events, 3)

	require.NotEmpty(t, got.ID)
	archived, err := store.Get(context.Background(), got.ID)
	require.NoError(t, err)
	assert.Equal(t, got.Report, archived.Report)
}

func TestScanRequestOverrides(t *testing.T) {
	root := writeRepo(t, map[string]string{"a.js": "a", "b.js": "b", ".hidden.js": "h"})
	fake := llm.NewFakeClient()
	s := newScanner(t, fake, nil)
	include := true

	got, err := s.Scan(context.Background(), Request{RepoPath: root, MaxFiles: 2, IncludeHidden: &include, Model: "other"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Report.FilesChecked)
	assert.Equal(t, ".hidden.js", got.Report.Details[0].FilePath)
	assert.Equal(t, "other", fake.Requests()[0].Model)
	assert.Empty(t, got.ID, "no store configured")
}

func TestScanRequiresSource(t *testing.T) {
	s := newScanner(t, llm.NewFakeClient(), nil)
	_, err := s.Scan(context.Background(), Request{}, nil)
	assert.ErrorIs(t, err, placement.ErrNoSource)

	_, err = s.Scan(context.Background(), Request{RepoPath: "x", MaxFiles: -1}, nil)
	assert.ErrorIs(t, err, placement.ErrInvalidInput)
}

func stubRoot(t *testing.T, s *Scanner, dir string) *int {
	closes := 0
	s.acquire = func(_ context.Context, spec source.Spec) (*source.Root, error) {
		assert.Equal(t, "https://github.com/acme/shop.git", spec.URL)
		assert.Equal(t, "main", spec.Branch)
		return source.NewRoot(dir, "shop", true, func() error {
			closes++
			return nil
		}), nil
	}
	return &closes
}

func TestScanClosesCheckoutOnSuccess(t *testing.T) {
	dir := writeRepo(t, map[string]string{"src/a.js": "x"})
	s := newScanner(t, llm.NewFakeClient(), nil)
	closes := stubRoot(t, s, dir)

	got, err := s.Scan(context.Background(), Request{RepoURL: "https://github.com/acme/shop.git", Branch: "main"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "shop", got.Report.RepositoryRoot)
	assert.Equal(t, "https://github.com/acme/shop.git#main", got.Source)
	assert.Equal(t, 1, *closes)
}

func TestScanClosesCheckoutOnServiceFailure(t *testing.T) {
	dir := writeRepo(t, map[string]string{"src/a.js": "x"})
	s := newScanner(t, &llm.FakeClient{Err: errors.New("503")}, nil)
	closes := stubRoot(t, s, dir)

	_, err := s.Scan(context.Background(), Request{RepoURL: "https://github.com/acme/shop.git", Branch: "main"}, nil)
	assert.ErrorIs(t, err, placement.ErrService)
	assert.Equal(t, 1, *closes)
}

func TestScanClosesCheckoutOnWalkFailure(t *testing.T) {
	s := newScanner(t, llm.NewFakeClient(), nil)
	closes := stubRoot(t, s, t.TempDir())
	s.walk = func(string, scan.Options) ([]placement.FileRecord, error) {
		return nil, errors.New("disk gone")
	}

	_, err := s.Scan(context.Background(), Request{RepoURL: "https://github.com/acme/shop.git", Branch: "main"}, nil)
	assert.ErrorContains(t, err, "disk gone")
	assert.Equal(t, 1, *closes)
}

type failingStore struct{ reportstore.Store }

func (failingStore) Put(context.Context, reportstore.StoredReport) error {
	return errors.New("bucket unavailable")
}

func TestScanArchiveFailureKeepsReport(t *testing.T) {
	root := writeRepo(t, map[string]string{"a.js": "a"})
	s := newScanner(t, llm.NewFakeClient(), failingStore{reportstore.NewMemoryStore()})

	got, err := s.Scan(context.Background(), Request{RepoPath: root}, nil)
	require.NoError(t, err)
	assert.Empty(t, got.ID)
	assert.Equal(t, 1, got.Report.FilesChecked)
}
