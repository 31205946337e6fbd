package reportstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"fileplacer/internal/util/jsonutil"
)

// FileStore keeps one JSON document per report under a directory.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, fmt.Errorf("report dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create report dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// Put writes through a temp file and rename so readers never see a partial report.
func (s *FileStore) Put(_ context.Context, r StoredReport) error {
	id, err := normalizeID(r.ID)
	if err != nil {
		return err
	}
	r.ID = id
	b, err := jsonutil.MarshalNoEscapeIndent(r, "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, id+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), s.path(id)); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}

func (s *FileStore) Get(_ context.Context, id string) (StoredReport, error) {
	id, err := normalizeID(id)
	if err != nil {
		return StoredReport{}, err
	}
	b, err := os.ReadFile(s.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return StoredReport{}, ErrNotFound
	}
	if err != nil {
		return StoredReport{}, err
	}
	var r StoredReport
	if err := json.Unmarshal(b, &r); err != nil {
		return StoredReport{}, fmt.Errorf("decode report %s: %w", id, err)
	}
	return r, nil
}

func (s *FileStore) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		if id, err := normalizeID(strings.TrimSuffix(name, ".json")); err == nil {
			ids = append(ids, id)
		}
	}
	return sortNewestFirst(ids), nil
}
