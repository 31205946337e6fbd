package scan

import (
	"bytes"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"fileplacer/internal/placement"
	"fileplacer/internal/safeio"
)

// DefaultMaxFileSize skips files larger than this many bytes.
const DefaultMaxFileSize int64 = 100_000

// sniffLen is how much of a file is checked for NUL bytes.
const sniffLen = 8000

var defaultIgnoreDirs = []string{
	".git", ".hg", ".svn", "node_modules", "vendor", "dist", "build", "target", ".next", ".cache", "__pycache__",
}

// Options controls Walk.
type Options struct {
	// MaxFileSize skips larger files; 0 uses DefaultMaxFileSize, < 0 disables.
	MaxFileSize   int64
	IncludeBinary bool
	IncludeHidden bool
	// IgnoreDirs replaces the default skip list when non-nil.
	IgnoreDirs []string
	Logger     *zap.Logger
}

// Walk returns the repository's files in lexical order as pipeline records.
// Unreadable and oversize files are skipped; binary files are skipped unless
// IncludeBinary is set, in which case they are returned marked Binary with
// no content.
func Walk(root string, opts Options) ([]placement.FileRecord, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	fsys, err := safeio.NewSafeFS(root)
	if err != nil {
		return nil, err
	}
	maxSize := opts.MaxFileSize
	if maxSize == 0 {
		maxSize = DefaultMaxFileSize
	}
	ignore := opts.IgnoreDirs
	if ignore == nil {
		ignore = defaultIgnoreDirs
	}
	skip := make(map[string]bool, len(ignore))
	for _, d := range ignore {
		skip[d] = true
	}

	var records []placement.FileRecord
	skipped := 0
	err = filepath.WalkDir(fsys.Root(), func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == fsys.Root() {
				return err
			}
			skipped++
			return nil
		}
		if p == fsys.Root() {
			return nil
		}
		name := d.Name()
		hidden := strings.HasPrefix(name, ".")
		if d.IsDir() {
			if skip[name] || (hidden && !opts.IncludeHidden) {
				return filepath.SkipDir
			}
			return nil
		}
		if hidden && !opts.IncludeHidden {
			return nil
		}
		if !d.Type().IsRegular() && d.Type()&fs.ModeSymlink == 0 {
			return nil
		}

		rel, err := filepath.Rel(fsys.Root(), p)
		if err != nil {
			skipped++
			return nil
		}
		rel = filepath.ToSlash(rel)

		if isBinaryExt(rel) {
			if opts.IncludeBinary {
				records = append(records, placement.FileRecord{Path: rel, Binary: true})
			}
			return nil
		}
		b, err := fsys.ReadFileLimit(rel, maxSize)
		if err != nil {
			if !errors.Is(err, safeio.ErrTooLarge) {
				log.Debug("skip unreadable file", zap.String("path", rel), zap.Error(err))
			}
			skipped++
			return nil
		}
		if looksBinary(b) {
			if opts.IncludeBinary {
				records = append(records, placement.FileRecord{Path: rel, Binary: true})
			}
			return nil
		}
		records = append(records, placement.FileRecord{Path: rel, Content: string(b)})
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Debug("repository walked",
		zap.String("root", fsys.Root()),
		zap.Int("files", len(records)),
		zap.Int("skipped", skipped))
	return records, nil
}

func looksBinary(b []byte) bool {
	head := b
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	if bytes.IndexByte(head, 0) >= 0 {
		return true
	}
	return !utf8.Valid(b)
}

func isBinaryExt(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	// images
	case ".png", ".jpg", ".jpeg", ".gif", ".webp", ".ico", ".bmp", ".tiff":
		return true
	// video
	case ".mp4", ".m4v", ".mov", ".mkv", ".webm", ".avi":
		return true
	// audio
	case ".mp3", ".wav", ".ogg", ".flac", ".m4a":
		return true
	// archives / others
	case ".pdf", ".zip", ".jar", ".gz", ".tgz", ".bz2", ".7z", ".exe", ".dll", ".dylib", ".so", ".woff", ".woff2", ".class", ".pyc", ".o", ".a":
		return true
	}
	return false
}
