package placement

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"fileplacer/internal/util/jsonutil"
)

// FolderConvention maps a conventional folder name to the purpose it serves.
type FolderConvention struct {
	Folder  string `yaml:"folder" json:"folder"`
	Purpose string `yaml:"purpose" json:"purpose"`
}

// Conventions is an ordered glossary. Order is kept so prompts stay byte-stable.
type Conventions []FolderConvention

var defaultConventions = Conventions{
	{Folder: "routes", Purpose: "API endpoints / route handlers"},
	{Folder: "controllers", Purpose: "controller layer"},
	{Folder: "components", Purpose: "UI pieces / frontend components"},
	{Folder: "views", Purpose: "templated views"},
	{Folder: "utils", Purpose: "utility helpers"},
	{Folder: "helpers", Purpose: "utility helpers"},
	{Folder: "models", Purpose: "data models / ORM schemas"},
	{Folder: "schemas", Purpose: "data schemas"},
	{Folder: "services", Purpose: "business-logic services"},
}

// DefaultConventions returns a copy of the built-in glossary.
func DefaultConventions() Conventions {
	return append(Conventions(nil), defaultConventions...)
}

// conventionFile is the on-disk YAML shape:
//
//	conventions:
//	  - folder: routes
//	    purpose: API endpoints / route handlers
type conventionFile struct {
	Conventions []FolderConvention `yaml:"conventions"`
}

// LoadConventions reads a YAML glossary. An empty path returns the defaults.
func LoadConventions(path string) (Conventions, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return DefaultConventions(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read conventions: %w", err)
	}
	return ParseConventions(b)
}

// ParseConventions decodes YAML glossary bytes and validates each entry.
func ParseConventions(b []byte) (Conventions, error) {
	var file conventionFile
	if err := yaml.Unmarshal(b, &file); err != nil {
		return nil, fmt.Errorf("parse conventions: %w", err)
	}
	if len(file.Conventions) == 0 {
		return nil, fmt.Errorf("%w: conventions file has no entries", ErrInvalidInput)
	}
	seen := make(map[string]struct{}, len(file.Conventions))
	out := make(Conventions, 0, len(file.Conventions))
	for _, c := range file.Conventions {
		folder := strings.Trim(strings.TrimSpace(c.Folder), "/")
		if folder == "" {
			return nil, fmt.Errorf("%w: convention with empty folder", ErrInvalidInput)
		}
		if _, dup := seen[folder]; dup {
			return nil, fmt.Errorf("%w: duplicate convention %q", ErrInvalidInput, folder)
		}
		seen[folder] = struct{}{}
		out = append(out, FolderConvention{Folder: folder, Purpose: strings.TrimSpace(c.Purpose)})
	}
	return out, nil
}

// glossaryText renders the glossary as an indented JSON object in glossary order.
func (c Conventions) glossaryText() string {
	if len(c) == 0 {
		return "{}"
	}
	var buf bytes.Buffer
	buf.WriteString("{\n")
	for i, fc := range c {
		k, _ := jsonutil.MarshalNoEscape(fc.Folder)
		v, _ := jsonutil.MarshalNoEscape(fc.Purpose)
		buf.WriteString("  ")
		buf.Write(k)
		buf.WriteString(": ")
		buf.Write(v)
		if i < len(c)-1 {
			buf.WriteByte(',')
		}
		buf.WriteByte('\n')
	}
	buf.WriteString("}")
	return buf.String()
}
