package migration

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"text/template"
	"time"
)

// versionWidth matches the zero padding of the existing migration files
const versionWidth = 6

var (
	fileNamePattern = regexp.MustCompile(`^(\d+)_([a-z0-9_]+)\.(up|down)\.sql$`)
	unsafeChars     = regexp.MustCompile(`[^a-z0-9]+`)
)

var fileTemplate = template.Must(template.New("migration").Parse(`-- {{.Name}} ({{.Direction}})
-- Created: {{.Created}}
{{- if .Description}}
-- {{.Description}}
{{- end}}

`))

// File is one migration: a numbered pair of up and down scripts
type File struct {
	Version  uint
	Name     string
	UpPath   string
	DownPath string
}

// HasDown reports whether the rollback script exists
func (f File) HasDown() bool {
	return f.DownPath != ""
}

// Create writes an empty up/down pair numbered after the highest existing
// version in dir.
func Create(dir, name, description string) (*File, error) {
	slug := slugify(name)
	if slug == "" {
		return nil, fmt.Errorf("migration name %q has no usable characters", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create migrations directory: %w", err)
	}
	existing, err := List(dir)
	if err != nil {
		return nil, err
	}
	var version uint = 1
	if n := len(existing); n > 0 {
		version = existing[n-1].Version + 1
	}

	base := fmt.Sprintf("%0*d_%s", versionWidth, version, slug)
	f := &File{
		Version:  version,
		Name:     slug,
		UpPath:   filepath.Join(dir, base+".up.sql"),
		DownPath: filepath.Join(dir, base+".down.sql"),
	}
	created := time.Now().UTC().Format(time.RFC3339)
	if err := writeScript(f.UpPath, slug, "up", description, created); err != nil {
		return nil, err
	}
	if err := writeScript(f.DownPath, slug, "down", description, created); err != nil {
		_ = os.Remove(f.UpPath)
		return nil, err
	}
	return f, nil
}

func writeScript(path, name, direction, description, created string) error {
	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer out.Close()
	return fileTemplate.Execute(out, map[string]string{
		"Name":        name,
		"Direction":   direction,
		"Description": description,
		"Created":     created,
	})
}

// List returns the migrations in dir ordered by version. A missing
// directory has no migrations. Files that do not follow the
// NNNNNN_name.(up|down).sql pattern are ignored.
func List(dir string) ([]File, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	byVersion := make(map[uint]*File)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		match := fileNamePattern.FindStringSubmatch(entry.Name())
		if match == nil {
			continue
		}
		v, err := strconv.ParseUint(match[1], 10, 32)
		if err != nil {
			continue
		}
		f, ok := byVersion[uint(v)]
		if !ok {
			f = &File{Version: uint(v), Name: match[2]}
			byVersion[uint(v)] = f
		}
		path := filepath.Join(dir, entry.Name())
		if match[3] == "up" {
			f.UpPath = path
		} else {
			f.DownPath = path
		}
	}

	files := make([]File, 0, len(byVersion))
	for _, f := range byVersion {
		files = append(files, *f)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Version < files[j].Version })
	return files, nil
}

// slugify lowercases name and collapses everything else into single underscores
func slugify(name string) string {
	return strings.Trim(unsafeChars.ReplaceAllString(strings.ToLower(name), "_"), "_")
}
