// Package voices tracks the speaker voices the service can synthesize with:
// the built-in catalog shipped with the model, user-uploaded reference clips,
// and the host-side cache of speaker embeddings extracted from those clips.
package voices

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"ttsd/internal/common/fsutil"
)

const embeddingExt = ".safetensors"

// hashedSuffix matches the content-addressed suffix of a voice embedding,
// e.g. "ex03_happy.wav.1e68beda@240.safetensors".
var hashedSuffix = regexp.MustCompile(`\.[0-9a-fA-F]+@[0-9]+\.safetensors$`)

// Catalog lists the built-in voices found under a directory.
type Catalog struct {
	dir string
}

func NewCatalog(dir string) *Catalog { return &Catalog{dir: dir} }

// Dir returns the configured directory.
func (c *Catalog) Dir() string { return c.dir }

// List walks the directory for embedding files and returns their voice names
// relative to it, sorted. A missing or unset directory yields no voices.
func (c *Catalog) List() ([]string, error) {
	if strings.TrimSpace(c.dir) == "" {
		return []string{}, nil
	}
	abs, err := fsutil.ResolveDir(c.dir)
	if err != nil {
		return nil, err
	}
	voices := []string{}
	err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == abs && errors.Is(err, os.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), embeddingExt) {
			return nil
		}
		rel, err := filepath.Rel(abs, path)
		if err != nil {
			return err
		}
		voices = append(voices, VoiceName(filepath.ToSlash(rel)))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan voices: %w", err)
	}
	sort.Strings(voices)
	return voices, nil
}

// VoiceName strips the embedding extension, and its content hash if present,
// from a catalog file name.
func VoiceName(file string) string {
	if loc := hashedSuffix.FindStringIndex(file); loc != nil {
		return file[:loc[0]]
	}
	if strings.HasSuffix(strings.ToLower(file), embeddingExt) {
		return file[:len(file)-len(embeddingExt)]
	}
	return file
}
