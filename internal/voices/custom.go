package voices

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"ttsd/internal/audio"
	"ttsd/internal/common/fsutil"
)

// CustomPrefix marks a voice id that refers to an uploaded clip.
const CustomPrefix = "custom/"

// DefaultCustomName is used when an upload does not name its voice.
const DefaultCustomName = "custom_voice"

const maxNameLen = 64

var (
	ErrVoiceNotFound    = errors.New("voice not found")
	ErrInvalidVoiceName = errors.New("invalid voice name: use 1-64 of [A-Za-z0-9_-]")
	ErrNotWAV           = audio.ErrNotWAV
	ErrTooLarge         = fsutil.ErrTooLarge
)

// Custom describes a stored upload.
type Custom struct {
	ID   string
	Name string
	Path string
	Info audio.Info
}

// CustomStore keeps uploaded reference clips as <name>.wav in one directory.
type CustomStore struct {
	dir      string
	maxBytes int64
}

// NewCustomStore returns a store rooted at dir. Uploads larger than maxBytes
// are rejected when maxBytes > 0.
func NewCustomStore(dir string, maxBytes int64) *CustomStore {
	return &CustomStore{dir: dir, maxBytes: maxBytes}
}

// IsCustom reports whether voice names an uploaded clip.
func IsCustom(voice string) bool { return strings.HasPrefix(voice, CustomPrefix) }

// CustomID returns the voice id clients use for an uploaded clip.
func CustomID(name string) string { return CustomPrefix + name + ".wav" }

// ValidName reports whether name can be used as an upload name.
func ValidName(name string) bool {
	if name == "" || len(name) > maxNameLen {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return false
		}
	}
	return true
}

// Save validates r as a WAV file and stores it under name, replacing any
// previous clip with that name.
func (s *CustomStore) Save(name string, r io.Reader) (Custom, error) {
	if name == "" {
		name = DefaultCustomName
	}
	if !ValidName(name) {
		return Custom{}, ErrInvalidVoiceName
	}
	dir, err := s.root()
	if err != nil {
		return Custom{}, err
	}
	staging := filepath.Join(dir, ".upload-"+uuid.NewString())
	if _, err := fsutil.WriteFileAtomic(staging, r, s.maxBytes); err != nil {
		return Custom{}, fmt.Errorf("store upload: %w", err)
	}
	defer os.Remove(staging)

	info, err := inspectFile(staging)
	if err != nil {
		return Custom{}, err
	}
	final := filepath.Join(dir, name+".wav")
	if err := os.Rename(staging, final); err != nil {
		return Custom{}, fmt.Errorf("store upload: %w", err)
	}
	return Custom{ID: CustomID(name), Name: name, Path: final, Info: info}, nil
}

// List returns the ids of stored clips, sorted.
func (s *CustomStore) List() ([]string, error) {
	ids := []string{}
	dir, err := s.root()
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ids, nil
		}
		return nil, fmt.Errorf("read custom voices: %w", err)
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(strings.ToLower(name), ".wav") {
			continue
		}
		ids = append(ids, CustomPrefix+name)
	}
	sort.Strings(ids)
	return ids, nil
}

// CanonicalID maps the accepted spellings of a custom voice id
// (custom/<name> and custom/<name>.wav) to the CustomID form.
func CanonicalID(id string) (string, error) {
	if !IsCustom(id) {
		return "", fmt.Errorf("%w: %s", ErrVoiceNotFound, id)
	}
	name := strings.TrimSuffix(strings.TrimPrefix(id, CustomPrefix), ".wav")
	if !ValidName(name) {
		return "", ErrInvalidVoiceName
	}
	return CustomID(name), nil
}

// Resolve maps a custom voice id to the file backing it.
func (s *CustomStore) Resolve(id string) (string, error) {
	canon, err := CanonicalID(id)
	if err != nil {
		return "", err
	}
	name := strings.TrimSuffix(strings.TrimPrefix(canon, CustomPrefix), ".wav")
	dir, err := s.root()
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, name+".wav")
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrVoiceNotFound, id)
		}
		return "", err
	}
	return path, nil
}

func (s *CustomStore) root() (string, error) {
	if strings.TrimSpace(s.dir) == "" {
		return "", errors.New("custom voice directory not configured")
	}
	return fsutil.ResolveDir(s.dir)
}

func inspectFile(path string) (audio.Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return audio.Info{}, err
	}
	defer f.Close()
	return audio.InspectWAV(f)
}
