package voices

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"ttsd/internal/audio"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, nil, 0o644))
}

func wavBytes(t *testing.T) []byte {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ref.wav")
	require.NoError(t, audio.WriteWAVFile(path, audio.Clip{PCM: make([]int16, 2400), SampleRate: 24000}))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return b
}

func TestCatalog_ListStripsHashAndRecurses(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "expresso", "ex03-ex01_happy_001_channel1_334s.wav.1e68beda@240.safetensors"))
	touch(t, filepath.Join(dir, "vctk", "p225_023.wav.abc123@240.safetensors"))
	touch(t, filepath.Join(dir, "plain.safetensors"))
	touch(t, filepath.Join(dir, "README.md"))

	got, err := NewCatalog(dir).List()
	require.NoError(t, err)
	require.Equal(t, []string{
		"expresso/ex03-ex01_happy_001_channel1_334s.wav",
		"plain",
		"vctk/p225_023.wav",
	}, got)
}

func TestCatalog_MissingDirIsEmpty(t *testing.T) {
	got, err := NewCatalog(filepath.Join(t.TempDir(), "nope")).List()
	require.NoError(t, err)
	require.Empty(t, got)

	got, err = NewCatalog("").List()
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestValidName(t *testing.T) {
	for _, ok := range []string{"a", "my_voice-2", strings.Repeat("x", 64)} {
		require.True(t, ValidName(ok), ok)
	}
	for _, bad := range []string{"", "../etc", "a b", "naïve", strings.Repeat("x", 65), "x.wav"} {
		require.False(t, ValidName(bad), bad)
	}
}

func TestCustomStore_SaveListResolve(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "custom")
	s := NewCustomStore(dir, 0)

	c, err := s.Save("alice", bytes.NewReader(wavBytes(t)))
	require.NoError(t, err)
	require.Equal(t, "custom/alice.wav", c.ID)
	require.Equal(t, 24000, c.Info.SampleRate)

	_, err = s.Save("", bytes.NewReader(wavBytes(t)))
	require.NoError(t, err)

	ids, err := s.List()
	require.NoError(t, err)
	require.Equal(t, []string{"custom/alice.wav", "custom/custom_voice.wav"}, ids)

	p, err := s.Resolve("custom/alice.wav")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "alice.wav"), p)

	_, err = s.Resolve("custom/bob.wav")
	require.ErrorIs(t, err, ErrVoiceNotFound)
	_, err = s.Resolve("custom/../secret.wav")
	require.ErrorIs(t, err, ErrInvalidVoiceName)
}

func TestCustomStore_RejectsBadUploads(t *testing.T) {
	dir := t.TempDir()
	s := NewCustomStore(dir, 0)

	_, err := s.Save("x", strings.NewReader("definitely not riff data"))
	require.True(t, errors.Is(err, ErrNotWAV), "got %v", err)

	_, err = s.Save("../../evil", bytes.NewReader(wavBytes(t)))
	require.ErrorIs(t, err, ErrInvalidVoiceName)

	small := NewCustomStore(dir, 16)
	_, err = small.Save("big", bytes.NewReader(wavBytes(t)))
	require.ErrorIs(t, err, ErrTooLarge)

	ids, err := s.List()
	require.NoError(t, err)
	require.Empty(t, ids, "rejected uploads must not be listed")
}

func TestCustomStore_ListMissingDir(t *testing.T) {
	ids, err := NewCustomStore(filepath.Join(t.TempDir(), "missing"), 0).List()
	require.NoError(t, err)
	require.Empty(t, ids)
}

func TestEmbeddingCache_ConcurrentAndCopies(t *testing.T) {
	c := NewEmbeddingCache()
	src := []float32{1, 2, 3}
	c.Put("custom/a.wav", src)
	src[0] = 99
	got, ok := c.Get("custom/a.wav")
	require.True(t, ok)
	require.Equal(t, float32(1), got[0])

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.Put("v", []float32{float32(i)})
			_, _ = c.Get("v")
		}(i)
	}
	wg.Wait()
	require.Equal(t, 2, c.Len())
	c.Delete("v")
	_, ok = c.Get("v")
	require.False(t, ok)
}

func TestCanonicalID(t *testing.T) {
	for _, in := range []string{"custom/foo", "custom/foo.wav"} {
		got, err := CanonicalID(in)
		require.NoError(t, err)
		require.Equal(t, "custom/foo.wav", got)
	}
	_, err := CanonicalID("expresso/foo.wav")
	require.ErrorIs(t, err, ErrVoiceNotFound)
	_, err = CanonicalID("custom/a b")
	require.ErrorIs(t, err, ErrInvalidVoiceName)
}
