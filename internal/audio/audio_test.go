package audio

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func sine(n, rate int) Clip {
	pcm := make([]int16, n)
	for i := range pcm {
		pcm[i] = int16((i % 100) * 300)
	}
	return Clip{PCM: pcm, SampleRate: rate}
}

func TestWriteWAVFile_InspectRoundTrip(t *testing.T) {
	p := filepath.Join(t.TempDir(), "out.wav")
	require.NoError(t, WriteWAVFile(p, sine(24000, 24000)))

	f, err := os.Open(p)
	require.NoError(t, err)
	defer f.Close()
	info, err := InspectWAV(f)
	require.NoError(t, err)
	require.Equal(t, 24000, info.SampleRate)
	require.Equal(t, 1, info.Channels)
	require.Equal(t, 16, info.BitDepth)
	require.InDelta(t, float64(time.Second), float64(info.Duration), float64(50*time.Millisecond))
}

func TestWriteWAV_RejectsBadRate(t *testing.T) {
	p := filepath.Join(t.TempDir(), "bad.wav")
	f, err := os.Create(p)
	require.NoError(t, err)
	defer f.Close()
	require.Error(t, WriteWAV(f, Clip{PCM: []int16{1}}))
}

func TestInspectWAV_NotWAV(t *testing.T) {
	_, err := InspectWAV(bytes.NewReader([]byte("definitely not a riff header, just text")))
	require.ErrorIs(t, err, ErrNotWAV)
}

func TestClipDuration(t *testing.T) {
	require.Equal(t, 500*time.Millisecond, sine(12000, 24000).Duration())
	require.Zero(t, Clip{PCM: []int16{1, 2}}.Duration())
}

func TestClipAppend(t *testing.T) {
	var c Clip
	require.NoError(t, c.Append(Clip{PCM: []int16{1, 2}, SampleRate: 8000}))
	require.NoError(t, c.Append(Clip{PCM: []int16{3}, SampleRate: 8000}))
	require.Equal(t, []int16{1, 2, 3}, c.PCM)
	require.Error(t, c.Append(Clip{PCM: []int16{4}, SampleRate: 16000}))
}

func TestPCM16Bytes(t *testing.T) {
	in := []int16{0, 1, -1, 32767, -32768}
	b := PCM16Bytes(in)
	require.Equal(t, []byte{0, 0, 1, 0, 0xff, 0xff, 0xff, 0x7f, 0x00, 0x80}, b)
	require.Equal(t, in, DecodePCM16(append(b, 0x01)))
}

func TestFloatToPCM16_Clips(t *testing.T) {
	got := FloatToPCM16([]float32{0, 1, -1, 2, -2, 0.5})
	require.Equal(t, []int16{0, 32767, -32767, 32767, -32767, 16383}, got)
}
