// Package audio holds PCM clips and their WAV encoding.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	bitDepth    = 16
	numChannels = 1
	formatPCM   = 1
	maxInt16    = 32767
	minInt16    = -32768
)

// ErrNotWAV is returned when an input is not a readable WAV file.
var ErrNotWAV = errors.New("not a valid WAV file")

// Clip is mono 16-bit PCM audio.
type Clip struct {
	PCM        []int16
	SampleRate int
}

// Duration returns the playback length of the clip.
func (c Clip) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(c.PCM)) * time.Second / time.Duration(c.SampleRate)
}

// Append concatenates other onto c. Sample rates must match.
func (c *Clip) Append(other Clip) error {
	if c.SampleRate == 0 {
		c.SampleRate = other.SampleRate
	}
	if other.SampleRate != c.SampleRate {
		return fmt.Errorf("sample rate mismatch: %d != %d", other.SampleRate, c.SampleRate)
	}
	c.PCM = append(c.PCM, other.PCM...)
	return nil
}

// WriteWAV encodes clip as a 16-bit mono WAV stream.
func WriteWAV(w io.WriteSeeker, clip Clip) error {
	if clip.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %d", clip.SampleRate)
	}
	enc := wav.NewEncoder(w, clip.SampleRate, bitDepth, numChannels, formatPCM)
	data := make([]int, len(clip.PCM))
	for i, s := range clip.PCM {
		data[i] = int(s)
	}
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{SampleRate: clip.SampleRate, NumChannels: numChannels},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalize wav: %w", err)
	}
	return nil
}

// WriteWAVFile creates (or truncates) path and writes clip to it.
func WriteWAVFile(path string, clip Clip) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteWAV(f, clip); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Info describes a WAV input.
type Info struct {
	SampleRate int
	Channels   int
	BitDepth   int
	Duration   time.Duration
}

// InspectWAV validates r as a WAV file and reports its format.
func InspectWAV(r io.ReadSeeker) (Info, error) {
	d := wav.NewDecoder(r)
	if !d.IsValidFile() {
		return Info{}, ErrNotWAV
	}
	info := Info{
		SampleRate: int(d.SampleRate),
		Channels:   int(d.NumChans),
		BitDepth:   int(d.BitDepth),
	}
	if err := d.FwdToPCM(); err != nil {
		return info, fmt.Errorf("%w: %v", ErrNotWAV, err)
	}
	bytesPerSec := info.SampleRate * info.Channels * info.BitDepth / 8
	if bytesPerSec > 0 {
		info.Duration = time.Duration(float64(d.PCMSize) / float64(bytesPerSec) * float64(time.Second))
	}
	return info, nil
}

// PCM16Bytes encodes samples as little-endian signed 16-bit PCM.
func PCM16Bytes(samples []int16) []byte {
	out := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(s))
	}
	return out
}

// DecodePCM16 is the inverse of PCM16Bytes. A trailing odd byte is ignored.
func DecodePCM16(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[2*i:]))
	}
	return out
}

// FloatToPCM16 clips float samples to [-1, 1] and scales them to int16.
func FloatToPCM16(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		switch {
		case s > 1:
			s = 1
		case s < -1:
			s = -1
		}
		v := int32(s * maxInt16)
		if v < minInt16 {
			v = minInt16
		}
		out[i] = int16(v)
	}
	return out
}
