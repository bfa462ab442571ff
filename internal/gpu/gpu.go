// Package gpu reports accelerator memory usage for status endpoints.
package gpu

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Memory is a point-in-time reading for the first device.
type Memory struct {
	Available bool
	UsedMB    int64
	TotalMB   int64
}

// Probe reads device memory.
type Probe interface {
	Memory(ctx context.Context) (Memory, error)
}

// ProbeFunc adapts a function to Probe.
type ProbeFunc func(ctx context.Context) (Memory, error)

func (f ProbeFunc) Memory(ctx context.Context) (Memory, error) { return f(ctx) }

// None reports no device.
var None Probe = ProbeFunc(func(context.Context) (Memory, error) { return Memory{}, nil })

const defaultProbeTimeout = 5 * time.Second

// NvidiaSMI queries nvidia-smi. A host without the binary has no device.
type NvidiaSMI struct {
	Bin     string
	Timeout time.Duration
}

func (p NvidiaSMI) Memory(ctx context.Context) (Memory, error) {
	bin := p.Bin
	if bin == "" {
		bin = "nvidia-smi"
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, bin,
		"--query-gpu=memory.used,memory.total",
		"--format=csv,noheader,nounits").Output()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			return Memory{}, nil
		}
		return Memory{}, fmt.Errorf("nvidia-smi: %w", err)
	}
	return ParseNvidiaSMI(out)
}

// ParseNvidiaSMI parses "used, total" CSV lines in MiB and returns the first.
func ParseNvidiaSMI(out []byte) (Memory, error) {
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Split(line, ",")
		if len(fields) != 2 {
			return Memory{}, fmt.Errorf("nvidia-smi: unexpected line %q", line)
		}
		used, err := strconv.ParseInt(strings.TrimSpace(fields[0]), 10, 64)
		if err != nil {
			return Memory{}, fmt.Errorf("nvidia-smi: used: %w", err)
		}
		total, err := strconv.ParseInt(strings.TrimSpace(fields[1]), 10, 64)
		if err != nil {
			return Memory{}, fmt.Errorf("nvidia-smi: total: %w", err)
		}
		return Memory{Available: true, UsedMB: used, TotalMB: total}, nil
	}
	return Memory{}, nil
}
