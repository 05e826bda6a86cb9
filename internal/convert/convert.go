// Package convert turns formats vision servers cannot decode (HEIC, TIFF)
// into JPEG by shelling out to whichever conversion tool the host has.
package convert

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrNoConverter means none of the known conversion binaries is on PATH.
var ErrNoConverter = errors.New("no image conversion tool found (install sips or ImageMagick)")

// candidateBinaries in preference order. sips ships with macOS, magick and
// convert cover ImageMagick 7 and 6.
var candidateBinaries = []string{"sips", "magick", "convert"}

type Converter struct {
	Runner   ExecRunner
	LookPath func(string) (string, error)
	Timeout  time.Duration

	log *zap.Logger

	mu  sync.Mutex
	bin string
}

func New(log *zap.Logger) *Converter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Converter{
		Runner:   &SubprocessRunner{},
		LookPath: exec.LookPath,
		Timeout:  60 * time.Second,
		log:      log,
	}
}

// Binary resolves and caches the conversion tool to use.
func (c *Converter) Binary() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bin != "" {
		return c.bin, nil
	}
	for _, candidate := range candidateBinaries {
		if path, err := c.LookPath(candidate); err == nil {
			c.log.Debug("conversion tool resolved", zap.String("bin", path))
			c.bin = path
			return c.bin, nil
		}
	}
	return "", ErrNoConverter
}

// Convert writes a JPEG rendition of src to dst.
func (c *Converter) Convert(ctx context.Context, src string, dst string) error {
	bin, err := c.Binary()
	if err != nil {
		return err
	}

	spec := ExecSpec{
		Bin:     bin,
		Args:    conversionArgs(bin, src, dst),
		Timeout: c.Timeout,
	}
	result := c.Runner.Run(ctx, spec)
	if result.ExitCode == 0 {
		return nil
	}
	if result.Interrupted {
		return fmt.Errorf("conversion of %s interrupted: %w", src, context.Canceled)
	}
	if result.TimedOut {
		return fmt.Errorf("conversion of %s timed out after %s", src, spec.Timeout)
	}

	detail := strings.TrimSpace(result.StderrTail)
	if detail == "" {
		detail = strings.TrimSpace(result.StdoutTail)
	}
	if detail == "" && result.Err != nil {
		detail = result.Err.Error()
	}
	return fmt.Errorf("conversion of %s failed (exit %d): %s", src, result.ExitCode, detail)
}

func conversionArgs(bin string, src string, dst string) []string {
	if strings.HasSuffix(bin, "sips") {
		return []string{"-s", "format", "jpeg", src, "--out", dst}
	}
	return []string{src, dst}
}
