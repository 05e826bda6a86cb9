// Package doctor inspects the environment a run depends on: configuration,
// the provider server, the image conversion tool and the directories the
// run writes to.
package doctor

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/jaa/vasort/internal/config"
	"github.com/jaa/vasort/internal/convert"
	"github.com/jaa/vasort/internal/provider"
)

type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
)

type Check struct {
	Severity Severity `json:"severity"`
	Name     string   `json:"name"`
	Message  string   `json:"message"`
}

type Report struct {
	Checks []Check `json:"checks"`
}

func (r Report) HasErrors() bool {
	for _, check := range r.Checks {
		if check.Severity == SeverityError {
			return true
		}
	}
	return false
}

func (r Report) ErrorCount() int {
	count := 0
	for _, check := range r.Checks {
		if check.Severity == SeverityError {
			count++
		}
	}
	return count
}

type Checker struct {
	LookPath      func(string) (string, error)
	CheckWritable func(string) error
	ProbeServer   func(context.Context, config.Provider) (string, error)
	Stat          func(string) (os.FileInfo, error)
}

func NewChecker() *Checker {
	conv := convert.New(zap.NewNop())
	return &Checker{
		LookPath:      conv.LookPath,
		CheckWritable: ensureDirWritable,
		ProbeServer:   defaultProbeServer,
		Stat:          os.Stat,
	}
}

func (c *Checker) Check(ctx context.Context, cfg config.Config) Report {
	report := Report{Checks: []Check{}}

	if err := config.Validate(cfg); err != nil {
		var validationErr *config.ValidationError
		if errors.As(err, &validationErr) {
			for _, problem := range validationErr.Problems {
				report.Checks = append(report.Checks, Check{
					Severity: SeverityError,
					Name:     "config",
					Message:  problem,
				})
			}
		} else {
			report.Checks = append(report.Checks, Check{
				Severity: SeverityError,
				Name:     "config",
				Message:  err.Error(),
			})
		}
	} else {
		report.Checks = append(report.Checks, Check{
			Severity: SeverityInfo,
			Name:     "config",
			Message:  "configuration is valid",
		})
	}

	desc, err := c.ProbeServer(ctx, cfg.Provider)
	if err != nil {
		message := fmt.Sprintf("provider server check failed: %v", err)
		if desc != "" {
			message = fmt.Sprintf("%s is not answering: %v", desc, err)
		}
		report.Checks = append(report.Checks, Check{
			Severity: SeverityError,
			Name:     "provider",
			Message:  message,
		})
	} else {
		report.Checks = append(report.Checks, Check{
			Severity: SeverityInfo,
			Name:     "provider",
			Message:  fmt.Sprintf("%s is reachable", desc),
		})
	}

	report.Checks = append(report.Checks, c.converterCheck())
	report.Checks = append(report.Checks, c.libraryCheck(cfg.Storage.LibraryDir)...)
	report.Checks = append(report.Checks, c.storageChecks(cfg)...)

	return report
}

// converterCheck reports which conversion tool will serve formats the
// provider cannot take directly. Missing tools only degrade those formats,
// so this never blocks.
func (c *Checker) converterCheck() Check {
	conv := convert.New(zap.NewNop())
	conv.LookPath = c.LookPath
	bin, err := conv.Binary()
	if err != nil {
		return Check{
			Severity: SeverityWarn,
			Name:     "converter",
			Message:  "no image conversion tool found (HEIC/TIFF items will fail to export; install sips or ImageMagick)",
		}
	}
	return Check{
		Severity: SeverityInfo,
		Name:     "converter",
		Message:  fmt.Sprintf("image conversion via %s", bin),
	}
}

func (c *Checker) libraryCheck(libraryDir string) []Check {
	if libraryDir == "" {
		return []Check{{
			Severity: SeverityError,
			Name:     "library",
			Message:  "storage.library_dir is not configured",
		}}
	}
	expanded, err := config.ExpandPath(libraryDir)
	if err != nil {
		return []Check{{
			Severity: SeverityError,
			Name:     "library",
			Message:  fmt.Sprintf("storage.library_dir is invalid: %v", err),
		}}
	}
	info, err := c.Stat(expanded)
	if err != nil {
		return []Check{{
			Severity: SeverityError,
			Name:     "library",
			Message:  fmt.Sprintf("library directory %s is not accessible: %v", expanded, err),
		}}
	}
	if !info.IsDir() {
		return []Check{{
			Severity: SeverityError,
			Name:     "library",
			Message:  fmt.Sprintf("%s is not a directory", expanded),
		}}
	}
	return []Check{{
		Severity: SeverityInfo,
		Name:     "library",
		Message:  fmt.Sprintf("library directory %s is accessible", expanded),
	}}
}

func (c *Checker) storageChecks(cfg config.Config) []Check {
	paths, err := config.ResolvePaths(cfg.Storage)
	if err != nil {
		return []Check{{
			Severity: SeverityError,
			Name:     "storage",
			Message:  fmt.Sprintf("storage paths cannot be resolved: %v", err),
		}}
	}

	var checks []Check
	for _, probe := range []struct {
		label string
		dir   string
	}{
		{"state directory", paths.StateDir},
		{"temp directory", paths.TempDir},
	} {
		if err := c.CheckWritable(probe.dir); err != nil {
			checks = append(checks, Check{
				Severity: SeverityError,
				Name:     "storage",
				Message:  fmt.Sprintf("%s %s is not writable: %v", probe.label, probe.dir, err),
			})
			continue
		}
		checks = append(checks, Check{
			Severity: SeverityInfo,
			Name:     "storage",
			Message:  fmt.Sprintf("%s %s is writable", probe.label, probe.dir),
		})
	}
	return checks
}

func defaultProbeServer(ctx context.Context, cfg config.Provider) (string, error) {
	p, err := provider.New(cfg, zap.NewNop())
	if err != nil {
		return "", err
	}
	desc := fmt.Sprintf("%s (model %s) at %s", p.Name(), p.Model(), p.Endpoint())
	if err := p.CheckServer(ctx); err != nil {
		return desc, err
	}
	return desc, nil
}

func ensureDirWritable(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return err
	}
	file, err := os.CreateTemp(path, ".vasort-write-check-*")
	if err != nil {
		return err
	}
	name := file.Name()
	_ = file.Close()
	_ = os.Remove(name)
	return nil
}
