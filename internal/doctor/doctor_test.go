package doctor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/jaa/vasort/internal/config"
)

func healthyChecker() *Checker {
	return &Checker{
		LookPath:      func(name string) (string, error) { return "/usr/bin/" + name, nil },
		CheckWritable: func(string) error { return nil },
		ProbeServer: func(context.Context, config.Provider) (string, error) {
			return "ollama (model qwen2.5vl:3b) at http://127.0.0.1:11434/api/generate", nil
		},
		Stat: os.Stat,
	}
}

func healthyConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Storage.LibraryDir = t.TempDir()
	cfg.Storage.StateDir = t.TempDir()
	return cfg
}

func findCheck(report Report, name string) (Check, bool) {
	for _, check := range report.Checks {
		if check.Name == name {
			return check, true
		}
	}
	return Check{}, false
}

func TestDoctorHealthyEnvironment(t *testing.T) {
	report := healthyChecker().Check(context.Background(), healthyConfig(t))
	if report.HasErrors() {
		t.Fatalf("unexpected errors: %+v", report.Checks)
	}
	provider, ok := findCheck(report, "provider")
	if !ok || provider.Severity != SeverityInfo {
		t.Fatalf("provider check = %+v", provider)
	}
	converter, ok := findCheck(report, "converter")
	if !ok || converter.Severity != SeverityInfo {
		t.Fatalf("converter check = %+v", converter)
	}
}

func TestDoctorProviderUnreachable(t *testing.T) {
	checker := healthyChecker()
	checker.ProbeServer = func(context.Context, config.Provider) (string, error) {
		return "ollama (model qwen2.5vl:3b) at http://127.0.0.1:11434/api/generate",
			errors.New("connection refused")
	}

	report := checker.Check(context.Background(), healthyConfig(t))
	if !report.HasErrors() {
		t.Fatal("expected provider error")
	}
	check, _ := findCheck(report, "provider")
	if check.Severity != SeverityError || !strings.Contains(check.Message, "not answering") {
		t.Fatalf("provider check = %+v", check)
	}
}

func TestDoctorMissingConverterIsOnlyWarning(t *testing.T) {
	checker := healthyChecker()
	checker.LookPath = func(string) (string, error) { return "", fmt.Errorf("not found") }

	report := checker.Check(context.Background(), healthyConfig(t))
	if report.HasErrors() {
		t.Fatalf("converter absence must not be an error: %+v", report.Checks)
	}
	check, _ := findCheck(report, "converter")
	if check.Severity != SeverityWarn {
		t.Fatalf("converter check = %+v", check)
	}
}

func TestDoctorMissingLibraryDir(t *testing.T) {
	cfg := healthyConfig(t)
	cfg.Storage.LibraryDir = cfg.Storage.LibraryDir + "-gone"

	report := healthyChecker().Check(context.Background(), cfg)
	if !report.HasErrors() {
		t.Fatal("expected library error")
	}
	check, _ := findCheck(report, "library")
	if check.Severity != SeverityError {
		t.Fatalf("library check = %+v", check)
	}
}

func TestDoctorUnwritableStateDir(t *testing.T) {
	checker := healthyChecker()
	checker.CheckWritable = func(path string) error { return fmt.Errorf("read-only filesystem") }

	report := checker.Check(context.Background(), healthyConfig(t))
	if !report.HasErrors() {
		t.Fatal("expected storage error")
	}
	check, _ := findCheck(report, "storage")
	if check.Severity != SeverityError || !strings.Contains(check.Message, "not writable") {
		t.Fatalf("storage check = %+v", check)
	}
}

func TestDoctorReportsConfigProblems(t *testing.T) {
	cfg := healthyConfig(t)
	cfg.Task.Prompt = ""

	report := healthyChecker().Check(context.Background(), cfg)
	if !report.HasErrors() {
		t.Fatal("expected config error")
	}
	check, _ := findCheck(report, "config")
	if check.Severity != SeverityError || !strings.Contains(check.Message, "task.prompt") {
		t.Fatalf("config check = %+v", check)
	}
}

func TestReportErrorCount(t *testing.T) {
	report := Report{Checks: []Check{
		{Severity: SeverityInfo},
		{Severity: SeverityError},
		{Severity: SeverityWarn},
		{Severity: SeverityError},
	}}
	if report.ErrorCount() != 2 {
		t.Fatalf("ErrorCount = %d, want 2", report.ErrorCount())
	}
	if !report.HasErrors() {
		t.Fatal("HasErrors = false")
	}
}
