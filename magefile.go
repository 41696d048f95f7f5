//go:build mage

package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

var (
	CmdDir    = "cmd/provflow"
	BuildDir  = "bin"
	ReportDir = "reports"
)

func sh(name string, args ...string) error {
	return shEnv(nil, name, args...)
}

func shEnv(env map[string]string, name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Env = os.Environ()
	for k, v := range env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	cmd.Stdout, cmd.Stderr, cmd.Stdin = os.Stdout, os.Stderr, os.Stdin
	return cmd.Run()
}

func out(name string, args ...string) (string, error) {
	var buf bytes.Buffer
	cmd := exec.Command(name, args...)
	cmd.Stdout, cmd.Stderr = &buf, &buf
	err := cmd.Run()
	return strings.TrimSpace(buf.String()), err
}

func which(bin string) bool {
	_, err := exec.LookPath(bin)
	return err == nil
}

func binary() string {
	name := "provflow"
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	return filepath.Join(BuildDir, name)
}

// Bootstrap downloads modules, installs tooling and fetches the Playwright browser.
func Bootstrap() error {
	for _, step := range []func() error{ModDownload, Deps, Browsers} {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

// ModDownload prefetches module dependencies.
func ModDownload() error {
	return sh("go", "mod", "download", "all")
}

// Deps installs linters and vulnerability scanning.
func Deps() error {
	for _, pkg := range []string{
		"golang.org/x/tools/cmd/goimports@latest",
		"honnef.co/go/tools/cmd/staticcheck@latest",
		"golang.org/x/vuln/cmd/govulncheck@latest",
	} {
		if err := sh("go", "install", pkg); err != nil {
			return err
		}
	}
	return nil
}

// Browsers installs the Playwright driver and Chromium used by `provflow run`.
func Browsers() error {
	return sh("go", "run", "github.com/playwright-community/playwright-go/cmd/playwright", "install", "--with-deps", "chromium")
}

// Build compiles ./bin/provflow.
func Build() error {
	if err := os.MkdirAll(BuildDir, 0o755); err != nil {
		return err
	}
	return sh("go", "build", "-trimpath", "-ldflags", "-s -w", "-o", binary(), "./"+CmdDir)
}

// Flow runs the full provisioning flow from source. Headed unless HEADLESS is set.
func Flow() error {
	env := map[string]string{}
	if os.Getenv("HEADLESS") == "" {
		env["HEADLESS"] = "false"
	}
	return shEnv(env, "go", "run", "./"+CmdDir, "run")
}

// Serve starts the run report browser from source.
func Serve() error {
	return sh("go", "run", "./"+CmdDir, "serve")
}

// Test runs unit tests with the race detector. NO_RACE=1 skips it.
func Test() error {
	if os.Getenv("NO_RACE") == "1" {
		return sh("go", "test", "./...")
	}
	return shEnv(map[string]string{"CGO_ENABLED": "1"}, "go", "test", "-race", "./...")
}

// Cover writes coverage.out and coverage.html.
func Cover() error {
	if err := sh("go", "test", "-coverprofile=coverage.out", "./..."); err != nil {
		return err
	}
	return sh("go", "tool", "cover", "-html=coverage.out", "-o", "coverage.html")
}

// Lint runs go vet and staticcheck.
func Lint() error {
	if !which("staticcheck") {
		return errors.New("staticcheck not found; run 'mage deps'")
	}
	if err := sh("go", "vet", "./..."); err != nil {
		return err
	}
	return sh("staticcheck", "./...")
}

// Vuln checks for known vulnerabilities.
func Vuln() error {
	if !which("govulncheck") {
		return errors.New("govulncheck not found; run 'mage deps'")
	}
	return sh("govulncheck", "./...")
}

// FmtCheck fails when gofmt or goimports would rewrite a file.
func FmtCheck() error {
	var msgs []string
	if files, _ := out("gofmt", "-l", "."); files != "" {
		msgs = append(msgs, "Needs gofmt:\n"+files)
	}
	if which("goimports") {
		if files, _ := out("goimports", "-l", "."); files != "" {
			msgs = append(msgs, "Needs goimports:\n"+files)
		}
	}
	if len(msgs) > 0 {
		return errors.New(strings.Join(msgs, "\n\n"))
	}
	return nil
}

// TidyCheck fails when go mod tidy changes go.mod or go.sum.
func TidyCheck() error {
	before, _ := out("git", "status", "--porcelain", "--", "go.mod", "go.sum")
	if err := sh("go", "mod", "tidy"); err != nil {
		return err
	}
	after, _ := out("git", "status", "--porcelain", "--", "go.mod", "go.sum")
	if before != after {
		diff, _ := out("git", "--no-pager", "diff", "--", "go.mod", "go.sum")
		return fmt.Errorf("go.mod/go.sum not tidy:\n%s", diff)
	}
	return nil
}

// Clean removes build output, coverage files and run reports.
func Clean() error {
	for _, p := range []string{BuildDir, ReportDir, "coverage.out", "coverage.html"} {
		if err := os.RemoveAll(p); err != nil {
			return err
		}
	}
	return nil
}

// Verify runs every read-only check followed by build and tests.
func Verify() error {
	for _, step := range []func() error{FmtCheck, TidyCheck, Lint, Vuln, Build, Test} {
		if err := step(); err != nil {
			return err
		}
	}
	fmt.Println("build and checks passed")
	return nil
}
