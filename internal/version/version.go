// Package version reports build metadata for the flightwatch binary.
package version

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"runtime/debug"
	"strings"
	"sync"
	"time"
)

// Set via -ldflags "-X github.com/j-veylop/flightwatch/internal/version.Version=...".
var (
	Version = ""
	Commit  = ""
	Date    = ""
)

var (
	mu       sync.Mutex
	resolved *Build

	readBuildInfo = debug.ReadBuildInfo
	gitDescribe   = runGit
)

// Build is the resolved version information.
type Build struct {
	Version  string `json:"version"`
	Commit   string `json:"commit"`
	Date     string `json:"date"`
	Modified bool   `json:"modified,omitempty"`
}

// Get resolves build metadata once. Precedence is ldflags, then the module
// build info embedded by the Go toolchain, then git, then placeholders.
func Get() Build {
	mu.Lock()
	defer mu.Unlock()

	if resolved == nil {
		b := resolve()
		resolved = &b
	}
	return *resolved
}

// Reset drops the cached result. Used by tests.
func Reset() {
	mu.Lock()
	resolved = nil
	mu.Unlock()
}

func resolve() Build {
	b := Build{Version: Version, Commit: Commit, Date: Date}

	if info, ok := readBuildInfo(); ok {
		if b.Version == "" && info.Main.Version != "" && info.Main.Version != "(devel)" {
			b.Version = strings.TrimPrefix(info.Main.Version, "v")
		}
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				if b.Commit == "" {
					b.Commit = shortRevision(s.Value)
				}
			case "vcs.time":
				if b.Date == "" {
					b.Date = s.Value
				}
			case "vcs.modified":
				b.Modified = s.Value == "true"
			}
		}
	}

	if b.Commit == "" {
		b.Commit = gitOr("unknown", "describe", "--always", "--dirty")
	}
	if b.Version == "" {
		b.Version = strings.TrimPrefix(gitOr("dev", "describe", "--tags", "--abbrev=0"), "v")
	}
	if b.Date == "" {
		b.Date = time.Now().Format("2006-01-02")
	}
	return b
}

func shortRevision(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}

func gitOr(fallback string, args ...string) string {
	out, err := gitDescribe(args...)
	if err != nil || out == "" {
		return fallback
	}
	return out
}

func runGit(args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, "git", args...).Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// Info returns a one-line description of the build.
func Info() string {
	b := Get()
	commit := b.Commit
	if b.Modified && !strings.HasSuffix(commit, "-dirty") {
		commit += "-dirty"
	}
	return fmt.Sprintf("flightwatch %s (commit: %s, built: %s, %s/%s)",
		b.Version, commit, b.Date, runtime.GOOS, runtime.GOARCH)
}
