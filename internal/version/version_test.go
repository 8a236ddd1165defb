package version

import (
	"errors"
	"runtime/debug"
	"strings"
	"testing"
)

func stubBuild(t *testing.T, info *debug.BuildInfo, git func(args ...string) (string, error)) {
	t.Helper()

	origRead, origGit := readBuildInfo, gitDescribe
	origVersion, origCommit, origDate := Version, Commit, Date
	t.Cleanup(func() {
		readBuildInfo, gitDescribe = origRead, origGit
		Version, Commit, Date = origVersion, origCommit, origDate
		Reset()
	})

	readBuildInfo = func() (*debug.BuildInfo, bool) { return info, info != nil }
	gitDescribe = git
	Version, Commit, Date = "", "", ""
	Reset()
}

func fakeGit(tag, commit string, err error) func(args ...string) (string, error) {
	return func(args ...string) (string, error) {
		if err != nil {
			return "", err
		}
		if len(args) > 1 && args[1] == "--tags" {
			return tag, nil
		}
		return commit, nil
	}
}

func TestGet_BuildInfo(t *testing.T) {
	info := &debug.BuildInfo{
		Main: debug.Module{Version: "v1.4.0"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef0123"},
			{Key: "vcs.time", Value: "2026-10-01T10:00:00Z"},
			{Key: "vcs.modified", Value: "true"},
		},
	}
	stubBuild(t, info, fakeGit("", "", errors.New("git must not be called")))

	b := Get()
	if b.Version != "1.4.0" {
		t.Errorf("Version = %q, want 1.4.0", b.Version)
	}
	if b.Commit != "0123456789ab" {
		t.Errorf("Commit = %q, want 0123456789ab", b.Commit)
	}
	if b.Date != "2026-10-01T10:00:00Z" {
		t.Errorf("Date = %q", b.Date)
	}
	if !strings.Contains(Info(), "0123456789ab-dirty") {
		t.Errorf("Info() = %q, want dirty marker", Info())
	}
}

func TestGet_GitFallback(t *testing.T) {
	tests := []struct {
		name       string
		git        func(args ...string) (string, error)
		wantVer    string
		wantCommit string
	}{
		{
			name:       "Success",
			git:        fakeGit("v1.0.0", "abc1234", nil),
			wantVer:    "1.0.0",
			wantCommit: "abc1234",
		},
		{
			name:       "GitMissing",
			git:        fakeGit("", "", errors.New("exec: git not found")),
			wantVer:    "dev",
			wantCommit: "unknown",
		},
		{
			name:       "NoTags",
			git:        fakeGit("", "abc1234", nil),
			wantVer:    "dev",
			wantCommit: "abc1234",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stubBuild(t, &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}}, tt.git)

			b := Get()
			if b.Version != tt.wantVer {
				t.Errorf("Version = %q, want %q", b.Version, tt.wantVer)
			}
			if b.Commit != tt.wantCommit {
				t.Errorf("Commit = %q, want %q", b.Commit, tt.wantCommit)
			}
			if b.Date == "" {
				t.Error("Date should default to today")
			}
		})
	}
}

func TestGet_LdflagsWin(t *testing.T) {
	stubBuild(t, &debug.BuildInfo{Main: debug.Module{Version: "v9.9.9"}}, fakeGit("v0.0.1", "zzz", nil))
	Version, Commit, Date = "2.0.0", "feedbee", "2026-10-15"

	if got := Info(); !strings.HasPrefix(got, "flightwatch 2.0.0 (commit: feedbee, built: 2026-10-15") {
		t.Errorf("Info() = %q", got)
	}
}

func TestGet_Cached(t *testing.T) {
	calls := 0
	stubBuild(t, nil, func(...string) (string, error) {
		calls++
		return "x", nil
	})

	Get()
	Get()
	if calls != 2 {
		t.Errorf("git called %d times, want 2 (once per field, then cached)", calls)
	}
}
