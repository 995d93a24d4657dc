package version

import (
	"testing"
	"time"
)

func TestCurrent_Defaults(t *testing.T) {
	oldVersion := AppVersion
	oldCommit := GitCommit
	oldBuildTime := BuildTime
	t.Cleanup(func() {
		AppVersion = oldVersion
		GitCommit = oldCommit
		BuildTime = oldBuildTime
	})

	AppVersion = ""
	GitCommit = ""
	BuildTime = ""

	info := Current("")

	if info.Service != Unknown {
		t.Fatalf("expected service %q, got %q", Unknown, info.Service)
	}
	if info.Version != DevelopmentVersion {
		t.Fatalf("expected version %q, got %q", DevelopmentVersion, info.Version)
	}
	if info.Commit != Unknown {
		t.Fatalf("expected commit %q, got %q", Unknown, info.Commit)
	}
	if info.BuildTime != Unknown {
		t.Fatalf("expected build_time %q, got %q", Unknown, info.BuildTime)
	}
}

func TestInfo_ParseBuildTime(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	info := Info{
		BuildTime: now.Format(time.RFC3339),
	}

	parsed, ok := info.ParseBuildTime()
	if !ok {
		t.Fatalf("expected build time to be parsed")
	}
	if !parsed.Equal(now) {
		t.Fatalf("expected %s, got %s", now, parsed)
	}
}


func TestInfo_ParseBuildTimeUnknown(t *testing.T) {
	for _, value := range []string{"", Unknown, "yesterday"} {
		if _, ok := (Info{BuildTime: value}).ParseBuildTime(); ok {
			t.Errorf("expected %q not to parse", value)
		}
	}
}

func TestInfo_String(t *testing.T) {
	oldVersion, oldCommit := AppVersion, GitCommit
	t.Cleanup(func() {
		AppVersion, GitCommit = oldVersion, oldCommit
	})
	AppVersion = " v0.3.0 "
	GitCommit = "abc1234"

	got := Current("docprobe").String()
	want := "docprobe@v0.3.0 (commit=abc1234, build_time=" + Current("docprobe").BuildTime + ")"
	if got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}
