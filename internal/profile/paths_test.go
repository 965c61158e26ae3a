package profile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matheus3301/roomchat/internal/config"
)

func TestDir(t *testing.T) {
	t.Setenv("ROOMCHAT_HOME", "")
	home, _ := os.UserHomeDir()
	got := Dir("main")
	want := filepath.Join(home, ".roomchat", "profiles", "main")
	if got != want {
		t.Errorf("Dir(main) = %q, want %q", got, want)
	}
}

func TestHomeOverride(t *testing.T) {
	base := t.TempDir()
	t.Setenv("ROOMCHAT_HOME", base)

	if got := ConfigPath(); got != filepath.Join(base, "config.toml") {
		t.Errorf("ConfigPath() = %q, want under %q", got, base)
	}
	if got := LogPath("test", "roomchat-tui"); !strings.HasSuffix(got, filepath.Join("profiles", "test", "logs", "roomchat-tui.log")) {
		t.Errorf("LogPath() = %q, want suffix profiles/test/logs/roomchat-tui.log", got)
	}
	if got := ClientConfigPath("test"); !strings.HasSuffix(got, filepath.Join("profiles", "test", "client.toml")) {
		t.Errorf("ClientConfigPath() = %q, want suffix profiles/test/client.toml", got)
	}
}

func TestEnsureDir(t *testing.T) {
	t.Setenv("ROOMCHAT_HOME", t.TempDir())

	if err := EnsureDir("test"); err != nil {
		t.Fatalf("EnsureDir() error = %v", err)
	}
	info, err := os.Stat(LogDir("test"))
	if err != nil {
		t.Fatalf("log dir not created: %v", err)
	}
	if !info.IsDir() {
		t.Error("log dir is not a directory")
	}
	if perm := info.Mode().Perm(); perm != 0700 {
		t.Errorf("log dir permission = %o, want 0700", perm)
	}
}

func TestResolve(t *testing.T) {
	t.Setenv("ROOMCHAT_HOME", t.TempDir())

	if got := Resolve(""); got != DefaultName {
		t.Errorf("Resolve(\"\") without config = %q, want %q", got, DefaultName)
	}
	if err := config.Save(ConfigPath(), &config.Config{DefaultProfile: "creator"}); err != nil {
		t.Fatal(err)
	}
	if got := Resolve(""); got != "creator" {
		t.Errorf("Resolve(\"\") = %q, want config default", got)
	}
	if got := Resolve("learner"); got != "learner" {
		t.Errorf("Resolve(learner) = %q, want flag override", got)
	}
}
