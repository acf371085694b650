package log

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func setupLogDir(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	SetDir(tmp)
	t.Cleanup(func() { Close(); SetDir("") })
	return tmp
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestResolveDirFlag(t *testing.T) {
	got, err := ResolveDir("/tmp/mylog")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/tmp/mylog" {
		t.Errorf("got %q, want /tmp/mylog", got)
	}
}

func TestResolveDirFlagRelative(t *testing.T) {
	got, err := ResolveDir("logs")
	if err != nil {
		t.Fatal(err)
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(wd, "logs")
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestResolveDirEnv(t *testing.T) {
	t.Setenv("MEETCTL_LOG_PATH", "/tmp/meetctl-env-log")
	got, err := ResolveDir("")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/tmp/meetctl-env-log" {
		t.Errorf("got %q, want /tmp/meetctl-env-log", got)
	}
}

func TestResolveDirFlagBeatsEnv(t *testing.T) {
	t.Setenv("MEETCTL_LOG_PATH", "/tmp/meetctl-env-log")
	got, err := ResolveDir("/tmp/flag-log")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/tmp/flag-log" {
		t.Errorf("got %q, want /tmp/flag-log", got)
	}
}

func TestResolveDirDefault(t *testing.T) {
	t.Setenv("MEETCTL_LOG_PATH", "")
	got, err := ResolveDir("")
	if err != nil {
		t.Fatal(err)
	}
	if got == "" {
		t.Error("expected non-empty default directory")
	}
}

func TestInitCreatesFiles(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init("client-1"); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{DiagnosticsFile, TranscriptFile} {
		path := filepath.Join(tmp, name)
		if _, err := os.Stat(path); err != nil {
			t.Errorf("%s not created: %v", name, err)
		}
	}
}

func TestDiagnosticsCarryClientID(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init("abc-123"); err != nil {
		t.Fatal(err)
	}
	SessionStart("http://localhost:5000", "tui")
	ChannelEvent("connect")
	Close()

	diag := readFile(t, filepath.Join(tmp, DiagnosticsFile))
	for _, want := range []string{"session_start", "client=abc-123", "event=connect"} {
		if !strings.Contains(diag, want) {
			t.Errorf("diagnostics missing %q, got: %q", want, diag)
		}
	}
}

func TestRequestMetrics(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(""); err != nil {
		t.Fatal(err)
	}
	RequestMetrics(RequestMetricsData{Method: "POST", Path: "/start_meeting", StatusCode: 200, ConnReused: true})
	Close()

	diag := readFile(t, filepath.Join(tmp, DiagnosticsFile))
	for _, want := range []string{"path=/start_meeting", "code=200", "conn=reused"} {
		if !strings.Contains(diag, want) {
			t.Errorf("diagnostics missing %q, got: %q", want, diag)
		}
	}
}

func TestTranscriptLine(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(""); err != nil {
		t.Fatal(err)
	}

	TranscriptLine("10:00:01", "Alice", "hello world")

	line := readFile(t, filepath.Join(tmp, TranscriptFile))
	if !strings.Contains(line, "[10:00:01] Alice: hello world") {
		t.Errorf("transcript_log.txt missing entry, got: %q", line)
	}
	// format: "2006-01-02 15:04:05\t[pid]\t[ts] speaker: text\n"
	if strings.Count(line, "\t") != 2 {
		t.Errorf("expected tab-separated format, got: %q", line)
	}
}

func TestHelpersNoopBeforeInit(t *testing.T) {
	setupLogDir(t)
	// none of these may panic or create files
	Info("x")
	Errorf("y %d", 1)
	TranscriptLine("t", "s", "x")
	SessionEnd(3)
	if entries, _ := os.ReadDir(Dir()); len(entries) != 0 {
		t.Errorf("expected no files before Init, got %d", len(entries))
	}
}

func TestCloseIdempotent(t *testing.T) {
	setupLogDir(t)

	if err := Init(""); err != nil {
		t.Fatal(err)
	}
	Close()
	Close() // should not panic
}
