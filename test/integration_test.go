//go:build integration

package test_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

var testBinary string

func TestMain(m *testing.M) {
	testBinary = os.Getenv("MEETCTL_TEST_BIN")
	if testBinary == "" {
		fmt.Fprintln(os.Stderr, "MEETCTL_TEST_BIN not set; run: go build -o /tmp/meetctl . && MEETCTL_TEST_BIN=/tmp/meetctl go test -tags integration ./test/")
		os.Exit(1)
	}
	os.Exit(m.Run())
}

type envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// meetingServer mimics the meeting server: the two POST endpoints and a
// push channel that sends transcript lines while a meeting is recording.
type meetingServer struct {
	*httptest.Server

	mu        sync.Mutex
	recording bool
	startBody string
	lines     []map[string]string
}

func newMeetingServer(t *testing.T) *meetingServer {
	t.Helper()
	s := &meetingServer{startBody: `{"status":"success","message":"Meeting started"}`}
	mux := http.NewServeMux()
	mux.HandleFunc("/start_meeting", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		body := s.startBody
		s.recording = strings.Contains(body, "success")
		s.mu.Unlock()
		w.Write([]byte(body))
	})
	mux.HandleFunc("/end_meeting", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.recording = false
		s.mu.Unlock()
		w.Write([]byte(`{"status":"success","message":"Meeting ended","summary":"Agreed to ship on Friday."}`))
	})
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()
		sent := 0
		for {
			s.mu.Lock()
			var pending []map[string]string
			if s.recording {
				pending = s.lines[sent:]
				sent = len(s.lines)
			}
			s.mu.Unlock()
			for _, line := range pending {
				if err := wsjson.Write(r.Context(), conn, envelope{Event: "transcript_update", Data: line}); err != nil {
					return
				}
			}
			select {
			case <-r.Context().Done():
				return
			case <-time.After(20 * time.Millisecond):
			}
		}
	})
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func cmds(parts ...string) string {
	return strings.Join(parts, "\n") + "\n"
}

func runMeetctl(t *testing.T, stdin string, args ...string) (stdout, logDir string) {
	t.Helper()
	logDir = t.TempDir()
	cmdArgs := append([]string{"run", "--logpath", logDir}, args...)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	cmd := exec.CommandContext(ctx, testBinary, cmdArgs...)
	cmd.Stdin = strings.NewReader(stdin)
	cmd.Env = append(os.Environ(), "XDG_CONFIG_HOME="+t.TempDir(), "MEETCTL_RECONNECT_INTERVAL=100ms")

	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("meetctl exited with error: %v\noutput: %s", err, out)
	}
	return string(out), logDir
}

func readLog(t *testing.T, logDir, filename string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(logDir, filename))
	if err != nil {
		if os.IsNotExist(err) {
			return ""
		}
		t.Fatalf("failed to read %s: %v", filename, err)
	}
	return string(data)
}

func TestSessionWithTranscript(t *testing.T) {
	srv := newMeetingServer(t)
	srv.lines = []map[string]string{
		{"timestamp": "10:00:01", "speaker": "Alice", "text": "Good morning"},
		{"timestamp": "10:00:05", "speaker": "Bob", "text": "Let's start with the release"},
	}

	out, logDir := runMeetctl(t, cmds("SLEEP 300", "START", "WAIT", "SLEEP 500", "END", "WAIT", "STATUS", "QUIT"),
		"--server", srv.URL)

	for _, want := range []string{
		"status: Connected to server",
		"status: Recording in progress...",
		"transcript: [10:00:01] Alice: Good morning",
		"transcript: [10:00:05] Bob: Let's start with the release",
		"status: Meeting ended",
		"summary: Agreed to ship on Friday.",
		"controls: start=enabled end=disabled",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q\n%s", want, out)
		}
	}
	if strings.Index(out, "Alice") > strings.Index(out, "Bob") {
		t.Error("transcript out of order")
	}

	transcript := readLog(t, logDir, "transcript_log.txt")
	if strings.Count(transcript, "\n") != 2 {
		t.Errorf("expected 2 transcript log lines, got:\n%s", transcript)
	}
	diag := readLog(t, logDir, "diagnostics_log.txt")
	if strings.Count(diag, "request") < 2 {
		t.Error("expected 2 request entries in diagnostics")
	}
	if !strings.Contains(diag, "conn=reused") {
		t.Error("expected conn=reused in diagnostics")
	}
}

func TestStartRejected(t *testing.T) {
	srv := newMeetingServer(t)
	srv.startBody = `{"status":"error","message":"A meeting is already in progress"}`

	out, _ := runMeetctl(t, cmds("START", "WAIT", "END", "WAIT", "QUIT"), "--server", srv.URL)

	if !strings.Contains(out, "status: Error: A meeting is already in progress") {
		t.Errorf("missing error status:\n%s", out)
	}
	if !strings.Contains(out, "end ignored") {
		t.Errorf("end should be ignored while idle:\n%s", out)
	}
}

func TestServerDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	out, logDir := runMeetctl(t, cmds("START", "WAIT", "QUIT"), "--server", url)

	if !strings.Contains(out, "status: Error starting meeting") {
		t.Errorf("missing start failure:\n%s", out)
	}
	if !strings.Contains(readLog(t, logDir, "diagnostics_log.txt"), "start meeting") {
		t.Error("expected start failure in diagnostics")
	}
}

func TestMeetingsJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":7,"start_time":"2024-05-01 10:00","summary":"s"}]`))
	}))
	defer srv.Close()

	cmd := exec.Command(testBinary, "meetings", "--server", srv.URL, "--logpath", t.TempDir(), "-o", "json")
	cmd.Env = append(os.Environ(), "XDG_CONFIG_HOME="+t.TempDir())
	out, err := cmd.Output()
	if err != nil {
		t.Fatalf("meetings: %v", err)
	}
	var got []map[string]any
	if err := json.Unmarshal(out, &got); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(got) != 1 || got[0]["id"] != float64(7) {
		t.Errorf("unexpected meetings: %v", got)
	}
}
