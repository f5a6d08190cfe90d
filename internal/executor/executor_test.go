package executor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/remora-dev/remora/internal/protocol"
)

func newTestExecutor() *Executor {
	return New(Config{}, nil, testLogger())
}

func execute(e *Executor, cmdType protocol.CommandType, payload map[string]any) protocol.CommandResult {
	return e.Execute(context.Background(), &protocol.AgentCommand{
		CommandID: "test-cmd",
		Type:      cmdType,
		Payload:   payload,
	})
}

func TestExecuteCommandEcho(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix shell")
	}

	res := execute(newTestExecutor(), protocol.TypeExecuteCommand, map[string]any{"command": "echo hello"})
	if !res.Success {
		t.Fatalf("execute_command failed: %s", res.Error)
	}
	if res.Data != "hello\n" {
		t.Errorf("Data = %q, want %q", res.Data, "hello\n")
	}
}

func TestExecuteCommandBlocked(t *testing.T) {
	res := execute(newTestExecutor(), protocol.TypeExecuteCommand, map[string]any{"command": "rm -rf /"})
	if res.Success {
		t.Fatal("destructive command succeeded, want rejection")
	}
	if !strings.Contains(res.Error, "Blocked") {
		t.Errorf("Error = %q, want Blocked", res.Error)
	}
}

func TestExecuteCommandMissing(t *testing.T) {
	res := execute(newTestExecutor(), protocol.TypeExecuteCommand, map[string]any{})
	if res.Success || !strings.Contains(res.Error, "command is required") {
		t.Errorf("result = %+v, want missing-command failure", res)
	}
}

func TestExecuteCommandTimeoutBounds(t *testing.T) {
	e := newTestExecutor()

	for _, timeout := range []any{float64(0), float64(-5), float64(MaxCommandTimeout.Milliseconds() + 1), float64(1.5), "10s"} {
		name := fmt.Sprintf("%v", timeout)
		t.Run(name, func(t *testing.T) {
			res := execute(e, protocol.TypeExecuteCommand, map[string]any{
				"command": "echo never runs",
				"timeout": timeout,
			})
			if res.Success {
				t.Fatalf("timeout %v accepted, want rejection", timeout)
			}
			if !strings.Contains(res.Error, "timeout") {
				t.Errorf("Error = %q, want timeout bound message", res.Error)
			}
		})
	}
}

func TestExecuteCommandBlockedCwd(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix path layout")
	}

	res := execute(newTestExecutor(), protocol.TypeExecuteCommand, map[string]any{
		"command": "ls",
		"cwd":     "/etc",
	})
	if res.Success || !strings.Contains(res.Error, "Access denied") {
		t.Errorf("result = %+v, want access denial", res)
	}
}

func TestFileReadBlockedPath(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix path layout")
	}

	res := execute(newTestExecutor(), protocol.TypeFileRead, map[string]any{"path": "/etc/shadow"})
	if res.Success {
		t.Fatal("read of /etc/shadow succeeded, want rejection")
	}
	if !strings.Contains(res.Error, "Access denied") {
		t.Errorf("Error = %q, want Access denied", res.Error)
	}
}

func TestFileReadMissingPath(t *testing.T) {
	res := execute(newTestExecutor(), protocol.TypeFileRead, map[string]any{})
	if res.Success || !strings.Contains(res.Error, "path is required") {
		t.Errorf("result = %+v, want missing-path failure", res)
	}
}

func TestFileReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "note.txt")
	if err := os.WriteFile(path, []byte("contents\n"), 0640); err != nil {
		t.Fatal(err)
	}

	res := execute(newTestExecutor(), protocol.TypeFileRead, map[string]any{"path": path})
	if !res.Success {
		t.Fatalf("file_read failed: %s", res.Error)
	}
	if res.Data != "contents\n" {
		t.Errorf("Data = %q, want file contents", res.Data)
	}
}

func TestFileReadTooLarge(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "big.bin")
	if err := os.WriteFile(path, make([]byte, 32), 0640); err != nil {
		t.Fatal(err)
	}

	e := New(Config{MaxFileSizeBytes: 16}, nil, testLogger())
	res := execute(e, protocol.TypeFileRead, map[string]any{"path": path})
	if res.Success || !strings.Contains(res.Error, "too large") {
		t.Errorf("result = %+v, want size rejection", res)
	}
}

func TestFileWriteTooLarge(t *testing.T) {
	e := New(Config{MaxFileSizeBytes: 8}, nil, testLogger())
	res := execute(e, protocol.TypeFileWrite, map[string]any{
		"path":    filepath.Join(t.TempDir(), "x.txt"),
		"content": strings.Repeat("a", 9), // one byte over the cap
	})
	if res.Success || !strings.Contains(res.Error, "too large") {
		t.Errorf("result = %+v, want size rejection", res)
	}
}

func TestFileWriteMissingContent(t *testing.T) {
	res := execute(newTestExecutor(), protocol.TypeFileWrite, map[string]any{
		"path": filepath.Join(t.TempDir(), "x.txt"),
	})
	if res.Success || !strings.Contains(res.Error, "content is required") {
		t.Errorf("result = %+v, want missing-content failure", res)
	}
}

func TestFileWriteCreatesDirectories(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a", "b", "out.txt")

	res := execute(newTestExecutor(), protocol.TypeFileWrite, map[string]any{
		"path":              path,
		"content":           "data",
		"createDirectories": true,
	})
	if !res.Success {
		t.Fatalf("file_write failed: %s", res.Error)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("written file missing: %v", err)
	}
	if string(got) != "data" {
		t.Errorf("content = %q, want %q", got, "data")
	}
}

func TestFileWriteWithoutCreateDirectoriesFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "out.txt")
	res := execute(newTestExecutor(), protocol.TypeFileWrite, map[string]any{
		"path":    path,
		"content": "data",
	})
	if res.Success {
		t.Error("write through missing directory succeeded, want failure")
	}
}

func TestFileListTruncation(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 5; i++ {
		if err := os.WriteFile(filepath.Join(dir, fmt.Sprintf("f%d", i)), []byte("x"), 0640); err != nil {
			t.Fatal(err)
		}
	}

	e := New(Config{MaxDirEntries: 3}, nil, testLogger())
	res := execute(e, protocol.TypeFileList, map[string]any{"path": dir})
	if !res.Success {
		t.Fatalf("file_list failed: %s", res.Error)
	}

	listing, ok := res.Data.(protocol.FileListing)
	if !ok {
		t.Fatalf("Data is %T, want FileListing", res.Data)
	}
	if len(listing.Items) != 3 {
		t.Errorf("items = %d, want 3", len(listing.Items))
	}
	if !listing.Truncated {
		t.Error("Truncated = false, want true")
	}
	if listing.Total != 5 {
		t.Errorf("Total = %d, want 5", listing.Total)
	}
}

func TestFileListEntryTypes(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "plain"), []byte("x"), 0640); err != nil {
		t.Fatal(err)
	}

	res := execute(newTestExecutor(), protocol.TypeFileList, map[string]any{"path": dir})
	if !res.Success {
		t.Fatalf("file_list failed: %s", res.Error)
	}

	listing := res.Data.(protocol.FileListing)
	types := make(map[string]string)
	for _, item := range listing.Items {
		types[item.Name] = item.Type
	}
	if types["sub"] != "directory" {
		t.Errorf("sub type = %q, want directory", types["sub"])
	}
	if types["plain"] != "file" {
		t.Errorf("plain type = %q, want file", types["plain"])
	}
}

func TestProcessList(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix shell")
	}

	res := execute(newTestExecutor(), protocol.TypeProcessList, nil)
	if !res.Success {
		t.Fatalf("process_list failed: %s", res.Error)
	}
	if data, _ := res.Data.(string); data == "" {
		t.Error("process listing is empty")
	}
}

func TestProcessKillSIGKILLRejected(t *testing.T) {
	res := execute(newTestExecutor(), protocol.TypeProcessKill, map[string]any{
		"pid":    float64(1),
		"signal": "SIGKILL",
	})
	if res.Success {
		t.Fatal("SIGKILL accepted, want rejection")
	}
	if !strings.Contains(res.Error, "not allowed") {
		t.Errorf("Error = %q, want not allowed", res.Error)
	}
}

func TestProcessKillInvalidPID(t *testing.T) {
	e := newTestExecutor()

	tests := []struct {
		name    string
		payload map[string]any
	}{
		{"missing", map[string]any{}},
		{"negative", map[string]any{"pid": float64(-1)}},
		{"zero", map[string]any{"pid": float64(0)}},
		{"fractional", map[string]any{"pid": float64(1.5)}},
		{"string", map[string]any{"pid": "123"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if res := execute(e, protocol.TypeProcessKill, tc.payload); res.Success {
				t.Errorf("pid payload %v accepted, want rejection", tc.payload)
			}
		})
	}
}

func TestProcessKillDeliversSignal(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix signals")
	}

	victim := exec.Command("sleep", "30")
	if err := victim.Start(); err != nil {
		t.Fatal(err)
	}
	defer func() {
		_ = victim.Process.Kill()
		_ = victim.Wait()
	}()

	res := execute(newTestExecutor(), protocol.TypeProcessKill, map[string]any{
		"pid":    float64(victim.Process.Pid),
		"signal": "SIGTERM",
	})
	if !res.Success {
		t.Fatalf("process_kill failed: %s", res.Error)
	}
}

func TestUnknownCommandType(t *testing.T) {
	res := execute(newTestExecutor(), protocol.CommandType("reboot_host"), nil)
	if res.Success {
		t.Fatal("unknown type succeeded, want failure")
	}
	if !strings.Contains(res.Error, "unknown command type") {
		t.Errorf("Error = %q, want unknown command type", res.Error)
	}
}
