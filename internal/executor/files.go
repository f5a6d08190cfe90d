package executor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/remora-dev/remora/internal/protocol"
)

// fileRead returns the full text content of a file under the size cap.
// An absent path is a failure, never a default file.
func (e *Executor) fileRead(ctx context.Context, payload map[string]any) protocol.CommandResult {
	path, ok := stringField(payload, "path")
	if !ok || path == "" {
		return protocol.Fail("path is required")
	}

	resolved, err := e.validatePath(path)
	if err != nil {
		return protocol.FailErr(err, nil)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return protocol.Fail("cannot stat %s: %v", path, err)
	}
	if info.IsDir() {
		return protocol.Fail("%s is a directory, use file_list", path)
	}
	if info.Size() > e.cfg.MaxFileSizeBytes {
		return protocol.Fail("file too large: %d bytes (limit %d)", info.Size(), e.cfg.MaxFileSizeBytes)
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return protocol.Fail("reading %s: %v", path, err)
	}

	e.logger.InfoContext(ctx, "file read",
		slog.String("path", resolved),
		slog.Int("bytes", len(data)),
	)
	return protocol.OK(string(data))
}

// fileWrite writes content to a validated path, optionally creating
// intermediate directories.
func (e *Executor) fileWrite(ctx context.Context, payload map[string]any) protocol.CommandResult {
	path, ok := stringField(payload, "path")
	if !ok || path == "" {
		return protocol.Fail("path is required")
	}
	content, ok := stringField(payload, "content")
	if !ok {
		return protocol.Fail("content is required")
	}
	if int64(len(content)) > e.cfg.MaxFileSizeBytes {
		return protocol.Fail("content too large: %d bytes (limit %d)", len(content), e.cfg.MaxFileSizeBytes)
	}

	resolved, err := e.validatePath(path)
	if err != nil {
		return protocol.FailErr(err, nil)
	}

	if boolField(payload, "createDirectories") {
		if err := os.MkdirAll(filepath.Dir(resolved), 0750); err != nil {
			return protocol.Fail("creating parent directory: %v", err)
		}
	}

	if err := os.WriteFile(resolved, []byte(content), 0640); err != nil {
		return protocol.Fail("writing %s: %v", path, err)
	}

	e.logger.InfoContext(ctx, "file written",
		slog.String("path", resolved),
		slog.Int("bytes", len(content)),
	)
	return protocol.OK(fmt.Sprintf("wrote %d bytes to %s", len(content), resolved))
}

// fileList lists directory entries up to the cap. Per-entry stat failures
// degrade to zero size and an empty modified time rather than failing the
// whole listing.
func (e *Executor) fileList(ctx context.Context, payload map[string]any) protocol.CommandResult {
	path, ok := stringField(payload, "path")
	if !ok || path == "" {
		path = "."
	}

	resolved, err := e.validatePath(path)
	if err != nil {
		return protocol.FailErr(err, nil)
	}

	entries, err := os.ReadDir(resolved)
	if err != nil {
		return protocol.Fail("listing %s: %v", path, err)
	}

	total := len(entries)
	if len(entries) > e.cfg.MaxDirEntries {
		entries = entries[:e.cfg.MaxDirEntries]
	}

	items := make([]protocol.FileEntry, 0, len(entries))
	for _, entry := range entries {
		item := protocol.FileEntry{Name: entry.Name(), Type: "file"}
		if entry.IsDir() {
			item.Type = "directory"
		}
		if info, err := entry.Info(); err == nil {
			item.Size = info.Size()
			item.Modified = info.ModTime().UTC().Format(time.RFC3339)
		}
		items = append(items, item)
	}

	e.logger.InfoContext(ctx, "directory listed",
		slog.String("path", resolved),
		slog.Int("total", total),
		slog.Bool("truncated", total > e.cfg.MaxDirEntries),
	)
	return protocol.OK(protocol.FileListing{
		Items:     items,
		Truncated: total > e.cfg.MaxDirEntries,
		Total:     total,
	})
}
