// Package protocol defines the command and result types exchanged between
// the agent and the control plane. All payloads are JSON-encoded; commands
// are immutable once received.
package protocol

import "fmt"

// CommandType identifies the kind of remote command.
type CommandType string

const (
	TypeExecuteCommand CommandType = "execute_command"
	TypeFileRead       CommandType = "file_read"
	TypeFileWrite      CommandType = "file_write"
	TypeFileList       CommandType = "file_list"
	TypeProcessList    CommandType = "process_list"
	TypeProcessKill    CommandType = "process_kill"
)

// CommandSummary is the lightweight form returned by the pending-commands poll.
// The full payload is fetched separately per command.
type CommandSummary struct {
	CommandID string      `json:"command_id"`
	Type      CommandType `json:"type"`
}

// AgentCommand is a fully fetched command ready for execution.
// Payload fields depend on Type; see the executor package for shapes.
type AgentCommand struct {
	CommandID string         `json:"command_id"`
	Type      CommandType    `json:"type"`
	Payload   map[string]any `json:"payload"`
}

// CommandResult is the uniform outcome submitted back for every command.
// Exactly one of a success payload or an error message is meaningful, but
// Data may accompany Error for partial output (stdout before a failed exit).
type CommandResult struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// OK builds a success result carrying the given data.
func OK(data any) CommandResult {
	return CommandResult{Success: true, Data: data}
}

// Fail builds a failure result with a formatted error message.
func Fail(format string, args ...any) CommandResult {
	return CommandResult{Success: false, Error: fmt.Sprintf(format, args...)}
}

// FailErr builds a failure result from an error, preserving partial data.
func FailErr(err error, data any) CommandResult {
	return CommandResult{Success: false, Error: err.Error(), Data: data}
}

// FileEntry describes one entry in a directory listing.
type FileEntry struct {
	Name     string `json:"name"`
	Type     string `json:"type"` // "file" or "directory"
	Size     int64  `json:"size"`
	Modified string `json:"modified"` // RFC 3339, empty when stat failed
}

// FileListing is the structured data payload of a file_list result.
// Truncated is set when the directory held more entries than the cap;
// Total always reports the real count.
type FileListing struct {
	Items     []FileEntry `json:"items"`
	Truncated bool        `json:"truncated"`
	Total     int         `json:"total"`
}
