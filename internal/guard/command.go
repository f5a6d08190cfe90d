package guard

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrBlockedCommand marks a shell command rejected by the validator.
// The sentinel text is part of the wire contract: result errors for
// rejected commands contain "Blocked".
var ErrBlockedCommand = errors.New("Blocked command")

// blockedPattern pairs a compiled pattern with a human-readable label.
type blockedPattern struct {
	re    *regexp.Regexp
	label string
}

// blockedPatterns enumerates known catastrophic command idioms. This is
// explicitly a blocklist, not a sandbox: a command matching none of the
// patterns runs with full shell semantics. The set is intentionally small
// and is not meant to be exhaustive; every addition changes what
// operators are allowed to run remotely.
var blockedPatterns = []blockedPattern{
	{
		// rm with recursive+force flags targeting the filesystem root.
		re:    regexp.MustCompile(`(?:^|[;&|]\s*)rm\s+(?:-[a-zA-Z]+\s+)*-[a-zA-Z]*[rR][a-zA-Z]*\s+/+\s*(?:$|[;&|#])`),
		label: "recursive deletion of the filesystem root",
	},
	{
		re:    regexp.MustCompile(`(?:^|[\s;&|])mkfs(?:\.[a-z0-9]+)?\b`),
		label: "filesystem formatting",
	},
	{
		re:    regexp.MustCompile(`(?:^|[\s;&|])dd\s+[^;|&]*of=/dev/(?:sd|hd|vd|xvd|nvme|mmcblk|disk)`),
		label: "raw write to a block device",
	},
	{
		re:    regexp.MustCompile(`>\s*/dev/(?:sd|hd|vd|xvd|nvme|mmcblk|disk)`),
		label: "output redirection onto a block device",
	},
	{
		re:    regexp.MustCompile(`:\(\)\s*\{\s*:\s*\|\s*:\s*&\s*\}\s*;?\s*:`),
		label: "fork bomb",
	},
}

// ValidateCommand rejects command strings matching a known destructive
// pattern. Returns nil for everything else.
func ValidateCommand(command string) error {
	if command == "" {
		return fmt.Errorf("command must not be empty")
	}
	for _, p := range blockedPatterns {
		if p.re.MatchString(command) {
			return fmt.Errorf("%w: matches %s pattern", ErrBlockedCommand, p.label)
		}
	}
	return nil
}
