package guard

import (
	"errors"
	"testing"
)

func TestValidateCommandBlocked(t *testing.T) {
	tests := []struct {
		name    string
		command string
	}{
		{"rm rf root", "rm -rf /"},
		{"rm fr root", "rm -fr /"},
		{"rm rf root chained", "true; rm -rf /"},
		{"rm with extra flags", "rm -v -rf /"},
		{"mkfs", "mkfs.ext4 /dev/sda1"},
		{"mkfs bare", "mkfs /dev/sdb"},
		{"dd to disk", "dd if=/dev/zero of=/dev/sda bs=1M"},
		{"redirect to disk", "echo junk > /dev/sda"},
		{"fork bomb", ":(){ :|:& };:"},
		{"fork bomb spaced", ":() { : | : & } ; :"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := ValidateCommand(tc.command); !errors.Is(err, ErrBlockedCommand) {
				t.Errorf("ValidateCommand(%q) = %v, want ErrBlockedCommand", tc.command, err)
			}
		})
	}
}

func TestValidateCommandAllowed(t *testing.T) {
	tests := []struct {
		name    string
		command string
	}{
		{"echo", "echo hello"},
		{"rm single file", "rm /tmp/x.txt"},
		{"rm rf subdir", "rm -rf /tmp/build"},
		{"grep in etc is fine here", "grep root /etc/passwd"},
		{"dd to file", "dd if=/dev/zero of=/tmp/blob bs=1M count=1"},
		{"redirect to null", "echo hi > /dev/null"},
		{"colon function lookalike", "x(){ echo hi; }; x"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := ValidateCommand(tc.command); err != nil {
				t.Errorf("ValidateCommand(%q) = %v, want nil", tc.command, err)
			}
		})
	}
}

func TestValidateCommandEmpty(t *testing.T) {
	if err := ValidateCommand(""); err == nil {
		t.Error("ValidateCommand(\"\") = nil, want error")
	}
}
