package guard

import "os"

// safeEnvVars is the allow-list of environment variables passed to spawned
// processes. Everything else the agent inherited (API keys, tokens, cloud
// credentials) is dropped before the subprocess starts.
var safeEnvVars = []string{
	// Unix basics.
	"PATH", "HOME", "USER", "LOGNAME", "SHELL",
	// Locale.
	"LANG", "LC_ALL", "LC_CTYPE",
	// Terminal.
	"TERM",
	// Temp directories.
	"TMPDIR", "TMP", "TEMP",
	// Windows equivalents.
	"SYSTEMROOT", "WINDIR", "COMSPEC", "PATHEXT", "USERPROFILE", "APPDATA", "LOCALAPPDATA",
}

// SafeEnvironment copies only allow-listed variables from the host
// environment into a fresh slice suitable for exec.Cmd.Env.
func SafeEnvironment() []string {
	env := make([]string, 0, len(safeEnvVars))
	for _, name := range safeEnvVars {
		if v, ok := os.LookupEnv(name); ok {
			env = append(env, name+"="+v)
		}
	}
	return env
}
