package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0640); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMinimal(t *testing.T) {
	path := writeConfig(t, `
projects:
  - project_code: alpha
    token: tok-1
    api_url: https://control.example.com/api
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if len(cfg.Projects) != 1 || cfg.Projects[0].ProjectCode != "alpha" {
		t.Errorf("projects = %+v", cfg.Projects)
	}
	if cfg.PollInterval() != 5*time.Second {
		t.Errorf("PollInterval = %s, want 5s default", cfg.PollInterval())
	}
	if cfg.HeartbeatInterval() != 30*time.Second {
		t.Errorf("HeartbeatInterval = %s, want 30s default", cfg.HeartbeatInterval())
	}
	if cfg.AgentID == "" {
		t.Error("AgentID not defaulted")
	}
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
agent_id: custom-agent
poll_interval_seconds: 10
heartbeat_interval_seconds: 60
projects:
  - project_code: alpha
    token: tok-1
    api_url: https://a.example.com
  - project_code: beta
    token: tok-2
    api_url: https://b.example.com
limits:
  max_output_bytes: 2048
  max_file_size_bytes: 4096
journal:
  retention_days: 7
observability:
  metrics:
    enabled: true
  status:
    enabled: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.AgentID != "custom-agent" {
		t.Errorf("AgentID = %q", cfg.AgentID)
	}
	if len(cfg.Projects) != 2 {
		t.Errorf("projects = %d, want 2", len(cfg.Projects))
	}
	if cfg.Limits.MaxOutputBytes != 2048 {
		t.Errorf("MaxOutputBytes = %d", cfg.Limits.MaxOutputBytes)
	}
	if cfg.Journal.RetentionDays != 7 {
		t.Errorf("RetentionDays = %d", cfg.Journal.RetentionDays)
	}
	if cfg.Journal.PruneSchedule != "0 3 * * *" {
		t.Errorf("PruneSchedule = %q, want default", cfg.Journal.PruneSchedule)
	}
	if cfg.Journal.Path == "" {
		t.Error("journal path not defaulted")
	}
	if cfg.Observability.Status.ListenAddr != "127.0.0.1:7600" {
		t.Errorf("status ListenAddr = %q, want default", cfg.Observability.Status.ListenAddr)
	}
}

func TestLoadValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "no projects",
			content: `agent_id: x`,
			wantErr: "at least one project",
		},
		{
			name: "missing token",
			content: `
projects:
  - project_code: alpha
    api_url: https://a.example.com
`,
			wantErr: "token is required",
		},
		{
			name: "missing api_url",
			content: `
projects:
  - project_code: alpha
    token: tok
`,
			wantErr: "api_url is required",
		},
		{
			name: "duplicate project code",
			content: `
projects:
  - project_code: alpha
    token: tok-1
    api_url: https://a.example.com
  - project_code: alpha
    token: tok-2
    api_url: https://b.example.com
`,
			wantErr: "duplicate project_code",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.content))
			if err == nil {
				t.Fatal("Load succeeded, want validation error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error = %v, want %q", err, tc.wantErr)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("Load succeeded for missing file")
	}
}

func TestEnvOverridesSingleProject(t *testing.T) {
	t.Setenv("REMORA_TOKEN", "env-token")
	t.Setenv("REMORA_API_URL", "https://env.example.com")
	t.Setenv("REMORA_AGENT_ID", "env-agent")

	path := writeConfig(t, `
projects:
  - project_code: alpha
    token: file-token
    api_url: https://file.example.com
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Projects[0].Token != "env-token" {
		t.Errorf("Token = %q, want env override", cfg.Projects[0].Token)
	}
	if cfg.Projects[0].APIURL != "https://env.example.com" {
		t.Errorf("APIURL = %q, want env override", cfg.Projects[0].APIURL)
	}
	if cfg.AgentID != "env-agent" {
		t.Errorf("AgentID = %q, want env override", cfg.AgentID)
	}
}

func TestEnvOverrideSkippedForMultiProject(t *testing.T) {
	t.Setenv("REMORA_TOKEN", "env-token")

	path := writeConfig(t, `
projects:
  - project_code: alpha
    token: tok-1
    api_url: https://a.example.com
  - project_code: beta
    token: tok-2
    api_url: https://b.example.com
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Projects[0].Token != "tok-1" || cfg.Projects[1].Token != "tok-2" {
		t.Errorf("tokens overridden in multi-project config: %+v", cfg.Projects)
	}
}
